package api

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/syntrixbase/docflow/internal/extractor"
	"github.com/syntrixbase/docflow/internal/notify"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

type MockValidator struct {
	mock.Mock
}

var _ DocumentValidator = &MockValidator{}

func (m *MockValidator) ValidateDocument(index, collection string, doc model.Document, partial bool) error {
	args := m.Called(index, collection, doc, partial)
	return args.Error(0)
}

type MockExecutor struct {
	mock.Mock
}

var _ Executor = &MockExecutor{}

func (m *MockExecutor) Execute(ctx context.Context, req *request.Request) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

type notification struct {
	Action model.WriteAction
	Docs   []model.CanonicalDocument
	Req    *request.Request
}

// recordingNotifier keeps every notification in order.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

var _ Notifier = &recordingNotifier{}

func (n *recordingNotifier) Notify(action model.WriteAction, docs []model.CanonicalDocument, req *request.Request) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{Action: action, Docs: model.CloneDocuments(docs), Req: req})
	return n.err
}

func (n *recordingNotifier) NotifyDocuments(action model.WriteAction, req *request.Request, stored ...model.CanonicalDocument) error {
	docs, err := extractor.Extract(req)
	if err != nil {
		return err
	}
	return n.Notify(action, notify.FillSources(docs, stored), req)
}

func (n *recordingNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.sent...)
}
