// Package api routes requests to the controllers and runs the generic
// document pipes around document-oriented actions.
package api

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/syntrixbase/docflow/internal/extractor"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// ErrIDActionNotFound is the error identifier of unknown controller actions.
const ErrIDActionNotFound = "api.process.action_not_found"

// Handler runs one action and returns its result.
type Handler func(ctx context.Context, req *request.Request) (interface{}, error)

// Pipe transforms the canonical documents of a request or of its result.
// The returned list replaces the documents.
type Pipe func(ctx context.Context, req *request.Request, docs []model.CanonicalDocument) ([]model.CanonicalDocument, error)

// Notifier hands the documents of completed writes to the realtime layer.
type Notifier interface {
	// NotifyDocuments reads the documents from the result of req. Documents
	// the result reports by id only take their content from stored.
	NotifyDocuments(action model.WriteAction, req *request.Request, stored ...model.CanonicalDocument) error
	Notify(action model.WriteAction, docs []model.CanonicalDocument, req *request.Request) error
}

// Funnel dispatches requests to controller actions and notifies the writes
// they record once the result pipes ran.
type Funnel struct {
	mu          sync.RWMutex
	controllers map[string]map[string]Handler
	before      []Pipe
	after       []Pipe
	notifier    Notifier
	logger      *slog.Logger
}

// FunnelOption configures a Funnel.
type FunnelOption func(*Funnel)

// WithNotifier notifies recorded writes through n.
func WithNotifier(n Notifier) FunnelOption {
	return func(f *Funnel) {
		f.notifier = n
	}
}

// NewFunnel creates an empty funnel.
func NewFunnel(logger *slog.Logger, opts ...FunnelOption) *Funnel {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Funnel{
		controllers: make(map[string]map[string]Handler),
		logger:      logger.With("component", "funnel"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Register adds every action of a controller.
func (f *Funnel) Register(controller string, actions map[string]Handler) {
	for action, h := range actions {
		f.Handle(controller, action, h)
	}
}

// Handle adds one action handler, replacing any previous one.
func (f *Funnel) Handle(controller, action string, h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actions, ok := f.controllers[controller]
	if !ok {
		actions = make(map[string]Handler)
		f.controllers[controller] = actions
	}
	actions[action] = h
}

// Before registers a pipe run on the documents of the request.
func (f *Funnel) Before(p Pipe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.before = append(f.before, p)
}

// After registers a pipe run on the documents of the result.
func (f *Funnel) After(p Pipe) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.after = append(f.after, p)
}

// Actions lists the registered actions by controller, sorted.
func (f *Funnel) Actions() map[string][]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]string, len(f.controllers))
	for controller, actions := range f.controllers {
		names := make([]string, 0, len(actions))
		for name := range actions {
			names = append(names, name)
		}
		sort.Strings(names)
		out[controller] = names
	}
	return out
}

func (f *Funnel) handler(controller, action string) (Handler, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if h, ok := f.controllers[controller][action]; ok {
		return h, nil
	}
	return nil, model.NewError(model.KindBadRequest, ErrIDActionNotFound,
		"action %s:%s not found", controller, action)
}

func (f *Funnel) pipes() (before, after []Pipe) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.before, f.after
}

// Execute runs req through its action and stores the result on req. The
// write the action recorded is notified with the documents of the piped
// result. A failed action still notifies what it wrote before failing.
func (f *Funnel) Execute(ctx context.Context, req *request.Request) error {
	h, err := f.handler(req.Controller, req.Action)
	if err != nil {
		return err
	}

	before, after := f.pipes()
	documents := req.Controller == request.ControllerDocument && extractor.Supports(req.Action)

	if documents && len(before) > 0 {
		if err := f.runBefore(ctx, req, before); err != nil {
			return f.fail(req, err)
		}
	}

	result, err := h(ctx, req)
	if err != nil {
		f.notify(req, false)
		return f.fail(req, err)
	}
	req.SetResult(result, 0)

	if documents && len(after) > 0 {
		if err := runPipes(ctx, req, after); err != nil {
			if _, ok := req.Written(); ok {
				f.logger.Warn("Write not notified, result pipes failed",
					"requestId", req.ID,
					"action", req.Action,
					"error", err)
			}
			return f.fail(req, err)
		}
	}
	f.notify(req, documents)
	return nil
}

// notify hands the recorded write of req to the notifier. fromResult reads
// the documents from the result, otherwise the stored ones are sent.
func (f *Funnel) notify(req *request.Request, fromResult bool) {
	w, ok := req.Written()
	if !ok || f.notifier == nil {
		return
	}
	var err error
	if fromResult {
		err = f.notifier.NotifyDocuments(w.Action, req, w.Documents...)
	} else {
		err = f.notifier.Notify(w.Action, w.Documents, req)
	}
	if err != nil {
		f.logger.Error("Failed to notify written documents",
			"requestId", req.ID,
			"action", req.Action,
			"writeAction", w.Action.String(),
			"error", err)
	}
}

func (f *Funnel) runBefore(ctx context.Context, req *request.Request, pipes []Pipe) error {
	adapter, err := extractor.Lookup(req.Action)
	if err != nil {
		return err
	}
	if !adapter.Request.Eligible() {
		return nil
	}
	return runPipes(ctx, req, pipes)
}

// runPipes extracts the documents of the current phase, runs pipes over
// them and writes them back with a fresh extractor.
func runPipes(ctx context.Context, req *request.Request, pipes []Pipe) error {
	docs, err := extractor.Extract(req)
	if err != nil {
		return err
	}
	for _, p := range pipes {
		if docs, err = p(ctx, req, docs); err != nil {
			return err
		}
	}
	_, err = extractor.Insert(docs, req)
	return err
}

func (f *Funnel) fail(req *request.Request, err error) error {
	if model.KindOf(err) == model.KindInternal && !model.IsCanceled(err) {
		f.logger.Error("Request failed",
			"requestId", req.ID,
			"controller", req.Controller,
			"action", req.Action,
			"errorId", model.ErrorID(err),
			"error", err)
	}
	return err
}
