package realtime

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/validation"
)

type MockEngine struct {
	mock.Mock
}

var _ MatchingEngine = &MockEngine{}

func (m *MockEngine) Subscribe(ctx context.Context, s matching.Subscription) (*matching.SubscribeResult, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matching.SubscribeResult), args.Error(1)
}

func (m *MockEngine) Join(ctx context.Context, connectionID, roomID string) (*matching.SubscribeResult, error) {
	args := m.Called(ctx, connectionID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matching.SubscribeResult), args.Error(1)
}

func (m *MockEngine) Unsubscribe(ctx context.Context, connectionID, roomID string) error {
	return m.Called(ctx, connectionID, roomID).Error(0)
}

func (m *MockEngine) Count(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) List(ctx context.Context, user *request.User) (matching.RoomList, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(matching.RoomList), args.Error(1)
}

func (m *MockEngine) Publish(ctx context.Context, req *request.Request) error {
	return m.Called(ctx, req).Error(0)
}

type MockValidator struct {
	mock.Mock
}

var _ Validator = &MockValidator{}

func (m *MockValidator) Validate(ctx context.Context, req *request.Request, verbose bool) (*request.Request, error) {
	args := m.Called(ctx, req, verbose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*request.Request), args.Error(1)
}

func (m *MockValidator) Check(ctx context.Context, req *request.Request) (*validation.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*validation.Report), args.Error(1)
}
