// Package realtime is the control plane of subscriptions: it validates
// realtime requests and hands them to the matching engine.
package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/syntrixbase/docflow/internal/filter"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/validation"
	"github.com/syntrixbase/docflow/pkg/model"
)

// MatchingEngine owns the rooms and fans messages out to subscribers.
type MatchingEngine interface {
	Subscribe(ctx context.Context, s matching.Subscription) (*matching.SubscribeResult, error)
	Join(ctx context.Context, connectionID, roomID string) (*matching.SubscribeResult, error)
	Unsubscribe(ctx context.Context, connectionID, roomID string) error
	Count(ctx context.Context, roomID string) (int, error)
	List(ctx context.Context, user *request.User) (matching.RoomList, error)
	Publish(ctx context.Context, req *request.Request) error
}

// Validator checks documents against the collection specifications.
type Validator interface {
	Validate(ctx context.Context, req *request.Request, verbose bool) (*request.Request, error)
	Check(ctx context.Context, req *request.Request) (*validation.Report, error)
}

const roomIDField = "roomId"

// Controller implements the realtime actions.
type Controller struct {
	engine    MatchingEngine
	validator Validator
	now       func() time.Time
	logger    *slog.Logger
}

// NewController creates a realtime controller.
func NewController(engine MatchingEngine, validator Validator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		engine:    engine,
		validator: validator,
		now:       time.Now,
		logger:    logger.With("component", "realtime"),
	}
}

// Handler runs one realtime action.
type Handler func(ctx context.Context, req *request.Request) (interface{}, error)

// Actions returns the handlers by action name.
func (c *Controller) Actions() map[string]Handler {
	return map[string]Handler{
		request.ActionSubscribe:   func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Subscribe(ctx, req) },
		request.ActionJoin:        func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Join(ctx, req) },
		request.ActionUnsubscribe: func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Unsubscribe(ctx, req) },
		request.ActionCount:       func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Count(ctx, req) },
		request.ActionList:        func(ctx context.Context, req *request.Request) (interface{}, error) { return c.List(ctx, req) },
		request.ActionPublish:     func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Publish(ctx, req) },
		request.ActionValidate:    func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Validate(ctx, req) },
	}
}

// Subscribe registers the connection of req on the room of body.filters.
// A nil result means the connection closed before the room was assigned.
func (c *Controller) Subscribe(ctx context.Context, req *request.Request) (*matching.SubscribeResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	filters, err := filter.Parse(body["filters"])
	if err != nil {
		return nil, err
	}

	// Only embedded callers may opt out of propagation
	propagate := true
	if req.Context.Connection.Protocol == request.ProtocolInternal && req.HasArg(request.ArgPropagate) {
		propagate = req.GetBoolean(request.ArgPropagate)
	}
	req.Args[request.ArgPropagate] = propagate

	res, err := c.engine.Subscribe(ctx, matching.Subscription{
		ConnectionID: req.Context.Connection.ID,
		Index:        index,
		Collection:   collection,
		Filters:      filters,
		Propagate:    propagate,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		c.logger.Debug("Subscribe on a closed connection", "connection", req.Context.Connection.ID)
		return nil, nil
	}
	return res, nil
}

// Join attaches the connection of req to the room body.roomId.
func (c *Controller) Join(ctx context.Context, req *request.Request) (*matching.SubscribeResult, error) {
	roomID, err := req.GetBodyString(roomIDField)
	if err != nil {
		return nil, err
	}
	return c.engine.Join(ctx, req.Context.Connection.ID, roomID)
}

// UnsubscribeResult names the room that was left.
type UnsubscribeResult struct {
	RoomID string `json:"roomId"`
}

// Unsubscribe detaches the connection of req from body.roomId.
func (c *Controller) Unsubscribe(ctx context.Context, req *request.Request) (*UnsubscribeResult, error) {
	roomID, err := req.GetBodyString(roomIDField)
	if err != nil {
		return nil, err
	}
	if err := c.engine.Unsubscribe(ctx, req.Context.Connection.ID, roomID); err != nil {
		return nil, err
	}
	return &UnsubscribeResult{RoomID: roomID}, nil
}

// CountResult is the cluster-wide subscriber count of a room.
type CountResult struct {
	Count int `json:"count"`
}

// Count returns the subscribers of body.roomId.
func (c *Controller) Count(ctx context.Context, req *request.Request) (*CountResult, error) {
	roomID, err := req.GetBodyString(roomIDField)
	if err != nil {
		return nil, err
	}
	count, err := c.engine.Count(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &CountResult{Count: count}, nil
}

// List returns the rooms the acting user may see.
func (c *Controller) List(ctx context.Context, req *request.Request) (matching.RoomList, error) {
	return c.engine.List(ctx, req.Context.User)
}

// PublishResult acknowledges a published message.
type PublishResult struct {
	Published bool `json:"published"`
}

// Publish validates body and sends it to the subscribers without storing it.
func (c *Controller) Publish(ctx context.Context, req *request.Request) (*PublishResult, error) {
	if _, err := req.GetBody(); err != nil {
		return nil, err
	}
	if _, _, err := req.GetIndexAndCollection(); err != nil {
		return nil, err
	}

	validated, err := c.validator.Validate(ctx, req, false)
	if err != nil {
		return nil, err
	}
	if validated.Body == nil {
		validated.Body = map[string]interface{}{}
	}
	validated.Body[model.MetaField] = map[string]interface{}{
		"author":    req.GetKuid(),
		"createdAt": c.now().UnixMilli(),
	}

	if err := c.engine.Publish(ctx, validated); err != nil {
		return nil, err
	}
	return &PublishResult{Published: true}, nil
}

// Validate checks body against the collection specification.
func (c *Controller) Validate(ctx context.Context, req *request.Request) (*validation.Report, error) {
	if _, err := req.GetBody(); err != nil {
		return nil, err
	}
	if _, _, err := req.GetIndexAndCollection(); err != nil {
		return nil, err
	}
	return c.validator.Check(ctx, req)
}
