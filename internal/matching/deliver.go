package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
	"github.com/syntrixbase/docflow/internal/notify"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

var _ notify.Sink = (*Engine)(nil)

// wireNotification is a write or a published message travelling between
// nodes. WriteAction is encoded as its integer value.
type wireNotification struct {
	Node        string                    `json:"node"`
	Type        string                    `json:"type"`
	Index       string                    `json:"index"`
	Collection  string                    `json:"collection"`
	Controller  string                    `json:"controller"`
	Action      string                    `json:"action"`
	WriteAction model.WriteAction         `json:"writeAction,omitempty"`
	Documents   []model.CanonicalDocument `json:"documents,omitempty"`
	Message     model.Document            `json:"message,omitempty"`
	Volatile    map[string]interface{}    `json:"volatile,omitempty"`
	Timestamp   int64                     `json:"timestamp"`
}

// NotifyDocuments fans the documents of a completed write out to the
// matching rooms of every node.
func (e *Engine) NotifyDocuments(ctx context.Context, env notify.Envelope) error {
	req := env.Request
	return e.send(ctx, wireNotification{
		Node:        e.nodeID,
		Type:        NotificationDocument,
		Index:       req.Index,
		Collection:  req.Collection,
		Controller:  req.Controller,
		Action:      req.Action,
		WriteAction: env.WriteAction,
		Documents:   env.Documents,
		Volatile:    volatile(req),
		Timestamp:   time.Now().UnixMilli(),
	})
}

// Publish fans a message out to the matching rooms without storing it.
func (e *Engine) Publish(ctx context.Context, req *request.Request) error {
	return e.send(ctx, wireNotification{
		Node:       e.nodeID,
		Type:       NotificationMessage,
		Index:      req.Index,
		Collection: req.Collection,
		Controller: req.Controller,
		Action:     req.Action,
		Message:    model.Document(req.Body).Clone(),
		Volatile:   volatile(req),
		Timestamp:  time.Now().UnixMilli(),
	})
}

func volatile(req *request.Request) map[string]interface{} {
	v, _ := req.Args[request.ArgVolatile].(map[string]interface{})
	return v
}

func (e *Engine) send(ctx context.Context, n wireNotification) error {
	if e.pub == nil {
		e.deliver(n)
		return nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	subject := pubsub.Subject(notificationsSubject, n.Index, n.Collection)
	if err := e.pub.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
	return nil
}

func (e *Engine) handleNotification(msg pubsub.Message) {
	defer func() { _ = msg.Ack() }()

	var n wireNotification
	if err := json.Unmarshal(msg.Data(), &n); err != nil {
		e.logger.Warn("Ignoring malformed notification", "subject", msg.Subject(), "error", err)
		return
	}
	e.deliver(n)
}

type delivery struct {
	connections []string
	n           Notification
}

// deliver sends n to the local connections of every matching room.
func (e *Engine) deliver(n wireNotification) {
	var out []delivery

	e.mu.RLock()
	for id, r := range e.rooms {
		if r.index != n.Index || r.collection != n.Collection || len(r.connections) == 0 {
			continue
		}

		base := Notification{
			Type:        n.Type,
			Room:        id,
			Index:       n.Index,
			Collection:  n.Collection,
			Controller:  n.Controller,
			Action:      n.Action,
			WriteAction: n.WriteAction,
			Volatile:    n.Volatile,
			Timestamp:   n.Timestamp,
		}

		var matched []Notification
		if n.Type == NotificationMessage {
			if r.program.Match(n.Message) {
				base.Result = map[string]interface{}{"_source": n.Message}
				matched = append(matched, base)
			}
		} else {
			for _, doc := range n.Documents {
				if r.program.Match(doc.Source) {
					item := base
					item.Result = doc
					matched = append(matched, item)
				}
			}
		}
		if len(matched) == 0 {
			continue
		}

		conns := make([]string, 0, len(r.connections))
		for c := range r.connections {
			conns = append(conns, c)
		}
		for _, m := range matched {
			out = append(out, delivery{connections: conns, n: m})
		}
	}
	e.mu.RUnlock()

	for _, d := range out {
		for _, c := range d.connections {
			if err := e.conns.Send(c, d.n); err != nil {
				e.logger.Debug("Failed to deliver notification", "connection", c, "room", d.n.Room, "error", err)
			}
		}
	}
}
