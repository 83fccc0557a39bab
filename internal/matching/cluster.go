package matching

import (
	"context"
	"encoding/json"
	"time"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
	"github.com/syntrixbase/docflow/pkg/model"
)

const (
	roomsSubject         = "rooms"
	notificationsSubject = "notifications"

	announceTimeout = 5 * time.Second
)

// roomState announces the local subscriber count of a room. A zero count
// withdraws the room, an empty RoomID asks the other nodes to re-announce.
type roomState struct {
	Node       string        `json:"node"`
	RoomID     string        `json:"roomId,omitempty"`
	Index      string        `json:"index,omitempty"`
	Collection string        `json:"collection,omitempty"`
	Filters    model.Filters `json:"filters,omitempty"`
	Count      int           `json:"count"`
}

// Run consumes the cluster subjects until ctx is done. Standalone engines
// just wait.
func (e *Engine) Run(ctx context.Context) error {
	if e.provider == nil {
		<-ctx.Done()
		return nil
	}

	rooms, err := e.consume(ctx, "rooms", pubsub.Subject(roomsSubject)+".*")
	if err != nil {
		return err
	}
	notifications, err := e.consume(ctx, "notifications", pubsub.Subject(notificationsSubject)+".>")
	if err != nil {
		return err
	}
	close(e.ready)
	e.logger.Info("Matching engine joined the cluster", "stream", e.stream.StreamName)

	// Ask the running nodes for their rooms
	e.publishState(ctx, roomState{Node: e.nodeID})

	for {
		select {
		case <-ctx.Done():
			e.withdrawAll()
			e.logger.Info("Matching engine left the cluster")
			return nil
		case msg, ok := <-rooms:
			if !ok {
				rooms = nil
				continue
			}
			e.handleRoomState(ctx, msg)
		case msg, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			e.handleNotification(msg)
		}
	}
}

func (e *Engine) consume(ctx context.Context, kind, filterSubject string) (<-chan pubsub.Message, error) {
	consumer, err := e.provider.NewConsumer(pubsub.ConsumerOptions{
		StreamName:        e.stream.StreamName,
		ConsumerName:      e.nodeID + "-" + kind,
		FilterSubject:     filterSubject,
		Storage:           e.stream.Storage,
		DeliverNew:        true,
		InactiveThreshold: time.Minute,
	})
	if err != nil {
		return nil, err
	}
	return consumer.Subscribe(ctx)
}

func (e *Engine) handleRoomState(ctx context.Context, msg pubsub.Message) {
	defer func() { _ = msg.Ack() }()

	var state roomState
	if err := json.Unmarshal(msg.Data(), &state); err != nil {
		e.logger.Warn("Ignoring malformed room announcement", "subject", msg.Subject(), "error", err)
		return
	}
	if state.Node == e.nodeID {
		return
	}
	if state.RoomID == "" {
		e.reannounce(ctx)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	rooms, ok := e.remote[state.Node]
	if state.Count <= 0 {
		if ok {
			delete(rooms, state.RoomID)
			if len(rooms) == 0 {
				delete(e.remote, state.Node)
			}
		}
		return
	}
	if !ok {
		rooms = make(map[string]remoteRoom)
		e.remote[state.Node] = rooms
	}
	rooms[state.RoomID] = remoteRoom{
		index:      state.Index,
		collection: state.Collection,
		filters:    state.Filters,
		count:      state.Count,
	}
}

// announce publishes the local state of a propagated room.
func (e *Engine) announce(ctx context.Context, roomID string) {
	if e.pub == nil {
		return
	}

	e.mu.Lock()
	state, ok := e.stateLocked(roomID)
	if !ok {
		e.mu.Unlock()
		return
	}
	if state.Count == 0 {
		delete(e.announced, roomID)
	} else {
		e.announced[roomID] = struct{}{}
	}
	e.mu.Unlock()

	e.publishState(ctx, state)
}

// stateLocked reports false for rooms that were never announced.
func (e *Engine) stateLocked(roomID string) (roomState, bool) {
	if r, ok := e.rooms[roomID]; ok {
		if !r.propagate {
			return roomState{}, false
		}
		return roomState{
			Node:       e.nodeID,
			RoomID:     roomID,
			Index:      r.index,
			Collection: r.collection,
			Filters:    r.filters,
			Count:      len(r.connections),
		}, true
	}
	if _, ok := e.announced[roomID]; ok {
		return roomState{Node: e.nodeID, RoomID: roomID}, true
	}
	return roomState{}, false
}

func (e *Engine) reannounce(ctx context.Context) {
	e.mu.RLock()
	ids := make([]string, 0, len(e.rooms))
	for id, r := range e.rooms {
		if r.propagate {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()

	for _, id := range ids {
		e.announce(ctx, id)
	}
}

func (e *Engine) withdrawAll() {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	e.mu.Lock()
	ids := make([]string, 0, len(e.announced))
	for id := range e.announced {
		ids = append(ids, id)
	}
	e.announced = make(map[string]struct{})
	e.mu.Unlock()

	for _, id := range ids {
		e.publishState(ctx, roomState{Node: e.nodeID, RoomID: id})
	}
}

func (e *Engine) publishState(ctx context.Context, state roomState) {
	data, err := json.Marshal(state)
	if err != nil {
		e.logger.Error("Failed to encode room announcement", "room", state.RoomID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, announceTimeout)
	defer cancel()
	if err := e.pub.Publish(ctx, pubsub.Subject(roomsSubject, e.nodeID), data); err != nil {
		e.logger.Warn("Failed to announce room", "room", state.RoomID, "count", state.Count, "error", err)
	}
}
