// Package matching keeps the realtime rooms, matches written and published
// documents against room filters and delivers notifications to the
// subscribed connections of every node.
package matching

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/docflow/internal/core/pubsub"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Connections is the transport-side registry of open connections.
type Connections interface {
	// Alive reports whether the connection is still open.
	Alive(connectionID string) bool
	// Send queues a notification for the connection without blocking.
	Send(connectionID string, n Notification) error
}

// DefaultStream is the pubsub stream used between nodes.
const DefaultStream = "DOCFLOW"

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStream sets the pubsub stream options used between nodes.
func WithStream(opts pubsub.PublisherOptions) Option {
	return func(e *Engine) {
		if opts.StreamName != "" {
			e.stream = opts
		}
	}
}

// Engine is the matching engine of one node. Without a pubsub provider it
// runs standalone and delivers notifications in the caller's goroutine.
type Engine struct {
	nodeID   string
	conns    Connections
	provider pubsub.Provider
	stream   pubsub.PublisherOptions
	pub      pubsub.Publisher
	logger   *slog.Logger
	ready    chan struct{}

	mu           sync.RWMutex
	rooms        map[string]*room
	byConnection map[string]map[string]struct{}
	remote       map[string]map[string]remoteRoom // node -> room -> state
	announced    map[string]struct{}
}

// New creates an engine. provider may be nil for a standalone node.
func New(nodeID string, conns Connections, provider pubsub.Provider, opts ...Option) (*Engine, error) {
	e := &Engine{
		nodeID:       nodeID,
		conns:        conns,
		provider:     provider,
		stream:       pubsub.PublisherOptions{StreamName: DefaultStream},
		logger:       slog.Default(),
		ready:        make(chan struct{}),
		rooms:        make(map[string]*room),
		byConnection: make(map[string]map[string]struct{}),
		remote:       make(map[string]map[string]remoteRoom),
		announced:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "matching", "node", nodeID)

	if provider == nil {
		close(e.ready)
		return e, nil
	}
	pub, err := provider.NewPublisher(e.stream)
	if err != nil {
		return nil, err
	}
	e.pub = pub
	return e, nil
}

// NodeID returns the node identifier.
func (e *Engine) NodeID() string {
	return e.nodeID
}

// Ready is closed once the engine receives cluster messages.
func (e *Engine) Ready() <-chan struct{} {
	return e.ready
}

// Subscribe attaches a connection to the room of its filters, creating the
// room when needed. It returns nil when the connection closed meanwhile.
func (e *Engine) Subscribe(ctx context.Context, s Subscription) (*SubscribeResult, error) {
	r, err := newRoom(s.Index, s.Collection, s.Filters)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if existing, ok := e.rooms[r.id]; ok {
		r = existing
	} else {
		e.rooms[r.id] = r
	}
	if s.Propagate {
		r.propagate = true
	}
	e.attachLocked(r, s.ConnectionID)
	e.mu.Unlock()

	if !e.conns.Alive(s.ConnectionID) {
		e.logger.Debug("Connection closed during subscribe", "connection", s.ConnectionID, "room", r.id)
		e.Disconnect(ctx, s.ConnectionID)
		return nil, nil
	}

	e.announce(ctx, r.id)
	return &SubscribeResult{RoomID: r.id, Channel: r.id}, nil
}

// Join attaches a connection to an existing room, local or announced by
// another node.
func (e *Engine) Join(ctx context.Context, connectionID, roomID string) (*SubscribeResult, error) {
	e.mu.Lock()
	r, ok := e.rooms[roomID]
	if !ok {
		state, found := e.findRemoteLocked(roomID)
		if !found {
			e.mu.Unlock()
			return nil, roomNotFound(roomID)
		}
		var err error
		r, err = newRoom(state.index, state.collection, state.filters)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		r.propagate = true
		e.rooms[roomID] = r
	}
	e.attachLocked(r, connectionID)
	e.mu.Unlock()

	if !e.conns.Alive(connectionID) {
		e.Disconnect(ctx, connectionID)
		return nil, nil
	}

	e.announce(ctx, roomID)
	return &SubscribeResult{RoomID: roomID, Channel: roomID}, nil
}

// Unsubscribe detaches a connection from a room. Unknown rooms and
// connections are ignored.
func (e *Engine) Unsubscribe(ctx context.Context, connectionID, roomID string) error {
	e.mu.Lock()
	changed := e.detachLocked(connectionID, roomID)
	e.mu.Unlock()

	if changed {
		e.announce(ctx, roomID)
	}
	return nil
}

// Disconnect removes every subscription of a closed connection.
func (e *Engine) Disconnect(ctx context.Context, connectionID string) {
	e.mu.Lock()
	var changed []string
	for roomID := range e.byConnection[connectionID] {
		if e.detachLocked(connectionID, roomID) {
			changed = append(changed, roomID)
		}
	}
	e.mu.Unlock()

	for _, roomID := range changed {
		e.announce(ctx, roomID)
	}
}

// Count returns the subscribers of a room across all nodes.
func (e *Engine) Count(_ context.Context, roomID string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	found := false
	if r, ok := e.rooms[roomID]; ok {
		total += len(r.connections)
		found = true
	}
	for _, rooms := range e.remote {
		if state, ok := rooms[roomID]; ok {
			total += state.count
			found = true
		}
	}
	if !found {
		return 0, roomNotFound(roomID)
	}
	return total, nil
}

// RoomList maps index -> collection -> room id -> subscriber count.
type RoomList map[string]map[string]map[string]int

func (l RoomList) add(index, collection, roomID string, count int) {
	cols, ok := l[index]
	if !ok {
		cols = make(map[string]map[string]int)
		l[index] = cols
	}
	rooms, ok := cols[collection]
	if !ok {
		rooms = make(map[string]int)
		cols[collection] = rooms
	}
	rooms[roomID] += count
}

// List returns the rooms of every node visible to user.
func (e *Engine) List(_ context.Context, user *request.User) (RoomList, error) {
	var restrictions model.Restrictions
	if user != nil {
		restrictions = user.Restrictions
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := RoomList{}
	for id, r := range e.rooms {
		if restrictions.Allows(r.index, r.collection) {
			out.add(r.index, r.collection, id, len(r.connections))
		}
	}
	for _, rooms := range e.remote {
		for id, state := range rooms {
			if restrictions.Allows(state.index, state.collection) {
				out.add(state.index, state.collection, id, state.count)
			}
		}
	}
	return out, nil
}

func (e *Engine) attachLocked(r *room, connectionID string) {
	r.connections[connectionID] = struct{}{}
	rooms, ok := e.byConnection[connectionID]
	if !ok {
		rooms = make(map[string]struct{})
		e.byConnection[connectionID] = rooms
	}
	rooms[r.id] = struct{}{}
}

// detachLocked reports whether the room membership changed.
func (e *Engine) detachLocked(connectionID, roomID string) bool {
	r, ok := e.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := r.connections[connectionID]; !ok {
		return false
	}
	delete(r.connections, connectionID)
	if rooms := e.byConnection[connectionID]; rooms != nil {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(e.byConnection, connectionID)
		}
	}
	if len(r.connections) == 0 {
		delete(e.rooms, roomID)
	}
	return true
}

func (e *Engine) findRemoteLocked(roomID string) (remoteRoom, bool) {
	for _, rooms := range e.remote {
		if state, ok := rooms[roomID]; ok {
			return state, true
		}
	}
	return remoteRoom{}, false
}

func roomNotFound(roomID string) error {
	return model.NewError(model.KindNotFound, "core.realtime.room_not_found", "room %q not found", roomID)
}
