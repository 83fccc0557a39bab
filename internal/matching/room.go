package matching

import (
	"github.com/google/uuid"
	"github.com/syntrixbase/docflow/internal/filter"
	"github.com/syntrixbase/docflow/pkg/model"
)

// roomNamespace seeds the name-based room identifiers.
var roomNamespace = uuid.MustParse("6f1c3de2-5c1a-4c8e-9f3b-1d2a7c0e4b55")

// RoomID returns the identifier of the room for a filter set. Equal filter
// sets on the same collection share a room on every node.
func RoomID(index, collection string, filters model.Filters) string {
	name := index + "/" + collection + "/" + filter.Canonical(filters)
	return uuid.NewSHA1(roomNamespace, []byte(name)).String()
}

type room struct {
	id          string
	index       string
	collection  string
	filters     model.Filters
	program     *filter.Program
	propagate   bool
	connections map[string]struct{}
}

func newRoom(index, collection string, filters model.Filters) (*room, error) {
	prg, err := filter.Compile(filters)
	if err != nil {
		return nil, err
	}
	return &room{
		id:          RoomID(index, collection, filters),
		index:       index,
		collection:  collection,
		filters:     filters,
		program:     prg,
		connections: make(map[string]struct{}),
	}, nil
}

// remoteRoom is what other nodes announced about a room.
type remoteRoom struct {
	index      string
	collection string
	filters    model.Filters
	count      int
}

// Subscription is a request to attach a connection to the room of a filter.
type Subscription struct {
	ConnectionID string
	Index        string
	Collection   string
	Filters      model.Filters
	// Propagate announces the room to the other nodes of the cluster.
	Propagate bool
}

// SubscribeResult is returned to the subscriber.
type SubscribeResult struct {
	RoomID  string `json:"roomId"`
	Channel string `json:"channel"`
}

// Notification is what a subscriber receives.
type Notification struct {
	// Type is NotificationDocument or NotificationMessage.
	Type        string                 `json:"type"`
	Room        string                 `json:"room"`
	Index       string                 `json:"index"`
	Collection  string                 `json:"collection"`
	Controller  string                 `json:"controller"`
	Action      string                 `json:"action"`
	WriteAction model.WriteAction      `json:"writeAction,omitempty"`
	Result      interface{}            `json:"result"`
	Volatile    map[string]interface{} `json:"volatile,omitempty"`
	Timestamp   int64                  `json:"timestamp"`
}

// Notification types.
const (
	NotificationDocument = "document"
	NotificationMessage  = "message"
)
