// Package request holds the in-flight API request every controller,
// pipe and extractor operates on.
package request

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Connection identifies the transport connection a request arrived on.
type Connection struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
}

// User is the acting identity of a request.
type User struct {
	ID           string             `json:"_id"`
	Restrictions model.Restrictions `json:"restrictions,omitempty"`
}

// Anonymous returns the identity used for unauthenticated callers.
func Anonymous() *User {
	return &User{ID: AnonymousID}
}

// Context carries who sent the request and through which connection.
type Context struct {
	Connection Connection
	User       *User
}

// Payload is the raw inbound request as sent by clients.
type Payload struct {
	RequestID  string                 `json:"requestId,omitempty"`
	Controller string                 `json:"controller"`
	Action     string                 `json:"action"`
	Index      string                 `json:"index,omitempty"`
	Collection string                 `json:"collection,omitempty"`
	Body       map[string]interface{} `json:"body,omitempty"`
	Args       map[string]interface{} `json:"-"`
}

// Request is owned by the calling pipeline for its whole lifetime.
// Controllers and extractors borrow it and mutate it in place.
type Request struct {
	ID         string
	Controller string
	Action     string
	Index      string
	Collection string
	Args       map[string]interface{}
	Body       map[string]interface{}
	Context    Context

	result    interface{}
	hasResult bool
	status    int
	written   *Written
}

// Written records the write an action performed. The funnel turns it into a
// notification once the result pipes ran.
type Written struct {
	Action model.WriteAction
	// Documents are the documents as stored. They fill in the content of
	// results that report written documents by id only.
	Documents []model.CanonicalDocument
}

// New builds a request from a payload. Args and Body are never nil after New
// except Body, which stays nil when the payload carries none.
func New(p Payload, ctx Context) *Request {
	id := p.RequestID
	if id == "" {
		id = uuid.New().String()
	}
	args := make(map[string]interface{}, len(p.Args))
	for k, v := range p.Args {
		args[k] = v
	}
	if ctx.User == nil {
		ctx.User = Anonymous()
	}
	return &Request{
		ID:         id,
		Controller: p.Controller,
		Action:     p.Action,
		Index:      p.Index,
		Collection: p.Collection,
		Args:       args,
		Body:       p.Body,
		Context:    ctx,
		status:     http.StatusOK,
	}
}

// HasResult reports whether a result was set. It selects the extractor phase.
func (r *Request) HasResult() bool {
	return r.hasResult
}

// Result returns the current result payload.
func (r *Request) Result() interface{} {
	return r.result
}

// Status returns the response status.
func (r *Request) Status() int {
	return r.status
}

// SetResult stores the result payload and the response status.
// A zero status keeps the current one.
func (r *Request) SetResult(result interface{}, status int) {
	r.result = result
	r.hasResult = true
	if status != 0 {
		r.status = status
	}
}

// SetWritten records that the action wrote docs. An empty list clears the
// record.
func (r *Request) SetWritten(action model.WriteAction, docs []model.CanonicalDocument) {
	if len(docs) == 0 {
		r.written = nil
		return
	}
	r.written = &Written{Action: action, Documents: docs}
}

// Written returns the recorded write, if any.
func (r *Request) Written() (Written, bool) {
	if r.written == nil {
		return Written{}, false
	}
	return *r.written, true
}

// SetStatus overrides the response status.
func (r *Request) SetStatus(status int) {
	r.status = status
}

// Clone returns a copy whose body and args can be modified without touching r.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Args = model.Document(r.Args).Clone()
	if cp.Args == nil {
		cp.Args = map[string]interface{}{}
	}
	cp.Body = model.Document(r.Body).Clone()
	cp.written = nil
	return &cp
}

// GetIndexAndCollection returns the index and collection, both required.
func (r *Request) GetIndexAndCollection() (string, string, error) {
	if r.Index == "" {
		return "", "", model.MissingArgument("index")
	}
	if r.Collection == "" {
		return "", "", model.MissingArgument("collection")
	}
	return r.Index, r.Collection, nil
}

// GetBody returns the request body, which must be present.
func (r *Request) GetBody() (map[string]interface{}, error) {
	if r.Body == nil {
		return nil, model.MissingArgument("body")
	}
	return r.Body, nil
}

// GetBodyString returns a required non-empty string field of the body.
func (r *Request) GetBodyString(name string) (string, error) {
	body, err := r.GetBody()
	if err != nil {
		return "", err
	}
	v, ok := body[name]
	if !ok || v == nil {
		return "", model.MissingArgument("body." + name)
	}
	s, ok := v.(string)
	if !ok {
		return "", model.InvalidType("body."+name, v, "string")
	}
	if s == "" {
		return "", model.EmptyArgument("body." + name)
	}
	return s, nil
}

// GetString returns a required non-empty string argument.
func (r *Request) GetString(name string) (string, error) {
	v, ok := r.Args[name]
	if !ok || v == nil {
		return "", model.MissingArgument(name)
	}
	s, ok := v.(string)
	if !ok {
		return "", model.InvalidType(name, v, "string")
	}
	if s == "" {
		return "", model.EmptyArgument(name)
	}
	return s, nil
}

// GetID returns the document id argument, which may be empty.
func (r *Request) GetID() (string, error) {
	v, ok := r.Args[ArgID]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", model.InvalidType(ArgID, v, "string")
	}
	return s, nil
}

// GetBoolean interprets an argument as a flag. Missing arguments are false.
// HTTP query strings deliver flags as strings, so "true"/"1" are accepted.
func (r *Request) GetBoolean(name string) bool {
	switch v := r.Args[name].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			// A bare query-string flag ("?notify") arrives empty
			return v == ""
		}
		return b
	case int:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// HasArg reports whether the argument was provided with a non-nil value.
func (r *Request) HasArg(name string) bool {
	v, ok := r.Args[name]
	return ok && v != nil
}

// GetKuid returns the acting user id.
func (r *Request) GetKuid() string {
	if r.Context.User == nil || r.Context.User.ID == "" {
		return AnonymousID
	}
	return r.Context.User.ID
}
