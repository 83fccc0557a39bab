// Package extractor normalizes the documents of any document-oriented
// request, or of its result, into a canonical list and writes such a list
// back in the action's own shape.
package extractor

import (
	"errors"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

var (
	// ErrNoAdapter is wrapped when no adapter is registered for an action.
	ErrNoAdapter = errors.New("no documents extractor")
	// ErrNotEligible is wrapped when a phase is not supported by an action.
	ErrNotEligible = errors.New("phase not eligible")
)

// Phase selects which side of a request the extractor works on.
type Phase int

const (
	PhaseRequest Phase = iota + 1
	PhaseResult
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseResult:
		return "result"
	default:
		return "unknown"
	}
}

// Extractor is bound to one request and one phase. Build a new one for the
// result phase once the storage call has set a result.
type Extractor struct {
	req     *request.Request
	adapter Adapter
	phase   Phase
}

// New builds an extractor for req. The phase is the result phase when req
// already carries a result.
func New(req *request.Request) (*Extractor, error) {
	adapter, err := Lookup(req.Action)
	if err != nil {
		return nil, err
	}
	phase := PhaseRequest
	if req.HasResult() {
		phase = PhaseResult
	}
	return &Extractor{req: req, adapter: adapter, phase: phase}, nil
}

// Phase returns the phase selected at construction.
func (e *Extractor) Phase() Phase {
	return e.phase
}

// Extract returns the canonical documents of the current phase. The list is
// never nil.
func (e *Extractor) Extract() ([]model.CanonicalDocument, error) {
	var (
		docs []model.CanonicalDocument
		err  error
	)
	if e.phase == PhaseResult {
		docs, err = e.adapter.Family.ExtractFromResult(e.req)
	} else {
		if !e.adapter.Request.Eligible() {
			return nil, e.notEligible()
		}
		docs, err = e.adapter.Request.adapter.ExtractFromRequest(e.req)
	}
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.CanonicalDocument{}
	}
	return docs, nil
}

// Insert writes docs back into the current phase of the request, returning
// the same request.
func (e *Extractor) Insert(docs []model.CanonicalDocument) (*request.Request, error) {
	if e.phase == PhaseResult {
		return e.adapter.Family.InsertInResult(docs, e.req)
	}
	if !e.adapter.Request.Eligible() {
		return nil, e.notEligible()
	}
	return e.adapter.Request.adapter.InsertInRequest(docs, e.req)
}

func (e *Extractor) notEligible() error {
	return &model.Error{
		Kind:    model.KindInternal,
		ID:      "core.fatal.assertion_failed",
		Message: "action " + e.req.Action + " carries no documents in the " + e.phase.String() + " phase",
		Err:     ErrNotEligible,
	}
}

// Extract is a shorthand building a one-shot extractor.
func Extract(req *request.Request) ([]model.CanonicalDocument, error) {
	e, err := New(req)
	if err != nil {
		return nil, err
	}
	return e.Extract()
}

// Insert is a shorthand building a one-shot extractor.
func Insert(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	e, err := New(req)
	if err != nil {
		return nil, err
	}
	return e.Insert(docs)
}
