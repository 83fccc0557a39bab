// Package notify hands post-write notifications to the matching engine
// without holding up the write that produced them.
package notify

import (
	"context"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Envelope describes one completed write for the matching engine.
type Envelope struct {
	WriteAction model.WriteAction
	Documents   []model.CanonicalDocument
	Request     *request.Request
}

// NewEnvelope snapshots docs and req so the envelope stays valid after the
// request pipeline moves on.
func NewEnvelope(action model.WriteAction, docs []model.CanonicalDocument, req *request.Request) Envelope {
	return Envelope{
		WriteAction: action,
		Documents:   model.CloneDocuments(docs),
		Request:     req.Clone(),
	}
}

// Sink receives envelopes. It is implemented by the matching engine.
type Sink interface {
	NotifyDocuments(ctx context.Context, env Envelope) error
}

// FillSources gives the documents of docs without content the content of
// the stored document with the same id. Documents with content are kept as
// they are.
func FillSources(docs, stored []model.CanonicalDocument) []model.CanonicalDocument {
	if len(stored) == 0 {
		return docs
	}
	byID := make(map[string]model.Document, len(stored))
	for _, doc := range stored {
		byID[doc.ID] = doc.Source
	}
	out := make([]model.CanonicalDocument, len(docs))
	for i, doc := range docs {
		if doc.Source == nil {
			doc.Source = byID[doc.ID]
		}
		out[i] = doc
	}
	return out
}
