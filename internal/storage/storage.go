// Package storage is the document storage boundary: one Client interface
// with memory and MongoDB backends, plus the batch operations built on it.
package storage

import (
	"context"

	"github.com/syntrixbase/docflow/pkg/model"
)

// DefaultSearchSize is the page size of searches that do not set one.
const DefaultSearchSize = 10

// Error identifiers of storage failures.
const (
	ErrIDNotFound      = "services.storage.not_found"
	ErrIDAlreadyExists = "services.storage.document_already_exists"
)

// Client stores documents by index, collection and id. Every returned
// document is a copy the caller owns.
type Client interface {
	Get(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error)
	// Create stores a new document; an empty id is generated.
	Create(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error)
	// CreateOrReplace reports whether the document was created.
	CreateOrReplace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, bool, error)
	Replace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error)
	// Update deep-merges changes into the document and returns it whole.
	Update(ctx context.Context, index, collection, id string, changes model.Document) (model.CanonicalDocument, error)
	// Upsert updates the document, or creates it from defaults and changes.
	Upsert(ctx context.Context, index, collection, id string, changes, defaults model.Document) (model.CanonicalDocument, bool, error)
	// Delete returns the document as it was before deletion.
	Delete(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error)
	// Search returns one page of matches. A negative size returns all of them.
	Search(ctx context.Context, index, collection string, q model.Query) (*model.SearchResult, error)
	Close(ctx context.Context) error
}

// NotFound is the error of a missing document.
func NotFound(index, collection, id string) error {
	return model.NewError(model.KindNotFound, ErrIDNotFound,
		"document %q not found in %s/%s", id, index, collection)
}

// AlreadyExists is the error of creating an existing document.
func AlreadyExists(index, collection, id string) error {
	return model.NewError(model.KindConflict, ErrIDAlreadyExists,
		"document %q already exists in %s/%s", id, index, collection)
}

// InvalidID is the error of a malformed document id.
func InvalidID(id string) error {
	return model.NewError(model.KindBadRequest, "api.assert.invalid_id", "invalid document id %q", id)
}
