package storage

import (
	"context"

	"github.com/syntrixbase/docflow/pkg/model"
)

// The batch operations run item by item and never fail as a whole: each
// failing item becomes a BatchError carrying its status.

func batchError(doc model.CanonicalDocument, err error) model.BatchError {
	return model.BatchError{
		ID:       doc.ID,
		Document: doc.Source,
		Status:   model.StatusOf(err),
		Reason:   err.Error(),
	}
}

type writeFunc func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error)

func runBatch(ctx context.Context, docs []model.CanonicalDocument, write writeFunc) *model.BatchResult {
	res := &model.BatchResult{
		Errors:    []model.BatchError{},
		Successes: make([]model.CanonicalDocument, 0, len(docs)),
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, batchError(doc, model.WrapError(err)))
			continue
		}
		out, err := write(ctx, doc)
		if err != nil {
			res.Errors = append(res.Errors, batchError(doc, err))
			continue
		}
		res.Successes = append(res.Successes, out)
	}
	return res
}

// MGet fetches ids; missing documents are reported as errors.
func MGet(ctx context.Context, c Client, index, collection string, ids []string) *model.BatchResult {
	return runBatch(ctx, idDocuments(ids), func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		return c.Get(ctx, index, collection, doc.ID)
	})
}

// MCreate creates docs.
func MCreate(ctx context.Context, c Client, index, collection string, docs []model.CanonicalDocument) *model.BatchResult {
	return runBatch(ctx, docs, func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		return c.Create(ctx, index, collection, doc.ID, doc.Source)
	})
}

// MCreateOrReplace creates or replaces docs.
func MCreateOrReplace(ctx context.Context, c Client, index, collection string, docs []model.CanonicalDocument) *model.BatchResult {
	return runBatch(ctx, docs, func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		if doc.ID == "" {
			return model.CanonicalDocument{}, model.MissingArgument("_id")
		}
		out, _, err := c.CreateOrReplace(ctx, index, collection, doc.ID, doc.Source)
		return out, err
	})
}

// MReplace replaces existing docs.
func MReplace(ctx context.Context, c Client, index, collection string, docs []model.CanonicalDocument) *model.BatchResult {
	return runBatch(ctx, docs, func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		if doc.ID == "" {
			return model.CanonicalDocument{}, model.MissingArgument("_id")
		}
		return c.Replace(ctx, index, collection, doc.ID, doc.Source)
	})
}

// MUpdate applies each document source as the changes of its id.
func MUpdate(ctx context.Context, c Client, index, collection string, docs []model.CanonicalDocument) *model.BatchResult {
	return runBatch(ctx, docs, func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		if doc.ID == "" {
			return model.CanonicalDocument{}, model.MissingArgument("_id")
		}
		return c.Update(ctx, index, collection, doc.ID, doc.Source)
	})
}

// MDelete deletes ids. Successes carry the deleted documents so callers
// can notify with their content; the id-only result is built by IDs.
func MDelete(ctx context.Context, c Client, index, collection string, ids []string) *model.BatchResult {
	return runBatch(ctx, idDocuments(ids), func(ctx context.Context, doc model.CanonicalDocument) (model.CanonicalDocument, error) {
		return c.Delete(ctx, index, collection, doc.ID)
	})
}

// IDs converts a batch result into its identifier-only form.
func IDs(res *model.BatchResult) *model.IDBatchResult {
	out := &model.IDBatchResult{
		Errors:    res.Errors,
		Successes: make([]string, 0, len(res.Successes)),
	}
	if out.Errors == nil {
		out.Errors = []model.BatchError{}
	}
	for _, doc := range res.Successes {
		out.Successes = append(out.Successes, doc.ID)
	}
	return out
}

// DeleteByQuery deletes every document matching filters and returns them.
func DeleteByQuery(ctx context.Context, c Client, index, collection string, filters model.Filters) ([]model.CanonicalDocument, error) {
	found, err := c.Search(ctx, index, collection, model.Query{Filters: filters, Size: -1})
	if err != nil {
		return nil, err
	}
	deleted := make([]model.CanonicalDocument, 0, len(found.Hits))
	for _, hit := range found.Hits {
		doc, err := c.Delete(ctx, index, collection, hit.ID)
		if err != nil {
			if model.KindOf(err) == model.KindNotFound {
				// deleted concurrently
				continue
			}
			return deleted, err
		}
		deleted = append(deleted, doc)
	}
	return deleted, nil
}

// UpdateByQuery applies changes to every document matching filters.
func UpdateByQuery(ctx context.Context, c Client, index, collection string, filters model.Filters, changes model.Document) (*model.BatchResult, error) {
	found, err := c.Search(ctx, index, collection, model.Query{Filters: filters, Size: -1})
	if err != nil {
		return nil, err
	}
	docs := make([]model.CanonicalDocument, len(found.Hits))
	for i, hit := range found.Hits {
		docs[i] = model.CanonicalDocument{ID: hit.ID, Source: changes}
	}
	return MUpdate(ctx, c, index, collection, docs), nil
}

func idDocuments(ids []string) []model.CanonicalDocument {
	docs := make([]model.CanonicalDocument, len(ids))
	for i, id := range ids {
		docs[i] = model.CanonicalDocument{ID: id}
	}
	return docs
}
