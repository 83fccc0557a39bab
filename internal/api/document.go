package api

import (
	"context"
	"time"

	"github.com/syntrixbase/docflow/internal/extractor"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/pkg/model"
)

// ErrIDIncompleteRequest is raised by strict batch writes with failed items.
const ErrIDIncompleteRequest = "api.process.incomplete_multiple_request"

// DocumentValidator checks a document against its collection specification.
type DocumentValidator interface {
	ValidateDocument(index, collection string, doc model.Document, partial bool) error
}

// DocumentController implements the document actions over a storage client.
// Writes are recorded on the request and notified by the funnel.
type DocumentController struct {
	store     storage.Client
	validator DocumentValidator
	now       func() time.Time
}

// DocumentOption configures a DocumentController.
type DocumentOption func(*DocumentController)

// WithValidator checks written documents with v.
func WithValidator(v DocumentValidator) DocumentOption {
	return func(c *DocumentController) {
		c.validator = v
	}
}

// WithClock sets the time source of the document metadata.
func WithClock(now func() time.Time) DocumentOption {
	return func(c *DocumentController) {
		c.now = now
	}
}

// NewDocumentController creates a document controller.
func NewDocumentController(store storage.Client, opts ...DocumentOption) *DocumentController {
	c := &DocumentController{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Actions returns the handlers by action name.
func (c *DocumentController) Actions() map[string]Handler {
	return map[string]Handler{
		request.ActionGet:              func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Get(ctx, req) },
		request.ActionMGet:             func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MGet(ctx, req) },
		request.ActionCreate:           func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Create(ctx, req) },
		request.ActionCreateOrReplace:  func(ctx context.Context, req *request.Request) (interface{}, error) { return c.CreateOrReplace(ctx, req) },
		request.ActionReplace:          func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Replace(ctx, req) },
		request.ActionUpdate:           func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Update(ctx, req) },
		request.ActionUpsert:           func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Upsert(ctx, req) },
		request.ActionDelete:           func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Delete(ctx, req) },
		request.ActionMCreate:          func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MCreate(ctx, req) },
		request.ActionMCreateOrReplace: func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MCreateOrReplace(ctx, req) },
		request.ActionMReplace:         func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MReplace(ctx, req) },
		request.ActionMUpdate:          func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MUpdate(ctx, req) },
		request.ActionMDelete:          func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MDelete(ctx, req) },
		request.ActionSearch:           func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Search(ctx, req) },
		request.ActionDeleteByQuery:    func(ctx context.Context, req *request.Request) (interface{}, error) { return c.DeleteByQuery(ctx, req) },
		request.ActionUpdateByQuery:    func(ctx context.Context, req *request.Request) (interface{}, error) { return c.UpdateByQuery(ctx, req) },
	}
}

// Get returns one document.
func (c *DocumentController) Get(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	doc, err := c.store.Get(ctx, index, collection, id)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// MGet returns several documents; missing ones are reported as errors.
func (c *DocumentController) MGet(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	index, collection, ids, err := c.batchIDs(req)
	if err != nil {
		return nil, err
	}
	return storage.MGet(ctx, c.store, index, collection, ids), nil
}

// Create stores a new document. Without an id one is generated.
func (c *DocumentController) Create(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	id, err := req.GetID()
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, body, false); err != nil {
		return nil, err
	}
	doc, err := c.store.Create(ctx, index, collection, id, c.created(req, body))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionCreate, []model.CanonicalDocument{doc})
	return &doc, nil
}

// CreateOrReplace creates the document or replaces it whole.
func (c *DocumentController) CreateOrReplace(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, body, false); err != nil {
		return nil, err
	}
	doc, _, err := c.store.CreateOrReplace(ctx, index, collection, id, c.replaced(req, body))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionWrite, []model.CanonicalDocument{doc})
	return &doc, nil
}

// Replace replaces an existing document.
func (c *DocumentController) Replace(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, body, false); err != nil {
		return nil, err
	}
	doc, err := c.store.Replace(ctx, index, collection, id, c.replaced(req, body))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionReplace, []model.CanonicalDocument{doc})
	return &doc, nil
}

// Update merges the body into an existing document.
func (c *DocumentController) Update(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, body, true); err != nil {
		return nil, err
	}
	doc, err := c.store.Update(ctx, index, collection, id, c.updated(req, body))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionUpdate, []model.CanonicalDocument{doc})
	return &doc, nil
}

// Upsert applies body.changes, creating the document from body.default and
// the changes when it does not exist.
func (c *DocumentController) Upsert(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	changes, err := objectField(body, fieldChanges, true)
	if err != nil {
		return nil, err
	}
	defaults, err := objectField(body, fieldDefault, false)
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, model.Document(defaults).Merge(changes), true); err != nil {
		return nil, err
	}
	doc, _, err := c.store.Upsert(ctx, index, collection, id, c.updated(req, changes), c.created(req, defaults))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionUpsert, []model.CanonicalDocument{doc})
	return &doc, nil
}

// Delete removes a document. The result carries its id only.
func (c *DocumentController) Delete(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	id, err := req.GetString(request.ArgID)
	if err != nil {
		return nil, err
	}
	doc, err := c.store.Delete(ctx, index, collection, id)
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionDelete, []model.CanonicalDocument{doc})
	return &model.CanonicalDocument{ID: doc.ID}, nil
}

// MCreate creates several documents.
func (c *DocumentController) MCreate(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	return c.batchWrite(ctx, req, model.WriteActionCreate, false, c.created, storage.MCreate)
}

// MCreateOrReplace creates or replaces several documents.
func (c *DocumentController) MCreateOrReplace(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	return c.batchWrite(ctx, req, model.WriteActionWrite, false, c.replaced, storage.MCreateOrReplace)
}

// MReplace replaces several existing documents.
func (c *DocumentController) MReplace(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	return c.batchWrite(ctx, req, model.WriteActionReplace, false, c.replaced, storage.MReplace)
}

// MUpdate updates several existing documents.
func (c *DocumentController) MUpdate(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	return c.batchWrite(ctx, req, model.WriteActionUpdate, true, c.updated, storage.MUpdate)
}

// MDelete deletes several documents and answers with their ids.
func (c *DocumentController) MDelete(ctx context.Context, req *request.Request) (*model.IDBatchResult, error) {
	index, collection, ids, err := c.batchIDs(req)
	if err != nil {
		return nil, err
	}
	res := storage.MDelete(ctx, c.store, index, collection, ids)
	req.SetWritten(model.WriteActionDelete, res.Successes)
	out := storage.IDs(res)
	if err := strictCheck(req, len(out.Errors), len(ids)); err != nil {
		return nil, err
	}
	return out, nil
}

// Search returns one page of the documents matching body.query.
func (c *DocumentController) Search(ctx context.Context, req *request.Request) (*model.SearchResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	q, err := parseQuery(req)
	if err != nil {
		return nil, err
	}
	return c.store.Search(ctx, index, collection, q)
}

// DeleteByQuery deletes every document matching body.query.
func (c *DocumentController) DeleteByQuery(ctx context.Context, req *request.Request) (*model.DeleteByQueryResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	filters, err := queryFilters(body, true)
	if err != nil {
		return nil, err
	}
	docs, err := storage.DeleteByQuery(ctx, c.store, index, collection, filters)
	// documents deleted before a failure are still recorded
	req.SetWritten(model.WriteActionDelete, docs)
	if err != nil {
		return nil, err
	}
	return &model.DeleteByQueryResult{Documents: docs}, nil
}

// UpdateByQuery applies body.changes to every document matching body.query.
func (c *DocumentController) UpdateByQuery(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	filters, err := queryFilters(body, true)
	if err != nil {
		return nil, err
	}
	changes, err := objectField(body, fieldChanges, true)
	if err != nil {
		return nil, err
	}
	if err := c.validate(index, collection, changes, true); err != nil {
		return nil, err
	}
	res, err := storage.UpdateByQuery(ctx, c.store, index, collection, filters, c.updated(req, changes))
	if err != nil {
		return nil, err
	}
	req.SetWritten(model.WriteActionUpdate, res.Successes)
	if err := strictCheck(req, len(res.Errors), len(res.Errors)+len(res.Successes)); err != nil {
		return nil, err
	}
	return res, nil
}

type batchFunc func(ctx context.Context, c storage.Client, index, collection string, docs []model.CanonicalDocument) *model.BatchResult

type stampFunc func(req *request.Request, source model.Document) model.Document

// batchWrite validates and stamps body.documents, writes the valid ones and
// reports the rejected ones next to the storage errors.
func (c *DocumentController) batchWrite(ctx context.Context, req *request.Request, action model.WriteAction, partial bool, stamp stampFunc, write batchFunc) (*model.BatchResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	docs, err := extractor.Extract(req)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, model.EmptyArgument("body." + fieldDocument)
	}

	rejected := []model.BatchError{}
	valid := make([]model.CanonicalDocument, 0, len(docs))
	for _, doc := range docs {
		if err := c.validate(index, collection, doc.Source, partial); err != nil {
			rejected = append(rejected, model.BatchError{
				ID:       doc.ID,
				Document: doc.Source,
				Status:   model.StatusOf(err),
				Reason:   err.Error(),
			})
			continue
		}
		doc.Source = stamp(req, doc.Source)
		valid = append(valid, doc)
	}

	res := write(ctx, c.store, index, collection, valid)
	res.Errors = append(rejected, res.Errors...)
	req.SetWritten(action, res.Successes)
	if err := strictCheck(req, len(res.Errors), len(docs)); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *DocumentController) batchIDs(req *request.Request) (string, string, []string, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return "", "", nil, err
	}
	docs, err := extractor.Extract(req)
	if err != nil {
		return "", "", nil, err
	}
	if len(docs) == 0 {
		return "", "", nil, model.EmptyArgument(request.ArgIDs)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return index, collection, ids, nil
}

func (c *DocumentController) validate(index, collection string, doc model.Document, partial bool) error {
	if c.validator == nil {
		return nil
	}
	return c.validator.ValidateDocument(index, collection, doc, partial)
}

// strictCheck fails a strict batch request with failed items.
func strictCheck(req *request.Request, failed, total int) error {
	if failed == 0 || !req.GetBoolean(request.ArgStrict) {
		return nil
	}
	return model.NewError(model.KindBadRequest, ErrIDIncompleteRequest,
		"%d of %d documents could not be processed", failed, total)
}

// Metadata stamping. The body is copied, the caller keeps its own.

func (c *DocumentController) created(req *request.Request, source model.Document) model.Document {
	return withMeta(source, map[string]interface{}{
		"author":    req.GetKuid(),
		"createdAt": c.now().UnixMilli(),
		"updater":   nil,
		"updatedAt": nil,
	})
}

func (c *DocumentController) replaced(req *request.Request, source model.Document) model.Document {
	now := c.now().UnixMilli()
	return withMeta(source, map[string]interface{}{
		"author":    req.GetKuid(),
		"createdAt": now,
		"updater":   req.GetKuid(),
		"updatedAt": now,
	})
}

func (c *DocumentController) updated(req *request.Request, changes model.Document) model.Document {
	return withMeta(changes, map[string]interface{}{
		"updater":   req.GetKuid(),
		"updatedAt": c.now().UnixMilli(),
	})
}

func withMeta(source model.Document, meta map[string]interface{}) model.Document {
	out := source.Clone()
	if out == nil {
		out = model.Document{}
	}
	out[model.MetaField] = meta
	return out
}
