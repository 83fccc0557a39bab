package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syntrixbase/docflow/internal/extractor"
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Bulk actions sharing their name with document actions.
const (
	ActionBulkDeleteByQuery = request.ActionDeleteByQuery
	ActionBulkUpdateByQuery = request.ActionUpdateByQuery
)

// BulkController writes documents as they are: no validation, no metadata
// and notifications only on demand.
type BulkController struct {
	store  storage.Client
	logger *slog.Logger
}

// NewBulkController creates a bulk controller.
func NewBulkController(store storage.Client, logger *slog.Logger) *BulkController {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkController{
		store:  store,
		logger: logger.With("component", "bulk-controller"),
	}
}

// Actions returns the handlers by action name.
func (c *BulkController) Actions() map[string]Handler {
	return map[string]Handler{
		request.ActionImport:    func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Import(ctx, req) },
		request.ActionWrite:     func(ctx context.Context, req *request.Request) (interface{}, error) { return c.Write(ctx, req) },
		request.ActionMWrite:    func(ctx context.Context, req *request.Request) (interface{}, error) { return c.MWrite(ctx, req) },
		ActionBulkDeleteByQuery: func(ctx context.Context, req *request.Request) (interface{}, error) { return c.DeleteByQuery(ctx, req) },
		ActionBulkUpdateByQuery: func(ctx context.Context, req *request.Request) (interface{}, error) { return c.UpdateByQuery(ctx, req) },
	}
}

// DeletedResult is the result of a bulk delete by query.
type DeletedResult struct {
	Deleted int `json:"deleted"`
}

// UpdatedResult is the result of a bulk update by query.
type UpdatedResult struct {
	Updated int `json:"updated"`
}

// Bulk import action lines.
const (
	importCreate = "create"
	importIndex  = "index"
	importDelete = "delete"

	fieldBulkData = "bulkData"
)

type importItem struct {
	action string
	doc    model.CanonicalDocument
}

// Import runs body.bulkData: a list alternating an action line
// {"create"|"index"|"delete": {"_id": id}} and, except after delete, the
// document to write. Consecutive items of one action are written as one
// batch, in list order. Nothing is notified.
func (c *BulkController) Import(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	items, err := parseBulkData(body[fieldBulkData])
	if err != nil {
		return nil, err
	}

	res := &model.BatchResult{Errors: []model.BatchError{}, Successes: []model.CanonicalDocument{}}
	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[end].action == items[start].action {
			end++
		}
		docs := make([]model.CanonicalDocument, 0, end-start)
		for _, item := range items[start:end] {
			docs = append(docs, item.doc)
		}

		var part *model.BatchResult
		switch items[start].action {
		case importCreate:
			part = storage.MCreate(ctx, c.store, index, collection, docs)
		case importIndex:
			part = storage.MCreateOrReplace(ctx, c.store, index, collection, docs)
		default:
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			part = storage.MDelete(ctx, c.store, index, collection, ids)
		}
		res.Successes = append(res.Successes, part.Successes...)
		res.Errors = append(res.Errors, part.Errors...)
		start = end
	}

	if err := strictCheck(req, len(res.Errors), len(items)); err != nil {
		return nil, err
	}
	return res, nil
}

// parseBulkData reads the import list. Documents without an id get one,
// deletions require it.
func parseBulkData(v interface{}) ([]importItem, error) {
	name := "body." + fieldBulkData
	if v == nil {
		return nil, model.MissingArgument(name)
	}
	lines, ok := v.([]interface{})
	if !ok {
		return nil, model.InvalidType(name, v, "Array")
	}
	if len(lines) == 0 {
		return nil, model.EmptyArgument(name)
	}

	var items []importItem
	for i := 0; i < len(lines); i++ {
		lineName := fmt.Sprintf("%s[%d]", name, i)
		line, ok := lines[i].(map[string]interface{})
		if !ok || len(line) != 1 {
			return nil, model.InvalidType(lineName, lines[i], `{"create"|"index"|"delete": {...}}`)
		}
		var (
			action string
			meta   interface{}
		)
		for k, m := range line {
			action, meta = k, m
		}
		switch action {
		case importCreate, importIndex, importDelete:
		default:
			return nil, model.InvalidType(lineName, action, `"create", "index" or "delete"`)
		}

		item := importItem{action: action}
		if m, ok := meta.(map[string]interface{}); ok {
			item.doc.ID, _ = m[request.ArgID].(string)
		} else if meta != nil {
			return nil, model.InvalidType(lineName+"."+action, meta, "object")
		}

		if action == importDelete {
			if item.doc.ID == "" {
				return nil, model.MissingArgument(lineName + ".delete._id")
			}
			items = append(items, item)
			continue
		}

		i++
		if i == len(lines) {
			return nil, model.MissingArgument(fmt.Sprintf("%s[%d]", name, i))
		}
		source, ok := lines[i].(map[string]interface{})
		if !ok {
			return nil, model.InvalidType(fmt.Sprintf("%s[%d]", name, i), lines[i], "object")
		}
		item.doc.Source = source
		if item.doc.ID == "" {
			item.doc.ID = model.NewDocumentID()
		}
		items = append(items, item)
	}
	return items, nil
}

// Write creates or replaces one document. Without an id one is generated.
func (c *BulkController) Write(ctx context.Context, req *request.Request) (*model.CanonicalDocument, error) {
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
	if id == "" {
		id = model.NewDocumentID()
	}
	doc, _, err := c.store.CreateOrReplace(ctx, index, collection, id, body)
	if err != nil {
		return nil, err
	}
	if req.GetBoolean(request.ArgNotify) {
		req.SetWritten(model.WriteActionWrite, []model.CanonicalDocument{doc})
	}
	return &doc, nil
}

// MWrite creates or replaces several documents.
func (c *BulkController) MWrite(ctx context.Context, req *request.Request) (*model.BatchResult, error) {
	index, collection, err := req.GetIndexAndCollection()
	if err != nil {
		return nil, err
	}
	// mWrite carries its documents like mCreateOrReplace
	docs, err := writeDocuments(req)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, model.EmptyArgument("body." + fieldDocument)
	}
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = model.NewDocumentID()
		}
	}
	res := storage.MCreateOrReplace(ctx, c.store, index, collection, docs)
	if req.GetBoolean(request.ArgNotify) {
		req.SetWritten(model.WriteActionWrite, res.Successes)
	}
	if err := strictCheck(req, len(res.Errors), len(docs)); err != nil {
		return nil, err
	}
	return res, nil
}

// DeleteByQuery deletes every document matching body.query without
// returning them.
func (c *BulkController) DeleteByQuery(ctx context.Context, req *request.Request) (*DeletedResult, error) {
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
	if err != nil {
		return nil, err
	}
	return &DeletedResult{Deleted: len(docs)}, nil
}

// UpdateByQuery applies body.changes to every document matching body.query.
func (c *BulkController) UpdateByQuery(ctx context.Context, req *request.Request) (*UpdatedResult, error) {
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
	res, err := storage.UpdateByQuery(ctx, c.store, index, collection, filters, changes)
	if err != nil {
		return nil, err
	}
	if len(res.Errors) > 0 {
		c.logger.Warn("Bulk update skipped documents",
			"index", index,
			"collection", collection,
			"failed", len(res.Errors))
	}
	return &UpdatedResult{Updated: len(res.Successes)}, nil
}

// writeDocuments reads body.documents through the mCreateOrReplace shape.
func writeDocuments(req *request.Request) ([]model.CanonicalDocument, error) {
	shaped := req.Clone()
	shaped.Action = request.ActionMCreateOrReplace
	return extractor.Extract(shaped)
}
