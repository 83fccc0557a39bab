package extractor

import (
	"fmt"
	"strings"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

const (
	documentsField = "documents"
	docIDField     = "_id"
	docBodyField   = "body"
)

// --- batch by ids: mGet, mDelete ---
//
// The id list is read from body.ids when the body carries a non-empty one,
// and from the ids argument otherwise. mGet answers with full documents,
// mDelete with bare ids.

type batchByIDs struct{}

func (batchByIDs) Name() string { return "batch-by-ids" }
func (batchByIDs) sealed()      {}

func (batchByIDs) ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error) {
	ids, err := requestIDs(req)
	if err != nil {
		return nil, err
	}
	docs := make([]model.CanonicalDocument, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, model.CanonicalDocument{ID: id})
	}
	return docs, nil
}

func (batchByIDs) InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(req.Body) > 0 {
		req.Body[request.ArgIDs] = ids
		return req, nil
	}
	if req.Args == nil {
		req.Args = map[string]interface{}{}
	}
	req.Args[request.ArgIDs] = ids
	return req, nil
}

func (batchByIDs) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	if req.Action == request.ActionMGet {
		res, err := batchResult(req)
		if err != nil {
			return nil, err
		}
		if res.Successes == nil {
			return []model.CanonicalDocument{}, nil
		}
		return res.Successes, nil
	}

	res, err := idBatchResult(req)
	if err != nil {
		return nil, err
	}
	docs := make([]model.CanonicalDocument, 0, len(res.Successes))
	for _, id := range res.Successes {
		docs = append(docs, model.CanonicalDocument{ID: id})
	}
	return docs, nil
}

func (batchByIDs) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	if req.Action == request.ActionMGet {
		res, err := batchResult(req)
		if err != nil {
			return nil, err
		}
		req.SetResult(&model.BatchResult{Errors: batchErrors(res.Errors), Successes: docs}, req.Status())
		return req, nil
	}

	res, err := idBatchResult(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	req.SetResult(&model.IDBatchResult{Errors: batchErrors(res.Errors), Successes: ids}, req.Status())
	return req, nil
}

// requestIDs resolves the id list of a batch request.
func requestIDs(req *request.Request) ([]string, error) {
	if v, ok := req.Body[request.ArgIDs]; ok && v != nil {
		ids, ok := stringList(v)
		if !ok {
			return nil, model.InvalidType("body."+request.ArgIDs, v, "Array")
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	v, ok := req.Args[request.ArgIDs]
	if !ok || v == nil {
		return []string{}, nil
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return []string{}, nil
		}
		return strings.Split(s, ","), nil
	}
	ids, ok := stringList(v)
	if !ok {
		return nil, model.InvalidType(request.ArgIDs, v, "Array or String")
	}
	return ids, nil
}

func stringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		ids := make([]string, 0, len(list))
		for _, item := range list {
			switch id := item.(type) {
			case string:
				ids = append(ids, id)
			case nil:
				ids = append(ids, "")
			default:
				ids = append(ids, fmt.Sprint(id))
			}
		}
		return ids, true
	default:
		return nil, false
	}
}

// --- batch with bodies: mCreate, mCreateOrReplace, mReplace, mUpdate ---
//
// Requests carry body.documents, a list of {"_id", "body"} entries.

type batchWithBodies struct{}

func (batchWithBodies) Name() string { return "batch-with-bodies" }
func (batchWithBodies) sealed()      {}

func (batchWithBodies) ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error) {
	v, ok := req.Body[documentsField]
	if !ok || v == nil {
		return nil, model.MissingArgument("body." + documentsField)
	}

	var entries []interface{}
	switch list := v.(type) {
	case []interface{}:
		entries = list
	case []map[string]interface{}:
		entries = make([]interface{}, len(list))
		for i, e := range list {
			entries[i] = e
		}
	default:
		return nil, model.InvalidType("body."+documentsField, v, "Array")
	}

	docs := make([]model.CanonicalDocument, 0, len(entries))
	for i, e := range entries {
		entry, ok := asObject(e)
		if !ok {
			return nil, model.InvalidType(fmt.Sprintf("body.%s[%d]", documentsField, i), e, "object")
		}
		var doc model.CanonicalDocument
		if id, ok := entry[docIDField].(string); ok {
			doc.ID = id
		}
		if raw, ok := entry[docBodyField]; ok && raw != nil {
			source, ok := asObject(raw)
			if !ok {
				return nil, model.InvalidType(fmt.Sprintf("body.%s[%d].%s", documentsField, i, docBodyField), raw, "object")
			}
			doc.Source = source
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (batchWithBodies) InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	entries := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		entry := map[string]interface{}{}
		if d.ID != "" {
			entry[docIDField] = d.ID
		}
		if d.Source != nil {
			entry[docBodyField] = map[string]interface{}(d.Source)
		}
		entries = append(entries, entry)
	}
	if req.Body == nil {
		req.Body = map[string]interface{}{}
	}
	req.Body[documentsField] = entries
	return req, nil
}

func (batchWithBodies) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	res, err := batchResult(req)
	if err != nil {
		return nil, err
	}
	if res.Successes == nil {
		return []model.CanonicalDocument{}, nil
	}
	return res.Successes, nil
}

func (batchWithBodies) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	res, err := batchResult(req)
	if err != nil {
		return nil, err
	}
	req.SetResult(&model.BatchResult{Errors: batchErrors(res.Errors), Successes: docs}, req.Status())
	return req, nil
}

// --- result accessors ---

func batchResult(req *request.Request) (*model.BatchResult, error) {
	switch res := req.Result().(type) {
	case *model.BatchResult:
		if res == nil {
			return &model.BatchResult{}, nil
		}
		return res, nil
	case model.BatchResult:
		return &res, nil
	case nil:
		return &model.BatchResult{}, nil
	default:
		return nil, unexpectedResult(req, res)
	}
}

func idBatchResult(req *request.Request) (*model.IDBatchResult, error) {
	switch res := req.Result().(type) {
	case *model.IDBatchResult:
		if res == nil {
			return &model.IDBatchResult{}, nil
		}
		return res, nil
	case model.IDBatchResult:
		return &res, nil
	case nil:
		return &model.IDBatchResult{}, nil
	default:
		return nil, unexpectedResult(req, res)
	}
}

func batchErrors(errs []model.BatchError) []model.BatchError {
	if errs == nil {
		return []model.BatchError{}
	}
	return errs
}
