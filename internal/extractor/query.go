package extractor

import (
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// queryBased covers search and deleteByQuery. Their requests hold a query,
// not documents, so only the result phase is supported.
type queryBased struct{}

func (queryBased) Name() string { return "query-based" }
func (queryBased) sealed()      {}

func (queryBased) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	switch res := req.Result().(type) {
	case *model.SearchResult:
		if res == nil {
			return []model.CanonicalDocument{}, nil
		}
		return nonNil(res.Hits), nil
	case model.SearchResult:
		return nonNil(res.Hits), nil
	case *model.DeleteByQueryResult:
		if res == nil {
			return []model.CanonicalDocument{}, nil
		}
		return nonNil(res.Documents), nil
	case model.DeleteByQueryResult:
		return nonNil(res.Documents), nil
	case nil:
		return []model.CanonicalDocument{}, nil
	default:
		return nil, unexpectedResult(req, res)
	}
}

// InsertInResult replaces the document list of the result and keeps every
// other field, such as the search total.
func (queryBased) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	switch req.Action {
	case request.ActionSearch:
		res := &model.SearchResult{}
		switch cur := req.Result().(type) {
		case *model.SearchResult:
			if cur != nil {
				res = cur
			}
		case model.SearchResult:
			res = &cur
		case nil:
		default:
			return nil, unexpectedResult(req, cur)
		}
		res.Hits = docs
		req.SetResult(res, req.Status())
	case request.ActionDeleteByQuery:
		res := &model.DeleteByQueryResult{}
		switch cur := req.Result().(type) {
		case *model.DeleteByQueryResult:
			if cur != nil {
				res = cur
			}
		case model.DeleteByQueryResult:
			res = &cur
		case nil:
		default:
			return nil, unexpectedResult(req, cur)
		}
		res.Documents = docs
		req.SetResult(res, req.Status())
	}
	return req, nil
}

func nonNil(docs []model.CanonicalDocument) []model.CanonicalDocument {
	if docs == nil {
		return []model.CanonicalDocument{}
	}
	return docs
}
