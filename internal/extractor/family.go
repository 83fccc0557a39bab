package extractor

import (
	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Family is one action shape: a group of actions carrying their documents
// in the same place of the request and of the result. Every family handles
// the result phase; see RequestAdapter for the request phase.
type Family interface {
	// Name identifies the family in logs and listings.
	Name() string
	ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error)
	InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error)

	sealed()
}

// RequestAdapter is implemented by the families whose requests carry
// documents. Query-based families do not implement it.
type RequestAdapter interface {
	ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error)
	InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error)
}

// Compile-time shape of each family.
var (
	_ RequestAdapter = singletonByID{}
	_ RequestAdapter = singletonWithBody{}
	_ RequestAdapter = singletonUpsert{}
	_ RequestAdapter = batchByIDs{}
	_ RequestAdapter = batchWithBodies{}
	_ Family         = queryBased{}
)

// --- helpers shared by the singleton families ---

func firstDocument(docs []model.CanonicalDocument) (model.CanonicalDocument, bool) {
	if len(docs) == 0 {
		return model.CanonicalDocument{}, false
	}
	return docs[0], true
}

func setID(req *request.Request, doc model.CanonicalDocument, ok bool) {
	if req.Args == nil {
		req.Args = map[string]interface{}{}
	}
	if ok && doc.ID != "" {
		req.Args[request.ArgID] = doc.ID
		return
	}
	delete(req.Args, request.ArgID)
}

func singletonFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	switch res := req.Result().(type) {
	case *model.CanonicalDocument:
		if res == nil {
			return []model.CanonicalDocument{{}}, nil
		}
		return []model.CanonicalDocument{*res}, nil
	case model.CanonicalDocument:
		return []model.CanonicalDocument{res}, nil
	case nil:
		return []model.CanonicalDocument{{}}, nil
	default:
		return nil, unexpectedResult(req, res)
	}
}

func singletonInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	doc, ok := firstDocument(docs)
	if !ok {
		req.SetResult((*model.CanonicalDocument)(nil), req.Status())
		return req, nil
	}
	req.SetResult(&doc, req.Status())
	return req, nil
}

func unexpectedResult(req *request.Request, res interface{}) error {
	return model.AssertionFailed("unexpected result type %T for action %q", res, req.Action)
}

// --- singleton by id: get, delete ---

type singletonByID struct{}

func (singletonByID) Name() string { return "singleton-by-id" }
func (singletonByID) sealed()      {}

func (singletonByID) ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error) {
	id, err := req.GetID()
	if err != nil {
		return nil, err
	}
	return []model.CanonicalDocument{{ID: id}}, nil
}

func (singletonByID) InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	doc, ok := firstDocument(docs)
	setID(req, doc, ok)
	return req, nil
}

func (singletonByID) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	return singletonFromResult(req)
}

func (singletonByID) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	return singletonInResult(docs, req)
}

// --- singleton by id and body: create, createOrReplace, replace, update ---

type singletonWithBody struct{}

func (singletonWithBody) Name() string { return "singleton-with-body" }
func (singletonWithBody) sealed()      {}

func (singletonWithBody) ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error) {
	id, err := req.GetID()
	if err != nil {
		return nil, err
	}
	return []model.CanonicalDocument{{ID: id, Source: model.Document(req.Body)}}, nil
}

func (singletonWithBody) InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	doc, ok := firstDocument(docs)
	setID(req, doc, ok)
	req.Body = doc.Source
	return req, nil
}

func (singletonWithBody) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	return singletonFromResult(req)
}

func (singletonWithBody) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	return singletonInResult(docs, req)
}

// --- singleton upsert: the document travels in body.changes ---

const changesField = "changes"

type singletonUpsert struct{}

func (singletonUpsert) Name() string { return "singleton-upsert" }
func (singletonUpsert) sealed()      {}

func (singletonUpsert) ExtractFromRequest(req *request.Request) ([]model.CanonicalDocument, error) {
	id, err := req.GetID()
	if err != nil {
		return nil, err
	}
	var source model.Document
	if v, ok := req.Body[changesField]; ok && v != nil {
		changes, ok := asObject(v)
		if !ok {
			return nil, model.InvalidType("body."+changesField, v, "object")
		}
		source = changes
	}
	return []model.CanonicalDocument{{ID: id, Source: source}}, nil
}

func (singletonUpsert) InsertInRequest(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	doc, ok := firstDocument(docs)
	if !ok {
		return req, nil
	}
	setID(req, doc, true)
	if req.Body == nil {
		req.Body = map[string]interface{}{}
	}
	if doc.Source == nil {
		delete(req.Body, changesField)
	} else {
		req.Body[changesField] = map[string]interface{}(doc.Source)
	}
	return req, nil
}

func (singletonUpsert) ExtractFromResult(req *request.Request) ([]model.CanonicalDocument, error) {
	return singletonFromResult(req)
}

func (singletonUpsert) InsertInResult(docs []model.CanonicalDocument, req *request.Request) (*request.Request, error) {
	return singletonInResult(docs, req)
}

func asObject(v interface{}) (model.Document, bool) {
	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case model.Document:
		return val, true
	default:
		return nil, false
	}
}
