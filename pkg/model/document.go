package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	idRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]{1,64}$`)
)

// MetaField is the reserved body key holding authorship metadata.
const MetaField = "_meta"

func CheckDocumentID(id string) bool {
	return idRegex.MatchString(id)
}

// NewDocumentID returns a fresh random document identifier.
func NewDocumentID() string {
	return uuid.New().String()
}

// User facing document content, represents a JSON object.
//
//	"_meta" field is reserved for authorship metadata.
type Document map[string]interface{}

func (doc Document) HasKey(key string) bool {
	_, exists := doc[key]
	return exists
}

func (doc Document) IsEmpty() bool {
	return len(doc) == 0
}

// Lookup returns the value at a dotted path such as "address.city".
func (doc Document) Lookup(path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Clone returns a deep copy of the document. Nested maps and slices are
// copied; scalar values are shared.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge returns a copy of doc with changes deep-merged into it: nested
// objects are merged key by key, any other value replaces the current one.
func (doc Document) Merge(changes Document) Document {
	out := doc.Clone()
	if out == nil {
		out = make(Document, len(changes))
	}
	for k, v := range changes {
		sub, isMap := asMap(v)
		cur, curIsMap := asMap(out[k])
		if isMap && curIsMap {
			out[k] = map[string]interface{}(Document(cur).Merge(sub))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return map[string]interface{}(Document(val).Clone())
	case Document:
		return val.Clone()
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// CanonicalDocument is the normalized {id, source} unit every action shape
// is converted to and from. An empty ID stands for a null identifier and a
// nil Source for a null body.
type CanonicalDocument struct {
	ID      string   `json:"_id,omitempty"`
	Source  Document `json:"_source,omitempty"`
	Version int64    `json:"_version,omitempty"`
}

// Clone returns a deep copy of the canonical document.
func (d CanonicalDocument) Clone() CanonicalDocument {
	return CanonicalDocument{ID: d.ID, Source: d.Source.Clone(), Version: d.Version}
}

// CloneDocuments deep-copies a canonical document list. The result is never nil.
func CloneDocuments(docs []CanonicalDocument) []CanonicalDocument {
	out := make([]CanonicalDocument, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// BatchError describes one failed item of a batch operation.
type BatchError struct {
	ID       string   `json:"_id,omitempty"`
	Document Document `json:"document,omitempty"`
	Status   int      `json:"status"`
	Reason   string   `json:"reason"`
}

// BatchResult is the result of batch operations returning documents.
type BatchResult struct {
	Errors    []BatchError        `json:"errors"`
	Successes []CanonicalDocument `json:"successes"`
}

// IDBatchResult is the result of batch operations returning only identifiers.
type IDBatchResult struct {
	Errors    []BatchError `json:"errors"`
	Successes []string     `json:"successes"`
}

// SearchResult is the result of a search.
type SearchResult struct {
	Hits  []CanonicalDocument `json:"hits"`
	Total int                 `json:"total"`
}

// DeleteByQueryResult is the result of a delete-by-query.
type DeleteByQueryResult struct {
	Documents []CanonicalDocument `json:"documents"`
}
