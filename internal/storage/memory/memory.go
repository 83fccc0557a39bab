// Package memory is an in-process storage backend for standalone nodes and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/syntrixbase/docflow/internal/filter"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/pkg/model"
)

type record struct {
	source    model.Document
	version   int64
	createdAt int64
	updatedAt int64
}

type collectionKey struct {
	index, collection string
}

// Store keeps documents in maps guarded by one lock.
type Store struct {
	mu          sync.RWMutex
	collections map[collectionKey]map[string]*record
	now         func() time.Time
	closed      bool
}

var _ storage.Client = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[collectionKey]map[string]*record),
		now:         time.Now,
	}
}

func (s *Store) checkOpen() error {
	if s.closed {
		return fmt.Errorf("%w: memory store is closed", model.ErrUnavailable)
	}
	return nil
}

func (s *Store) docs(index, collection string, create bool) map[string]*record {
	key := collectionKey{index, collection}
	docs, ok := s.collections[key]
	if !ok && create {
		docs = make(map[string]*record)
		s.collections[key] = docs
	}
	return docs
}

func (r *record) canonical(id string) model.CanonicalDocument {
	return model.CanonicalDocument{ID: id, Source: r.source.Clone(), Version: r.version}
}

func (s *Store) Get(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, err
	}
	r, ok := s.docs(index, collection, false)[id]
	if !ok {
		return model.CanonicalDocument{}, storage.NotFound(index, collection, id)
	}
	return r.canonical(id), nil
}

func (s *Store) Create(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error) {
	if id == "" {
		id = model.NewDocumentID()
	} else if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, storage.InvalidID(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, err
	}
	docs := s.docs(index, collection, true)
	if _, exists := docs[id]; exists {
		return model.CanonicalDocument{}, storage.AlreadyExists(index, collection, id)
	}
	r := s.put(docs, id, source)
	return r.canonical(id), nil
}

func (s *Store) CreateOrReplace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, bool, error) {
	if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, false, storage.InvalidID(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, false, err
	}
	docs := s.docs(index, collection, true)
	_, exists := docs[id]
	r := s.put(docs, id, source)
	return r.canonical(id), !exists, nil
}

func (s *Store) Replace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, err
	}
	docs := s.docs(index, collection, false)
	if _, exists := docs[id]; !exists {
		return model.CanonicalDocument{}, storage.NotFound(index, collection, id)
	}
	r := s.put(docs, id, source)
	return r.canonical(id), nil
}

func (s *Store) Update(ctx context.Context, index, collection, id string, changes model.Document) (model.CanonicalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, err
	}
	docs := s.docs(index, collection, false)
	cur, exists := docs[id]
	if !exists {
		return model.CanonicalDocument{}, storage.NotFound(index, collection, id)
	}
	r := s.put(docs, id, cur.source.Merge(changes))
	return r.canonical(id), nil
}

func (s *Store) Upsert(ctx context.Context, index, collection, id string, changes, defaults model.Document) (model.CanonicalDocument, bool, error) {
	if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, false, storage.InvalidID(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, false, err
	}
	docs := s.docs(index, collection, true)
	if cur, exists := docs[id]; exists {
		r := s.put(docs, id, cur.source.Merge(changes))
		return r.canonical(id), false, nil
	}
	r := s.put(docs, id, defaults.Merge(changes))
	return r.canonical(id), true, nil
}

func (s *Store) Delete(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return model.CanonicalDocument{}, err
	}
	docs := s.docs(index, collection, false)
	r, exists := docs[id]
	if !exists {
		return model.CanonicalDocument{}, storage.NotFound(index, collection, id)
	}
	delete(docs, id)
	return r.canonical(id), nil
}

// Search evaluates the filters with the same CEL programs the rooms use.
func (s *Store) Search(ctx context.Context, index, collection string, q model.Query) (*model.SearchResult, error) {
	prg, err := filter.Compile(q.Filters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	if err := s.checkOpen(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	var hits []model.CanonicalDocument
	for id, r := range s.docs(index, collection, false) {
		if prg.Match(r.source) {
			hits = append(hits, r.canonical(id))
		}
	}
	s.mu.RUnlock()

	sortHits(hits, q.OrderBy)
	total := len(hits)
	return &model.SearchResult{Hits: page(hits, q.From, q.Size), Total: total}, nil
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) put(docs map[string]*record, id string, source model.Document) *record {
	now := s.now().UnixMilli()
	r, exists := docs[id]
	if !exists {
		r = &record{createdAt: now}
		docs[id] = r
	}
	r.source = source.Clone()
	if r.source == nil {
		r.source = model.Document{}
	}
	r.version++
	r.updatedAt = now
	return r
}

func page(hits []model.CanonicalDocument, from, size int) []model.CanonicalDocument {
	if from < 0 {
		from = 0
	}
	if from >= len(hits) {
		return []model.CanonicalDocument{}
	}
	hits = hits[from:]
	if size == 0 {
		size = storage.DefaultSearchSize
	}
	if size > 0 && size < len(hits) {
		hits = hits[:size]
	}
	return hits
}

// sortHits orders by the given fields, then by id so pages are stable.
func sortHits(hits []model.CanonicalDocument, orderBy []model.Order) {
	sort.SliceStable(hits, func(i, j int) bool {
		for _, o := range orderBy {
			c := compare(fieldValue(hits[i], o.Field), fieldValue(hits[j], o.Field))
			if c == 0 {
				continue
			}
			if o.Direction == "desc" {
				return c > 0
			}
			return c < 0
		}
		return hits[i].ID < hits[j].ID
	})
}

func fieldValue(doc model.CanonicalDocument, field string) interface{} {
	if field == "_id" {
		return doc.ID
	}
	v, _ := doc.Source.Lookup(field)
	return v
}

// compare orders nil < bool < number < string; other types compare equal.
func compare(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch va := a.(type) {
	case bool:
		vb := b.(bool)
		switch {
		case va == vb:
			return 0
		case !va:
			return -1
		}
		return 1
	case string:
		vb := b.(string)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
		return 0
	}
	if fa, ok := toFloat(a); ok {
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	}
	return 0
}

func rank(v interface{}) int {
	if v == nil {
		return 0
	}
	if _, ok := v.(bool); ok {
		return 1
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	if _, ok := v.(string); ok {
		return 3
	}
	return 4
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
