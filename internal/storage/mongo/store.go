// Package mongo is the MongoDB storage backend. All documents live in one
// data collection keyed by index, collection and document id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	dataField = "data"

	DefaultDatabase   = "docflow"
	DefaultCollection = "documents"
)

// Config holds the connection settings.
type Config struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	Collection     string        `yaml:"collection"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type record struct {
	Key        string                 `bson:"_id"`
	Index      string                 `bson:"index"`
	Collection string                 `bson:"collection"`
	DocID      string                 `bson:"doc_id"`
	Data       map[string]interface{} `bson:"data"`
	Version    int64                  `bson:"version"`
	CreatedAt  int64                  `bson:"created_at"`
	UpdatedAt  int64                  `bson:"updated_at"`
}

func (r *record) canonical() model.CanonicalDocument {
	source := model.Document{}
	for k, v := range r.Data {
		source[k] = normalize(v)
	}
	return model.CanonicalDocument{ID: r.DocID, Source: source, Version: r.Version}
}

// Store implements storage.Client on MongoDB.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ storage.Client = (*Store)(nil)

// Connect opens a client, pings the server and ensures the indexes.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := NewStore(client, client.Database(cfg.Database).Collection(cfg.Collection))
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	slog.Info("Connected to MongoDB", "database", cfg.Database, "collection", cfg.Collection)
	return s, nil
}

// NewStore wraps an existing client and data collection.
func NewStore(client *mongo.Client, coll *mongo.Collection) *Store {
	return &Store{client: client, coll: coll, now: time.Now}
}

func key(index, collection, id string) string {
	return index + "/" + collection + "/" + id
}

// EnsureIndexes creates necessary indexes
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "index", Value: 1}, {Key: "collection", Value: 1}, {Key: "doc_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *Store) Get(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error) {
	var r record
	err := s.coll.FindOne(ctx, bson.M{"_id": key(index, collection, id)}).Decode(&r)
	if err != nil {
		return model.CanonicalDocument{}, s.mapError(err, index, collection, id)
	}
	return r.canonical(), nil
}

func (s *Store) Create(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error) {
	if id == "" {
		id = model.NewDocumentID()
	} else if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, storage.InvalidID(id)
	}
	now := s.now().UnixMilli()
	r := record{
		Key:        key(index, collection, id),
		Index:      index,
		Collection: collection,
		DocID:      id,
		Data:       source,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if r.Data == nil {
		r.Data = map[string]interface{}{}
	}
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.CanonicalDocument{}, storage.AlreadyExists(index, collection, id)
		}
		return model.CanonicalDocument{}, model.WrapError(err)
	}
	return r.canonical(), nil
}

func (s *Store) CreateOrReplace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, bool, error) {
	if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, false, storage.InvalidID(id)
	}
	r, err := s.write(ctx, index, collection, id, s.replacement(source), true)
	if err != nil {
		return model.CanonicalDocument{}, false, err
	}
	return r.canonical(), r.Version == 1, nil
}

func (s *Store) Replace(ctx context.Context, index, collection, id string, source model.Document) (model.CanonicalDocument, error) {
	r, err := s.write(ctx, index, collection, id, s.replacement(source), false)
	if err != nil {
		return model.CanonicalDocument{}, err
	}
	return r.canonical(), nil
}

func (s *Store) Update(ctx context.Context, index, collection, id string, changes model.Document) (model.CanonicalDocument, error) {
	set := flatten(dataField, changes, bson.M{})
	set["updated_at"] = s.now().UnixMilli()
	r, err := s.write(ctx, index, collection, id, bson.M{"$set": set, "$inc": bson.M{"version": 1}}, false)
	if err != nil {
		return model.CanonicalDocument{}, err
	}
	return r.canonical(), nil
}

func (s *Store) Upsert(ctx context.Context, index, collection, id string, changes, defaults model.Document) (model.CanonicalDocument, bool, error) {
	if !model.CheckDocumentID(id) {
		return model.CanonicalDocument{}, false, storage.InvalidID(id)
	}
	now := s.now().UnixMilli()
	set := flatten(dataField, changes, bson.M{})
	onInsert := withoutConflicts(flatten(dataField, defaults, bson.M{}), set)
	if len(set) == 0 && len(onInsert) == 0 {
		// an empty data object still has to exist on insert
		onInsert[dataField] = bson.M{}
	}
	set["updated_at"] = now
	onInsert["created_at"] = now

	r, err := s.write(ctx, index, collection, id, bson.M{
		"$set":         set,
		"$setOnInsert": onInsert,
		"$inc":         bson.M{"version": 1},
	}, true)
	if err != nil {
		return model.CanonicalDocument{}, false, err
	}
	return r.canonical(), r.Version == 1, nil
}

func (s *Store) Delete(ctx context.Context, index, collection, id string) (model.CanonicalDocument, error) {
	var r record
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": key(index, collection, id)}).Decode(&r)
	if err != nil {
		return model.CanonicalDocument{}, s.mapError(err, index, collection, id)
	}
	return r.canonical(), nil
}

func (s *Store) Search(ctx context.Context, index, collection string, q model.Query) (*model.SearchResult, error) {
	filter, err := makeFilterBSON(index, collection, q.Filters)
	if err != nil {
		return nil, err
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, model.WrapError(err)
	}

	findOptions := options.Find().SetSort(makeSort(q.OrderBy))
	if q.From > 0 {
		findOptions.SetSkip(int64(q.From))
	}
	switch {
	case q.Size == 0:
		findOptions.SetLimit(storage.DefaultSearchSize)
	case q.Size > 0:
		findOptions.SetLimit(int64(q.Size))
	}

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	var records []record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, model.WrapError(err)
	}
	hits := make([]model.CanonicalDocument, len(records))
	for i := range records {
		hits[i] = records[i].canonical()
	}
	return &model.SearchResult{Hits: hits, Total: int(total)}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.client != nil {
		return s.client.Disconnect(ctx)
	}
	return nil
}

func (s *Store) replacement(source model.Document) bson.M {
	if source == nil {
		source = model.Document{}
	}
	now := s.now().UnixMilli()
	return bson.M{
		"$set":         bson.M{dataField: map[string]interface{}(source), "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
		"$inc":         bson.M{"version": 1},
	}
}

// write applies update to the document and returns it as stored after the update.
func (s *Store) write(ctx context.Context, index, collection, id string, update bson.M, upsert bool) (*record, error) {
	if upsert {
		// identity fields are only written when the document is created
		onInsert, _ := update["$setOnInsert"].(bson.M)
		if onInsert == nil {
			onInsert = bson.M{}
		}
		onInsert["index"] = index
		onInsert["collection"] = collection
		onInsert["doc_id"] = id
		update["$setOnInsert"] = onInsert
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(upsert)
	var r record
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": key(index, collection, id)}, update, opts).Decode(&r)
	if err != nil {
		return nil, s.mapError(err, index, collection, id)
	}
	return &r, nil
}

func (s *Store) mapError(err error, index, collection, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.NotFound(index, collection, id)
	}
	return model.WrapError(err)
}

// normalize converts decoded BSON containers into the plain maps and slices
// the rest of the code expects.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.M:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case primitive.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case int32:
		return int64(val)
	default:
		return v
	}
}
