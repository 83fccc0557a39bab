package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/docflow/internal/storage"
	"github.com/syntrixbase/docflow/internal/storage/memory"
	"github.com/syntrixbase/docflow/pkg/model"
)

func seeded(t *testing.T) storage.Client {
	t.Helper()
	c := memory.New()
	for _, id := range []string{"a", "b"} {
		_, err := c.Create(context.Background(), "nyc", "users", id, model.Document{"name": id, "age": 20})
		require.NoError(t, err)
	}
	return c
}

func TestMGet(t *testing.T) {
	c := seeded(t)
	res := storage.MGet(context.Background(), c, "nyc", "users", []string{"a", "missing"})
	require.Len(t, res.Successes, 1)
	assert.Equal(t, "a", res.Successes[0].ID)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "missing", res.Errors[0].ID)
	assert.Equal(t, 404, res.Errors[0].Status)
}

func TestMCreate_PartialFailure(t *testing.T) {
	c := seeded(t)
	res := storage.MCreate(context.Background(), c, "nyc", "users", []model.CanonicalDocument{
		{ID: "c", Source: model.Document{"x": 1}},
		{ID: "a", Source: model.Document{"x": 2}},
	})
	assert.Equal(t, []model.CanonicalDocument{{ID: "c", Source: model.Document{"x": 1}, Version: 1}}, res.Successes)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 409, res.Errors[0].Status)
	assert.Equal(t, model.Document{"x": 2}, res.Errors[0].Document)
}

func TestMCreateOrReplace_RequiresID(t *testing.T) {
	c := seeded(t)
	res := storage.MCreateOrReplace(context.Background(), c, "nyc", "users", []model.CanonicalDocument{
		{ID: "a", Source: model.Document{"x": 1}},
		{Source: model.Document{"x": 2}},
	})
	assert.Len(t, res.Successes, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 400, res.Errors[0].Status)
}

func TestMReplaceAndMUpdate(t *testing.T) {
	ctx := context.Background()
	c := seeded(t)

	res := storage.MReplace(ctx, c, "nyc", "users", []model.CanonicalDocument{{ID: "a", Source: model.Document{"v": 1}}, {ID: "zz"}})
	assert.Len(t, res.Successes, 1)
	assert.Len(t, res.Errors, 1)

	res = storage.MUpdate(ctx, c, "nyc", "users", []model.CanonicalDocument{{ID: "b", Source: model.Document{"age": 21}}})
	require.Len(t, res.Successes, 1)
	assert.Equal(t, model.Document{"name": "b", "age": 21}, res.Successes[0].Source)
}

func TestMDelete_IDs(t *testing.T) {
	c := seeded(t)
	res := storage.MDelete(context.Background(), c, "nyc", "users", []string{"a", "zz"})
	require.Len(t, res.Successes, 1)
	assert.Equal(t, model.Document{"name": "a", "age": 20}, res.Successes[0].Source)

	ids := storage.IDs(res)
	assert.Equal(t, []string{"a"}, ids.Successes)
	assert.Len(t, ids.Errors, 1)

	empty := storage.IDs(&model.BatchResult{})
	assert.NotNil(t, empty.Errors)
	assert.NotNil(t, empty.Successes)
}

func TestBatch_CanceledContext(t *testing.T) {
	c := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := storage.MGet(ctx, c, "nyc", "users", []string{"a"})
	assert.Empty(t, res.Successes)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 500, res.Errors[0].Status)
}

func TestDeleteByQuery(t *testing.T) {
	ctx := context.Background()
	c := seeded(t)
	_, err := c.Create(ctx, "nyc", "users", "old", model.Document{"age": 90})
	require.NoError(t, err)

	deleted, err := storage.DeleteByQuery(ctx, c, "nyc", "users", model.Filters{{Field: "age", Op: model.OpLt, Value: 50}})
	require.NoError(t, err)
	assert.Len(t, deleted, 2)

	left, err := c.Search(ctx, "nyc", "users", model.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, left.Total)
}

func TestUpdateByQuery(t *testing.T) {
	ctx := context.Background()
	c := seeded(t)
	res, err := storage.UpdateByQuery(ctx, c, "nyc", "users", model.Filters{{Field: "name", Op: model.OpEq, Value: "a"}}, model.Document{"age": 21})
	require.NoError(t, err)
	require.Len(t, res.Successes, 1)
	assert.Equal(t, model.Document{"name": "a", "age": 21}, res.Successes[0].Source)

	_, err = storage.UpdateByQuery(ctx, c, "nyc", "users", model.Filters{{Field: "age", Op: "~"}}, nil)
	assert.Error(t, err)
}
