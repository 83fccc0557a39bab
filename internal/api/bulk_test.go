package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/docflow/internal/request"
	"github.com/syntrixbase/docflow/internal/storage/memory"
	"github.com/syntrixbase/docflow/pkg/model"
)

func bulkRequest(action string, args, body map[string]interface{}) *request.Request {
	return newRequest(request.ControllerBulk, action, args, body)
}

func TestBulkController_Write(t *testing.T) {
	store := memory.New()
	c := NewBulkController(store, nil)
	ctx := context.Background()

	quiet := bulkRequest(request.ActionWrite, map[string]interface{}{"_id": "a"}, map[string]interface{}{"name": "Ada"})
	doc, err := c.Write(ctx, quiet)
	require.NoError(t, err)
	// written as is, without metadata
	assert.Equal(t, model.Document{"name": "Ada"}, doc.Source)
	_, ok := quiet.Written()
	assert.False(t, ok)

	loud := bulkRequest(request.ActionWrite, map[string]interface{}{"notify": true}, map[string]interface{}{"name": "Bob"})
	doc, err = c.Write(ctx, loud)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)

	w := written(t, loud)
	assert.Equal(t, model.WriteActionWrite, w.Action)
	assert.Equal(t, doc.ID, w.Documents[0].ID)
}

func TestBulkController_MWrite(t *testing.T) {
	store := memory.New()
	notifier := &recordingNotifier{}
	f := NewFunnel(nil, WithNotifier(notifier))
	f.Register(request.ControllerBulk, NewBulkController(store, nil).Actions())
	ctx := context.Background()

	body := map[string]interface{}{
		"documents": []interface{}{
			map[string]interface{}{"_id": "a", "body": map[string]interface{}{"n": 1}},
			map[string]interface{}{"body": map[string]interface{}{"n": 2}},
			map[string]interface{}{"_id": "bad/id", "body": map[string]interface{}{"n": 3}},
		},
	}

	req := bulkRequest(request.ActionMWrite, nil, body)
	require.NoError(t, f.Execute(ctx, req))
	res := req.Result().(*model.BatchResult)
	assert.Len(t, res.Successes, 2)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad/id", res.Errors[0].ID)
	assert.Empty(t, notifier.notifications())

	req = bulkRequest(request.ActionMWrite, map[string]interface{}{"notify": "true"}, body)
	require.NoError(t, f.Execute(ctx, req))
	res = req.Result().(*model.BatchResult)
	sent := notifier.notifications()
	require.Len(t, sent, 1)
	assert.Equal(t, model.WriteActionWrite, sent[0].Action)
	assert.Equal(t, res.Successes, sent[0].Docs)

	err := f.Execute(ctx, bulkRequest(request.ActionMWrite, map[string]interface{}{"strict": true}, body))
	assert.Equal(t, ErrIDIncompleteRequest, model.ErrorID(err))
	// strict failures without notify are not notified
	assert.Len(t, notifier.notifications(), 1)

	err = f.Execute(ctx, bulkRequest(request.ActionMWrite, nil, map[string]interface{}{"documents": []interface{}{}}))
	assert.Equal(t, "api.assert.empty_argument", model.ErrorID(err))
}

func TestBulkController_ByQuery(t *testing.T) {
	store := memory.New()
	c := NewBulkController(store, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Create(ctx, "nyc", "users", id, model.Document{"group": id == "c"})
		require.NoError(t, err)
	}
	query := map[string]interface{}{
		"filters": []interface{}{map[string]interface{}{"field": "group", "op": "==", "value": false}},
	}

	updated, err := c.UpdateByQuery(ctx, bulkRequest(ActionBulkUpdateByQuery, nil, map[string]interface{}{
		"query":   query,
		"changes": map[string]interface{}{"flag": 1},
	}))
	require.NoError(t, err)
	assert.Equal(t, &UpdatedResult{Updated: 2}, updated)

	got, err := store.Get(ctx, "nyc", "users", "a")
	require.NoError(t, err)
	assert.Equal(t, model.Document{"group": false, "flag": 1}, got.Source)

	deleted, err := c.DeleteByQuery(ctx, bulkRequest(ActionBulkDeleteByQuery, nil, map[string]interface{}{"query": query}))
	require.NoError(t, err)
	assert.Equal(t, &DeletedResult{Deleted: 2}, deleted)

	tests := []struct {
		name  string
		body  map[string]interface{}
		errID string
	}{
		{"malformed query", map[string]interface{}{"query": []interface{}{}, "changes": map[string]interface{}{}}, "api.assert.invalid_type"},
		{"missing changes", map[string]interface{}{"query": query}, "api.assert.missing_argument"},
		{"malformed changes", map[string]interface{}{"query": query, "changes": 42}, "api.assert.invalid_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.UpdateByQuery(ctx, bulkRequest(ActionBulkUpdateByQuery, nil, tt.body))
			assert.Equal(t, tt.errID, model.ErrorID(err))
		})
	}
}

func importData(lines ...interface{}) map[string]interface{} {
	return map[string]interface{}{"bulkData": lines}
}

func TestBulkController_Import(t *testing.T) {
	store := memory.New()
	c := NewBulkController(store, nil)
	ctx := context.Background()
	_, err := store.Create(ctx, "nyc", "users", "old", model.Document{"n": 0})
	require.NoError(t, err)

	req := bulkRequest(request.ActionImport, nil, importData(
		map[string]interface{}{"create": map[string]interface{}{"_id": "a"}},
		map[string]interface{}{"n": 1},
		map[string]interface{}{"create": map[string]interface{}{}},
		map[string]interface{}{"n": 2},
		map[string]interface{}{"index": map[string]interface{}{"_id": "old"}},
		map[string]interface{}{"n": 3},
		map[string]interface{}{"delete": map[string]interface{}{"_id": "a"}},
	))
	res, err := c.Import(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Successes, 4)
	assert.Equal(t, "a", res.Successes[0].ID)
	assert.NotEmpty(t, res.Successes[1].ID)
	assert.Equal(t, "old", res.Successes[2].ID)
	assert.Equal(t, "a", res.Successes[3].ID)

	// items run in order: "a" was created, then deleted
	_, err = store.Get(ctx, "nyc", "users", "a")
	assert.Equal(t, model.KindNotFound, model.KindOf(err))
	got, err := store.Get(ctx, "nyc", "users", "old")
	require.NoError(t, err)
	assert.Equal(t, model.Document{"n": 3}, got.Source)

	_, ok := req.Written()
	assert.False(t, ok)
}

func TestBulkController_ImportErrors(t *testing.T) {
	store := memory.New()
	c := NewBulkController(store, nil)
	ctx := context.Background()
	_, err := store.Create(ctx, "nyc", "users", "a", model.Document{})
	require.NoError(t, err)

	data := importData(
		map[string]interface{}{"create": map[string]interface{}{"_id": "a"}},
		map[string]interface{}{"n": 1},
		map[string]interface{}{"delete": map[string]interface{}{"_id": "missing"}},
	)

	res, err := c.Import(ctx, bulkRequest(request.ActionImport, nil, data))
	require.NoError(t, err)
	assert.Empty(t, res.Successes)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 409, res.Errors[0].Status)
	assert.Equal(t, 404, res.Errors[1].Status)

	_, err = c.Import(ctx, bulkRequest(request.ActionImport, map[string]interface{}{"strict": true}, data))
	assert.Equal(t, ErrIDIncompleteRequest, model.ErrorID(err))
	assert.Equal(t, model.KindBadRequest, model.KindOf(err))
}

func TestBulkController_ImportInvalidData(t *testing.T) {
	c := NewBulkController(memory.New(), nil)

	tests := []struct {
		name  string
		body  map[string]interface{}
		errID string
	}{
		{"missing bulkData", map[string]interface{}{}, "api.assert.missing_argument"},
		{"scalar bulkData", map[string]interface{}{"bulkData": "nope"}, "api.assert.invalid_type"},
		{"empty bulkData", importData(), "api.assert.empty_argument"},
		{"unknown action", importData(map[string]interface{}{"upsert": map[string]interface{}{}}, map[string]interface{}{}), "api.assert.invalid_type"},
		{"two actions in a line", importData(map[string]interface{}{"create": nil, "index": nil}, map[string]interface{}{}), "api.assert.invalid_type"},
		{"missing document", importData(map[string]interface{}{"index": map[string]interface{}{"_id": "a"}}), "api.assert.missing_argument"},
		{"scalar document", importData(map[string]interface{}{"index": map[string]interface{}{"_id": "a"}}, 42), "api.assert.invalid_type"},
		{"delete without id", importData(map[string]interface{}{"delete": map[string]interface{}{}}), "api.assert.missing_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Import(context.Background(), bulkRequest(request.ActionImport, nil, tt.body))
			assert.Equal(t, tt.errID, model.ErrorID(err))
		})
	}
}
