package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAction_WireValues(t *testing.T) {
	expected := map[WriteAction]int{
		WriteActionCreate:  1,
		WriteActionDelete:  2,
		WriteActionReplace: 3,
		WriteActionUpdate:  4,
		WriteActionUpsert:  5,
		WriteActionWrite:   6,
	}
	for action, v := range expected {
		assert.Equal(t, v, int(action), action.String())
	}
}

func TestWriteAction_JSONIsInteger(t *testing.T) {
	data, err := json.Marshal(struct {
		Action WriteAction `json:"action"`
	}{WriteActionWrite})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":6}`, string(data))
}

func TestParseWriteAction(t *testing.T) {
	a, err := ParseWriteAction(5)
	require.NoError(t, err)
	assert.Equal(t, WriteActionUpsert, a)
	assert.Equal(t, "upsert", a.String())

	_, err = ParseWriteAction(0)
	assert.Error(t, err)
	_, err = ParseWriteAction(7)
	assert.Error(t, err)
	assert.Equal(t, "WriteAction(9)", WriteAction(9).String())
}
