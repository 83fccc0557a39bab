package model

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCanceled(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context.Canceled", context.Canceled, true},
		{"context.DeadlineExceeded", context.DeadlineExceeded, true},
		{"ErrCanceled", ErrCanceled, true},
		{"wrapped context.Canceled", fmt.Errorf("wrapped: %w", context.Canceled), true},
		{"string contains context canceled", errors.New("operation failed: context canceled"), true},
		{"unrelated error", errors.New("some other error"), false},
		{"ErrNotFound", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCanceled(tt.err))
		})
	}
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil))
	assert.ErrorIs(t, WrapError(context.Canceled), ErrCanceled)
	other := errors.New("boom")
	assert.Equal(t, other, WrapError(other))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"assertion", AssertionFailed("no extractor for %s", "foo"), KindInternal},
		{"invalid type", InvalidType("ids", 42, "Array or String"), KindBadRequest},
		{"missing", MissingArgument("body"), KindBadRequest},
		{"wrapped classified", fmt.Errorf("ctx: %w", MissingArgument("index")), KindBadRequest},
		{"sentinel not found", fmt.Errorf("get: %w", ErrNotFound), KindNotFound},
		{"sentinel exists", ErrExists, KindConflict},
		{"sentinel forbidden", ErrPermissionDenied, KindForbidden},
		{"sentinel unavailable", ErrUnavailable, KindUnavailable},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
	assert.Equal(t, ErrorKind(0), KindOf(nil))
}

func TestNewError_WrapsSentinel(t *testing.T) {
	err := InvalidType("ids", 42, "Array or String")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "api.assert.invalid_type", ErrorID(err))
	assert.Contains(t, err.Error(), `"ids"`)
	assert.Contains(t, err.Error(), "int")

	assert.ErrorIs(t, AssertionFailed("x"), ErrAssertionFailed)
	assert.Equal(t, "core.fatal.unexpected_error", ErrorID(errors.New("boom")))
	assert.Equal(t, "services.storage.not_found", ErrorID(ErrNotFound))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 200, StatusOf(nil))
	assert.Equal(t, 400, StatusOf(MissingArgument("body")))
	assert.Equal(t, 404, StatusOf(fmt.Errorf("get: %w", ErrNotFound)))
	assert.Equal(t, 409, StatusOf(ErrExists))
	assert.Equal(t, 403, StatusOf(ErrPermissionDenied))
	assert.Equal(t, 503, StatusOf(ErrUnavailable))
	assert.Equal(t, 500, StatusOf(AssertionFailed("boom")))
	assert.Equal(t, 499, StatusOf(context.Canceled))
}
