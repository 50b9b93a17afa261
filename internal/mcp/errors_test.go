package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_DocErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"mode mismatch", docerrors.New(docerrors.ErrCodeModeMismatch, "mode differs", nil), ErrCodeStoreMismatch},
		{"dimension mismatch", docerrors.New(docerrors.ErrCodeDimensionMismatch, "dim differs", nil), ErrCodeStoreMismatch},
		{"query dimension", docerrors.New(docerrors.ErrCodeQueryDimensionMismatch, "query dim", nil), ErrCodeStoreMismatch},
		{"embedding", docerrors.EmbeddingError("provider down", nil), ErrCodeEmbeddingFailed},
		{"locked", docerrors.New(docerrors.ErrCodeStoreLocked, "busy", nil), ErrCodeStoreLocked},
		{"corrupt index", docerrors.New(docerrors.ErrCodeCorruptIndex, "bad crc", nil), ErrCodeStoreCorrupt},
		{"corrupt metadata", docerrors.New(docerrors.ErrCodeFileCorrupt, "bad json", nil), ErrCodeStoreCorrupt},
		{"file not found", docerrors.New(docerrors.ErrCodeFileNotFound, "gone", nil), ErrCodeFileNotFound},
		{"validation", docerrors.ValidationError("bad input", nil), ErrCodeInvalidParams},
		{"wrapped", fmt.Errorf("indexing: %w", docerrors.EmbeddingError("x", nil)), ErrCodeEmbeddingFailed},
		{"internal", docerrors.InternalError("boom", nil), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Code)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	// Given: a DocError with a suggestion
	err := docerrors.New(docerrors.ErrCodeModeMismatch, "store holds provider vectors", nil).
		WithSuggestion("Reset the store to switch modes")

	// When: mapping
	got := MapError(err)

	// Then: both parts reach the client
	assert.Contains(t, got.Message, "store holds provider vectors")
	assert.Contains(t, got.Message, "Reset the store")
}

func TestMapError_ContextErrors(t *testing.T) {
	assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	assert.Equal(t, ErrCodeTimeout, MapError(context.Canceled).Code)
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("k must be positive")
	assert.Same(t, orig, MapError(fmt.Errorf("wrap: %w", orig)))
}

func TestMapError_Unknown(t *testing.T) {
	got := MapError(errors.New("something odd"))
	assert.Equal(t, ErrCodeInternalError, got.Code)
	assert.Equal(t, "something odd", got.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("search")
	assert.Equal(t, "MCP error -32601: Tool 'search' not found.", err.Error())
}
