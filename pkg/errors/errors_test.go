package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap("embedding_error", "embedding request failed", cause)

	require.EqualError(t, err, "embedding request failed: connection reset")
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, "embedding_error"))
	require.False(t, IsCode(err, "llm_error"))
}

func TestCodeOfFindsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("ask: %w", Wrap("index_out_of_range", "no such position", nil))
	require.Equal(t, "index_out_of_range", CodeOf(err))
	require.Equal(t, "", CodeOf(errors.New("plain")))
	require.Equal(t, "", CodeOf(nil))
}
