package guard

import (
	"fmt"

	apperrors "github.com/yanqian/stream-guard-bot/pkg/errors"
)

// Error codes carried by apperrors.AppError values returned from this package.
const (
	CodeInvalidInput    = "invalid_input"
	CodeIndexOutOfRange = "index_out_of_range"
	CodeEmbedding       = "embedding_error"
	CodeCompletion      = "llm_error"
	CodePersistence     = "persistence_error"
)

func errIndexOutOfRange(position, size int) error {
	if size == 0 {
		return apperrors.Wrap(CodeIndexOutOfRange, fmt.Sprintf("position %d is out of range: the FAQ is empty", position), nil)
	}
	return apperrors.Wrap(CodeIndexOutOfRange, fmt.Sprintf("position %d is out of range: expected 1-%d", position, size), nil)
}

// IsIndexOutOfRange reports whether err was caused by an invalid FAQ position.
func IsIndexOutOfRange(err error) bool {
	return apperrors.IsCode(err, CodeIndexOutOfRange)
}

// IsProviderError reports whether err wraps an embedding or completion provider failure.
func IsProviderError(err error) bool {
	return apperrors.IsCode(err, CodeEmbedding) || apperrors.IsCode(err, CodeCompletion)
}
