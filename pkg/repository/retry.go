package repository

import (
	"context"

	apperrors "github.com/wollisellis/vireiaestatistica-sub002/internal/common/errors"
)

// WithConflictRetry runs fn up to maxAttempts times while it fails with a
// CONCURRENT_MODIFICATION error. Any other error, or success, returns immediately.
// fn must re-read everything it writes on each call.
func WithConflictRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperrors.IsCode(err, apperrors.CodeConcurrentModification) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return err
		}
	}
	return err
}
