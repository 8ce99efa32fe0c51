package repository

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
	"go.uber.org/zap"
)

const maxRetries = 3

// withRetry runs op up to maxRetries+1 times with exponential backoff.
// Validation and business-rule errors never reach this layer; everything that
// does is treated as transient until the retry budget is exhausted, at which
// point the error surfaces wrapped as a persistence failure. Context
// cancellation stops the retry loop immediately.
func withRetry(ctx context.Context, log *logger.Logger, operation string, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), maxRetries), ctx)

	attempt := 0

	err := backoff.Retry(func() error {
		attempt++

		opErr := op()

		var permanent *backoff.PermanentError
		if opErr != nil && attempt <= maxRetries && !errors.As(opErr, &permanent) {
			log.Warn("persistence operation failed, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(opErr),
			)
		}

		return opErr
	}, policy)
	if err != nil {
		// Permanent business errors keep their own code.
		var typed *errors.Error
		if errors.As(err, &typed) {
			return typed
		}

		if ctx.Err() != nil {
			return errors.Wrapf(errors.ErrCodePersistenceFailed, err, "%s cancelled", operation)
		}

		return errors.Wrapf(errors.ErrCodeRetryExhausted, err, "%s failed after %d attempts", operation, attempt)
	}

	return nil
}

// backoffPermanent marks an error as non-retryable.
func backoffPermanent(err error) error {
	return backoff.Permanent(err)
}

// isUniqueViolation reports whether err is a primary-key or unique-constraint
// violation. Both backends say "duplicate key": DuckDB as
// `Duplicate key "..." violates primary key constraint`, Postgres as
// `duplicate key value violates unique constraint "..."`.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}

func newBackOff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = 10 * time.Second

	return policy
}
