package indexer

import (
	"context"
	"errors"

	apperrors "github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/bm25-search/pkg/resilience"
)

// Warm loads the document store at startup, retrying transient failures. A
// store that holds no documents yet leaves the engine uninitialised and is
// not an error.
func Warm(ctx context.Context, e *Engine, retry resilience.RetryConfig) error {
	if e.store == nil {
		e.logger.Info("no document store configured, starting empty")
		return nil
	}
	retry.Retryable = func(err error) bool {
		return !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrInvalidInput)
	}
	err := resilience.Retry(ctx, "warm index", retry, func() error {
		_, err := e.Load(ctx)
		return err
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		e.logger.Info("document store is empty, waiting for first add")
		return nil
	}
	return err
}
