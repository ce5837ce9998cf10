package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/WebQx/triage/item"
)

// Logging returns middleware that logs item start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *item.Item, next Handler) error {
		logger.Info("item processing started",
			slog.String("item_id", it.ID.String()),
			slog.Int("priority", it.Priority),
			slog.Int("retry_count", it.RetryCount()),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("item processing failed",
				slog.String("item_id", it.ID.String()),
				slog.Int("priority", it.Priority),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("item processing completed",
				slog.String("item_id", it.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
