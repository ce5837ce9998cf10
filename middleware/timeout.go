package middleware

import (
	"context"
	"time"

	"github.com/WebQx/triage/item"
)

// Timeout returns middleware that enforces the processing deadline.
// The queue itself only records timestamps; this is where a stuck
// handler actually gets cut off. When the deadline is exceeded the
// context is cancelled and the handler should return
// context.DeadlineExceeded. A non-positive d disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *item.Item, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
