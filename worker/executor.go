// Package worker drains the triage queue — an Executor that runs a
// single item through middleware and resolves the outcome (complete,
// requeue at decayed priority, or dead-letter), and a Pool of
// goroutines that poll for work.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/WebQx/triage"
	"github.com/WebQx/triage/deadletter"
	"github.com/WebQx/triage/hook"
	"github.com/WebQx/triage/item"
	"github.com/WebQx/triage/middleware"
	"github.com/WebQx/triage/queue"
)

// Handler processes one dequeued item.
type Handler func(ctx context.Context, it *item.Item) error

// Executor runs a single item through middleware and the handler, then
// resolves it against the queue: success marks it completed; failure
// with retry budget left requeues it at a decayed priority; exhausted
// retries end in the dead letter store.
//
// The executor is also where the configured processing timeout is
// enforced — Recover and Timeout middleware wrap every execution ahead
// of any caller-supplied middleware.
type Executor struct {
	queue      *queue.Queue
	handler    Handler
	hooks      *hook.Registry
	dead       *deadletter.Store
	maxRetries int
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. hooks and dead may be nil, disabling
// lifecycle notifications and dead-lettering respectively. maxRetries
// is how many requeues an item's lineage gets before failing terminally.
func NewExecutor(
	q *queue.Queue,
	handler Handler,
	hooks *hook.Registry,
	dead *deadletter.Store,
	maxRetries int,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	chain := make([]middleware.Middleware, 0, len(mws)+2)
	chain = append(chain,
		middleware.Recover(logger),
		middleware.Timeout(q.ProcessingTimeout()),
	)
	chain = append(chain, mws...)

	return &Executor{
		queue:      q,
		handler:    handler,
		hooks:      hooks,
		dead:       dead,
		maxRetries: maxRetries,
		mw:         middleware.Chain(chain...),
		logger:     logger,
	}
}

// Execute processes one item and resolves its lifecycle state.
func (e *Executor) Execute(ctx context.Context, it *item.Item) error {
	terminal := func(ctx context.Context) error {
		return e.handler(ctx, it)
	}

	start := time.Now()
	err := e.mw(ctx, it, terminal)
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, it, err)
	}
	return e.handleSuccess(ctx, it, elapsed)
}

func (e *Executor) handleSuccess(ctx context.Context, it *item.Item, elapsed time.Duration) error {
	if err := e.queue.MarkCompleted(it.ID); err != nil {
		e.logger.Warn("completion did not apply",
			slog.String("item_id", it.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	if e.hooks != nil {
		e.hooks.EmitItemCompleted(ctx, it, elapsed)
	}
	return nil
}

// handleFailure requeues the item when retry budget remains, otherwise
// fails it terminally and records the dead letter entry.
func (e *Executor) handleFailure(ctx context.Context, it *item.Item, handlerErr error) error {
	if it.RetryCount() < e.maxRetries {
		retryID, markErr := e.queue.MarkFailed(it.ID, queue.FailOptions{
			Requeue: true,
			Err:     handlerErr,
		})
		switch {
		case markErr == nil:
			if e.hooks != nil {
				e.hooks.EmitItemRequeued(ctx, it, retryID, max(0, it.Priority-1))
			}
			e.logger.Info("item requeued after failure",
				slog.String("item_id", it.ID.String()),
				slog.String("retry_id", retryID.String()),
				slog.Int("attempt", it.RetryCount()+1),
				slog.Int("max_retries", e.maxRetries),
				slog.String("error", handlerErr.Error()),
			)
			return handlerErr
		case errors.Is(markErr, triage.ErrCapacityExceeded):
			// No room for the retry; fall through to terminal handling
			// so the payload is not lost silently.
			e.logger.Warn("retry rejected by full queue, dead-lettering",
				slog.String("item_id", it.ID.String()),
			)
			e.deadLetter(ctx, it, handlerErr)
			return handlerErr
		default:
			return markErr
		}
	}

	if _, markErr := e.queue.MarkFailed(it.ID, queue.FailOptions{Err: handlerErr}); markErr != nil {
		return markErr
	}
	e.deadLetter(ctx, it, handlerErr)

	e.logger.Warn("item failed terminally",
		slog.String("item_id", it.ID.String()),
		slog.Int("retry_count", it.RetryCount()),
		slog.String("error", handlerErr.Error()),
	)
	return handlerErr
}

func (e *Executor) deadLetter(ctx context.Context, it *item.Item, handlerErr error) {
	if e.hooks != nil {
		e.hooks.EmitItemFailed(ctx, it, handlerErr)
	}
	if e.dead == nil {
		return
	}
	e.dead.Push(it, handlerErr)
	if e.hooks != nil {
		e.hooks.EmitItemDeadLettered(ctx, it, handlerErr)
	}
}
