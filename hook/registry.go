package hook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/item"
)

// Named entry types pair an event implementation with the hook name
// captured at registration time. This avoids type-asserting back to
// Hook inside the emit methods.
type itemStartedEntry struct {
	name string
	hook ItemStarted
}

type itemCompletedEntry struct {
	name string
	hook ItemCompleted
}

type itemFailedEntry struct {
	name string
	hook ItemFailed
}

type itemRequeuedEntry struct {
	name string
	hook ItemRequeued
}

type itemDeadLetteredEntry struct {
	name string
	hook ItemDeadLettered
}

type ceilingChangedEntry struct {
	name string
	hook CeilingChanged
}

type surgeDetectedEntry struct {
	name string
	hook SurgeDetected
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry fans lifecycle events out to every registered hook that
// implements the corresponding interface. Safe for concurrent use;
// registration is expected at setup time but is not restricted to it.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger

	itemStarted      []itemStartedEntry
	itemCompleted    []itemCompletedEntry
	itemFailed       []itemFailedEntry
	itemRequeued     []itemRequeuedEntry
	itemDeadLettered []itemDeadLetteredEntry
	ceilingChanged   []ceilingChangedEntry
	surgeDetected    []surgeDetectedEntry
	shutdown         []shutdownEntry
}

// NewRegistry creates an empty hook registry. A nil logger falls back to
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register inspects the hook and subscribes it to every event interface
// it implements.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()

	if v, ok := h.(ItemStarted); ok {
		r.itemStarted = append(r.itemStarted, itemStartedEntry{name, v})
	}
	if v, ok := h.(ItemCompleted); ok {
		r.itemCompleted = append(r.itemCompleted, itemCompletedEntry{name, v})
	}
	if v, ok := h.(ItemFailed); ok {
		r.itemFailed = append(r.itemFailed, itemFailedEntry{name, v})
	}
	if v, ok := h.(ItemRequeued); ok {
		r.itemRequeued = append(r.itemRequeued, itemRequeuedEntry{name, v})
	}
	if v, ok := h.(ItemDeadLettered); ok {
		r.itemDeadLettered = append(r.itemDeadLettered, itemDeadLetteredEntry{name, v})
	}
	if v, ok := h.(CeilingChanged); ok {
		r.ceilingChanged = append(r.ceilingChanged, ceilingChangedEntry{name, v})
	}
	if v, ok := h.(SurgeDetected); ok {
		r.surgeDetected = append(r.surgeDetected, surgeDetectedEntry{name, v})
	}
	if v, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, v})
	}
}

// logHookError logs a hook failure without propagating it.
func (r *Registry) logHookError(event, name string, err error) {
	r.logger.Error("hook failed",
		slog.String("event", event),
		slog.String("hook", name),
		slog.String("error", err.Error()),
	)
}

// EmitItemStarted notifies ItemStarted hooks.
func (r *Registry) EmitItemStarted(ctx context.Context, it *item.Item) {
	r.mu.RLock()
	entries := r.itemStarted
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnItemStarted(ctx, it); err != nil {
			r.logHookError("item_started", e.name, err)
		}
	}
}

// EmitItemCompleted notifies ItemCompleted hooks.
func (r *Registry) EmitItemCompleted(ctx context.Context, it *item.Item, elapsed time.Duration) {
	r.mu.RLock()
	entries := r.itemCompleted
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnItemCompleted(ctx, it, elapsed); err != nil {
			r.logHookError("item_completed", e.name, err)
		}
	}
}

// EmitItemFailed notifies ItemFailed hooks.
func (r *Registry) EmitItemFailed(ctx context.Context, it *item.Item, itemErr error) {
	r.mu.RLock()
	entries := r.itemFailed
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnItemFailed(ctx, it, itemErr); err != nil {
			r.logHookError("item_failed", e.name, err)
		}
	}
}

// EmitItemRequeued notifies ItemRequeued hooks.
func (r *Registry) EmitItemRequeued(ctx context.Context, it *item.Item, retryID id.ItemID, newPriority int) {
	r.mu.RLock()
	entries := r.itemRequeued
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnItemRequeued(ctx, it, retryID, newPriority); err != nil {
			r.logHookError("item_requeued", e.name, err)
		}
	}
}

// EmitItemDeadLettered notifies ItemDeadLettered hooks.
func (r *Registry) EmitItemDeadLettered(ctx context.Context, it *item.Item, itemErr error) {
	r.mu.RLock()
	entries := r.itemDeadLettered
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnItemDeadLettered(ctx, it, itemErr); err != nil {
			r.logHookError("item_dead_lettered", e.name, err)
		}
	}
}

// EmitCeilingChanged notifies CeilingChanged hooks.
func (r *Registry) EmitCeilingChanged(ctx context.Context, change CeilingChange) {
	r.mu.RLock()
	entries := r.ceilingChanged
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnCeilingChanged(ctx, change); err != nil {
			r.logHookError("ceiling_changed", e.name, err)
		}
	}
}

// EmitSurgeDetected notifies SurgeDetected hooks.
func (r *Registry) EmitSurgeDetected(ctx context.Context, endpoint string, growth float64) {
	r.mu.RLock()
	entries := r.surgeDetected
	r.mu.RUnlock()

	for _, e := range entries {
		if err := e.hook.OnSurgeDetected(ctx, endpoint, growth); err != nil {
			r.logHookError("surge_detected", e.name, err)
		}
	}
}

// EmitShutdown notifies Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	entries := r.shutdown
	r.mu.RUnlock()

	for _, e := range entries {
		e.hook.OnShutdown(ctx)
	}
}
