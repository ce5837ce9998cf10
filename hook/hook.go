// Package hook defines the lifecycle notification system for Triage.
//
// Hooks are notified after state changes — an item completing, a ceiling
// moving, a surge being detected — and can react to them: recording
// metrics, alerting, writing audit logs. Each lifecycle event is a
// separate interface so hooks opt in only to the events they care about.
//
// Delivery ordering is no stronger than "after the state change that
// produced the event". Hook errors are logged and never propagate back
// into queue or limiter state.
package hook

import (
	"context"
	"time"

	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/item"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// ──────────────────────────────────────────────────
// Item lifecycle events
// ──────────────────────────────────────────────────

// ItemStarted is called when a worker begins processing a dequeued item.
type ItemStarted interface {
	OnItemStarted(ctx context.Context, it *item.Item) error
}

// ItemCompleted is called after an item is marked completed.
type ItemCompleted interface {
	OnItemCompleted(ctx context.Context, it *item.Item, elapsed time.Duration) error
}

// ItemFailed is called after an item fails terminally.
type ItemFailed interface {
	OnItemFailed(ctx context.Context, it *item.Item, itemErr error) error
}

// ItemRequeued is called after a failed item is re-enqueued as a new item
// at a decayed priority.
type ItemRequeued interface {
	OnItemRequeued(ctx context.Context, it *item.Item, retryID id.ItemID, newPriority int) error
}

// ItemDeadLettered is called after a terminally failed item is recorded
// in the dead letter store.
type ItemDeadLettered interface {
	OnItemDeadLettered(ctx context.Context, it *item.Item, itemErr error) error
}

// ──────────────────────────────────────────────────
// Admission control events
// ──────────────────────────────────────────────────

// Reason classifies why the control loop moved a ceiling.
type Reason string

const (
	// ReasonHighTraffic means the observed rate exceeded the high
	// threshold and the ceiling contracted.
	ReasonHighTraffic Reason = "HIGH_TRAFFIC_DETECTED"
	// ReasonLowTraffic means the observed rate fell below the low
	// threshold and the ceiling expanded.
	ReasonLowTraffic Reason = "LOW_TRAFFIC_OPTIMIZATION"
	// ReasonTrafficPattern means a predicted traffic pattern (surge)
	// triggered a preemptive adjustment.
	ReasonTrafficPattern Reason = "TRAFFIC_PATTERN_ADJUSTMENT"
)

// CeilingChange describes one admission ceiling adjustment.
type CeilingChange struct {
	Endpoint   string    `json:"endpoint"`
	OldCeiling int       `json:"old_limit"`
	NewCeiling int       `json:"new_limit"`
	Rate       float64   `json:"traffic_rate"`
	Reason     Reason    `json:"reason"`
	At         time.Time `json:"timestamp"`
}

// CeilingChanged is called after the control loop applies a new admission
// ceiling for an endpoint.
type CeilingChanged interface {
	OnCeilingChanged(ctx context.Context, change CeilingChange) error
}

// SurgeDetected is called when the predictor reports an imminent surge
// for an endpoint. Growth is the relative growth across the inspected
// samples (0.5 = 50%).
type SurgeDetected interface {
	OnSurgeDetected(ctx context.Context, endpoint string, growth float64) error
}

// ──────────────────────────────────────────────────
// Other events
// ──────────────────────────────────────────────────

// Shutdown is called when a pool or limiter is shutting down gracefully.
type Shutdown interface {
	OnShutdown(ctx context.Context)
}
