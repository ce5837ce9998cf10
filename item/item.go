// Package item defines the unit of work handled by the triage queue:
// the Item struct, its derived lifecycle states, healthcare priority
// bands, and the metadata map that carries retry bookkeeping.
package item

import (
	"time"

	"github.com/WebQx/triage/id"
)

// State represents the derived lifecycle state of an item. It is not
// stored on the item itself; the queue derives it from set membership.
type State string

const (
	// StatePending means the item is waiting in the ordered container.
	StatePending State = "pending"
	// StateProcessing means the item has been dequeued but not yet resolved.
	StateProcessing State = "processing"
	// StateCompleted means the item finished successfully (terminal).
	StateCompleted State = "completed"
	// StateFailedTerminal means the item failed with no requeue (terminal).
	// A requeued retry runs as a new item under a new ID.
	StateFailedTerminal State = "failed-terminal"
)

// Healthcare priority bands. Priorities are plain ints with higher values
// dequeued first; these constants name the bands the platform uses, but
// any value is accepted.
const (
	PriorityCritical   = 100
	PriorityUrgent     = 80
	PriorityHigh       = 60
	PriorityRoutine    = 40
	PriorityLow        = 20
	PriorityBackground = 1
)

// Metadata keys maintained by the queue on requeue.
const (
	MetaRetryCount    = "retry_count"
	MetaLastFailureAt = "last_failure_at"
	MetaLastError     = "last_error"
)

// Metadata is an arbitrary key/value map attached to an item. The queue
// treats it as opaque except for the retry bookkeeping keys above.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata. Nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// RetryCount returns the retry counter, or zero when absent.
func (m Metadata) RetryCount() int {
	n, _ := m[MetaRetryCount].(int)
	return n
}

// LastFailure returns the timestamp of the most recent failure, or the
// zero time when the item has never failed.
func (m Metadata) LastFailure() time.Time {
	ts, _ := m[MetaLastFailureAt].(time.Time)
	return ts
}

// Item represents a unit of work in the triage queue. The queue owns the
// item while pending; ownership transfers logically to the worker on
// dequeue, while the queue keeps the item in its processing map so a
// retry never depends on the caller re-supplying the payload.
type Item struct {
	ID         id.ItemID  `json:"id"`
	Payload    []byte     `json:"payload"`
	Priority   int        `json:"priority"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	DequeuedAt *time.Time `json:"dequeued_at,omitempty"`
	Metadata   Metadata   `json:"metadata,omitempty"`
}

// Clone returns a copy of the item with its own metadata map.
// The payload bytes are shared; callers must not mutate them.
func (it *Item) Clone() *Item {
	cp := *it
	cp.Metadata = it.Metadata.Clone()
	if it.DequeuedAt != nil {
		t := *it.DequeuedAt
		cp.DequeuedAt = &t
	}
	return &cp
}

// RetryCount is shorthand for it.Metadata.RetryCount().
func (it *Item) RetryCount() int {
	return it.Metadata.RetryCount()
}
