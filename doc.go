// Package triage provides a priority-ordered work queue with adaptive
// admission control. It protects a backend from overload while guaranteeing
// that urgent work is serviced first.
//
// Triage is designed as a library, not a service. Construct a queue and a
// limiter with explicit configuration and pass them to whatever dispatcher
// or request-handling layer needs them.
//
// # Quick Start
//
//	q, err := queue.New(queue.DefaultConfig())
//	if err != nil { ... }
//	itemID, err := q.Enqueue(payload, item.PriorityCritical, nil)
//
//	mon := traffic.NewMonitor(5 * time.Minute)
//	lim, err := limiter.New(limiter.DefaultConfig(), mon)
//	if err != nil { ... }
//	lim.Start()
//	defer lim.Stop()
//
// # Architecture
//
// Each subsystem lives in its own package: queue (priority-ordered pending
// items and processing-state bookkeeping), traffic (per-endpoint sliding
// window counters and surge prediction), limiter (the admission control
// loop), worker (a pool that drains the queue through middleware), and
// deadletter (terminally failed items kept for inspection and replay).
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package triage
