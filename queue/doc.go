// Package queue implements the priority-ordered work queue at the heart
// of Triage.
//
// Pending items are kept in non-increasing priority order with stable
// FIFO ordering inside a priority band, so a critical item enqueued
// after a backlog of routine work is still dequeued first. Dequeued
// items move into a processing map — the queue keeps the payload so a
// failed item can be requeued without the caller re-supplying it.
// Completion latency and per-priority counts are exposed as an
// always-fresh Metrics snapshot.
//
// A single mutex guards every mutation; the ordered insertion and the
// processing-set bookkeeping are not independently safe to interleave.
package queue
