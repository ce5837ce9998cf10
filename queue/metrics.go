package queue

import "time"

// Metrics is a derived, read-only snapshot of queue state. It is
// computed on demand so it always reflects the latest state.
type Metrics struct {
	// TotalItems counts items across the live states: pending,
	// processing, and completed.
	TotalItems int64 `json:"total_items"`

	Pending    int   `json:"pending"`
	Processing int   `json:"processing"`
	Completed  int64 `json:"completed"`

	// FailedTerminal counts terminally failed IDs currently retained in
	// the bounded history.
	FailedTerminal int `json:"failed_terminal"`

	// PendingByPriority is the histogram of pending items keyed by
	// exact priority value.
	PendingByPriority map[int]int `json:"pending_by_priority"`

	// AvgProcessingLatency is the arithmetic mean of enqueue-to-completion
	// latency over every completion since construction or Clear. It is
	// maintained incrementally, so capping the terminal-ID history never
	// skews it.
	AvgProcessingLatency time.Duration `json:"avg_processing_latency"`
}

// Metrics returns a fresh snapshot of the queue's derived metrics.
func (q *Queue) Metrics() Metrics {
	q.mu.Lock()
	defer q.mu.Unlock()

	hist := make(map[int]int, 8)
	for _, it := range q.pending {
		hist[it.Priority]++
	}

	return Metrics{
		TotalItems:           int64(len(q.pending)) + int64(len(q.processing)) + q.completedTotal,
		Pending:              len(q.pending),
		Processing:           len(q.processing),
		Completed:            q.completedTotal,
		FailedTerminal:       q.failedTerminal.len(),
		PendingByPriority:    hist,
		AvgProcessingLatency: time.Duration(q.latencyMean),
	}
}
