package queue

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/WebQx/triage"
	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/item"
)

// Config defines queue capacity and bookkeeping behaviour.
type Config struct {
	// MaxSize is the maximum number of pending items. Enqueue beyond
	// this fails with triage.ErrCapacityExceeded.
	MaxSize int

	// ProcessingTimeout is the maximum time an item should remain in
	// processing. The queue only records timestamps; enforcement
	// (force-failing stuck items) belongs to the worker pool.
	ProcessingTimeout time.Duration

	// TerminalHistory caps how many completed and failed-terminal item
	// IDs are retained for state queries. Counts and the latency mean
	// are maintained incrementally and are unaffected by eviction.
	TerminalHistory int
}

// DefaultConfig returns a Config with the platform defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:           1000,
		ProcessingTimeout: 5 * time.Minute,
		TerminalHistory:   1024,
	}
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: queue max size must be positive, got %d", triage.ErrInvalidConfig, c.MaxSize)
	}
	if c.ProcessingTimeout < 0 {
		return fmt.Errorf("%w: processing timeout must not be negative, got %s", triage.ErrInvalidConfig, c.ProcessingTimeout)
	}
	if c.TerminalHistory <= 0 {
		return fmt.Errorf("%w: terminal history must be positive, got %d", triage.ErrInvalidConfig, c.TerminalHistory)
	}
	return nil
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger sets the structured logger for the queue.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// Queue is a bounded, priority-ordered container of work items with
// processing-state bookkeeping. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	// pending is kept sorted by priority descending; ties keep
	// insertion order so dequeue is FIFO within a band.
	pending    []*item.Item
	processing map[string]*item.Item

	completed      *terminalSet
	failedTerminal *terminalSet

	// Incremental latency statistics over all completions, independent
	// of terminal-history eviction.
	completedTotal int64
	latencyMean    float64
}

// New creates a Queue. Configuration errors surface here, not later.
func New(cfg Config, opts ...Option) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	q := &Queue{
		cfg:            cfg,
		logger:         slog.Default(),
		now:            time.Now,
		processing:     make(map[string]*item.Item),
		completed:      newTerminalSet(cfg.TerminalHistory),
		failedTerminal: newTerminalSet(cfg.TerminalHistory),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// ProcessingTimeout returns the configured processing deadline for the
// worker pool to enforce.
func (q *Queue) ProcessingTimeout() time.Duration { return q.cfg.ProcessingTimeout }

// Enqueue inserts a new item and returns its generated ID.
// Fails with triage.ErrCapacityExceeded when the pending count is at
// the configured maximum.
func (q *Queue) Enqueue(payload []byte, priority int, meta item.Metadata) (id.ItemID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) >= q.cfg.MaxSize {
		return id.Nil, triage.ErrCapacityExceeded
	}

	it := &item.Item{
		ID:         id.NewItemID(),
		Payload:    payload,
		Priority:   priority,
		EnqueuedAt: q.now().UTC(),
		Metadata:   meta.Clone(),
	}
	q.insert(it)
	return it.ID, nil
}

// insert places it at the binary-searched position: after every pending
// item with priority >= it.Priority, preserving FIFO order within a band.
// Caller holds q.mu.
func (q *Queue) insert(it *item.Item) {
	idx := sort.Search(len(q.pending), func(i int) bool {
		return q.pending[i].Priority < it.Priority
	})
	q.pending = append(q.pending, nil)
	copy(q.pending[idx+1:], q.pending[idx:])
	q.pending[idx] = it
}

// Dequeue removes and returns the head item — highest priority, earliest
// among ties — moving it into the processing map. Returns false on an
// empty queue; it never blocks.
func (q *Queue) Dequeue() (*item.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}

	it := q.pending[0]
	q.pending[0] = nil // release the slot for GC
	q.pending = q.pending[1:]

	deq := q.now().UTC()
	it.DequeuedAt = &deq
	q.processing[it.ID.String()] = it
	return it, true
}

// Peek returns a copy of the head item without any state change.
func (q *Queue) Peek() (*item.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}
	return q.pending[0].Clone(), true
}

// MarkCompleted resolves a processing item as successfully finished and
// records its processing latency (now − enqueue time).
//
// Calling it for an ID that is not currently processing is a warn-logged
// no-op returning triage.ErrInvalidTransition: duplicate completion
// signals are expected under at-least-once delivery from workers.
func (q *Queue) MarkCompleted(itemID id.ItemID) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := itemID.String()
	it, ok := q.processing[key]
	if !ok {
		q.logger.Warn("mark completed: item not in processing",
			slog.String("item_id", key),
		)
		return triage.ErrInvalidTransition
	}

	delete(q.processing, key)
	q.completed.add(key)

	latency := q.now().UTC().Sub(it.EnqueuedAt)
	q.completedTotal++
	q.latencyMean += (float64(latency) - q.latencyMean) / float64(q.completedTotal)
	return nil
}

// FailOptions controls how MarkFailed resolves a processing item.
type FailOptions struct {
	// Requeue re-enqueues a copy of the item under a new ID. Without it
	// the failure is terminal.
	Requeue bool

	// NewPriority overrides the retry priority. When nil the retry runs
	// at max(0, originalPriority-1).
	NewPriority *int

	// Err is recorded in the retry metadata when set.
	Err error
}

// MarkFailed resolves a processing item as failed. The original ID always
// ends in the failed-terminal set. With opts.Requeue the payload is
// re-enqueued as a new item — decayed priority, retry count incremented,
// failure timestamp recorded — and the new ID is returned. A requeue
// against a full queue returns triage.ErrCapacityExceeded; the original
// resolution stands.
//
// Like MarkCompleted, an ID that is not currently processing is a
// warn-logged no-op returning triage.ErrInvalidTransition.
func (q *Queue) MarkFailed(itemID id.ItemID, opts FailOptions) (id.ItemID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := itemID.String()
	it, ok := q.processing[key]
	if !ok {
		q.logger.Warn("mark failed: item not in processing",
			slog.String("item_id", key),
		)
		return id.Nil, triage.ErrInvalidTransition
	}

	delete(q.processing, key)
	q.failedTerminal.add(key)

	if !opts.Requeue {
		return id.Nil, nil
	}

	if len(q.pending) >= q.cfg.MaxSize {
		q.logger.Warn("requeue dropped: queue full",
			slog.String("item_id", key),
		)
		return id.Nil, triage.ErrCapacityExceeded
	}

	newPriority := it.Priority - 1
	if opts.NewPriority != nil {
		newPriority = *opts.NewPriority
	}
	if newPriority < 0 {
		newPriority = 0
	}

	meta := it.Metadata.Clone()
	if meta == nil {
		meta = item.Metadata{}
	}
	meta[item.MetaRetryCount] = meta.RetryCount() + 1
	meta[item.MetaLastFailureAt] = q.now().UTC()
	if opts.Err != nil {
		meta[item.MetaLastError] = opts.Err.Error()
	}

	retry := &item.Item{
		ID:         id.NewItemID(),
		Payload:    it.Payload,
		Priority:   newPriority,
		EnqueuedAt: q.now().UTC(),
		Metadata:   meta,
	}
	q.insert(retry)
	return retry.ID, nil
}

// Remove deletes a pending item before it is dequeued. It has no effect
// on processing or terminal items.
func (q *Queue) Remove(itemID id.ItemID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, it := range q.pending {
		if it.ID == itemID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// IsEmpty reports whether no items are pending.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// ItemsByPriority returns copies of the pending items with exactly the
// given priority, in dequeue order.
func (q *Queue) ItemsByPriority(priority int) []*item.Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*item.Item
	for _, it := range q.pending {
		if it.Priority == priority {
			out = append(out, it.Clone())
		}
	}
	return out
}

// State derives the lifecycle state of an item ID. The second return is
// false when the ID is unknown (which includes terminal IDs evicted from
// the bounded history).
func (q *Queue) State(itemID id.ItemID) (item.State, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := itemID.String()
	for _, it := range q.pending {
		if it.ID == itemID {
			return item.StatePending, true
		}
	}
	if _, ok := q.processing[key]; ok {
		return item.StateProcessing, true
	}
	if q.completed.has(key) {
		return item.StateCompleted, true
	}
	if q.failedTerminal.has(key) {
		return item.StateFailedTerminal, true
	}
	return "", false
}

// Clear atomically drops pending, processing, and terminal state.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = nil
	q.processing = make(map[string]*item.Item)
	q.completed.reset()
	q.failedTerminal.reset()
	q.completedTotal = 0
	q.latencyMean = 0
}

// ──────────────────────────────────────────────────
// Bounded terminal-ID history
// ──────────────────────────────────────────────────

// terminalSet is a FIFO-bounded membership set of item ID strings.
// Once the cap is reached the oldest entry is evicted per add.
type terminalSet struct {
	cap     int
	order   []string
	members map[string]struct{}
}

func newTerminalSet(capacity int) *terminalSet {
	return &terminalSet{
		cap:     capacity,
		members: make(map[string]struct{}, capacity),
	}
}

func (s *terminalSet) add(key string) {
	if _, ok := s.members[key]; ok {
		return
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}
	s.order = append(s.order, key)
	s.members[key] = struct{}{}
}

func (s *terminalSet) has(key string) bool {
	_, ok := s.members[key]
	return ok
}

func (s *terminalSet) len() int { return len(s.members) }

func (s *terminalSet) reset() {
	s.order = nil
	s.members = make(map[string]struct{}, s.cap)
}
