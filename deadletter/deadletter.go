// Package deadletter keeps terminally failed items available for
// inspection and replay. The store is a bounded in-memory window —
// durability across restarts is explicitly out of scope — evicting its
// oldest entries once the cap is reached.
package deadletter

import (
	"sort"
	"sync"
	"time"

	"github.com/WebQx/triage"
	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/item"
)

// DefaultCapacity bounds the in-memory window when none is configured.
const DefaultCapacity = 512

// Entry represents an item that failed terminally and was moved to the
// dead letter store for inspection or replay.
type Entry struct {
	ID         id.DeadLetterID `json:"id"`
	ItemID     id.ItemID       `json:"item_id"`
	Payload    []byte          `json:"payload"`
	Priority   int             `json:"priority"`
	Error      string          `json:"error"`
	RetryCount int             `json:"retry_count"`
	Metadata   item.Metadata   `json:"metadata,omitempty"`
	FailedAt   time.Time       `json:"failed_at"`
	ReplayedAt *time.Time      `json:"replayed_at,omitempty"`
}

// Enqueuer is the slice of the queue interface Replay needs.
type Enqueuer interface {
	Enqueue(payload []byte, priority int, meta item.Metadata) (id.ItemID, error)
}

// Store is a bounded in-memory dead letter store. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	cap     int
	order   []string // entry IDs oldest first
	entries map[string]*Entry
}

// NewStore creates a Store holding at most capacity entries.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		cap:     capacity,
		entries: make(map[string]*Entry, capacity),
	}
}

// Push records a terminally failed item, evicting the oldest entry if
// the store is at capacity. Returns the new entry's ID.
func (s *Store) Push(it *item.Item, itemErr error) id.DeadLetterID {
	errMsg := ""
	if itemErr != nil {
		errMsg = itemErr.Error()
	}

	entry := &Entry{
		ID:         id.NewDeadLetterID(),
		ItemID:     it.ID,
		Payload:    it.Payload,
		Priority:   it.Priority,
		Error:      errMsg,
		RetryCount: it.RetryCount(),
		Metadata:   it.Metadata.Clone(),
		FailedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	key := entry.ID.String()
	s.order = append(s.order, key)
	s.entries[key] = entry
	return entry.ID
}

// Get returns the entry with the given ID.
func (s *Store) Get(entryID id.DeadLetterID) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[entryID.String()]
	if !ok {
		return nil, triage.ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

// List returns every retained entry, newest first.
func (s *Store) List() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		cp := *entry
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].FailedAt.After(out[k].FailedAt)
	})
	return out
}

// Count returns the number of retained entries.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Purge drops every retained entry.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.entries = make(map[string]*Entry, s.cap)
}

// Replay re-enqueues the entry's payload at the given priority and
// stamps the entry as replayed. An entry can be replayed once; a second
// attempt fails with triage.ErrAlreadyReplayed.
func (s *Store) Replay(entryID id.DeadLetterID, q Enqueuer, priority int) (id.ItemID, error) {
	s.mu.Lock()
	entry, ok := s.entries[entryID.String()]
	if !ok {
		s.mu.Unlock()
		return id.Nil, triage.ErrEntryNotFound
	}
	if entry.ReplayedAt != nil {
		s.mu.Unlock()
		return id.Nil, triage.ErrAlreadyReplayed
	}
	payload := entry.Payload
	meta := entry.Metadata.Clone()
	s.mu.Unlock()

	// Enqueue outside the lock; the queue has its own mutex.
	itemID, err := q.Enqueue(payload, priority, meta)
	if err != nil {
		return id.Nil, err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	entry.ReplayedAt = &now
	s.mu.Unlock()
	return itemID, nil
}
