package hook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/item"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItem() *item.Item {
	return &item.Item{
		ID:         id.NewItemID(),
		Payload:    []byte("x"),
		Priority:   item.PriorityRoutine,
		EnqueuedAt: time.Now(),
	}
}

// allEvents implements every event interface and counts deliveries.
type allEvents struct {
	started      int
	completed    int
	failed       int
	requeued     int
	deadLettered int
	ceiling      []CeilingChange
	surges       int
	shutdowns    int
	err          error
}

func (h *allEvents) Name() string { return "all-events" }

func (h *allEvents) OnItemStarted(context.Context, *item.Item) error {
	h.started++
	return h.err
}

func (h *allEvents) OnItemCompleted(context.Context, *item.Item, time.Duration) error {
	h.completed++
	return h.err
}

func (h *allEvents) OnItemFailed(context.Context, *item.Item, error) error {
	h.failed++
	return h.err
}

func (h *allEvents) OnItemRequeued(context.Context, *item.Item, id.ItemID, int) error {
	h.requeued++
	return h.err
}

func (h *allEvents) OnItemDeadLettered(context.Context, *item.Item, error) error {
	h.deadLettered++
	return h.err
}

func (h *allEvents) OnCeilingChanged(_ context.Context, change CeilingChange) error {
	h.ceiling = append(h.ceiling, change)
	return h.err
}

func (h *allEvents) OnSurgeDetected(context.Context, string, float64) error {
	h.surges++
	return h.err
}

func (h *allEvents) OnShutdown(context.Context) {
	h.shutdowns++
}

// completedOnly subscribes to a single event.
type completedOnly struct {
	completed int
}

func (h *completedOnly) Name() string { return "completed-only" }

func (h *completedOnly) OnItemCompleted(context.Context, *item.Item, time.Duration) error {
	h.completed++
	return nil
}

func TestRegistry_DispatchesToImplementedInterfaces(t *testing.T) {
	r := NewRegistry(testLogger())
	all := &allEvents{}
	only := &completedOnly{}
	r.Register(all)
	r.Register(only)

	ctx := context.Background()
	it := testItem()

	r.EmitItemStarted(ctx, it)
	r.EmitItemCompleted(ctx, it, 10*time.Millisecond)
	r.EmitItemFailed(ctx, it, errors.New("boom"))
	r.EmitItemRequeued(ctx, it, id.NewItemID(), it.Priority-1)
	r.EmitItemDeadLettered(ctx, it, errors.New("boom"))
	r.EmitSurgeDetected(ctx, "/api/v1/appointments", 0.8)
	r.EmitShutdown(ctx)

	if all.started != 1 || all.completed != 1 || all.failed != 1 ||
		all.requeued != 1 || all.deadLettered != 1 || all.surges != 1 ||
		all.shutdowns != 1 {
		t.Fatalf("delivery counts = %+v; want one of each", all)
	}

	// The single-event hook sees only its own event.
	if only.completed != 1 {
		t.Fatalf("completed-only deliveries = %d; want 1", only.completed)
	}
}

func TestRegistry_CeilingChangePayload(t *testing.T) {
	r := NewRegistry(testLogger())
	all := &allEvents{}
	r.Register(all)

	change := CeilingChange{
		Endpoint:   "/api/v1/appointments",
		OldCeiling: 100,
		NewCeiling: 90,
		Rate:       95.5,
		Reason:     ReasonHighTraffic,
		At:         time.Now(),
	}
	r.EmitCeilingChanged(context.Background(), change)

	if len(all.ceiling) != 1 {
		t.Fatalf("ceiling deliveries = %d; want 1", len(all.ceiling))
	}
	if all.ceiling[0] != change {
		t.Fatalf("change = %+v; want %+v", all.ceiling[0], change)
	}
}

func TestRegistry_HookErrorDoesNotPropagate(t *testing.T) {
	r := NewRegistry(testLogger())
	failing := &allEvents{err: errors.New("hook exploded")}
	healthy := &allEvents{}
	r.Register(failing)
	r.Register(healthy)

	r.EmitItemCompleted(context.Background(), testItem(), time.Millisecond)

	// The failing hook does not stop delivery to the rest.
	if healthy.completed != 1 {
		t.Fatalf("healthy deliveries = %d; want 1", healthy.completed)
	}
}

func TestRegistry_EmptyRegistryIsSafe(t *testing.T) {
	r := NewRegistry(nil)
	r.EmitItemStarted(context.Background(), testItem())
	r.EmitShutdown(context.Background())
}
