package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/WebQx/triage/backoff"
	"github.com/WebQx/triage/hook"
	"github.com/WebQx/triage/id"
	"github.com/WebQx/triage/queue"
)

const (
	// DefaultConcurrency is the number of polling goroutines a pool
	// starts when none is configured.
	DefaultConcurrency = 4

	// DefaultPollInterval is the pause after an empty poll before the
	// idle backoff strategy takes over.
	DefaultPollInterval = 50 * time.Millisecond
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency sets the number of polling goroutines.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPollInterval sets the base pause after an empty poll.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithIdleBackoff sets the strategy used to stretch the pause as
// consecutive empty polls accumulate.
func WithIdleBackoff(s backoff.Strategy) PoolOption {
	return func(p *Pool) {
		if s != nil {
			p.idle = s
		}
	}
}

// WithHooks attaches a hook registry for lifecycle notifications.
func WithHooks(r *hook.Registry) PoolOption {
	return func(p *Pool) { p.hooks = r }
}

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pool runs a fixed set of goroutines that poll the queue for work and
// hand each dequeued item to the executor. Empty polls back off so an
// idle pool does not spin.
type Pool struct {
	queue        *queue.Queue
	executor     *Executor
	concurrency  int
	pollInterval time.Duration
	idle         backoff.Strategy
	hooks        *hook.Registry
	logger       *slog.Logger
	workerID     id.WorkerID

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a worker pool draining q through executor.
func NewPool(q *queue.Queue, executor *Executor, opts ...PoolOption) *Pool {
	p := &Pool{
		queue:        q,
		executor:     executor,
		concurrency:  DefaultConcurrency,
		pollInterval: DefaultPollInterval,
		idle:         backoff.DefaultStrategy(),
		logger:       slog.Default(),
		workerID:     id.New(id.PrefixWorker),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the pool's worker identifier.
func (p *Pool) ID() id.WorkerID { return p.workerID }

// Start launches the polling goroutines. Calling Start on a running
// pool is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.pollLoop(i)
	}

	p.logger.Info("worker pool started",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)
}

// Stop signals the polling goroutines and waits for in-flight items to
// finish. The context bounds the wait; on expiry Stop returns its error
// with workers still draining in the background.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("worker pool stop timed out",
			slog.String("worker_id", p.workerID.String()),
		)
		return ctx.Err()
	}

	if p.hooks != nil {
		p.hooks.EmitShutdown(ctx)
	}
	p.logger.Info("worker pool stopped",
		slog.String("worker_id", p.workerID.String()),
	)
	return nil
}

// Running reports whether the pool has been started and not stopped.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pool) pollLoop(slot int) {
	defer p.wg.Done()

	idlePolls := 0
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		it, ok := p.queue.Dequeue()
		if !ok {
			idlePolls++
			if !p.idleWait(idlePolls) {
				return
			}
			continue
		}
		idlePolls = 0

		ctx := context.Background()
		if p.hooks != nil {
			p.hooks.EmitItemStarted(ctx, it)
		}
		if err := p.executor.Execute(ctx, it); err != nil {
			p.logger.Debug("item execution failed",
				slog.Int("slot", slot),
				slog.String("item_id", it.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// idleWait sleeps between empty polls, stretching with consecutive
// misses. Returns false when the pool is stopping.
func (p *Pool) idleWait(attempt int) bool {
	d := p.idle.Delay(attempt)
	if d < p.pollInterval {
		d = p.pollInterval
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.stopCh:
		return false
	case <-timer.C:
		return true
	}
}
