package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/WebQx/triage/hook"
)

// Gate enforces the adaptive ceilings with per-endpoint token buckets.
// The ceiling is interpreted as requests per enforcement window (one
// minute by default), refilled continuously. Register the gate on the
// limiter's hook registry to retune buckets the moment a ceiling moves;
// unregistered gates pick changes up lazily on the next Allow.
//
// Safe for concurrent use.
type Gate struct {
	limiter *Limiter
	window  time.Duration

	mu      sync.Mutex
	buckets map[string]*gateBucket
}

type gateBucket struct {
	ceiling int
	bucket  *rate.Limiter
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithEnforcementWindow sets the span a ceiling's worth of requests is
// spread over. Defaults to one minute.
func WithEnforcementWindow(d time.Duration) GateOption {
	return func(g *Gate) { g.window = d }
}

// NewGate creates a Gate enforcing the given limiter's ceilings.
func NewGate(lm *Limiter, opts ...GateOption) *Gate {
	g := &Gate{
		limiter: lm,
		window:  time.Minute,
		buckets: make(map[string]*gateBucket),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name implements hook.Hook.
func (g *Gate) Name() string { return "admission-gate" }

// Allow records the arrival on endpoint and reports whether the request
// is admitted under the endpoint's current ceiling.
func (g *Gate) Allow(endpoint string) bool {
	g.limiter.Record(endpoint, 1)
	return g.bucketFor(endpoint, g.limiter.Ceiling(endpoint)).Allow()
}

// bucketFor returns the endpoint's token bucket, creating or retuning
// it to match the given ceiling.
func (g *Gate) bucketFor(endpoint string, ceiling int) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	gb, ok := g.buckets[endpoint]
	if !ok {
		gb = &gateBucket{
			ceiling: ceiling,
			bucket:  rate.NewLimiter(g.refill(ceiling), ceiling),
		}
		g.buckets[endpoint] = gb
		return gb.bucket
	}

	if gb.ceiling != ceiling {
		gb.ceiling = ceiling
		gb.bucket.SetLimit(g.refill(ceiling))
		gb.bucket.SetBurst(ceiling)
	}
	return gb.bucket
}

// refill converts a per-window ceiling into a continuous refill rate.
func (g *Gate) refill(ceiling int) rate.Limit {
	return rate.Limit(float64(ceiling) / g.window.Seconds())
}

// OnCeilingChanged implements hook.CeilingChanged: the bucket retunes as
// soon as the control loop applies a new ceiling.
func (g *Gate) OnCeilingChanged(_ context.Context, change hook.CeilingChange) error {
	g.bucketFor(change.Endpoint, change.NewCeiling)
	return nil
}
