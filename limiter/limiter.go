// Package limiter implements traffic-driven admission control: a
// periodic control loop that observes per-endpoint request rates and
// adjusts a bounded admission ceiling using proportional feedback,
// emitting a change notification for every adjustment it applies.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/WebQx/triage"
	"github.com/WebQx/triage/hook"
	"github.com/WebQx/triage/traffic"
)

// Config defines the control loop behaviour. All values have defaults;
// thresholds and bounds are configuration, never hard-coded in the loop.
type Config struct {
	// LowTrafficThreshold is the observed rate (req/s) below which the
	// ceiling expands.
	LowTrafficThreshold float64

	// HighTrafficThreshold is the observed rate (req/s) above which the
	// ceiling contracts.
	HighTrafficThreshold float64

	// MinCeiling and MaxCeiling bound every adjusted ceiling.
	MinCeiling int
	MaxCeiling int

	// DefaultCeiling seeds new endpoints and answers ceiling queries
	// for endpoints with no recorded traffic.
	DefaultCeiling int

	// MonitoringInterval is how often the adjustment pass runs.
	MonitoringInterval time.Duration

	// Sensitivity is the proportional step per adjustment. A value of
	// 0.10 contracts to 90% or expands to 110% of the current ceiling.
	Sensitivity float64
}

// DefaultConfig returns a Config with the platform defaults.
func DefaultConfig() Config {
	return Config{
		LowTrafficThreshold:  10,
		HighTrafficThreshold: 80,
		MinCeiling:           50,
		MaxCeiling:           200,
		DefaultCeiling:       100,
		MonitoringInterval:   time.Minute,
		Sensitivity:          0.10,
	}
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.LowTrafficThreshold < 0 || c.HighTrafficThreshold < 0 {
		return fmt.Errorf("%w: traffic thresholds must not be negative", triage.ErrInvalidConfig)
	}
	if c.LowTrafficThreshold >= c.HighTrafficThreshold {
		return fmt.Errorf("%w: low threshold %.2f must be below high threshold %.2f",
			triage.ErrInvalidConfig, c.LowTrafficThreshold, c.HighTrafficThreshold)
	}
	if c.MinCeiling <= 0 || c.MaxCeiling < c.MinCeiling {
		return fmt.Errorf("%w: ceiling bounds [%d, %d] are not a valid range",
			triage.ErrInvalidConfig, c.MinCeiling, c.MaxCeiling)
	}
	if c.DefaultCeiling < c.MinCeiling || c.DefaultCeiling > c.MaxCeiling {
		return fmt.Errorf("%w: default ceiling %d outside [%d, %d]",
			triage.ErrInvalidConfig, c.DefaultCeiling, c.MinCeiling, c.MaxCeiling)
	}
	if c.MonitoringInterval <= 0 {
		return fmt.Errorf("%w: monitoring interval must be positive, got %s",
			triage.ErrInvalidConfig, c.MonitoringInterval)
	}
	if c.Sensitivity <= 0 || c.Sensitivity >= 1 {
		return fmt.Errorf("%w: sensitivity must be in (0, 1), got %.2f",
			triage.ErrInvalidConfig, c.Sensitivity)
	}
	return nil
}

// endpointState is the per-endpoint limiter state. Created on first
// recorded traffic, mutated only by the adjustment pass, removed only
// by an explicit Reset.
type endpointState struct {
	ceiling      int
	lastAdjusted time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger sets the structured logger for the limiter.
func WithLogger(l *slog.Logger) Option {
	return func(lm *Limiter) { lm.logger = l }
}

// WithHooks sets the registry notified of ceiling changes and surges.
func WithHooks(r *hook.Registry) Option {
	return func(lm *Limiter) { lm.hooks = r }
}

// WithPredictor wires a surge predictor into the adjustment pass so the
// loop can contract preemptively before the rate itself turns high.
func WithPredictor(p *traffic.Predictor) Option {
	return func(lm *Limiter) { lm.predictor = p }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(lm *Limiter) { lm.now = now }
}

// Limiter adjusts per-endpoint admission ceilings from observed traffic.
// Request handlers call Record on every arrival and read Ceiling as
// their admission check; the periodic loop owns all ceiling mutation.
// Safe for concurrent use.
type Limiter struct {
	cfg       Config
	monitor   *traffic.Monitor
	predictor *traffic.Predictor
	hooks     *hook.Registry
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	endpoints map[string]*endpointState

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a Limiter reading rates from the given monitor.
// Configuration errors surface here, not later.
func New(cfg Config, monitor *traffic.Monitor, opts ...Option) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	lm := &Limiter{
		cfg:       cfg,
		monitor:   monitor,
		logger:    slog.Default(),
		now:       time.Now,
		endpoints: make(map[string]*endpointState),
	}
	for _, opt := range opts {
		opt(lm)
	}
	return lm, nil
}

// Record logs the arrival of count requests on endpoint, seeding the
// endpoint's limiter state at the default ceiling on first observation.
// Record is the only way endpoint state comes into existence.
func (lm *Limiter) Record(endpoint string, count int) {
	lm.monitor.Record(endpoint, count)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	if _, ok := lm.endpoints[endpoint]; !ok {
		lm.endpoints[endpoint] = &endpointState{ceiling: lm.cfg.DefaultCeiling}
	}
}

// Ceiling returns the current admission ceiling for endpoint, or the
// configured default for an unknown endpoint. Reading never creates
// state.
func (lm *Limiter) Ceiling(endpoint string) int {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if st, ok := lm.endpoints[endpoint]; ok {
		return st.ceiling
	}
	return lm.cfg.DefaultCeiling
}

// LastAdjusted returns when the loop last moved the endpoint's ceiling.
// The zero time means never (or unknown endpoint).
func (lm *Limiter) LastAdjusted(endpoint string) time.Time {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if st, ok := lm.endpoints[endpoint]; ok {
		return st.lastAdjusted
	}
	return time.Time{}
}

// Endpoints returns every endpoint with limiter state.
func (lm *Limiter) Endpoints() []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	out := make([]string, 0, len(lm.endpoints))
	for ep := range lm.endpoints {
		out = append(out, ep)
	}
	return out
}

// Reset drops the endpoint's limiter state and retained samples. The
// next Record re-seeds it at the default ceiling.
func (lm *Limiter) Reset(endpoint string) {
	lm.monitor.Reset(endpoint)

	lm.mu.Lock()
	defer lm.mu.Unlock()
	delete(lm.endpoints, endpoint)
}

// Monitoring reports whether the control loop is running.
func (lm *Limiter) Monitoring() bool {
	lm.runMu.Lock()
	defer lm.runMu.Unlock()
	return lm.running
}

// Start launches the recurring adjustment loop. Starting an already
// monitoring limiter is a no-op.
func (lm *Limiter) Start() {
	lm.runMu.Lock()
	defer lm.runMu.Unlock()

	if lm.running {
		return
	}
	lm.running = true
	lm.stopCh = make(chan struct{})

	lm.logger.Info("adaptive limiter starting",
		slog.Duration("interval", lm.cfg.MonitoringInterval),
	)

	lm.wg.Add(1)
	go lm.run(lm.stopCh)
}

// Stop halts the loop. An in-flight adjustment pass finishes first; no
// further pass runs after Stop returns. Stopping an idle limiter is a
// no-op.
func (lm *Limiter) Stop() {
	lm.runMu.Lock()
	if !lm.running {
		lm.runMu.Unlock()
		return
	}
	lm.running = false
	close(lm.stopCh)
	lm.runMu.Unlock()

	lm.wg.Wait()

	if lm.hooks != nil {
		lm.hooks.EmitShutdown(context.Background())
	}
	lm.logger.Info("adaptive limiter stopped")
}

func (lm *Limiter) run(stopCh <-chan struct{}) {
	defer lm.wg.Done()

	ticker := time.NewTicker(lm.cfg.MonitoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			lm.Adjust()
		}
	}
}

// Adjust runs one adjustment pass over every known endpoint. The loop
// calls it on each tick; tests and callers with their own scheduling
// may invoke it directly.
func (lm *Limiter) Adjust() {
	lm.mu.Lock()
	endpoints := make([]string, 0, len(lm.endpoints))
	for ep := range lm.endpoints {
		endpoints = append(endpoints, ep)
	}
	lm.mu.Unlock()

	for _, ep := range endpoints {
		lm.adjustEndpoint(ep)
	}
}

// adjustEndpoint applies the bounded proportional algorithm to one
// endpoint: contract above the high threshold, expand below the low
// threshold, hold otherwise — unless the predictor reports a surge, in
// which case a preemptive contraction fires instead of a hold or an
// expansion.
func (lm *Limiter) adjustEndpoint(endpoint string) {
	r := lm.monitor.Rate(endpoint).RequestsPerSecond

	surge := false
	if lm.predictor != nil {
		pred, err := lm.predictor.Predict(endpoint)
		if err == nil && pred.Surge {
			surge = true
			if lm.hooks != nil {
				lm.hooks.EmitSurgeDetected(context.Background(), endpoint, pred.Growth)
			}
		}
	}

	lm.mu.Lock()
	st, ok := lm.endpoints[endpoint]
	if !ok {
		lm.mu.Unlock()
		return
	}
	current := st.ceiling

	next := current
	var reason hook.Reason
	switch {
	case r > lm.cfg.HighTrafficThreshold:
		next = lm.contract(current)
		reason = hook.ReasonHighTraffic
	case surge:
		next = lm.contract(current)
		reason = hook.ReasonTrafficPattern
	case r < lm.cfg.LowTrafficThreshold:
		next = lm.expand(current)
		reason = hook.ReasonLowTraffic
	}

	if next == current {
		lm.mu.Unlock()
		return
	}

	now := lm.now().UTC()
	st.ceiling = next
	st.lastAdjusted = now
	lm.mu.Unlock()

	lm.logger.Info("admission ceiling adjusted",
		slog.String("endpoint", endpoint),
		slog.Int("old_ceiling", current),
		slog.Int("new_ceiling", next),
		slog.Float64("rate", r),
		slog.String("reason", string(reason)),
	)

	if lm.hooks != nil {
		lm.hooks.EmitCeilingChanged(context.Background(), hook.CeilingChange{
			Endpoint:   endpoint,
			OldCeiling: current,
			NewCeiling: next,
			Rate:       r,
			Reason:     reason,
			At:         now,
		})
	}
}

// fpEpsilon absorbs float drift so floor/ceil land on the intended
// integer (110 * 1.1 is 121.00000000000001 in float64).
const fpEpsilon = 1e-9

// contract steps the ceiling down proportionally, bounded below.
func (lm *Limiter) contract(ceiling int) int {
	next := int(math.Floor(float64(ceiling)*(1-lm.cfg.Sensitivity) + fpEpsilon))
	if next < lm.cfg.MinCeiling {
		return lm.cfg.MinCeiling
	}
	return next
}

// expand steps the ceiling up proportionally, bounded above.
func (lm *Limiter) expand(ceiling int) int {
	next := int(math.Ceil(float64(ceiling)*(1+lm.cfg.Sensitivity) - fpEpsilon))
	if next > lm.cfg.MaxCeiling {
		return lm.cfg.MaxCeiling
	}
	return next
}
