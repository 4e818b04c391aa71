package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
)

// Status is the final state of a poll loop.
type Status int32

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusExpired
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusExpired:
		return "expired"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

// CheckFunc performs one lookup. It must not return errors; failures are
// reported by the callee and surface as an unmatched result.
type CheckFunc func(ctx context.Context) *types.MatchResult

// Config controls a Poller.
type Config struct {
	// Interval between ticks. Zero means one second.
	Interval time.Duration
	// Expiry ends the loop with StatusExpired once elapsed. Zero disables it.
	Expiry   time.Duration

	Check   CheckFunc
	Network string
	Logger  logger.Logger
	Metrics metrics.Recorder
}

// Outcome is what Run returns.
type Outcome struct {
	Status      Status
	Transaction *types.Transaction
	Ticks       int
}

// Poller repeats a check on a fixed interval until it matches, expires or
// is stopped. At most one check is in flight at any time.
type Poller struct {
	cfg Config

	status   atomic.Int32
	inFlight atomic.Bool
	ticks    atomic.Int64

	cancelOnce sync.Once
	cancel     context.CancelFunc
	done       chan struct{}

	mu      sync.Mutex
	matched *types.Transaction
}

func NewPoller(cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	return &Poller{cfg: cfg, done: make(chan struct{})}
}

// Run blocks until the loop finishes. It must be called once.
func (p *Poller) Run(ctx context.Context) Outcome {
	defer close(p.done)

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()
	defer p.stopContext()

	if p.Status() == StatusStopped {
		return p.outcome()
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var expiry <-chan time.Time
	if p.cfg.Expiry > 0 {
		timer := time.NewTimer(p.cfg.Expiry)
		defer timer.Stop()
		expiry = timer.C
	}

	for {
		if p.Tick(ctx) {
			return p.outcome()
		}

		select {
		case <-ctx.Done():
			p.finish(StatusStopped)
			return p.outcome()
		case <-expiry:
			if p.finish(StatusExpired) {
				p.cfg.Metrics.IncCounter(metrics.Expired, p.labels())
				p.cfg.Logger.Info("payment window expired", map[string]any{
					"phase": types.PhasePoll,
					"ticks": p.ticks.Load(),
				})
			}
			return p.outcome()
		case <-ticker.C:
		}
	}
}

// Tick runs one check unless one is already in flight. It reports whether
// the loop has reached a final status.
func (p *Poller) Tick(ctx context.Context) bool {
	if p.Status() != StatusRunning {
		return true
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		p.cfg.Logger.Debug("previous tick still in flight, skipping", map[string]any{"phase": types.PhasePoll})
		return false
	}
	defer p.inFlight.Store(false)

	p.ticks.Add(1)
	p.cfg.Metrics.IncCounter(metrics.PollTick, p.labels())

	start := time.Now()
	result := p.cfg.Check(ctx)
	p.cfg.Metrics.ObserveLatency(metrics.Tick, time.Since(start), p.labels())

	if result == nil || !result.Matched {
		return p.Status() != StatusRunning
	}

	if !p.finish(StatusCompleted) {
		return true
	}

	p.mu.Lock()
	p.matched = result.Transaction
	p.mu.Unlock()

	p.cfg.Metrics.IncCounter(metrics.Completed, p.labels())
	return true
}

// Stop ends the loop at the next tick boundary. A check that matches after
// Stop does not complete the loop. Stop is idempotent.
func (p *Poller) Stop() {
	p.finish(StatusStopped)
	p.stopContext()
}

// Done is closed when Run returns.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) Status() Status {
	return Status(p.status.Load())
}

func (p *Poller) Ticks() int {
	return int(p.ticks.Load())
}

// finish moves the loop out of StatusRunning. Only the first caller wins.
func (p *Poller) finish(s Status) bool {
	return p.status.CompareAndSwap(int32(StatusRunning), int32(s))
}

func (p *Poller) stopContext() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	p.cancelOnce.Do(cancel)
}

func (p *Poller) outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Outcome{
		Status:      p.Status(),
		Transaction: p.matched,
		Ticks:       p.Ticks(),
	}
}

func (p *Poller) labels() map[string]string {
	return map[string]string{"phase": types.PhasePoll, "network": p.cfg.Network}
}
