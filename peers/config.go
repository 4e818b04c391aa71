package peers

import (
	"time"

	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
)

// Config is shared by the seed resolver and the discoverer.
type Config struct {
	// Attempts is the retry ceiling of one phase. Zero means
	// types.DefaultRetryCount.
	Attempts int
	Delay    time.Duration

	// MaxLatencyMs is the highest latency a discovered peer may report.
	// Zero means types.DefaultMaxLatencyMs.
	MaxLatencyMs float64

	Network string
	Logger  logger.Logger
	Metrics metrics.Recorder

	// OnError receives every failed attempt.
	OnError func(phase string, err error)
}

func (c Config) withDefaults() Config {
	if c.Attempts <= 0 {
		c.Attempts = types.DefaultRetryCount
	}
	if c.MaxLatencyMs <= 0 {
		c.MaxLatencyMs = types.DefaultMaxLatencyMs
	}
	if c.Logger == nil {
		c.Logger = logger.NoopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NoopRecorder{}
	}
	if c.OnError == nil {
		c.OnError = func(string, error) {}
	}
	return c
}

func (c Config) labels(phase string) map[string]string {
	return map[string]string{"phase": phase, "network": c.Network}
}

// failed records a failed attempt in logs, metrics and the error hook.
func (c Config) failed(phase string, attempt int, err error) {
	c.Logger.Warn("attempt failed", map[string]any{
		"phase":   phase,
		"attempt": attempt,
		"of":      c.Attempts,
		"error":   err,
	})
	c.Metrics.IncCounter(metrics.Failure, c.labels(phase))
	c.OnError(phase, err)
}
