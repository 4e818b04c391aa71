package arkpay

import (
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
)

type Option func(*Gateway)

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		if r != nil {
			g.metrics = r
		}
	}
}

// WithTimeout bounds every HTTP request.
func WithTimeout(t time.Duration) Option {
	return func(g *Gateway) {
		if t > 0 {
			g.timeout = t
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithTokenGenerator sets the source of vendor fields for new sessions.
func WithTokenGenerator(gen types.TokenGenerator) Option {
	return func(g *Gateway) {
		if gen != nil {
			g.tokens = gen
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithExpiry ends polling with an expired event d after start. Zero
// disables expiry.
func WithExpiry(d time.Duration) Option {
	return func(g *Gateway) {
		g.expiry = d
	}
}

// WithRetry sets the attempt ceiling of the seed, peer and rate phases and
// the pause between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(g *Gateway) {
		if attempts > 0 {
			g.attempts = attempts
		}
		g.retryDelay = delay
	}
}

// WithMaxLatency sets the highest latency, in milliseconds, a discovered
// peer may report.
func WithMaxLatency(ms float64) Option {
	return func(g *Gateway) {
		if ms > 0 {
			g.maxLatency = ms
		}
	}
}

func WithRateSource(url string) Option {
	return func(g *Gateway) {
		if url != "" {
			g.rateURL = url
		}
	}
}

func WithRateConvention(c types.RateConvention) Option {
	return func(g *Gateway) {
		if c != "" {
			g.convention = c
		}
	}
}

// WithRandom sets the source used to pick peers.
func WithRandom(rnd *rand.Rand) Option {
	return func(g *Gateway) {
		if rnd == nil {
			g.rnd = nil
			return
		}
		g.rnd = rand.New(&lockedSource{src: rnd})
	}
}

// lockedSource lets the registries of successive sessions share one source.
type lockedSource struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

// WithClients replaces the HTTP collaborators. Nil arguments keep the
// default clients.
func WithClients(seeds clients.SeedSource, nodes clients.NodeClient, rates clients.RateSource) Option {
	return func(g *Gateway) {
		if seeds != nil {
			g.seedSource = seeds
		}
		if nodes != nil {
			g.nodes = nodes
		}
		if rates != nil {
			g.rateSource = rates
		}
	}
}

func withDefaults(network, coin, currency string, seeds types.Seeds) Option {
	return func(g *Gateway) {
		if network != "" {
			g.network = network
		}
		if coin != "" {
			g.coin = coin
		}
		if currency != "" {
			g.currency = currency
		}
		if len(seeds) > 0 {
			g.seeds = seeds.Clone()
		}
	}
}
