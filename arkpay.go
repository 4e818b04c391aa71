// Package arkpay watches an ARK network for an incoming transfer that pays a
// fiat-denominated amount to a recipient, tagged with a unique vendor field.
//
// A Gateway owns one session: it bootstraps and refreshes a set of peers,
// converts the fiat amount with an exchange-rate feed and polls random peers
// until a matching transaction shows up.
package arkpay

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/peers"
	"github.com/vitwit/arkpay/rates"
	"github.com/vitwit/arkpay/settlement"
	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
	"github.com/vitwit/arkpay/verification"
)

var (
	errEmptyPeers = &types.GatewayError{
		Code:    types.ErrInvalidInput,
		Message: "peers must be a non-empty list",
	}
	errSessionReset = &types.GatewayError{
		Code:    types.ErrSessionClosed,
		Message: "session was reset",
	}
)

// Gateway runs a single payment session.
type Gateway struct {
	mu       sync.Mutex
	session  *types.Session
	registry *peers.Registry
	err      error
	busy     bool
	run      *pollRun
	// gen counts resets; work started under an older gen must not touch
	// the current session.
	gen      uint64

	events *Emitter

	// session defaults restored by Reset and abort
	network  string
	coin     string
	currency string
	seeds    types.Seeds

	seedSource clients.SeedSource
	nodes      clients.NodeClient
	rateSource clients.RateSource

	httpClient   *http.Client
	logger       logger.Logger
	metrics      metrics.Recorder
	timeout      time.Duration
	tokens       types.TokenGenerator
	pollInterval time.Duration
	expiry       time.Duration
	attempts     int
	retryDelay   time.Duration
	maxLatency   float64
	rateURL      string
	convention   types.RateConvention
	rnd          *rand.Rand
}

type pollRun struct {
	poller  *settlement.Poller
	// settled is closed once the session state reflects the outcome.
	settled chan struct{}
	// done is closed after the final event has been delivered.
	done    chan struct{}
}

// New creates a gateway with a fresh idle session.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		timeout:      30 * time.Second,
		tokens:       utils.UUIDToken,
		pollInterval: time.Second,
		attempts:     types.DefaultRetryCount,
		maxLatency:   types.DefaultMaxLatencyMs,
		rateURL:      types.DefaultRateSourceURL,
		convention:   types.RateCryptoPerFiat,
		network:      types.NetworkDevnet,
		coin:         types.CoinARK,
		currency:     "USD",
		seeds:        types.DefaultSeeds(),
	}

	for _, opt := range opts {
		opt(g)
	}

	clientOpts := clients.Options{
		HTTPClient: g.httpClient,
		Timeout:    g.timeout,
		Logger:     g.logger,
		Metrics:    g.metrics,
		Network:    g.network,
	}
	if g.seedSource == nil || g.nodes == nil {
		ark := clients.NewArkClient(clientOpts)
		if g.seedSource == nil {
			g.seedSource = ark
		}
		if g.nodes == nil {
			g.nodes = ark
		}
	}
	if g.rateSource == nil {
		g.rateSource = clients.NewRateClient(g.rateURL, clientOpts)
	}

	g.events = newEmitter(g.logger)
	g.registry = peers.NewRegistry(g.rnd)
	g.session = g.newSession()
	return g
}

// NewFromConfig validates cfg and creates a gateway from it. opts are
// applied after the ones derived from cfg.
func NewFromConfig(cfg *types.GatewayConfig, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		cfg = types.DefaultConfig()
	}
	cfg.ApplyDefaults()
	if err := utils.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger.New(cfg.LogBackend, cfg.LogLevel)),
		WithTimeout(cfg.RequestTimeout.Duration),
		WithPollInterval(cfg.PollInterval.Duration),
		WithExpiry(cfg.ExpiresAfter.Duration),
		WithRetry(cfg.RetryCount, cfg.RetryDelay.Duration),
		WithMaxLatency(float64(cfg.MaxLatencyMs)),
		WithRateSource(cfg.RateSourceURL),
		WithRateConvention(cfg.RateConvention),
		WithTokenGenerator(utils.TokenGeneratorFor(cfg.VendorFieldGenerator)),
		withDefaults(cfg.Network, cfg.Coin, cfg.Currency, cfg.Seeds),
	}

	return New(append(base, opts...)...), nil
}

func (g *Gateway) newSession() *types.Session {
	s := types.NewSession(g.tokens())
	s.Network.Name = g.network
	s.Network.Coin = g.coin
	s.Transfer.Currency = g.currency
	s.Seeds = g.seeds.Clone()
	return s
}

// On registers a handler for kind.
func (g *Gateway) On(kind EventKind, h Handler) *Gateway {
	g.events.On(kind, h)
	return g
}

// OnAny registers a handler for every event.
func (g *Gateway) OnAny(h Handler) *Gateway {
	g.events.OnAny(h)
	return g
}

// Recipient sets the address the transfer must be sent to.
func (g *Gateway) Recipient(address string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Transfer.Recipient = strings.TrimSpace(address)
	return g
}

// Amount sets the fiat amount. A previously derived crypto amount is
// discarded.
func (g *Gateway) Amount(fiat decimal.Decimal) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Transfer.Amounts.Fiat = fiat
	g.clearConversionLocked()
	return g
}

func (g *Gateway) VendorField(vendorField string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Transfer.VendorField = vendorField
	return g
}

func (g *Gateway) Currency(currency string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Transfer.Currency = strings.ToUpper(currency)
	g.clearConversionLocked()
	return g
}

func (g *Gateway) Coin(coin string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Network.Coin = coin
	g.clearConversionLocked()
	return g
}

func (g *Gateway) Network(network string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Network.Name = network
	return g
}

// Seeds sets the seed list URL of each network for coin.
func (g *Gateway) Seeds(coin string, networks map[string]string) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()

	cp := make(map[string]string, len(networks))
	for name, url := range networks {
		cp[strings.ToLower(name)] = url
	}
	g.session.Seeds[strings.ToLower(coin)] = cp
	return g
}

// Peers replaces the known peers with list and turns auto-discovery off. A
// nil or empty list is invalid input, reported by Err, Prepare and Start.
func (g *Gateway) Peers(list []types.Peer) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(list) == 0 {
		g.err = errEmptyPeers
		return g
	}

	if g.err == errEmptyPeers {
		g.err = nil
	}
	g.registry.Replace(list)
	g.session.AutoDiscoverPeers = false
	return g
}

// Err returns the invalid input recorded by a setter, if any.
func (g *Gateway) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// ToObject returns a deep copy of the current session.
func (g *Gateway) ToObject() *types.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// State reports the position of the session in its lifecycle.
func (g *Gateway) State() types.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.session.State
}

// Reset stops any running poll loop and restores a default session with a
// fresh vendor field. A Prepare or Start still in flight keeps working on
// the old session and returns a SESSION_CLOSED error.
func (g *Gateway) Reset() *Gateway {
	g.Stop()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
	return g
}

// Prepare validates the session, fills the peer set and converts the fiat
// amount. It does not poll. Exhausting the retries of a phase aborts the
// session: it is reset, listeners get an aborted event and a
// SESSION_ABORTED error is returned.
func (g *Gateway) Prepare(ctx context.Context) error {
	g.mu.Lock()
	if err := g.admitLocked(); err != nil {
		g.mu.Unlock()
		return err
	}
	g.busy = true
	gen := g.gen
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
	}()

	return g.prepare(ctx, gen)
}

// Start prepares the session when needed, emits started and polls in the
// background until a transfer matches, the session expires, Stop is called
// or ctx is done.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	if err := g.admitLocked(); err != nil {
		g.mu.Unlock()
		return err
	}
	g.busy = true
	gen := g.gen
	converted := g.session.Converted()
	g.mu.Unlock()

	release := func() {
		g.mu.Lock()
		g.busy = false
		g.mu.Unlock()
	}

	if !converted {
		if err := g.prepare(ctx, gen); err != nil {
			release()
			return err
		}
	}

	g.mu.Lock()
	if g.gen != gen {
		g.busy = false
		g.mu.Unlock()
		return errSessionReset
	}
	exp, err := verification.NewExpectation(g.session)
	if err != nil {
		g.busy = false
		g.mu.Unlock()
		return &types.GatewayError{Code: types.ErrInvalidInput, Message: "session is not converted", Err: err}
	}

	network := g.session.Network.Name
	run := &pollRun{settled: make(chan struct{}), done: make(chan struct{})}

	matcher := verification.NewMatcher(g.nodes, g.registry, verification.Config{
		Network: network,
		Logger:  g.logger,
		Metrics: g.metrics,
		OnError: func(phase string, err error) {
			if run.poller.Status() != settlement.StatusRunning || errors.Is(err, context.Canceled) {
				return
			}
			g.reportError(phase, err)
		},
	})
	run.poller = settlement.NewPoller(settlement.Config{
		Interval: g.pollInterval,
		Expiry:   g.expiry,
		Network:  network,
		Logger:   g.logger,
		Metrics:  g.metrics,
		Check: func(ctx context.Context) *types.MatchResult {
			return matcher.Match(ctx, exp)
		},
	})

	g.run = run
	g.busy = false
	g.session.Started = true
	g.session.State = types.StatePolling
	snapshot := g.snapshotLocked()
	g.mu.Unlock()

	g.logger.Info("session started", map[string]any{
		"recipient":   exp.Recipient,
		"vendorField": exp.VendorField,
		"amount":      exp.Amount.String(),
		"network":     network,
	})
	g.events.emit(Event{Kind: EventStarted, Session: snapshot})

	go g.watch(ctx, run)
	return nil
}

// Stop ends polling at the next tick boundary. When Stop wins, the session
// is idle on return; a transfer matched or an expiry reached before Stop is
// still reported and Stop waits until the session reflects it. A lookup in
// flight may finish after Stop returns, Done tells when it has. Stop is
// idempotent and safe to call from event handlers.
func (g *Gateway) Stop() {
	g.mu.Lock()
	run := g.run
	g.mu.Unlock()
	if run == nil {
		return
	}

	run.poller.Stop()
	if run.poller.Status() != settlement.StatusStopped {
		<-run.settled
		return
	}

	g.mu.Lock()
	if g.run == run {
		g.stoppedLocked()
	}
	g.mu.Unlock()
}

// Done is closed when the current poll loop has finished and its final
// event has been delivered. Without a running loop it is already closed.
func (g *Gateway) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.run == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return g.run.done
}

func (g *Gateway) watch(ctx context.Context, run *pollRun) {
	defer close(run.done)

	out := run.poller.Run(ctx)

	g.mu.Lock()
	current := g.run == run
	var ev *Event
	if current {
		switch out.Status {
		case settlement.StatusCompleted:
			g.session.State = types.StateCompleted
			ev = &Event{Kind: EventCompleted, Transaction: out.Transaction}
		case settlement.StatusExpired:
			g.session.State = types.StateExpired
			ev = &Event{Kind: EventExpired, Session: g.snapshotLocked()}
		default:
			g.stoppedLocked()
		}
	}
	recipient := g.session.Transfer.Recipient
	g.mu.Unlock()
	close(run.settled)

	if ev == nil {
		g.logger.Info("polling stopped", map[string]any{"ticks": out.Ticks})
		return
	}

	fields := map[string]any{
		"state":     out.Status.String(),
		"recipient": recipient,
		"ticks":     out.Ticks,
	}
	if out.Transaction != nil {
		fields["transaction"] = out.Transaction.ID
	}
	g.logger.Info("session finished", fields)
	g.events.emit(*ev)
}

// admitLocked rejects work on a session that is busy, polling, finished or
// carries invalid input.
func (g *Gateway) admitLocked() error {
	if g.err != nil {
		return g.err
	}
	if g.busy || g.session.State == types.StatePolling {
		return &types.GatewayError{Code: types.ErrAlreadyStarted, Message: "session is already running"}
	}
	if g.session.State.Terminal() {
		return &types.GatewayError{
			Code:    types.ErrSessionClosed,
			Message: "session is " + string(g.session.State) + ", reset it first",
		}
	}
	return nil
}

func (g *Gateway) prepare(ctx context.Context, gen uint64) error {
	g.mu.Lock()
	if err := utils.ValidateSession(g.session); err != nil {
		g.mu.Unlock()
		return err
	}

	coin := g.session.Network.Coin
	network := g.session.Network.Name
	seeds := g.session.Seeds.Clone()
	autoDiscover := g.session.AutoDiscoverPeers
	fiat := g.session.Transfer.Amounts.Fiat
	currency := g.session.Transfer.Currency
	registry := g.registry
	g.session.State = types.StateDiscovering
	g.mu.Unlock()

	onError := func(phase string, err error) {
		if g.current(gen) {
			g.reportError(phase, err)
		}
	}
	cfg := peers.Config{
		Attempts:     g.attempts,
		Delay:        g.retryDelay,
		MaxLatencyMs: g.maxLatency,
		Network:      network,
		Logger:       g.logger,
		Metrics:      g.metrics,
		OnError:      onError,
	}

	if err := peers.NewSeedResolver(g.seedSource, cfg).Resolve(ctx, registry, coin, network, seeds); err != nil {
		return g.fail(ctx, gen, types.PhaseSeeds, err)
	}
	if err := peers.NewDiscoverer(g.nodes, cfg).Discover(ctx, registry, autoDiscover); err != nil {
		return g.fail(ctx, gen, types.PhasePeers, err)
	}

	if !g.setState(gen, types.StateConverting) {
		return errSessionReset
	}

	converter := rates.NewConverter(g.rateSource, rates.Config{
		Attempts:   g.attempts,
		Delay:      g.retryDelay,
		Convention: g.convention,
		Network:    network,
		Logger:     g.logger,
		Metrics:    g.metrics,
		OnError:    onError,
	})
	conv, err := converter.Convert(ctx, fiat, currency, coin)
	if err != nil {
		return g.fail(ctx, gen, types.PhaseRates, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return errSessionReset
	}
	rate, crypto := conv.Rate, conv.Crypto
	g.session.Transfer.ExchangeRate = &rate
	g.session.Transfer.Amounts.Crypto = &crypto
	g.session.State = types.StateIdle
	return nil
}

// fail turns a phase error into an abort. Cancellation is returned as is
// and only puts the session back to idle.
func (g *Gateway) fail(ctx context.Context, gen uint64, phase string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		g.setState(gen, types.StateIdle)
		return err
	}
	if !g.current(gen) {
		return errSessionReset
	}

	reason := err.Error()
	var gwErr *types.GatewayError
	if errors.As(err, &gwErr) {
		reason = gwErr.Message
	}
	return g.abort(gen, phase, reason, err)
}

func (g *Gateway) abort(gen uint64, phase, reason string, cause error) error {
	g.mu.Lock()
	if g.gen != gen {
		g.mu.Unlock()
		return errSessionReset
	}
	network := g.session.Network.Name
	g.resetLocked()
	g.mu.Unlock()

	g.metrics.IncCounter(metrics.Abort, map[string]string{"phase": phase, "network": network})
	g.logger.Error("session aborted", map[string]any{
		"phase":   phase,
		"network": network,
		"reason":  reason,
		"error":   cause,
	})
	g.events.emit(Event{Kind: EventAborted, Reason: reason})

	return &types.GatewayError{Code: types.ErrSessionAborted, Message: reason, Err: cause}
}

func (g *Gateway) reportError(phase string, err error) {
	g.events.emit(Event{Kind: EventError, Phase: phase, Err: err})
}

// setState updates the session started under gen. It reports false when
// the session has been reset since.
func (g *Gateway) setState(gen uint64, s types.State) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen != gen {
		return false
	}
	g.session.State = s
	return true
}

func (g *Gateway) current(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen == gen
}

func (g *Gateway) stoppedLocked() {
	g.session.State = types.StateIdle
	g.session.Started = false
}

// resetLocked installs a fresh session and registry. The old registry stays
// with whatever work still references it.
func (g *Gateway) resetLocked() {
	g.gen++
	g.session = g.newSession()
	g.registry = peers.NewRegistry(g.rnd)
	g.err = nil
	g.run = nil
}

func (g *Gateway) clearConversionLocked() {
	g.session.Transfer.Amounts.Crypto = nil
	g.session.Transfer.ExchangeRate = nil
}

func (g *Gateway) snapshotLocked() *types.Session {
	s := g.session.Clone()
	s.Network.Peers = g.registry.Peers()
	return s
}
