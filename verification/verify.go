package verification

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/peers"
	"github.com/vitwit/arkpay/types"
)

// Expectation is what an incoming transaction must carry to settle a
// session. Amount is in the smallest unit.
type Expectation struct {
	Recipient   string
	VendorField string
	Amount      decimal.Decimal
}

// ExpectedAmount scales a coin amount to the smallest unit, rounding half
// away from zero.
func ExpectedAmount(crypto decimal.Decimal) decimal.Decimal {
	return crypto.Shift(types.SmallestUnitExponent).Round(0)
}

// NewExpectation builds the expectation for a converted session.
func NewExpectation(session *types.Session) (Expectation, error) {
	if !session.Converted() {
		return Expectation{}, fmt.Errorf("session has no crypto amount")
	}
	return Expectation{
		Recipient:   session.Transfer.Recipient,
		VendorField: session.Transfer.VendorField,
		Amount:      ExpectedAmount(*session.Transfer.Amounts.Crypto),
	}, nil
}

// Matches reports whether tx satisfies exp.
func (exp Expectation) Matches(tx types.Transaction) bool {
	return tx.Recipient == exp.Recipient &&
		tx.VendorField == exp.VendorField &&
		tx.Amount.Equal(exp.Amount)
}

// MatchTransactions returns the first transaction of txs, in the given
// order, that satisfies exp.
func MatchTransactions(txs []types.Transaction, exp Expectation) (*types.Transaction, bool) {
	for i := range txs {
		if exp.Matches(txs[i]) {
			tx := txs[i]
			return &tx, true
		}
	}
	return nil, false
}

// Config wires the matcher into logs, metrics and the error hook.
type Config struct {
	Network string
	Logger  logger.Logger
	Metrics metrics.Recorder
	OnError func(phase string, err error)
}

// Matcher looks up received transactions on a random peer of a registry.
type Matcher struct {
	client   clients.NodeClient
	registry *peers.Registry
	cfg      Config
}

// NewMatcher creates a matcher reading peers from registry.
func NewMatcher(client clients.NodeClient, registry *peers.Registry, cfg Config) *Matcher {
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(string, error) {}
	}
	return &Matcher{client: client, registry: registry, cfg: cfg}
}

// Match performs one lookup. Failures are reported through the error hook
// and yield a result with Matched false; they are never returned.
func (m *Matcher) Match(ctx context.Context, exp Expectation) *types.MatchResult {
	peer, err := m.registry.PickRandom()
	if err != nil {
		m.fail(err)
		return &types.MatchResult{Error: err.Error()}
	}

	txs, err := m.client.ReceivedTransactions(ctx, peer, exp.Recipient)
	if err != nil {
		m.fail(fmt.Errorf("lookup on %s: %w", peer, err))
		return &types.MatchResult{Peer: peer, Error: err.Error()}
	}

	result := &types.MatchResult{Peer: peer, Scanned: len(txs)}
	if tx, ok := MatchTransactions(txs, exp); ok {
		result.Matched = true
		result.Transaction = tx
		return result
	}

	m.cfg.Metrics.IncCounter(metrics.PollMiss, m.labels())
	m.cfg.Logger.Debug("no matching transfer", map[string]any{
		"phase":     types.PhasePoll,
		"peer":      peer.String(),
		"recipient": exp.Recipient,
		"scanned":   len(txs),
	})
	return result
}

func (m *Matcher) fail(err error) {
	m.cfg.Logger.Warn("transfer lookup failed", map[string]any{
		"phase": types.PhasePoll,
		"error": err,
	})
	m.cfg.Metrics.IncCounter(metrics.Failure, m.labels())
	m.cfg.OnError(types.PhasePoll, err)
}

func (m *Matcher) labels() map[string]string {
	return map[string]string{"phase": types.PhasePoll, "network": m.cfg.Network}
}
