// Package rates turns a fiat amount into the amount of coin the payer has
// to send, using the most recent daily low of an exchange-rate feed.
package rates

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
)

// divisionPrecision is the number of decimal places kept when the crypto
// amount is obtained by division. The matcher rounds to the smallest unit.
const divisionPrecision = 16

// Config controls retries, the pair convention and instrumentation.
type Config struct {
	Attempts   int
	Delay      time.Duration
	Convention types.RateConvention
	Network    string
	Logger     logger.Logger
	Metrics    metrics.Recorder
	OnError    func(phase string, err error)
}

// Converter derives the crypto amount of a transfer from a RateSource.
type Converter struct {
	source clients.RateSource
	cfg    Config
}

func NewConverter(source clients.RateSource, cfg Config) *Converter {
	if cfg.Attempts <= 0 {
		cfg.Attempts = types.DefaultRetryCount
	}
	if cfg.Convention == "" {
		cfg.Convention = types.RateCryptoPerFiat
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NoopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopRecorder{}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(string, error) {}
	}
	return &Converter{source: source, cfg: cfg}
}

// Pair returns the fsym/tsym pair requested for currency and coin under the
// configured convention.
func (c *Converter) Pair(currency, coin string) (from, to string) {
	currency = strings.ToUpper(currency)
	coin = strings.ToUpper(coin)
	if c.cfg.Convention == types.RateFiatPerCrypto {
		return coin, currency
	}
	return currency, coin
}

// Apply computes the crypto amount for fiat at rate.
func (c *Converter) Apply(fiat, rate decimal.Decimal) decimal.Decimal {
	if c.cfg.Convention == types.RateFiatPerCrypto {
		return fiat.DivRound(rate, divisionPrecision)
	}
	return fiat.Mul(rate)
}

// Convert looks up the rate, retrying up to the configured ceiling, and
// returns the rate together with the derived crypto amount. Exhausting the
// ceiling returns a NO_EXCHANGE_RATE error.
func (c *Converter) Convert(ctx context.Context, fiat decimal.Decimal, currency, coin string) (*types.Conversion, error) {
	from, to := c.Pair(currency, coin)
	labels := map[string]string{"phase": types.PhaseRates, "network": c.cfg.Network}

	var rate decimal.Decimal
	err := utils.Retry(ctx, c.cfg.Attempts, c.cfg.Delay, func(ctx context.Context, attempt int) error {
		c.cfg.Metrics.IncCounter(metrics.Attempt, labels)

		low, err := c.source.DailyLow(ctx, from, to)
		if err != nil {
			return err
		}
		rate = low
		return nil
	}, func(attempt int, err error) {
		c.cfg.Logger.Warn("attempt failed", map[string]any{
			"phase":   types.PhaseRates,
			"attempt": attempt,
			"of":      c.cfg.Attempts,
			"pair":    from + "/" + to,
			"error":   err,
		})
		c.cfg.Metrics.IncCounter(metrics.Failure, labels)
		c.cfg.OnError(types.PhaseRates, err)
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &types.GatewayError{
			Code:    types.ErrNoExchangeRate,
			Message: "no exchange rate found",
			Err:     err,
		}
	}

	crypto := c.Apply(fiat, rate)
	c.cfg.Logger.Info("amount converted", map[string]any{
		"phase":  types.PhaseRates,
		"pair":   from + "/" + to,
		"rate":   rate.String(),
		"fiat":   fiat.String(),
		"crypto": crypto.String(),
	})

	return &types.Conversion{Rate: rate, Crypto: crypto}, nil
}
