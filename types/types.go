package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SmallestUnitExponent is the number of decimal places between one coin and
// its smallest on-chain unit (1 ARK = 10^8 arktoshi).
const SmallestUnitExponent = 8

// RateConvention states how the rate source expresses a price and therefore
// which currency pair is requested and how the crypto amount is derived.
type RateConvention string

const (
	// RateCryptoPerFiat requests fsym=<fiat>&tsym=<coin>; the rate is the
	// amount of coin one fiat unit buys, so crypto = fiat * rate.
	RateCryptoPerFiat RateConvention = "crypto-per-fiat"

	// RateFiatPerCrypto requests fsym=<coin>&tsym=<fiat>; the rate is the
	// price of one coin in fiat, so crypto = fiat / rate.
	RateFiatPerCrypto RateConvention = "fiat-per-crypto"
)

// Amounts holds the fiat amount requested by the merchant and the crypto
// amount derived from it. Crypto is nil until a rate has been applied.
type Amounts struct {
	Fiat   decimal.Decimal  `json:"fiat"`
	Crypto *decimal.Decimal `json:"crypto,omitempty"`
}

// Conversion is the output of a successful rate lookup.
type Conversion struct {
	Rate   decimal.Decimal `json:"rate"`
	Crypto decimal.Decimal `json:"crypto"`
}

// Transaction is a transfer as reported by a node's received-transactions
// endpoint. Amount is expressed in the smallest unit.
type Transaction struct {
	ID            string          `json:"id"`
	BlockID       string          `json:"blockId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee,omitempty"`
	Sender        string          `json:"sender,omitempty"`
	Recipient     string          `json:"recipient"`
	VendorField   string          `json:"vendorField"`
	Confirmations int             `json:"confirmations,omitempty"`
}

// MatchResult contains the outcome of one transfer lookup.
type MatchResult struct {
	Matched     bool         `json:"matched"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Peer        Peer         `json:"peer"`
	Scanned     int          `json:"scanned"`
	Error       string       `json:"error,omitempty"`
}

// TokenGenerator produces vendor field tokens for new sessions.
type TokenGenerator func() string

// Duration wraps time.Duration so config files can use "30s" style strings
// as well as plain nanosecond numbers.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}

// GatewayConfig contains the configuration for a payment gateway
type GatewayConfig struct {
	Network              string         `json:"network" env:"ARKPAY_NETWORK" validate:"required"`
	Coin                 string         `json:"coin" env:"ARKPAY_COIN" validate:"required,alphanum"`
	Currency             string         `json:"currency" env:"ARKPAY_CURRENCY" validate:"required,alpha"`
	Seeds                Seeds          `json:"seeds,omitempty"`
	RateSourceURL        string         `json:"rateSourceUrl" env:"ARKPAY_RATE_SOURCE_URL" validate:"required,url"`
	RateConvention       RateConvention `json:"rateConvention" env:"ARKPAY_RATE_CONVENTION" validate:"required,oneof=crypto-per-fiat fiat-per-crypto"`
	RequestTimeout       Duration       `json:"requestTimeout,omitempty"`
	PollInterval         Duration       `json:"pollInterval,omitempty"`
	ExpiresAfter         Duration       `json:"expiresAfter,omitempty"`
	RetryCount           int            `json:"retryCount" env:"ARKPAY_RETRY_COUNT" validate:"gte=1,lte=20"`
	RetryDelay           Duration       `json:"retryDelay,omitempty"`
	MaxLatencyMs         int            `json:"maxLatencyMs" env:"ARKPAY_MAX_LATENCY_MS" validate:"gte=0"`
	LogLevel             string         `json:"logLevel" env:"ARKPAY_LOG_LEVEL" validate:"omitempty,oneof=debug info warn error"`
	LogBackend           string         `json:"logBackend" env:"ARKPAY_LOG_BACKEND" validate:"omitempty,oneof=zap logrus"`
	EnableMetrics        bool           `json:"enableMetrics" env:"ARKPAY_ENABLE_METRICS"`
	MetricsAddr          string         `json:"metricsAddr,omitempty" env:"ARKPAY_METRICS_ADDR"`
	VendorFieldGenerator string         `json:"vendorFieldGenerator" env:"ARKPAY_VENDOR_FIELD_GENERATOR" validate:"omitempty,oneof=uuid xid"`
}

// DefaultConfig returns the configuration used when nothing is supplied.
func DefaultConfig() *GatewayConfig {
	return &GatewayConfig{
		Network:              NetworkDevnet,
		Coin:                 CoinARK,
		Currency:             "USD",
		Seeds:                DefaultSeeds(),
		RateSourceURL:        DefaultRateSourceURL,
		RateConvention:       RateCryptoPerFiat,
		RequestTimeout:       Duration{30 * time.Second},
		PollInterval:         Duration{time.Second},
		RetryCount:           DefaultRetryCount,
		MaxLatencyMs:         DefaultMaxLatencyMs,
		LogLevel:             "info",
		LogBackend:           "zap",
		VendorFieldGenerator: "uuid",
	}
}

// ApplyDefaults fills every zero-valued field from DefaultConfig.
func (c *GatewayConfig) ApplyDefaults() {
	def := DefaultConfig()
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.Coin == "" {
		c.Coin = def.Coin
	}
	if c.Currency == "" {
		c.Currency = def.Currency
	}
	if len(c.Seeds) == 0 {
		c.Seeds = def.Seeds
	}
	if c.RateSourceURL == "" {
		c.RateSourceURL = def.RateSourceURL
	}
	if c.RateConvention == "" {
		c.RateConvention = def.RateConvention
	}
	if c.RequestTimeout.Duration == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.PollInterval.Duration == 0 {
		c.PollInterval = def.PollInterval
	}
	if c.RetryCount == 0 {
		c.RetryCount = def.RetryCount
	}
	if c.MaxLatencyMs == 0 {
		c.MaxLatencyMs = def.MaxLatencyMs
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.LogBackend == "" {
		c.LogBackend = def.LogBackend
	}
	if c.VendorFieldGenerator == "" {
		c.VendorFieldGenerator = def.VendorFieldGenerator
	}
}

// Error types
type GatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrInvalidInput     = "INVALID_INPUT"
	ErrNoSeeds          = "NO_SEEDS"
	ErrNoPeersFound     = "NO_PEERS"
	ErrNoExchangeRate   = "NO_EXCHANGE_RATE"
	ErrSessionAborted   = "SESSION_ABORTED"
	ErrAlreadyStarted   = "ALREADY_STARTED"
	ErrSessionClosed    = "SESSION_CLOSED"
	ErrNetworkError     = "NETWORK_ERROR"
	ErrConfigError      = "CONFIG_ERROR"
	ErrUnknownSeed      = "UNKNOWN_SEED"
	ErrInvalidRateReply = "INVALID_RATE"
)

// ErrNoPeers is returned when a peer is requested from an empty registry.
var ErrNoPeers = errors.New("no peers available")

// IsCode reports whether err is a *GatewayError carrying code.
func IsCode(err error, code string) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code == code
	}
	return false
}
