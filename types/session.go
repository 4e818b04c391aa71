package types

import (
	"github.com/shopspring/decimal"
)

// State is the position of a session in its lifecycle.
type State string

const (
	StateIdle        State = "idle"
	StateDiscovering State = "discovering"
	StateConverting  State = "converting"
	StatePolling     State = "polling"
	StateCompleted   State = "completed"
	StateExpired     State = "expired"
)

// Terminal reports whether the session has finished and must be reset
// before it can be started again. An aborted session is reset to idle, so
// abort has no state of its own.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateExpired
}

// Transfer describes the payment being waited for.
type Transfer struct {
	Recipient    string           `json:"recipient"`
	Amounts      Amounts          `json:"amounts"`
	VendorField  string           `json:"vendorField"`
	Currency     string           `json:"currency"`
	ExchangeRate *decimal.Decimal `json:"exchangeRate,omitempty"`
}

// NetworkInfo identifies the chain and the peers used to reach it.
type NetworkInfo struct {
	Name  string `json:"name"`
	Coin  string `json:"coin"`
	Peers []Peer `json:"peers"`
}

// Session is the mutable state of one payment request.
type Session struct {
	Started           bool        `json:"started"`
	AutoDiscoverPeers bool        `json:"autoDiscoverPeers"`
	State             State       `json:"state"`
	Transfer          Transfer    `json:"transfer"`
	Network           NetworkInfo `json:"network"`
	Seeds             Seeds       `json:"seeds"`
}

// NewSession returns a session with default network, currency and seeds and
// the given vendor field.
func NewSession(vendorField string) *Session {
	return &Session{
		AutoDiscoverPeers: true,
		State:             StateIdle,
		Transfer: Transfer{
			VendorField: vendorField,
			Currency:    "USD",
		},
		Network: NetworkInfo{
			Name:  NetworkDevnet,
			Coin:  CoinARK,
			Peers: []Peer{},
		},
		Seeds: DefaultSeeds(),
	}
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	out := *s
	if s.Transfer.Amounts.Crypto != nil {
		crypto := *s.Transfer.Amounts.Crypto
		out.Transfer.Amounts.Crypto = &crypto
	}
	if s.Transfer.ExchangeRate != nil {
		rate := *s.Transfer.ExchangeRate
		out.Transfer.ExchangeRate = &rate
	}
	out.Network.Peers = append([]Peer{}, s.Network.Peers...)
	out.Seeds = s.Seeds.Clone()
	return &out
}

// Converted reports whether the crypto amount has been derived.
func (s *Session) Converted() bool {
	return s.Transfer.Amounts.Crypto != nil
}

// Phases of a session, used to label logs, metrics and errors.
const (
	PhaseSeeds = "seeds"
	PhasePeers = "peers"
	PhaseRates = "rates"
	PhasePoll  = "poll"
)
