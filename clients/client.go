package clients

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/types"
)

// SeedSource fetches the bootstrap peer list published at a seed URL.
type SeedSource interface {
	Seeds(ctx context.Context, seedURL string) ([]types.Peer, error)
}

// NodeClient talks to a single node's public API.
type NodeClient interface {
	Peers(ctx context.Context, peer types.Peer) ([]types.PeerInfo, error)
	ReceivedTransactions(ctx context.Context, peer types.Peer, recipient string) ([]types.Transaction, error)
}

// RateSource returns the most recent daily low for a currency pair,
// expressed as units of to per one unit of from.
type RateSource interface {
	DailyLow(ctx context.Context, from, to string) (decimal.Decimal, error)
}

var (
	_ SeedSource = (*ArkClient)(nil)
	_ NodeClient = (*ArkClient)(nil)
	_ RateSource = (*RateClient)(nil)
)
