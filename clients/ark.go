package clients

import (
	"context"
	"net/url"

	"github.com/vitwit/arkpay/types"
)

// ArkClient reads seed lists and the public API of ARK Core nodes.
type ArkClient struct {
	transport
}

// NewArkClient creates a client for seed lists and node APIs
func NewArkClient(opts Options) *ArkClient {
	return &ArkClient{transport: newTransport(opts)}
}

type peersResponse struct {
	Data []types.PeerInfo `json:"data"`
}

type transactionsResponse struct {
	Data []types.Transaction `json:"data"`
}

// Seeds fetches a seed list: a bare JSON array of {ip, port?, protocol?}.
// Peers are returned as published; callers normalize them.
func (c *ArkClient) Seeds(ctx context.Context, seedURL string) ([]types.Peer, error) {
	var peers []types.Peer
	if err := c.getJSON(ctx, types.PhaseSeeds, seedURL, nil, &peers); err != nil {
		return nil, err
	}
	return peers, nil
}

// Peers lists the peers known to peer, with their reported latency.
func (c *ArkClient) Peers(ctx context.Context, peer types.Peer) ([]types.PeerInfo, error) {
	var resp peersResponse
	if err := c.getJSON(ctx, types.PhasePeers, peer.URL()+"/api/v2/peers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ReceivedTransactions lists transactions received by recipient as seen by
// peer, in the order the node returns them.
func (c *ArkClient) ReceivedTransactions(ctx context.Context, peer types.Peer, recipient string) ([]types.Transaction, error) {
	endpoint := peer.URL() + "/api/v2/wallets/" + url.PathEscape(recipient) + "/transactions/received"

	var resp transactionsResponse
	if err := c.getJSON(ctx, types.PhasePoll, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
