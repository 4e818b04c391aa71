package peers

import (
	"context"

	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
)

// Discoverer refreshes a registry from the peer list of one of its peers.
type Discoverer struct {
	client clients.NodeClient
	cfg    Config
}

func NewDiscoverer(client clients.NodeClient, cfg Config) *Discoverer {
	return &Discoverer{client: client, cfg: cfg.withDefaults()}
}

// Discover is a no-op when enabled is false or registry is empty. Otherwise
// it asks a random known peer for its peers and replaces the registry with
// those reporting a latency within the limit. A filtered result with no
// peers keeps the current set. Exhausting the retry ceiling returns a
// NO_PEERS error and leaves registry untouched.
func (d *Discoverer) Discover(ctx context.Context, registry *Registry, enabled bool) error {
	if !enabled || registry.Empty() {
		return nil
	}

	err := utils.Retry(ctx, d.cfg.Attempts, d.cfg.Delay, func(ctx context.Context, attempt int) error {
		d.cfg.Metrics.IncCounter(metrics.Attempt, d.cfg.labels(types.PhasePeers))

		peer, err := registry.PickRandom()
		if err != nil {
			return utils.Permanent(err)
		}

		infos, err := d.client.Peers(ctx, peer)
		if err != nil {
			return err
		}

		found := Sanitize(d.filter(infos))
		if len(found) == 0 {
			d.cfg.Logger.Warn("no peer within latency limit, keeping current peers", map[string]any{
				"phase":    types.PhasePeers,
				"peer":     peer.String(),
				"reported": len(infos),
				"current":  registry.Len(),
			})
			return nil
		}

		registry.Replace(found)
		d.cfg.Logger.Info("peers discovered", map[string]any{
			"phase":    types.PhasePeers,
			"peer":     peer.String(),
			"reported": len(infos),
			"kept":     len(found),
		})
		return nil
	}, func(attempt int, err error) {
		d.cfg.failed(types.PhasePeers, attempt, err)
	})

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &types.GatewayError{
		Code:    types.ErrNoPeersFound,
		Message: "no peers found",
		Err:     err,
	}
}

func (d *Discoverer) filter(infos []types.PeerInfo) []types.Peer {
	out := make([]types.Peer, 0, len(infos))
	for _, info := range infos {
		if info.Latency == nil || *info.Latency > d.cfg.MaxLatencyMs {
			continue
		}
		out = append(out, info.Peer)
	}
	return out
}
