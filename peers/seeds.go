package peers

import (
	"context"
	"errors"
	"fmt"

	"github.com/vitwit/arkpay/clients"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
	"github.com/vitwit/arkpay/utils"
)

var errEmptySeedList = errors.New("seed list contains no usable peers")

// SeedResolver fills an empty registry from the seed list of the session's
// coin and network.
type SeedResolver struct {
	source clients.SeedSource
	cfg    Config
}

func NewSeedResolver(source clients.SeedSource, cfg Config) *SeedResolver {
	return &SeedResolver{source: source, cfg: cfg.withDefaults()}
}

// Resolve is a no-op when registry already holds peers. Otherwise it fetches
// the seed list, retrying up to the configured ceiling, and replaces the
// registry content on the first success. Exhausting the ceiling returns a
// NO_SEEDS error; registry is left empty.
func (s *SeedResolver) Resolve(ctx context.Context, registry *Registry, coin, network string, seeds types.Seeds) error {
	if !registry.Empty() {
		return nil
	}

	seedURL, ok := seeds.Lookup(coin, network)

	err := utils.Retry(ctx, s.cfg.Attempts, s.cfg.Delay, func(ctx context.Context, attempt int) error {
		s.cfg.Metrics.IncCounter(metrics.Attempt, s.cfg.labels(types.PhaseSeeds))

		if !ok {
			return utils.Permanent(&types.GatewayError{
				Code:    types.ErrUnknownSeed,
				Message: fmt.Sprintf("no seed list configured for %s %s", coin, network),
			})
		}

		list, err := s.source.Seeds(ctx, seedURL)
		if err != nil {
			return err
		}

		list = Sanitize(list)
		if len(list) == 0 {
			return errEmptySeedList
		}

		registry.Replace(list)
		s.cfg.Logger.Info("seed peers loaded", map[string]any{
			"phase":   types.PhaseSeeds,
			"network": network,
			"count":   len(list),
			"attempt": attempt,
		})
		return nil
	}, func(attempt int, err error) {
		s.cfg.failed(types.PhaseSeeds, attempt, err)
	})

	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &types.GatewayError{
		Code:    types.ErrNoSeeds,
		Message: "no seeds found",
		Err:     err,
	}
}
