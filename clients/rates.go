package clients

import (
	"context"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vitwit/arkpay/types"
)

// RateClient reads daily OHLC history from a CryptoCompare compatible
// histoday endpoint.
type RateClient struct {
	transport
	sourceURL string
}

// NewRateClient creates a rate client for sourceURL. An empty sourceURL
// uses types.DefaultRateSourceURL.
func NewRateClient(sourceURL string, opts Options) *RateClient {
	if sourceURL == "" {
		sourceURL = types.DefaultRateSourceURL
	}
	return &RateClient{
		transport: newTransport(opts),
		sourceURL: sourceURL,
	}
}

type histodayPoint struct {
	Time int64           `json:"time"`
	Low  decimal.Decimal `json:"low"`
	High decimal.Decimal `json:"high"`
}

type histodayResponse struct {
	Response string          `json:"Response"`
	Message  string          `json:"Message"`
	Data     []histodayPoint `json:"Data"`
}

// DailyLow requests fsym=from&tsym=to&limit=1 and returns the low of the
// most recent day, which is the last entry of the series.
func (c *RateClient) DailyLow(ctx context.Context, from, to string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("fsym", from)
	params.Set("tsym", to)
	params.Set("limit", "1")

	var resp histodayResponse
	if err := c.getJSON(ctx, types.PhaseRates, c.sourceURL, params, &resp); err != nil {
		return decimal.Zero, err
	}

	if strings.EqualFold(resp.Response, "error") {
		return decimal.Zero, invalidRate(&RateSourceError{Message: resp.Message})
	}
	if len(resp.Data) == 0 {
		return decimal.Zero, invalidRate(ErrEmptyRate)
	}

	low := resp.Data[len(resp.Data)-1].Low
	if !low.IsPositive() {
		return decimal.Zero, invalidRate(ErrInvalidRate)
	}
	return low, nil
}

func invalidRate(err error) error {
	return &types.GatewayError{
		Code:    types.ErrInvalidRateReply,
		Message: "unusable rate reply",
		Err:     err,
	}
}
