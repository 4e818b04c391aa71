package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vitwit/arkpay/logger"
	"github.com/vitwit/arkpay/metrics"
	"github.com/vitwit/arkpay/types"
)

// maxBodyBytes bounds every decoded response.
const maxBodyBytes = 8 << 20

// Options configures the shared HTTP plumbing of all clients.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     logger.Logger
	Metrics    metrics.Recorder
	Network    string
}

type transport struct {
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
	network string
}

func newTransport(opts Options) transport {
	t := transport{
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		network: opts.Network,
	}
	if t.http == nil {
		t.http = http.DefaultClient
	}
	if t.timeout <= 0 {
		t.timeout = 30 * time.Second
	}
	if t.logger == nil {
		t.logger = logger.NoopLogger{}
	}
	if t.metrics == nil {
		t.metrics = metrics.NoopRecorder{}
	}
	return t
}

// getJSON issues a GET with query params and the API accept header and
// decodes the body into out.
func (t transport) getJSON(ctx context.Context, phase, rawURL string, params url.Values, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", types.AcceptHeader)

	labels := map[string]string{"phase": phase, "network": t.network}
	start := time.Now()
	resp, err := t.http.Do(req)
	t.metrics.ObserveLatency(metrics.HTTPRequest, time.Since(start), labels)
	if err != nil {
		return networkError(u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return networkError(u, &HTTPError{StatusCode: resp.StatusCode, URL: u.Redacted()})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u.Redacted(), err)
	}

	t.logger.Debug("request completed", map[string]any{
		"url":     u.Redacted(),
		"phase":   phase,
		"elapsed": time.Since(start).String(),
	})
	return nil
}

func networkError(u *url.URL, err error) error {
	return &types.GatewayError{
		Code:    types.ErrNetworkError,
		Message: "GET " + u.Redacted(),
		Err:     err,
	}
}
