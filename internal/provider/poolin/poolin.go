// Package poolin reads worker statistics from the Poolin public API.
//
// Account URLs are read-only dashboard links. The puid and read token are taken
// from the URL; the token is sent as a bearer credential.
package poolin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

// Dashboard is the template account URLs must match.
var Dashboard = urlpattern.MustCompile("https://{host}/my/{puid}/btc/miners?read_token={token}&status=ACTIVE")

// DefaultBaseURL is the worker stats endpoint.
const DefaultBaseURL = "https://api-prod.poolin.com/api/public/v2/worker/stats"

// Stats is the data block of a worker stats response.
type Stats struct {
	WorkersActive   int     `json:"workers_active"`
	WorkersInactive int     `json:"workers_inactive"`
	WorkersDead     int     `json:"workers_dead"`
	WorkersTotal    int     `json:"workers_total"`
	Shares15m       float64 `json:"shares_15m"`
	Shares24h       float64 `json:"shares_24h"`
	SharesUnit      string  `json:"shares_unit"`
}

type response struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	Data   Stats  `json:"data"`
}

// Adapter fetches Poolin accounts.
type Adapter struct {
	// baseURL is the worker stats endpoint.
	baseURL string
	// httpClient is the HTTP client.
	httpClient provider.HTTPClient
	normalizer *hashrate.Normalizer
	logger     *slog.Logger
}

// Option is a configuration option for the Poolin adapter.
type Option func(*Adapter)

// WithBaseURL sets the worker stats endpoint.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient provider.HTTPClient) Option {
	return func(a *Adapter) { a.httpClient = httpClient }
}

// WithNormalizer sets the unit normalizer.
func WithNormalizer(n *hashrate.Normalizer) Option {
	return func(a *Adapter) { a.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New creates a new Poolin adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{baseURL: DefaultBaseURL, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() provider.Kind { return provider.Poolin }

// Stats fetches the raw worker statistics for the account behind dashboardURL.
func (a *Adapter) Stats(ctx context.Context, dashboardURL string) (Stats, error) {
	ids, err := Dashboard.Extract(dashboardURL)
	if err != nil {
		return Stats{}, err
	}

	query := url.Values{}
	query.Set("puid", ids.ID)
	query.Set("coin_type", "btc")
	api, err := provider.Endpoint(provider.Poolin, a.baseURL, query)
	if err != nil {
		return Stats{}, err
	}

	var res response
	req := provider.Request{Provider: provider.Poolin, URL: api, Bearer: ids.Token}
	if err := provider.GetJSON(ctx, a.httpClient, req, &res); err != nil {
		return Stats{}, err
	}
	if res.ErrNo != 0 {
		return Stats{}, &provider.FetchError{
			Provider: provider.Poolin,
			URL:      urlpattern.Redact(api),
			Err:      fmt.Errorf("err_no %d: %s", res.ErrNo, res.ErrMsg),
		}
	}
	return res.Data, nil
}

// Fetch maps shares_15m and shares_24h, both in shares_unit, into a payload.
func (a *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	st, err := a.Stats(ctx, q.URL)
	if err != nil {
		return provider.SharePayload{}, err
	}
	a.logger.Debug("poolin workers",
		"active", st.WorkersActive,
		"inactive", st.WorkersInactive,
		"dead", st.WorkersDead,
		"total", st.WorkersTotal,
	)

	m15, err := a.normalizer.Convert(st.Shares15m, st.SharesUnit)
	if err != nil {
		return provider.SharePayload{}, err
	}
	d1, err := a.normalizer.Convert(st.Shares24h, st.SharesUnit)
	if err != nil {
		return provider.SharePayload{}, err
	}
	return provider.Payload(provider.Poolin, m15, d1)
}
