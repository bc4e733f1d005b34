// Package spiderpool reads sub-account hash rate from the SpiderPool API.
//
// Account URLs are the public dashboard links; the sub-account name is taken
// from the URL and queried against the status endpoint.
package spiderpool

import (
	"context"
	"log/slog"
	"net/url"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

// Dashboard is the template account URLs must match.
var Dashboard = urlpattern.MustCompile("https://www.spiderpool.com/coin/show/btc/{account}/detail.html")

// DefaultBaseURL is the sub-account status endpoint.
const DefaultBaseURL = "https://btc.api.spiderpool.com:19101/v1/subaccount/status"

type hashData struct {
	Value provider.FlexFloat `json:"value"`
	Unit  string             `json:"unit"`
}

type response struct {
	Code any `json:"code"`
	Data struct {
		Hashrate15   *hashData `json:"hashrate15Fmt"`
		Hashrate1440 *hashData `json:"hashrate1440Fmt"`
	} `json:"data"`
}

// Adapter fetches SpiderPool sub-accounts.
type Adapter struct {
	baseURL    string
	httpClient provider.HTTPClient
	normalizer *hashrate.Normalizer
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL overrides the status endpoint.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) { a.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c provider.HTTPClient) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithNormalizer sets the unit normalizer.
func WithNormalizer(n *hashrate.Normalizer) Option {
	return func(a *Adapter) { a.normalizer = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New returns a SpiderPool adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{baseURL: DefaultBaseURL, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() provider.Kind { return provider.SpiderPool }

// Fetch extracts the sub-account from q.URL and queries its status. A missing
// hashrate block yields zero for that window.
func (a *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	ids, err := Dashboard.Extract(q.URL)
	if err != nil {
		return provider.SharePayload{}, err
	}

	query := url.Values{}
	query.Set("coin", "btc")
	query.Set("subaccount", ids.Account)
	api, err := provider.Endpoint(provider.SpiderPool, a.baseURL, query)
	if err != nil {
		return provider.SharePayload{}, err
	}

	var res response
	if err := provider.GetJSON(ctx, a.httpClient, provider.Request{Provider: provider.SpiderPool, URL: api}, &res); err != nil {
		return provider.SharePayload{}, err
	}
	a.logger.Debug("spiderpool response", "account", ids.Account, "code", res.Code)

	m15, err := a.field("hashrate15Fmt", res.Data.Hashrate15)
	if err != nil {
		return provider.SharePayload{}, err
	}
	d1, err := a.field("hashrate1440Fmt", res.Data.Hashrate1440)
	if err != nil {
		return provider.SharePayload{}, err
	}
	return provider.Payload(provider.SpiderPool, m15, d1)
}

func (a *Adapter) field(name string, h *hashData) (float64, error) {
	if h == nil {
		return 0, nil
	}
	v, err := h.Value.Float()
	if err != nil {
		return 0, &provider.ParseError{Provider: provider.SpiderPool, Field: name + ".value", Err: err}
	}
	return a.normalizer.Convert(v, h.Unit)
}
