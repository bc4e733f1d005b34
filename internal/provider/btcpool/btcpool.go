// Package btcpool reads realtime hash rate from the BTC.com pool API.
//
// Account URLs are API URLs that already carry the access key and puid, e.g.
//
//	https://pool.btc.com/v1/realtime/hashrate?access_key=...&puid=438908
package btcpool

import (
	"context"
	"fmt"
	"log/slog"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

type response struct {
	ErrNo  int    `json:"err_no"`
	ErrMsg string `json:"err_msg"`
	Data   struct {
		Shares15m     provider.FlexFloat `json:"shares_15m"`
		Shares15mUnit string             `json:"shares_15m_unit"`
		Shares1d      provider.FlexFloat `json:"shares_1d"`
		Shares1dUnit  string             `json:"shares_1d_unit"`
	} `json:"data"`
}

// Adapter fetches BtcPool accounts.
type Adapter struct {
	httpClient provider.HTTPClient
	normalizer *hashrate.Normalizer
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

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

// New returns a BtcPool adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() provider.Kind { return provider.BtcPool }

// Fetch GETs q.URL as-is. Each share field is normalized with its own unit.
func (a *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	if err := provider.CheckURL(q.URL); err != nil {
		return provider.SharePayload{}, err
	}

	var res response
	if err := provider.GetJSON(ctx, a.httpClient, provider.Request{Provider: provider.BtcPool, URL: q.URL}, &res); err != nil {
		return provider.SharePayload{}, err
	}
	if res.ErrNo != 0 {
		return provider.SharePayload{}, &provider.FetchError{
			Provider: provider.BtcPool,
			URL:      urlpattern.Redact(q.URL),
			Err:      fmt.Errorf("err_no %d: %s", res.ErrNo, res.ErrMsg),
		}
	}

	a.logger.Debug("btcpool response",
		"shares_15m_unit", res.Data.Shares15mUnit,
		"shares_1d_unit", res.Data.Shares1dUnit,
	)

	m15, err := a.field("shares_15m", res.Data.Shares15m, res.Data.Shares15mUnit)
	if err != nil {
		return provider.SharePayload{}, err
	}
	d1, err := a.field("shares_1d", res.Data.Shares1d, res.Data.Shares1dUnit)
	if err != nil {
		return provider.SharePayload{}, err
	}
	return provider.Payload(provider.BtcPool, m15, d1)
}

func (a *Adapter) field(name string, v provider.FlexFloat, unit string) (float64, error) {
	f, err := v.Float()
	if err != nil {
		return 0, &provider.ParseError{Provider: provider.BtcPool, Field: name, Err: err}
	}
	return a.normalizer.Convert(f, unit)
}
