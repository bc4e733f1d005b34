// Package huobipool reads sub-user speed from the Huobi Pool visitor API.
package huobipool

import (
	"context"
	"fmt"
	"log/slog"

	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

type response struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		SpeedF provider.FlexFloat `json:"speed_f"`
		SpeedS provider.FlexFloat `json:"speed_s"`
		SpeedT provider.FlexFloat `json:"speed_t"`
	} `json:"data"`
}

// Adapter fetches Huobi Pool accounts. Speeds are reported already in the
// canonical unit and are not converted.
type Adapter struct {
	httpClient provider.HTTPClient
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c provider.HTTPClient) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New returns a Huobi Pool adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() provider.Kind { return provider.HuobiPool }

// Fetch GETs q.URL as-is and maps speed_f to the 15 minute window and speed_t
// to the day window.
func (a *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	if err := provider.CheckURL(q.URL); err != nil {
		return provider.SharePayload{}, err
	}

	var res response
	if err := provider.GetJSON(ctx, a.httpClient, provider.Request{Provider: provider.HuobiPool, URL: q.URL}, &res); err != nil {
		return provider.SharePayload{}, err
	}
	if !res.Success {
		return provider.SharePayload{}, &provider.FetchError{
			Provider: provider.HuobiPool,
			URL:      urlpattern.Redact(q.URL),
			Err:      fmt.Errorf("code %d: %s", res.Code, res.Message),
		}
	}

	m15, err := res.Data.SpeedF.Float()
	if err != nil {
		return provider.SharePayload{}, &provider.ParseError{Provider: provider.HuobiPool, Field: "speed_f", Err: err}
	}
	d1, err := res.Data.SpeedT.Float()
	if err != nil {
		return provider.SharePayload{}, &provider.ParseError{Provider: provider.HuobiPool, Field: "speed_t", Err: err}
	}
	if s, err := res.Data.SpeedS.Float(); err == nil {
		a.logger.Debug("huobipool speed", "speed_s", s)
	}
	return provider.Payload(provider.HuobiPool, m15, d1)
}
