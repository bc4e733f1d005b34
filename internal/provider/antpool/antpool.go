// Package antpool declares AntPool as a known but unsupported provider.
//
// The observer endpoint does not expose share totals in a form that maps onto
// a SharePayload, so Fetch always fails. Probe decodes the observer response
// and is used to check account URLs by hand.
package antpool

import (
	"context"
	"log/slog"

	"poolwatch/internal/provider"
)

// Observation is the decoded observer response.
type Observation struct {
	UserGroupList  string `json:"userGroupList"`
	UserWorkerList struct {
		UserWorkerID string  `json:"useWorkerId"`
		HsLast1d     string  `json:"hsLash1d"`
		HsLast1h     string  `json:"hsLash1h"`
		HsLast5m     string  `json:"hsLast5m"`
		RejectRate   float64 `json:"rejectRate"`
	} `json:"userWorkerList"`
}

// Adapter is the unsupported AntPool variant.
type Adapter struct {
	httpClient provider.HTTPClient
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithHTTPClient sets the HTTP client used by Probe.
func WithHTTPClient(c provider.HTTPClient) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// New returns an AntPool adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Kind() provider.Kind { return provider.AntPool }

// Fetch returns *provider.UnsupportedError without performing any I/O.
func (a *Adapter) Fetch(context.Context, provider.AccountQuery) (provider.SharePayload, error) {
	return provider.SharePayload{}, &provider.UnsupportedError{Provider: provider.AntPool}
}

// Probe GETs rawURL and decodes it as an observer response.
func (a *Adapter) Probe(ctx context.Context, rawURL string) (Observation, error) {
	if err := provider.CheckURL(rawURL); err != nil {
		return Observation{}, err
	}
	var obs Observation
	if err := provider.GetJSON(ctx, a.httpClient, provider.Request{Provider: provider.AntPool, URL: rawURL}, &obs); err != nil {
		return Observation{}, err
	}
	a.logger.Debug("antpool observation", "worker", obs.UserWorkerList.UserWorkerID, "reject_rate", obs.UserWorkerList.RejectRate)
	return obs, nil
}
