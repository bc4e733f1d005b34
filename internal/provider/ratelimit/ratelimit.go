// Package ratelimit gates calls to a provider adapter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"poolwatch/internal/provider"
	"poolwatch/internal/provider/urlpattern"
)

// Adapter wraps a provider.Adapter and waits for a limiter token before every
// Fetch. Waiting returns early if the context is canceled.
type Adapter struct {
	A       provider.Adapter
	Limiter *rate.Limiter
}

// PerMinute allows rpm requests per minute with the given burst.
func PerMinute(a provider.Adapter, rpm, burst int) *Adapter {
	if burst <= 0 {
		burst = 1
	}
	return &Adapter{A: a, Limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60), burst)}
}

// MinInterval enforces at least interval between the start of two requests.
func MinInterval(a provider.Adapter, interval time.Duration) *Adapter {
	return &Adapter{A: a, Limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// New picks a limiter from the settings. It returns a unchanged when neither
// rpm nor interval is set.
func New(a provider.Adapter, rpm, burst int, interval time.Duration) provider.Adapter {
	switch {
	case rpm > 0:
		return PerMinute(a, rpm, burst)
	case interval > 0:
		return MinInterval(a, interval)
	}
	return a
}

func (r *Adapter) Kind() provider.Kind { return r.A.Kind() }

func (r *Adapter) Fetch(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return provider.SharePayload{}, &provider.FetchError{
				Provider: r.A.Kind(),
				URL:      urlpattern.Redact(q.URL),
				Err:      fmt.Errorf("waiting for rate limit: %w", err),
			}
		}
	}
	return r.A.Fetch(ctx, q)
}
