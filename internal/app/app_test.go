package app_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"poolwatch/internal/app"
	"poolwatch/internal/config"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/cache"
	"poolwatch/internal/provider/ratelimit"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestAdapters_AllKinds(t *testing.T) {
	t.Parallel()

	reg, err := app.Adapters(config.Default(), http.DefaultClient, discard)
	require.NoError(t, err)
	require.ElementsMatch(t, provider.Kinds(), reg.Kinds())

	cfg := config.Default()
	cfg.Units.Policy = "sometimes"
	_, err = app.Adapters(cfg, http.DefaultClient, discard)
	require.Error(t, err)
}

func TestAdapters_UseConfiguredBaseURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"err_no":0,"data":{"shares_15m":1024,"shares_24h":2048,"shares_unit":"T"}}`))
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Providers.Poolin.BaseURL = srv.URL
	reg, err := app.Adapters(cfg, srv.Client(), discard)
	require.NoError(t, err)

	a, err := reg.Lookup(provider.Poolin)
	require.NoError(t, err)
	got, err := a.Fetch(t.Context(), provider.AccountQuery{
		URL:      "https://www.poolin.com/my/1/btc/miners?read_token=t&status=ACTIVE",
		Provider: provider.Poolin,
	})
	require.NoError(t, err)
	require.Equal(t, provider.SharePayload{Shares15m: 1, Shares1d: 2}, got)
	require.EqualValues(t, 1, hits.Load())
}

func TestDecorate(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Providers.BtcPool.MaxRequestsPerMinute = 60
	cfg.Cache.TTLSeconds = 30

	reg, err := app.Adapters(cfg, http.DefaultClient, discard)
	require.NoError(t, err)

	plain := app.Decorate(reg, cfg, nil, discard)
	require.IsType(t, &ratelimit.Adapter{}, plain[provider.BtcPool])
	require.Same(t, reg[provider.HuobiPool], plain[provider.HuobiPool])

	cached := app.Decorate(reg, cfg, cache.NewMemory(10), discard)
	require.IsType(t, &cache.Adapter{}, cached[provider.BtcPool])
	require.IsType(t, &cache.Adapter{}, cached[provider.HuobiPool])
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	s, closeFn, err := app.OpenStore(t.Context(), config.Cache{Backend: "none"})
	require.NoError(t, err)
	require.Nil(t, s)
	require.NoError(t, closeFn())

	s, _, err = app.OpenStore(t.Context(), config.Cache{Backend: "memory", MaxItems: 5})
	require.NoError(t, err)
	require.IsType(t, &cache.Memory{}, s)

	mr := miniredis.RunT(t)
	s, closeFn, err = app.OpenStore(t.Context(), config.Cache{Backend: "redis", RedisURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	require.IsType(t, &cache.Redis{}, s)
	require.NoError(t, closeFn())

	_, _, err = app.OpenStore(t.Context(), config.Cache{Backend: "disk"})
	require.Error(t, err)
}
