package antpool_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"poolwatch/internal/provider"
	"poolwatch/internal/provider/antpool"
)

func TestFetch_FailsFastWithoutIO(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	a := antpool.New(antpool.WithHTTPClient(srv.Client()))
	got, err := a.Fetch(t.Context(), provider.AccountQuery{URL: srv.URL + "/observer.htm?accessKey=k", Provider: provider.AntPool})

	require.True(t, provider.IsUnsupported(err))
	require.Equal(t, provider.SharePayload{}, got)
	require.False(t, called)
}

func TestProbe_DecodesObservation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"userGroupList":"default","userWorkerList":{"useWorkerId":"w1","hsLash1d":"20T","hsLash1h":"19T","hsLast5m":"21T","rejectRate":0.01}}`))
	}))
	defer srv.Close()

	obs, err := antpool.New(antpool.WithHTTPClient(srv.Client())).Probe(t.Context(), srv.URL+"/observer.htm?accessKey=k&coinType=BTC")

	require.NoError(t, err)
	require.Equal(t, "w1", obs.UserWorkerList.UserWorkerID)
	require.Equal(t, "20T", obs.UserWorkerList.HsLast1d)
}

func TestProbe_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<!doctype html>`))
	}))
	defer srv.Close()

	_, err := antpool.New(antpool.WithHTTPClient(srv.Client())).Probe(t.Context(), srv.URL)
	require.True(t, provider.IsParse(err))
}
