package aggregate_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"poolwatch/internal/aggregate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/btcpool"
)

type recorder struct {
	events []string
	groups []aggregate.GroupTotal
}

func (r *recorder) AccountDone(ar aggregate.AccountResult) {
	r.events = append(r.events, "account:"+ar.Query.Name())
}

func (r *recorder) GroupDone(g aggregate.GroupTotal) {
	r.events = append(r.events, "group:"+g.Name)
	r.groups = append(r.groups, g)
}

func account(kind provider.Kind, group, label string) provider.AccountQuery {
	return provider.AccountQuery{URL: "https://example.com/" + label, Provider: kind, Group: group, Label: label}
}

func TestRun_FailingAccountIsIsolated(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: one adapter per provider kind
	btc := NewMockAdapter(ctrl)
	spider := NewMockAdapter(ctrl)

	queries := []provider.AccountQuery{
		account(provider.BtcPool, "a", "wangp001"),
		account(provider.SpiderPool, "a", "bmytest1"),
		account(provider.BtcPool, "a", "qm001"),
		account(provider.BtcPool, "b", "yy321"),
	}

	gomock.InOrder(
		btc.EXPECT().Fetch(gomock.Any(), queries[0]).Return(provider.SharePayload{Shares15m: 1, Shares1d: 2}, nil),
		spider.EXPECT().Fetch(gomock.Any(), queries[1]).Return(provider.SharePayload{Shares15m: 100}, &provider.ParseError{Provider: provider.SpiderPool, Err: errors.New("bad json")}),
		btc.EXPECT().Fetch(gomock.Any(), queries[2]).Return(provider.SharePayload{Shares15m: 3, Shares1d: 4}, nil),
		btc.EXPECT().Fetch(gomock.Any(), queries[3]).Return(provider.SharePayload{Shares15m: 5, Shares1d: 6}, nil),
	)

	obs := &recorder{}
	agg := aggregate.New(provider.Registry{provider.BtcPool: btc, provider.SpiderPool: spider}, aggregate.WithObserver(obs))

	// Act
	res := agg.Run(t.Context(), queries)

	// Assert: the failure is recorded but does not touch the totals
	require.Len(t, res.Accounts, 4)
	require.True(t, provider.IsParse(res.Accounts[1].Err))
	require.Equal(t, provider.SharePayload{}, res.Accounts[1].Payload)
	require.Equal(t, 1, res.Failed())

	totals := res.Totals()
	require.Equal(t, aggregate.GroupTotal{Name: "a", Total: provider.SharePayload{Shares15m: 4, Shares1d: 6}, Accounts: 3, Failed: 1}, totals["a"])
	require.Equal(t, aggregate.GroupTotal{Name: "b", Total: provider.SharePayload{Shares15m: 5, Shares1d: 6}, Accounts: 1}, totals["b"])

	// Assert: groups are flushed as soon as the next group begins
	require.Equal(t, []string{
		"account:wangp001", "account:bmytest1", "account:qm001",
		"group:a",
		"account:yy321",
		"group:b",
	}, obs.events)
}

type fixed map[string]provider.SharePayload

func (f fixed) Kind() provider.Kind { return provider.HuobiPool }

func (f fixed) Fetch(_ context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
	return f[q.Label], nil
}

func TestRun_TotalsIndependentOfOrder(t *testing.T) {
	t.Parallel()

	payloads := fixed{}
	var queries []provider.AccountQuery
	for i, p := range []provider.SharePayload{
		{Shares15m: 12.5 / 1024, Shares1d: 0.3},
		{Shares15m: 2.03, Shares1d: 1.97},
		{Shares15m: 0.1, Shares1d: 0.2},
		{Shares15m: 3.5, Shares1d: 3.49},
		{Shares15m: 0.012, Shares1d: 0.01},
	} {
		label := string(rune('a' + i))
		payloads[label] = p
		queries = append(queries, account(provider.HuobiPool, "g", label))
	}
	agg := aggregate.New(provider.NewRegistry(payloads))
	want := agg.Run(t.Context(), queries).Totals()["g"]

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]provider.AccountQuery(nil), queries...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := agg.Run(t.Context(), shuffled).Totals()["g"]
		require.InDelta(t, want.Total.Shares15m, got.Total.Shares15m, 1e-12)
		require.InDelta(t, want.Total.Shares1d, got.Total.Shares1d, 1e-12)
	}
}

func TestRun_GroupResetsAndMergesWhenRepeated(t *testing.T) {
	t.Parallel()

	payloads := fixed{
		"x": {Shares15m: 1, Shares1d: 1},
		"y": {Shares15m: 2, Shares1d: 2},
		"z": {Shares15m: 4, Shares1d: 4},
	}
	obs := &recorder{}
	agg := aggregate.New(provider.NewRegistry(payloads), aggregate.WithObserver(obs))

	res := agg.Run(t.Context(), []provider.AccountQuery{
		account(provider.HuobiPool, "one", "x"),
		account(provider.HuobiPool, "two", "y"),
		account(provider.HuobiPool, "one", "z"),
	})

	// Assert: "two" starts from zero
	require.Equal(t, provider.SharePayload{Shares15m: 2, Shares1d: 2}, obs.groups[1].Total)

	// Assert: the second "one" block is merged into the first
	require.Len(t, res.Groups, 2)
	require.Equal(t, "one", res.Groups[0].Name)
	require.Equal(t, provider.SharePayload{Shares15m: 5, Shares1d: 5}, res.Groups[0].Total)
	require.Equal(t, 2, res.Groups[0].Accounts)

	// Assert: the observer hears about "one" again, with the merged total
	require.Equal(t, []string{"account:x", "group:one", "account:y", "group:two", "account:z", "group:one"}, obs.events)
	require.Equal(t, provider.SharePayload{Shares15m: 5, Shares1d: 5}, obs.groups[2].Total)
}

func TestRun_MissingAdapterIsUnsupported(t *testing.T) {
	t.Parallel()

	agg := aggregate.New(provider.NewRegistry(fixed{"ok": {Shares15m: 1}}))
	res := agg.Run(t.Context(), []provider.AccountQuery{
		account(provider.AntPool, "g", "ant"),
		account(provider.HuobiPool, "g", "ok"),
	})

	require.True(t, provider.IsUnsupported(res.Accounts[0].Err))
	require.NoError(t, res.Accounts[1].Err)
	require.Equal(t, 1.0, res.Totals()["g"].Total.Shares15m)
}

func TestRun_PerAccountTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	slow := NewMockAdapter(ctrl)
	slow.EXPECT().
		Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, q provider.AccountQuery) (provider.SharePayload, error) {
			_, ok := ctx.Deadline()
			require.True(t, ok)
			<-ctx.Done()
			return provider.SharePayload{}, &provider.FetchError{Provider: provider.Poolin, Err: ctx.Err()}
		}).
		Times(2)

	agg := aggregate.New(provider.Registry{provider.Poolin: slow}, aggregate.WithTimeout(20*time.Millisecond))
	res := agg.Run(t.Context(), []provider.AccountQuery{
		account(provider.Poolin, "g", "a"),
		account(provider.Poolin, "g", "b"),
	})

	require.Equal(t, 2, res.Failed())
	for _, ar := range res.Accounts {
		require.True(t, provider.IsFetch(ar.Err))
		require.ErrorIs(t, ar.Err, context.DeadlineExceeded)
	}
}

func TestRun_CanceledRunSkipsRemaining(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	never := NewMockAdapter(ctrl)
	never.EXPECT().Fetch(gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res := aggregate.New(provider.Registry{provider.BtcPool: never}).Run(ctx, []provider.AccountQuery{
		account(provider.BtcPool, "g", "a"),
	})

	require.True(t, provider.IsFetch(res.Accounts[0].Err))
	require.ErrorIs(t, res.Accounts[0].Err, context.Canceled)
	require.Equal(t, 1, res.Totals()["g"].Failed)
}

func TestRun_MalformedResponseDoesNotAffectGroup(t *testing.T) {
	t.Parallel()

	// Arrange: a BtcPool server with one good and one broken account
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("puid") {
		case "1":
			_, _ = w.Write([]byte(`{"err_no":0,"data":{"shares_15m":"12.5","shares_15m_unit":"T","shares_1d":"1","shares_1d_unit":"P"}}`))
		default:
			_, _ = w.Write([]byte(`{"err_no":0,"data":{"shares_15m":`))
		}
	}))
	defer srv.Close()

	reg := provider.NewRegistry(btcpool.New(btcpool.WithHTTPClient(srv.Client())))
	queries := []provider.AccountQuery{
		{URL: srv.URL + "/v1/realtime/hashrate?access_key=k&puid=2", Provider: provider.BtcPool, Group: "g"},
		{URL: srv.URL + "/v1/realtime/hashrate?access_key=k&puid=1", Provider: provider.BtcPool, Group: "g"},
	}

	// Act
	res := aggregate.New(reg).Run(t.Context(), queries)

	// Assert
	require.True(t, provider.IsParse(res.Accounts[0].Err))
	require.NoError(t, res.Accounts[1].Err)
	require.Equal(t, provider.SharePayload{Shares15m: 12.5 / 1024, Shares1d: 1}, res.Totals()["g"].Total)
}
