package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"poolwatch/internal/aggregate"
	"poolwatch/internal/provider"
	"poolwatch/internal/report"
)

func sample() *aggregate.Result {
	wang := provider.AccountQuery{URL: "https://pool.btc.com/v1/realtime/hashrate?access_key=secret&puid=1", Provider: provider.BtcPool, Group: "a", Label: "wangp001", Nominal: "280T"}
	spider := provider.AccountQuery{URL: "https://www.spiderpool.com/coin/show/btc/bmytest1/detail.html", Provider: provider.SpiderPool, Group: "a", Label: "bmytest1"}
	huobi := provider.AccountQuery{URL: "https://www.huobipool.com/p4/pow/sub_user_speed?visitor_path=x", Provider: provider.HuobiPool, Group: "b", Label: "huobi"}

	return &aggregate.Result{
		Accounts: []aggregate.AccountResult{
			{Query: wang, Payload: provider.SharePayload{Shares15m: 0.25, Shares1d: 280.0 / 1024}, Duration: 120 * time.Millisecond},
			{Query: spider, Err: &provider.ParseError{Provider: provider.SpiderPool, Err: errors.New("unexpected end of JSON input")}},
			{Query: huobi, Payload: provider.SharePayload{Shares15m: 1234.5, Shares1d: 0.01}},
		},
		Groups: []aggregate.GroupTotal{
			{Name: "a", Total: provider.SharePayload{Shares15m: 0.25, Shares1d: 280.0 / 1024}, Accounts: 2, Failed: 1},
			{Name: "b", Total: provider.SharePayload{Shares15m: 1234.5, Shares1d: 0.01}, Accounts: 1},
		},
	}
}

func TestRender_ContainsAccountsAndGroupTotals(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report.Render(&buf, sample())
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")

	require.Len(t, lines, 6)
	require.Contains(t, lines[0], "wangp001")
	require.Contains(t, lines[0], "0.25 PH/s")
	require.Contains(t, lines[0], "100.0% of 280T")
	require.Contains(t, lines[1], "bmytest1")
	require.Contains(t, lines[1], "parse_error")
	require.True(t, strings.HasPrefix(lines[2], "= a "))
	require.Contains(t, lines[2], "(2 accounts, 1 failed)")
	require.Contains(t, lines[3], "1,234.5 PH/s")
	require.True(t, strings.HasPrefix(lines[4], "= b "))
	require.Equal(t, "accounts: 2 ok, 1 failed", lines[5])
	require.NotContains(t, out, "secret")
}

func TestText_StreamsAsObserver(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var obs aggregate.Observer = report.NewText(&buf)
	res := sample()

	obs.AccountDone(res.Accounts[2])
	require.Contains(t, buf.String(), "huobi")
	obs.GroupDone(res.Groups[1])
	require.Contains(t, buf.String(), "= b ")
}

func TestText_RepeatedGroupIsMarkedMerged(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	text := report.NewText(&buf)
	text.GroupDone(aggregate.GroupTotal{Name: "a", Total: provider.SharePayload{Shares15m: 1}, Accounts: 1})
	text.GroupDone(aggregate.GroupTotal{Name: "b", Accounts: 1})
	text.GroupDone(aggregate.GroupTotal{Name: "a", Total: provider.SharePayload{Shares15m: 3}, Accounts: 2})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "total")
	require.Contains(t, lines[1], "total")
	require.Contains(t, lines[2], "merged")
	require.Contains(t, lines[2], "(2 accounts, 0 failed)")
}

func TestJSON_Document(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, report.JSON(&buf, sample()))
	require.NotContains(t, buf.String(), "secret")

	var doc report.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, "PH/s", doc.Unit)
	require.Equal(t, 1, doc.Failed)
	require.Len(t, doc.Accounts, 3)

	require.NotNil(t, doc.Accounts[0].Payload)
	require.NotNil(t, doc.Accounts[0].Efficiency)
	require.InDelta(t, 100.0, *doc.Accounts[0].Efficiency, 1e-9)
	require.EqualValues(t, 120, doc.Accounts[0].DurationMS)

	require.Nil(t, doc.Accounts[1].Payload)
	require.Equal(t, "parse_error", doc.Accounts[1].ErrorClass)

	require.Equal(t, []report.GroupDocument{
		{Name: "a", Total: provider.SharePayload{Shares15m: 0.25, Shares1d: 280.0 / 1024}, Accounts: 2, Failed: 1},
		{Name: "b", Total: provider.SharePayload{Shares15m: 1234.5, Shares1d: 0.01}, Accounts: 1},
	}, doc.Groups)
}

func TestEfficiency(t *testing.T) {
	t.Parallel()

	ar := aggregate.AccountResult{
		Query:   provider.AccountQuery{Nominal: "1P"},
		Payload: provider.SharePayload{Shares1d: 0.5},
	}
	pct, ok := report.Efficiency(ar)
	require.True(t, ok)
	require.Equal(t, 50.0, pct)

	ar.Query.Nominal = "lots"
	_, ok = report.Efficiency(ar)
	require.False(t, ok)
}
