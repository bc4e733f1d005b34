// Package report renders aggregation results as text or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"poolwatch/internal/aggregate"
	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
)

// Efficiency returns the day hash rate as a percentage of the account's
// nominal capacity. ok is false when no usable nominal is configured.
func Efficiency(ar aggregate.AccountResult) (pct float64, ok bool) {
	if ar.Query.Nominal == "" || ar.Err != nil {
		return 0, false
	}
	nominal, err := hashrate.ParseQuantity(ar.Query.Nominal)
	if err != nil || nominal <= 0 {
		return 0, false
	}
	return ar.Payload.Shares1d / nominal * 100, true
}

func rate(v float64) string {
	return humanize.CommafWithDigits(v, 4) + " " + hashrate.Canonical
}

// Text writes one line per account and per group as a run progresses. It
// implements aggregate.Observer.
type Text struct {
	w      io.Writer
	ok     int
	failed int
	seen   map[string]bool
}

// NewText returns a Text writer on w.
func NewText(w io.Writer) *Text { return &Text{w: w} }

func (t *Text) AccountDone(ar aggregate.AccountResult) {
	if ar.Err != nil {
		t.failed++
		fmt.Fprintf(t.w, "  %-20s %-10s  error (%s): %v\n", ar.Query.Name(), ar.Query.Provider, provider.Class(ar.Err), ar.Err)
		return
	}
	t.ok++
	line := fmt.Sprintf("  %-20s %-10s  15m %-16s 1d %-16s", ar.Query.Name(), ar.Query.Provider, rate(ar.Payload.Shares15m), rate(ar.Payload.Shares1d))
	if pct, ok := Efficiency(ar); ok {
		line += fmt.Sprintf(" %5.1f%% of %s", pct, ar.Query.Nominal)
	}
	fmt.Fprintln(t.w, line)
}

// GroupDone writes the group total. A group seen before is written as
// "merged": its accounts were listed apart and the total covers all of them.
func (t *Text) GroupDone(g aggregate.GroupTotal) {
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	kind := "total"
	if t.seen[g.Name] {
		kind = "merged"
	}
	t.seen[g.Name] = true
	fmt.Fprintf(t.w, "= %-20s %-10s  15m %-16s 1d %-16s (%d accounts, %d failed)\n",
		g.Name, kind, rate(g.Total.Shares15m), rate(g.Total.Shares1d), g.Accounts, g.Failed)
}

// Footer writes the run summary.
func (t *Text) Footer() {
	fmt.Fprintf(t.w, "accounts: %d ok, %d failed\n", t.ok, t.failed)
}

// Render writes a finished result in the Text format, group by group.
func Render(w io.Writer, res *aggregate.Result) {
	t := NewText(w)
	for _, g := range res.Groups {
		for _, ar := range res.Accounts {
			if ar.Query.Group == g.Name {
				t.AccountDone(ar)
			}
		}
		t.GroupDone(g)
	}
	t.Footer()
}

// Document is the JSON form of a result. Account URLs are left out because
// they carry credentials.
type Document struct {
	Unit     string            `json:"unit"`
	Accounts []AccountDocument `json:"accounts"`
	Groups   []GroupDocument   `json:"groups"`
	Failed   int               `json:"failed"`
}

type AccountDocument struct {
	Name       string                 `json:"name"`
	Provider   provider.Kind          `json:"provider"`
	Group      string                 `json:"group"`
	Payload    *provider.SharePayload `json:"payload,omitempty"`
	Nominal    string                 `json:"nominal,omitempty"`
	Efficiency *float64               `json:"efficiency_pct,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ErrorClass string                 `json:"error_class,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
}

type GroupDocument struct {
	Name     string                `json:"name"`
	Total    provider.SharePayload `json:"total"`
	Accounts int                   `json:"accounts"`
	Failed   int                   `json:"failed"`
}

// NewDocument builds the JSON document for res.
func NewDocument(res *aggregate.Result) Document {
	doc := Document{
		Unit:     hashrate.Canonical,
		Accounts: make([]AccountDocument, 0, len(res.Accounts)),
		Groups:   make([]GroupDocument, 0, len(res.Groups)),
		Failed:   res.Failed(),
	}
	for _, ar := range res.Accounts {
		ad := AccountDocument{
			Name:       ar.Query.Name(),
			Provider:   ar.Query.Provider,
			Group:      ar.Query.Group,
			Nominal:    ar.Query.Nominal,
			DurationMS: ar.Duration.Milliseconds(),
		}
		if ar.Err != nil {
			ad.Error = ar.Err.Error()
			ad.ErrorClass = provider.Class(ar.Err)
		} else {
			p := ar.Payload
			ad.Payload = &p
		}
		if pct, ok := Efficiency(ar); ok {
			ad.Efficiency = &pct
		}
		doc.Accounts = append(doc.Accounts, ad)
	}
	for _, g := range res.Groups {
		doc.Groups = append(doc.Groups, GroupDocument{Name: g.Name, Total: g.Total, Accounts: g.Accounts, Failed: g.Failed})
	}
	return doc
}

// JSON writes res as an indented JSON document.
func JSON(w io.Writer, res *aggregate.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(res))
}
