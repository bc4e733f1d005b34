package config

import (
	"errors"
	"fmt"

	"poolwatch/internal/hashrate"
	"poolwatch/internal/provider"
	"poolwatch/internal/provider/poolin"
	"poolwatch/internal/provider/spiderpool"
)

// CheckURL verifies that rawURL has the shape kind expects, without any I/O.
// Adapters run the same check per account; it is exposed for tools that want
// to report a bad URL before fetching.
func CheckURL(kind provider.Kind, rawURL string) error {
	switch kind {
	case provider.SpiderPool:
		_, err := spiderpool.Dashboard.Extract(rawURL)
		return err
	case provider.Poolin:
		_, err := poolin.Dashboard.Extract(rawURL)
		return err
	}
	return provider.CheckURL(rawURL)
}

// ValidateAccounts checks that each account names a provider, a group and a
// URL, that accounts of one group are listed next to each other, and that
// names are unique within a group. URL shapes are not checked here: a URL
// that does not match its provider's template fails only that account.
func ValidateAccounts(accounts []provider.AccountQuery) error {
	var errs []error
	closed := make(map[string]int)
	names := make(map[string]int)
	for i, a := range accounts {
		at := fmt.Sprintf("accounts[%d]", i)
		if a.Label != "" {
			at += " (" + a.Label + ")"
		}

		if a.Provider == "" {
			errs = append(errs, fmt.Errorf("%s: provider is required", at))
		} else if _, err := provider.ParseKind(string(a.Provider)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", at, err))
		}
		if a.Group == "" {
			errs = append(errs, fmt.Errorf("%s: group is required", at))
		}
		if a.URL == "" {
			errs = append(errs, fmt.Errorf("%s: url is required", at))
		}
		if a.Nominal != "" {
			if _, err := hashrate.ParseQuantity(a.Nominal); err != nil {
				errs = append(errs, fmt.Errorf("%s: nominal: %w", at, err))
			}
		}

		key := a.Group + "\x00" + a.Name()
		if prev, ok := names[key]; ok {
			errs = append(errs, fmt.Errorf("%s: name %q is already used by accounts[%d] in group %q; set a label", at, a.Name(), prev, a.Group))
		} else {
			names[key] = i
		}

		if i > 0 && accounts[i-1].Group != a.Group {
			closed[accounts[i-1].Group] = i - 1
		}
		if last, ok := closed[a.Group]; ok && a.Group != "" {
			errs = append(errs, fmt.Errorf("%s: group %q already ended at accounts[%d]; list its accounts together", at, a.Group, last))
		}
	}
	return errors.Join(errs...)
}
