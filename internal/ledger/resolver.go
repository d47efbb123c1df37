// Package ledger turns the transaction and asset-snapshot streams into derived
// views: latest balances, monthly rollups, budget progress and investment P&L.
//
// Every function is a pure recompute over the slices it is given. Slices are
// expected in stream insertion order; that order breaks ties wherever dates alone
// do not.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"homeledger/internal/core"
)

// Resolve reduces snapshots to one current balance per asset identity: the entry
// with the latest date, and on a date tie the one appended last.
func Resolve(snapshots []core.AssetSnapshot) map[core.AssetIdentity]core.AssetSnapshot {
	out := make(map[core.AssetIdentity]core.AssetSnapshot, len(snapshots))
	for _, s := range snapshots {
		cur, ok := out[s.Identity]
		// !Before keeps the later insertion on equal dates
		if !ok || !s.Date.Before(cur.Date) {
			out[s.Identity] = s
		}
	}
	return out
}

// Latest returns the resolved snapshots ordered by balance descending, then by
// asset name and owner.
func Latest(snapshots []core.AssetSnapshot) []core.AssetSnapshot {
	resolved := Resolve(snapshots)
	out := make([]core.AssetSnapshot, 0, len(resolved))
	for _, s := range resolved {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		if out[i].Identity.Name != out[j].Identity.Name {
			return out[i].Identity.Name < out[j].Identity.Name
		}
		return out[i].Identity.Owner < out[j].Identity.Owner
	})
	return out
}

// NetWorth sums resolved balances. The result is negative when liabilities
// dominate and is never clamped.
func NetWorth(resolved map[core.AssetIdentity]core.AssetSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, s := range resolved {
		total = total.Add(s.Balance)
	}
	return total
}

// ClassTotal is the resolved balance of one asset class.
type ClassTotal struct {
	Class   core.AssetClass `json:"asset_class"`
	Balance decimal.Decimal `json:"balance"`
	Assets  int             `json:"assets"`
}

// ClassBreakdown groups resolved balances by asset class in the canonical class
// order. Classes without assets are omitted.
func ClassBreakdown(resolved map[core.AssetIdentity]core.AssetSnapshot) []ClassTotal {
	byClass := map[core.AssetClass]*ClassTotal{}
	for _, s := range resolved {
		ct, ok := byClass[s.Class]
		if !ok {
			ct = &ClassTotal{Class: s.Class, Balance: decimal.Zero}
			byClass[s.Class] = ct
		}
		ct.Balance = ct.Balance.Add(s.Balance)
		ct.Assets++
	}
	out := make([]ClassTotal, 0, len(byClass))
	for _, c := range core.AssetClasses() {
		if ct, ok := byClass[c]; ok {
			out = append(out, *ct)
		}
	}
	return out
}

// NetWorthPoint is the household net worth as of one snapshot date.
type NetWorthPoint struct {
	Date     core.Date       `json:"date"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

// NetWorthHistory returns, for every distinct snapshot date in ascending order,
// the net worth of all snapshots taken on or before that date. An asset that was
// not re-read on a given date carries its previous balance forward.
func NetWorthHistory(snapshots []core.AssetSnapshot) []NetWorthPoint {
	if len(snapshots) == 0 {
		return nil
	}
	// stable sort keeps insertion order among equal dates for tie-breaking
	ordered := make([]core.AssetSnapshot, len(snapshots))
	copy(ordered, snapshots)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	current := map[core.AssetIdentity]decimal.Decimal{}
	total := decimal.Zero
	var out []NetWorthPoint
	for i, s := range ordered {
		if prev, ok := current[s.Identity]; ok {
			total = total.Sub(prev)
		}
		current[s.Identity] = s.Balance
		total = total.Add(s.Balance)
		if i+1 == len(ordered) || !ordered[i+1].Date.Equal(s.Date) {
			out = append(out, NetWorthPoint{Date: s.Date, NetWorth: total})
		}
	}
	return out
}
