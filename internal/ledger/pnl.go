package ledger

import (
	"github.com/shopspring/decimal"

	"homeledger/internal/core"
)

// PnL compares capital committed to investments with their current value.
type PnL struct {
	Principal   decimal.Decimal `json:"principal"`
	MarketValue decimal.Decimal `json:"market_value"`
	PnL         decimal.Decimal `json:"pnl"`
	// Ratio is PnL/Principal, zero when nothing was contributed.
	Ratio decimal.Decimal `json:"pnl_ratio"`
}

// ComputePnL sums every investment contribution ever recorded as principal and
// the resolved balances of low and high risk investment assets as market value.
// Principal and value are matched by asset class only: contributions booked
// against one account alias and snapshots taken under another still offset.
func ComputePnL(txs []core.Transaction, snapshots []core.AssetSnapshot) PnL {
	principal := Total(txs, Query{Kinds: []core.Kind{core.InvestmentContribution}})
	value := decimal.Zero
	for _, s := range Resolve(snapshots) {
		if s.Class.IsInvestment() {
			value = value.Add(s.Balance)
		}
	}
	return newPnL(principal, value)
}

func newPnL(principal, value decimal.Decimal) PnL {
	p := PnL{
		Principal:   principal,
		MarketValue: value,
		PnL:         value.Sub(principal),
		Ratio:       decimal.Zero,
	}
	if principal.IsPositive() {
		p.Ratio = p.PnL.Div(principal)
	}
	return p
}

// AccountPnL is the P&L of one investment asset name.
type AccountPnL struct {
	Account string `json:"account"`
	PnL
}

// ComputePnLByAccount links each contribution to the investment assets whose
// name equals the transaction's account. Contributions without a matching asset
// are reported under NoAccount; investment assets without contributions appear
// with zero principal. Owners are merged: an account name spans all owners.
func ComputePnLByAccount(txs []core.Transaction, snapshots []core.AssetSnapshot) []AccountPnL {
	values := map[string]decimal.Decimal{}
	var order []string
	for _, s := range Latest(snapshots) {
		if !s.Class.IsInvestment() {
			continue
		}
		if _, ok := values[s.Identity.Name]; !ok {
			order = append(order, s.Identity.Name)
			values[s.Identity.Name] = decimal.Zero
		}
		values[s.Identity.Name] = values[s.Identity.Name].Add(s.Balance)
	}

	principals := map[string]decimal.Decimal{}
	groups := Aggregate(txs, Query{Kinds: []core.Kind{core.InvestmentContribution}, GroupBy: []GroupKey{ByAccount}})
	unlinked := decimal.Zero
	for _, g := range groups {
		if _, ok := values[g.Keys[0]]; ok {
			principals[g.Keys[0]] = g.Sum
		} else {
			unlinked = unlinked.Add(g.Sum)
		}
	}

	out := make([]AccountPnL, 0, len(order)+1)
	for _, name := range order {
		p, ok := principals[name]
		if !ok {
			p = decimal.Zero
		}
		out = append(out, AccountPnL{Account: name, PnL: newPnL(p, values[name])})
	}
	if !unlinked.IsZero() {
		out = append(out, AccountPnL{Account: NoAccount, PnL: newPnL(unlinked, decimal.Zero)})
	}
	return out
}
