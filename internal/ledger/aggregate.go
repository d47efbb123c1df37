package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"homeledger/internal/core"
)

// Placeholders substituted for blank grouping values so that breakdowns never
// contain an empty-string node.
const (
	NoNote        = "no note"
	Uncategorized = "uncategorized"
	NoAccount     = "no account"
)

// GroupKey names a transaction attribute usable as a grouping dimension.
type GroupKey string

const (
	ByCategory GroupKey = "category"
	ByAccount  GroupKey = "account"
	ByPerson   GroupKey = "person"
	ByKind     GroupKey = "kind"
	ByNote     GroupKey = "note"
	ByMonth    GroupKey = "month"
)

// Window is an inclusive range of months. The zero Window spans all history.
type Window struct {
	From, To Month
}

// SingleMonth is the window covering only m.
func SingleMonth(m Month) Window { return Window{From: m, To: m} }

// YearWindow covers January through December of year.
func YearWindow(year int) Window {
	months := YearMonths(year)
	return Window{From: months[0], To: months[len(months)-1]}
}

// IsAll reports whether w places no time restriction.
func (w Window) IsAll() bool { return w == Window{} }

// Contains reports whether d falls inside w.
func (w Window) Contains(d core.Date) bool {
	if w.IsAll() {
		return true
	}
	m := MonthOf(d)
	return !m.Before(w.From) && !w.To.Before(m)
}

// Query selects and groups transactions.
type Query struct {
	Window  Window
	GroupBy []GroupKey
	// Persons to include; empty means everyone.
	Persons []string
	// Kinds to include; empty means every kind not excluded.
	Kinds []core.Kind
	// ExcludeKinds is applied after Kinds. Trend reports exclude investment
	// contributions so capital transfers are not counted as spending.
	ExcludeKinds []core.Kind
}

// Matches reports whether t passes the query's filters.
func (q Query) Matches(t core.Transaction) bool {
	if !q.Window.Contains(t.Date) {
		return false
	}
	if len(q.Persons) > 0 && !slices.Contains(q.Persons, t.Person) {
		return false
	}
	if len(q.Kinds) > 0 && !slices.Contains(q.Kinds, t.Kind) {
		return false
	}
	return !slices.Contains(q.ExcludeKinds, t.Kind)
}

// Group is one output row of Aggregate.
type Group struct {
	Keys  []string        `json:"keys"`
	Sum   decimal.Decimal `json:"sum"`
	Count int             `json:"count"`
}

// Key joins the group's key values for display.
func (g Group) Key() string { return strings.Join(g.Keys, " / ") }

// Aggregate filters txs by q and sums amounts per distinct GroupBy tuple. Groups
// come out in first-seen order. Without GroupBy a single total group is always
// returned, with a zero sum when nothing matched.
func Aggregate(txs []core.Transaction, q Query) []Group {
	if len(q.GroupBy) == 0 {
		g := Group{Keys: []string{}, Sum: decimal.Zero}
		for _, t := range txs {
			if q.Matches(t) {
				g.Sum = g.Sum.Add(t.Amount)
				g.Count++
			}
		}
		return []Group{g}
	}

	index := map[string]int{}
	var out []Group
	for _, t := range txs {
		if !q.Matches(t) {
			continue
		}
		keys := make([]string, len(q.GroupBy))
		for i, k := range q.GroupBy {
			keys[i] = keyValue(t, k)
		}
		id := strings.Join(keys, "\x00")
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, Group{Keys: keys, Sum: decimal.Zero})
		}
		out[i].Sum = out[i].Sum.Add(t.Amount)
		out[i].Count++
	}
	return out
}

// Total is the filtered sum of txs; zero for an empty selection.
func Total(txs []core.Transaction, q Query) decimal.Decimal {
	q.GroupBy = nil
	return Aggregate(txs, q)[0].Sum
}

// Select returns the transactions matching q, preserving order.
func Select(txs []core.Transaction, q Query) []core.Transaction {
	var out []core.Transaction
	for _, t := range txs {
		if q.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Lookup returns the sum of the group with the given keys, or zero when no such
// group exists.
func Lookup(groups []Group, keys ...string) decimal.Decimal {
	for _, g := range groups {
		if slices.Equal(g.Keys, keys) {
			return g.Sum
		}
	}
	return decimal.Zero
}

// MonthlySummary is the cash-flow headline of one month.
type MonthlySummary struct {
	Month      Month           `json:"month"`
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Investment decimal.Decimal `json:"investment"`
	// Balance is income minus expense; contributions move capital and are not spending.
	Balance decimal.Decimal `json:"balance"`
}

// Summarize computes the cash-flow headline for m.
func Summarize(txs []core.Transaction, m Month, persons ...string) MonthlySummary {
	groups := Aggregate(txs, Query{Window: SingleMonth(m), GroupBy: []GroupKey{ByKind}, Persons: persons})
	s := MonthlySummary{
		Month:      m,
		Income:     Lookup(groups, string(core.Income)),
		Expense:    Lookup(groups, string(core.Expense)),
		Investment: Lookup(groups, string(core.InvestmentContribution)),
	}
	s.Balance = s.Income.Sub(s.Expense)
	return s
}

func keyValue(t core.Transaction, k GroupKey) string {
	switch k {
	case ByCategory:
		return orPlaceholder(t.Category, Uncategorized)
	case ByAccount:
		return orPlaceholder(t.Account, NoAccount)
	case ByPerson:
		return orPlaceholder(t.Person, core.Household)
	case ByKind:
		return string(t.Kind)
	case ByNote:
		return orPlaceholder(t.Note, NoNote)
	case ByMonth:
		return MonthOf(t.Date).String()
	}
	return ""
}

func orPlaceholder(v, placeholder string) string {
	if v = strings.TrimSpace(v); v == "" {
		return placeholder
	}
	return v
}
