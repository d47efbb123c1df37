package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"homeledger/internal/core"
)

// TotalNode is the name of a hierarchy root.
const TotalNode = "total"

// Node is one level of a treemap-style breakdown.
type Node struct {
	Name     string          `json:"name"`
	Amount   decimal.Decimal `json:"amount"`
	Children []*Node         `json:"children,omitempty"`
}

// BuildHierarchy groups txs into total -> category -> note. Callers filter the
// transactions first, typically to one month's expenses. Blank categories and
// notes fall under their placeholders.
func BuildHierarchy(txs []core.Transaction) *Node {
	root := &Node{Name: TotalNode, Amount: decimal.Zero}
	categories := map[string]*Node{}
	for _, g := range Aggregate(txs, Query{GroupBy: []GroupKey{ByCategory, ByNote}}) {
		cat, ok := categories[g.Keys[0]]
		if !ok {
			cat = &Node{Name: g.Keys[0], Amount: decimal.Zero}
			categories[g.Keys[0]] = cat
			root.Children = append(root.Children, cat)
		}
		cat.Children = append(cat.Children, &Node{Name: g.Keys[1], Amount: g.Sum})
		cat.Amount = cat.Amount.Add(g.Sum)
		root.Amount = root.Amount.Add(g.Sum)
	}
	return root
}

// Verify checks that every inner node's amount equals the sum of its children.
// Leaves always pass.
func (n *Node) Verify() error {
	if len(n.Children) == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, c := range n.Children {
		if err := c.Verify(); err != nil {
			return fmt.Errorf("%s: %w", n.Name, err)
		}
		sum = sum.Add(c.Amount)
	}
	if !sum.Equal(n.Amount) {
		return fmt.Errorf("%s: children sum to %s, node holds %s", n.Name, sum, n.Amount)
	}
	return nil
}

// TrendPoint is one (month, kind) cell of a trend series.
type TrendPoint struct {
	Month  Month           `json:"month"`
	Kind   core.Kind       `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// TrendSeries sums txs per month and kind in first-seen order. Investment
// contributions are left out unless q selects kinds explicitly.
func TrendSeries(txs []core.Transaction, q Query) []TrendPoint {
	if len(q.Kinds) == 0 && len(q.ExcludeKinds) == 0 {
		q.ExcludeKinds = []core.Kind{core.InvestmentContribution}
	}

	type cell struct {
		month Month
		kind  core.Kind
	}
	index := make(map[cell]int)
	var out []TrendPoint
	for _, t := range Select(txs, q) {
		c := cell{month: MonthOf(t.Date), kind: t.Kind}
		i, ok := index[c]
		if !ok {
			i = len(out)
			index[c] = i
			out = append(out, TrendPoint{Month: c.month, Kind: c.kind, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	if out == nil {
		out = []TrendPoint{}
	}
	return out
}
