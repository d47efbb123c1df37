package ledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"homeledger/internal/core"
)

// BudgetState classifies how much of a ceiling has been consumed.
type BudgetState string

const (
	BudgetNormal   BudgetState = "normal"
	BudgetWarning  BudgetState = "warning"
	BudgetExceeded BudgetState = "exceeded"
)

var (
	warningRatio = decimal.RequireFromString("0.8")
	hundred      = decimal.NewFromInt(100)
)

// Budget is a monthly spending ceiling for every category its label matches.
type Budget struct {
	Label   string          `json:"label"`
	Ceiling decimal.Decimal `json:"ceiling"`
}

// BudgetStatus is the budget-vs-actual result for one label.
type BudgetStatus struct {
	Label   string          `json:"label"`
	Ceiling decimal.Decimal `json:"ceiling"`
	Spent   decimal.Decimal `json:"spent"`
	// Ratio is spent/ceiling, uncapped.
	Ratio decimal.Decimal `json:"ratio"`
	// Percent is Ratio*100 capped at 100 for display.
	Percent decimal.Decimal `json:"percent"`
	State   BudgetState     `json:"state"`
	// Misconfigured is set when the ceiling is not positive; the status then
	// degrades to zero percent and normal.
	Misconfigured bool `json:"misconfigured,omitempty"`
}

// Track compares expense spend against each budget. Only expense transactions
// are counted; callers pass the month they want evaluated. With the substring
// strategy a transaction whose category contains two labels counts against both.
func Track(txs []core.Transaction, budgets []Budget, m Matcher) []BudgetStatus {
	if m == nil {
		m = SubstringMatcher{}
	}
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := decimal.Zero
		for _, t := range txs {
			if t.Kind == core.Expense && m.Match(b.Label, t.Category) {
				spent = spent.Add(t.Amount)
			}
		}
		out = append(out, evaluate(b, spent))
	}
	return out
}

func evaluate(b Budget, spent decimal.Decimal) BudgetStatus {
	st := BudgetStatus{
		Label:   b.Label,
		Ceiling: b.Ceiling,
		Spent:   spent,
		Ratio:   decimal.Zero,
		Percent: decimal.Zero,
		State:   BudgetNormal,
	}
	if !b.Ceiling.IsPositive() {
		st.Misconfigured = true
		return st
	}
	st.Ratio = spent.Div(b.Ceiling)
	st.Percent = decimal.Min(st.Ratio.Mul(hundred), hundred).Round(2)
	switch {
	case st.Ratio.GreaterThanOrEqual(decimal.NewFromInt(1)):
		st.State = BudgetExceeded
	case st.Ratio.GreaterThanOrEqual(warningRatio):
		st.State = BudgetWarning
	}
	return st
}

// Alerts returns the statuses that are not normal.
func Alerts(statuses []BudgetStatus) []BudgetStatus {
	var out []BudgetStatus
	for _, s := range statuses {
		if s.State != BudgetNormal {
			out = append(out, s)
		}
	}
	return out
}

// ParseBudgets reads "label=ceiling" pairs separated by commas or semicolons,
// keeping the declared order. Unparsable pairs are skipped and reported as
// ConfigurationErrors; non-positive ceilings are kept so the report can flag them.
func ParseBudgets(s string) ([]Budget, []error) {
	var (
		out  []Budget
		errs []error
	)
	for _, pair := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		label, value, ok := strings.Cut(pair, "=")
		label = strings.TrimSpace(label)
		if !ok || label == "" {
			errs = append(errs, &core.ConfigurationError{Label: label, Err: fmt.Errorf("expected label=ceiling, got %q", pair)})
			continue
		}
		ceiling, err := core.ParseBalance(value)
		if err != nil {
			errs = append(errs, &core.ConfigurationError{Label: label, Err: err})
			continue
		}
		if !ceiling.IsPositive() {
			errs = append(errs, &core.ConfigurationError{Label: label, Err: core.ErrInvalidCeiling})
		}
		out = append(out, Budget{Label: label, Ceiling: ceiling})
	}
	return out, errs
}

// BudgetsFromMap converts a label->ceiling mapping, ordered by label.
func BudgetsFromMap(m map[string]decimal.Decimal) []Budget {
	out := make([]Budget, 0, len(m))
	for label, ceiling := range m {
		out = append(out, Budget{Label: label, Ceiling: ceiling})
	}
	slices.SortFunc(out, func(a, b Budget) int { return strings.Compare(a.Label, b.Label) })
	return out
}
