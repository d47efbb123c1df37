package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Expense                Kind = "expense"
	Income                 Kind = "income"
	InvestmentContribution Kind = "investment_contribution"
)

const (
	LiquidFunds        AssetClass = "liquid_funds"
	LowRiskInvestment  AssetClass = "low_risk_investment"
	HighRiskInvestment AssetClass = "high_risk_investment"
	FixedAsset         AssetClass = "fixed_asset"
	Liability          AssetClass = "liability"
)

const (
	// Household is the shared person value for entries that belong to nobody in particular.
	Household = "household"
	// JointOwner is the owner designation for assets held together.
	JointOwner = "joint"
)

// DateLayout is the canonical on-disk and wire layout for dates.
const DateLayout = "2006-01-02"

type (
	// Kind carries the direction of a transaction; amounts are never signed.
	Kind string

	// AssetClass groups assets for net-worth breakdowns and P&L.
	AssetClass string

	Date struct {
		time.Time
	}

	// Transaction is one household cash-flow event. Immutable once appended.
	Transaction struct {
		Date     Date            `json:"date"`
		Kind     Kind            `json:"kind"`
		Amount   decimal.Decimal `json:"amount"`
		Category string          `json:"category"`
		Account  string          `json:"account,omitempty"` // soft reference to AssetIdentity.Name
		Person   string          `json:"person"`
		Note     string          `json:"note,omitempty"`
	}

	// AssetIdentity identifies one trackable account or holding.
	AssetIdentity struct {
		Name  string `json:"asset_name"`
		Owner string `json:"owner"`
	}

	// AssetSnapshot is a point-in-time balance reading. Liabilities carry negative balances.
	AssetSnapshot struct {
		Date     Date            `json:"date"`
		Identity AssetIdentity   `json:"identity"`
		Class    AssetClass      `json:"asset_class"`
		Balance  decimal.Decimal `json:"balance"`
	}
)

// Kinds lists every valid transaction kind in display order.
func Kinds() []Kind {
	return []Kind{Expense, Income, InvestmentContribution}
}

// AssetClasses lists every valid asset class in display order.
func AssetClasses() []AssetClass {
	return []AssetClass{LiquidFunds, LowRiskInvestment, HighRiskInvestment, FixedAsset, Liability}
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case Expense, Income, InvestmentContribution:
		return true
	}
	return false
}

// IsValid reports whether c is a known asset class.
func (c AssetClass) IsValid() bool {
	switch c {
	case LiquidFunds, LowRiskInvestment, HighRiskInvestment, FixedAsset, Liability:
		return true
	}
	return false
}

// IsInvestment reports whether the class counts towards investment market value.
func (c AssetClass) IsInvestment() bool {
	return c == LowRiskInvestment || c == HighRiskInvestment
}

func (id AssetIdentity) String() string {
	return id.Name + " (" + id.Owner + ")"
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD, YYYY/MM/DD and full timestamps as written by
// spreadsheet exports. Time-of-day is discarded.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range []string{DateLayout, "2006/01/02", time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before reports whether d is a strictly earlier day than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is a strictly later day than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
