package google

import (
	"errors"
	"testing"

	"homeledger/internal/core"
)

func TestParseTransaction(t *testing.T) {
	// Cells come back as strings or numbers depending on how they were entered.
	row := toStrings([]any{"2025-03-01", "expense", 12.5, " Dining ", "", "lunch"})

	tx, err := parseTransaction(row)
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if tx.Date.String() != "2025-03-01" || tx.Kind != core.Expense {
		t.Fatalf("unexpected date/kind: %+v", tx)
	}
	if tx.Amount.String() != "12.5" {
		t.Fatalf("amount: got %s", tx.Amount)
	}
	if tx.Category != "Dining" || tx.Note != "lunch" || tx.Account != "" {
		t.Fatalf("unexpected text fields: %+v", tx)
	}
	if tx.Person != core.Household {
		t.Fatalf("blank user should read as household, got %q", tx.Person)
	}
}

func TestParseTransactionRejects(t *testing.T) {
	tests := []struct {
		name string
		row  []string
		want error
	}{
		{"short", []string{"2025-03-01", "expense"}, nil},
		{"bad date", []string{"yesterday", "expense", "1"}, core.ErrInvalidDate},
		{"bad kind", []string{"2025-03-01", "refund", "1"}, core.ErrInvalidKind},
		{"signed amount", []string{"2025-03-01", "expense", "-1"}, core.ErrInvalidAmount},
	}
	for _, tt := range tests {
		_, err := parseTransaction(tt.row)
		if err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		if tt.want != nil && !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestParseSnapshot(t *testing.T) {
	s, err := parseSnapshot(toStrings([]any{"2025/02/01", "mortgage", "liability", "-120000"}))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if s.Identity.Owner != core.JointOwner {
		t.Fatalf("blank owner should read as joint, got %q", s.Identity.Owner)
	}
	if s.Balance.String() != "-120000" || s.Class != core.Liability {
		t.Fatalf("unexpected snapshot: %+v", s)
	}

	if _, err := parseSnapshot([]string{"2025-02-01", "", "liability", "1"}); !errors.Is(err, core.ErrEmptyAssetName) {
		t.Fatalf("expected ErrEmptyAssetName, got %v", err)
	}
	if _, err := parseSnapshot([]string{"2025-02-01", "x", "crypto", "1"}); !errors.Is(err, core.ErrInvalidAssetClass) {
		t.Fatalf("expected ErrInvalidAssetClass, got %v", err)
	}
}

func TestRowRoundTrip(t *testing.T) {
	tx, err := parseTransaction(toStrings([]any{"2025-03-01", "investment_contribution", "1000", "Investing", "wife", "", "etf"}))
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	again, err := parseTransaction(toStrings(transactionRow(tx)))
	if err != nil {
		t.Fatalf("reparse err: %v", err)
	}
	if !again.Amount.Equal(tx.Amount) || !again.Date.Equal(tx.Date) ||
		again.Kind != tx.Kind || again.Person != tx.Person || again.Account != tx.Account || again.Category != tx.Category {
		t.Fatalf("row codec changed the record: %+v vs %+v", again, tx)
	}
}

func TestIsHeader(t *testing.T) {
	if !isHeader(toStrings(transactionHeader)) || !isHeader(toStrings(snapshotHeader)) {
		t.Fatalf("header rows not recognised")
	}
	if isHeader([]string{"2025-01-01"}) || isHeader(nil) {
		t.Fatalf("data row taken for header")
	}
}

func TestLastRow(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"logs!A5:G5", 5, true},
		{"logs!A1:G12", 12, true},
		{"assets!A7", 7, true},
		{"logs!A:G", 0, false},
	}
	for _, tt := range tests {
		got, err := lastRow(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Fatalf("lastRow(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestParseLegacyLabels(t *testing.T) {
	tx, err := parseTransaction([]string{"2026-01-05 00:00:00", "支出", "35.5", "餐饮美食", "老公", ""})
	if err != nil {
		t.Fatalf("parse err: %v", err)
	}
	if tx.Kind != core.Expense || tx.Date.String() != "2026-01-05" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	classes := map[string]core.AssetClass{
		"现金/存款":  core.LiquidFunds,
		"理财产品":   core.LowRiskInvestment,
		"股票/基金":  core.HighRiskInvestment,
		"房产/车产":  core.FixedAsset,
		"负债/信用卡": core.Liability,
	}
	for label, want := range classes {
		s, err := parseSnapshot([]string{"2026-01-31", "招商银行", label, "10000"})
		if err != nil {
			t.Fatalf("%s: parse err: %v", label, err)
		}
		if s.Class != want {
			t.Fatalf("%s: got %s, want %s", label, s.Class, want)
		}
	}
}

func TestToStringsNumbers(t *testing.T) {
	got := toStrings([]any{1234567.0, -1500.0, 35.5, "¥ 1,234"})
	want := []string{"1234567", "-1500", "35.5", "¥ 1,234"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
