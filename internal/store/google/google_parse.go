package google

import (
	"fmt"
	"strconv"
	"strings"

	"homeledger/internal/core"
)

// Column layouts. The first six transaction columns and the first four
// snapshot columns match the household workbook; account and owner were added
// at the end so older sheets still read. Rows written by the workbook's own
// form carry Chinese type labels, mapped by legacyKinds and legacyClasses.
var (
	transactionHeader = []any{"date", "type", "amount", "category", "user", "note", "account"}
	snapshotHeader    = []any{"date", "asset_name", "asset_type", "balance", "owner"}
)

var (
	legacyKinds = map[string]core.Kind{
		"支出": core.Expense,
		"收入": core.Income,
	}
	legacyClasses = map[string]core.AssetClass{
		"现金/存款":  core.LiquidFunds,
		"理财产品":   core.LowRiskInvestment,
		"股票/基金":  core.HighRiskInvestment,
		"房产/车产":  core.FixedAsset,
		"负债/信用卡": core.Liability,
	}
)

const (
	transactionCols = "A:G"
	snapshotCols    = "A:E"
)

func transactionRow(t core.Transaction) []any {
	return []any{t.Date.String(), string(t.Kind), t.Amount.String(), t.Category, t.Person, t.Note, t.Account}
}

func snapshotRow(s core.AssetSnapshot) []any {
	return []any{s.Date.String(), s.Identity.Name, string(s.Class), s.Balance.String(), s.Identity.Owner}
}

// parseTransaction decodes one data row. Missing trailing cells read as blank.
func parseTransaction(cols []string) (core.Transaction, error) {
	if len(cols) < 3 {
		return core.Transaction{}, fmt.Errorf("short row: %d cells", len(cols))
	}
	date, err := core.ParseDate(cols[0])
	if err != nil {
		return core.Transaction{}, err
	}
	kind := parseKind(cols[1])
	if !kind.IsValid() {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrInvalidKind, cols[1])
	}
	amount, err := core.ParseAmount(cols[2])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", cols[2], err)
	}
	person := safeGet(cols, 4)
	if person == "" {
		person = core.Household
	}
	return core.Transaction{
		Date:     date,
		Kind:     kind,
		Amount:   amount,
		Category: safeGet(cols, 3),
		Person:   person,
		Note:     safeGet(cols, 5),
		Account:  safeGet(cols, 6),
	}, nil
}

func parseSnapshot(cols []string) (core.AssetSnapshot, error) {
	if len(cols) < 4 {
		return core.AssetSnapshot{}, fmt.Errorf("short row: %d cells", len(cols))
	}
	date, err := core.ParseDate(cols[0])
	if err != nil {
		return core.AssetSnapshot{}, err
	}
	name := strings.TrimSpace(cols[1])
	if name == "" {
		return core.AssetSnapshot{}, core.ErrEmptyAssetName
	}
	class := parseClass(cols[2])
	if !class.IsValid() {
		return core.AssetSnapshot{}, fmt.Errorf("%w: %q", core.ErrInvalidAssetClass, cols[2])
	}
	balance, err := core.ParseBalance(cols[3])
	if err != nil {
		return core.AssetSnapshot{}, fmt.Errorf("balance %q: %w", cols[3], err)
	}
	owner := safeGet(cols, 4)
	if owner == "" {
		owner = core.JointOwner
	}
	return core.AssetSnapshot{
		Date:     date,
		Identity: core.AssetIdentity{Name: name, Owner: owner},
		Class:    class,
		Balance:  balance,
	}, nil
}

func parseKind(s string) core.Kind {
	s = strings.TrimSpace(s)
	if k, ok := legacyKinds[s]; ok {
		return k
	}
	return core.Kind(s)
}

func parseClass(s string) core.AssetClass {
	s = strings.TrimSpace(s)
	if c, ok := legacyClasses[s]; ok {
		return c
	}
	return core.AssetClass(s)
}

// isHeader reports whether a row is the column header rather than data.
func isHeader(cols []string) bool {
	return len(cols) > 0 && strings.EqualFold(strings.TrimSpace(cols[0]), "date")
}

// toStrings renders cells as text. Unformatted numeric cells arrive as
// float64 and are written without exponent.
func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if f, ok := v.(float64); ok {
			out[i] = strconv.FormatFloat(f, 'f', -1, 64)
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return strings.TrimSpace(arr[idx])
}
