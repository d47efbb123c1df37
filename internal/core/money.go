// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by users or
// read back from spreadsheet cells.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered string into a non-negative decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and strips
// spaces and thousands separators written as apostrophes. A comma followed by
// groups of exactly three digits (1,234 or 12,345,678) is a thousands separator. Signs are rejected: the
// direction of a transaction is carried by its Kind. Zero is accepted here and
// rejected later by the Validator, so spreadsheet rows can still be read back.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("1,234") -> 1234, nil
//	ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = normalizeNumber(s)
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// ParseBalance converts a signed balance string. Liabilities are negative.
func ParseBalance(s string) (decimal.Decimal, error) {
	s = normalizeNumber(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "", "'", "", "¥", "", "€", "", "$", "").Replace(s)
	// "1.234,56" keeps the last separator as decimal point
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	}
	if groups := strings.Split(s, ","); len(groups) > 1 {
		if isThousandsGrouping(groups) {
			return strings.Join(groups, "")
		}
		if len(groups) > 2 {
			return s
		}
	}
	return strings.ReplaceAll(s, ",", ".")
}

// isThousandsGrouping reports whether comma-split groups read as 1,234,567.
func isThousandsGrouping(groups []string) bool {
	head := strings.TrimLeft(groups[0], "+-")
	if head == "" || len(head) > 3 || !isDigits(head) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !isDigits(g) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
