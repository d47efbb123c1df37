// Package services orchestrates the ledger: the validated write path, the
// cached report read path and recurring transaction booking.
//
// This file holds the dueness strategies used by recurring templates. Each
// frequency decides on its own whether a template is due today.
package services

import (
	"fmt"
	"time"

	"homeledger/internal/core"
)

// Frequency is how often a recurring template books a transaction.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// DuenessChecker decides whether a template is due on today, given the date it
// was last booked (zero when never) and its start date.
type DuenessChecker interface {
	IsDue(last, today, start core.Date) bool
}

// DailyChecker books once per calendar day.
type DailyChecker struct{}

func (DailyChecker) IsDue(last, today, _ core.Date) bool {
	return last.IsZero() || last.Before(today)
}

// WeeklyChecker books when seven or more days passed since the last booking.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(last, today, _ core.Date) bool {
	if last.IsZero() {
		return true
	}
	return today.Sub(last.Time) >= 7*24*time.Hour
}

// MonthlyChecker books once per month, on or after the start date's day. Days
// past the end of a short month fall on its last day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(last, today, start core.Date) bool {
	if last.IsZero() {
		return true
	}
	if last.Year() == today.Year() && last.Month() == today.Month() {
		return false
	}
	return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
}

// YearlyChecker books once per year, on or after the start date's month and day.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(last, today, start core.Date) bool {
	if last.IsZero() {
		return true
	}
	if last.Year() == today.Year() {
		return false
	}
	switch {
	case today.Month() < start.Month():
		return false
	case today.Month() == start.Month():
		return today.Day() >= clampDay(today.Year(), today.Month(), start.Day())
	}
	return true
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

var duenessStrategies = map[Frequency]DuenessChecker{
	Daily:   DailyChecker{},
	Weekly:  WeeklyChecker{},
	Monthly: MonthlyChecker{},
	Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for a frequency.
func RegisterDuenessChecker(frequency Frequency, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}
