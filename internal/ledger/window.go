package ledger

import (
	"fmt"
	"time"

	"homeledger/internal/core"
)

// Month is a calendar-month bucket, the unit of every time window.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf truncates a date to its year-month bucket.
func MonthOf(d core.Date) Month {
	return Month{Year: d.Year(), Month: d.Month()}
}

// NewMonth builds a month from a year and a 1-based month number.
func NewMonth(year, month int) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, fmt.Errorf("invalid month: %d", month)
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// ParseMonth reads a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentMonth returns the bucket containing now.
func CurrentMonth(now time.Time) Month {
	return Month{Year: now.Year(), Month: now.Month()}
}

// Contains reports whether d falls inside m.
func (m Month) Contains(d core.Date) bool {
	return d.Year() == m.Year && d.Month() == m.Month
}

// Next returns the following month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m is earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// YearMonths returns January through December of year.
func YearMonths(year int) []Month {
	out := make([]Month, 0, 12)
	for m := time.January; m <= time.December; m++ {
		out = append(out, Month{Year: year, Month: m})
	}
	return out
}
