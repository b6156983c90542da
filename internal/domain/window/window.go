// Package window models the half-open date ranges accounting works over.
package window

import (
	"time"

	"github.com/MediVetPro/markettech-tienda-sub003/internal/domain/reject"
)

var (
	ErrInvalidRange  = reject.New("invalid_range", "range start must be before its end")
	ErrUnknownPeriod = reject.New("unknown_period", "unknown reporting period")
)

// Range is the half-open interval [From, To).
type Range struct {
	From time.Time
	To   time.Time
}

// New validates and returns a Range.
func New(from, to time.Time) (Range, error) {
	if !from.Before(to) {
		return Range{}, ErrInvalidRange
	}
	return Range{From: from, To: to}, nil
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Previous returns the range of equal length that ends where r begins.
func (r Range) Previous() Range {
	return Range{From: r.From.Add(-r.Duration()), To: r.From}
}

// Period is a named trailing window ending now.
type Period string

const (
	PeriodWeek    Period = "7d"
	PeriodMonth   Period = "30d"
	PeriodQuarter Period = "90d"
	PeriodYear    Period = "365d"
)

var periodDays = map[Period]int{
	PeriodWeek:    7,
	PeriodMonth:   30,
	PeriodQuarter: 90,
	PeriodYear:    365,
}

// Trailing returns the window of the given period ending at now.
func Trailing(p Period, now time.Time) (Range, error) {
	days, ok := periodDays[p]
	if !ok {
		return Range{}, ErrUnknownPeriod
	}
	return Range{From: now.AddDate(0, 0, -days), To: now}, nil
}

// MonthsEnding returns n consecutive calendar months, oldest first, the last
// one being the month that contains t. Months are computed in t's location.
func MonthsEnding(t time.Time, n int) []Range {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	out := make([]Range, n)
	for i := range n {
		from := start.AddDate(0, -(n - 1 - i), 0)
		out[i] = Range{From: from, To: from.AddDate(0, 1, 0)}
	}
	return out
}
