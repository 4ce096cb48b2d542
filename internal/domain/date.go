package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component. Values are normalised to
// midnight UTC so that equality and ordering are plain time comparisons.
type Date struct {
	time.Time
}

// NewDate builds a Date, normalising overflowing days the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string. RFC3339 timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, &ErrValidation{Field: "date", Message: fmt.Sprintf("invalid date %q", s)}
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Equal reports whether both values denote the same calendar date.
func (d Date) Equal(other Date) bool { return d.Time.Equal(other.Time) }

// MarshalJSON encodes the date as "YYYY-MM-DD" (null when zero).
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD", RFC3339 timestamps and null.
func (d *Date) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)
	if str == "" || str == "null" {
		d.Time = time.Time{}
		return nil
	}
	parsed, err := ParseDate(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive [From, To] span of calendar dates.
// A zero bound leaves that side of the range open.
type DateRange struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

// Contains reports whether d falls within the range, both ends inclusive.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	return r.To.IsZero() || !d.After(r.To)
}

// Validate rejects ranges with no bound at all and inverted ranges.
func (r DateRange) Validate() error {
	if r.From.IsZero() && r.To.IsZero() {
		return &ErrValidation{Field: "dateRange", Message: "at least one bound is required"}
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return &ErrValidation{Field: "dateRange", Message: "end precedes start"}
	}
	return nil
}

// MonthlyWindow returns the inclusive range covering every day of the given
// calendar month: the first day through the true last day (28, 29, 30 or 31).
func MonthlyWindow(month, year int) (DateRange, error) {
	if month < 1 || month > 12 {
		return DateRange{}, &ErrValidation{Field: "month", Message: "must be between 1 and 12"}
	}
	if year < 1 {
		return DateRange{}, &ErrValidation{Field: "year", Message: "must be positive"}
	}
	first := NewDate(year, time.Month(month), 1)
	// Day 0 of the following month is the last day of this one.
	last := NewDate(year, time.Month(month)+1, 0)
	return DateRange{From: first, To: last}, nil
}

// PeriodKey returns the YYYY-MM key of the month containing d.
func (d Date) PeriodKey() string {
	return d.Format("2006-01")
}
