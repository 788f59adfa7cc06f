package schedule

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - The core concept for schedule resolution
// =============================================================================

// Period is a calendar month, canonicalized to its first day at 00:00 UTC.
// It is the unit of payment accounting: every payment discharges exactly one
// period, and every term window is expressed in periods.
//
// All comparisons go through the canonical value, never through arbitrary
// dates, so month-index and timezone drift cannot occur.
type Period struct {
	t time.Time
}

// NewPeriod creates the period for a given year and month.
func NewPeriod(year int, month time.Month) Period {
	return Period{t: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)}
}

// PeriodOf normalizes any date to the period containing it.
func PeriodOf(t time.Time) Period {
	return NewPeriod(t.Year(), t.Month())
}

// ParsePeriod accepts both the canonical "YYYY-MM-01" key and the short
// "YYYY-MM" form. Any day within the month normalizes to the same period.
func ParsePeriod(s string) (Period, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return PeriodOf(t), nil
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return PeriodOf(t), nil
	}
	return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// Key returns the canonical period key (first of the month, YYYY-MM-DD).
func (p Period) Key() string { return p.t.Format("2006-01-02") }

func (p Period) String() string { return p.t.Format("2006-01") }

// Properties
func (p Period) Year() int         { return p.t.Year() }
func (p Period) Month() time.Month { return p.t.Month() }
func (p Period) Time() time.Time   { return p.t }
func (p Period) IsZero() bool      { return p.t.IsZero() }

// Comparison
func (p Period) Before(other Period) bool { return p.t.Before(other.t) }
func (p Period) After(other Period) bool  { return p.t.After(other.t) }
func (p Period) Equal(other Period) bool  { return p.t.Equal(other.t) }
func (p Period) BeforeOrEqual(other Period) bool {
	return p.Before(other) || p.Equal(other)
}
func (p Period) AfterOrEqual(other Period) bool {
	return p.After(other) || p.Equal(other)
}

// Arithmetic
func (p Period) AddMonths(n int) Period {
	return NewPeriod(p.t.Year(), p.t.Month()+time.Month(n))
}
func (p Period) Next() Period     { return p.AddMonths(1) }
func (p Period) Previous() Period { return p.AddMonths(-1) }

// MonthsBetween returns the signed count of calendar months from one period
// to another: MonthsBetween(2024-01, 2024-04) = 3. This is the installment
// index and the basis for recurrence-frequency alignment.
func MonthsBetween(from, to Period) int {
	return (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
}

// Within reports whether the period lies in [from, until]. Both boundaries
// are inclusive: the month of `until` is itself still covered. A nil `until`
// means the window is open-ended.
func (p Period) Within(from Period, until *Period) bool {
	if p.Before(from) {
		return false
	}
	return until == nil || until.AfterOrEqual(p)
}

// DueDate returns the due date within this period for a given due day of
// month. Out-of-range days clamp to the last day of the month (Feb 31 ->
// Feb 28/29); zero or negative days fall back to 1.
func (p Period) DueDate(dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}
	if last := p.lastDay(); dueDay > last {
		dueDay = last
	}
	return time.Date(p.Year(), p.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}

func (p Period) lastDay() int {
	return p.Next().t.AddDate(0, 0, -1).Day()
}

// JSON round-trips through the canonical key.
func (p Period) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.Key() + `"`), nil
}

func (p *Period) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, s)
	}
	parsed, err := ParsePeriod(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
