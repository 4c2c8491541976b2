package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates in segment files.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day component. Dates are stored
// as "YYYY-MM-DD" strings and compared at UTC midnight.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "YYYY-MM-DD" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON is lenient: a value that is not a valid date decodes as the
// zero Date instead of failing the whole file. Validation happens later so
// that one corrupt segment never aborts loading a unit.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// Tolerate timestamps from older exports by keeping only the day part.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		d.Time = time.Time{}
		return nil
	}
	d.Time = t
	return nil
}

// DateRange is a half-open interval [Start, End): End is the first free day.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewRange builds a range from two "YYYY-MM-DD" strings.
func NewRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, ErrInvalidRange
	}
	r := DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate rejects zero-length, inverted, and unparsed ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidRange
	}
	if !r.Start.Before(r.End.Time) {
		return ErrInvalidRange
	}
	return nil
}

// Overlaps reports whether two half-open ranges intersect:
// a.Start < b.End && b.Start < a.End. Degenerate ranges never overlap;
// callers must reject them with Validate before relying on this.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End.Time) && other.Start.Before(r.End.Time)
}

// Contains reports whether other lies fully inside r.
func (r DateRange) Contains(other DateRange) bool {
	return !other.Start.Before(r.Start.Time) && !other.End.After(r.End.Time)
}

// Nights is the number of occupied nights, i.e. days in [Start, End).
func (r DateRange) Nights() int {
	return int(r.End.Sub(r.Start.Time).Hours() / 24)
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + "," + r.End.String() + ")"
}
