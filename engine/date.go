package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar-day value (the engine never reasons below day granularity)
// =============================================================================

// Date is a calendar day, normalized to midnight UTC. Every inventory counter,
// rate range, and audit run is keyed by Date, never by wall-clock time.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the real-world calendar date. The business date (which may
// differ) is owned by the businessdate package.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{t: t}, nil
}

func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func DateFromTime(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Next() Date         { return d.AddDays(1) }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

// DaysBetween returns the number of days from one date to another (negative
// if to precedes from).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// DATE RANGE - Inclusive [Start, End] span (rate rows, policies, blocks)
// =============================================================================

// DateRange is an inclusive span of calendar days. Rate rows, overbooking
// policies, and room blocks all cover every day from Start through End.
type DateRange struct {
	Start Date
	End   Date
}

func NewDateRange(start, end Date) DateRange {
	return DateRange{Start: start, End: end}
}

// Valid reports whether the range is well-formed (End not before Start).
func (r DateRange) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && r.End.AfterOrEqual(r.Start)
}

func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(r.End)
}

// Days returns every date in the range, inclusive of both ends.
func (r DateRange) Days() []Date {
	var days []Date
	for d := r.Start; d.BeforeOrEqual(r.End); d = d.Next() {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// STAY RANGE - Check-in/check-out window with exclusive checkout
// =============================================================================

// StayRange is a hotel stay window. The checkout date is NOT a night: a stay
// from June 1 to June 3 occupies the nights of June 1 and June 2 only.
type StayRange struct {
	CheckIn  Date
	CheckOut Date
}

// Valid requires at least one night (checkout strictly after check-in).
func (s StayRange) Valid() bool {
	return !s.CheckIn.IsZero() && !s.CheckOut.IsZero() && s.CheckOut.After(s.CheckIn)
}

// Nights returns the occupied nights: [CheckIn, CheckOut).
func (s StayRange) Nights() []Date {
	var nights []Date
	for d := s.CheckIn; d.Before(s.CheckOut); d = d.Next() {
		nights = append(nights, d)
	}
	return nights
}

func (s StayRange) NightCount() int {
	return DaysBetween(s.CheckIn, s.CheckOut)
}

// CoversNight reports whether the stay occupies the given night
// (CheckIn <= d < CheckOut).
func (s StayRange) CoversNight(d Date) bool {
	return d.AfterOrEqual(s.CheckIn) && d.Before(s.CheckOut)
}

func (s StayRange) String() string {
	return s.CheckIn.String() + " -> " + s.CheckOut.String()
}
