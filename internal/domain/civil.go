package domain

import (
	"fmt"
	"time"
)

// CivilDate is a calendar date without a zone.
type CivilDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) CivilDate {
	y, m, d := t.Date()
	return CivilDate{Year: y, Month: m, Day: d}
}

func (d CivilDate) IsZero() bool { return d == CivilDate{} }

// Valid reports whether d names a real calendar day.
func (d CivilDate) Valid() bool {
	if d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day && t.Month() == d.Month
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d CivilDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *CivilDate) UnmarshalText(b []byte) error {
	t, err := time.Parse(time.DateOnly, string(b))
	if err != nil {
		return fmt.Errorf("parse civil date: %w", err)
	}
	*d = DateOf(t)
	return nil
}

// TimeOfDay is a wall-clock time without a zone, to the second.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// TimeOf returns the wall-clock time of t in t's location.
func TimeOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 &&
		t.Minute >= 0 && t.Minute < 60 &&
		t.Second >= 0 && t.Second < 60
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := time.Parse(time.TimeOnly, string(b))
	if err != nil {
		return fmt.Errorf("parse time of day: %w", err)
	}
	*t = TimeOf(parsed)
	return nil
}

// Combine joins a date and a time of day in loc. The zone is applied here and
// nowhere else.
func Combine(d CivilDate, t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, t.Second, 0, loc)
}
