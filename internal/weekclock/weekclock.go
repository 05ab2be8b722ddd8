// Package weekclock computes the week identifier every survey is keyed by.
//
// The numbering is not ISO 8601. Week 1 is the (possibly partial) week
// containing January 1st, each week ends at midnight at the start of
// Saturday, and the count restarts on January 1st regardless of where the
// previous year ended.
package weekclock

import (
	"math"
	"strconv"
	"time"
)

const day = 24 * time.Hour

// Clock reports the current time. Services take a Clock instead of calling
// time.Now so tests can pin "this week".
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the wall clock.
func Real() Clock { return realClock{} }

// FixedClock always reports the same instant until moved with Set.
type FixedClock struct {
	t time.Time
}

// Fixed returns a clock pinned to t.
func Fixed(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (f *FixedClock) Now() time.Time { return f.t }

// Set moves the clock to t.
func (f *FixedClock) Set(t time.Time) { f.t = t }

// WeekID returns the week number of t within its year as a decimal string.
// January 1st is taken at midnight in t's location.
func WeekID(t time.Time) string {
	return strconv.Itoa(WeekNumber(t))
}

// WeekNumber is WeekID without the string conversion. Always >= 1.
func WeekNumber(t time.Time) int {
	jan1 := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	days := float64(t.Sub(jan1)) / float64(day)
	return int(math.Ceil((days + float64(jan1.Weekday()) + 1) / 7))
}

// Current returns the week identifier for c.Now().
func Current(c Clock) string {
	return WeekID(c.Now())
}
