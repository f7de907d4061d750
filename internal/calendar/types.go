// Package calendar contains the pure working-time arithmetic of the service:
// daily work intervals, working days, and projection of working durations
// onto wall-clock instants.
// This package has NO external dependencies (no network, OS, or clock reads).
// Time is always injected via time.Time parameters.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNoIntervals is returned when a calendar has no work intervals.
	ErrNoIntervals = errors.New("calendar: no work intervals configured")

	// ErrInvalidInterval is returned for an interval with out-of-range clock
	// values or whose start is not before its end.
	ErrInvalidInterval = errors.New("calendar: invalid work interval")

	// ErrOverlappingIntervals is returned when two work intervals share time.
	ErrOverlappingIntervals = errors.New("calendar: overlapping work intervals")

	// ErrStepLimit is returned when a traversal does not converge.
	ErrStepLimit = errors.New("calendar: traversal step limit exceeded")
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Valid reports whether the clock is within 00:00..23:59.
func (c Clock) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

// Minutes returns the number of minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant of this clock on the calendar day of t, in t's location.
func (c Clock) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// WorkInterval is one working window [Start, End) within a calendar day.
type WorkInterval struct {
	Start Clock
	End   Clock
}

// Contains reports whether t falls in the interval projected onto t's day.
func (w WorkInterval) Contains(t time.Time) bool {
	start := w.Start.On(t)
	end := w.End.On(t)
	return !t.Before(start) && t.Before(end)
}

// Length returns the nominal length of the interval.
func (w WorkInterval) Length() time.Duration {
	return time.Duration(w.End.Minutes()-w.Start.Minutes()) * time.Minute
}

func (w WorkInterval) String() string {
	return w.Start.String() + "-" + w.End.String()
}

func (w WorkInterval) validate() error {
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("%w: %s: clock out of range", ErrInvalidInterval, w)
	}
	if w.Start.Minutes() >= w.End.Minutes() {
		return fmt.Errorf("%w: %s: start must be before end", ErrInvalidInterval, w)
	}
	return nil
}
