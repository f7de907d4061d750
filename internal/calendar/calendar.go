package calendar

import (
	"fmt"
	"sort"
	"time"
)

// HolidayProvider reports public holidays for the operating locale.
type HolidayProvider interface {
	IsHoliday(t time.Time) bool
}

// Options configures a Calendar.
type Options struct {
	// AllDaysValid disables weekend and holiday exclusion.
	AllDaysValid bool
	// Holidays defaults to None.
	Holidays HolidayProvider
	// Location defaults to time.Local.
	Location *time.Location
}

// Calendar is an immutable, validated working calendar.
type Calendar struct {
	intervals    []WorkInterval // sorted by start
	allDaysValid bool
	holidays     HolidayProvider
	loc          *time.Location
}

// New validates the intervals and returns a Calendar with them sorted by start.
func New(intervals []WorkInterval, opts Options) (*Calendar, error) {
	if len(intervals) == 0 {
		return nil, ErrNoIntervals
	}
	sorted := SortIntervals(intervals)
	for i, iv := range sorted {
		if err := iv.validate(); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].End.Minutes() > iv.Start.Minutes() {
			return nil, fmt.Errorf("%w: %s and %s", ErrOverlappingIntervals, sorted[i-1], iv)
		}
	}
	if opts.Holidays == nil {
		opts.Holidays = None{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Calendar{
		intervals:    sorted,
		allDaysValid: opts.AllDaysValid,
		holidays:     opts.Holidays,
		loc:          opts.Location,
	}, nil
}

// SortIntervals returns a copy of intervals ordered by start time.
func SortIntervals(intervals []WorkInterval) []WorkInterval {
	sorted := append([]WorkInterval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Minutes() < sorted[j].Start.Minutes()
	})
	return sorted
}

// Intervals returns a copy of the sorted work intervals.
func (c *Calendar) Intervals() []WorkInterval {
	return append([]WorkInterval(nil), c.intervals...)
}

// AllDaysValid reports whether weekends and holidays count as working days.
func (c *Calendar) AllDaysValid() bool {
	return c.allDaysValid
}

// Location returns the location instants are evaluated in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// FindInterval returns the interval containing t, if any.
// Intervals are assumed non-overlapping, so at most one can match.
func FindInterval(t time.Time, intervals []WorkInterval) (WorkInterval, bool) {
	for _, iv := range intervals {
		if iv.Contains(t) {
			return iv, true
		}
	}
	return WorkInterval{}, false
}

// UntilNextInterval returns the duration from t to the next interval start
// strictly after t, falling back to the first interval of the following day.
// intervals must be sorted and non-empty.
func UntilNextInterval(t time.Time, intervals []WorkInterval) time.Duration {
	for _, iv := range intervals {
		start := iv.Start.On(t)
		if t.Before(start) {
			return start.Sub(t)
		}
	}
	return intervals[0].Start.On(nextDay(t)).Sub(t)
}

// FindInterval returns the work interval containing t, if any.
func (c *Calendar) FindInterval(t time.Time) (WorkInterval, bool) {
	return FindInterval(t.In(c.loc), c.intervals)
}

// UntilNextInterval returns how long until work resumes after t.
func (c *Calendar) UntilNextInterval(t time.Time) time.Duration {
	return UntilNextInterval(t.In(c.loc), c.intervals)
}

// IsWorkingDay reports whether t's date is neither a weekend day nor a holiday.
// It ignores AllDaysValid.
func (c *Calendar) IsWorkingDay(t time.Time) bool {
	t = t.In(c.loc)
	return !IsWeekend(t) && !c.holidays.IsHoliday(t)
}

// IsWorkingInstant reports whether t is inside a work interval on a day that counts.
func (c *Calendar) IsWorkingInstant(t time.Time) bool {
	if _, ok := c.FindInterval(t); !ok {
		return false
	}
	return c.dayCounts(t)
}

func (c *Calendar) dayCounts(t time.Time) bool {
	return c.allDaysValid || c.IsWorkingDay(t)
}

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// nextDay returns midnight of the calendar day after t.
func nextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
