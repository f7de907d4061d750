package calendar

import "time"

// maxSteps bounds every traversal. Each step either consumes the rest of a
// work interval, skips a break, or skips a whole day, so valid calendars
// stay far below it even for projections spanning years.
const maxSteps = 1 << 16

// Project returns the instant at which work of working time will have
// elapsed, starting at start. Breaks, non-working days and holidays are
// skipped. Negative work is treated as zero.
func (c *Calendar) Project(start time.Time, work time.Duration) (time.Time, error) {
	if c == nil || len(c.intervals) == 0 {
		return time.Time{}, ErrNoIntervals
	}
	if work < 0 {
		work = 0
	}

	t := start.In(c.loc)
	for step := 0; step < maxSteps; step++ {
		if !c.dayCounts(t) {
			t = nextDay(t)
			continue
		}

		iv, ok := FindInterval(t, c.intervals)
		if !ok {
			t = t.Add(UntilNextInterval(t, c.intervals))
			continue
		}

		end := iv.End.On(t)
		untilBreak := end.Sub(t)
		if untilBreak > work {
			return t.Add(work), nil
		}
		work -= untilBreak
		t = end
	}
	return time.Time{}, ErrStepLimit
}

// Elapsed returns the working time between start and target.
// The result is negative when target is before start.
func (c *Calendar) Elapsed(start, target time.Time) (time.Duration, error) {
	if c == nil || len(c.intervals) == 0 {
		return 0, ErrNoIntervals
	}
	if target.Before(start) {
		d, err := c.Elapsed(target, start)
		return -d, err
	}

	var total time.Duration
	t := start.In(c.loc)
	for step := 0; step < maxSteps; step++ {
		if !t.Before(target) {
			return total, nil
		}
		if !c.dayCounts(t) {
			t = nextDay(t)
			continue
		}

		iv, ok := FindInterval(t, c.intervals)
		if !ok {
			t = t.Add(UntilNextInterval(t, c.intervals))
			continue
		}

		end := iv.End.On(t)
		untilBreak := end.Sub(t)
		if remaining := target.Sub(t); untilBreak > remaining {
			return total + remaining, nil
		}
		total += untilBreak
		t = end
	}
	return 0, ErrStepLimit
}
