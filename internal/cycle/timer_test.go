package cycle

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/sandglass/internal/calendar"
)

// Thursday 24 October 2019, 08:00 UTC.
var morning = time.Date(2019, time.October, 24, 8, 0, 0, 0, time.UTC)

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New([]calendar.WorkInterval{
		{Start: calendar.Clock{Hour: 5}, End: calendar.Clock{Hour: 21}},
	}, calendar.Options{Holidays: calendar.French{}, Location: time.UTC})
	if err != nil {
		t.Fatalf("calendar.New: %v", err)
	}
	return cal
}

func newTestTimer(t *testing.T, now time.Time, cycle time.Duration) (*Timer, *FakeClock, <-chan Event) {
	t.Helper()
	clock := NewFakeClock(now)
	timer := New(testCalendar(t), cycle, Options{Clock: clock})
	events, cancel := timer.Subscribe(16)
	t.Cleanup(func() {
		cancel()
		timer.Close()
	})
	return timer, clock, events
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectNone(t *testing.T, events <-chan Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected %s event: %+v", e.Type, e.Snapshot)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewInitialSnapshot(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)

	snap := timer.Snapshot()
	if snap.State != StateInitial {
		t.Errorf("State: got %s, want initial", snap.State)
	}
	if snap.Timeleft != 3600 || snap.TimeleftNext != 7200 || snap.Duration != 3600 {
		t.Errorf("counters: got %d/%d/%d, want 3600/7200/3600", snap.Timeleft, snap.TimeleftNext, snap.Duration)
	}
	expectNone(t, events)
}

func TestStartProjectsDatesAndEmits(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)

	if err := timer.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e := next(t, events)
	if e.Type != EventSnapshot {
		t.Errorf("Type: got %s, want %s", e.Type, EventSnapshot)
	}
	if e.Snapshot.State != StateRunning {
		t.Errorf("State: got %s, want running", e.Snapshot.State)
	}
	if want := morning.Add(time.Hour); !e.Snapshot.DateMove.Equal(want) {
		t.Errorf("DateMove: got %v, want %v", e.Snapshot.DateMove, want)
	}
	if want := morning.Add(2 * time.Hour); !e.Snapshot.DateMoveNext.Equal(want) {
		t.Errorf("DateMoveNext: got %v, want %v", e.Snapshot.DateMoveNext, want)
	}
	if clock.Tickers() != 1 {
		t.Errorf("expected 1 ticker, got %d", clock.Tickers())
	}
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)

	timer.Start()
	next(t, events)

	if err := timer.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	expectNone(t, events)
	if clock.Tickers() != 1 {
		t.Errorf("expected 1 ticker, got %d", clock.Tickers())
	}
}

func TestTickDecrementsDuringWorkingHours(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)

	for i := 1; i <= 3; i++ {
		clock.Advance(time.Second)
		e := next(t, events)
		if e.Snapshot.Timeleft != int64(3600-i) {
			t.Errorf("tick %d: Timeleft got %d, want %d", i, e.Snapshot.Timeleft, 3600-i)
		}
		if e.Snapshot.TimeleftNext != int64(7200-i) {
			t.Errorf("tick %d: TimeleftNext got %d, want %d", i, e.Snapshot.TimeleftNext, 7200-i)
		}
		if e.Snapshot.PauseAutomatique {
			t.Errorf("tick %d: unexpected automatic pause", i)
		}
	}
}

func TestTickOutsideWorkingHoursPausesAutomatically(t *testing.T) {
	evening := time.Date(2019, time.October, 24, 21, 30, 0, 0, time.UTC)
	timer, clock, events := newTestTimer(t, evening, time.Hour)
	timer.Start()
	start := next(t, events)

	// Work resumes on Friday at 05:00.
	if want := time.Date(2019, time.October, 25, 6, 0, 0, 0, time.UTC); !start.Snapshot.DateMove.Equal(want) {
		t.Errorf("DateMove: got %v, want %v", start.Snapshot.DateMove, want)
	}

	clock.Advance(time.Second)
	e := next(t, events)
	if !e.Snapshot.PauseAutomatique {
		t.Error("expected automatic pause outside working hours")
	}
	if e.Snapshot.State != StateRunning {
		t.Errorf("State: got %s, want running", e.Snapshot.State)
	}
	if e.Snapshot.Timeleft != 3600 || e.Snapshot.TimeleftNext != 7200 {
		t.Errorf("counters changed during automatic pause: %d/%d", e.Snapshot.Timeleft, e.Snapshot.TimeleftNext)
	}

	// Back inside working hours the flag clears.
	clock.Set(time.Date(2019, time.October, 25, 5, 0, 0, 0, time.UTC))
	clock.Advance(time.Second)
	e = next(t, events)
	if e.Snapshot.PauseAutomatique {
		t.Error("expected automatic pause to clear during working hours")
	}
	if e.Snapshot.Timeleft != 3599 {
		t.Errorf("Timeleft: got %d, want 3599", e.Snapshot.Timeleft)
	}
}

func TestCalibrationAnchorsOnProjectedDate(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)

	if err := timer.Init(61); err != nil {
		t.Fatalf("Init: %v", err)
	}
	next(t, events)
	timer.Start()
	next(t, events)

	// Ticks went missing: 20 seconds pass without being counted.
	clock.Set(morning.Add(20 * time.Second))
	clock.Advance(time.Second)

	e := next(t, events)
	if e.Snapshot.Timeleft != 40 {
		t.Errorf("Timeleft: got %d, want 40", e.Snapshot.Timeleft)
	}
	if e.Snapshot.TimeleftNext != 3640 {
		t.Errorf("TimeleftNext: got %d, want 3640", e.Snapshot.TimeleftNext)
	}
}

func TestMovementRollsCountersForward(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)
	timer.Init(2)
	next(t, events)
	timer.Start()
	next(t, events)

	clock.Advance(time.Second)
	if e := next(t, events); e.Snapshot.Timeleft != 1 {
		t.Fatalf("Timeleft: got %d, want 1", e.Snapshot.Timeleft)
	}

	clock.Advance(time.Second)
	move := next(t, events)
	if move.Type != EventMovement {
		t.Fatalf("Type: got %s, want %s", move.Type, EventMovement)
	}
	if move.Snapshot.Timeleft != 0 {
		t.Errorf("movement Timeleft: got %d, want 0", move.Snapshot.Timeleft)
	}

	e := next(t, events)
	if e.Type != EventSnapshot {
		t.Fatalf("Type: got %s, want %s", e.Type, EventSnapshot)
	}
	if e.Snapshot.Timeleft != 3600 || e.Snapshot.TimeleftNext != 7200 {
		t.Errorf("counters: got %d/%d, want 3600/7200", e.Snapshot.Timeleft, e.Snapshot.TimeleftNext)
	}
	if want := morning.Add(time.Hour + 2*time.Second); !e.Snapshot.DateMove.Equal(want) {
		t.Errorf("DateMove: got %v, want %v", e.Snapshot.DateMove, want)
	}
	if want := morning.Add(2*time.Hour + 2*time.Second); !e.Snapshot.DateMoveNext.Equal(want) {
		t.Errorf("DateMoveNext: got %v, want %v", e.Snapshot.DateMoveNext, want)
	}
}

func TestPauseCancelsTicks(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)

	timer.Pause()
	e := next(t, events)
	if e.Snapshot.State != StatePaused {
		t.Fatalf("State: got %s, want paused", e.Snapshot.State)
	}

	clock.Advance(time.Second)
	expectNone(t, events)
	if got := timer.Snapshot().Timeleft; got != 3600 {
		t.Errorf("Timeleft after pause: got %d, want 3600", got)
	}
}

func TestPauseIsNoopUnlessRunning(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)

	timer.Pause()
	expectNone(t, events)
	if timer.Snapshot().State != StateInitial {
		t.Errorf("State: got %s, want initial", timer.Snapshot().State)
	}

	timer.Start()
	next(t, events)
	timer.Stop()
	next(t, events)

	timer.Pause()
	expectNone(t, events)
	if timer.Snapshot().State != StateStopped {
		t.Errorf("State: got %s, want stopped", timer.Snapshot().State)
	}
}

func TestResumeAfterPause(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)
	clock.Advance(time.Second)
	next(t, events)
	timer.Pause()
	next(t, events)

	clock.Set(morning.Add(10 * time.Minute))
	if err := timer.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e := next(t, events)
	if e.Snapshot.Timeleft != 3599 {
		t.Errorf("Timeleft: got %d, want 3599", e.Snapshot.Timeleft)
	}
	if want := morning.Add(10*time.Minute + 3599*time.Second); !e.Snapshot.DateMove.Equal(want) {
		t.Errorf("DateMove: got %v, want %v", e.Snapshot.DateMove, want)
	}
}

func TestStopResetsCounters(t *testing.T) {
	timer, clock, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)
	clock.Advance(time.Second)
	next(t, events)

	timer.Stop()
	e := next(t, events)
	if e.Snapshot.State != StateStopped {
		t.Errorf("State: got %s, want stopped", e.Snapshot.State)
	}
	if e.Snapshot.Timeleft != 3600 || e.Snapshot.TimeleftNext != 7200 {
		t.Errorf("counters: got %d/%d, want 3600/7200", e.Snapshot.Timeleft, e.Snapshot.TimeleftNext)
	}

	clock.Advance(time.Second)
	expectNone(t, events)

	timer.Stop()
	expectNone(t, events)
}

func TestStopFromPaused(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)
	timer.Pause()
	next(t, events)

	timer.Stop()
	if e := next(t, events); e.Snapshot.State != StateStopped {
		t.Errorf("State: got %s, want stopped", e.Snapshot.State)
	}
}

func TestInit(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)

	if err := timer.Init(1800); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e := next(t, events)
	if e.Snapshot.State != StateInitial {
		t.Errorf("State: got %s, want initial", e.Snapshot.State)
	}
	if e.Snapshot.Timeleft != 1800 || e.Snapshot.TimeleftNext != 5400 {
		t.Errorf("counters: got %d/%d, want 1800/5400", e.Snapshot.Timeleft, e.Snapshot.TimeleftNext)
	}
	if want := morning.Add(30 * time.Minute); !e.Snapshot.DateMove.Equal(want) {
		t.Errorf("DateMove: got %v, want %v", e.Snapshot.DateMove, want)
	}
	if want := morning.Add(90 * time.Minute); !e.Snapshot.DateMoveNext.Equal(want) {
		t.Errorf("DateMoveNext: got %v, want %v", e.Snapshot.DateMoveNext, want)
	}
}

func TestInitZeroMeansFullCycle(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)

	timer.Init(0)
	e := next(t, events)
	if e.Snapshot.Timeleft != 3600 || e.Snapshot.TimeleftNext != 7200 {
		t.Errorf("counters: got %d/%d, want 3600/7200", e.Snapshot.Timeleft, e.Snapshot.TimeleftNext)
	}
}

func TestInitRejectsInvalidSeconds(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -5, 1e10, math.MaxFloat64} {
		timer, _, events := newTestTimer(t, morning, time.Hour)
		before := timer.Snapshot()

		err := timer.Init(v)
		if !errors.Is(err, ErrInvalidSeconds) {
			t.Errorf("Init(%v): got %v, want ErrInvalidSeconds", v, err)
		}
		expectNone(t, events)

		after := timer.Snapshot()
		if after.State != before.State || after.Timeleft != before.Timeleft || after.TimeleftNext != before.TimeleftNext {
			t.Errorf("Init(%v) changed the snapshot: %+v -> %+v", v, before, after)
		}
	}
}

func TestInitLargestValue(t *testing.T) {
	timer, _, _ := newTestTimer(t, morning, time.Hour)

	err := timer.Init(float64(maxSeconds - 3600 + 1))
	if !errors.Is(err, ErrInvalidSeconds) {
		t.Errorf("Init just past the limit: got %v, want ErrInvalidSeconds", err)
	}
	if snap := timer.Snapshot(); snap.Timeleft != 3600 {
		t.Errorf("timeleft changed to %d", snap.Timeleft)
	}
}

func TestInitIgnoredWhileRunningOrPaused(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)

	if err := timer.Init(10); err != nil {
		t.Errorf("Init while running: %v", err)
	}
	expectNone(t, events)

	timer.Pause()
	next(t, events)
	if err := timer.Init(10); err != nil {
		t.Errorf("Init while paused: %v", err)
	}
	expectNone(t, events)

	if got := timer.Snapshot().Timeleft; got != 3600 {
		t.Errorf("Timeleft: got %d, want 3600", got)
	}
}

func TestInitAfterStop(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)
	timer.Start()
	next(t, events)
	timer.Stop()
	next(t, events)

	if err := timer.Init(120); err != nil {
		t.Fatalf("Init: %v", err)
	}
	e := next(t, events)
	if e.Snapshot.State != StateInitial || e.Snapshot.Timeleft != 120 {
		t.Errorf("got state %s timeleft %d, want initial/120", e.Snapshot.State, e.Snapshot.Timeleft)
	}
}

func TestApply(t *testing.T) {
	timer, _, events := newTestTimer(t, morning, time.Hour)

	timer.Apply(Command{Name: CommandInit, Value: math.NaN()})
	expectNone(t, events)

	timer.Apply(Command{Name: "rewind"})
	expectNone(t, events)

	timer.Apply(Command{Name: CommandInit, Value: 600})
	if e := next(t, events); e.Snapshot.Timeleft != 600 {
		t.Errorf("Timeleft: got %d, want 600", e.Snapshot.Timeleft)
	}

	timer.Apply(Command{Name: CommandStart})
	if e := next(t, events); e.Snapshot.State != StateRunning {
		t.Errorf("State: got %s, want running", e.Snapshot.State)
	}

	timer.Apply(Command{Name: CommandPause})
	if e := next(t, events); e.Snapshot.State != StatePaused {
		t.Errorf("State: got %s, want paused", e.Snapshot.State)
	}

	timer.Apply(Command{Name: CommandStop})
	if e := next(t, events); e.Snapshot.State != StateStopped {
		t.Errorf("State: got %s, want stopped", e.Snapshot.State)
	}
}

type brokenCalendar struct{}

func (brokenCalendar) IsWorkingInstant(time.Time) bool { return true }
func (brokenCalendar) Project(time.Time, time.Duration) (time.Time, error) {
	return time.Time{}, calendar.ErrNoIntervals
}
func (brokenCalendar) Elapsed(time.Time, time.Time) (time.Duration, error) {
	return 0, calendar.ErrNoIntervals
}

func TestProjectionErrorAbortsOperation(t *testing.T) {
	clock := NewFakeClock(morning)
	timer := New(brokenCalendar{}, time.Hour, Options{Clock: clock})
	events, cancel := timer.Subscribe(4)
	defer cancel()

	if err := timer.Start(); !errors.Is(err, calendar.ErrNoIntervals) {
		t.Errorf("Start: got %v, want ErrNoIntervals", err)
	}
	if err := timer.Init(60); !errors.Is(err, calendar.ErrNoIntervals) {
		t.Errorf("Init: got %v, want ErrNoIntervals", err)
	}
	expectNone(t, events)

	if timer.Snapshot().State != StateInitial {
		t.Errorf("State: got %s, want initial", timer.Snapshot().State)
	}
	if clock.Tickers() != 0 {
		t.Errorf("expected no ticker, got %d", clock.Tickers())
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	timer := New(testCalendar(t), time.Hour, Options{Clock: NewFakeClock(morning)})
	events, cancel := timer.Subscribe(1)

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("expected closed channel after cancel")
	}

	timer.Init(10)
}

func TestCloseClosesSubscribers(t *testing.T) {
	clock := NewFakeClock(morning)
	timer := New(testCalendar(t), time.Hour, Options{Clock: clock})
	events, cancel := timer.Subscribe(4)
	timer.Start()
	<-events

	timer.Close()
	cancel()
	for range events {
	}

	clock.Advance(time.Second)
	if got := timer.Snapshot().Timeleft; got != 3600 {
		t.Errorf("Timeleft after Close: got %d, want 3600", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	timer, _, _ := newTestTimer(t, morning, time.Hour)

	snap := timer.Snapshot()
	snap.Timeleft = 1
	snap.State = StateStopped

	if got := timer.Snapshot(); got.Timeleft != 3600 || got.State != StateInitial {
		t.Errorf("mutating a snapshot leaked into the timer: %+v", got)
	}
}
