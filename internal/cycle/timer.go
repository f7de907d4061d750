package cycle

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCalibrateEvery is how often, in seconds of timeleft, the counters
// are re-derived from the projected movement dates.
const DefaultCalibrateEvery = 60

// maxSeconds is the largest counter a time.Duration can hold.
const maxSeconds = int64(math.MaxInt64 / int64(time.Second))

// Calendar is the working-time arithmetic the timer relies on.
type Calendar interface {
	IsWorkingInstant(t time.Time) bool
	Project(start time.Time, work time.Duration) (time.Time, error)
	Elapsed(start, target time.Time) (time.Duration, error)
}

// Options contains runtime options for Timer.
type Options struct {
	Clock          Clock
	TickInterval   time.Duration
	CalibrateEvery int64
	Logger         *log.Logger
}

// Timer is the cycle state machine. All control operations and the tick
// handler are serialized by a single mutex.
type Timer struct {
	mu       sync.Mutex
	cal      Calendar
	options  Options
	logger   *log.Logger
	duration int64
	snap     Snapshot

	// stopCh is non-nil while the tick loop runs. Closing it cancels any
	// tick that has fired but not yet acquired the lock.
	stopCh      chan struct{}
	subscribers []subscriber
	nextID      int
}

type subscriber struct {
	id int
	ch chan Event
}

// New creates a Timer in the initial state with one full cycle left.
func New(cal Calendar, cycle time.Duration, options Options) *Timer {
	if options.Clock == nil {
		options.Clock = SystemClock()
	}
	if options.TickInterval <= 0 {
		options.TickInterval = time.Second
	}
	if options.CalibrateEvery <= 0 {
		options.CalibrateEvery = DefaultCalibrateEvery
	}
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	duration := int64(cycle / time.Second)
	return &Timer{
		cal:      cal,
		options:  options,
		logger:   logger,
		duration: duration,
		snap: Snapshot{
			State:        StateInitial,
			Timeleft:     duration,
			TimeleftNext: 2 * duration,
			Duration:     duration,
		},
	}
}

// Subscribe registers an observer channel. The returned function
// unregisters it and closes the channel. Events are dropped for observers
// whose buffer is full.
func (t *Timer) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subscribers = append(t.subscribers, subscriber{id: id, ch: ch})
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subscribers {
				if s.id == id {
					t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel
}

// Snapshot returns a copy of the current state.
func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.snap
	s.At = t.options.Clock.Now()
	return s
}

// Start projects the movement dates from now and starts the tick loop.
// It is a no-op while running.
func (t *Timer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State == StateRunning {
		return nil
	}

	now := t.options.Clock.Now()
	move, next, err := t.projectLocked(now, t.snap.Timeleft, t.snap.TimeleftNext)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	t.snap.State = StateRunning
	t.snap.DateMove = move
	t.snap.DateMoveNext = next
	t.emitLocked(EventSnapshot, now)

	stop := make(chan struct{})
	t.stopCh = stop
	ticker := t.options.Clock.NewTicker(t.options.TickInterval)
	go t.run(ticker, stop)
	return nil
}

// Pause freezes the counters. It is a no-op unless running.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State != StateRunning {
		return
	}
	t.cancelTicksLocked()
	t.snap.State = StatePaused
	t.emitLocked(EventSnapshot, t.options.Clock.Now())
}

// Stop halts the timer and resets the counters to one full cycle.
// It is a no-op unless running or paused.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State != StateRunning && t.snap.State != StatePaused {
		return
	}
	t.cancelTicksLocked()
	t.snap.State = StateStopped
	t.snap.Timeleft = t.duration
	t.snap.TimeleftNext = 2 * t.duration
	t.emitLocked(EventSnapshot, t.options.Clock.Now())
}

// Init sets the working seconds left before the next movement.
// It is a no-op unless stopped or initial. Zero means one full cycle.
// Values whose following movement would not fit a time.Duration are invalid.
func (t *Timer) Init(seconds float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.State != StateStopped && t.snap.State != StateInitial {
		return nil
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 ||
		seconds > float64(maxSeconds-t.duration) {
		return fmt.Errorf("%w: %v", ErrInvalidSeconds, seconds)
	}

	timeleft := int64(math.Round(seconds))
	if timeleft == 0 {
		timeleft = t.duration
	}
	timeleftNext := timeleft + t.duration

	now := t.options.Clock.Now()
	move, next, err := t.projectLocked(now, timeleft, timeleftNext)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	t.snap.State = StateInitial
	t.snap.Timeleft = timeleft
	t.snap.TimeleftNext = timeleftNext
	t.snap.DateMove = move
	t.snap.DateMoveNext = next
	t.emitLocked(EventSnapshot, now)
	return nil
}

// Apply runs a transport command. Failures are logged and dropped: display
// boards have no channel to report a rejected command.
func (t *Timer) Apply(cmd Command) {
	var err error
	switch cmd.Name {
	case CommandStart:
		err = t.Start()
	case CommandStop:
		t.Stop()
	case CommandPause:
		t.Pause()
	case CommandInit:
		err = t.Init(cmd.Value)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if err != nil {
		t.logger.Warn("command dropped", "command", cmd.Name, "err", err)
	}
}

// Close stops the tick loop and closes all observers.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelTicksLocked()
	for _, s := range t.subscribers {
		close(s.ch)
	}
	t.subscribers = nil
}

func (t *Timer) run(ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			t.tick(stop, now)
		}
	}
}

func (t *Timer) tick(stop <-chan struct{}, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-stop:
		return
	default:
	}

	if !t.cal.IsWorkingInstant(now) {
		t.snap.PauseAutomatique = true
		t.emitLocked(EventSnapshot, now)
		return
	}

	t.snap.PauseAutomatique = false
	t.snap.Timeleft--
	t.snap.TimeleftNext--

	if t.snap.Timeleft%t.options.CalibrateEvery == 0 {
		t.calibrateLocked(now)
	}
	if t.snap.Timeleft <= 0 {
		t.completeMovementLocked(now)
	}
	t.emitLocked(EventSnapshot, now)
}

// calibrateLocked re-derives both counters from the projected dates so the
// countdown matches the movement time shown to users.
func (t *Timer) calibrateLocked(now time.Time) {
	left, err := t.cal.Elapsed(now, t.snap.DateMove)
	if err != nil {
		t.logger.Error("calibration failed", "err", err)
		return
	}
	leftNext, err := t.cal.Elapsed(now, t.snap.DateMoveNext)
	if err != nil {
		t.logger.Error("calibration failed", "err", err)
		return
	}

	timeleft := roundSeconds(left)
	if timeleft != t.snap.Timeleft {
		t.logger.Debug("calibrated", "drift", t.snap.Timeleft-timeleft)
	}
	t.snap.Timeleft = timeleft
	t.snap.TimeleftNext = roundSeconds(leftNext)
}

// completeMovementLocked notifies the movement and rolls the counters one
// cycle forward, anchored on the date the movement was projected for.
func (t *Timer) completeMovementLocked(now time.Time) {
	t.emitLocked(EventMovement, now)
	t.logger.Info("movement", "date", t.snap.DateMove, "timeleft", t.snap.Timeleft)

	t.snap.Timeleft = t.snap.TimeleftNext
	t.snap.TimeleftNext = t.snap.Timeleft + t.duration
	t.snap.DateMove = t.snap.DateMoveNext

	next, err := t.cal.Project(t.snap.DateMove, seconds(t.duration))
	if err != nil {
		t.logger.Error("projection failed", "err", err)
		return
	}
	t.snap.DateMoveNext = next
}

func (t *Timer) projectLocked(now time.Time, timeleft, timeleftNext int64) (time.Time, time.Time, error) {
	move, err := t.cal.Project(now, seconds(timeleft))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	next, err := t.cal.Project(now, seconds(timeleftNext))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return move, next, nil
}

func (t *Timer) cancelTicksLocked() {
	if t.stopCh != nil {
		close(t.stopCh)
		t.stopCh = nil
	}
}

func (t *Timer) emitLocked(typ EventType, at time.Time) {
	s := t.snap
	s.At = at
	event := Event{Type: typ, Snapshot: s}
	for _, sub := range t.subscribers {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

func roundSeconds(d time.Duration) int64 {
	return int64(math.Round(d.Seconds()))
}
