// Package status provides a thread-safe status tracker for the sandglass daemon.
// It is read by HTTP handlers and by the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sandglass/internal/cycle"
)

// Config contains daemon configuration for display.
type Config struct {
	CycleSeconds int64
	Intervals    []string
	AllDaysValid bool
	Timezone     string
	Holidays     string
	HTTPPort     int
	StaticDir    string
	Broker       string
	TopicPrefix  string
	HeartbeatMs  int64
	GPIO         bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Timer          cycle.Snapshot
	Movements      int
	LastMovement   time.Time
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	DisplayClients int
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Observe records a timer event. Called from runLoop for every event.
func (t *Tracker) Observe(ev cycle.Event) {
	t.mu.Lock()
	t.snap.Timer = ev.Snapshot
	if ev.Type == cycle.EventMovement {
		t.snap.Movements++
		t.snap.LastMovement = ev.Snapshot.At
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetDisplayClients sets the number of connected display boards.
func (t *Tracker) SetDisplayClients(n int) {
	t.mu.Lock()
	t.snap.DisplayClients = n
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Config.Intervals = append([]string(nil), t.snap.Config.Intervals...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
