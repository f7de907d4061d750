package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Timer         TimerJSON     `json:"timer"`
	Movements     MovementsJSON `json:"movements"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Display       DisplayStatus `json:"display"`
	Config        ConfigJSON    `json:"config"`
}

// TimerJSON is the timer part of the status.
type TimerJSON struct {
	State            string `json:"state"`
	Timeleft         int64  `json:"timeleft"`
	TimeleftNext     int64  `json:"timeleft_next"`
	DateMove         string `json:"date_move,omitempty"`
	DateMoveNext     string `json:"date_move_next,omitempty"`
	PauseAutomatique bool   `json:"pause_automatique"`
}

// MovementsJSON counts completed cycles since startup.
type MovementsJSON struct {
	Count int    `json:"count"`
	Last  string `json:"last,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DisplayStatus reports connected display boards.
type DisplayStatus struct {
	Clients int `json:"clients"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	CycleSeconds int64    `json:"cycle_seconds"`
	Intervals    []string `json:"intervals"`
	AllDaysValid bool     `json:"all_days_valid"`
	Timezone     string   `json:"timezone"`
	Holidays     string   `json:"holidays"`
	HTTPPort     int      `json:"http_port"`
	StaticDir    string   `json:"static_dir,omitempty"`
	Broker       string   `json:"broker"`
	TopicPrefix  string   `json:"topic_prefix,omitempty"`
	HeartbeatMs  int64    `json:"heartbeat_ms"`
	GPIO         bool     `json:"gpio"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.Timer.State)
	if state == "" {
		state = "UNKNOWN"
	}
	intervals := snap.Config.Intervals
	if intervals == nil {
		intervals = []string{}
	}

	return StatusInner{
		Timer: TimerJSON{
			State:            state,
			Timeleft:         snap.Timer.Timeleft,
			TimeleftNext:     snap.Timer.TimeleftNext,
			DateMove:         formatTime(snap.Timer.DateMove),
			DateMoveNext:     formatTime(snap.Timer.DateMoveNext),
			PauseAutomatique: snap.Timer.PauseAutomatique,
		},
		Movements:     MovementsJSON{Count: snap.Movements, Last: formatTime(snap.LastMovement)},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Display:       DisplayStatus{Clients: snap.DisplayClients},
		Config: ConfigJSON{
			CycleSeconds: snap.Config.CycleSeconds,
			Intervals:    intervals,
			AllDaysValid: snap.Config.AllDaysValid,
			Timezone:     snap.Config.Timezone,
			Holidays:     snap.Config.Holidays,
			HTTPPort:     snap.Config.HTTPPort,
			StaticDir:    snap.Config.StaticDir,
			Broker:       snap.Config.Broker,
			TopicPrefix:  snap.Config.TopicPrefix,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			GPIO:         snap.Config.GPIO,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
