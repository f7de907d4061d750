// Package wire defines the JSON messages exchanged with display boards and
// MQTT subscribers.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/sandglass/internal/cycle"
)

// AppTimer is the timer payload understood by display boards.
type AppTimer struct {
	State            string `json:"state"`
	Timeleft         int64  `json:"timeleft"`
	TimeleftNext     int64  `json:"timeleft_next"`
	Duration         int64  `json:"duration"`
	DateMove         string `json:"date_move"`
	DateMoveISO      string `json:"date_move_iso"`
	DateMoveNext     string `json:"date_move_next"`
	DateMoveNextISO  string `json:"date_move_next_iso"`
	PauseAutomatique bool   `json:"isPauseAutomatique"`
}

// Message is the envelope of every websocket and MQTT message.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encoder renders snapshots in a locale and time zone.
type Encoder struct {
	locale Locale
	loc    *time.Location
}

// NewEncoder creates an Encoder. A nil location means time.Local.
func NewEncoder(locale Locale, loc *time.Location) *Encoder {
	if loc == nil {
		loc = time.Local
	}
	return &Encoder{locale: locale, loc: loc}
}

// AppTimer converts a snapshot to its wire representation.
func (e *Encoder) AppTimer(s cycle.Snapshot) AppTimer {
	return AppTimer{
		State:            string(s.State),
		Timeleft:         s.Timeleft,
		TimeleftNext:     s.TimeleftNext,
		Duration:         s.Duration,
		DateMove:         e.human(s.DateMove),
		DateMoveISO:      e.iso(s.DateMove),
		DateMoveNext:     e.human(s.DateMoveNext),
		DateMoveNextISO:  e.iso(s.DateMoveNext),
		PauseAutomatique: s.PauseAutomatique,
	}
}

// Event encodes a timer event as an envelope.
func (e *Encoder) Event(ev cycle.Event) ([]byte, error) {
	data, err := json.Marshal(e.AppTimer(ev.Snapshot))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	return json.Marshal(Message{Event: string(ev.Type), Data: data})
}

// Snapshot encodes a snapshot as an app-timer envelope.
func (e *Encoder) Snapshot(s cycle.Snapshot) ([]byte, error) {
	return e.Event(cycle.Event{Type: cycle.EventSnapshot, Snapshot: s})
}

func (e *Encoder) human(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return e.locale.Format(t.In(e.loc))
}

func (e *Encoder) iso(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(e.loc).Format(time.RFC3339)
}
