// Package cycle implements the production cycle timer: a state machine that
// counts down working seconds to the next two line movements.
package cycle

import (
	"errors"
	"time"
)

// ErrInvalidSeconds is returned by Init for a NaN, infinite or negative value.
var ErrInvalidSeconds = errors.New("cycle: invalid number of seconds")

// ErrUnknownCommand is returned for a command name the timer does not know.
var ErrUnknownCommand = errors.New("cycle: unknown command")

// State is the explicit state of the timer.
type State string

const (
	StateInitial State = "initial"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// EventType identifies an outbound notification.
type EventType string

const (
	// EventSnapshot is emitted after every mutation and every tick.
	EventSnapshot EventType = "app-timer"
	// EventMovement is emitted when a cycle completes.
	EventMovement EventType = "mouvement"
)

// Snapshot is the externally visible state of the timer.
// It is a value type and safe to use after it has been handed out.
type Snapshot struct {
	State State
	// Timeleft is the number of working seconds until the next movement.
	Timeleft int64
	// TimeleftNext is the number of working seconds until the movement after it.
	TimeleftNext int64
	// Duration is the cycle length in working seconds.
	Duration     int64
	DateMove     time.Time
	DateMoveNext time.Time
	// PauseAutomatique is set while the wall clock is outside working hours.
	PauseAutomatique bool
	At               time.Time
}

// Event is a notification sent to subscribers.
type Event struct {
	Type     EventType
	Snapshot Snapshot
}

// CommandName names a control operation.
type CommandName string

const (
	CommandStart CommandName = "start"
	CommandStop  CommandName = "stop"
	CommandPause CommandName = "pause"
	CommandInit  CommandName = "init"
)

// Command is a control request coming from a transport.
// Value is only read by CommandInit.
type Command struct {
	Name  CommandName
	Value float64
}
