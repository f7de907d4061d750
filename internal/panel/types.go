// Package panel turns push-button samples into timer commands.
// This package has NO hardware dependencies (no GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package panel

import (
	"time"

	"github.com/sweeney/sandglass/internal/cycle"
)

// Button identifies a panel button.
type Button int

const (
	ButtonStart Button = iota
	ButtonPause
	ButtonStop
	numButtons
)

func (b Button) String() string {
	switch b {
	case ButtonStart:
		return "start"
	case ButtonPause:
		return "pause"
	case ButtonStop:
		return "stop"
	}
	return "unknown"
}

// Command returns the timer command bound to the button.
func (b Button) Command() cycle.Command {
	switch b {
	case ButtonPause:
		return cycle.Command{Name: cycle.CommandPause}
	case ButtonStop:
		return cycle.Command{Name: cycle.CommandStop}
	}
	return cycle.Command{Name: cycle.CommandStart}
}

// Input represents a single sample of the buttons. True means held down.
type Input struct {
	Start bool
	Pause bool
	Stop  bool
	Time  time.Time
}

func (in Input) pressed(b Button) bool {
	switch b {
	case ButtonStart:
		return in.Start
	case ButtonPause:
		return in.Pause
	}
	return in.Stop
}

// Press is a debounced button press.
type Press struct {
	Time    time.Time
	Button  Button
	Command cycle.Command
}

// Counts tracks the number of presses per button since startup.
type Counts struct {
	Start int
	Pause int
	Stop  int
}

// buttonState tracks debounce state for a single button.
type buttonState struct {
	// Current stable (debounced) state
	stable bool
	// Pending state during debounce
	pending    bool
	hasPending bool
	// Time when pending state was first observed
	pendingSince time.Time
	// Whether we have established a baseline
	baselined bool
}
