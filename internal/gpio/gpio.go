// Package gpio reads the push-button control panel with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Buttons is one sample of the panel. True means held down.
type Buttons struct {
	Start bool
	Pause bool
	Stop  bool
}

// Reader reads the panel buttons.
type Reader interface {
	// Read returns the logical button states.
	// Buttons are wired active-low: raw 0 = pressed.
	Read() (Buttons, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins maps buttons to GPIO lines (BCM numbering).
type Pins struct {
	Start int
	Pause int
	Stop  int
}

// DefaultPins is the wiring of the reference panel.
var DefaultPins = Pins{Start: 17, Pause: 27, Stop: 22}

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"
