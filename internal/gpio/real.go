//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads buttons from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines []*gpiocdev.Line // start, pause, stop
}

// NewRealReader requests the three button lines on the given chip.
func NewRealReader(chipName string, pins Pins) (*RealReader, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("sandglass"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{chip: chip}
	for _, p := range []struct {
		name string
		pin  int
	}{{"start", pins.Start}, {"pause", pins.Pause}, {"stop", pins.Stop}} {
		// Pull-up so an open switch reads high; pressing shorts to ground.
		line, err := chip.RequestLine(p.pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request %s pin %d: %w", p.name, p.pin, err)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Read returns the logical button states.
// Inverts raw GPIO: raw low (0) = pressed.
func (r *RealReader) Read() (Buttons, error) {
	var pressed [3]bool
	for i, line := range r.lines {
		raw, err := line.Value()
		if err != nil {
			return Buttons{}, fmt.Errorf("read pin %d: %w", line.Offset(), err)
		}
		pressed[i] = raw == 0
	}
	return Buttons{Start: pressed[0], Pause: pressed[1], Stop: pressed[2]}, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	for _, line := range r.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", line.Offset(), err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", line.Offset(), err))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
