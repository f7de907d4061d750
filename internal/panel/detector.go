package panel

import "time"

// Detector debounces button samples and reports presses.
type Detector struct {
	debounceDuration time.Duration
	buttons          [numButtons]buttonState
	baselined        bool
	counts           Counts
}

// NewDetector creates a press detector with the given debounce duration.
func NewDetector(debounceDuration time.Duration) *Detector {
	return &Detector{debounceDuration: debounceDuration}
}

// Process takes a new input sample and returns the presses it completes.
// Nothing is reported until every button has a stable baseline, so a button
// held down at boot does not fire. Releases are never reported.
func (d *Detector) Process(input Input) []Press {
	var pressed [numButtons]bool
	for b := ButtonStart; b < numButtons; b++ {
		pressed[b] = d.processButton(&d.buttons[b], input.pressed(b), input.Time)
	}

	if !d.baselined {
		d.baselined = true
		for b := range d.buttons {
			d.baselined = d.baselined && d.buttons[b].baselined
		}
		return nil // No presses until baseline established
	}

	var presses []Press
	// Order: start, pause, stop when pressed together.
	for b := ButtonStart; b < numButtons; b++ {
		if !pressed[b] {
			continue
		}
		presses = append(presses, Press{Time: input.Time, Button: b, Command: b.Command()})
		switch b {
		case ButtonStart:
			d.counts.Start++
		case ButtonPause:
			d.counts.Pause++
		case ButtonStop:
			d.counts.Stop++
		}
	}
	return presses
}

// processButton handles debounce logic for a single button.
// Returns true when the button settles into the pressed state.
func (d *Detector) processButton(s *buttonState, down bool, now time.Time) bool {
	// First time seeing this button
	if !s.baselined {
		if !s.hasPending || s.pending != down {
			// Start observing, or restart after a change
			s.pending = down
			s.hasPending = true
			s.pendingSince = now
			return false
		}

		if now.Sub(s.pendingSince) >= d.debounceDuration {
			s.stable = down
			s.baselined = true
			s.hasPending = false
		}
		return false
	}

	if down == s.stable {
		// No change from stable state, clear any pending
		s.hasPending = false
		return false
	}

	if !s.hasPending || s.pending != down {
		s.pending = down
		s.hasPending = true
		s.pendingSince = now
		return false
	}

	if now.Sub(s.pendingSince) >= d.debounceDuration {
		s.stable = down
		s.hasPending = false
		return down
	}
	return false
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// Held returns the stable state of a button.
func (d *Detector) Held(b Button) bool {
	return d.buttons[b].stable
}

// Counts returns the number of presses per button since startup.
func (d *Detector) Counts() Counts {
	return d.counts
}
