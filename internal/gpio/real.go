//go:build linux

package gpio

import (
	"fmt"

	"github.com/sweeney/harvest-engine/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads the bus from actual hardware using the Linux GPIO
// character device. All wired signals are requested as one line set so a
// sample is taken in a single ioctl.
type RealReader struct {
	chip   *gpiocdev.Chip
	lines  *gpiocdev.Lines
	wired  []int // signal index of each requested line
	values []int
	levels []bool
}

// NewRealReader requests every wired signal on the given chip as an input.
func NewRealReader(chipName string, pins Pins) (*RealReader, error) {
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("pin map: %w", err)
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	var offsets, wired []int
	for sig, l := range pins.Lines() {
		if l == Unwired {
			continue
		}
		offsets = append(offsets, l)
		wired = append(wired, sig)
	}

	// Pull-down keeps undriven bus lines at a defined low level.
	lines, err := chip.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request bus lines %v: %w", offsets, err)
	}

	return &RealReader{
		chip:   chip,
		lines:  lines,
		wired:  wired,
		values: make([]int, len(offsets)),
		levels: make([]bool, numSigs),
	}, nil
}

// Read samples all bus lines at once.
func (r *RealReader) Read() (logic.Inputs, error) {
	if err := r.lines.Values(r.values); err != nil {
		return logic.Inputs{}, fmt.Errorf("read bus lines: %w", err)
	}

	r.levels[sigReset] = true
	r.levels[sigEna] = true
	for i, sig := range r.wired {
		r.levels[sig] = r.values[i] != 0
	}
	return Decode(r.levels), nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure bus lines: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
