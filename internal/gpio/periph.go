package gpio

import (
	"fmt"

	"github.com/sweeney/harvest-engine/internal/logic"
	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads the bus through periph.io. It works on boards where the
// character device is unavailable, at the cost of one read per line.
type PeriphReader struct {
	pins   []pgpio.PinIO // nil for unwired lines
	levels []bool
}

// NewPeriphReader initializes the periph host drivers and configures every
// wired line as an input with pull-down.
func NewPeriphReader(pins Pins) (*PeriphReader, error) {
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("pin map: %w", err)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	r := &PeriphReader{
		pins:   make([]pgpio.PinIO, numSigs),
		levels: make([]bool, numSigs),
	}
	for sig, l := range pins.Lines() {
		if l == Unwired {
			continue
		}
		name := fmt.Sprintf("GPIO%d", l)
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("pin %s not found", name)
		}
		if err := p.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure %s: %w", name, err)
		}
		r.pins[sig] = p
	}
	return r, nil
}

// Read samples each line in turn.
func (r *PeriphReader) Read() (logic.Inputs, error) {
	for sig, p := range r.pins {
		if p == nil {
			r.levels[sig] = true
			continue
		}
		r.levels[sig] = p.Read() == pgpio.High
	}
	return Decode(r.levels), nil
}

// Close leaves every line as a pulled-down input.
func (r *PeriphReader) Close() error {
	var errs []error
	for _, p := range r.pins {
		if p == nil {
			continue
		}
		if err := p.In(pgpio.PullDown, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", p.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
