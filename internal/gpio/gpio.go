// Package gpio reads the engine's input bus with hardware abstraction.
// The real implementations use the Linux GPIO character device or periph.io.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// Reader samples the input bus.
type Reader interface {
	// Read returns one sample of the input bus.
	Read() (logic.Inputs, error)

	// Close releases GPIO resources.
	Close() error
}

// Unwired marks a control line that is not connected. Reset and enable read
// as released/asserted when unwired.
const Unwired = -1

// Pins maps each bus signal to a BCM line number.
type Pins struct {
	Data      [8]int // bit 0 first
	Mode      int
	Channel   [2]int // bit 0 first
	FrameSync int
	RowSync   int
	Echo      int
	ResetN    int
	Enable    int
}

// DefaultPins is the wiring of the field unit's carrier board.
func DefaultPins() Pins {
	return Pins{
		Data:      [8]int{4, 17, 27, 22, 5, 6, 13, 19},
		Mode:      26,
		Channel:   [2]int{20, 21},
		FrameSync: 16,
		RowSync:   12,
		Echo:      24,
		ResetN:    23,
		Enable:    25,
	}
}

// Signal order used by Lines and Decode.
const (
	sigData0 = iota
	sigMode  = sigData0 + 8
	sigChan0 = sigMode + 1
	sigFrame = sigChan0 + 2
	sigRow   = sigFrame + 1
	sigEcho  = sigRow + 1
	sigReset = sigEcho + 1
	sigEna   = sigReset + 1
	numSigs  = sigEna + 1
)

// Lines returns the line number of every signal in a fixed order.
func (p Pins) Lines() []int {
	lines := make([]int, 0, numSigs)
	lines = append(lines, p.Data[:]...)
	lines = append(lines, p.Mode)
	lines = append(lines, p.Channel[:]...)
	return append(lines, p.FrameSync, p.RowSync, p.Echo, p.ResetN, p.Enable)
}

// Validate checks that every required signal is wired and no line is reused.
func (p Pins) Validate() error {
	seen := map[int]bool{}
	for i, l := range p.Lines() {
		if l == Unwired && (i == sigReset || i == sigEna) {
			continue
		}
		if l < 0 {
			return fmt.Errorf("signal %d: line %d is not valid", i, l)
		}
		if seen[l] {
			return fmt.Errorf("line %d is assigned twice", l)
		}
		seen[l] = true
	}
	return nil
}

// Decode turns raw line levels, in Lines order, into an input sample.
func Decode(levels []bool) logic.Inputs {
	var data, ctrl uint8
	for i := 0; i < 8; i++ {
		if levels[sigData0+i] {
			data |= 1 << i
		}
	}
	if levels[sigMode] {
		ctrl |= 1 << logic.PinMode
	}
	if levels[sigChan0] {
		ctrl |= 1 << 0
	}
	if levels[sigChan0+1] {
		ctrl |= 1 << 1
	}
	if levels[sigFrame] {
		ctrl |= 1 << logic.PinFrameSync
	}
	if levels[sigRow] {
		ctrl |= 1 << logic.PinRowSync
	}
	if levels[sigEcho] {
		ctrl |= 1 << logic.PinEcho
	}
	return logic.DecodePins(data, ctrl, levels[sigReset], levels[sigEna])
}
