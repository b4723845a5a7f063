package stimulus

import "github.com/sweeney/harvest-engine/internal/logic"

// Bench models the engine's input registers. Operations change the
// registers and emit one sample per elapsed step.
type Bench struct {
	data    uint8
	ctrl    uint8
	resetN  bool
	enable  bool
	samples []logic.Inputs
}

// NewBench returns a bench with reset released, the engine enabled, and all
// registers low.
func NewBench() *Bench {
	return &Bench{resetN: true, enable: true}
}

// Current returns the sample the registers produce right now.
func (b *Bench) Current() logic.Inputs {
	return logic.DecodePins(b.data, b.ctrl, b.resetN, b.enable)
}

// Samples returns everything emitted so far.
func (b *Bench) Samples() []logic.Inputs {
	return b.samples
}

// Wait emits n samples of the current registers.
func (b *Bench) Wait(n int) {
	in := b.Current()
	for i := 0; i < n; i++ {
		b.samples = append(b.samples, in)
	}
}

// Reset clears the registers, holds reset for steps, then releases it for
// release steps.
func (b *Bench) Reset(steps, release int) {
	b.data = 0
	b.ctrl = 0
	b.enable = true
	b.resetN = false
	b.Wait(steps)
	b.resetN = true
	b.Wait(release)
}

// SetMode drives the mode selector.
func (b *Bench) SetMode(m logic.Mode) {
	b.setCtrl(logic.PinMode, m == logic.ModeVision)
}

// Select drives the channel selector.
func (b *Bench) Select(ch uint8) {
	b.ctrl = b.ctrl&^0x03 | ch&0x03
}

// SetData drives the data bus.
func (b *Bench) SetData(v uint8) {
	b.data = v
}

// SetEnable drives the enable line.
func (b *Bench) SetEnable(on bool) {
	b.enable = on
}

// Hold drives v for steps steps, repeat times.
func (b *Bench) Hold(v uint8, steps, repeat int) {
	for i := 0; i < repeat; i++ {
		b.data = v
		b.Wait(steps)
	}
}

// Frame raises frame-sync, waits lead steps, sends rows of cols bytes each
// with a row gap after every row, then drops frame-sync.
func (b *Bench) Frame(rows, cols int, pattern []uint8, lead, rowGap int) {
	if len(pattern) == 0 {
		pattern = []uint8{0}
	}
	b.setCtrl(logic.PinFrameSync, true)
	b.Wait(lead)
	for r := 0; r < rows; r++ {
		b.setCtrl(logic.PinRowSync, true)
		for c := 0; c < cols; c++ {
			b.data = pattern[c%len(pattern)]
			b.Wait(1)
		}
		b.setCtrl(logic.PinRowSync, false)
		b.Wait(rowGap)
	}
	b.setCtrl(logic.PinFrameSync, false)
}

// Echo raises the echo line for steps steps and drops it again.
func (b *Bench) Echo(steps int) {
	b.setCtrl(logic.PinEcho, true)
	b.Wait(steps)
	b.setCtrl(logic.PinEcho, false)
}

func (b *Bench) setCtrl(bit uint, on bool) {
	if on {
		b.ctrl |= 1 << bit
	} else {
		b.ctrl &^= 1 << bit
	}
}

// Expand runs every operation of sc on a fresh bench.
func Expand(sc Scenario) (*Bench, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	b := NewBench()
	for _, op := range sc.Ops {
		b.apply(op)
	}
	return b, nil
}

func (b *Bench) apply(op Op) {
	switch {
	case op.Reset != nil:
		b.Reset(orDefault(op.Reset.Steps, DefaultResetSteps), orDefault(op.Reset.Release, DefaultReleaseSteps))
	case op.Mode != "":
		m, _ := parseMode(op.Mode)
		b.SetMode(m)
	case op.Select != nil:
		b.Select(*op.Select)
	case op.Data != nil:
		b.SetData(*op.Data)
	case op.Hold != nil:
		b.Hold(op.Hold.Value, orDefault(op.Hold.Steps, DefaultHoldSteps), orDefault(op.Hold.Repeat, 1))
	case op.Frame != nil:
		f := op.Frame
		b.Frame(f.Rows, f.Cols, f.Bytes, orDefault(f.Lead, DefaultFrameLead), orDefault(f.RowGap, DefaultRowGap))
	case op.Echo != nil:
		b.Echo(op.Echo.Steps)
	case op.Enable != nil:
		b.SetEnable(*op.Enable)
	case op.Wait > 0:
		b.Wait(op.Wait)
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
