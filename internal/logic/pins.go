package logic

// Bidirectional control register (uio_in) layout.
const (
	PinMode      = 7
	PinFrameSync = 6
	PinRowSync   = 5
	PinEcho      = 4
)

// DecodePins builds an input sample from the raw data register, the control
// register, and the reset/enable lines.
func DecodePins(data, ctrl uint8, resetN, enable bool) Inputs {
	return Inputs{
		Data:      data,
		Mode:      Mode(ctrl >> PinMode & 1),
		Channel:   ctrl & 0x03,
		FrameSync: ctrl&(1<<PinFrameSync) != 0,
		RowSync:   ctrl&(1<<PinRowSync) != 0,
		Echo:      ctrl&(1<<PinEcho) != 0,
		ResetN:    resetN,
		Enable:    enable,
	}
}

// ControlByte is the inverse of DecodePins for the control register.
func (in Inputs) ControlByte() uint8 {
	b := in.Channel & 0x03
	if in.Mode == ModeVision {
		b |= 1 << PinMode
	}
	if in.FrameSync {
		b |= 1 << PinFrameSync
	}
	if in.RowSync {
		b |= 1 << PinRowSync
	}
	if in.Echo {
		b |= 1 << PinEcho
	}
	return b
}
