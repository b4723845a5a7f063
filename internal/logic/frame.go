package logic

// maxGreen is the largest 6-bit green value.
const maxGreen = 63

// Pixel is one RGB565 sample.
type Pixel struct {
	Red   uint8 // 5 bits
	Green uint8 // 6 bits
	Blue  uint8 // 5 bits
}

// DecodePixel rebuilds a pixel from its high and low bytes:
// high = RRRRRGGG, low = GGGBBBBB.
func DecodePixel(hi, lo byte) Pixel {
	return Pixel{
		Red:   hi >> 3,
		Green: (hi&0x07)<<3 | lo>>5,
		Blue:  lo & 0x1F,
	}
}

// CaptureState is the framing state of the camera capturer.
type CaptureState uint8

const (
	CaptureIdle CaptureState = iota
	CaptureFrame // frame open, between rows
	CaptureRow   // frame open, row active
)

func (s CaptureState) String() string {
	switch s {
	case CaptureFrame:
		return "FRAME_ACTIVE"
	case CaptureRow:
		return "ROW_ACTIVE"
	default:
		return "IDLE"
	}
}

// FrameAccumulator collects per-pixel sums for the frame being captured.
type FrameAccumulator struct {
	RowCount   uint16
	GreenAccum uint32
	RedAccum   uint32
	BlueAccum  uint32
	PixelCount uint32

	pendingHigh byte
	havePending bool
}

func (a *FrameAccumulator) push(b byte) {
	if !a.havePending {
		a.pendingHigh = b
		a.havePending = true
		return
	}
	p := DecodePixel(a.pendingHigh, b)
	a.havePending = false
	if a.PixelCount == ^uint32(0) {
		return
	}
	a.GreenAccum += uint32(p.Green)
	a.RedAccum += uint32(p.Red)
	a.BlueAccum += uint32(p.Blue)
	a.PixelCount++
}

func (a *FrameAccumulator) finalize() FrameFeatures {
	f := FrameFeatures{RowCount: a.RowCount, PixelCount: a.PixelCount}
	if a.PixelCount > 0 {
		f.AvgGreen = uint8(a.GreenAccum / a.PixelCount)
		f.AvgRed = uint8(a.RedAccum / a.PixelCount)
		f.AvgBlue = uint8(a.BlueAccum / a.PixelCount)
	}
	return f
}

// FrameFeatures summarizes one completed frame. The classifier uses AvgGreen
// and RowCount; the rest is reported for diagnostics.
type FrameFeatures struct {
	AvgGreen   uint8
	RowCount   uint16
	AvgRed     uint8
	AvgBlue    uint8
	PixelCount uint32
}

// FrameCapturer decodes the framed pixel stream. Sync edges are tracked on
// every step, so a frame already in flight when the capturer becomes active
// is skipped rather than captured from the middle. An open frame is dropped
// on the first inactive step.
type FrameCapturer struct {
	state     CaptureState
	acc       FrameAccumulator
	prevFrame bool
	prevRow   bool
}

// Step samples the framing lines and data byte. It returns the features of a
// frame that closed on this step.
func (f *FrameCapturer) Step(active, frameSync, rowSync bool, data byte) (FrameFeatures, bool) {
	frameRise := frameSync && !f.prevFrame
	frameFall := !frameSync && f.prevFrame
	rowRise := rowSync && !f.prevRow
	rowFall := !rowSync && f.prevRow
	f.prevFrame = frameSync
	f.prevRow = rowSync

	if !active {
		if f.state != CaptureIdle {
			f.Abort()
		}
		return FrameFeatures{}, false
	}

	if frameFall {
		if f.state == CaptureIdle {
			return FrameFeatures{}, false
		}
		feats := f.acc.finalize()
		f.acc = FrameAccumulator{}
		f.state = CaptureIdle
		return feats, true
	}
	if frameRise {
		f.acc = FrameAccumulator{}
		f.state = CaptureFrame
	}
	if f.state == CaptureIdle {
		return FrameFeatures{}, false
	}

	switch {
	case rowRise:
		f.state = CaptureRow
		if f.acc.RowCount < ^uint16(0) {
			f.acc.RowCount++
		}
		f.acc.havePending = false
	case rowFall && f.state == CaptureRow:
		f.state = CaptureFrame
		f.acc.havePending = false
	}

	if f.state == CaptureRow && rowSync {
		f.acc.push(data)
	}
	return FrameFeatures{}, false
}

// Abort drops any open frame.
func (f *FrameCapturer) Abort() {
	f.state = CaptureIdle
	f.acc = FrameAccumulator{}
}

// State returns the framing state.
func (f *FrameCapturer) State() CaptureState {
	return f.state
}

// Accumulator returns a copy of the in-flight accumulator.
func (f *FrameCapturer) Accumulator() FrameAccumulator {
	return f.acc
}
