package logic

// Output register bit positions.
const (
	bitAlert      = 7
	bitReady      = 6
	bitMode       = 5
	bitPrediction = 4
	shiftStatus   = 1
	bitValid      = 0
)

// PipelineResults are the latest outputs of both pipelines.
type PipelineResults struct {
	Deviation      DeviationResult
	BaselineSet    bool
	Classification Classification
}

// Encode builds the status word from the active pipeline's results. Nothing
// but Mode is reported until the engine is ready.
func Encode(mode Mode, ready bool, r PipelineResults) StatusWord {
	w := StatusWord{Ready: ready, Mode: mode}
	if !ready {
		return w
	}

	w.Prediction = r.Classification.HarvestReady
	switch mode {
	case ModeVision:
		w.Alert = r.Classification.HarvestReady
		w.StatusBits = r.Classification.HiddenBits & 0x07
		w.Valid = r.Classification.Valid
	default:
		w.Alert = r.Deviation.Alert
		w.StatusBits = uint8(r.Deviation.Severity) & 0x07
		w.Valid = r.BaselineSet
	}
	return w
}

// Byte packs the word into the output register layout.
func (w StatusWord) Byte() uint8 {
	var b uint8
	if w.Alert {
		b |= 1 << bitAlert
	}
	if w.Ready {
		b |= 1 << bitReady
	}
	if w.Mode == ModeVision {
		b |= 1 << bitMode
	}
	if w.Prediction {
		b |= 1 << bitPrediction
	}
	b |= (w.StatusBits & 0x07) << shiftStatus
	if w.Valid {
		b |= 1 << bitValid
	}
	return b
}

// DecodeStatusWord unpacks an output register value.
func DecodeStatusWord(b uint8) StatusWord {
	return StatusWord{
		Alert:      b&(1<<bitAlert) != 0,
		Ready:      b&(1<<bitReady) != 0,
		Mode:       Mode(b >> bitMode & 1),
		Prediction: b&(1<<bitPrediction) != 0,
		StatusBits: b >> shiftStatus & 0x07,
		Valid:      b&(1<<bitValid) != 0,
	}
}
