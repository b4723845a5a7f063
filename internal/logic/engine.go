package logic

// Engine is the decision engine. It owns every piece of pipeline state and is
// advanced one step at a time by Step. Not safe for concurrent use.
type Engine struct {
	cfg Config

	mode     Mode
	settle   int
	analyzer Analyzer
	ranger   Ranger
	capturer FrameCapturer
	class    Classification

	steps  uint64
	frames uint64
	out    StatusWord
}

// NewEngine creates an engine in its post-reset state. It reports ready once
// cfg.SettleSteps steps have elapsed.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.mode = ModeSensor
	e.settle = e.cfg.SettleSteps
	e.analyzer = newAnalyzer(e.cfg)
	e.ranger = newRanger(e.cfg.Ranger)
	e.capturer = FrameCapturer{}
	e.class = Classification{}
	e.out = StatusWord{}
}

// Step samples one set of inputs, commits the resulting state, and returns
// the status word for this step.
func (e *Engine) Step(in Inputs) StatusWord {
	e.steps++

	if !in.ResetN {
		e.reset()
		return e.out
	}
	if !in.Enable {
		// Edges still have to be tracked, or a pulse or frame that began
		// while disabled would look fresh on re-enable.
		e.ranger.Step(false, in.Echo)
		e.capturer.Step(false, in.FrameSync, in.RowSync, in.Data)
		return e.out
	}

	mode := in.Mode & 1
	if mode != e.mode {
		e.switchMode(mode)
	}

	ready := e.settle == 0
	if !ready {
		e.settle--
	}

	dev := e.analyzer.Step(ready && mode == ModeSensor, in.Channel, in.Data)
	e.ranger.Step(ready, in.Echo)
	if feats, done := e.capturer.Step(ready && mode == ModeVision, in.FrameSync, in.RowSync, in.Data); done {
		e.class = ClassifyHarvest(feats, e.ranger.Latest(), e.cfg.Classifier)
		e.frames++
	}

	e.out = Encode(mode, ready, PipelineResults{
		Deviation:      dev,
		BaselineSet:    e.analyzer.SelectedBaselineSet(),
		Classification: e.class,
	})
	return e.out
}

// switchMode clears the transient state of the pipeline being left. Learned
// baselines and the last classification survive.
func (e *Engine) switchMode(to Mode) {
	switch to {
	case ModeVision:
		e.analyzer.Abort()
	default:
		e.capturer.Abort()
	}
	e.mode = to
}

// Ready reports whether the settling window has elapsed.
func (e *Engine) Ready() bool {
	return e.settle == 0
}

// EngineSnapshot is a read-only copy of engine state for diagnostics.
type EngineSnapshot struct {
	Word           StatusWord
	Mode           Mode
	Ready          bool
	Channels       [NumChannels]SensorChannel
	Deviation      DeviationResult
	Distance       DistanceEstimate
	Capture        CaptureState
	Classification Classification
	Steps          uint64
	Frames         uint64
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() EngineSnapshot {
	return EngineSnapshot{
		Word:           e.out,
		Mode:           e.mode,
		Ready:          e.Ready(),
		Channels:       e.analyzer.Channels(),
		Deviation:      e.analyzer.Result(),
		Distance:       e.ranger.Latest(),
		Capture:        e.capturer.State(),
		Classification: e.class,
		Steps:          e.steps,
		Frames:         e.frames,
	}
}
