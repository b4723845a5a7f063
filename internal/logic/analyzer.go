package logic

// Severity is the ordinal magnitude of a deviation from baseline.
type Severity uint8

const (
	SeverityNone     Severity = 0
	SeverityLow      Severity = 1
	SeverityModerate Severity = 2
	SeverityHigh     Severity = 3
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityLow:
		return "LOW"
	case SeverityModerate:
		return "MODERATE"
	default:
		return "HIGH"
	}
}

// DeviationResult is recomputed every step a channel is active.
type DeviationResult struct {
	Severity Severity
	Alert    bool
}

// ClassifyDeviation grades |reading - baseline| against the bands.
// The difference is taken in int so 0 and 255 cannot wrap.
func ClassifyDeviation(reading, baseline uint8, bands DeviationBands) DeviationResult {
	d := int(reading) - int(baseline)
	if d < 0 {
		d = -d
	}

	var sev Severity
	switch {
	case d >= bands.High:
		sev = SeverityHigh
	case d >= bands.Moderate:
		sev = SeverityModerate
	case d >= bands.Low:
		sev = SeverityLow
	default:
		sev = SeverityNone
	}
	return DeviationResult{Severity: sev, Alert: sev >= SeverityLow}
}

// SensorChannel is the learned state of one sensor input.
type SensorChannel struct {
	ID          uint8
	Baseline    uint8
	BaselineSet bool
	SampleCount int
	LastReading uint8

	sampleSum uint32
	idleSteps int
}

func (c *SensorChannel) restartBaseline() {
	c.Baseline = 0
	c.BaselineSet = false
	c.SampleCount = 0
	c.sampleSum = 0
}

// Analyzer learns per-channel baselines and grades deviations from them.
type Analyzer struct {
	samples   int
	idleClear int
	bands     DeviationBands

	channels [NumChannels]SensorChannel
	selected int // -1 when no channel is selected
	result   DeviationResult
}

func newAnalyzer(cfg Config) Analyzer {
	a := Analyzer{
		samples:   cfg.BaselineSamples,
		idleClear: cfg.IdleClearSteps,
		bands:     cfg.Deviation,
		selected:  -1,
	}
	for i := range a.channels {
		a.channels[i].ID = uint8(i)
	}
	return a
}

// Step advances the analyzer by one step. When active, the selected channel
// accepts reading; otherwise every channel only ages.
func (a *Analyzer) Step(active bool, channel, reading uint8) DeviationResult {
	if !active {
		a.age(-1)
		return DeviationResult{}
	}

	c := int(channel & 0x03)
	if c != a.selected {
		a.selectChannel(c)
	}
	a.age(c)

	ch := &a.channels[c]
	ch.LastReading = reading

	if !ch.BaselineSet {
		ch.sampleSum += uint32(reading)
		ch.SampleCount++
		if ch.SampleCount < a.samples {
			a.result = DeviationResult{}
			return a.result
		}
		ch.Baseline = uint8(ch.sampleSum / uint32(a.samples))
		ch.BaselineSet = true
	}

	a.result = ClassifyDeviation(reading, ch.Baseline, a.bands)
	return a.result
}

// selectChannel handles (re)selection. A channel whose baseline is still
// forming starts over; a learned baseline survives unless the channel sat
// idle for too long.
func (a *Analyzer) selectChannel(c int) {
	ch := &a.channels[c]
	if a.idleClear > 0 && ch.idleSteps >= a.idleClear {
		ch.restartBaseline()
	}
	if !ch.BaselineSet {
		ch.SampleCount = 0
		ch.sampleSum = 0
	}
	a.selected = c
}

func (a *Analyzer) age(active int) {
	for i := range a.channels {
		if i == active {
			a.channels[i].idleSteps = 0
			continue
		}
		if a.channels[i].idleSteps < maxIdleSteps {
			a.channels[i].idleSteps++
		}
	}
}

// Abort drops in-flight state: the latched result and any partially formed
// baseline of the selected channel. Learned baselines are kept.
func (a *Analyzer) Abort() {
	if a.selected >= 0 {
		ch := &a.channels[a.selected]
		if !ch.BaselineSet {
			ch.SampleCount = 0
			ch.sampleSum = 0
		}
	}
	a.selected = -1
	a.result = DeviationResult{}
}

// Result returns the deviation computed on the last active step.
func (a *Analyzer) Result() DeviationResult {
	return a.result
}

// SelectedBaselineSet reports whether the currently selected channel has a
// learned baseline.
func (a *Analyzer) SelectedBaselineSet() bool {
	return a.selected >= 0 && a.channels[a.selected].BaselineSet
}

// Channels returns a copy of every channel's state.
func (a *Analyzer) Channels() [NumChannels]SensorChannel {
	return a.channels
}

const maxIdleSteps = 1<<31 - 1
