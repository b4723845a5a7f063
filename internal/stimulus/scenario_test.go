package stimulus

import (
	"testing"

	"github.com/sweeney/harvest-engine/internal/gpio"
	"github.com/sweeney/harvest-engine/internal/logic"
)

var _ gpio.Reader = (*Reader)(nil)

// run steps a fresh engine through every sample and returns the last word.
func run(t *testing.T, samples []logic.Inputs) (*logic.Engine, logic.StatusWord) {
	t.Helper()
	e := logic.NewEngine(logic.DefaultConfig())
	var w logic.StatusWord
	for _, in := range samples {
		w = e.Step(in)
	}
	return e, w
}

func mustParse(t *testing.T, doc string) Scenario {
	t.Helper()
	sc, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return sc
}

func TestBenchReset(t *testing.T) {
	b := NewBench()
	b.SetData(42)
	b.SetMode(logic.ModeVision)
	b.Reset(10, 5)

	s := b.Samples()
	if len(s) != 15 {
		t.Fatalf("samples: got %d, want 15", len(s))
	}
	for i := 0; i < 10; i++ {
		if s[i].ResetN {
			t.Errorf("sample %d: reset should be asserted", i)
		}
	}
	for i := 10; i < 15; i++ {
		if !s[i].ResetN || !s[i].Enable {
			t.Errorf("sample %d: reset should be released", i)
		}
	}
	if s[14].Data != 0 || s[14].Mode != logic.ModeSensor {
		t.Errorf("reset should clear the registers, got %+v", s[14])
	}
}

func TestBenchSelectKeepsMode(t *testing.T) {
	b := NewBench()
	b.SetMode(logic.ModeVision)
	b.Select(3)
	b.Select(1)

	in := b.Current()
	if in.Channel != 1 || in.Mode != logic.ModeVision {
		t.Errorf("got %+v, want channel 1 in vision mode", in)
	}
	if got := in.ControlByte(); got != 0x81 {
		t.Errorf("control byte: got %#02x, want 0x81", got)
	}
}

func TestBenchFrameTiming(t *testing.T) {
	b := NewBench()
	b.Frame(2, 4, []uint8{0xAA, 0x55}, 5, 3)

	// lead + rows*(cols+gap)
	if got := len(b.Samples()); got != 5+2*(4+3) {
		t.Fatalf("samples: got %d, want %d", got, 5+2*(4+3))
	}
	rows := 0
	for i, in := range b.Samples() {
		if !in.FrameSync {
			t.Errorf("sample %d: frame-sync dropped inside the frame", i)
		}
		if in.RowSync {
			rows++
		}
	}
	if rows != 8 {
		t.Errorf("row-sync samples: got %d, want 8", rows)
	}
	if b.Current().FrameSync {
		t.Error("frame-sync should be low after the frame")
	}
	if s := b.Samples(); s[5].Data != 0xAA || s[6].Data != 0x55 {
		t.Errorf("pattern not cycled: %#02x %#02x", s[5].Data, s[6].Data)
	}
}

func TestBenchEcho(t *testing.T) {
	b := NewBench()
	b.Echo(7)
	high := 0
	for _, in := range b.Samples() {
		if in.Echo {
			high++
		}
	}
	if high != 7 {
		t.Errorf("echo high: got %d, want 7", high)
	}
	if b.Current().Echo {
		t.Error("echo should be low after the pulse")
	}
}

func TestScenarioSensorAlert(t *testing.T) {
	learn := mustParse(t, `
name: sensor-learn
ops:
  - reset: {}
  - mode: sensor
  - select: 0
  - hold: {value: 100, steps: 1, repeat: 4}
`)
	b, err := Expand(learn)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	_, w := run(t, b.Samples())
	if w.Alert || w.StatusBits != 0 || !w.Valid {
		t.Errorf("after learning: got %+v, want no alert with a valid baseline", w)
	}

	learn.Ops = append(learn.Ops, Op{Hold: &HoldOp{Value: 180, Steps: 1, Repeat: 4}})
	b, err = Expand(learn)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	_, w = run(t, b.Samples())
	if !w.Alert || w.StatusBits != 3 {
		t.Errorf("after deviation: got alert=%v bits=%d, want alert with severity 3", w.Alert, w.StatusBits)
	}
}

func TestScenarioDefaultResetLearnsFirstHeldReadings(t *testing.T) {
	// The default reset releases for exactly the settling window, so the
	// first sample after it is the first one the engine acts on.
	sc := mustParse(t, `
ops:
  - reset: {}
  - hold: {value: 100, steps: 1, repeat: 4}
`)
	b, err := Expand(sc)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got := len(b.Samples()); got != DefaultResetSteps+DefaultReleaseSteps+4 {
		t.Fatalf("samples: got %d", got)
	}

	e := logic.NewEngine(logic.DefaultConfig())
	samples := b.Samples()
	release := samples[:DefaultResetSteps+DefaultReleaseSteps]
	for i, in := range release {
		if w := e.Step(in); w.Ready {
			t.Fatalf("sample %d: ready during the reset sequence", i)
		}
	}
	var w logic.StatusWord
	for _, in := range samples[len(release):] {
		w = e.Step(in)
	}

	if !w.Ready || w.Alert || w.StatusBits != 0 || !w.Valid {
		t.Errorf("got %+v, want ready with a valid baseline and no alert", w)
	}
	ch := e.Snapshot().Channels[logic.ChannelSoil]
	if ch.Baseline != 100 || ch.SampleCount != 4 {
		t.Errorf("soil: baseline %d from %d samples, want 100 from 4", ch.Baseline, ch.SampleCount)
	}
}

func TestScenarioBenchHoldsAfterIdleBus(t *testing.T) {
	// The bench waits on an idle bus before presenting readings, so the
	// soil baseline is learned from zeros and the held reading alerts.
	sc := mustParse(t, `
ops:
  - reset: {}
  - mode: sensor
  - select: 0
  - wait: 5
  - hold: {value: 100, repeat: 4}
`)
	b, err := Expand(sc)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	e, w := run(t, b.Samples())
	if !w.Alert || w.StatusBits != 3 {
		t.Errorf("got alert=%v bits=%d, want high severity", w.Alert, w.StatusBits)
	}
	if ch := e.Snapshot().Channels[logic.ChannelSoil]; ch.Baseline != 0 {
		t.Errorf("baseline: got %d, want 0", ch.Baseline)
	}
}

func TestScenarioVisionHarvest(t *testing.T) {
	r, err := Open("testdata/vision_harvest.yaml")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if r.Name() != "vision-harvest" {
		t.Errorf("name: got %q", r.Name())
	}

	e := logic.NewEngine(logic.DefaultConfig())
	var w logic.StatusWord
	for !r.Done() {
		in, err := r.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		w = e.Step(in)
	}

	if !w.Prediction || !w.Alert {
		t.Errorf("got prediction=%v alert=%v, want both", w.Prediction, w.Alert)
	}
	if w.StatusBits != 7 {
		t.Errorf("hidden bits: got %03b, want 111", w.StatusBits)
	}
	snap := e.Snapshot()
	if snap.Classification.Features.RowCount != 50 {
		t.Errorf("rows: got %d, want 50", snap.Classification.Features.RowCount)
	}
	if snap.Distance.Class != logic.DistanceNear {
		t.Errorf("distance: got %s, want NEAR", snap.Distance.Class)
	}
}

func TestReaderTailAndLoop(t *testing.T) {
	sc := mustParse(t, `
ops:
  - data: 9
  - wait: 2
  - data: 4
`)
	r, err := NewReader(sc)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("len: got %d, want 2", r.Len())
	}
	for i := 0; i < 2; i++ {
		in, _ := r.Read()
		if in.Data != 9 {
			t.Errorf("sample %d: got data %d, want 9", i, in.Data)
		}
	}
	// Exhausted: the final register state repeats.
	for i := 0; i < 3; i++ {
		in, _ := r.Read()
		if in.Data != 4 {
			t.Errorf("tail %d: got data %d, want 4", i, in.Data)
		}
	}

	sc.Loop = true
	r, _ = NewReader(sc)
	r.Read()
	r.Read()
	if in, _ := r.Read(); in.Data != 9 {
		t.Errorf("loop: got data %d, want 9", in.Data)
	}
	if r.Done() {
		t.Error("a looping reader is never done")
	}
}

func TestReaderClosed(t *testing.T) {
	r, err := NewReader(Scenario{Ops: []Op{{Wait: 1}}})
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	r.Close()
	if _, err := r.Read(); err == nil {
		t.Error("expected error after close")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no ops", "name: empty\n"},
		{"two actions", "ops:\n  - {wait: 1, data: 3}\n"},
		{"no action", "ops:\n  - {}\n"},
		{"bad mode", "ops:\n  - mode: thermal\n"},
		{"bad channel", "ops:\n  - select: 4\n"},
		{"negative wait", "ops:\n  - wait: -1\n"},
		{"zero echo", "ops:\n  - echo: {steps: 0}\n"},
		{"frame without bytes", "ops:\n  - frame: {rows: 2, cols: 2}\n"},
		{"not yaml", "ops: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Open("testdata/missing.yaml"); err == nil {
		t.Error("expected error for a missing scenario")
	}
}
