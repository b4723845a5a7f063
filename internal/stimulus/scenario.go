// Package stimulus replays scripted bench scenarios into the engine.
// A scenario is a YAML list of operations on the input registers, expanded
// into one logic.Inputs sample per engine step.
package stimulus

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// Bench timing used when an operation leaves it unset.
const (
	DefaultResetSteps   = 10
	DefaultReleaseSteps = 5
	DefaultHoldSteps    = 10
	DefaultFrameLead    = 5
	DefaultRowGap       = 3
)

// ResetOp holds reset low, then releases it.
type ResetOp struct {
	Steps   int `yaml:"steps"`
	Release int `yaml:"release"`
}

// HoldOp drives a value on the data bus for Steps steps, Repeat times.
type HoldOp struct {
	Value  uint8 `yaml:"value"`
	Steps  int   `yaml:"steps"`
	Repeat int   `yaml:"repeat"`
}

// FrameOp sends one camera frame. Bytes is cycled across each row, so
// [0x07, 0xE0] sends pure green RGB565 pixels.
type FrameOp struct {
	Rows   int     `yaml:"rows"`
	Cols   int     `yaml:"cols"`
	Bytes  []uint8 `yaml:"bytes"`
	Lead   int     `yaml:"lead"`
	RowGap int     `yaml:"row_gap"`
}

// EchoOp raises the echo line for Steps steps.
type EchoOp struct {
	Steps int `yaml:"steps"`
}

// Op is one scenario operation. Exactly one field must be set.
type Op struct {
	Reset  *ResetOp `yaml:"reset,omitempty"`
	Mode   string   `yaml:"mode,omitempty"`
	Select *uint8   `yaml:"select,omitempty"`
	Data   *uint8   `yaml:"data,omitempty"`
	Hold   *HoldOp  `yaml:"hold,omitempty"`
	Frame  *FrameOp `yaml:"frame,omitempty"`
	Echo   *EchoOp  `yaml:"echo,omitempty"`
	Enable *bool    `yaml:"enable,omitempty"`
	Wait   int      `yaml:"wait,omitempty"`
}

// Scenario is a named list of operations.
type Scenario struct {
	Name string `yaml:"name"`
	Loop bool   `yaml:"loop"`
	Ops  []Op   `yaml:"ops"`
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a scenario document.
func Parse(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}

// Validate checks that every operation names exactly one action with sane
// arguments.
func (sc Scenario) Validate() error {
	if len(sc.Ops) == 0 {
		return errors.New("scenario has no ops")
	}
	for i, op := range sc.Ops {
		if err := op.validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}

func (op Op) validate() error {
	n := 0
	for _, set := range []bool{
		op.Reset != nil, op.Mode != "", op.Select != nil, op.Data != nil,
		op.Hold != nil, op.Frame != nil, op.Echo != nil, op.Enable != nil, op.Wait != 0,
	} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("want exactly one action, got %d", n)
	}

	switch {
	case op.Mode != "":
		if _, err := parseMode(op.Mode); err != nil {
			return err
		}
	case op.Select != nil && *op.Select >= logic.NumChannels:
		return fmt.Errorf("select: channel %d out of range", *op.Select)
	case op.Wait < 0:
		return fmt.Errorf("wait: %d steps", op.Wait)
	case op.Hold != nil && (op.Hold.Steps < 0 || op.Hold.Repeat < 0):
		return errors.New("hold: negative steps or repeat")
	case op.Echo != nil && op.Echo.Steps <= 0:
		return errors.New("echo: steps must be > 0")
	case op.Frame != nil:
		f := op.Frame
		if f.Rows < 0 || f.Cols < 0 || f.Lead < 0 || f.RowGap < 0 {
			return errors.New("frame: negative size or timing")
		}
		if f.Cols > 0 && f.Rows > 0 && len(f.Bytes) == 0 {
			return errors.New("frame: no pixel bytes")
		}
	}
	return nil
}

func parseMode(s string) (logic.Mode, error) {
	switch strings.ToLower(s) {
	case "sensor":
		return logic.ModeSensor, nil
	case "vision":
		return logic.ModeVision, nil
	}
	return 0, fmt.Errorf("mode: unknown mode %q", s)
}
