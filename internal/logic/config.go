package logic

import (
	"errors"
	"fmt"
)

// DeviationBands are the lower bounds of |reading - baseline| for each
// severity above none.
type DeviationBands struct {
	Low      int
	Moderate int
	High     int
}

// RangerThresholds are exclusive upper bounds, in cycles, of the echo pulse
// width for each distance class. Anything at or above Far is out of range.
type RangerThresholds struct {
	NearCycles uint32
	MidCycles  uint32
	FarCycles  uint32
}

// ClassifierThresholds decide which hidden bits fire for a finished frame.
type ClassifierThresholds struct {
	GreenMin     uint8 // average 6-bit green level
	RowsMin      uint16
	NearClassMax DistanceClass
}

// Config holds the tunable policy of the engine.
type Config struct {
	SettleSteps     int
	BaselineSamples int
	// IdleClearSteps drops a channel's baseline when it is re-selected after
	// being unselected for at least this many steps. Zero disables clearing.
	IdleClearSteps int
	Deviation      DeviationBands
	Ranger         RangerThresholds
	Classifier     ClassifierThresholds
	// ClockHz is the step rate used to convert echo widths to centimeters.
	ClockHz uint32
}

// DefaultConfig returns the thresholds the field unit ships with.
// Ranger thresholds correspond to 30/100/200 cm at a 25 MHz step clock.
func DefaultConfig() Config {
	return Config{
		SettleSteps:     5,
		BaselineSamples: 4,
		Deviation: DeviationBands{
			Low:      10,
			Moderate: 30,
			High:     60,
		},
		Ranger: RangerThresholds{
			NearCycles: 43_500,
			MidCycles:  145_000,
			FarCycles:  290_000,
		},
		Classifier: ClassifierThresholds{
			GreenMin:     40,
			RowsMin:      32,
			NearClassMax: DistanceNear,
		},
		ClockHz: 25_000_000,
	}
}

// Validate reports the first inconsistency in the configuration.
func (c Config) Validate() error {
	if c.SettleSteps < 0 {
		return fmt.Errorf("settle steps must be >= 0, got %d", c.SettleSteps)
	}
	if c.BaselineSamples < 1 {
		return fmt.Errorf("baseline samples must be >= 1, got %d", c.BaselineSamples)
	}
	if c.IdleClearSteps < 0 {
		return fmt.Errorf("idle clear steps must be >= 0, got %d", c.IdleClearSteps)
	}
	d := c.Deviation
	if d.Low < 1 || d.Low >= d.Moderate || d.Moderate >= d.High || d.High > 255 {
		return fmt.Errorf("deviation bands must satisfy 1 <= low < moderate < high <= 255, got %d/%d/%d",
			d.Low, d.Moderate, d.High)
	}
	r := c.Ranger
	if r.NearCycles == 0 || r.NearCycles >= r.MidCycles || r.MidCycles >= r.FarCycles {
		return fmt.Errorf("ranger thresholds must satisfy 0 < near < mid < far, got %d/%d/%d",
			r.NearCycles, r.MidCycles, r.FarCycles)
	}
	if c.Classifier.GreenMin > maxGreen {
		return fmt.Errorf("green threshold must be <= %d, got %d", maxGreen, c.Classifier.GreenMin)
	}
	if c.Classifier.NearClassMax > DistanceOutOfRange {
		return fmt.Errorf("near class %d is not a distance class", c.Classifier.NearClassMax)
	}
	if c.ClockHz == 0 {
		return errors.New("clock rate must be > 0")
	}
	return nil
}
