package logic

import "math"

// DistanceClass is the proximity bucket of an echo pulse. Shorter pulses are
// closer.
type DistanceClass uint8

const (
	DistanceNear       DistanceClass = 0
	DistanceMid        DistanceClass = 1
	DistanceFar        DistanceClass = 2
	DistanceOutOfRange DistanceClass = 3
)

func (d DistanceClass) String() string {
	switch d {
	case DistanceNear:
		return "NEAR"
	case DistanceMid:
		return "MID"
	case DistanceFar:
		return "FAR"
	default:
		return "OUT_OF_RANGE"
	}
}

// DistanceEstimate is the result of the most recent completed echo pulse.
type DistanceEstimate struct {
	PulseCycles uint32
	Class       DistanceClass
	Valid       bool
}

// usPerCm is the round-trip echo time per centimeter for an HC-SR04 style
// rangefinder.
const usPerCm = 58.0

// Centimeters converts the pulse width to a distance at the given step rate.
func (d DistanceEstimate) Centimeters(clockHz uint32) float64 {
	if !d.Valid || clockHz == 0 {
		return 0
	}
	us := float64(d.PulseCycles) * 1e6 / float64(clockHz)
	return us / usPerCm
}

// ClassifyPulse maps a pulse width onto a distance class. The mapping is
// monotone in width.
func ClassifyPulse(width uint32, th RangerThresholds) DistanceClass {
	switch {
	case width < th.NearCycles:
		return DistanceNear
	case width < th.MidCycles:
		return DistanceMid
	case width < th.FarCycles:
		return DistanceFar
	default:
		return DistanceOutOfRange
	}
}

// Ranger measures echo pulse widths.
type Ranger struct {
	th RangerThresholds

	prevEcho  bool
	pulseOpen bool
	width     uint32
	latest    DistanceEstimate
}

func newRanger(th RangerThresholds) Ranger {
	return Ranger{
		th:     th,
		latest: DistanceEstimate{Class: DistanceOutOfRange},
	}
}

// Step samples the echo line. A pulse is only measured if its rising edge
// was seen while active.
func (r *Ranger) Step(active, echo bool) {
	defer func() { r.prevEcho = echo }()

	if !active {
		r.pulseOpen = false
		r.width = 0
		return
	}

	switch {
	case echo && !r.prevEcho:
		r.pulseOpen = true
		r.width = 1
	case echo && r.pulseOpen:
		if r.width < math.MaxUint32 {
			r.width++
		}
	case !echo && r.prevEcho && r.pulseOpen:
		r.latest = DistanceEstimate{
			PulseCycles: r.width,
			Class:       ClassifyPulse(r.width, r.th),
			Valid:       true,
		}
		r.pulseOpen = false
		r.width = 0
	}
}

// Latest returns the last completed estimate. An open pulse never shows here.
func (r *Ranger) Latest() DistanceEstimate {
	return r.latest
}
