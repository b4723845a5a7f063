// Package logic contains the fixed-function decision engine and the
// transition monitor that turns its status word into publishable events.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// NumChannels is the number of independently addressable sensor channels.
const NumChannels = 4

// Mode is the operating mode selector.
type Mode uint8

const (
	ModeSensor Mode = 0
	ModeVision Mode = 1
)

func (m Mode) String() string {
	if m == ModeVision {
		return "VISION"
	}
	return "SENSOR"
}

// Channel names follow the wiring of the field unit.
const (
	ChannelSoil     uint8 = 0
	ChannelHumidity uint8 = 1
	ChannelLight    uint8 = 2
	ChannelTemp     uint8 = 3
)

// ChannelName returns the human readable name of a sensor channel.
func ChannelName(id uint8) string {
	switch id & 0x03 {
	case ChannelSoil:
		return "soil"
	case ChannelHumidity:
		return "humidity"
	case ChannelLight:
		return "light"
	default:
		return "temperature"
	}
}

// Inputs is one step's sample of the input bus. It is taken once per step and
// never modified while the step runs.
type Inputs struct {
	Data      uint8
	Mode      Mode
	Channel   uint8 // only the low two bits are used
	FrameSync bool
	RowSync   bool
	Echo      bool
	ResetN    bool // active-low
	Enable    bool
}

// StatusWord is the decoded output register.
type StatusWord struct {
	Alert      bool
	Ready      bool
	Mode       Mode
	Prediction bool
	StatusBits uint8 // severity in sensor mode, hidden bits in vision mode
	Valid      bool  // bit 0: the active pipeline has a usable result
}

// State represents the logical state of a monitored status field.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// EventType represents a debounced status transition.
type EventType string

const (
	EventAlertOn        EventType = "ALERT_ON"
	EventAlertOff       EventType = "ALERT_OFF"
	EventHarvestReady   EventType = "HARVEST_READY"
	EventHarvestCleared EventType = "HARVEST_CLEARED"
	EventModeVision     EventType = "MODE_VISION"
	EventModeSensor     EventType = "MODE_SENSOR"
)

// Event represents a status transition to be published.
type Event struct {
	Timestamp  time.Time
	Type       EventType
	Alert      State
	Prediction State
	Mode       Mode
	Word       StatusWord
}

// ChannelState tracks debounce state for a single monitored field.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// MonitorInput is one status word observed at a point in time.
type MonitorInput struct {
	Word StatusWord
	Time time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	AlertOn        int
	AlertOff       int
	HarvestReady   int
	HarvestCleared int
	ModeVision     int
	ModeSensor     int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
