// Package status provides a thread-safe status tracker for the harvest-engine daemon.
// It is designed to be read by HTTP handlers and MQTT lifecycle messages.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs          int64
	DebounceMs      int64
	HeartbeatMs     int64
	Broker          string
	HTTPPort        string
	WSBroker        string // Websocket broker URL for browser MQTT (empty = disabled)
	Backend         string
	Scenario        string
	SettleSteps     int
	BaselineSamples int
	ClockHz         uint32
}

// MonitorState is the debounced view of the status word.
type MonitorState struct {
	Alert      logic.State
	Prediction logic.State
	Mode       logic.Mode
	Baselined  bool
	Counts     logic.EventCounts
}

// MQTTState reports the broker connection and its outbox.
type MQTTState struct {
	Connected bool
	Pending   int
	Dropped   uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Engine    logic.EngineSnapshot
	Monitor   MonitorState
	StartTime time.Time
	Now       time.Time
	MQTT      MQTTState
	Network   *NetworkInfo
	Config    Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the engine snapshot and the monitor view.
// Called from runLoop on every tick.
func (t *Tracker) Update(eng logic.EngineSnapshot, mon MonitorState) {
	t.mu.Lock()
	t.snap.Engine = eng
	t.snap.Monitor = mon
	t.mu.Unlock()
}

// SetMQTT sets the MQTT connection status.
func (t *Tracker) SetMQTT(m MQTTState) {
	t.mu.Lock()
	t.snap.MQTT = m
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
