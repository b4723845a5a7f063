package status

import (
	"encoding/json"
	"math"
	"time"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Alert         string       `json:"alert"`
	Prediction    string       `json:"prediction"`
	Mode          string       `json:"mode"`
	Ready         bool         `json:"ready"`
	Engine        EngineJSON   `json:"engine"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// EngineJSON is the raw engine state behind the debounced fields.
type EngineJSON struct {
	Word           uint8              `json:"word"`
	Ready          bool               `json:"ready"`
	StatusBits     uint8              `json:"status_bits"`
	Valid          bool               `json:"valid"`
	Steps          uint64             `json:"steps"`
	Frames         uint64             `json:"frames"`
	Capture        string             `json:"capture"`
	Severity       string             `json:"severity"`
	Channels       []ChannelJSON      `json:"channels"`
	Distance       DistanceJSON       `json:"distance"`
	Classification ClassificationJSON `json:"classification"`
}

// ChannelJSON is one sensor channel.
type ChannelJSON struct {
	ID          uint8  `json:"id"`
	Name        string `json:"name"`
	Baseline    *uint8 `json:"baseline"` // null until learned
	Samples     int    `json:"samples"`
	LastReading uint8  `json:"last_reading"`
}

// DistanceJSON is the latest echo estimate.
type DistanceJSON struct {
	Valid       bool    `json:"valid"`
	Class       string  `json:"class"`
	PulseCycles uint32  `json:"pulse_cycles"`
	Centimeters float64 `json:"cm"`
}

// ClassificationJSON is the result of the last completed frame.
type ClassificationJSON struct {
	Valid        bool   `json:"valid"`
	HarvestReady bool   `json:"harvest_ready"`
	HiddenBits   uint8  `json:"hidden_bits"`
	AvgGreen     uint8  `json:"avg_green"`
	Rows         uint16 `json:"rows"`
	Pixels       uint32 `json:"pixels"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Pending   int    `json:"pending"`
	Dropped   uint64 `json:"dropped"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	AlertOn        int `json:"alert_on"`
	AlertOff       int `json:"alert_off"`
	HarvestReady   int `json:"harvest_ready"`
	HarvestCleared int `json:"harvest_cleared"`
	ModeVision     int `json:"mode_vision"`
	ModeSensor     int `json:"mode_sensor"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	DebounceMs      int64  `json:"debounce_ms"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker"`
	HTTPPort        string `json:"http_port"`
	WSBroker        string `json:"ws_broker,omitempty"`
	Backend         string `json:"backend"`
	Scenario        string `json:"scenario,omitempty"`
	SettleSteps     int    `json:"settle_steps"`
	BaselineSamples int    `json:"baseline_samples"`
	ClockHz         uint32 `json:"clock_hz"`
}

func stateOrUnknown(s logic.State) string {
	if s == "" {
		return "UNKNOWN"
	}
	return string(s)
}

func buildEngine(snap Snapshot) EngineJSON {
	e := snap.Engine
	ej := EngineJSON{
		Word:       e.Word.Byte(),
		Ready:      e.Ready,
		StatusBits: e.Word.StatusBits,
		Valid:      e.Word.Valid,
		Steps:      e.Steps,
		Frames:     e.Frames,
		Capture:    e.Capture.String(),
		Severity:   e.Deviation.Severity.String(),
		Channels:   make([]ChannelJSON, 0, len(e.Channels)),
		Distance: DistanceJSON{
			Valid:       e.Distance.Valid,
			Class:       "NONE",
			PulseCycles: e.Distance.PulseCycles,
		},
		Classification: ClassificationJSON{
			Valid:        e.Classification.Valid,
			HarvestReady: e.Classification.HarvestReady,
			HiddenBits:   e.Classification.HiddenBits,
			AvgGreen:     e.Classification.Features.AvgGreen,
			Rows:         e.Classification.Features.RowCount,
			Pixels:       e.Classification.Features.PixelCount,
		},
	}
	if e.Distance.Valid {
		ej.Distance.Class = e.Distance.Class.String()
	}
	if e.Distance.Valid && snap.Config.ClockHz > 0 {
		ej.Distance.Centimeters = math.Round(e.Distance.Centimeters(snap.Config.ClockHz)*10) / 10
	}
	for i, ch := range e.Channels {
		id := uint8(i)
		cj := ChannelJSON{
			ID:          id,
			Name:        logic.ChannelName(id),
			Samples:     ch.SampleCount,
			LastReading: ch.LastReading,
		}
		if ch.BaselineSet {
			b := ch.Baseline
			cj.Baseline = &b
		}
		ej.Channels = append(ej.Channels, cj)
	}
	return ej
}

func buildInner(snap Snapshot) StatusInner {
	mon := snap.Monitor
	mode := "UNKNOWN"
	if mon.Baselined {
		mode = mon.Mode.String()
	}

	return StatusInner{
		Alert:         stateOrUnknown(mon.Alert),
		Prediction:    stateOrUnknown(mon.Prediction),
		Mode:          mode,
		Ready:         mon.Baselined,
		Engine:        buildEngine(snap),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTT.Connected,
			Broker:    snap.Config.Broker,
			Pending:   snap.MQTT.Pending,
			Dropped:   snap.MQTT.Dropped,
		},
		Counts: CountsJSON{
			AlertOn:        mon.Counts.AlertOn,
			AlertOff:       mon.Counts.AlertOff,
			HarvestReady:   mon.Counts.HarvestReady,
			HarvestCleared: mon.Counts.HarvestCleared,
			ModeVision:     mon.Counts.ModeVision,
			ModeSensor:     mon.Counts.ModeSensor,
		},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			DebounceMs:      snap.Config.DebounceMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPPort:        snap.Config.HTTPPort,
			WSBroker:        snap.Config.WSBroker,
			Backend:         snap.Config.Backend,
			Scenario:        snap.Config.Scenario,
			SettleSteps:     snap.Config.SettleSteps,
			BaselineSamples: snap.Config.BaselineSamples,
			ClockHz:         snap.Config.ClockHz,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
