package logic

import "time"

// Monitor debounces the status word and reports transitions of its alert,
// prediction, and mode fields.
type Monitor struct {
	debounceDuration time.Duration
	alert            ChannelState
	prediction       ChannelState
	mode             ChannelState
	baselined        bool
	last             StatusWord
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewMonitor creates a transition monitor with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewMonitor(debounceDuration time.Duration, startTime time.Time) *Monitor {
	return &Monitor{
		debounceDuration: debounceDuration,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes the status word of one step and returns any events that should
// be emitted. Words produced before the engine is ready are ignored, and no
// events are returned until every field has a baseline.
func (m *Monitor) Process(input MonitorInput) []Event {
	if !input.Word.Ready {
		return nil
	}
	m.last = input.Word

	alertT := m.processChannel(&m.alert, boolToState(input.Word.Alert), input.Time)
	predT := m.processChannel(&m.prediction, boolToState(input.Word.Prediction), input.Time)
	modeT := m.processChannel(&m.mode, boolToState(input.Word.Mode == ModeVision), input.Time)

	if !m.baselined {
		if m.alert.Baselined && m.prediction.Baselined && m.mode.Baselined {
			m.baselined = true
		}
		return nil
	}

	var events []Event
	// Order: mode first so consumers see the context of the alert that follows.
	if modeT != nil {
		events = append(events, m.newEvent(input.Time, modeEvent(*modeT)))
	}
	if alertT != nil {
		events = append(events, m.newEvent(input.Time, alertEvent(*alertT)))
	}
	if predT != nil {
		events = append(events, m.newEvent(input.Time, predictionEvent(*predT)))
	}

	for _, e := range events {
		switch e.Type {
		case EventAlertOn:
			m.eventCounts.AlertOn++
		case EventAlertOff:
			m.eventCounts.AlertOff++
		case EventHarvestReady:
			m.eventCounts.HarvestReady++
		case EventHarvestCleared:
			m.eventCounts.HarvestCleared++
		case EventModeVision:
			m.eventCounts.ModeVision++
		case EventModeSensor:
			m.eventCounts.ModeSensor++
		}
	}

	return events
}

func (m *Monitor) newEvent(t time.Time, typ EventType) Event {
	return Event{
		Timestamp:  t,
		Type:       typ,
		Alert:      m.alert.Stable,
		Prediction: m.prediction.Stable,
		Mode:       stateToMode(m.mode.Stable),
		Word:       m.last,
	}
}

// processChannel handles debounce logic for a single field.
// Returns the new stable state if a transition occurred, nil otherwise.
func (m *Monitor) processChannel(ch *ChannelState, newState State, now time.Time) *State {
	// First time seeing this field
	if !ch.Baselined {
		if ch.Pending == "" {
			ch.Pending = newState
			ch.PendingSince = now
			return nil
		}

		if ch.Pending != newState {
			// Changed during baseline, restart
			ch.Pending = newState
			ch.PendingSince = now
			return nil
		}

		if now.Sub(ch.PendingSince) >= m.debounceDuration {
			ch.Stable = newState
			ch.Baselined = true
			ch.Pending = ""
		}
		return nil
	}

	if newState == ch.Stable {
		ch.Pending = ""
		return nil
	}

	if ch.Pending != newState {
		ch.Pending = newState
		ch.PendingSince = now
		return nil
	}

	if now.Sub(ch.PendingSince) >= m.debounceDuration {
		ch.Stable = newState
		ch.Pending = ""
		s := newState
		return &s
	}

	return nil
}

func boolToState(b bool) State {
	if b {
		return StateOn
	}
	return StateOff
}

func stateToMode(s State) Mode {
	if s == StateOn {
		return ModeVision
	}
	return ModeSensor
}

func alertEvent(to State) EventType {
	if to == StateOn {
		return EventAlertOn
	}
	return EventAlertOff
}

func predictionEvent(to State) EventType {
	if to == StateOn {
		return EventHarvestReady
	}
	return EventHarvestCleared
}

func modeEvent(to State) EventType {
	if to == StateOn {
		return EventModeVision
	}
	return EventModeSensor
}

// IsBaselined returns whether the monitor has established a baseline.
func (m *Monitor) IsBaselined() bool {
	return m.baselined
}

// CurrentState returns the current stable alert and prediction states and the
// stable mode.
func (m *Monitor) CurrentState() (alert State, prediction State, mode Mode) {
	return m.alert.Stable, m.prediction.Stable, stateToMode(m.mode.Stable)
}

// EventCountsSnapshot returns the event counts since startup.
func (m *Monitor) EventCountsSnapshot() EventCounts {
	return m.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (m *Monitor) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !m.baselined {
		return nil
	}

	if now.Sub(m.lastHeartbeat) < interval {
		return nil
	}

	m.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(m.startTime),
		Counts:    m.eventCounts,
	}
}
