package logic

import "github.com/sweeney/sensorcluster/internal/clock"

// PresenceState holds the last observed detector level.
type PresenceState struct {
	Level      bool
	LastPollAt clock.Timestamp
}

// PresenceMonitor polls a Line and publishes level changes.
type PresenceMonitor struct {
	state PresenceState
	in    Line
	pub   Publisher
	topic string

	// OnChange, if set, is called with every new level.
	OnChange func(present bool)
}

// NewPresenceMonitor creates a monitor publishing to topic. The initial level is absent.
func NewPresenceMonitor(in Line, pub Publisher, topic string) *PresenceMonitor {
	return &PresenceMonitor{in: in, pub: pub, topic: topic}
}

// Tick reads the line once every PresencePollInterval.
func (m *PresenceMonitor) Tick(now clock.Timestamp) {
	if !clock.Elapsed(now, m.state.LastPollAt, PresencePollInterval) {
		return
	}
	m.state.LastPollAt = now

	level, err := m.in.Read()
	if err != nil || level == m.state.Level {
		return
	}

	m.state.Level = level
	_ = m.pub.Publish(m.topic, []byte(PresencePayload(level)), true)
	if m.OnChange != nil {
		m.OnChange(level)
	}
}

// State returns a copy of the current state.
func (m *PresenceMonitor) State() PresenceState {
	return m.state
}

// PresencePayload renders a level as "1" or "0".
func PresencePayload(present bool) string {
	if present {
		return "1"
	}
	return "0"
}
