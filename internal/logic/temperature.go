package logic

import (
	"strconv"

	"github.com/sweeney/sensorcluster/internal/clock"
)

// TemperatureState holds the last published reading.
type TemperatureState struct {
	LastValid  float64
	Valid      bool // false until the first good reading
	LastPollAt clock.Timestamp
}

// TemperatureSampler polls a Thermometer and publishes changed readings.
type TemperatureSampler struct {
	state TemperatureState
	probe Thermometer
	pub   Publisher
	topic string

	// OnChange, if set, is called with every newly stored reading.
	OnChange func(celsius float64)
}

// NewTemperatureSampler creates a sampler publishing to topic.
func NewTemperatureSampler(probe Thermometer, pub Publisher, topic string) *TemperatureSampler {
	return &TemperatureSampler{probe: probe, pub: pub, topic: topic}
}

// Tick polls the probe once every TemperaturePollInterval.
func (s *TemperatureSampler) Tick(now clock.Timestamp) {
	if !clock.Elapsed(now, s.state.LastPollAt, TemperaturePollInterval) {
		return
	}
	s.state.LastPollAt = now

	raw, err := s.probe.ReadCelsius()
	if err != nil || raw == DisconnectedC {
		return
	}
	celsius := raw - TemperatureOffset
	if celsius == DisconnectedC {
		return
	}
	if s.state.Valid && celsius == s.state.LastValid {
		return
	}

	s.state.LastValid = celsius
	s.state.Valid = true
	_ = s.pub.Publish(s.topic, []byte(FormatCelsius(celsius)), true)
	if s.OnChange != nil {
		s.OnChange(celsius)
	}
}

// State returns a copy of the current state.
func (s *TemperatureSampler) State() TemperatureState {
	return s.state
}

// FormatCelsius renders a reading with two fraction digits.
func FormatCelsius(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64)
}
