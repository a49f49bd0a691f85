// Package logic contains the node's timer-driven state machines.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as a clock.Timestamp; every Tick performs at most one transition.
package logic

import "github.com/sweeney/sensorcluster/internal/clock"

// Timing and sensor constants.
const (
	AlertToggleInterval     uint32 = 200
	TemperaturePollInterval uint32 = 15000
	PresencePollInterval    uint32 = 100

	// MaxAlertPulses is the largest accepted alert pulse count.
	MaxAlertPulses = 20

	// TemperatureOffset is subtracted from every raw probe reading.
	TemperatureOffset = 0.5

	// DisconnectedC is the value a DS18B20 bus reports when no probe answers.
	DisconnectedC = -127.0
)

// Ticker is implemented by every time-driven component.
type Ticker interface {
	Tick(now clock.Timestamp)
}

// Switch drives a boolean actuator.
type Switch interface {
	Set(on bool) error
}

// Pixel drives a tri-channel colour actuator.
type Pixel interface {
	SetColor(c RGB) error
}

// Line reads a boolean input.
type Line interface {
	Read() (bool, error)
}

// Thermometer reads a temperature probe in degrees Celsius.
type Thermometer interface {
	ReadCelsius() (float64, error)
}

// Publisher sends a payload on a topic. Implementations must not block.
type Publisher interface {
	Publish(topic string, payload []byte, retained bool) error
}

// RGB is an 8-bit-per-channel colour.
type RGB struct {
	R, G, B uint8
}

// Off is the colour that turns the pixel off.
var Off = RGB{}
