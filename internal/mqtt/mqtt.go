// Package mqtt provides the node's message-bus transport with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status payloads.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

var (
	// ErrNotConnected is returned when publishing or subscribing without a connection.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectInProgress is returned by Connect while an earlier attempt is still pending.
	ErrConnectInProgress = errors.New("mqtt: connect already in progress")

	// ErrConnectionFailed wraps the error of a failed connect attempt.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps the error of a failed publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")
)

// Message is an inbound message waiting to be routed.
type Message struct {
	Topic   string
	Payload []byte
}

// Transport is the scheduler's view of the broker connection.
// No method blocks on network round-trips.
type Transport interface {
	// Connect starts a connection attempt. Completion is observed through Connected.
	Connect() error

	// Connected reports whether the session is up.
	Connected() bool

	// Subscribe registers interest in topics; their messages are buffered for Poll.
	Subscribe(topics ...string) error

	// Publish sends a payload at QoS 0.
	Publish(topic string, payload []byte, retained bool) error

	// Poll drains the inbound messages buffered so far, oldest first.
	Poll() []Message

	// Close disconnects from the broker.
	Close() error
}

// Topics holds the node's topic names, all derived from one base.
type Topics struct {
	Data        string
	Status      string
	Alert       string
	Indicator   string
	Temperature string
	Presence    string
}

// NewTopics derives the topic set from base (e.g. "sensorcluster").
func NewTopics(base string) Topics {
	base = strings.TrimRight(base, "/")
	return Topics{
		Data:        base + "/data",
		Status:      base + "/status",
		Alert:       base + "/beeper",
		Indicator:   base + "/led",
		Temperature: base + "/temperature",
		Presence:    base + "/radar/presence",
	}
}

// Heartbeat is the periodic status payload published on the data topic.
type Heartbeat struct {
	Device string `json:"device"`
	IP     string `json:"ip"`
	Uptime uint64 `json:"uptime"` // whole seconds
}

// FormatHeartbeat creates the JSON payload for a heartbeat.
func FormatHeartbeat(hb Heartbeat) ([]byte, error) {
	return json.Marshal(hb)
}
