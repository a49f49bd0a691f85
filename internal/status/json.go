package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensorcluster/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Device        string          `json:"device"`
	IP            string          `json:"ip"`
	MAC           string          `json:"mac"`
	UptimeSeconds uint64          `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Alert         AlertJSON       `json:"alert"`
	Indicator     IndicatorJSON   `json:"indicator"`
	Temperature   TemperatureJSON `json:"temperature"`
	Presence      bool            `json:"presence"`
	Commands      CommandsJSON    `json:"commands"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id"`
	BaseTopic string `json:"base_topic"`
}

// AlertJSON is the JSON representation of the alert sequencer.
type AlertJSON struct {
	Active     bool `json:"active"`
	PulsesDone int  `json:"pulses_done"`
	Total      int  `json:"total_pulses"`
}

// IndicatorJSON is the JSON representation of the status LED.
type IndicatorJSON struct {
	Color      [3]uint8 `json:"color"`
	OnMs       uint32   `json:"on"`
	OffMs      uint32   `json:"off"`
	Count      uint32   `json:"count"`
	CyclesDone uint32   `json:"cycles_done"`
	Blinking   bool     `json:"blinking"`
	Lit        bool     `json:"lit"`
}

// TemperatureJSON is the JSON representation of the last valid reading.
// Celsius is null until the first valid reading.
type TemperatureJSON struct {
	Celsius *float64 `json:"celsius"`
}

// CommandsJSON is the JSON representation of command counts.
type CommandsJSON struct {
	Applied  int `json:"applied"`
	Rejected int `json:"rejected"`
}

// ConfigJSON is the JSON representation of node config.
type ConfigJSON struct {
	LoopMs      int64  `json:"loop_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	ReconnectMs int64  `json:"reconnect_ms"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Device:        snap.Identity.Device,
		IP:            snap.Identity.IP,
		MAC:           snap.Identity.MAC,
		UptimeSeconds: snap.UptimeSeconds,
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.Connected,
			Broker:    snap.Config.Broker,
			ClientID:  snap.Identity.ClientID,
			BaseTopic: snap.Config.BaseTopic,
		},
		Alert: AlertJSON{
			Active:     snap.Alert.Active,
			PulsesDone: snap.Alert.PulsesDone,
			Total:      snap.Alert.TotalPulses,
		},
		Indicator: indicatorJSON(snap.Indicator),
		Presence:  snap.Presence.Level,
		Commands: CommandsJSON{
			Applied:  snap.Commands.Applied,
			Rejected: snap.Commands.Rejected,
		},
		Config: ConfigJSON{
			LoopMs:      snap.Config.LoopMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			ReconnectMs: snap.Config.ReconnectMs,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.Temperature.Valid {
		c := snap.Temperature.LastValid
		inner.Temperature.Celsius = &c
	}
	return inner
}

func indicatorJSON(s logic.IndicatorState) IndicatorJSON {
	return IndicatorJSON{
		Color:      [3]uint8{s.Color.R, s.Color.G, s.Color.B},
		OnMs:       s.On,
		OffMs:      s.Off,
		Count:      s.Count,
		CyclesDone: s.CyclesDone,
		Blinking:   s.Blinking,
		Lit:        s.Lit,
	}
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}
