// Package status provides a thread-safe status tracker for the sensorcluster node.
// The scheduler copies node state in once per step; HTTP handlers read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/sensorcluster/internal/logic"
)

// Identity describes the node on the network.
type Identity struct {
	Device   string
	IP       string
	MAC      string
	ClientID string
}

// Config contains node configuration for display.
type Config struct {
	Broker      string
	BaseTopic   string
	HTTPAddr    string
	LoopMs      int64
	HeartbeatMs int64
	ReconnectMs int64
}

// CommandCounts tallies routed commands.
type CommandCounts struct {
	Applied  int
	Rejected int
}

// NodeState is the part of the snapshot refreshed by the scheduler.
type NodeState struct {
	Alert         logic.AlertState
	Indicator     logic.IndicatorState
	Temperature   logic.TemperatureState
	Presence      logic.PresenceState
	Connected     bool
	UptimeSeconds uint64
	Commands      CommandCounts
}

// Snapshot is a point-in-time view of node state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	NodeState
	Identity  Identity
	Config    Config
	StartTime time.Time
	Now       time.Time
}

// Uptime returns the scheduler uptime as a duration.
func (s Snapshot) Uptime() time.Duration {
	return time.Duration(s.UptimeSeconds) * time.Second
}

// Tracker holds mutable node state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, identity and config.
func NewTracker(startTime time.Time, id Identity, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Identity:  id,
			Config:    cfg,
		},
	}
}

// Update replaces the node state. Called from the scheduler on every step.
func (t *Tracker) Update(state NodeState) {
	t.mu.Lock()
	t.snap.NodeState = state
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the node state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
