// Package scheduler runs the node's single cooperative control loop.
//
// Each Step reads the clock once and then, in a fixed order: manages the
// broker connection, routes buffered inbound commands, services registered
// duties, advances the four timer-driven components and publishes the
// heartbeat. No step blocks; everything runs on the caller's goroutine.
package scheduler

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/command"
	"github.com/sweeney/sensorcluster/internal/history"
	"github.com/sweeney/sensorcluster/internal/logic"
	"github.com/sweeney/sensorcluster/internal/metrics"
	"github.com/sweeney/sensorcluster/internal/mqtt"
	"github.com/sweeney/sensorcluster/internal/status"
)

const (
	// HeartbeatInterval is the period of the data-topic heartbeat while connected.
	HeartbeatInterval uint32 = 10000

	// DefaultReconnectInterval is the wait between connection attempts.
	DefaultReconnectInterval = 5 * time.Second
)

// Duty is a periodic task serviced once per step, between command routing
// and the component ticks.
type Duty interface {
	Service(now clock.Timestamp)
}

// DutyFunc adapts a function to Duty.
type DutyFunc func(now clock.Timestamp)

// Service calls f(now).
func (f DutyFunc) Service(now clock.Timestamp) { f(now) }

// Hardware holds the node's actuators and sensors.
type Hardware struct {
	Alert       logic.Switch
	Indicator   logic.Pixel
	Thermometer logic.Thermometer
	Presence    logic.Line
}

// Node owns the four timer-driven components.
type Node struct {
	Alert       *logic.AlertSequencer
	Indicator   *logic.IndicatorSequencer
	Temperature *logic.TemperatureSampler
	Presence    *logic.PresenceMonitor
}

// NewNode builds the components. Sensor readings are published through pub.
func NewNode(hw Hardware, pub logic.Publisher, topics mqtt.Topics) *Node {
	return &Node{
		Alert:       logic.NewAlertSequencer(hw.Alert),
		Indicator:   logic.NewIndicatorSequencer(hw.Indicator),
		Temperature: logic.NewTemperatureSampler(hw.Thermometer, pub, topics.Temperature),
		Presence:    logic.NewPresenceMonitor(hw.Presence, pub, topics.Presence),
	}
}

// tickers returns the components in dispatch order.
func (n *Node) tickers() []logic.Ticker {
	return []logic.Ticker{n.Alert, n.Indicator, n.Temperature, n.Presence}
}

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	Device string

	// IP reports the address placed in heartbeats.
	IP func() string

	// Reconnect yields the wait between connection attempts. Defaults to a
	// constant DefaultReconnectInterval. A policy that returns backoff.Stop
	// keeps its previous interval: retries never end.
	Reconnect backoff.BackOff

	Metrics *metrics.Metrics
	History history.Writer
	Log     *zap.SugaredLogger
}

// Scheduler drives one node.
type Scheduler struct {
	clock     clock.Clock
	transport mqtt.Transport
	topics    mqtt.Topics
	hw        Hardware
	node      *Node
	router    *command.Router
	duties    []Duty

	device    string
	ip        func() string
	reconnect backoff.BackOff
	metrics   *metrics.Metrics
	history   history.Writer
	log       *zap.SugaredLogger

	// connection management
	wasConnected      bool
	attempted         bool
	lastAttemptAt     clock.Timestamp
	reconnectInterval uint32

	started         bool
	lastStepAt      clock.Timestamp
	uptimeMs        uint64
	lastHeartbeatAt clock.Timestamp

	commands status.CommandCounts
}

// New creates a Scheduler for hw talking through transport.
func New(clk clock.Clock, transport mqtt.Transport, topics mqtt.Topics, hw Hardware, opts Options) *Scheduler {
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.History == nil {
		opts.History = history.Nop{}
	}
	if opts.Reconnect == nil {
		opts.Reconnect = backoff.NewConstantBackOff(DefaultReconnectInterval)
	}
	if opts.IP == nil {
		opts.IP = func() string { return "" }
	}

	s := &Scheduler{
		clock:     clk,
		transport: transport,
		topics:    topics,
		hw:        hw,
		node:      NewNode(hw, transport, topics),
		device:    opts.Device,
		ip:        opts.IP,
		reconnect: opts.Reconnect,
		metrics:   opts.Metrics,
		history:   opts.History,
		log:       opts.Log,
	}
	s.reconnectInterval = s.nextReconnectInterval(uint32(DefaultReconnectInterval.Milliseconds()))
	s.router = command.NewRouter(command.Topics{
		Alert:     topics.Alert,
		Indicator: topics.Indicator,
	}, s.node.Alert, s.node.Indicator)

	s.node.Temperature.OnChange = s.temperatureChanged
	s.node.Presence.OnChange = s.presenceChanged

	if s.metrics != nil {
		s.AddDuty(DutyFunc(s.updateGauges))
	}
	return s
}

// Node returns the components driven by the scheduler.
func (s *Scheduler) Node() *Node {
	return s.node
}

// AddDuty registers d to run once per step, after previously added duties.
func (s *Scheduler) AddDuty(d Duty) {
	s.duties = append(s.duties, d)
}

// Init drives the outputs to their idle state: alert low, LED off.
func (s *Scheduler) Init() {
	_ = s.hw.Alert.Set(false)
	_ = s.hw.Indicator.SetColor(logic.Off)
}

// Step performs one iteration of the control loop.
func (s *Scheduler) Step() {
	now := s.clock.Now()
	s.advanceUptime(now)

	s.manageConnection(now)
	s.routeCommands(now)
	for _, d := range s.duties {
		d.Service(now)
	}
	for _, t := range s.node.tickers() {
		t.Tick(now)
	}
	s.heartbeat(now)

	if s.metrics != nil {
		s.metrics.LoopIterations.Inc()
	}
}

// Run calls Step on every tick until ctx is cancelled, then shuts down.
func (s *Scheduler) Run(ctx context.Context, tick <-chan time.Time) error {
	s.log.Infow("scheduler started", "device", s.device, "reconnect_ms", s.reconnectInterval)
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("shutting down", "reason", context.Cause(ctx))
			return s.Shutdown()
		case <-tick:
			s.Step()
		}
	}
}

// Shutdown announces the node offline, turns the outputs off and closes the transport.
func (s *Scheduler) Shutdown() error {
	if s.transport.Connected() {
		if err := s.transport.Publish(s.topics.Status, []byte(mqtt.StatusOffline), true); err != nil {
			s.log.Warnw("failed to publish offline status", "error", err)
		}
	}
	s.Init()
	if err := s.history.Close(); err != nil {
		s.log.Warnw("history close failed", "error", err)
	}
	return s.transport.Close()
}

// Uptime returns the accumulated run time in whole seconds.
func (s *Scheduler) Uptime() uint64 {
	return s.uptimeMs / 1000
}

// Commands returns the routed command tallies.
func (s *Scheduler) Commands() status.CommandCounts {
	return s.commands
}

// Connected reports the last observed connection state.
func (s *Scheduler) Connected() bool {
	return s.wasConnected
}

// NodeState collects a status snapshot of the node.
func (s *Scheduler) NodeState() status.NodeState {
	return status.NodeState{
		Alert:         s.node.Alert.State(),
		Indicator:     s.node.Indicator.State(),
		Temperature:   s.node.Temperature.State(),
		Presence:      s.node.Presence.State(),
		Connected:     s.wasConnected,
		UptimeSeconds: s.Uptime(),
		Commands:      s.commands,
	}
}

// TrackerDuty returns a duty that copies the node state into tr every step.
func (s *Scheduler) TrackerDuty(tr *status.Tracker) Duty {
	return DutyFunc(func(clock.Timestamp) {
		tr.Update(s.NodeState())
	})
}

// advanceUptime adds the time since the previous step. The uint64 total
// keeps counting after the 32-bit clock wraps.
func (s *Scheduler) advanceUptime(now clock.Timestamp) {
	if !s.started {
		s.started = true
		s.lastHeartbeatAt = now
	} else {
		s.uptimeMs += uint64(now.Since(s.lastStepAt))
	}
	s.lastStepAt = now
}

func (s *Scheduler) heartbeat(now clock.Timestamp) {
	if !s.wasConnected || !clock.Elapsed(now, s.lastHeartbeatAt, HeartbeatInterval) {
		return
	}
	s.lastHeartbeatAt = now

	payload, err := mqtt.FormatHeartbeat(mqtt.Heartbeat{
		Device: s.device,
		IP:     s.ip(),
		Uptime: s.Uptime(),
	})
	if err != nil {
		s.log.Warnw("heartbeat encode failed", "error", err)
		return
	}
	if err := s.transport.Publish(s.topics.Data, payload, false); err != nil {
		s.log.Debugw("heartbeat publish failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.Heartbeats.Inc()
	}
}

func (s *Scheduler) temperatureChanged(celsius float64) {
	s.log.Infow("temperature changed", "celsius", celsius)
	s.history.WriteTemperature(celsius)
	if s.metrics != nil {
		s.metrics.TemperatureCelsius.Set(celsius)
	}
}

func (s *Scheduler) presenceChanged(present bool) {
	s.log.Infow("presence changed", "present", present)
	s.history.WritePresence(present)
	if s.metrics != nil {
		metrics.SetBool(s.metrics.Presence, present)
	}
}

func (s *Scheduler) updateGauges(clock.Timestamp) {
	metrics.SetBool(s.metrics.Connected, s.wasConnected)
	metrics.SetBool(s.metrics.AlertActive, s.node.Alert.State().Active)
	metrics.SetBool(s.metrics.IndicatorBlinking, s.node.Indicator.State().Blinking)
	s.metrics.UptimeSeconds.Set(float64(s.Uptime()))
}
