package scheduler

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/gpio"
	"github.com/sweeney/sensorcluster/internal/logic"
	"github.com/sweeney/sensorcluster/internal/metrics"
	"github.com/sweeney/sensorcluster/internal/mqtt"
	"github.com/sweeney/sensorcluster/internal/onewire"
	"github.com/sweeney/sensorcluster/internal/status"
)

const start clock.Timestamp = 1000

var red = logic.RGB{R: 255}

type recordingHistory struct {
	temperatures []float64
	presence     []bool
	closed       bool
}

func (h *recordingHistory) WriteTemperature(c float64) { h.temperatures = append(h.temperatures, c) }
func (h *recordingHistory) WritePresence(p bool)       { h.presence = append(h.presence, p) }
func (h *recordingHistory) Close() error {
	h.closed = true
	return nil
}

type rig struct {
	clk       *clock.Fake
	transport *mqtt.FakeTransport
	alert     *gpio.FakeSwitch
	led       *gpio.FakePixel
	probe     *onewire.FakeProbe
	radar     *gpio.FakeLine
	history   *recordingHistory
	metrics   *metrics.Metrics
	topics    mqtt.Topics
	s         *Scheduler
}

func newRig(t *testing.T, mutate ...func(*Options)) *rig {
	t.Helper()
	r := &rig{
		clk:       clock.NewFake(start),
		transport: mqtt.NewFakeTransport(),
		alert:     &gpio.FakeSwitch{},
		led:       &gpio.FakePixel{},
		probe:     onewire.NewFakeProbe(logic.DisconnectedC),
		radar:     gpio.NewFakeLine(false),
		history:   &recordingHistory{},
		metrics:   metrics.New(prometheus.NewRegistry()),
		topics:    mqtt.NewTopics("sensorcluster"),
	}
	opts := Options{
		Device:  "SensorCluster",
		IP:      func() string { return "10.0.0.5" },
		Metrics: r.metrics,
		History: r.history,
	}
	for _, m := range mutate {
		m(&opts)
	}
	hw := Hardware{Alert: r.alert, Indicator: r.led, Thermometer: r.probe, Presence: r.radar}
	r.s = New(r.clk, r.transport, r.topics, hw, opts)
	return r
}

// run advances the clock by step and calls Step until ms have passed.
func (r *rig) run(ms, step uint32) {
	for elapsed := uint32(0); elapsed < ms; elapsed += step {
		r.clk.Advance(step)
		r.s.Step()
	}
}

func TestConnectOnFirstStep(t *testing.T) {
	r := newRig(t)

	r.s.Step()

	if r.transport.ConnectCalls != 1 {
		t.Fatalf("ConnectCalls: got %d, want 1", r.transport.ConnectCalls)
	}
	subs := r.transport.Subscriptions
	if len(subs) != 2 || subs[0] != "sensorcluster/beeper" || subs[1] != "sensorcluster/led" {
		t.Errorf("Subscriptions: got %v", subs)
	}
	if got := r.transport.PublishedOn(r.topics.Status); len(got) != 1 || got[0] != mqtt.StatusOnline {
		t.Errorf("status publishes: got %v, want [online]", got)
	}
	if !r.transport.Published[0].Retained {
		t.Error("online status should be retained")
	}
	if !r.s.Connected() {
		t.Error("expected Connected=true")
	}
}

func TestConnectAfterReportedFailure(t *testing.T) {
	r := newRig(t)
	r.transport.ConnectError = fmt.Errorf("%w: connection refused", mqtt.ErrConnectionFailed)

	r.s.Step()

	if !r.s.Connected() {
		t.Fatal("attempt started alongside a reported failure should bring the node up")
	}
	if got := r.transport.PublishedOn(r.topics.Status); len(got) != 1 || got[0] != mqtt.StatusOnline {
		t.Errorf("status publishes: got %v, want [online]", got)
	}
}

func TestNoDuplicateOnlineWhileConnected(t *testing.T) {
	r := newRig(t)

	r.s.Step()
	r.run(30000, 100)

	if r.transport.ConnectCalls != 1 {
		t.Errorf("ConnectCalls: got %d, want 1", r.transport.ConnectCalls)
	}
	if got := r.transport.PublishedOn(r.topics.Status); len(got) != 1 {
		t.Errorf("status publishes: got %v, want one", got)
	}
}

func TestReconnectInterval(t *testing.T) {
	r := newRig(t)
	r.transport.ConnectSucceeds = false

	r.s.Step()
	if r.transport.ConnectCalls != 1 {
		t.Fatalf("ConnectCalls after first step: got %d, want 1", r.transport.ConnectCalls)
	}

	r.run(4999, 1)
	if r.transport.ConnectCalls != 1 {
		t.Fatalf("ConnectCalls before 5000ms: got %d, want 1", r.transport.ConnectCalls)
	}

	r.run(1, 1)
	if r.transport.ConnectCalls != 2 {
		t.Fatalf("ConnectCalls at 5000ms: got %d, want 2", r.transport.ConnectCalls)
	}

	r.run(4999, 1)
	if r.transport.ConnectCalls != 2 {
		t.Errorf("ConnectCalls before 10000ms: got %d, want 2", r.transport.ConnectCalls)
	}
	if got := testutil.ToFloat64(r.metrics.ReconnectAttempts); got != 2 {
		t.Errorf("reconnect metric: got %v, want 2", got)
	}
}

func TestReconnectAcrossClockWrap(t *testing.T) {
	r := newRig(t)
	r.clk.T = clock.Timestamp(math.MaxUint32 - 2000)
	r.transport.ConnectSucceeds = false

	r.s.Step()
	r.run(4900, 100)
	if r.transport.ConnectCalls != 1 {
		t.Fatalf("ConnectCalls before interval: got %d, want 1", r.transport.ConnectCalls)
	}
	r.run(100, 100)
	if r.transport.ConnectCalls != 2 {
		t.Errorf("ConnectCalls after wrap: got %d, want 2", r.transport.ConnectCalls)
	}
}

func TestResubscribeAfterDrop(t *testing.T) {
	r := newRig(t)

	r.s.Step()
	r.run(6000, 100)
	r.transport.Drop()
	r.run(100, 100)

	if r.transport.ConnectCalls != 2 {
		t.Fatalf("ConnectCalls: got %d, want 2", r.transport.ConnectCalls)
	}
	if len(r.transport.Subscriptions) != 4 {
		t.Errorf("Subscriptions: got %v, want alert+indicator twice", r.transport.Subscriptions)
	}
	if got := r.transport.PublishedOn(r.topics.Status); len(got) != 2 {
		t.Errorf("status publishes: got %v, want two onlines", got)
	}
}

func TestCustomReconnectPolicy(t *testing.T) {
	r := newRig(t, func(o *Options) {
		o.Reconnect = backoff.NewConstantBackOff(time.Second)
	})
	r.transport.ConnectSucceeds = false

	r.s.Step()
	r.run(1000, 100)
	if r.transport.ConnectCalls != 2 {
		t.Errorf("ConnectCalls: got %d, want 2", r.transport.ConnectCalls)
	}
}

func TestStoppedPolicyKeepsRetrying(t *testing.T) {
	r := newRig(t, func(o *Options) {
		o.Reconnect = &backoff.StopBackOff{}
	})
	r.transport.ConnectSucceeds = false

	r.s.Step()
	r.run(15000, 100)
	if r.transport.ConnectCalls != 4 {
		t.Errorf("ConnectCalls: got %d, want 4", r.transport.ConnectCalls)
	}
}

func TestAlertCommandPulses(t *testing.T) {
	r := newRig(t)
	r.transport.Deliver(r.topics.Alert, "5")

	r.s.Step()
	r.run(3000, 10)

	if got := r.alert.FallingEdges(); got != 5 {
		t.Errorf("pulses: got %d, want 5", got)
	}
	if r.alert.Level {
		t.Error("alert output should end low")
	}
	if r.s.Node().Alert.State().Active {
		t.Error("alert should be inactive")
	}
}

func TestCommandAppliedBeforeTicks(t *testing.T) {
	r := newRig(t)
	r.s.Step()
	r.clk.Advance(10)

	r.transport.Deliver(r.topics.Alert, "1")
	r.s.Step()

	// The same step routed the command and ran the first toggle.
	if !r.alert.Level {
		t.Error("expected alert high after the routing step")
	}
}

func TestIndicatorRedTwoCycles(t *testing.T) {
	r := newRig(t)
	r.transport.Deliver(r.topics.Indicator, `{"color":[255,0,0],"on":500,"off":500,"count":2}`)

	r.s.Step()
	r.run(3000, 10)

	if got := r.led.LitPhases(red); got != 2 {
		t.Errorf("lit phases: got %d, want 2", got)
	}
	if r.led.Color != logic.Off {
		t.Errorf("LED should end off, got %+v", r.led.Color)
	}
	st := r.s.Node().Indicator.State()
	if st.Blinking || st.CyclesDone != 2 {
		t.Errorf("indicator state: got %+v", st)
	}
}

func TestMalformedIndicatorChangesNothing(t *testing.T) {
	r := newRig(t)
	r.transport.Deliver(r.topics.Indicator, `{"color":[0,255,0]}`)
	r.s.Step()
	before := r.s.Node().Indicator.State()
	writes := len(r.led.Writes)

	r.transport.Deliver(r.topics.Indicator, `{"color":[255,0`)
	r.run(10, 10)

	if r.s.Node().Indicator.State() != before {
		t.Errorf("state changed: got %+v, want %+v", r.s.Node().Indicator.State(), before)
	}
	if len(r.led.Writes) != writes {
		t.Error("LED written after malformed command")
	}
	if got := r.s.Commands(); got.Applied != 1 || got.Rejected != 1 {
		t.Errorf("Commands: got %+v", got)
	}
	if got := testutil.ToFloat64(r.metrics.Commands.WithLabelValues("indicator", metrics.ResultMalformed)); got != 1 {
		t.Errorf("malformed metric: got %v, want 1", got)
	}
}

func TestOutOfRangeAlertCounted(t *testing.T) {
	r := newRig(t)
	r.transport.Deliver(r.topics.Alert, "21")
	r.s.Step()

	if r.s.Node().Alert.State().Active {
		t.Error("out-of-range alert started")
	}
	if got := testutil.ToFloat64(r.metrics.Commands.WithLabelValues("alert", metrics.ResultRange)); got != 1 {
		t.Errorf("out_of_range metric: got %v, want 1", got)
	}
}

func TestHeartbeat(t *testing.T) {
	r := newRig(t)

	r.s.Step()
	r.run(9900, 100)
	if got := r.transport.PublishedOn(r.topics.Data); len(got) != 0 {
		t.Fatalf("heartbeat too early: %v", got)
	}

	r.run(100, 100)
	got := r.transport.PublishedOn(r.topics.Data)
	if len(got) != 1 {
		t.Fatalf("heartbeats: got %d, want 1", len(got))
	}
	want := `{"device":"SensorCluster","ip":"10.0.0.5","uptime":10}`
	if got[0] != want {
		t.Errorf("payload: got %s, want %s", got[0], want)
	}
	for _, p := range r.transport.Published {
		if p.Topic == r.topics.Data && p.Retained {
			t.Error("heartbeat must not be retained")
		}
	}
	if got := testutil.ToFloat64(r.metrics.Heartbeats); got != 1 {
		t.Errorf("heartbeat metric: got %v, want 1", got)
	}
}

func TestNoHeartbeatWhileDisconnected(t *testing.T) {
	r := newRig(t)
	r.transport.ConnectSucceeds = false

	r.s.Step()
	r.run(20000, 100)

	if got := testutil.ToFloat64(r.metrics.Heartbeats); got != 0 {
		t.Errorf("heartbeats: got %v, want 0", got)
	}
}

func TestTemperaturePublishedOnChange(t *testing.T) {
	r := newRig(t)
	r.probe.Set(22.5)

	r.s.Step()
	r.run(29000, 100) // polls at 15000 and 30000

	got := r.transport.PublishedOn(r.topics.Temperature)
	if len(got) != 1 || got[0] != "22.00" {
		t.Fatalf("temperature publishes: got %v, want [22.00]", got)
	}

	r.probe.Set(23.5)
	r.run(15000, 100)

	got = r.transport.PublishedOn(r.topics.Temperature)
	if len(got) != 2 || got[1] != "23.00" {
		t.Errorf("temperature publishes: got %v, want [22.00 23.00]", got)
	}
	if len(r.history.temperatures) != 2 {
		t.Errorf("history: got %v", r.history.temperatures)
	}
	if got := testutil.ToFloat64(r.metrics.TemperatureCelsius); got != 23 {
		t.Errorf("temperature gauge: got %v, want 23", got)
	}
}

// slowThermometer takes as long as a 12-bit DS18B20 conversion.
type slowThermometer struct{ celsius float64 }

func (s slowThermometer) ReadCelsius() (float64, error) {
	time.Sleep(750 * time.Millisecond)
	return s.celsius, nil
}

func TestStepDoesNotWaitForTemperatureConversion(t *testing.T) {
	r := newRig(t)
	cached := onewire.NewCached(slowThermometer{celsius: 22.5}, time.Hour, zap.NewNop().Sugar())
	cached.Start(context.Background())
	defer cached.Close()
	hw := Hardware{Alert: r.alert, Indicator: r.led, Thermometer: cached, Presence: r.radar}
	r.s = New(r.clk, r.transport, r.topics, hw, Options{Device: "SensorCluster"})

	r.s.Step()
	r.clk.Advance(14000)
	begin := time.Now()
	r.s.Step()
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Fatalf("Step took %v during a temperature conversion", elapsed)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := cached.ReadCelsius(); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cached reading never arrived")
		}
		time.Sleep(10 * time.Millisecond)
	}

	r.clk.Advance(15000)
	r.s.Step()
	if got := r.transport.PublishedOn(r.topics.Temperature); len(got) != 1 || got[0] != "22.00" {
		t.Errorf("temperature publishes: got %v, want [22.00]", got)
	}
}

func TestPresenceEdges(t *testing.T) {
	r := newRig(t)

	r.s.Step()
	r.radar.Set(true)
	r.run(1000, 10)
	r.radar.Set(false)
	r.run(1000, 10)

	got := r.transport.PublishedOn(r.topics.Presence)
	if len(got) != 2 || got[0] != "1" || got[1] != "0" {
		t.Errorf("presence publishes: got %v, want [1 0]", got)
	}
	if len(r.history.presence) != 2 {
		t.Errorf("history: got %v", r.history.presence)
	}
}

func TestSensorStateKeptWhileDisconnected(t *testing.T) {
	r := newRig(t)
	r.transport.ConnectSucceeds = false
	r.radar.Set(true)

	r.s.Step()
	r.run(200, 10)

	if !r.s.Node().Presence.State().Level {
		t.Error("presence should be recorded while disconnected")
	}
	if len(r.transport.Published) != 0 {
		t.Errorf("published while disconnected: %+v", r.transport.Published)
	}
}

func TestUptimeAcrossClockWrap(t *testing.T) {
	r := newRig(t)
	r.clk.T = clock.Timestamp(math.MaxUint32 - 500)

	r.s.Step()
	r.run(2000, 10)

	if got := r.s.Uptime(); got != 2 {
		t.Errorf("Uptime: got %d, want 2", got)
	}
}

func TestTrackerDuty(t *testing.T) {
	r := newRig(t)
	tr := status.NewTracker(time.Now(), status.Identity{}, status.Config{})
	r.s.AddDuty(r.s.TrackerDuty(tr))

	r.transport.Deliver(r.topics.Alert, "3")
	r.s.Step()

	snap := tr.Snapshot()
	if !snap.Connected {
		t.Error("tracker should see the connection")
	}
	if snap.Alert.TotalPulses != 3 {
		t.Errorf("tracker alert: got %+v", snap.Alert)
	}
	if snap.Commands.Applied != 1 {
		t.Errorf("tracker commands: got %+v", snap.Commands)
	}
}

func TestDutiesRunInOrderOncePerStep(t *testing.T) {
	r := newRig(t)
	var calls []string
	r.s.AddDuty(DutyFunc(func(clock.Timestamp) { calls = append(calls, "a") }))
	r.s.AddDuty(DutyFunc(func(clock.Timestamp) { calls = append(calls, "b") }))

	r.s.Step()
	r.s.Step()

	if len(calls) != 4 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("duty calls: got %v", calls)
	}
	if got := testutil.ToFloat64(r.metrics.LoopIterations); got != 2 {
		t.Errorf("loop iterations: got %v, want 2", got)
	}
}

func TestInitDrivesOutputsIdle(t *testing.T) {
	r := newRig(t)
	r.s.Init()

	if r.alert.Level || len(r.alert.Writes) != 1 {
		t.Errorf("alert writes: got %v", r.alert.Writes)
	}
	if r.led.Color != logic.Off || len(r.led.Writes) != 1 {
		t.Errorf("LED writes: got %v", r.led.Writes)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)
	done := make(chan error, 1)

	go func() { done <- r.s.Run(ctx, tick) }()

	tick <- time.Now()
	tick <- time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	statuses := r.transport.PublishedOn(r.topics.Status)
	if len(statuses) != 2 || statuses[1] != mqtt.StatusOffline {
		t.Errorf("status publishes: got %v, want [online offline]", statuses)
	}
	last := r.transport.Published[len(r.transport.Published)-1]
	if !last.Retained {
		t.Error("offline status should be retained")
	}
	if !r.transport.Closed {
		t.Error("transport not closed")
	}
	if r.alert.Level || r.led.Color != logic.Off {
		t.Error("outputs not turned off")
	}
	if !r.history.closed {
		t.Error("history not closed")
	}
}
