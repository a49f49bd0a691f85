package logic

import "github.com/sweeney/sensorcluster/internal/clock"

// AlertState is the audible alert's pulse counter.
type AlertState struct {
	TotalPulses  int
	PulsesDone   int
	Active       bool
	High         bool // current output level
	LastToggleAt clock.Timestamp
}

// AlertSequencer emits a fixed number of 200ms-high/200ms-low pulses on a Switch.
type AlertSequencer struct {
	state AlertState
	out   Switch
}

// NewAlertSequencer creates an idle sequencer driving out.
func NewAlertSequencer(out Switch) *AlertSequencer {
	return &AlertSequencer{out: out}
}

// Start programs count pulses. Counts outside 1..MaxAlertPulses are ignored and
// Start returns false. A running sequence is restarted from zero.
func (a *AlertSequencer) Start(count int) bool {
	if count < 1 || count > MaxAlertPulses {
		return false
	}
	a.state.TotalPulses = count
	a.state.PulsesDone = 0
	a.state.Active = true
	return true
}

// Tick advances the pulse train by at most one toggle.
func (a *AlertSequencer) Tick(now clock.Timestamp) {
	if !a.state.Active {
		return
	}

	if a.state.PulsesDone >= a.state.TotalPulses {
		a.state.Active = false
		a.state.High = false
		_ = a.out.Set(false)
		return
	}

	if !clock.Elapsed(now, a.state.LastToggleAt, AlertToggleInterval) {
		return
	}

	a.state.High = !a.state.High
	_ = a.out.Set(a.state.High)
	if !a.state.High {
		a.state.PulsesDone++
	}
	a.state.LastToggleAt = now
}

// State returns a copy of the current state.
func (a *AlertSequencer) State() AlertState {
	return a.state
}
