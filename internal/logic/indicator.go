package logic

import "github.com/sweeney/sensorcluster/internal/clock"

// IndicatorState is the status LED's colour and blink program.
type IndicatorState struct {
	Color RGB
	// On and Off are the phase durations in ms. Both zero selects solid mode.
	On, Off uint32
	// Count is the number of on/off cycles to run; 0 blinks forever.
	Count        uint32
	CyclesDone   uint32
	Blinking     bool
	Lit          bool
	LastToggleAt clock.Timestamp
}

// IndicatorPatch is a partial update. Nil fields keep their current value.
type IndicatorPatch struct {
	Color *RGB
	On    *uint32
	Off   *uint32
	Count *uint32
}

// IndicatorSequencer drives a Pixel either solid or through a counted blink program.
type IndicatorSequencer struct {
	state IndicatorState
	out   Pixel
}

// NewIndicatorSequencer creates an idle, unlit sequencer driving out.
func NewIndicatorSequencer(out Pixel) *IndicatorSequencer {
	return &IndicatorSequencer{out: out}
}

// Configure merges p into the current program and restarts it.
func (s *IndicatorSequencer) Configure(now clock.Timestamp, p IndicatorPatch) {
	if p.Color != nil {
		s.state.Color = *p.Color
	}
	if p.On != nil {
		s.state.On = *p.On
	}
	if p.Off != nil {
		s.state.Off = *p.Off
	}
	if p.Count != nil {
		s.state.Count = *p.Count
	}

	if s.state.On == 0 && s.state.Off == 0 {
		s.state.Blinking = false
		s.state.Lit = true
		_ = s.out.SetColor(s.state.Color)
		return
	}

	// Blink programs start in the off phase.
	s.state.Blinking = true
	s.state.CyclesDone = 0
	s.state.Lit = false
	s.state.LastToggleAt = now
	_ = s.out.SetColor(Off)
}

// Tick advances the blink program by at most one phase change.
func (s *IndicatorSequencer) Tick(now clock.Timestamp) {
	if !s.state.Blinking {
		return
	}

	if s.state.Count > 0 && s.state.CyclesDone >= s.state.Count {
		s.state.Blinking = false
		s.state.Lit = false
		_ = s.out.SetColor(Off)
		return
	}

	interval := s.state.Off
	if s.state.Lit {
		interval = s.state.On
	}
	if !clock.Elapsed(now, s.state.LastToggleAt, interval) {
		return
	}

	s.state.Lit = !s.state.Lit
	if s.state.Lit {
		_ = s.out.SetColor(s.state.Color)
	} else {
		_ = s.out.SetColor(Off)
		// A cycle is a full on+off pair, so only the lit->unlit edge counts.
		if s.state.Count > 0 {
			s.state.CyclesDone++
		}
	}
	s.state.LastToggleAt = now
}

// State returns a copy of the current state.
func (s *IndicatorSequencer) State() IndicatorState {
	return s.state
}
