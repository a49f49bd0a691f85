package gpio

import (
	"errors"

	"github.com/sweeney/sensorcluster/internal/logic"
)

// FakeLine is a test double that returns scripted input levels.
type FakeLine struct {
	// Samples contains scripted levels to return.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeLine creates a FakeLine with the given samples.
func NewFakeLine(samples ...bool) *FakeLine {
	return &FakeLine{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeLine) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Set replaces the script with a single constant level.
func (f *FakeLine) Set(level bool) {
	f.Samples = []bool{level}
	f.index = 0
}

// Close marks the line as closed.
func (f *FakeLine) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the line to the beginning of samples.
func (f *FakeLine) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeSwitch records output levels.
type FakeSwitch struct {
	Level  bool
	Writes []bool
	Closed bool
}

// Set records the level.
func (f *FakeSwitch) Set(on bool) error {
	f.Level = on
	f.Writes = append(f.Writes, on)
	return nil
}

// FallingEdges counts high->low transitions in the recorded writes.
func (f *FakeSwitch) FallingEdges() int {
	n := 0
	prev := false
	for _, v := range f.Writes {
		if prev && !v {
			n++
		}
		prev = v
	}
	return n
}

// Close marks the switch as closed and low.
func (f *FakeSwitch) Close() error {
	f.Level = false
	f.Closed = true
	return nil
}

// FakePixel records colours.
type FakePixel struct {
	Color  logic.RGB
	Writes []logic.RGB
	Closed bool
}

// SetColor records the colour.
func (f *FakePixel) SetColor(c logic.RGB) error {
	f.Color = c
	f.Writes = append(f.Writes, c)
	return nil
}

// LitPhases counts off->colour transitions for the given colour.
func (f *FakePixel) LitPhases(c logic.RGB) int {
	n := 0
	prev := logic.Off
	for _, w := range f.Writes {
		if w == c && prev != c {
			n++
		}
		prev = w
	}
	return n
}

// Close marks the pixel as closed and off.
func (f *FakePixel) Close() error {
	f.Color = logic.Off
	f.Closed = true
	return nil
}
