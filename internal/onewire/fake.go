package onewire

// FakeProbe is a test double that returns scripted readings.
type FakeProbe struct {
	// Readings are returned in order; the last one repeats.
	Readings []float64
	index    int

	// ReadError, if set, will be returned by ReadCelsius()
	ReadError error

	Reads int
}

// NewFakeProbe creates a FakeProbe with the given readings.
func NewFakeProbe(readings ...float64) *FakeProbe {
	return &FakeProbe{Readings: readings}
}

// ReadCelsius returns the next scripted reading.
func (f *FakeProbe) ReadCelsius() (float64, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Readings) == 0 {
		return 0, ErrNoProbe
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Set replaces the script with a single constant reading.
func (f *FakeProbe) Set(celsius float64) {
	f.Readings = []float64{celsius}
	f.index = 0
}
