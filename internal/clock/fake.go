package clock

// Fake is a manually advanced clock for tests.
type Fake struct {
	T Timestamp
}

// NewFake creates a Fake starting at the given timestamp.
func NewFake(start Timestamp) *Fake {
	return &Fake{T: start}
}

// Now returns the current fake timestamp.
func (f *Fake) Now() Timestamp {
	return f.T
}

// Advance moves the clock forward by ms, wrapping like the real counter.
func (f *Fake) Advance(ms uint32) {
	f.T += Timestamp(ms)
}
