// Package clock provides the node's millisecond counter.
// Timestamps wrap after 2^32 ms (~49.7 days); compare them only through Since/Elapsed.
package clock

import "time"

// Timestamp is a millisecond counter value. It wraps to zero after math.MaxUint32.
type Timestamp uint32

// Since returns the milliseconds elapsed from last to t, correct across one wraparound.
func (t Timestamp) Since(last Timestamp) uint32 {
	return uint32(t - last)
}

// Elapsed reports whether at least interval ms have passed between last and now.
func Elapsed(now, last Timestamp, interval uint32) bool {
	return now.Since(last) >= interval
}

// Clock reads the current timestamp.
type Clock interface {
	Now() Timestamp
}

// Monotonic counts milliseconds since it was created, using the runtime's monotonic clock.
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a clock whose epoch is the moment of the call.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns the milliseconds since the epoch, truncated to 32 bits.
func (m *Monotonic) Now() Timestamp {
	return Timestamp(uint32(time.Since(m.start).Milliseconds()))
}
