//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/sensorcluster/internal/logic"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealLine is not available on non-Linux platforms.
type RealLine struct{}

// NewRealLine returns an error on non-Linux platforms.
func NewRealLine(chip string, pin int) (*RealLine, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealLine) Read() (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealLine) Close() error {
	return nil
}

// RealSwitch is not available on non-Linux platforms.
type RealSwitch struct{}

// NewRealSwitch returns an error on non-Linux platforms.
func NewRealSwitch(chip string, pin int) (*RealSwitch, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (s *RealSwitch) Set(on bool) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (s *RealSwitch) Close() error {
	return nil
}

// RealPixel is not available on non-Linux platforms.
type RealPixel struct{}

// NewRealPixel returns an error on non-Linux platforms.
func NewRealPixel(chip string, red, green, blue int) (*RealPixel, error) {
	return nil, errUnsupported
}

// SetColor is not implemented on non-Linux platforms.
func (p *RealPixel) SetColor(c logic.RGB) error {
	return errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (p *RealPixel) Close() error {
	return nil
}
