//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/sensorcluster/internal/logic"
)

// RealLine reads a digital input from actual hardware.
type RealLine struct {
	line *gpiocdev.Line
}

// NewRealLine requests pin as an input with pull-down, so a disconnected
// detector reads as absent.
func NewRealLine(chip string, pin int) (*RealLine, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return nil, fmt.Errorf("request input pin %d: %w", pin, err)
	}
	return &RealLine{line: line}, nil
}

// Read returns true while the line is high.
func (r *RealLine) Read() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin: %w", err)
	}
	return v == 1, nil
}

// Close releases the line.
func (r *RealLine) Close() error {
	return r.line.Close()
}

// RealSwitch drives a digital output.
type RealSwitch struct {
	line *gpiocdev.Line
}

// NewRealSwitch requests pin as an output, initially low.
func NewRealSwitch(chip string, pin int) (*RealSwitch, error) {
	line, err := gpiocdev.RequestLine(chip, pin, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealSwitch{line: line}, nil
}

// Set drives the output high (true) or low.
func (s *RealSwitch) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := s.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// Close drives the output low, then returns the pin to an input with pull-down
// (matching Pi boot defaults) before releasing it.
func (s *RealSwitch) Close() error {
	var errs []error
	if err := s.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("drive low: %w", err))
	}
	if err := s.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure: %w", err))
	}
	if err := s.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}

// RealPixel drives a common-cathode RGB LED wired to three digital outputs.
// Each channel is on when its value is at least PixelThreshold.
type RealPixel struct {
	lines *gpiocdev.Lines
}

// NewRealPixel requests the red, green and blue pins as outputs, initially off.
func NewRealPixel(chip string, red, green, blue int) (*RealPixel, error) {
	lines, err := gpiocdev.RequestLines(chip, []int{red, green, blue}, gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		return nil, fmt.Errorf("request rgb pins %d/%d/%d: %w", red, green, blue, err)
	}
	return &RealPixel{lines: lines}, nil
}

// SetColor drives the three channel lines.
func (p *RealPixel) SetColor(c logic.RGB) error {
	if err := p.lines.SetValues(channelValues(c)); err != nil {
		return fmt.Errorf("set rgb pins: %w", err)
	}
	return nil
}

// Close turns the LED off and releases the lines.
func (p *RealPixel) Close() error {
	var errs []error
	if err := p.lines.SetValues([]int{0, 0, 0}); err != nil {
		errs = append(errs, fmt.Errorf("turn off: %w", err))
	}
	if err := p.lines.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
