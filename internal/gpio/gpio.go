// Package gpio provides the node's digital I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Default chip and pin definitions (BCM numbering).
const (
	DefaultChip = "gpiochip0"

	DefaultPresencePin = 23 // radar OUT, high = presence
	DefaultAlertPin    = 5  // buzzer
	DefaultRedPin      = 17
	DefaultGreenPin    = 27
	DefaultBluePin     = 22
)

// PixelThreshold is the channel value at or above which an RGB line is driven high.
const PixelThreshold = 128
