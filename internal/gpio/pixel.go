package gpio

import "github.com/sweeney/sensorcluster/internal/logic"

// channelValues maps a colour to line values for the red, green and blue pins.
func channelValues(c logic.RGB) []int {
	vals := make([]int, 3)
	for i, ch := range []uint8{c.R, c.G, c.B} {
		if ch >= PixelThreshold {
			vals[i] = 1
		}
	}
	return vals
}
