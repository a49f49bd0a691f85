// Package command decodes inbound MQTT payloads into typed commands and
// dispatches them to the node's sequencers.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/sensorcluster/internal/logic"
)

var (
	// ErrUnknownTopic is returned for messages on topics that carry no command.
	ErrUnknownTopic = errors.New("command: unknown topic")

	// ErrMalformed is returned when a payload cannot be decoded.
	ErrMalformed = errors.New("command: malformed payload")

	// ErrOutOfRange is returned when a decoded value is outside its accepted range.
	ErrOutOfRange = errors.New("command: value out of range")
)

// Command kinds.
const (
	KindAlert     = "alert"
	KindIndicator = "indicator"
)

// Command is a decoded inbound instruction. It is either SetAlert or SetIndicator.
type Command interface {
	// Kind names the command for logs and metrics.
	Kind() string
}

// SetAlert starts an alert pulse train.
type SetAlert struct {
	Count int
}

// Kind implements Command.
func (SetAlert) Kind() string { return KindAlert }

// SetIndicator patches the indicator program.
type SetIndicator struct {
	Patch logic.IndicatorPatch
}

// Kind implements Command.
func (SetIndicator) Kind() string { return KindIndicator }

// Topics names the command topics to decode.
type Topics struct {
	Alert     string
	Indicator string
}

// indicatorDoc mirrors the indicator JSON document. Absent keys stay nil.
type indicatorDoc struct {
	Color *[]int  `json:"color"`
	On    *uint32 `json:"on"`
	Off   *uint32 `json:"off"`
	Count *uint32 `json:"count"`
}

// Parse decodes payload according to the topic it arrived on.
// It never returns a partially applied command: any error means nothing should change.
func Parse(topics Topics, topic string, payload []byte) (Command, error) {
	switch topic {
	case topics.Alert:
		return parseAlert(payload)
	case topics.Indicator:
		return parseIndicator(payload)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
}

func parseAlert(payload []byte) (Command, error) {
	count, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: alert count %q", ErrMalformed, payload)
	}
	if count < 1 || count > logic.MaxAlertPulses {
		return nil, fmt.Errorf("%w: alert count %d", ErrOutOfRange, count)
	}
	return SetAlert{Count: count}, nil
}

func parseIndicator(payload []byte) (Command, error) {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: indicator payload is not a JSON object", ErrMalformed)
	}

	var doc indicatorDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var patch logic.IndicatorPatch
	if doc.Color != nil {
		c, err := parseColor(*doc.Color)
		if err != nil {
			return nil, err
		}
		patch.Color = &c
	}
	patch.On = doc.On
	patch.Off = doc.Off
	patch.Count = doc.Count
	return SetIndicator{Patch: patch}, nil
}

// parseColor takes the first three channels of a colour array.
func parseColor(channels []int) (logic.RGB, error) {
	if len(channels) < 3 {
		return logic.RGB{}, fmt.Errorf("%w: color needs 3 channels, got %d", ErrMalformed, len(channels))
	}
	for _, v := range channels[:3] {
		if v < 0 || v > 255 {
			return logic.RGB{}, fmt.Errorf("%w: color channel %d", ErrMalformed, v)
		}
	}
	return logic.RGB{R: uint8(channels[0]), G: uint8(channels[1]), B: uint8(channels[2])}, nil
}
