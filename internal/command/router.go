package command

import (
	"fmt"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/logic"
)

// AlertStarter is implemented by logic.AlertSequencer.
type AlertStarter interface {
	Start(count int) bool
}

// IndicatorConfigurer is implemented by logic.IndicatorSequencer.
type IndicatorConfigurer interface {
	Configure(now clock.Timestamp, p logic.IndicatorPatch)
}

// Router dispatches decoded commands to the sequencers.
type Router struct {
	topics    Topics
	alert     AlertStarter
	indicator IndicatorConfigurer
}

// NewRouter creates a Router for the given command topics.
func NewRouter(topics Topics, alert AlertStarter, indicator IndicatorConfigurer) *Router {
	return &Router{topics: topics, alert: alert, indicator: indicator}
}

// Route decodes one message and applies it. On error no state has changed.
// The returned command is nil on error.
func (r *Router) Route(now clock.Timestamp, topic string, payload []byte) (Command, error) {
	cmd, err := Parse(r.topics, topic, payload)
	if err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case SetAlert:
		if !r.alert.Start(c.Count) {
			return nil, fmt.Errorf("%w: alert count %d", ErrOutOfRange, c.Count)
		}
	case SetIndicator:
		r.indicator.Configure(now, c.Patch)
	}
	return cmd, nil
}
