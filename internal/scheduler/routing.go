package scheduler

import (
	"errors"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/command"
	"github.com/sweeney/sensorcluster/internal/metrics"
)

// routeCommands drains the transport and applies each message in arrival order.
// Rejected messages change nothing and are only counted and logged.
func (s *Scheduler) routeCommands(now clock.Timestamp) {
	for _, msg := range s.transport.Poll() {
		cmd, err := s.router.Route(now, msg.Topic, msg.Payload)
		if err != nil {
			s.commands.Rejected++
			if s.metrics != nil {
				s.metrics.ObserveCommand(s.kindFor(msg.Topic), resultFor(err))
			}
			s.log.Debugw("command dropped", "topic", msg.Topic, "payload", string(msg.Payload), "error", err)
			continue
		}

		s.commands.Applied++
		if s.metrics != nil {
			s.metrics.ObserveCommand(cmd.Kind(), metrics.ResultApplied)
		}
		s.log.Infow("command applied", "kind", cmd.Kind(), "payload", string(msg.Payload))
	}
}

func (s *Scheduler) kindFor(topic string) string {
	switch topic {
	case s.topics.Alert:
		return command.KindAlert
	case s.topics.Indicator:
		return command.KindIndicator
	default:
		return "unknown"
	}
}

func resultFor(err error) string {
	switch {
	case errors.Is(err, command.ErrOutOfRange):
		return metrics.ResultRange
	case errors.Is(err, command.ErrUnknownTopic):
		return metrics.ResultUnknown
	default:
		return metrics.ResultMalformed
	}
}
