package scheduler

import (
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/sweeney/sensorcluster/internal/clock"
	"github.com/sweeney/sensorcluster/internal/mqtt"
)

// manageConnection observes the transport and reconnects while it is down.
// The Disconnected->Connected transition subscribes to the command topics
// and announces the node online.
func (s *Scheduler) manageConnection(now clock.Timestamp) {
	if s.transport.Connected() {
		if !s.wasConnected {
			s.onConnected()
		}
		return
	}

	if s.wasConnected {
		s.log.Warnw("broker connection lost")
		s.wasConnected = false
	}

	if s.attempted && !clock.Elapsed(now, s.lastAttemptAt, s.reconnectInterval) {
		return
	}
	s.attempted = true
	s.lastAttemptAt = now
	s.reconnectInterval = s.nextReconnectInterval(s.reconnectInterval)
	if s.metrics != nil {
		s.metrics.ReconnectAttempts.Inc()
	}

	if err := s.transport.Connect(); err != nil {
		switch {
		case errors.Is(err, mqtt.ErrConnectInProgress):
			return
		case errors.Is(err, mqtt.ErrConnectionFailed):
			// A fresh attempt is under way.
			s.log.Warnw("previous connect attempt failed", "error", err)
		default:
			s.log.Warnw("connect attempt failed", "error", err)
			return
		}
	}
	s.log.Debugw("connect attempt started", "next_retry_ms", s.reconnectInterval)

	// Synchronous transports are up already.
	if s.transport.Connected() {
		s.onConnected()
	}
}

func (s *Scheduler) onConnected() {
	s.wasConnected = true
	s.reconnect.Reset()

	if err := s.transport.Subscribe(s.topics.Alert, s.topics.Indicator); err != nil {
		s.log.Warnw("subscribe failed", "error", err)
	}
	if err := s.transport.Publish(s.topics.Status, []byte(mqtt.StatusOnline), true); err != nil {
		s.log.Warnw("failed to publish online status", "error", err)
	}
	s.log.Infow("broker connected", "subscriptions", []string{s.topics.Alert, s.topics.Indicator})
}

// nextReconnectInterval asks the policy for the next wait in ms, keeping prev
// if the policy has stopped.
func (s *Scheduler) nextReconnectInterval(prev uint32) uint32 {
	d := s.reconnect.NextBackOff()
	if d == backoff.Stop {
		return prev
	}
	return uint32(d.Milliseconds())
}
