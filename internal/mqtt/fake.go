package mqtt

import "errors"

// Published is a message recorded by FakeTransport.
type Published struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeTransport records transport activity for test assertions.
type FakeTransport struct {
	// Up controls the return value of Connected.
	Up bool

	// ConnectSucceeds decides whether Connect brings the session up.
	ConnectSucceeds bool

	// ConnectError, if set, is returned by Connect. An error wrapping
	// ErrConnectionFailed reports a prior failure, so the attempt still runs.
	ConnectError error

	// ConnectCalls counts Connect invocations.
	ConnectCalls int

	// Subscriptions contains every subscribed topic in order.
	Subscriptions []string

	// Published contains all accepted publishes.
	Published []Published

	// PublishError, if set, is returned by Publish.
	PublishError error

	// Inbox holds messages returned by the next Poll.
	Inbox []Message

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeTransport creates a disconnected FakeTransport whose connects succeed.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{ConnectSucceeds: true}
}

// Connect records the attempt.
func (f *FakeTransport) Connect() error {
	f.ConnectCalls++
	if f.ConnectError != nil && !errors.Is(f.ConnectError, ErrConnectionFailed) {
		return f.ConnectError
	}
	f.Up = f.ConnectSucceeds
	return f.ConnectError
}

// Connected reports the fake session state.
func (f *FakeTransport) Connected() bool {
	return f.Up
}

// Subscribe records topics.
func (f *FakeTransport) Subscribe(topics ...string) error {
	if !f.Up {
		return ErrNotConnected
	}
	f.Subscriptions = append(f.Subscriptions, topics...)
	return nil
}

// Publish records the message when connected.
func (f *FakeTransport) Publish(topic string, payload []byte, retained bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	if !f.Up {
		return ErrNotConnected
	}
	f.Published = append(f.Published, Published{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

// Poll returns and clears the inbox.
func (f *FakeTransport) Poll() []Message {
	msgs := f.Inbox
	f.Inbox = nil
	return msgs
}

// Close marks the transport as closed.
func (f *FakeTransport) Close() error {
	f.Closed = true
	f.Up = false
	return nil
}

// Deliver queues an inbound message for the next Poll.
func (f *FakeTransport) Deliver(topic, payload string) {
	f.Inbox = append(f.Inbox, Message{Topic: topic, Payload: []byte(payload)})
}

// Drop simulates an ungraceful disconnect.
func (f *FakeTransport) Drop() {
	f.Up = false
}

// PublishedOn returns the payloads published on topic, in order.
func (f *FakeTransport) PublishedOn(topic string) []string {
	var out []string
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, string(p.Payload))
		}
	}
	return out
}

// Reset clears recorded activity.
func (f *FakeTransport) Reset() {
	f.ConnectCalls = 0
	f.Subscriptions = nil
	f.Published = nil
	f.Inbox = nil
	f.Closed = false
}
