package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	// defaultConnectTimeout bounds a single connect attempt inside paho.
	defaultConnectTimeout = 10 * time.Second

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 30 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 250 // milliseconds

	// DefaultInboxSize is the number of inbound messages held between polls.
	DefaultInboxSize = 64
)

// Options configures a RealTransport.
type Options struct {
	Broker      string // e.g. tcp://192.168.1.200:1883
	ClientID    string
	Username    string
	Password    string
	StatusTopic string // last-will topic
	InboxSize   int

	// OnDrop, if set, is called from paho's goroutine for every inbound
	// message discarded because the inbox was full.
	OnDrop func()
}

// RealTransport talks to an actual MQTT broker. Reconnection is driven by the
// caller; paho's own auto-reconnect is disabled.
type RealTransport struct {
	client paho.Client
	log    *zap.SugaredLogger
	broker string

	mu      sync.Mutex
	inbox   *ringBuffer
	pending paho.Token
	onDrop  func()
}

// NewRealTransport creates a disconnected transport. Call Connect to start a session.
func NewRealTransport(opts Options, log *zap.SugaredLogger) *RealTransport {
	size := opts.InboxSize
	if size <= 0 {
		size = DefaultInboxSize
	}
	t := &RealTransport{
		log:    log,
		broker: opts.Broker,
		inbox:  newRingBuffer(size),
		onDrop: opts.OnDrop,
	}

	o := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(defaultConnectTimeout).
		SetKeepAlive(defaultKeepAlive).
		// QoS 1 (at-least-once), retained, so late subscribers see the node went away.
		SetWill(opts.StatusTopic, StatusOffline, 1, true).
		SetOnConnectHandler(func(_ paho.Client) {
			log.Infow("mqtt: connected", "broker", opts.Broker, "client_id", opts.ClientID)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt: connection lost", "error", err)
		})

	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}

	t.client = paho.NewClient(o)
	return t
}

// Connect starts an asynchronous connect attempt. If the previous attempt
// failed, the new attempt is still started and the earlier failure is
// returned wrapped in ErrConnectionFailed.
func (t *RealTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev error
	if t.pending != nil {
		select {
		case <-t.pending.Done():
			if err := t.pending.Error(); err != nil {
				prev = fmt.Errorf("%w: %s: %w", ErrConnectionFailed, t.broker, err)
			}
			t.pending = nil
		default:
			return ErrConnectInProgress
		}
	}

	t.pending = t.client.Connect()
	return prev
}

// Connected reports whether the session is currently open.
func (t *RealTransport) Connected() bool {
	return t.client.IsConnectionOpen()
}

// Subscribe subscribes to topics at QoS 0 without waiting for the SUBACK.
func (t *RealTransport) Subscribe(topics ...string) error {
	if !t.Connected() {
		return ErrNotConnected
	}
	for _, topic := range topics {
		t.client.Subscribe(topic, 0, t.handleMessage)
	}
	return nil
}

// Publish hands the payload to paho without waiting for delivery.
// An error is returned only if paho has already failed the token.
func (t *RealTransport) Publish(topic string, payload []byte, retained bool) error {
	if !t.Connected() {
		return ErrNotConnected
	}

	token := t.client.Publish(topic, 0, retained, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrPublishFailed, err)
		}
	default:
	}
	return nil
}

// Poll drains buffered inbound messages.
func (t *RealTransport) Poll() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inbox.drainAll()
}

// Close disconnects from the broker.
func (t *RealTransport) Close() error {
	t.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// handleMessage runs on paho's goroutine and only buffers the message.
func (t *RealTransport) handleMessage(_ paho.Client, m paho.Message) {
	payload := make([]byte, len(m.Payload()))
	copy(payload, m.Payload())

	t.mu.Lock()
	dropped := t.inbox.push(Message{Topic: m.Topic(), Payload: payload})
	n := t.inbox.dropped
	t.mu.Unlock()

	if !dropped {
		return
	}
	if n == 1 {
		t.log.Warnw("mqtt: inbox full, dropping oldest", "capacity", t.inbox.capacity)
	}
	if t.onDrop != nil {
		t.onDrop()
	}
}
