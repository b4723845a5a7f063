package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/harvest-engine/internal/logic"
)

// DefaultOutboxSize is the number of messages held while disconnected.
const DefaultOutboxSize = 256

// Options configures the broker connection.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	OutboxSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in an outbox and sent on reconnect.
type RealPublisher struct {
	client paho.Client

	mu       sync.Mutex
	outbox   *outbox
	connects int
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker registers a retained OFFLINE last will on the system topic.
// If the broker is unreachable at startup, connection keeps retrying in the
// background and messages are held until it succeeds.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	size := o.OutboxSize
	if size <= 0 {
		size = DefaultOutboxSize
	}
	p := &RealPublisher{outbox: newOutbox(size)}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// onConnect runs on every (re)connection. It flushes the outbox and, after a
// reconnect, replaces the retained last will.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	held := p.outbox.drain()
	p.mu.Unlock()

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		held = append(held, bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: true})
	}
	if len(held) > 0 {
		log.Printf("mqtt: connected, sending %d held messages", len(held))
	}

	for i, m := range held {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
			// Put back the unsent tail for the next connection.
			p.mu.Lock()
			for _, rest := range held[i:] {
				p.outbox.push(rest)
			}
			p.mu.Unlock()
			log.Printf("mqtt: replay interrupted, %d messages held", len(held)-i)
			return
		}
	}
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	if !p.client.IsConnectionOpen() {
		p.hold(msg)
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		p.hold(msg)
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		p.hold(msg)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	p.outbox.push(msg)
	p.mu.Unlock()
}

// Publish sends an engine event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	if err := p.publish(TopicSystem, 1, event.Retained, payload); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Held returns the number of messages waiting for a connection and the total
// number dropped because the outbox was full.
func (p *RealPublisher) Held() (pending int, dropped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outbox.len(), p.outbox.dropped
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
