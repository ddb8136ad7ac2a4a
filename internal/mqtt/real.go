package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// pendingCapacity bounds how many messages queue while disconnected.
const pendingCapacity = 256

// RealPublisher publishes to an actual MQTT broker. While the
// connection is down, messages accumulate in a bounded queue and are
// replayed when the auto-reconnect succeeds.
type RealPublisher struct {
	client paho.Client

	mu      sync.Mutex
	pending *pendingQueue
}

// NewRealPublisher creates a publisher connected to the given broker.
// The client id carries a random suffix so several monitors can watch
// the same broker.
func NewRealPublisher(broker string) (*RealPublisher, error) {
	p := &RealPublisher{pending: newPendingQueue(pendingCapacity)}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("zone-monitor-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) { p.replayPending() })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.client.Disconnect(0)
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// PublishZone sends one zone's state to the broker at QoS 0. While
// disconnected the update is queued instead of failing.
func (p *RealPublisher) PublishZone(update ZoneUpdate) error {
	payload, err := FormatZonePayload(update)
	if err != nil {
		return fmt.Errorf("format zone payload: %w", err)
	}
	return p.send(TopicZone(update.Zone), 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the broker.
// QoS 1 (at-least-once): lifecycle events should not be lost.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(TopicSystem, 1, event.Retained, payload)
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnected() {
		p.mu.Lock()
		p.pending.push(queuedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// replayPending flushes the queue built up while disconnected.
// Runs on paho's connect-handler goroutine.
func (p *RealPublisher) replayPending() {
	p.mu.Lock()
	msgs, dropped := p.pending.drain()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	if dropped > 0 {
		log.Printf("mqtt: replaying %d queued messages, %d dropped while disconnected", len(msgs), dropped)
	} else {
		log.Printf("mqtt: replaying %d queued messages", len(msgs))
	}
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
