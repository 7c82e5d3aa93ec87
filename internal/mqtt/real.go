package mqtt

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/parking-controller/internal/logger"
	"github.com/sweeney/parking-controller/internal/logic"
)

// offlineBufferSize is how many messages are kept while the broker is unreachable.
const offlineBufferSize = 256

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger

	mu  sync.Mutex
	out *outbox
}

// NewRealPublisher creates a publisher for the given broker and returns
// without waiting for the connection. The client keeps retrying in the
// background, so an unreachable broker at startup is not an error; only a
// malformed broker URL is.
func NewRealPublisher(broker, clientID string, log *logger.Logger) (*RealPublisher, error) {
	if err := checkBroker(broker); err != nil {
		return nil, err
	}
	p := &RealPublisher{
		log: log,
		out: newOutbox(offlineBufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(paho.Client) {
			log.Infow("mqtt_connected", "broker", broker)
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt_connection_lost", "broker", broker, "err", err)
		})

	// Last will so subscribers notice an unclean exit.
	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}
	opts.SetBinaryWill(TopicSystem, will, 1, true)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.Errorw("mqtt_connect_failed", "broker", broker, "err", err)
		}
	}()
	log.Infow("mqtt_connecting", "broker", broker)

	return p, nil
}

// checkBroker rejects broker addresses paho would silently drop.
func checkBroker(broker string) error {
	u, err := url.Parse(broker)
	if err != nil {
		return fmt.Errorf("broker %q: %w", broker, err)
	}
	switch u.Scheme {
	case "tcp", "mqtt", "ssl", "tls", "mqtts", "mqtt+ssl", "tcps", "ws", "wss":
	default:
		return fmt.Errorf("broker %q: unsupported scheme %q", broker, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker %q: missing host", broker)
	}
	return nil
}

// Publish sends a facility event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	if err := p.publish(message{topic: Topic, payload: payload}); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	if err := p.publish(message{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained}); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

func (p *RealPublisher) publish(msg message) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		first := p.out.add(msg)
		p.mu.Unlock()
		if first {
			p.log.Warnw("mqtt_buffer_full", "capacity", offlineBufferSize)
		}
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("%s: publish timed out", msg.topic)
	}
	return token.Error()
}

// flush replays buffered messages. Called from the paho connect handler,
// so it must not wait on tokens.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.out.take()
	p.mu.Unlock()

	if len(msgs) > 0 {
		p.log.Infow("mqtt_replaying_buffer", "messages", len(msgs))
	}
	for _, m := range msgs {
		p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
