package mqtt

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/sweeney/sandglass/internal/cycle"
	"github.com/sweeney/sandglass/internal/wire"
)

// Options configures a RealPublisher.
type Options struct {
	Broker      string
	ClientID    string // a random suffix is appended so restarts never collide
	TopicPrefix string
	Encoder     *wire.Encoder
	Logger      *log.Logger
	// OnCommand receives commands from the commands topic. Nil disables the
	// subscription.
	OnCommand func(cycle.Command)
	// OnConnectionChange is called whenever the connection goes up or down.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are queued in an outbox and replayed on reconnect.
type RealPublisher struct {
	client  paho.Client
	topics  Topics
	enc     *wire.Encoder
	logger  *log.Logger
	options Options

	mu        sync.Mutex
	outbox    *outbox
	connected bool // set after the first successful connection
	// online is set once the outbox has been replayed after a connect and
	// cleared when the connection is lost. Publishing goes to the outbox
	// while it is unset so replayed messages keep their order.
	online bool
}

// NewRealPublisher creates a publisher for the given broker. If the broker is
// unreachable the client keeps retrying in the background.
func NewRealPublisher(options Options) (*RealPublisher, error) {
	if options.Broker == "" {
		return nil, fmt.Errorf("no broker configured")
	}
	if options.Encoder == nil {
		return nil, fmt.Errorf("no encoder configured")
	}
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clientID := options.ClientID
	if clientID == "" {
		clientID = "sandglass"
	}
	clientID += "-" + uuid.New().String()[:8]

	p := newPublisher(options, logger)

	opts := paho.NewClientOptions().
		AddBroker(options.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.topics.System, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("broker unreachable, retrying in background", "broker", options.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(options Options, logger *log.Logger) *RealPublisher {
	return &RealPublisher{
		topics:  NewTopics(options.TopicPrefix),
		enc:     options.Encoder,
		logger:  logger,
		options: options,
		outbox:  newOutbox(outboxCapacity, logger),
	}
}

// Topics returns the topics the publisher uses.
func (p *RealPublisher) Topics() Topics {
	return p.topics
}

// Publish sends a timer event to the events topic.
func (p *RealPublisher) Publish(event cycle.Event) error {
	payload, err := p.enc.Event(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: display boards downstream rely on movement notifications.
	return p.publish(pending{
		topic:   p.topics.Events,
		payload: payload,
		qos:     1,
		state:   event.Type == cycle.EventSnapshot,
	})
}

// PublishSystem sends a system lifecycle event to the system topic.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(pending{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(msg pending) error {
	p.mu.Lock()
	if !p.online || !p.client.IsConnectionOpen() {
		p.outbox.add(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnect(client paho.Client) {
	if p.options.OnCommand != nil {
		token := client.Subscribe(p.topics.Commands, 1, p.handleCommand)
		if !token.WaitTimeout(10 * time.Second) {
			p.logger.Error("subscribe failed", "topic", p.topics.Commands, "err", "timeout")
		} else if err := token.Error(); err != nil {
			p.logger.Error("subscribe failed", "topic", p.topics.Commands, "err", err)
		}
	}

	// Live publishes wait on the lock until the outbox has been replayed.
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	queued := p.outbox.flush()
	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err != nil {
			p.logger.Error("format reconnected event", "err", err)
		} else {
			queued = append(queued, pending{topic: p.topics.System, payload: payload, qos: 1})
		}
	}
	if len(queued) > 0 {
		p.logger.Info("replaying queued messages", "count", len(queued))
	}
	// Publish without waiting: paho keeps the order of its outgoing queue.
	for _, msg := range queued {
		client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
	p.online = true
	p.mu.Unlock()

	p.logger.Info("connected", "broker", p.options.Broker, "reconnect", reconnect)
	if p.options.OnConnectionChange != nil {
		p.options.OnConnectionChange(true)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.online = false
	p.mu.Unlock()

	p.logger.Warn("connection lost", "err", err)
	if p.options.OnConnectionChange != nil {
		p.options.OnConnectionChange(false)
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	cmd, err := wire.DecodeCommand(msg.Payload())
	if err != nil {
		p.logger.Warn("command dropped", "topic", msg.Topic(), "err", err)
		return
	}
	p.logger.Info("command received", "command", cmd.Name, "topic", msg.Topic())
	p.options.OnCommand(cmd)
}
