package mqtt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/touch-lamp/internal/logic"
)

// DefaultBufferSize is how many messages are held while the broker is away.
const DefaultBufferSize = 100

// DefaultQueueSize is how many messages may wait for the writer goroutine.
const DefaultQueueSize = 32

const (
	publishTimeout = 5 * time.Second
	closeTimeout   = 5 * time.Second
)

// ErrQueueFull is returned when the writer goroutine has fallen behind.
var ErrQueueFull = errors.New("mqtt: publish queue full, message dropped")

// Options configures a RealPublisher. Zero fields take the package defaults.
type Options struct {
	Broker      string
	ClientID    string
	Topic       string
	TopicSystem string
	BufferSize  int
	QueueSize   int
}

func (o *Options) applyDefaults() {
	if o.ClientID == "" {
		o.ClientID = ClientID
	}
	if o.Topic == "" {
		o.Topic = Topic
	}
	if o.TopicSystem == "" {
		o.TopicSystem = TopicSystem
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
}

// RealPublisher publishes to an actual MQTT broker. Publish and
// PublishSystem only enqueue; a writer goroutine talks to the broker so the
// sampling loop never waits on the network. Messages published while the
// connection is down are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client      paho.Client
	topic       string
	topicSystem string
	sendFn      func(bufferedMsg) error

	queue    chan bufferedMsg
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	dropped  atomic.Uint64

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool
	replaying bool
}

// newPublisher builds the queue and buffer without a client or writer.
func newPublisher(o Options) *RealPublisher {
	o.applyDefaults()
	return &RealPublisher{
		topic:       o.Topic,
		topicSystem: o.TopicSystem,
		queue:       make(chan bufferedMsg, o.QueueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		buf:         newRingBuffer(o.BufferSize),
	}
}

// NewRealPublisher creates a publisher for the configured broker. It does not
// wait for the first connection: the client keeps retrying in the background
// and early messages are buffered.
func NewRealPublisher(o Options) *RealPublisher {
	o.applyDefaults()
	p := newPublisher(o)

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(o.TopicSystem, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	p.sendFn = p.send
	p.start()

	token := p.client.Connect()
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("mqtt: connect to %s: %v", o.Broker, token.Error())
		}
	}()
	return p
}

// start runs the writer goroutine. sendFn must be set.
func (p *RealPublisher) start() {
	go p.writer()
}

func (p *RealPublisher) writer() {
	defer close(p.done)
	for {
		select {
		case m := <-p.queue:
			p.deliver(m)
		case <-p.stop:
			for {
				select {
				case m := <-p.queue:
					p.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (p *RealPublisher) deliver(m bufferedMsg) {
	if err := p.publish(m); err != nil {
		log.Printf("mqtt: publish to %s: %v", m.topic, err)
	}
}

func (p *RealPublisher) enqueue(m bufferedMsg) error {
	select {
	case p.queue <- m:
		return nil
	default:
		if p.dropped.Add(1) == 1 {
			log.Printf("mqtt: publish queue full (%d messages), dropping", cap(p.queue))
		}
		return ErrQueueFull
	}
}

// Dropped returns how many messages were refused because the queue was full.
func (p *RealPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.replay()
}

// replay drains the offline buffer. New messages keep buffering until the
// buffer is empty so nothing overtakes an older message.
func (p *RealPublisher) replay() {
	p.mu.Lock()
	p.connected = true
	p.replaying = true
	p.mu.Unlock()

	n := 0
	for {
		p.mu.Lock()
		pending := p.buf.drainAll()
		if len(pending) == 0 {
			p.replaying = false
			p.mu.Unlock()
			break
		}
		p.mu.Unlock()

		for _, m := range pending {
			if err := p.sendFn(m); err != nil {
				log.Printf("mqtt: replay to %s: %v", m.topic, err)
			}
			n++
		}
	}
	log.Printf("mqtt: connected, replayed %d buffered messages", n)
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	log.Printf("mqtt: connection lost: %v", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	p.mu.Lock()
	if !p.connected || p.replaying {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.sendFn(m)
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish queues a lamp event for the MQTT broker.
// QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(at time.Time, event logic.Event) error {
	payload, err := FormatPayload(at, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.enqueue(bufferedMsg{topic: p.topic, payload: payload})
}

// PublishSystem queues a system lifecycle event for the MQTT broker.
// QoS 1 (at-least-once) so STARTUP/SHUTDOWN are delivered.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.enqueue(bufferedMsg{
		topic:    p.topicSystem,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
}

// Close flushes queued messages, waiting at most closeTimeout, and then
// disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	select {
	case <-p.done:
	case <-time.After(closeTimeout):
		log.Printf("mqtt: %d messages still queued at close", len(p.queue))
	}
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second timeout
	}
	return nil
}
