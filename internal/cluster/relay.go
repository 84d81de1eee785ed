package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/streamhub/internal/bus"
)

// DefaultQueueSize bounds the outbound queue of a Relay.
const DefaultQueueSize = 1024

// Deliverer receives messages from other processes. *bus.Bus implements it.
type Deliverer interface {
	DeliverFromCluster(topic string, msg bus.Message)
}

// RelayStats counts relay traffic since creation.
type RelayStats struct {
	Forwarded uint64 // sent to the broker
	Dropped   uint64 // lost on the way out: queue full, closed, or publish failed
	Received  uint64 // delivered to the local bus
	Malformed uint64 // inbound payloads that failed to decode
}

// Relay bridges the local bus and the cluster broker.
//
// Lifecycle: NewRelay, then Start once, then Close. Forward may be called
// before Start; messages queue until the drain loop runs.
type Relay struct {
	broker  Broker
	local   Deliverer
	subject string
	queue   *outboundQueue
	logger  *slog.Logger

	mu   sync.Mutex
	sub  Subscription
	done chan struct{}

	forwarded atomic.Uint64
	dropped   atomic.Uint64
	received  atomic.Uint64
	malformed atomic.Uint64
}

// RelayOption configures a Relay.
type RelayOption func(*relayConfig)

type relayConfig struct {
	subject   string
	queueSize int
	logger    *slog.Logger
}

// WithSubject sets the broker subject. Default: DefaultSubject.
func WithSubject(subject string) RelayOption {
	return func(c *relayConfig) {
		c.subject = subject
	}
}

// WithQueueSize bounds the outbound queue. Default: DefaultQueueSize.
func WithQueueSize(n int) RelayOption {
	return func(c *relayConfig) {
		c.queueSize = n
	}
}

// WithLogger sets the relay logger.
func WithLogger(l *slog.Logger) RelayOption {
	return func(c *relayConfig) {
		c.logger = l
	}
}

// NewRelay creates a relay between broker and the local bus.
func NewRelay(broker Broker, local Deliverer, opts ...RelayOption) *Relay {
	cfg := relayConfig{
		subject:   DefaultSubject,
		queueSize: DefaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = DefaultQueueSize
	}
	return &Relay{
		broker:  broker,
		local:   local,
		subject: cfg.subject,
		queue:   newOutboundQueue(cfg.queueSize),
		logger:  cfg.logger,
	}
}

// Forward queues a locally published message for the cluster. It never
// blocks; a full queue drops the message.
func (r *Relay) Forward(topic string, msg bus.Message) {
	if !r.queue.Enqueue(outbound{topic: topic, msg: msg}) {
		r.dropped.Add(1)
		r.logger.Warn("dropping cache invalidation, outbound queue unavailable",
			"topic", topic,
			"action", msg.Action)
	}
}

// Start subscribes to the cache subject and starts draining the outbound
// queue. The subscription is active when Start returns. The drain loop stops
// when ctx is cancelled or Close is called.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return errors.New("relay already started")
	}
	sub, err := r.broker.Subscribe(r.subject, r.receive)
	if err != nil {
		return fmt.Errorf("subscribe to %q: %w", r.subject, err)
	}
	r.sub = sub
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
	return nil
}

func (r *Relay) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		for {
			o, ok := r.queue.TryDequeue()
			if !ok {
				break
			}
			r.send(o)
		}

		select {
		case <-ctx.Done():
			return
		case _, open := <-r.queue.Wait():
			if !open {
				// Closed: flush what was queued before Close.
				for {
					o, ok := r.queue.TryDequeue()
					if !ok {
						return
					}
					r.send(o)
				}
			}
		}
	}
}

func (r *Relay) send(o outbound) {
	data, err := Encode(o.topic, o.msg)
	if err != nil {
		r.dropped.Add(1)
		r.logger.Error("encode cache invalidation", "topic", o.topic, "error", err)
		return
	}
	if err := r.broker.Publish(r.subject, data); err != nil {
		r.dropped.Add(1)
		r.logger.Warn("cache invalidation lost, broker publish failed",
			"topic", o.topic,
			"action", o.msg.Action,
			"error", err)
		return
	}
	r.forwarded.Add(1)
}

// receive handles one inbound broker payload.
func (r *Relay) receive(data []byte) {
	env, err := Decode(data)
	if err != nil {
		r.malformed.Add(1)
		r.logger.Warn("ignoring malformed cache invalidation", "error", err)
		return
	}
	r.received.Add(1)
	r.logger.Debug("cache invalidation received",
		"topic", env.EventName,
		"action", env.Payload.Action)
	r.local.DeliverFromCluster(env.EventName, env.Payload)
}

// Stats returns traffic counters.
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		Forwarded: r.forwarded.Load(),
		Dropped:   r.dropped.Load(),
		Received:  r.received.Load(),
		Malformed: r.malformed.Load(),
	}
}

// Pending returns the number of queued outbound messages.
func (r *Relay) Pending() int {
	return r.queue.Len()
}

// Close stops the relay: it rejects new messages, sends those already
// queued, and removes the inbound subscription. The broker is not closed.
func (r *Relay) Close() error {
	r.queue.Close()

	r.mu.Lock()
	done, sub := r.done, r.sub
	r.sub = nil
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("unsubscribe from %q: %w", r.subject, err)
		}
	}
	return nil
}
