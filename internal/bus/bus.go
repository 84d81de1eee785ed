// Package bus is the in-process publish/subscribe channel for cache
// invalidations.
//
// Topics are exact: a user id, or one of the global topics such as
// TopicUnsetUser. The bus has two entry points. Publish is for changes made
// in this process: it delivers locally and then hands the message to the
// Forwarder (the cluster relay). DeliverFromCluster is for messages received
// from other processes: it delivers locally only, so a message never goes
// back out to the cluster it came from.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives messages published on a topic. Handlers run on the
// publishing goroutine and must not block.
type Handler func(topic string, msg Message)

// Forwarder carries locally published messages to other processes.
type Forwarder interface {
	Forward(topic string, msg Message)
}

// Unsubscribe removes a subscription. It is safe to call more than once.
type Unsubscribe func()

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches messages to per-topic subscribers.
//
// Thread-safety: all methods are safe for concurrent use. Handlers are
// called without the bus lock held, so they may subscribe, unsubscribe, or
// publish.
type Bus struct {
	mu        sync.RWMutex
	topics    map[string][]subscription
	nextID    uint64
	forwarder Forwarder
	logger    *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = l
	}
}

// New creates a bus with no forwarder.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics: make(map[string][]subscription),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetForwarder sets where Publish sends messages after local delivery.
// A nil forwarder keeps publications local.
func (b *Bus) SetForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarder = f
}

// Subscribe registers handler on topic.
func (b *Bus) Subscribe(topic string, handler Handler) Unsubscribe {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(topic, id) })
	}
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		rest := make([]subscription, 0, len(subs)-1)
		rest = append(rest, subs[:i]...)
		rest = append(rest, subs[i+1:]...)
		if len(rest) == 0 {
			delete(b.topics, topic)
		} else {
			b.topics[topic] = rest
		}
		return
	}
}

// Publish delivers msg to the local subscribers of topic, then forwards it
// to the cluster. Local delivery completes before Publish returns.
func (b *Bus) Publish(topic string, msg Message) {
	b.deliver(topic, msg)

	b.mu.RLock()
	f := b.forwarder
	b.mu.RUnlock()
	if f != nil {
		f.Forward(topic, msg)
	}
}

// DeliverFromCluster delivers a message received from another process to
// local subscribers only.
func (b *Bus) DeliverFromCluster(topic string, msg Message) {
	b.deliver(topic, msg)
}

// SubscriberCount returns the number of handlers on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) deliver(topic string, msg Message) {
	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	// subs is never mutated in place, so iterating it after unlocking is safe.
	for _, s := range subs {
		b.call(s.handler, topic, msg)
	}
}

func (b *Bus) call(h Handler, topic string, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				"topic", topic,
				"action", msg.Action,
				"panic", fmt.Sprint(r))
		}
	}()
	h(topic, msg)
}
