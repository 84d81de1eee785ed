// Package memory is an in-process cluster broker. Several cache systems
// connected to one Hub behave like processes sharing a real broker, which
// lets tests exercise cross-process invalidation without a network.
package memory

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/pubsub/v2"

	"github.com/roach88/streamhub/internal/cluster"
)

// Hub is the shared medium clients publish to.
type Hub struct {
	hub    *pubsub.SimpleHub
	logger *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger for hub diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.hub = pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: hubLogger{h.logger.With("component", "memory-hub")},
	})
	return h
}

// frame is what travels through the hub. Origin identifies the publishing
// client so that it does not receive its own messages.
type frame struct {
	origin string
	data   []byte
}

// Connect returns a new connected client with its own identity.
func (h *Hub) Connect() *Client {
	return &Client{
		hub:       h,
		origin:    uuid.Must(uuid.NewV7()).String(),
		connected: true,
	}
}

// Client is one process's connection to a Hub. It implements
// cluster.Broker.
//
// Disconnect simulates a broker outage: while disconnected, Publish fails
// and inbound messages are lost. Reconnect resumes delivery of new messages
// only.
type Client struct {
	hub    *Hub
	origin string

	mu        sync.Mutex
	connected bool
	closed    bool
	unsubs    []func()
}

var _ cluster.Broker = (*Client)(nil)

// ID returns the client identity used for echo suppression.
func (c *Client) ID() string {
	return c.origin
}

// Publish sends data to every other client subscribed to subject.
// Delivery is asynchronous.
func (c *Client) Publish(subject string, data []byte) error {
	if !c.Connected() {
		return cluster.ErrDisconnected
	}
	payload := append([]byte(nil), data...)
	_ = c.hub.hub.Publish(subject, frame{origin: c.origin, data: payload})
	return nil
}

// Subscribe calls fn for every message other clients publish on subject.
func (c *Client) Subscribe(subject string, fn func(data []byte)) (cluster.Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("subscribe %q: client closed", subject)
	}
	unsub := c.hub.hub.Subscribe(subject, func(_ string, v interface{}) {
		f, ok := v.(frame)
		if !ok || f.origin == c.origin || !c.Connected() {
			return
		}
		fn(f.data)
	})
	c.unsubs = append(c.unsubs, unsub)
	return &subscription{unsub: unsub}, nil
}

// Connected reports whether the client can currently send and receive.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && !c.closed
}

// Disconnect simulates losing the broker connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.hub.logger.Debug("client disconnected", "client", c.origin)
}

// Reconnect restores the connection after Disconnect.
func (c *Client) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.hub.logger.Debug("client reconnected", "client", c.origin)
}

// Close removes every subscription of the client.
func (c *Client) Close() error {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.closed = true
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	return nil
}

type subscription struct {
	once  sync.Once
	unsub func()
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(s.unsub)
	return nil
}

// hubLogger adapts slog to the hub's printf-style logger.
type hubLogger struct {
	l *slog.Logger
}

func (h hubLogger) Errorf(format string, args ...interface{}) {
	h.l.Error(fmt.Sprintf(format, args...))
}

func (h hubLogger) Warningf(format string, args ...interface{}) {
	h.l.Warn(fmt.Sprintf(format, args...))
}

func (h hubLogger) Infof(format string, args ...interface{}) {
	h.l.Info(fmt.Sprintf(format, args...))
}

func (h hubLogger) Debugf(format string, args ...interface{}) {
	h.l.Debug(fmt.Sprintf(format, args...))
}

func (h hubLogger) Tracef(format string, args ...interface{}) {
	h.l.Debug(fmt.Sprintf(format, args...))
}
