// Package natsbroker connects the cluster relay to a NATS server.
package natsbroker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/streamhub/internal/cluster"
)

// Broker is a cluster.Broker backed by one NATS connection.
//
// The connection is opened with NoEcho, so the process never receives its
// own publications, and reconnects forever. The reconnect buffer is
// disabled: Publish fails while the connection is down and the message is
// lost.
type Broker struct {
	conn   *nats.Conn
	logger *slog.Logger
}

var _ cluster.Broker = (*Broker)(nil)

// Options configures Connect.
type Options struct {
	// Name identifies the connection on the server.
	Name string

	// ConnectTimeout bounds the initial dial. Default: nats.DefaultTimeout.
	ConnectTimeout time.Duration

	// ReconnectWait is the pause between reconnection attempts.
	// Default: nats.DefaultReconnectWait.
	ReconnectWait time.Duration

	Logger *slog.Logger
}

// Connect dials url (comma-separated for several servers).
func Connect(url string, opts Options) (*Broker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nats")

	nc, err := nats.Connect(url, clientOptions(opts, logger)...)
	if err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", url, err)
	}
	logger.Info("connected to broker", "url", nc.ConnectedUrl())
	return &Broker{conn: nc, logger: logger}, nil
}

func clientOptions(opts Options, logger *slog.Logger) []nats.Option {
	natsOpts := []nats.Option{
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("disconnected from broker, cache invalidations are local only", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to broker", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("broker error", "subject", subject, "error", err)
		}),
	}
	if opts.Name != "" {
		natsOpts = append(natsOpts, nats.Name(opts.Name))
	}
	if opts.ConnectTimeout > 0 {
		natsOpts = append(natsOpts, nats.Timeout(opts.ConnectTimeout))
	}
	if opts.ReconnectWait > 0 {
		natsOpts = append(natsOpts, nats.ReconnectWait(opts.ReconnectWait))
	}
	return natsOpts
}

// Publish sends data on subject.
func (b *Broker) Publish(subject string, data []byte) error {
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish on %q: %w", subject, err)
	}
	return nil
}

// Subscribe calls fn for every message on subject, from the connection's
// dispatch goroutine.
func (b *Broker) Subscribe(subject string, fn func(data []byte)) (cluster.Subscription, error) {
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		fn(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", subject, err)
	}
	return sub, nil
}

// Close drains pending publications and closes the connection.
func (b *Broker) Close() error {
	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return fmt.Errorf("drain broker connection: %w", err)
	}
	return nil
}
