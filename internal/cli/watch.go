package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/cluster"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Max int // stop after this many invalidations; 0 runs until interrupted
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print cache invalidations published on the cluster",
		Long: `Subscribe to the configured broker and print every cache invalidation
other processes publish, one per line, until interrupted.

Example:
  STREAMHUB_BROKER_URL=nats://localhost:4222 streamhub watch --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Max, "max", 0, "exit after this many invalidations")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	if opts.Max < 0 {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "invalid --max", fmt.Errorf("must be >= 0, got %d", opts.Max))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	broker, err := opts.ConnectBroker(cfg.Broker, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBroker, "connect broker", err)
	}
	defer func() {
		if err := broker.Close(); err != nil {
			logger.Warn("closing broker", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	printer := &invalidationPrinter{
		formatter: formatter,
		logger:    logger,
		max:       opts.Max,
		stop:      cancel,
	}
	relay := cluster.NewRelay(broker, printer,
		cluster.WithSubject(cfg.Broker.Subject),
		cluster.WithLogger(logger),
	)
	if err := relay.Start(ctx); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBroker, "subscribe", err)
	}
	logger.Info("watching cache invalidations", "subject", cfg.Broker.Subject)

	<-ctx.Done()

	if err := relay.Close(); err != nil {
		logger.Warn("closing relay", "error", err)
	}
	stats := relay.Stats()
	logger.Info("watch stopped",
		"received", stats.Received,
		"malformed", stats.Malformed)
	return nil
}

// invalidationPrinter writes each invalidation delivered by the relay.
type invalidationPrinter struct {
	formatter *OutputFormatter
	logger    *slog.Logger
	max       int
	stop      context.CancelFunc

	mu   sync.Mutex
	seen int
}

// watchLine is the JSON form of one printed invalidation.
type watchLine struct {
	Topic   string      `json:"topic"`
	Message bus.Message `json:"message"`
}

func (p *invalidationPrinter) DeliverFromCluster(topic string, msg bus.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.max > 0 && p.seen >= p.max {
		return
	}
	p.seen++

	var err error
	if p.formatter.Format == "json" {
		err = json.NewEncoder(p.formatter.Writer).Encode(watchLine{Topic: topic, Message: msg})
	} else {
		_, err = fmt.Fprintln(p.formatter.Writer, describeInvalidation(topic, msg))
	}
	if err != nil {
		p.logger.Warn("writing invalidation", "error", err)
	}

	if p.max > 0 && p.seen >= p.max {
		p.stop()
	}
}

func describeInvalidation(topic string, msg bus.Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s topic=%s", msg.Action, topic)
	for _, kv := range [][2]string{
		{"user", msg.UserID},
		{"username", msg.Username},
		{"access_id", msg.AccessID},
		{"access_token", msg.AccessToken},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&sb, " %s=%s", kv[0], kv[1])
		}
	}
	return sb.String()
}
