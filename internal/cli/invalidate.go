package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/streamhub/internal/bus"
	"github.com/roach88/streamhub/internal/cache"
	"github.com/roach88/streamhub/internal/cachesys"
)

// InvalidateOptions holds flags for the invalidate command.
type InvalidateOptions struct {
	*RootOptions
	UserID      string
	Username    string
	AccessID    string
	AccessToken string
}

// InvalidationResult describes the invalidation published.
type InvalidationResult struct {
	Action  bus.Action  `json:"action"`
	Topic   string      `json:"topic"`
	Message bus.Message `json:"message"`
}

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvalidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Publish a cache invalidation to the cluster",
		Long: `Publish a cache invalidation so every process drops the cached data.

  --user <id>                          drop all cached data of a user
  --user <id> --access-id <id>         drop one access of a user
  --user <id> --access-token <token>   same, by token
  --username <name>                    drop a username mapping and its user's data

Example:
  streamhub invalidate --user u1 --access-token tok-123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvalidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&opts.Username, "username", "", "username")
	cmd.Flags().StringVar(&opts.AccessID, "access-id", "", "access id (with --user)")
	cmd.Flags().StringVar(&opts.AccessToken, "access-token", "", "access token (with --user)")

	return cmd
}

// invalidation returns the action selected by the flags.
func (o *InvalidateOptions) invalidation() (bus.Action, error) {
	hasAccess := o.AccessID != "" || o.AccessToken != ""
	switch {
	case o.Username != "" && (o.UserID != "" || hasAccess):
		return "", errors.New("--username cannot be combined with --user or access flags")
	case o.Username != "":
		return bus.ActionUnsetUser, nil
	case o.UserID == "" && hasAccess:
		return "", errors.New("--access-id and --access-token require --user")
	case o.UserID == "":
		return "", errors.New("one of --user or --username is required")
	case hasAccess:
		return bus.ActionUnsetAccessLogic, nil
	default:
		return bus.ActionUnsetUserData, nil
	}
}

func runInvalidate(opts *InvalidateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	action, err := opts.invalidation()
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "invalid flags", err)
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

	sys := cachesys.New(cachesys.Config{
		CacheEnabled: cfg.Cache.Enabled,
		Subject:      cfg.Broker.Subject,
		QueueSize:    cfg.Cache.QueueSize,
		Logger:       logger,
	}, broker)
	if err := sys.Start(cmd.Context()); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBroker, "start cache system", err)
	}

	result := InvalidationResult{Action: action}
	switch action {
	case bus.ActionUnsetUser:
		sys.Cache.UnsetUser(opts.Username)
		result.Topic = bus.TopicUnsetUser
		result.Message = bus.Message{Action: action, Username: opts.Username}
	case bus.ActionUnsetAccessLogic:
		ref := cache.AccessRef{ID: opts.AccessID, Token: opts.AccessToken}
		sys.Cache.UnsetAccessLogic(opts.UserID, ref)
		result.Topic = opts.UserID
		result.Message = bus.Message{Action: action, UserID: opts.UserID, AccessID: ref.ID, AccessToken: ref.Token}
	default:
		sys.Cache.UnsetUserData(opts.UserID)
		result.Topic = opts.UserID
		result.Message = bus.Message{Action: action, UserID: opts.UserID}
	}

	// Close flushes the relay's outbound queue.
	if err := sys.Close(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeBroker, "publish invalidation", err)
	}
	if stats := sys.Relay.Stats(); stats.Dropped > 0 {
		return formatter.Fail(ExitCommandError, ErrCodeBroker, "publish invalidation",
			fmt.Errorf("%d message(s) dropped", stats.Dropped))
	}

	return formatter.Success(result, "published "+describeInvalidation(result.Topic, result.Message))
}
