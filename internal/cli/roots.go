package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/streamhub/internal/model"
)

// RootsOptions holds flags for the roots command.
type RootsOptions struct {
	*RootOptions
	UserID string
}

// NewRootsCommand creates the roots command.
func NewRootsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RootsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "roots",
		Short: "List the root streams of every store",
		Long: `Open every configured store and print the root streams of a user.

Local roots are listed as-is. Every other store appears as one root named
after the store, holding that store's roots. A store that fails to answer
is logged and left out.

Example:
  streamhub roots --user u1 --config streamhub.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoots(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runRoots(opts *RootsOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.Logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	ctx := cmd.Context()
	reg, err := openRegistry(ctx, cfg, logger)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "open stores", err)
	}
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("closing stores", "error", err)
		}
	}()

	roots, err := reg.AggregateRootStreams(ctx, opts.UserID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "get root streams", err)
	}
	return formatter.Success(roots, formatTree(roots))
}

// formatTree renders streams one per line, children indented under their
// parent.
func formatTree(streams []model.Stream) string {
	if len(streams) == 0 {
		return "(no streams)"
	}
	var sb strings.Builder
	var walk func([]model.Stream, int)
	walk = func(level []model.Stream, depth int) {
		for _, s := range level {
			if sb.Len() > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "%s%s (%s)", strings.Repeat("  ", depth), s.Name, s.ID)
			walk(s.Children, depth+1)
		}
	}
	walk(streams, 0)
	return sb.String()
}
