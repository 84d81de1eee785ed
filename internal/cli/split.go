package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/streamhub/internal/router"
	"github.com/roach88/streamhub/internal/streamquery"
)

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <query-json>",
		Short: "Split an events query by store",
		Long: `Split an events query into the sub-queries sent to each store.

Stream ids are stripped of their store prefix. Stores are checked against
the configuration; no store is opened.

Example:
  streamhub split '{"streams":[{"any":[":archive:2024"]},{"any":["diary"]}],"limit":20}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSplit(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	var q streamquery.EventsGetQuery
	if err := json.Unmarshal([]byte(input), &q); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "parse events query", err)
	}

	r := router.New(
		router.WithRegistry(configuredStores(cfg)),
		router.WithLogger(opts.Logger()),
	)
	parts, err := r.SplitByStore(q)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "split query", err)
	}

	ids := make([]string, 0, len(parts))
	for id := range parts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for i, id := range ids {
		data, err := json.Marshal(parts[id])
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeGeneric, "render query", err)
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", id, data)
	}
	return formatter.Success(parts, sb.String())
}
