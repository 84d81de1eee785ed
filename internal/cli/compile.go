package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/roach88/streamhub/internal/querydoc"
	"github.com/roach88/streamhub/internal/querytext"
	"github.com/roach88/streamhub/internal/streamquery"
)

// CompilationResult holds both renditions of a compiled stream query.
type CompilationResult struct {
	Expression string          `json:"expression"`
	Filter     json.RawMessage `json:"filter"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <streams-json>",
		Short: "Compile a stream query",
		Long: `Compile a stream query to the boolean expression evaluated by the SQL
store and to the document filter sent to the document store.

Example:
  streamhub compile '[{"any":["A","B"],"not":["C"]}]'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCompile(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	q, err := streamquery.Parse([]byte(input))
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "parse streams query", err)
	}
	if err := streamquery.Validate(q); err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidInput, "invalid streams query", err)
	}

	filter, err := bson.MarshalExtJSON(querydoc.Compile(q), false, false)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "render filter", err)
	}

	result := CompilationResult{
		Expression: querytext.Compile(q),
		Filter:     filter,
	}
	formatter.VerboseLog("Compiled %d block(s)", len(q))

	text := fmt.Sprintf("expression: %s\nfilter: %s", result.Expression, result.Filter)
	return formatter.Success(result, text)
}
