package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/p4analysis/p4deps/internal/hlir"
	"github.com/p4analysis/p4deps/internal/report"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Program  string
	Limit    int
}

// HistoryResult holds the runs read back from the history database.
type HistoryResult struct {
	Count int          `json:"count"`
	Runs  []report.Run `json:"runs"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs",
		Long: `List run summaries recorded through the --report-db flag of the graphs
command, newest first.

Each record carries the program and pipeline analyzed, the granularity,
the stage count, and the graph fingerprint, so two runs over the same
input are recognizable without re-analyzing anything.

Examples:
  p4deps history --db ./runs.db
  p4deps history --db ./runs.db --program basic_routing --limit 10
  p4deps history --db ./runs.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the history database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Program, "program", "", "only runs for this program")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum runs to list (0 = all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Opening would create an empty database; reads should not.
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return configError(formatter, &hlir.LoadError{Code: ErrCodeNoDatabase, Message: "history database not found", Path: opts.Database})
	}

	st, err := report.Open(opts.Database)
	if err != nil {
		return configError(formatter, err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx, report.ListOptions{Program: opts.Program, Limit: opts.Limit})
	if err != nil {
		return configError(formatter, err)
	}

	result := &HistoryResult{Count: len(runs), Runs: runs}
	if result.Runs == nil {
		result.Runs = []report.Run{}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	if result.Count == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded")
		return nil
	}
	fmt.Fprintf(formatter.Writer, "%d run(s)\n\n", result.Count)
	for _, r := range result.Runs {
		fmt.Fprintf(formatter.Writer, "  %s  %s/%s  %-6s  %d stage(s)  %s\n",
			r.CreatedAt, r.Program, r.Pipeline, r.Mode, r.MinStages, shortFingerprint(r.Fingerprint))
	}
	return nil
}

// shortFingerprint abbreviates a graph fingerprint for column output.
func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
