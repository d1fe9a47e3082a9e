package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationResult holds the validate command's outcome.
type ValidationResult struct {
	Valid        bool   `json:"valid"`
	Program      string `json:"program,omitempty"`
	Headers      int    `json:"headers,omitempty"`
	Instances    int    `json:"instances,omitempty"`
	Actions      int    `json:"actions,omitempty"`
	Tables       int    `json:"tables,omitempty"`
	Conditionals int    `json:"conditionals,omitempty"`
	Pipelines    int    `json:"pipelines,omitempty"`
	ParseStates  int    `json:"parse_states,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InputOptions{}

	cmd := &cobra.Command{
		Use:   "validate <input>",
		Short: "Validate an HLIR snapshot without building graphs",
		Long: `Validate an HLIR snapshot and any supplementary primitive documents
without running the dependency analysis.

Performs schema validation and reference resolution: every field, action,
primitive, and successor named anywhere in the document must exist. Faster
than graphs for checking front-end output during development.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, args[0], cmd)
		},
	}

	addInputFlags(cmd, opts)

	return cmd
}

func runValidate(rootOpts *RootOptions, opts *InputOptions, input string, cmd *cobra.Command) error {
	ctx := context.Background()

	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   rootOpts.Verbose,
	}

	prog, err := loadProgram(ctx, input, *opts, formatter)
	if err != nil {
		// A snapshot the command could not even read is a command error;
		// a snapshot that fails validation is the finding this command
		// exists to report.
		if isAccessError(err) {
			return configError(formatter, err)
		}
		return analysisError(formatter, err)
	}

	result := ValidationResult{
		Valid:        true,
		Program:      prog.Name,
		Headers:      prog.HeaderTypes.Len(),
		Instances:    prog.Instances.Len(),
		Actions:      prog.Actions.Len(),
		Tables:       prog.Tables.Len(),
		Conditionals: prog.Conditionals.Len(),
		Pipelines:    len(prog.Pipelines),
		ParseStates:  prog.ParseStates.Len(),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ %s valid: %d table(s), %d action(s), %d conditional(s), %d pipeline(s)\n",
		result.Program, result.Tables, result.Actions, result.Conditionals, result.Pipelines)
	return nil
}
