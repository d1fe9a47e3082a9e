package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p4analysis/p4deps/internal/depgraph"
)

// StagesOptions holds flags for the stages command.
type StagesOptions struct {
	*RootOptions
	Input InputOptions

	Fine            bool
	CountConditions bool
}

// PipelineStagesReport summarizes the schedule of one pipeline.
type PipelineStagesReport struct {
	Pipeline       string       `json:"pipeline"`
	Mode           string       `json:"mode"`
	MinStages      int          `json:"min_stages"`
	SlotLength     int          `json:"slot_length,omitempty"`
	CriticalEvents []string     `json:"critical_events,omitempty"`
	CriticalEdges  []EdgeReport `json:"critical_edges,omitempty"`
}

// StagesResult is the stages command's success payload.
type StagesResult struct {
	Program   string                 `json:"program"`
	MaxStages int                    `json:"max_stages"`
	Pipelines []PipelineStagesReport `json:"pipelines"`
}

// NewStagesCommand creates the stages command.
func NewStagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StagesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stages <input>",
		Short: "Print pipeline stage requirements",
		Long: `Compute the minimum number of pipeline stages each pipeline of a P4
program needs, without writing any files.

Coarse granularity (the default) reports the stage count under the
all-tables-atomic model. With --fine, tables split into match and action
phases and the command reports the critical path instead: the longest
dependency chain and every table on it.

Examples:
  p4deps stages program.json
  p4deps stages program.json --fine --count-conditions`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fine, "fine", false, "split tables into match and action events")
	cmd.Flags().BoolVar(&opts.CountConditions, "count-conditions", false, "conditionals occupy a stage of their own")
	addInputFlags(cmd, &opts.Input)

	return cmd
}

func runStages(opts *StagesOptions, input string, cmd *cobra.Command) error {
	ctx := context.Background()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	prog, err := loadProgram(ctx, input, opts.Input, formatter)
	if err != nil {
		return configError(formatter, err)
	}

	mode := depgraph.Coarse
	if opts.Fine {
		mode = depgraph.Fine
	}

	result := &StagesResult{Program: prog.Name}
	for _, pl := range prog.Pipelines {
		// Reduction never changes stage counts, so the graph is scheduled
		// as built.
		g, err := depgraph.Build(prog, pl, mode)
		if err != nil {
			return analysisError(formatter, err)
		}
		res, err := depgraph.Schedule(g, depgraph.ScheduleOptions{CountConditionals: opts.CountConditions})
		if err != nil {
			return analysisError(formatter, err)
		}

		rep := PipelineStagesReport{
			Pipeline:   pl.Name,
			Mode:       mode.String(),
			MinStages:  res.MinStages,
			SlotLength: res.SlotLength,
		}
		if mode == depgraph.Fine {
			for _, ev := range g.Events() {
				if res.Critical[ev.ID] {
					rep.CriticalEvents = append(rep.CriticalEvents, ev.Name)
				}
			}
			for _, e := range res.CriticalEdges {
				rep.CriticalEdges = append(rep.CriticalEdges, edgeReport(g, e))
			}
		}
		result.Pipelines = append(result.Pipelines, rep)
		if rep.MinStages > result.MaxStages {
			result.MaxStages = rep.MinStages
		}
	}

	return outputStagesSuccess(formatter, result)
}

// outputStagesSuccess outputs the stages command result.
func outputStagesSuccess(formatter *OutputFormatter, result *StagesResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ %s: max stages %d\n\n", result.Program, result.MaxStages)
	for _, rep := range result.Pipelines {
		fmt.Fprintf(formatter.Writer, "  %s: min stages %d", rep.Pipeline, rep.MinStages)
		if rep.SlotLength > 0 {
			fmt.Fprintf(formatter.Writer, " (%d slots)", rep.SlotLength)
		}
		fmt.Fprintln(formatter.Writer)
		if len(rep.CriticalEvents) > 0 {
			fmt.Fprintf(formatter.Writer, "    critical path: %s\n", strings.Join(rep.CriticalEvents, ", "))
		}
		for _, e := range rep.CriticalEdges {
			if e.Fields != "" {
				fmt.Fprintf(formatter.Writer, "    critical: %s -> %s [%s: %s]\n", e.Src, e.Dst, e.Kind, e.Fields)
			} else {
				fmt.Fprintf(formatter.Writer, "    critical: %s -> %s [%s]\n", e.Src, e.Dst, e.Kind)
			}
		}
	}

	return nil
}
