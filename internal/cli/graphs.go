package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p4analysis/p4deps/internal/depgraph"
	"github.com/p4analysis/p4deps/internal/dot"
	"github.com/p4analysis/p4deps/internal/hlir"
	"github.com/p4analysis/p4deps/internal/report"
)

// Graph kinds the graphs command can produce.
var validGraphKinds = []string{"deps", "table", "parse"}

// GraphsOptions holds flags for the graphs command.
type GraphsOptions struct {
	*RootOptions
	Input InputOptions

	GenDir          string
	Kinds           []string
	Fine            bool
	NoReduce        bool
	CriticalOnly    bool
	CountConditions bool
	NoControlFlow   bool
	ShowConditions  bool
	ShowFields      bool
	Debug           bool
	Formats         []string
	ReportDB        string
}

// EdgeReport is one dependency edge in command output.
type EdgeReport struct {
	Src    string `json:"src"`
	Dst    string `json:"dst"`
	Kind   string `json:"kind"`
	Fields string `json:"fields,omitempty"`
}

// PipelineGraphReport summarizes one pipeline's dependency graph.
type PipelineGraphReport struct {
	Pipeline      string       `json:"pipeline"`
	Mode          string       `json:"mode"`
	Events        int          `json:"events"`
	Edges         int          `json:"edges"`
	MinStages     int          `json:"min_stages"`
	SlotLength    int          `json:"slot_length,omitempty"`
	CriticalEdges []EdgeReport `json:"critical_edges,omitempty"`
	Fingerprint   string       `json:"fingerprint"`
}

// GraphsResult is the graphs command's success payload.
type GraphsResult struct {
	Program   string                `json:"program"`
	MaxStages int                   `json:"max_stages"`
	Pipelines []PipelineGraphReport `json:"pipelines,omitempty"`
	Files     []string              `json:"files"`
}

// NewGraphsCommand creates the graphs command.
func NewGraphsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graphs <input>",
		Short: "Build dependency graphs and export DOT files",
		Long: `Build table dependency graphs for every pipeline of a P4 program and
export them as Graphviz DOT files, optionally rendered to image formats.

The input is an HLIR snapshot (.json) or a P4 source file; sources are
translated through the binary named by --frontend. Coarse graphs are
transitively reduced unless --no-reduce is given; --fine switches to
match/action granularity and critical-path scheduling.

Examples:
  p4deps graphs program.json --gen-dir out
  p4deps graphs program.json --fine --critical-only --show-fields
  p4deps graphs program.p4 --frontend p4-hlir-json -I includes -D TARGET=sim`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraphs(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GenDir, "gen-dir", ".", "destination directory for generated files")
	cmd.Flags().StringSliceVar(&opts.Kinds, "graphs", []string{"deps"}, "graph kinds to produce (deps,table,parse)")
	cmd.Flags().BoolVar(&opts.Fine, "fine", false, "split tables into match and action events")
	cmd.Flags().BoolVar(&opts.NoReduce, "no-reduce", false, "skip transitive reduction (coarse mode only)")
	cmd.Flags().BoolVar(&opts.CriticalOnly, "critical-only", false, "draw only critical-path events and edges (requires --fine)")
	cmd.Flags().BoolVar(&opts.CountConditions, "count-conditions", false, "conditionals occupy a stage of their own")
	cmd.Flags().BoolVar(&opts.NoControlFlow, "no-control-flow", false, "suppress control-flow-only edges")
	cmd.Flags().BoolVar(&opts.ShowConditions, "show-conditions", false, "include condition source text in labels")
	cmd.Flags().BoolVar(&opts.ShowFields, "show-fields", false, "annotate edges with the fields behind them")
	cmd.Flags().BoolVar(&opts.Debug, "debug", false, "stage and width annotations in labels plus a stage dump")
	cmd.Flags().StringSliceVar(&opts.Formats, "formats", []string{"png"}, `render formats tried in order ("none" skips rendering)`)
	cmd.Flags().StringVar(&opts.ReportDB, "report-db", "", "append run summaries to this history database")
	addInputFlags(cmd, &opts.Input)

	return cmd
}

func runGraphs(opts *GraphsOptions, input string, cmd *cobra.Command) error {
	ctx := context.Background()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if err := checkModeFlags(opts.Fine, opts.NoReduce, opts.CriticalOnly); err != nil {
		return configError(formatter, err)
	}
	kinds, err := parseGraphKinds(opts.Kinds)
	if err != nil {
		return configError(formatter, err)
	}
	if err := checkGenDir(opts.GenDir); err != nil {
		return configError(formatter, err)
	}

	prog, err := loadProgram(ctx, input, opts.Input, formatter)
	if err != nil {
		return configError(formatter, err)
	}

	mode := depgraph.Coarse
	if opts.Fine {
		mode = depgraph.Fine
	}

	result := &GraphsResult{Program: prog.Name}
	var runs []report.Run

	if kinds["parse"] {
		path := filepath.Join(opts.GenDir, prog.Name+".parser.dot")
		err := writeDotFile(path, func(w io.Writer) error {
			return dot.WriteParseGraph(w, prog)
		})
		if err != nil {
			return analysisError(formatter, err)
		}
		formatter.VerboseLog("Wrote %s", path)
		result.Files = append(result.Files, path)
	}

	for _, pl := range prog.Pipelines {
		if kinds["table"] {
			path := filepath.Join(opts.GenDir, prog.Name+"."+pl.Name+".tables.dot")
			err := writeDotFile(path, func(w io.Writer) error {
				return dot.WriteTableGraph(w, prog, pl)
			})
			if err != nil {
				return analysisError(formatter, err)
			}
			formatter.VerboseLog("Wrote %s", path)
			result.Files = append(result.Files, path)
		}
		if kinds["deps"] {
			rep, path, err := buildDepsGraph(opts, prog, pl, mode, formatter)
			if err != nil {
				return analysisError(formatter, err)
			}
			result.Pipelines = append(result.Pipelines, *rep)
			if rep.MinStages > result.MaxStages {
				result.MaxStages = rep.MinStages
			}
			result.Files = append(result.Files, path)
			runs = append(runs, report.Run{
				Program:     prog.Name,
				Pipeline:    pl.Name,
				Mode:        rep.Mode,
				MinStages:   rep.MinStages,
				SlotLength:  rep.SlotLength,
				Events:      rep.Events,
				Edges:       rep.Edges,
				Fingerprint: rep.Fingerprint,
			})
		}
	}

	rendered := renderFiles(ctx, formatter, result.Files, opts.Formats)
	result.Files = append(result.Files, rendered...)

	if opts.ReportDB != "" {
		appendRuns(ctx, formatter, opts.ReportDB, runs)
	}

	return outputGraphsSuccess(formatter, result, opts)
}

// checkModeFlags rejects flag combinations that select no valid build
// configuration.
func checkModeFlags(fine, noReduce, criticalOnly bool) error {
	if noReduce && fine {
		return &hlir.LoadError{Code: ErrCodeBadFlags, Message: "--no-reduce applies to coarse graphs only; fine graphs are never reduced"}
	}
	if criticalOnly && !fine {
		return &hlir.LoadError{Code: ErrCodeBadFlags, Message: "--critical-only requires --fine"}
	}
	return nil
}

// parseGraphKinds validates the --graphs selection.
func parseGraphKinds(kinds []string) (map[string]bool, error) {
	selected := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		ok := false
		for _, valid := range validGraphKinds {
			if k == valid {
				ok = true
				break
			}
		}
		if !ok {
			return nil, &hlir.LoadError{
				Code:    ErrCodeBadFlags,
				Message: fmt.Sprintf("unknown graph kind %q: must be one of %s", k, strings.Join(validGraphKinds, ", ")),
			}
		}
		selected[k] = true
	}
	return selected, nil
}

// buildDepsGraph builds, reduces, schedules, and exports the dependency
// graph of one pipeline.
func buildDepsGraph(opts *GraphsOptions, prog *hlir.Program, pl *hlir.Pipeline, mode depgraph.Mode, formatter *OutputFormatter) (*PipelineGraphReport, string, error) {
	g, err := depgraph.Build(prog, pl, mode)
	if err != nil {
		return nil, "", err
	}
	if mode == depgraph.Coarse && !opts.NoReduce {
		g, err = g.Reduce()
		if err != nil {
			return nil, "", err
		}
	}
	res, err := depgraph.Schedule(g, depgraph.ScheduleOptions{CountConditionals: opts.CountConditions})
	if err != nil {
		return nil, "", err
	}
	formatter.VerboseLog("Pipeline %s: %d event(s), %d edge(s), %d stage(s)",
		pl.Name, g.NumEvents(), g.NumEdges(), res.MinStages)
	if opts.Debug {
		dumpStages(formatter.GetErrWriter(), g, res)
	}

	path := filepath.Join(opts.GenDir, prog.Name+"."+pl.Name+".deps.dot")
	wopts := dot.Options{
		ShowFields:     opts.ShowFields,
		ShowConditions: opts.ShowConditions,
		NoControlFlow:  opts.NoControlFlow,
		CriticalOnly:   opts.CriticalOnly,
		Debug:          opts.Debug,
	}
	err = writeDotFile(path, func(w io.Writer) error {
		return dot.WriteDependencyGraph(w, g, res, wopts)
	})
	if err != nil {
		return nil, "", err
	}
	formatter.VerboseLog("Wrote %s", path)

	rep := &PipelineGraphReport{
		Pipeline:    pl.Name,
		Mode:        mode.String(),
		Events:      g.NumEvents(),
		Edges:       g.NumEdges(),
		MinStages:   res.MinStages,
		SlotLength:  res.SlotLength,
		Fingerprint: depgraph.Fingerprint(g),
	}
	for _, e := range res.CriticalEdges {
		rep.CriticalEdges = append(rep.CriticalEdges, edgeReport(g, e))
	}
	return rep, path, nil
}

// dumpStages prints the earliest-stage assignment, one diagnostic line per
// occupied stage or slot.
func dumpStages(w io.Writer, g *depgraph.Graph, res *depgraph.Result) {
	unit := "stage"
	if g.Mode() == depgraph.Fine {
		unit = "slot"
	}
	limit := 0
	for _, e := range res.Earliest {
		if e+1 > limit {
			limit = e + 1
		}
	}
	for s := 0; s < limit; s++ {
		var names []string
		for _, ev := range g.Events() {
			if res.Earliest[ev.ID] == s {
				names = append(names, ev.Name)
			}
		}
		if len(names) > 0 {
			fmt.Fprintf(w, "%s %s %d: %s\n", g.Pipeline(), unit, s, strings.Join(names, ", "))
		}
	}
}

// edgeReport flattens one edge for command output.
func edgeReport(g *depgraph.Graph, e *depgraph.Edge) EdgeReport {
	r := EdgeReport{
		Src:  g.Event(e.Src).Name,
		Dst:  g.Event(e.Dst).Name,
		Kind: e.Kind.String(),
	}
	if !e.Fields.Empty() {
		r.Fields = g.Program().FieldNames(e.Fields)
	}
	return r
}

// writeDotFile creates path and streams one graph into it.
func writeDotFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// renderFiles renders every emitted DOT file. Renderer problems degrade to
// warnings: the DOT files themselves are already on disk.
func renderFiles(ctx context.Context, formatter *OutputFormatter, paths, formats []string) []string {
	var rendered []string
	for _, p := range paths {
		out, err := dot.Render(ctx, p, formats)
		if errors.Is(err, dot.ErrRenderSkipped) {
			continue
		}
		if err != nil {
			formatter.Warn("%v", err)
			continue
		}
		formatter.VerboseLog("Rendered %s", out)
		rendered = append(rendered, out)
	}
	return rendered
}

// appendRuns records run summaries in the history database. History is
// strictly downstream of the analysis, so failures here only warn.
func appendRuns(ctx context.Context, formatter *OutputFormatter, path string, runs []report.Run) {
	st, err := report.Open(path)
	if err != nil {
		formatter.Warn("opening report store: %v", err)
		return
	}
	defer st.Close()
	for _, r := range runs {
		if _, err := st.AppendRun(ctx, r); err != nil {
			formatter.Warn("recording run: %v", err)
			return
		}
	}
	formatter.VerboseLog("Recorded %d run(s) in %s", len(runs), path)
}

// outputGraphsSuccess outputs the graphs command result.
func outputGraphsSuccess(formatter *OutputFormatter, result *GraphsResult, opts *GraphsOptions) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	if len(result.Pipelines) > 0 {
		fmt.Fprintf(formatter.Writer, "✓ %s: %d pipeline(s), max stages %d\n\n",
			result.Program, len(result.Pipelines), result.MaxStages)
		for _, rep := range result.Pipelines {
			fmt.Fprintf(formatter.Writer, "  %s (%s): %d event(s), %d edge(s), min stages %d",
				rep.Pipeline, rep.Mode, rep.Events, rep.Edges, rep.MinStages)
			if rep.SlotLength > 0 {
				fmt.Fprintf(formatter.Writer, " (%d slots)", rep.SlotLength)
			}
			fmt.Fprintln(formatter.Writer)
			for _, e := range rep.CriticalEdges {
				if e.Fields != "" {
					fmt.Fprintf(formatter.Writer, "    critical: %s -> %s [%s: %s]\n", e.Src, e.Dst, e.Kind, e.Fields)
				} else {
					fmt.Fprintf(formatter.Writer, "    critical: %s -> %s [%s]\n", e.Src, e.Dst, e.Kind)
				}
			}
		}
		fmt.Fprintln(formatter.Writer)
	} else {
		fmt.Fprintf(formatter.Writer, "✓ %s\n\n", result.Program)
	}

	if len(result.Files) > 0 {
		fmt.Fprintln(formatter.Writer, "Wrote:")
		for _, f := range result.Files {
			fmt.Fprintf(formatter.Writer, "  %s\n", f)
		}
	}

	return nil
}
