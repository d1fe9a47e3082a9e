package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/p4analysis/p4deps/internal/depgraph"
	"github.com/p4analysis/p4deps/internal/dot"
	"github.com/p4analysis/p4deps/internal/hlir"
)

// CLI-side error codes. They continue the E0xx configuration range that
// internal/hlir starts; analysis and rendering errors keep the codes their
// packages assign (E3xx, E4xx).
const (
	ErrCodeBadOutputDir = "E006" // destination directory missing or not a directory
	ErrCodeFrontend     = "E007" // external front-end missing or failed
	ErrCodeBadFlags     = "E008" // conflicting or malformed flag values
	ErrCodeNoDatabase   = "E009" // history database not found
)

// InputOptions describes how an input path becomes an HLIR program. A
// .json input is a snapshot and loads directly; any other input is P4
// source and goes through the external front-end first.
type InputOptions struct {
	Frontend   string   // front-end binary producing HLIR snapshots
	Defines    []string // preprocessor defines, passed through untouched
	Includes   []string // include directories, passed through untouched
	Primitives []string // supplementary primitive documents
}

// addInputFlags wires the shared input flags onto a command.
func addInputFlags(cmd *cobra.Command, opts *InputOptions) {
	cmd.Flags().StringVar(&opts.Frontend, "frontend", "p4c-hlir", "front-end binary producing HLIR snapshots from P4 sources")
	cmd.Flags().StringArrayVarP(&opts.Defines, "define", "D", nil, "preprocessor define passed through to the front-end")
	cmd.Flags().StringArrayVarP(&opts.Includes, "include", "I", nil, "include directory passed through to the front-end")
	cmd.Flags().StringSliceVar(&opts.Primitives, "primitives", nil, "supplementary primitive documents (YAML or JSON)")
}

// loadProgram resolves an input path to a loaded Program.
func loadProgram(ctx context.Context, path string, opts InputOptions, formatter *OutputFormatter) (*hlir.Program, error) {
	prims, err := loadPrimitives(opts.Primitives, formatter)
	if err != nil {
		return nil, err
	}
	loadOpts := hlir.LoadOptions{Primitives: prims}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		formatter.VerboseLog("Loading HLIR snapshot %s", path)
		return hlir.LoadFile(path, loadOpts)
	}

	snapshot, err := runFrontend(ctx, path, opts, formatter)
	if err != nil {
		return nil, err
	}
	defer os.Remove(snapshot)

	data, err := os.ReadFile(snapshot)
	if err != nil {
		return nil, &hlir.LoadError{Code: hlir.ErrCodeRead, Message: fmt.Sprintf("reading front-end output: %v", err), Path: path}
	}
	prog, err := hlir.Load(data, loadOpts)
	if err != nil {
		// Point load errors at the user's input, not the temp snapshot.
		var lerr *hlir.LoadError
		if errors.As(err, &lerr) && lerr.Path == "" {
			lerr.Path = path
		}
		return nil, err
	}
	return prog, nil
}

// loadPrimitives reads and concatenates every supplementary primitive
// document in flag order. Later documents win on name collisions when the
// loader merges them over the built-in set.
func loadPrimitives(paths []string, formatter *OutputFormatter) ([]*hlir.Primitive, error) {
	var prims []*hlir.Primitive
	for _, p := range paths {
		doc, err := hlir.LoadPrimitiveDoc(p)
		if err != nil {
			return nil, err
		}
		formatter.VerboseLog("Loaded %d primitive(s) from %s", len(doc), p)
		prims = append(prims, doc...)
	}
	return prims, nil
}

// runFrontend invokes the external front-end on a P4 source file and
// returns the path of the temporary snapshot it produced. The caller owns
// the temp file.
func runFrontend(ctx context.Context, path string, opts InputOptions, formatter *OutputFormatter) (string, error) {
	if opts.Frontend == "" {
		return "", &hlir.LoadError{Code: ErrCodeFrontend, Message: "P4 source input requires --frontend", Path: path}
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", &hlir.LoadError{Code: hlir.ErrCodeNotFound, Message: "input not found", Path: path}
		}
		return "", &hlir.LoadError{Code: hlir.ErrCodeRead, Message: err.Error(), Path: path}
	}

	out, err := os.CreateTemp("", "p4deps-*.json")
	if err != nil {
		return "", &hlir.LoadError{Code: ErrCodeFrontend, Message: fmt.Sprintf("creating snapshot file: %v", err), Path: path}
	}
	out.Close()

	args := []string{"--json", out.Name()}
	for _, d := range opts.Defines {
		args = append(args, "-D", d)
	}
	for _, dir := range opts.Includes {
		args = append(args, "-I", dir)
	}
	args = append(args, path)

	formatter.VerboseLog("Running front-end: %s %s", opts.Frontend, strings.Join(args, " "))
	if combined, err := exec.CommandContext(ctx, opts.Frontend, args...).CombinedOutput(); err != nil {
		os.Remove(out.Name())
		msg := strings.TrimSpace(string(combined))
		if msg == "" {
			msg = err.Error()
		}
		return "", &hlir.LoadError{Code: ErrCodeFrontend, Message: fmt.Sprintf("front-end failed: %s", msg), Path: path}
	}
	return out.Name(), nil
}

// checkGenDir verifies the destination directory before any analysis runs.
func checkGenDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return &hlir.LoadError{Code: ErrCodeBadOutputDir, Message: "output directory not found", Path: dir}
	}
	if err != nil {
		return &hlir.LoadError{Code: ErrCodeBadOutputDir, Message: err.Error(), Path: dir}
	}
	if !info.IsDir() {
		return &hlir.LoadError{Code: ErrCodeBadOutputDir, Message: "not a directory", Path: dir}
	}
	return nil
}

// errorCode extracts the structured code and message carried by err.
func errorCode(err error) (string, string) {
	var lerr *hlir.LoadError
	if errors.As(err, &lerr) {
		msg := lerr.Message
		if lerr.Path != "" {
			msg = lerr.Path + ": " + msg
		}
		return lerr.Code, msg
	}
	var serr *depgraph.StructuralError
	if errors.As(err, &serr) {
		msg := serr.Message
		if serr.Pipeline != "" {
			msg = "pipeline " + serr.Pipeline + ": " + msg
		}
		return depgraph.ErrCodeStructural, msg
	}
	var cerr *depgraph.CycleError
	if errors.As(err, &cerr) {
		return depgraph.ErrCodeCycle, fmt.Sprintf("pipeline %s: no topological order", cerr.Pipeline)
	}
	var rerr *dot.RenderError
	if errors.As(err, &rerr) {
		return rerr.Code, rerr.Error()
	}
	return hlir.ErrCodeGeneric, err.Error()
}

// configError reports a configuration-class problem (exit code 2).
func configError(formatter *OutputFormatter, err error) error {
	code, message := errorCode(err)
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// analysisError reports a failed analysis (exit code 1).
func analysisError(formatter *OutputFormatter, err error) error {
	code, message := errorCode(err)
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", code, message))
}

// isAccessError reports whether err is about reaching the input at all
// rather than about its content.
func isAccessError(err error) bool {
	var lerr *hlir.LoadError
	if !errors.As(err, &lerr) {
		return false
	}
	switch lerr.Code {
	case hlir.ErrCodeRead, hlir.ErrCodeNotFound, ErrCodeFrontend:
		return true
	}
	return false
}
