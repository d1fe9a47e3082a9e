package dot

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Render error codes.
const (
	// ErrCodeRenderTool means the external layout tool is not installed.
	ErrCodeRenderTool = "E401"
	// ErrCodeRenderFormat means every requested output format failed.
	ErrCodeRenderFormat = "E402"
)

// FormatNone is the sentinel output format meaning "do not render, keep
// only the DOT text".
const FormatNone = "none"

// ErrRenderSkipped reports that the format list reached the FormatNone
// sentinel (or was empty) before any format succeeded. Not a failure: the
// DOT file stands as the output.
var ErrRenderSkipped = errors.New("rendering skipped")

// RenderError reports that a DOT file could not be rendered by any
// requested format. It never invalidates the analysis that produced the
// file.
type RenderError struct {
	Code    string
	Path    string
	Formats []string
	Err     error
}

func (e *RenderError) Error() string {
	if len(e.Formats) > 0 {
		return fmt.Sprintf("%s: rendering %s failed for formats %s: %v",
			e.Code, e.Path, strings.Join(e.Formats, ","), e.Err)
	}
	return fmt.Sprintf("%s: rendering %s: %v", e.Code, e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// IsRenderError reports whether err is a RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

// renderTool is the external layout command. Tests point it at a stub.
var renderTool = "dot"

// Render lays out the DOT file at path, trying output formats in caller
// preference order and stopping at the first success. The rendered file is
// written next to the DOT file with the format as extension and its path
// returned.
//
// The FormatNone sentinel stops the search without error beyond
// ErrRenderSkipped; format failures are isolated, so an unsupported format
// only moves the search to the next candidate.
func Render(ctx context.Context, path string, formats []string) (string, error) {
	tool := ""
	var failed []string
	var firstErr error
	for _, format := range formats {
		if format == FormatNone {
			return "", ErrRenderSkipped
		}
		if tool == "" {
			t, err := exec.LookPath(renderTool)
			if err != nil {
				return "", &RenderError{Code: ErrCodeRenderTool, Path: path, Err: err}
			}
			tool = t
		}
		out := strings.TrimSuffix(path, ".dot") + "." + format
		cmd := exec.CommandContext(ctx, tool, "-T"+format, "-o", out, path)
		msg, err := cmd.CombinedOutput()
		if err != nil {
			failed = append(failed, format)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s -T%s: %w: %s",
					renderTool, format, err, strings.TrimSpace(string(msg)))
			}
			continue
		}
		return out, nil
	}
	if len(failed) == 0 {
		return "", ErrRenderSkipped
	}
	return "", &RenderError{Code: ErrCodeRenderFormat, Path: path, Formats: failed, Err: firstErr}
}
