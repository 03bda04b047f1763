package build

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// ErrInternal marks a scheduler/backend contract violation, such as a
// missing externs record for an already-built module. It indicates a defect
// in this program, never bad user input.
var ErrInternal = errors.New("internal consistency error")

// CompileError aggregates the front-end diagnostics of a failed build. It
// carries every diagnostic collected before the walk aborted, warnings
// included, so one failed invocation reports everything it learned.
type CompileError struct {
	Diags hcl.Diagnostics
}

func (e *CompileError) Error() string {
	var errCount int
	var first string
	for _, d := range e.Diags {
		if d.Severity == hcl.DiagError {
			errCount++
			if first == "" {
				first = d.Summary
			}
		}
	}
	if errCount == 1 {
		return fmt.Sprintf("build failed: %s", first)
	}
	return fmt.Sprintf("build failed with %d errors (first: %s)", errCount, first)
}

// SortDiagnostics orders diagnostics by file and line so aggregated output
// is deterministic regardless of the concurrent compilation order that
// produced it.
func SortDiagnostics(diags hcl.Diagnostics) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		af, bf := "", ""
		al, bl := 0, 0
		if a.Subject != nil {
			af, al = a.Subject.Filename, a.Subject.Start.Line
		}
		if b.Subject != nil {
			bf, bl = b.Subject.Filename, b.Subject.Start.Line
		}
		if af != bf {
			return af < bf
		}
		return al < bl
	})
}

// RenderDiagnostics formats diagnostics one per line for logs and the
// development-mode stand-in payload. Output is deterministic for sorted
// diagnostics.
func RenderDiagnostics(diags hcl.Diagnostics) string {
	var b strings.Builder
	for _, d := range diags {
		sev := "error"
		if d.Severity == hcl.DiagWarning {
			sev = "warning"
		}
		if d.Subject != nil {
			fmt.Fprintf(&b, "%s:%d: %s: %s", d.Subject.Filename, d.Subject.Start.Line, sev, d.Summary)
		} else {
			fmt.Fprintf(&b, "%s: %s", sev, d.Summary)
		}
		if d.Detail != "" {
			fmt.Fprintf(&b, " (%s)", d.Detail)
		}
		b.WriteString("\n")
	}
	return b.String()
}
