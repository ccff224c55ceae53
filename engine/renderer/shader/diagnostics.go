package shader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-gpu/common"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/wgsl"
)

// Severity classifies a compile diagnostic.
type Severity int

const (
	// SeverityInfo is an informational note.
	SeverityInfo Severity = iota
	// SeverityWarning is a problem that does not stop compilation.
	SeverityWarning
	// SeverityError is a problem the shader compiler rejects.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	}
	return "info"
}

// Diagnostic is one compiler message about an assembled shader module.
type Diagnostic struct {
	Severity Severity
	Message  string
	// Line and Column are 1-based; zero when the compiler reported no location.
	Line   int
	Column int
}

// positionRegex pulls the first source position out of a compiler error message. The parser
// reports "line L, column C: ...", the lowering pass "L:C: ...".
var positionRegex = regexp.MustCompile(`line (\d+), column (\d+)|(\d+):(\d+):`)

// Diagnose runs the WGSL front end over an assembled module: parse, lower and validate. It never
// fails; problems come back as diagnostics so the caller can log them and carry on creating the
// module, whose own failure is what decides pipeline status.
//
// Parameters:
//   - source: the assembled WGSL source
//
// Returns:
//   - []Diagnostic: the compiler messages in the order they were produced
func Diagnose(source string) []Diagnostic {
	ast, err := naga.Parse(source)
	if err != nil {
		return []Diagnostic{diagnosticFromError(err)}
	}

	lowered, err := wgsl.LowerWithWarnings(ast, source)
	if err != nil {
		return []Diagnostic{diagnosticFromError(err)}
	}

	var diags []Diagnostic
	for _, w := range lowered.Warnings {
		diags = append(diags, Diagnostic{
			Severity: SeverityWarning,
			Message:  w.Message,
			Line:     w.Span.Start.Line,
			Column:   w.Span.Start.Column,
		})
	}

	validation, err := naga.Validate(lowered.Module)
	if err != nil {
		diags = append(diags, diagnosticFromError(err))
	}
	for _, v := range validation {
		msg := v.Message
		if v.Function != "" {
			msg = fmt.Sprintf("in function %s: %s", v.Function, v.Message)
		}
		diags = append(diags, Diagnostic{Severity: SeverityError, Message: msg})
	}
	return diags
}

func diagnosticFromError(err error) Diagnostic {
	d := Diagnostic{Severity: SeverityError, Message: err.Error()}

	var pe wgsl.ParseError
	if errors.As(err, &pe) {
		d.Message, d.Line, d.Column = pe.Message, pe.Line, pe.Column
		return d
	}

	if m := positionRegex.FindStringSubmatch(d.Message); m != nil {
		line, col := m[1], m[2]
		if line == "" {
			line, col = m[3], m[4]
		}
		d.Line, _ = strconv.Atoi(line)
		d.Column, _ = strconv.Atoi(col)
	}
	return d
}

// Context returns the offending source line followed by a caret under the reported column, or
// an empty string when the diagnostic has no usable location.
//
// Parameters:
//   - source: the source the diagnostic was produced for
//
// Returns:
//   - string: the two-line excerpt
func (d Diagnostic) Context(source string) string {
	lines := strings.Split(source, "\n")
	if d.Line < 1 || d.Line > len(lines) {
		return ""
	}
	line := lines[d.Line-1]
	col := min(max(d.Column, 1), len(line)+1)
	return line + "\n" + strings.Repeat(" ", col-1) + "^"
}

// LogDiagnostics writes every diagnostic to the engine logger at the level matching its severity,
// with the source excerpt attached.
//
// Parameters:
//   - label: the module label, for log correlation
//   - source: the source the diagnostics were produced for
//   - diags: the diagnostics to log
func LogDiagnostics(label, source string, diags []Diagnostic) {
	logger := common.Logger()
	for _, d := range diags {
		level := slog.LevelInfo
		switch d.Severity {
		case SeverityError:
			level = slog.LevelError
		case SeverityWarning:
			level = slog.LevelWarn
		}
		args := []any{"module", label}
		if d.Line > 0 {
			args = append(args, "line", d.Line, "column", d.Column)
		}
		if ctx := d.Context(source); ctx != "" {
			args = append(args, "source", "\n"+ctx)
		}
		logger.Log(context.Background(), level, "shader "+d.Severity.String()+": "+d.Message, args...)
	}
}
