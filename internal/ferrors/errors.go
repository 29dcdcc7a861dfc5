// Package ferrors provides the two FlowQuery error taxonomies — parse-time
// and execution-time (spec.md §7) — plus the teacher's source-context,
// caret-pointed formatting (grounded on internal/errors/errors.go of the
// teacher repo).
package ferrors

import (
	"fmt"
	"strings"

	"github.com/flowquery-lang/flowquery/internal/token"
)

// Kind names one of the error categories spec.md §7 enumerates. Parse kinds
// and execution kinds are disjoint; both halves are carried by the single
// CompilerError type.
type Kind string

// Parse-time kinds — reported synchronously from parsing, never during run.
const (
	UnexpectedToken         Kind = "UnexpectedToken"
	ExpectedWhitespace       Kind = "ExpectedWhitespace"
	UnknownFunction          Kind = "UnknownFunction"
	ArityMismatch            Kind = "ArityMismatch"
	NestedAggregate          Kind = "NestedAggregate"
	MissingAlias             Kind = "MissingAlias"
	DuplicateReturn          Kind = "DuplicateReturn"
	InvalidTerminalOperation Kind = "InvalidTerminalOperation"
	UnwindNotSequence        Kind = "UnwindNotSequence"
	WhereNotBoolean          Kind = "WhereNotBoolean"
	CallRequiresYield        Kind = "CallRequiresYield"
)

// Execution-time kinds — surfaced only from Runner.Run.
const (
	LoadFailed         Kind = "LoadFailed"
	UnresolvedReference Kind = "UnresolvedReference"
	DivisionByZero      Kind = "DivisionByZero" // reserved; division by zero is a benign null, spec.md §7 note
	TypeMismatch        Kind = "TypeMismatch"
	InvalidArgument     Kind = "InvalidArgument"
	AsyncProviderError  Kind = "AsyncProviderError"
	Cancelled           Kind = "Cancelled"
)

// CompilerError is a single parse or execution error with position and
// source context, formatted with a caret pointing at the offending column —
// the teacher's CompilerError shape (internal/errors/errors.go), extended
// with a Kind so callers can switch on error category programmatically.
type CompilerError struct {
	Kind    Kind
	Message string
	Source  string
	File    string
	Pos     token.Position
}

// NewCompilerError constructs a CompilerError carrying source context for
// caret-pointed formatting.
func NewCompilerError(kind Kind, pos token.Position, message, source, file string) *CompilerError {
	return &CompilerError{Kind: kind, Pos: pos, Message: message, Source: source, File: file}
}

// Error implements the error interface.
func (e *CompilerError) Error() string { return e.Format(false) }

// Format renders the error with a single line of source context and a caret
// pointing at the column; color adds ANSI bold/red codes for terminal use.
func (e *CompilerError) Format(color bool) string {
	var sb strings.Builder

	if e.File != "" {
		fmt.Fprintf(&sb, "%s: %s:%d:%d\n", e.Kind, e.File, e.Pos.Line, e.Pos.Column)
	} else {
		fmt.Fprintf(&sb, "%s: line %d:%d\n", e.Kind, e.Pos.Line, e.Pos.Column)
	}

	if line := e.sourceLine(e.Pos.Line); line != "" {
		lineNumStr := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(line)
		sb.WriteString("\n")

		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+e.Pos.Column-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	return sb.String()
}

func (e *CompilerError) sourceLine(lineNum int) string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// FormatErrors renders one or more CompilerErrors, numbering them when there
// is more than one — mirrors the teacher's FormatErrors helper.
func FormatErrors(errs []*CompilerError, color bool) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Format(color)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "FlowQuery failed with %d error(s):\n\n", len(errs))
	for i, e := range errs {
		fmt.Fprintf(&sb, "[Error %d of %d]\n", i+1, len(errs))
		sb.WriteString(e.Format(color))
		if i < len(errs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
