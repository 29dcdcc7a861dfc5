package ferrors

import (
	"strings"
	"testing"

	"github.com/flowquery-lang/flowquery/internal/token"
)

func TestFormatIncludesCaretAtColumn(t *testing.T) {
	source := "RETURN 1 +\n"
	err := NewCompilerError(UnexpectedToken, token.Position{Line: 1, Column: 8}, "unexpected token", source, "query.fq")
	out := err.Format(false)
	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[0], "query.fq:1:8") {
		t.Errorf("expected header to include file:line:column, got %q", lines[0])
	}
	if !strings.Contains(out, "^") {
		t.Errorf("expected a caret in formatted output, got %q", out)
	}
}

func TestFormatWithoutFileOmitsFilename(t *testing.T) {
	err := NewCompilerError(TypeMismatch, token.Position{Line: 2, Column: 1}, "bad type", "a\nb", "")
	out := err.Format(false)
	if strings.Contains(out, ".fq") || !strings.Contains(out, "line 2:1") {
		t.Errorf("expected a filename-less header, got %q", out)
	}
}

func TestFormatColorWrapsCaretAndMessage(t *testing.T) {
	err := NewCompilerError(UnexpectedToken, token.Position{Line: 1, Column: 1}, "boom", "x", "f.fq")
	out := err.Format(true)
	if !strings.Contains(out, "\033[1;31m") || !strings.Contains(out, "\033[1m") {
		t.Errorf("expected ANSI color codes in colored output, got %q", out)
	}
}

func TestErrorImplementsErrorInterface(t *testing.T) {
	err := NewCompilerError(MissingAlias, token.Position{Line: 1, Column: 1}, "missing alias", "x", "")
	var _ error = err
	if err.Error() == "" {
		t.Error("expected a non-empty Error() string")
	}
}

func TestFormatErrorsSingleHasNoNumbering(t *testing.T) {
	err := NewCompilerError(ArityMismatch, token.Position{Line: 1, Column: 1}, "arity", "x", "")
	out := FormatErrors([]*CompilerError{err}, false)
	if strings.Contains(out, "Error 1 of") {
		t.Errorf("single error should not be numbered, got %q", out)
	}
}

func TestFormatErrorsMultipleAreNumbered(t *testing.T) {
	a := NewCompilerError(ArityMismatch, token.Position{Line: 1, Column: 1}, "a", "x", "")
	b := NewCompilerError(UnknownFunction, token.Position{Line: 2, Column: 1}, "b", "x", "")
	out := FormatErrors([]*CompilerError{a, b}, false)
	if !strings.Contains(out, "[Error 1 of 2]") || !strings.Contains(out, "[Error 2 of 2]") {
		t.Errorf("expected both errors numbered, got %q", out)
	}
}

func TestFormatErrorsEmptyIsEmptyString(t *testing.T) {
	if got := FormatErrors(nil, false); got != "" {
		t.Errorf("FormatErrors(nil) = %q, want \"\"", got)
	}
}

func TestSourceLineOutOfRangeOmitsContext(t *testing.T) {
	err := NewCompilerError(UnexpectedToken, token.Position{Line: 99, Column: 1}, "oops", "one line only", "")
	out := err.Format(false)
	if strings.Contains(out, "^") {
		t.Errorf("expected no caret line for an out-of-range position, got %q", out)
	}
}
