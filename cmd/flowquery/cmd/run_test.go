package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String(), runErr
}

func TestRunQueryInline(t *testing.T) {
	oldEval, oldTrace, oldMaxRows := evalExpr, trace, maxRows
	defer func() { evalExpr, trace, maxRows = oldEval, oldTrace, oldMaxRows }()

	evalExpr = "RETURN 1 + 1 AS answer"
	trace = false
	maxRows = -1

	output, err := captureStdout(t, func() error {
		return runQuery(runCmd, nil)
	})
	if err != nil {
		t.Fatalf("runQuery failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, `"answer":2`) {
		t.Errorf("expected canonical JSON result containing answer:2, got %q", output)
	}
}

func TestRunQueryParseError(t *testing.T) {
	oldEval, oldTrace, oldMaxRows := evalExpr, trace, maxRows
	defer func() { evalExpr, trace, maxRows = oldEval, oldTrace, oldMaxRows }()

	evalExpr = "RETURN ("
	trace = false
	maxRows = -1

	_, err := captureStdout(t, func() error {
		return runQuery(runCmd, nil)
	})
	if err == nil {
		t.Fatal("expected a parse error, got nil")
	}
}

func TestRunQueryFromFile(t *testing.T) {
	oldEval, oldTrace, oldMaxRows := evalExpr, trace, maxRows
	defer func() { evalExpr, trace, maxRows = oldEval, oldTrace, oldMaxRows }()

	tempDir := t.TempDir()
	path := tempDir + "/query.fq"
	if err := os.WriteFile(path, []byte("RETURN 40 + 2 AS answer"), 0o644); err != nil {
		t.Fatalf("failed to write query file: %v", err)
	}

	evalExpr = ""
	trace = false
	maxRows = -1

	output, err := captureStdout(t, func() error {
		return runQuery(runCmd, []string{path})
	})
	if err != nil {
		t.Fatalf("runQuery failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, `"answer":42`) {
		t.Errorf("expected canonical JSON result containing answer:42, got %q", output)
	}
}
