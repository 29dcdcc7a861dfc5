package cmd

import (
	"strings"
	"testing"
)

func TestRunParsePrintsProgramString(t *testing.T) {
	oldEval, oldDumpAST := evalExpr, parseDumpAST
	defer func() { evalExpr, parseDumpAST = oldEval, oldDumpAST }()
	evalExpr = "RETURN 1 + 1 AS answer"
	parseDumpAST = false

	output, err := captureStdout(t, func() error { return runParse(parseCmd, nil) })
	if err != nil {
		t.Fatalf("runParse failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "RETURN") {
		t.Errorf("expected program string to mention RETURN, got %q", output)
	}
}

func TestRunParseDumpASTWalksChain(t *testing.T) {
	oldEval, oldDumpAST := evalExpr, parseDumpAST
	defer func() { evalExpr, parseDumpAST = oldEval, oldDumpAST }()
	evalExpr = "WITH 1 AS a RETURN a AS x"
	parseDumpAST = true

	output, err := captureStdout(t, func() error { return runParse(parseCmd, nil) })
	if err != nil {
		t.Fatalf("runParse failed: %v\noutput: %s", err, output)
	}
	if !strings.Contains(output, "WithOp") || !strings.Contains(output, "ReturnOp") {
		t.Errorf("expected dump to mention both WithOp and ReturnOp, got %q", output)
	}
}

func TestRunParseReportsSyntaxError(t *testing.T) {
	oldEval, oldDumpAST := evalExpr, parseDumpAST
	defer func() { evalExpr, parseDumpAST = oldEval, oldDumpAST }()
	evalExpr = "RETURN ("
	parseDumpAST = false

	_, err := captureStdout(t, func() error { return runParse(parseCmd, nil) })
	if err == nil {
		t.Error("expected an error for invalid syntax")
	}
}
