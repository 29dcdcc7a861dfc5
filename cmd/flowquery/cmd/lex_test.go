package cmd

import "testing"

func TestLexSourcePrintsTokens(t *testing.T) {
	oldEval, oldShowType, oldShowPos, oldOnlyErrors := evalExpr, showType, showPos, onlyErrors
	defer func() { evalExpr, showType, showPos, onlyErrors = oldEval, oldShowType, oldShowPos, oldOnlyErrors }()
	evalExpr = "RETURN 1 AS x"
	showType, showPos, onlyErrors = false, false, false

	output, err := captureStdout(t, func() error { return lexSource(lexCmd, nil) })
	if err != nil {
		t.Fatalf("lexSource failed: %v\noutput: %s", err, output)
	}
	if output == "" {
		t.Fatal("expected token output, got empty string")
	}
}

func TestLexSourceOnlyErrorsReportsIllegalTokens(t *testing.T) {
	oldEval, oldShowType, oldShowPos, oldOnlyErrors := evalExpr, showType, showPos, onlyErrors
	defer func() { evalExpr, showType, showPos, onlyErrors = oldEval, oldShowType, oldShowPos, oldOnlyErrors }()
	evalExpr = "RETURN 1 AS x"
	showType, showPos, onlyErrors = false, false, true

	_, err := captureStdout(t, func() error { return lexSource(lexCmd, nil) })
	if err != nil {
		t.Errorf("expected no error for a source with no illegal tokens, got %v", err)
	}
}
