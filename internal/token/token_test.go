package token

import "testing"

func TestLookupIdentResolvesKeywordsCaseInsensitively(t *testing.T) {
	for _, lit := range []string{"where", "WHERE", "Where", "WhErE"} {
		if got := LookupIdent(lit); got != WHERE {
			t.Errorf("LookupIdent(%q) = %v, want WHERE", lit, got)
		}
	}
}

func TestLookupIdentNonKeywordIsIdentifier(t *testing.T) {
	if got := LookupIdent("whereabouts"); got != IDENTIFIER {
		t.Errorf("LookupIdent(\"whereabouts\") = %v, want IDENTIFIER (must not prefix-match)", got)
	}
}

func TestKindIsKeyword(t *testing.T) {
	if !WHERE.IsKeyword() {
		t.Error("WHERE should report IsKeyword() == true")
	}
	if IDENTIFIER.IsKeyword() {
		t.Error("IDENTIFIER should not report IsKeyword() == true")
	}
}

func TestOperatorsTriePrefersLongestMatch(t *testing.T) {
	kind, consumed, ok := Operators.Lookup([]rune("<=x"), 0)
	if !ok || kind != LTE || consumed != 2 {
		t.Errorf("Operators.Lookup(\"<=x\") = %v, %d, %v; want LTE, 2, true", kind, consumed, ok)
	}
}

func TestOperatorsTrieNoMatchReportsNotOK(t *testing.T) {
	_, _, ok := Operators.Lookup([]rune("+"), 0)
	if ok {
		t.Error("expected no match for \"+\" in the Operators trie")
	}
}

func TestKindStringIsNonEmptyForEveryKeyword(t *testing.T) {
	for k := keywordBegin + 1; k < keywordEnd; k++ {
		if k.String() == "" {
			t.Errorf("Kind(%d).String() is empty", k)
		}
	}
}
