package value

import (
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
	"golang.org/x/text/unicode/norm"
)

// CanonicalJSON renders v as JSON with insertion-ordered keys and no
// whitespace (spec.md §9, GLOSSARY "Canonical JSON"). It is the rendered
// form used for CLI results, LOAD POST bodies, f-string coercion of arrays
// and mappings, and the compact input Stringify indents. Deep equality under
// DISTINCT uses dedupKey instead, which also NFC-normalizes strings.
//
// encoding/json would alphabetize map keys, which loses the insertion order
// the value domain promises, so canonical rendering is written directly
// into a strings.Builder; sjson is used only to escape string literals
// (see quoteJSON).
func CanonicalJSON(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

func writeCanonical(b *strings.Builder, v Value) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.b {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindNumber:
		if v.isInt {
			b.WriteString(strconv.FormatInt(int64(v.num), 10))
		} else {
			b.WriteString(strconv.FormatFloat(v.num, 'g', -1, 64))
		}
	case KindString:
		b.WriteString(quoteJSON(v.str))
	case KindArray:
		b.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, e)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quoteJSON(k))
			b.WriteByte(':')
			writeCanonical(b, v.m[k])
		}
		b.WriteByte('}')
	}
}

func quoteJSON(s string) string {
	// sjson.Set on an empty document is the simplest correct way to obtain
	// a properly escaped JSON string literal without reaching for
	// encoding/json (which this package otherwise avoids, per
	// SPEC_FULL.md's DOMAIN STACK wiring of the tidwall JSON libraries).
	out, err := sjson.Set("", "x", s)
	if err != nil {
		return `""`
	}
	// out is like {"x":"escaped"} — slice out the value.
	idx := strings.Index(out, ":")
	return out[idx+1 : len(out)-1]
}

// Equal implements canonical-JSON deep equality, used by EqualsOp for
// arrays and mappings; it compares the same key DedupKey gives
// collect(distinct …) and the DISTINCT modifier (spec.md §4.5, §4.9). String
// content is compared in Unicode Normalization Form C first, so two
// visually-identical strings built from different combining-character
// sequences (e.g. "é" as one rune vs. "e"+combining-acute) collapse to the
// same dedup bucket, matching spec.md's DOMAIN STACK wiring of
// golang.org/x/text/unicode/norm.
func Equal(a, b Value) bool {
	return dedupKey(a) == dedupKey(b)
}

// DedupKey exposes dedupKey for callers that need a hashable bucket key for
// DISTINCT-style deduplication (RETURN DISTINCT, collect(distinct …), and
// plain aggregate DISTINCT: spec.md §4.5, §4.9) rather than a pairwise
// comparison. It must never be used as rendered output — see dedupKey.
func DedupKey(v Value) string {
	return dedupKey(v)
}

// dedupKey renders v like CanonicalJSON but NFC-normalizes string content,
// for equality/hashing purposes only — it must never be used as the
// rendered output of stringify() or f-string coercion, which preserve a
// value's string bytes exactly as produced.
func dedupKey(v Value) string {
	var b strings.Builder
	writeDedupKey(&b, v)
	return b.String()
}

func writeDedupKey(b *strings.Builder, v Value) {
	if v.kind == KindString {
		b.WriteString(quoteJSON(norm.NFC.String(v.str)))
		return
	}
	if v.kind != KindArray && v.kind != KindMap {
		writeCanonical(b, v)
		return
	}
	if v.kind == KindArray {
		b.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			writeDedupKey(b, e)
		}
		b.WriteByte(']')
		return
	}
	b.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteJSON(norm.NFC.String(k)))
		b.WriteByte(':')
		writeDedupKey(b, v.m[k])
	}
	b.WriteByte('}')
}
