package value

import (
	"strconv"

	"github.com/tidwall/pretty"
)

// Stringify renders v as canonical JSON pretty-printed with 3-space
// indentation — the derived, "keep it explicit" form named by spec.md §9
// Open Question 2, backing the stringify() builtin. It reuses CanonicalJSON
// for the compact form and hands it to tidwall/pretty for indentation,
// rather than round-tripping through encoding/json (which would both
// re-order map keys and default to 2-space/no indentation).
func Stringify(v Value) string {
	compact := []byte(CanonicalJSON(v))
	opts := &pretty.Options{Indent: "   ", SortKeys: false}
	out := pretty.PrettyOptions(compact, opts)
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return string(out)
}

// CoerceForFString renders v in the canonical string form f-strings
// concatenate (spec.md §4.5 "F-strings"): integer-valued numbers print
// without a trailing ".0", booleans as "true"/"false", null as "null", and
// arrays/mappings as canonical JSON.
func CoerceForFString(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		if v.isInt {
			return strconv.FormatInt(int64(v.num), 10)
		}
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	default:
		return CanonicalJSON(v)
	}
}
