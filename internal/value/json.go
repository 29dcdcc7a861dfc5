package value

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseJSON decodes a JSON document into a Value, used by the tojson()
// builtin and by the JSON-form LOAD/fetchJson providers (spec.md §4.9, §6).
// gjson is used rather than encoding/json so an arbitrary, undeclared
// top-level shape (array, object, or scalar) can be walked without a target
// struct — consistent with the Non-goal "no typed schema validation"
// (SPEC_FULL.md DOMAIN STACK).
func ParseJSON(data []byte) (Value, error) {
	if !gjson.ValidBytes(data) {
		return Null, fmt.Errorf("invalid JSON")
	}
	result := gjson.ParseBytes(data)
	return fromGJSON(result), nil
}

func fromGJSON(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Float(r.Float())
	case gjson.String:
		return String(r.String())
	case gjson.JSON:
		if r.IsArray() {
			var elems []Value
			r.ForEach(func(_, val gjson.Result) bool {
				elems = append(elems, fromGJSON(val))
				return true
			})
			if elems == nil {
				elems = []Value{}
			}
			return Array(elems)
		}
		var keys []string
		var vals []Value
		r.ForEach(func(key, val gjson.Result) bool {
			keys = append(keys, key.String())
			vals = append(vals, fromGJSON(val))
			return true
		})
		return Map(keys, vals)
	default:
		return Null
	}
}
