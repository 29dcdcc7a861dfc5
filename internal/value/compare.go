package value

// EqualsOp implements the "=" / "<>" operators: same-kind values compare
// naturally; different kinds (other than numeric, which always compares by
// IEEE-754 double) are never equal. A null operand on either side always
// compares false — null equality is only testable via IS NULL / IS NOT NULL
// (spec.md §4.5).
func EqualsOp(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	default:
		return Equal(a, b)
	}
}

// Ordered compares a and b for <, >, <=, >=. ok is false when ordering is
// undefined (mixed kinds, or either operand not orderable) — per spec.md
// §4.5 "otherwise equality is false, ordering fails", the evaluator turns a
// failed ordering comparison into false, not an error.
func Ordered(a, b Value) (cmp int, ok bool) {
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.num < b.num:
			return -1, true
		case a.num > b.num:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		switch {
		case a.str < b.str:
			return -1, true
		case a.str > b.str:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}
