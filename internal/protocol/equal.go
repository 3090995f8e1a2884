package protocol

import "bytes"

// Equal reports whether a and b carry the same content. An absent field, a
// null field and an empty list are treated alike because none of them
// produces bytes on the wire.
func Equal(a, b Message) bool {
	for name, av := range a {
		if !ValueEqual(av, b[name]) {
			return false
		}
	}
	for name, bv := range b {
		if _, seen := a[name]; !seen && !empty(bv) {
			return false
		}
	}
	return true
}

// ValueEqual compares two payloads with the same rules as Equal.
func ValueEqual(a, b Value) bool {
	if empty(a) || empty(b) {
		return empty(a) && empty(b)
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValueBool:
		return a.Bool == b.Bool
	case ValueInt64:
		return a.Int == b.Int
	case ValueString:
		return a.Str == b.Str
	case ValueBytes:
		return bytes.Equal(a.Bytes, b.Bytes)
	case ValueMessage:
		return Equal(a.Msg, b.Msg)
	case ValueList:
		if len(a.List) != len(b.List) {
			return false
		}
		for i := range a.List {
			if !elementEqual(a.List[i], b.List[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// elementEqual does not collapse null and empty lists: inside a list every
// position is significant.
func elementEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ValueNull {
		return true
	}
	if a.Kind == ValueList && len(a.List) == 0 {
		return len(b.List) == 0
	}
	return ValueEqual(a, b)
}

func empty(v Value) bool {
	return v.Kind == ValueNull || (v.Kind == ValueList && len(v.List) == 0)
}
