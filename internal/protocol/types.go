package protocol

import (
	"fmt"

	"github.com/danmuck/msgwire/internal/protocol/schema"
)

// ValueKind tags the payload held by a Value.
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt64
	ValueString
	ValueBytes
	ValueMessage
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt64:
		return "int64"
	case ValueString:
		return "string"
	case ValueBytes:
		return "bytes"
	case ValueMessage:
		return "message"
	case ValueList:
		return "list"
	default:
		return fmt.Sprintf("value(%d)", uint8(k))
	}
}

// Value is one dynamically typed payload. Only the member selected by Kind
// is meaningful. The zero Value is null.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Str   string
	Bytes []byte
	Msg   Message
	List  []Value
}

// Message maps field names to payloads.
type Message map[string]Value

func Null() Value {
	return Value{}
}

func Bool(v bool) Value {
	return Value{Kind: ValueBool, Bool: v}
}

func Int64(v int64) Value {
	return Value{Kind: ValueInt64, Int: v}
}

func String(v string) Value {
	return Value{Kind: ValueString, Str: v}
}

// Bytes copies v.
func Bytes(v []byte) Value {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Value{Kind: ValueBytes, Bytes: buf}
}

func Msg(m Message) Value {
	return Value{Kind: ValueMessage, Msg: m}
}

func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{Kind: ValueList, List: vs}
}

// Strings builds a list of string values.
func Strings(vs ...string) Value {
	out := make([]Value, len(vs))
	for i, v := range vs {
		out[i] = String(v)
	}
	return List(out...)
}

// IsNull reports whether v carries no payload.
func (v Value) IsNull() bool {
	return v.Kind == ValueNull
}

// matches reports whether v can be written as an element of kind k.
func (v Value) matches(k schema.Kind) bool {
	switch k {
	case schema.KindBool:
		return v.Kind == ValueBool
	case schema.KindInt64:
		return v.Kind == ValueInt64
	case schema.KindString:
		return v.Kind == ValueString
	case schema.KindBytes:
		return v.Kind == ValueBytes
	case schema.KindMessage:
		return v.Kind == ValueMessage
	default:
		return false
	}
}
