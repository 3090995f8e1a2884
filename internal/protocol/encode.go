package protocol

import (
	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/protocol/wire"
)

// Encode validates m against s and returns its wire encoding. An invalid
// message is never encoded; the error is an *EncodeError carrying every
// violation.
//
// Fields are written in the schema's declared order, so equal inputs give
// byte-identical output. Names in m that s does not declare are dropped.
func Encode(s *schema.Schema, m Message) ([]byte, error) {
	return Append(nil, s, m)
}

// Append is Encode writing to the end of dst.
func Append(dst []byte, s *schema.Schema, m Message) ([]byte, error) {
	if errs := Validate(s, m); len(errs) != 0 {
		return dst, &EncodeError{Schema: s.Name(), Issues: errs}
	}
	return appendMessage(dst, s, m), nil
}

// appendMessage assumes m has been validated against s.
func appendMessage(b []byte, s *schema.Schema, m Message) []byte {
	for i := 0; i < s.Len(); i++ {
		spec := s.Field(i)
		v, ok := m[spec.Name]
		if !ok || v.IsNull() {
			continue
		}
		if spec.Cardinality == schema.Repeated {
			for _, elem := range v.List {
				b = appendElement(b, spec, elem)
			}
			continue
		}
		b = appendElement(b, spec, v)
	}
	return b
}

func appendElement(b []byte, spec schema.FieldSpec, v Value) []byte {
	b = wire.AppendTag(b, spec.Number, spec.Kind.WireType())
	switch spec.Kind {
	case schema.KindBool:
		if v.Bool {
			return wire.AppendVarint(b, 1)
		}
		return wire.AppendVarint(b, 0)
	case schema.KindInt64:
		return wire.AppendVarint(b, uint64(v.Int))
	case schema.KindString:
		return wire.AppendString(b, v.Str)
	case schema.KindBytes:
		return wire.AppendBytes(b, v.Bytes)
	case schema.KindMessage:
		return wire.AppendBytes(b, appendMessage(nil, spec.Message, v.Msg))
	}
	return b
}
