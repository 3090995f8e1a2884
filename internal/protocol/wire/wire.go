// Package wire owns the tag-delimited field primitives of the binary format.
//
// A field on the wire is a varint tag (number<<3 | type) followed by a
// payload whose length is implied by the type. The layout is compatible
// with the protobuf wire format; varint and tag arithmetic is delegated to
// protowire.
package wire

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrTruncated      = errors.New("wire: truncated data")
	ErrVarintOverflow = errors.New("wire: varint overflow")
	ErrFieldNumber    = errors.New("wire: invalid field number")
	ErrGroup          = errors.New("wire: malformed group")
	ErrType           = errors.New("wire: unknown wire type")
)

// Number is a field number as carried in a tag.
type Number = protowire.Number

// Type is the wire type carried in the low three bits of a tag.
type Type = protowire.Type

// Wire types.
const (
	TypeVarint     Type = protowire.VarintType
	TypeFixed64    Type = protowire.Fixed64Type
	TypeBytes      Type = protowire.BytesType
	TypeStartGroup Type = protowire.StartGroupType
	TypeEndGroup   Type = protowire.EndGroupType
	TypeFixed32    Type = protowire.Fixed32Type
)

const (
	MinNumber Number = protowire.MinValidNumber
	MaxNumber Number = protowire.MaxValidNumber
)

// ValidNumber reports whether n may be assigned to a field.
// The range 19000-19999 is reserved for protobuf implementations.
func ValidNumber(n Number) bool {
	return n.IsValid() && (n < protowire.FirstReservedNumber || n > protowire.LastReservedNumber)
}

// TypeName returns a short label for t.
func TypeName(t Type) string {
	switch t {
	case TypeVarint:
		return "varint"
	case TypeFixed64:
		return "fixed64"
	case TypeBytes:
		return "bytes"
	case TypeStartGroup:
		return "start_group"
	case TypeEndGroup:
		return "end_group"
	case TypeFixed32:
		return "fixed32"
	default:
		return fmt.Sprintf("type(%d)", int8(t))
	}
}

// Field is one raw field: the tag plus its payload bytes. For TypeBytes the
// payload excludes the length prefix; for TypeVarint it holds the varint
// bytes as they appeared on the wire.
type Field struct {
	Number Number
	Type   Type
	Value  []byte
}

// Fields is an ordered wire message.
type Fields []Field

// AppendTag appends the tag for (num, typ).
func AppendTag(b []byte, num Number, typ Type) []byte {
	return protowire.AppendTag(b, num, typ)
}

// AppendVarint appends v as a base-128 varint.
func AppendVarint(b []byte, v uint64) []byte {
	return protowire.AppendVarint(b, v)
}

// AppendBytes appends a varint length prefix followed by v.
func AppendBytes(b []byte, v []byte) []byte {
	return protowire.AppendBytes(b, v)
}

// AppendString is AppendBytes for strings.
func AppendString(b []byte, v string) []byte {
	return protowire.AppendString(b, v)
}

// SizeVarint returns the encoded size of v.
func SizeVarint(v uint64) int {
	return protowire.SizeVarint(v)
}

// ConsumeVarint parses a varint from the front of b.
func ConsumeVarint(b []byte) (uint64, int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, varintError(n)
	}
	return v, n, nil
}

// ConsumeTag parses a tag from the front of b.
func ConsumeTag(b []byte) (Number, Type, int, error) {
	v, n, err := ConsumeVarint(b)
	if err != nil {
		return 0, 0, 0, err
	}
	num, typ := protowire.DecodeTag(v)
	if num < MinNumber || num > MaxNumber {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrFieldNumber, v>>3)
	}
	return num, typ, n, nil
}

// ConsumeBytes parses a length-prefixed payload. The declared length is
// checked against len(b) before anything is sliced.
func ConsumeBytes(b []byte) ([]byte, int, error) {
	l, n, err := ConsumeVarint(b)
	if err != nil {
		return nil, 0, err
	}
	if l > uint64(len(b)-n) {
		return nil, 0, ErrTruncated
	}
	end := n + int(l)
	return b[n:end], end, nil
}

// ConsumeFieldValue returns the length of the payload of a field with the
// given tag at the front of b. It is used to skip fields without
// interpreting them.
func ConsumeFieldValue(num Number, typ Type, b []byte) (int, error) {
	switch typ {
	case TypeVarint:
		_, n, err := ConsumeVarint(b)
		return n, err
	case TypeFixed32:
		return fixedLen(b, 4)
	case TypeFixed64:
		return fixedLen(b, 8)
	case TypeBytes:
		_, n, err := ConsumeBytes(b)
		return n, err
	case TypeStartGroup:
		n := protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return 0, payloadError(n)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrType, int8(typ))
	}
}

func fixedLen(b []byte, size int) (int, error) {
	if len(b) < size {
		return 0, ErrTruncated
	}
	return size, nil
}

// ConsumeField parses one complete field from the front of b.
func ConsumeField(b []byte) (Field, int, error) {
	num, typ, tagLen, err := ConsumeTag(b)
	if err != nil {
		return Field{}, 0, err
	}
	rest := b[tagLen:]
	if typ == TypeBytes {
		v, n, err := ConsumeBytes(rest)
		if err != nil {
			return Field{}, 0, err
		}
		return Field{Number: num, Type: typ, Value: clone(v)}, tagLen + n, nil
	}
	n, err := ConsumeFieldValue(num, typ, rest)
	if err != nil {
		return Field{}, 0, err
	}
	return Field{Number: num, Type: typ, Value: clone(rest[:n])}, tagLen + n, nil
}

// ParseFields tokenizes b into raw fields without a schema. Unknown and
// known fields are kept alike, in wire order.
func ParseFields(b []byte) (Fields, error) {
	fields := make(Fields, 0, 4)
	for offset := 0; offset < len(b); {
		f, n, err := ConsumeField(b[offset:])
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", offset, err)
		}
		fields = append(fields, f)
		offset += n
	}
	return fields, nil
}

// AppendField appends f with its tag. Length-delimited payloads get their
// length prefix; every other type is written as stored.
func AppendField(b []byte, f Field) []byte {
	b = AppendTag(b, f.Number, f.Type)
	if f.Type == TypeBytes {
		return AppendBytes(b, f.Value)
	}
	return append(b, f.Value...)
}

// Append appends every field in order.
func (fs Fields) Append(b []byte) []byte {
	for _, f := range fs {
		b = AppendField(b, f)
	}
	return b
}

// Encode returns the wire bytes of fs.
func (fs Fields) Encode() []byte {
	return fs.Append(nil)
}

// Get returns the last field with the given number.
func (fs Fields) Get(num Number) (Field, bool) {
	for i := len(fs) - 1; i >= 0; i-- {
		if fs[i].Number == num {
			return fs[i], true
		}
	}
	return Field{}, false
}

// Varint interprets a varint field payload.
func (f Field) Varint() (uint64, error) {
	if f.Type != TypeVarint {
		return 0, fmt.Errorf("wire: field %d is %s, not varint", f.Number, TypeName(f.Type))
	}
	v, _, err := ConsumeVarint(f.Value)
	return v, err
}

func varintError(n int) error {
	if errors.Is(protowire.ParseError(n), io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return ErrVarintOverflow
}

func payloadError(n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return fmt.Errorf("%w: %v", ErrGroup, err)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
