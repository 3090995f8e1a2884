package protocol

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/protocol/wire"
)

// Limits constrains decode work on untrusted input. A zero field takes
// its DefaultLimits value; a negative field removes that bound.
type Limits struct {
	// MaxDepth bounds nested message recursion. The outermost message is
	// depth 1.
	MaxDepth int
	// MaxMessageBytes bounds the size of the whole input.
	MaxMessageBytes int
}

func DefaultLimits() Limits {
	return Limits{
		MaxDepth:        64,
		MaxMessageBytes: 64 * 1024 * 1024,
	}
}

func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxDepth == 0 {
		l.MaxDepth = def.MaxDepth
	}
	if l.MaxMessageBytes == 0 {
		l.MaxMessageBytes = def.MaxMessageBytes
	}
	return l
}

// Decode parses b into a message of schema s using DefaultLimits.
func Decode(s *schema.Schema, b []byte) (Message, error) {
	return DecodeWithLimits(s, b, DefaultLimits())
}

// DecodeWithLimits parses b into a message of schema s.
//
// Fields whose number s does not declare are skipped. Repeated fields
// accumulate in wire order; any other field seen more than once keeps its
// last value. Fields absent from b are absent from the result. The result
// is not validated.
func DecodeWithLimits(s *schema.Schema, b []byte, limits Limits) (Message, error) {
	limits = limits.withDefaults()
	if limits.MaxMessageBytes > 0 && len(b) > limits.MaxMessageBytes {
		return nil, &DecodeError{
			Err: fmt.Errorf("%w: %d bytes exceeds %d", ErrMessageTooLarge, len(b), limits.MaxMessageBytes),
		}
	}
	d := decoder{limits: limits}
	return d.message(s, b, 0, "", 1)
}

type decoder struct {
	limits Limits
}

func (d decoder) message(s *schema.Schema, b []byte, base int, path string, depth int) (Message, error) {
	if d.limits.MaxDepth > 0 && depth > d.limits.MaxDepth {
		return nil, &DecodeError{
			Offset: base,
			Path:   path,
			Err:    fmt.Errorf("%w: limit %d", ErrDepthExceeded, d.limits.MaxDepth),
		}
	}
	m := make(Message)
	for off := 0; off < len(b); {
		num, typ, n, err := wire.ConsumeTag(b[off:])
		if err != nil {
			return nil, wireError(base+off, path, err)
		}
		off += n

		spec, known := s.ByNumber(num)
		if !known {
			skip, err := wire.ConsumeFieldValue(num, typ, b[off:])
			if err != nil {
				return nil, wireError(base+off, joinPath(path, "#"+strconv.Itoa(int(num))), err)
			}
			off += skip
			continue
		}

		fpath := joinPath(path, spec.Name)
		if spec.Cardinality == schema.Repeated && typ == wire.TypeBytes && spec.Kind.WireType() == wire.TypeVarint {
			elems, n, err := d.packed(spec, b[off:], base+off, fpath)
			if err != nil {
				return nil, err
			}
			off += n
			m[spec.Name] = appendList(m[spec.Name], elems...)
			continue
		}
		if typ != spec.Kind.WireType() {
			return nil, &DecodeError{
				Offset: base + off - n,
				Path:   fpath,
				Err: fmt.Errorf(
					"%w: field %d declared %s, got %s",
					ErrWireTypeMismatch, num, spec.TypeName(), wire.TypeName(typ),
				),
			}
		}

		if spec.Cardinality == schema.Repeated {
			fpath += "[" + strconv.Itoa(len(m[spec.Name].List)) + "]"
		}
		v, n, err := d.element(spec, b[off:], base+off, fpath, depth)
		if err != nil {
			return nil, err
		}
		off += n
		if spec.Cardinality == schema.Repeated {
			m[spec.Name] = appendList(m[spec.Name], v)
		} else {
			m[spec.Name] = v
		}
	}
	return m, nil
}

func (d decoder) element(spec schema.FieldSpec, b []byte, base int, path string, depth int) (Value, int, error) {
	switch spec.Kind {
	case schema.KindBool, schema.KindInt64:
		x, n, err := wire.ConsumeVarint(b)
		if err != nil {
			return Value{}, 0, wireError(base, path, err)
		}
		return scalar(spec.Kind, x), n, nil
	case schema.KindString, schema.KindBytes:
		payload, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return Value{}, 0, wireError(base, path, err)
		}
		if spec.Kind == schema.KindString {
			return String(string(payload)), n, nil
		}
		return Bytes(payload), n, nil
	case schema.KindMessage:
		payload, n, err := wire.ConsumeBytes(b)
		if err != nil {
			return Value{}, 0, wireError(base, path, err)
		}
		nested, err := d.message(spec.Message, payload, base+n-len(payload), path, depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		return Msg(nested), n, nil
	default:
		return Value{}, 0, &DecodeError{Offset: base, Path: path, Err: ErrMalformed}
	}
}

// packed decodes the length-delimited form protobuf writers use for
// repeated scalars.
func (d decoder) packed(spec schema.FieldSpec, b []byte, base int, path string) ([]Value, int, error) {
	payload, n, err := wire.ConsumeBytes(b)
	if err != nil {
		return nil, 0, wireError(base, path, err)
	}
	start := base + n - len(payload)
	var out []Value
	for off := 0; off < len(payload); {
		x, k, err := wire.ConsumeVarint(payload[off:])
		if err != nil {
			return nil, 0, wireError(start+off, path, err)
		}
		out = append(out, scalar(spec.Kind, x))
		off += k
	}
	return out, n, nil
}

func scalar(k schema.Kind, x uint64) Value {
	if k == schema.KindBool {
		return Bool(x != 0)
	}
	return Int64(int64(x))
}

func appendList(cur Value, vs ...Value) Value {
	if cur.Kind != ValueList {
		cur = List()
	}
	cur.List = append(cur.List, vs...)
	return cur
}

func wireError(offset int, path string, err error) error {
	var sentinel error
	switch {
	case errors.Is(err, wire.ErrTruncated):
		sentinel = ErrTruncatedInput
	case errors.Is(err, wire.ErrVarintOverflow):
		sentinel = ErrInvalidVarint
	case errors.Is(err, wire.ErrFieldNumber):
		sentinel = ErrInvalidFieldNumber
	default:
		sentinel = ErrMalformed
	}
	return &DecodeError{Offset: offset, Path: path, Err: fmt.Errorf("%w: %w", sentinel, err)}
}
