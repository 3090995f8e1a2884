package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/protocol/wire"
	"github.com/danmuck/msgwire/internal/testutil/testlog"
)

func TestDecodeSkipsUnknownFieldsFromNewerSchema(t *testing.T) {
	testlog.Start(t)
	newer := schema.MustNew("Person",
		schema.FieldSpec{Name: "name", Number: 1, Kind: schema.KindString, Cardinality: schema.Required},
		schema.FieldSpec{Name: "age", Number: 2, Kind: schema.KindInt64},
		schema.FieldSpec{Name: "tags", Number: 3, Kind: schema.KindString, Cardinality: schema.Repeated},
		schema.FieldSpec{Name: "email", Number: 4, Kind: schema.KindString},
		schema.FieldSpec{Name: "score", Number: 20000, Kind: schema.KindInt64},
	)
	in := Message{
		"name":  String("Ana"),
		"email": String("ana@example.com"),
		"score": Int64(1 << 40),
		"tags":  Strings("x"),
	}
	b, err := Encode(newer, in)
	if err != nil {
		t.Fatalf("encode newer: %v", err)
	}
	out, err := Decode(personSchema(), b)
	if err != nil {
		t.Fatalf("decode with older schema: %v", err)
	}
	want := Message{"name": String("Ana"), "tags": Strings("x")}
	if !Equal(out, want) {
		t.Fatalf("unexpected decode %v", out)
	}
	if _, ok := out["email"]; ok {
		t.Fatalf("unknown field leaked into result")
	}
}

func TestDecodeSkipsUnknownFixedAndGroupFields(t *testing.T) {
	testlog.Start(t)
	var b []byte
	b = wire.AppendTag(b, 7, wire.TypeFixed32)
	b = append(b, 1, 2, 3, 4)
	b = wire.AppendTag(b, 1, wire.TypeBytes)
	b = wire.AppendString(b, "Ana")
	b = wire.AppendTag(b, 8, wire.TypeFixed64)
	b = append(b, 1, 2, 3, 4, 5, 6, 7, 8)
	b = wire.AppendTag(b, 9, wire.TypeStartGroup)
	b = wire.AppendTag(b, 1, wire.TypeVarint)
	b = wire.AppendVarint(b, 5)
	b = wire.AppendTag(b, 9, wire.TypeEndGroup)

	out, err := Decode(personSchema(), b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !Equal(out, Message{"name": String("Ana")}) {
		t.Fatalf("unexpected decode %v", out)
	}
}

func TestDecodeTruncatedPrefixes(t *testing.T) {
	testlog.Start(t)
	s := ucipSchema()
	full, err := Encode(s, ucipMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	boundaries := fieldBoundaries(t, full)
	checked := 0
	for cut := 1; cut < len(full); cut++ {
		if boundaries[cut] {
			continue
		}
		_, err := Decode(s, full[:cut])
		if !errors.Is(err, ErrTruncatedInput) {
			t.Fatalf("prefix %d/%d: expected ErrTruncatedInput, got %v", cut, len(full), err)
		}
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("prefix %d: expected ErrDecode umbrella, got %v", cut, err)
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("no prefixes checked")
	}
	testlog.Logf(t, "checked %d truncated prefixes of %d bytes", checked, len(full))
}

func TestDecodeFieldBoundaryPrefixIsComplete(t *testing.T) {
	testlog.Start(t)
	s := personSchema()
	b, err := Encode(s, Message{"name": String("Ana"), "tags": Strings("x", "y")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// the first field alone is a whole message
	out, err := Decode(s, b[:5])
	if err != nil {
		t.Fatalf("decode boundary prefix: %v", err)
	}
	if !Equal(out, Message{"name": String("Ana")}) {
		t.Fatalf("unexpected decode %v", out)
	}
}

// fieldBoundaries marks offsets where a top-level field ends.
func fieldBoundaries(t *testing.T, b []byte) map[int]bool {
	t.Helper()
	marks := map[int]bool{}
	for off := 0; off < len(b); {
		_, n, err := wire.ConsumeField(b[off:])
		if err != nil {
			t.Fatalf("consume field at %d: %v", off, err)
		}
		off += n
		marks[off] = true
	}
	return marks
}

func TestDecodeErrors(t *testing.T) {
	testlog.Start(t)
	s := personSchema()
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{name: "invalid varint tag", in: bytes.Repeat([]byte{0xFF}, 11), want: ErrInvalidVarint},
		{name: "invalid varint payload", in: append([]byte{0x10}, bytes.Repeat([]byte{0x80}, 10)...), want: ErrInvalidVarint},
		{name: "field number zero", in: []byte{0x02, 0x00}, want: ErrInvalidFieldNumber},
		{name: "string sent as varint", in: []byte{0x08, 0x01}, want: ErrWireTypeMismatch},
		{name: "int sent as bytes", in: []byte{0x12, 0x01, 0x01}, want: ErrWireTypeMismatch},
		{name: "length beyond input", in: []byte{0x0A, 0x05, 'a'}, want: ErrTruncatedInput},
		{name: "huge length", in: append([]byte{0x0A}, wire.AppendVarint(nil, 1<<62)...), want: ErrTruncatedInput},
		{name: "dangling tag", in: []byte{0x0A}, want: ErrTruncatedInput},
		{name: "stray end group", in: []byte{0x3C}, want: ErrMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(s, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
		})
	}
}

func TestDecodeWireTypeMismatchReportsPath(t *testing.T) {
	testlog.Start(t)
	_, err := Decode(ucipSchema(), []byte{0x22, 0x02, 0x0A, 0x00})
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Path != "consent.granted" || de.Offset != 2 || !errors.Is(err, ErrWireTypeMismatch) {
		t.Fatalf("unexpected error %+v", de)
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	testlog.Start(t)
	s := treeSchema()
	b, err := Encode(s, chain(10))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeWithLimits(s, b, Limits{MaxDepth: 10}); err != nil {
		t.Fatalf("depth 10 within limit: %v", err)
	}
	_, err = DecodeWithLimits(s, b, Limits{MaxDepth: 9})
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestDecodeDepthLimitOnHostileInput(t *testing.T) {
	testlog.Start(t)
	// 200 levels of children with no labels, built bottom-up
	var b []byte
	for i := 0; i < 200; i++ {
		var outer []byte
		outer = wire.AppendTag(outer, 2, wire.TypeBytes)
		outer = wire.AppendBytes(outer, b)
		b = outer
	}
	_, err := Decode(treeSchema(), b)
	if !errors.Is(err, ErrDepthExceeded) {
		t.Fatalf("expected ErrDepthExceeded, got %v", err)
	}
}

func TestDecodePartialLimitsKeepDepthGuard(t *testing.T) {
	testlog.Start(t)
	var b []byte
	for i := 0; i < 200; i++ {
		var outer []byte
		outer = wire.AppendTag(outer, 2, wire.TypeBytes)
		outer = wire.AppendBytes(outer, b)
		b = outer
	}
	for _, limits := range []Limits{{}, {MaxMessageBytes: 1 << 20}} {
		_, err := DecodeWithLimits(treeSchema(), b, limits)
		if !errors.Is(err, ErrDepthExceeded) {
			t.Fatalf("limits %+v: expected ErrDepthExceeded, got %v", limits, err)
		}
	}
	if _, err := DecodeWithLimits(treeSchema(), b, Limits{MaxDepth: -1}); err != nil {
		t.Fatalf("negative depth removes the bound: %v", err)
	}
}

func TestDecodeMessageSizeLimit(t *testing.T) {
	testlog.Start(t)
	s := personSchema()
	b, err := Encode(s, Message{"name": String("0123456789")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeWithLimits(s, b, Limits{MaxDepth: 4, MaxMessageBytes: 8})
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestDecodeRepeatedAcceptsPackedScalars(t *testing.T) {
	testlog.Start(t)
	s := schema.MustNew("Series",
		schema.FieldSpec{Name: "points", Number: 1, Kind: schema.KindInt64, Cardinality: schema.Repeated},
		schema.FieldSpec{Name: "flags", Number: 2, Kind: schema.KindBool, Cardinality: schema.Repeated},
	)
	var packed []byte
	for _, v := range []uint64{3, 270, 86942} {
		packed = wire.AppendVarint(packed, v)
	}
	var b []byte
	b = wire.AppendTag(b, 1, wire.TypeBytes)
	b = wire.AppendBytes(b, packed)
	b = wire.AppendTag(b, 1, wire.TypeVarint)
	b = wire.AppendVarint(b, 4)
	b = wire.AppendTag(b, 2, wire.TypeVarint)
	b = wire.AppendVarint(b, 2)

	out, err := Decode(s, b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Message{
		"points": List(Int64(3), Int64(270), Int64(86942), Int64(4)),
		"flags":  List(Bool(true)),
	}
	if !Equal(out, want) {
		t.Fatalf("unexpected decode %v", out)
	}
}

func TestDecodeLastScalarWins(t *testing.T) {
	testlog.Start(t)
	b := []byte{0x0A, 0x01, 'a', 0x0A, 0x01, 'b'}
	out, err := Decode(personSchema(), b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["name"].Str != "b" {
		t.Fatalf("expected last value, got %+v", out["name"])
	}
}

func TestDecodeDoesNotValidate(t *testing.T) {
	testlog.Start(t)
	out, err := Decode(personSchema(), []byte{0x10, 0x05})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out["name"]; ok {
		t.Fatalf("unexpected name")
	}
	if errs := Validate(personSchema(), out); !errs.Has(CodeMissingField, "name") {
		t.Fatalf("expected missing name after decode, got %v", errs)
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	testlog.Start(t)
	out, err := Decode(personSchema(), nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty message, got %v", out)
	}
}

func TestDecodedBytesDoNotAliasInput(t *testing.T) {
	testlog.Start(t)
	s := ucipSchema()
	b, err := Encode(s, ucipMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(s, b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range b {
		b[i] = 0
	}
	if !bytes.Equal(out["blob"].Bytes, []byte{0x00, 0xFF, 0x10}) {
		t.Fatalf("decoded bytes alias input: %x", out["blob"].Bytes)
	}
}
