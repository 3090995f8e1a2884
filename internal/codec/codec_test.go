package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/testutil/testlog"
)

func personSchema() *schema.Schema {
	return schema.MustNew("Person",
		schema.FieldSpec{Name: "name", Number: 1, Kind: schema.KindString, Cardinality: schema.Required},
		schema.FieldSpec{Name: "age", Number: 2, Kind: schema.KindInt64},
		schema.FieldSpec{Name: "tags", Number: 3, Kind: schema.KindString, Cardinality: schema.Repeated},
	)
}

func newTestCodec(t *testing.T, out *bytes.Buffer) *Codec {
	t.Helper()
	logger := zerolog.New(out).Level(zerolog.DebugLevel)
	c := New(Options{Logger: &logger})
	if err := c.RegisterSchema(personSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	return c
}

func TestCodecRoundTripByName(t *testing.T) {
	testlog.Start(t)
	var logs bytes.Buffer
	c := newTestCodec(t, &logs)
	c.Freeze()

	in := protocol.Message{"name": protocol.String("Ana"), "tags": protocol.Strings("x", "y")}
	b, err := c.Encode("Person", in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x0A, 0x03, 'A', 'n', 'a', 0x1A, 0x01, 'x', 0x1A, 0x01, 'y'}
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected bytes %x", b)
	}
	out, err := c.DecodeValid("Person", b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !protocol.Equal(in, out) {
		t.Fatalf("round-trip mismatch %v", out)
	}
	text, err := c.Format("Person", out)
	if err != nil || !strings.HasPrefix(text, `name: "Ana"`) {
		t.Fatalf("unexpected text %q %v", text, err)
	}
	if !strings.Contains(logs.String(), `"schema":"Person"`) || !strings.Contains(logs.String(), `"bytes":11`) {
		t.Fatalf("expected structured logs, got %s", logs.String())
	}
}

func TestCodecUnknownSchema(t *testing.T) {
	testlog.Start(t)
	c := newTestCodec(t, &bytes.Buffer{})
	if _, err := c.Encode("Nope", protocol.Message{}); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
	if _, err := c.Decode("Nope", nil); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
	if _, err := c.Validate("Nope", nil); !errors.Is(err, schema.ErrUnknownSchema) {
		t.Fatalf("expected ErrUnknownSchema, got %v", err)
	}
}

func TestCodecValidationFailuresAreLogged(t *testing.T) {
	testlog.Start(t)
	var logs bytes.Buffer
	c := newTestCodec(t, &logs)
	issues, err := c.Validate("Person", protocol.Message{"age": protocol.String("x")})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", issues)
	}
	_, err = c.Encode("Person", protocol.Message{})
	if !errors.Is(err, protocol.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
	if !strings.Contains(logs.String(), `"level":"warn"`) || !strings.Contains(logs.String(), `"issues":1`) {
		t.Fatalf("expected warn log with issue count, got %s", logs.String())
	}
}

func TestCodecDecodeValidReportsIssues(t *testing.T) {
	testlog.Start(t)
	c := newTestCodec(t, &bytes.Buffer{})
	m, err := c.DecodeValid("Person", []byte{0x10, 0x01})
	var issues protocol.ValidationErrors
	if !errors.As(err, &issues) || !issues.Has(protocol.CodeMissingField, "name") {
		t.Fatalf("expected missing name, got %v", err)
	}
	if m["age"].Int != 1 {
		t.Fatalf("decoded message should still be returned: %v", m)
	}
}

func TestCodecAppliesLimits(t *testing.T) {
	testlog.Start(t)
	limits := protocol.Limits{MaxDepth: 4, MaxMessageBytes: 4}
	c := New(Options{Limits: &limits})
	if err := c.RegisterSchema(personSchema()); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := c.Decode("Person", []byte{0x0A, 0x03, 'A', 'n', 'a'})
	if !errors.Is(err, protocol.ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
	if c.Limits().MaxMessageBytes != 4 {
		t.Fatalf("limits not kept")
	}
}

func TestCodecFrozenRegistry(t *testing.T) {
	testlog.Start(t)
	c := newTestCodec(t, &bytes.Buffer{})
	c.Freeze()
	other := schema.MustNew("Other", schema.FieldSpec{Name: "x", Number: 1, Kind: schema.KindBool})
	if err := c.RegisterSchema(other); !errors.Is(err, schema.ErrRegistryFrozen) {
		t.Fatalf("expected ErrRegistryFrozen, got %v", err)
	}
	if names := c.Schemas(); len(names) != 1 || names[0] != "Person" {
		t.Fatalf("unexpected names %v", names)
	}
}
