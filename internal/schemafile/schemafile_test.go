package schemafile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/testutil/testlog"
)

func TestLoadUCIPSample(t *testing.T) {
	testlog.Start(t)
	schemas, err := Load(filepath.Join("..", "..", "testdata", "ucip.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(schemas) != 2 || schemas[0].Name() != "UCIP" || schemas[1].Name() != "Consent" {
		t.Fatalf("unexpected schemas %v", schemas)
	}
	consent, ok := schemas[0].ByName("consent")
	if !ok || consent.Kind != schema.KindMessage || consent.Message != schemas[1] || consent.Cardinality != schema.Required {
		t.Fatalf("forward reference not resolved: %+v", consent)
	}
	scopes, _ := schemas[1].ByName("scopes")
	if scopes.Cardinality != schema.Repeated || scopes.Number != 2 {
		t.Fatalf("unexpected scopes %+v", scopes)
	}
	ts, _ := schemas[0].ByName("timestamp")
	if ts.Cardinality != schema.Optional {
		t.Fatalf("cardinality should default to optional, got %s", ts.Cardinality)
	}
}

func TestLoadRecursiveYAML(t *testing.T) {
	testlog.Start(t)
	schemas, err := Load(filepath.Join("..", "..", "testdata", "tree.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	node := schemas[0]
	children, _ := node.ByName("children")
	if children.Message != node {
		t.Fatalf("recursive reference not resolved")
	}
}

func TestReferencesResolveAcrossFiles(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.toml")
	b := filepath.Join(dir, "b.yml")
	writeFile(t, a, `
[[message]]
name = "Envelope"
  [[message.field]]
  name = "body"
  number = 1
  kind = "message"
  message = "Body"
`)
	writeFile(t, b, `
message:
  - name: Body
    field:
      - {name: text, number: 1, kind: string}
`)
	reg := schema.NewRegistry()
	if _, err := LoadInto(reg, a, b); err != nil {
		t.Fatalf("load into: %v", err)
	}
	env, err := reg.Lookup("Envelope")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	body, _ := env.ByName("body")
	if body.Message.Name() != "Body" {
		t.Fatalf("unexpected nested schema %s", body.Message.Name())
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 registered schemas, got %d", reg.Len())
	}
}

func TestParseErrors(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown reference",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"b\"\nnumber = 1\nkind = \"message\"\nmessage = \"Missing\"\n",
			want: ErrUnknownMessageRef,
		},
		{
			name: "message kind without reference",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"b\"\nnumber = 1\nkind = \"message\"\n",
			want: ErrUnknownMessageRef,
		},
		{
			name: "bad kind",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"b\"\nnumber = 1\nkind = \"float\"\n",
			want: ErrInvalidKind,
		},
		{
			name: "bad cardinality",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"b\"\nnumber = 1\nkind = \"bool\"\ncardinality = \"many\"\n",
			want: ErrInvalidCardinality,
		},
		{
			name: "duplicate message",
			doc:  "[[message]]\nname = \"A\"\n[[message]]\nname = \"A\"\n",
			want: ErrDuplicateMessage,
		},
		{
			name: "duplicate number",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"a\"\nnumber = 1\nkind = \"bool\"\n[[message.field]]\nname = \"b\"\nnumber = 1\nkind = \"bool\"\n",
			want: schema.ErrInvalidSchema,
		},
		{
			name: "number out of range",
			doc:  "[[message]]\nname = \"A\"\n[[message.field]]\nname = \"a\"\nnumber = 4294967297\nkind = \"bool\"\n",
			want: schema.ErrInvalidSchema,
		},
		{
			name: "unknown key",
			doc:  "[[message]]\nname = \"A\"\npackage = \"x\"\n",
			want: ErrUnknownKey,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTOML([]byte(tc.doc))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseYAMLUnknownKey(t *testing.T) {
	testlog.Start(t)
	_, err := ParseYAML([]byte("message:\n  - name: A\n    fields: []\n"))
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestParseEmptyDocuments(t *testing.T) {
	testlog.Start(t)
	if schemas, err := ParseTOML(nil); err != nil || len(schemas) != 0 {
		t.Fatalf("empty toml: %v %v", schemas, err)
	}
	if schemas, err := ParseYAML(nil); err != nil || len(schemas) != 0 {
		t.Fatalf("empty yaml: %v %v", schemas, err)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "schema.json")
	writeFile(t, path, "{}")
	if _, err := Load(path); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
