// Package schemafile loads message schemas from TOML or YAML files.
//
//	[[message]]
//	name = "Person"
//	  [[message.field]]
//	  name = "name"
//	  number = 1
//	  kind = "string"
//	  cardinality = "required"
//
// A field of kind "message" names its nested schema with message = "...".
// References resolve across every file of a load, in any order, and may be
// recursive.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/msgwire/internal/protocol/schema"
	"github.com/danmuck/msgwire/internal/protocol/wire"
)

var (
	ErrUnknownMessageRef  = errors.New("schemafile: unknown message reference")
	ErrInvalidKind        = errors.New("schemafile: invalid kind")
	ErrInvalidCardinality = errors.New("schemafile: invalid cardinality")
	ErrDuplicateMessage   = errors.New("schemafile: duplicate message definition")
	ErrUnknownKey         = errors.New("schemafile: unknown key")
	ErrFormat             = errors.New("schemafile: unsupported file extension")
)

type fileDoc struct {
	Messages []messageDoc `toml:"message" yaml:"message"`
}

type messageDoc struct {
	Name   string     `toml:"name" yaml:"name"`
	Fields []fieldDoc `toml:"field" yaml:"field"`
}

type fieldDoc struct {
	Name        string `toml:"name" yaml:"name"`
	Number      int64  `toml:"number" yaml:"number"`
	Kind        string `toml:"kind" yaml:"kind"`
	Cardinality string `toml:"cardinality" yaml:"cardinality"`
	Message     string `toml:"message" yaml:"message"`
}

// ParseTOML builds the schemas of a single TOML document.
func ParseTOML(data []byte) ([]*schema.Schema, error) {
	doc, err := decodeTOML(data, "input")
	if err != nil {
		return nil, err
	}
	return build([]fileDoc{doc})
}

// ParseYAML builds the schemas of a single YAML document.
func ParseYAML(data []byte) ([]*schema.Schema, error) {
	doc, err := decodeYAML(data, "input")
	if err != nil {
		return nil, err
	}
	return build([]fileDoc{doc})
}

// Load reads every path, picking the decoder by extension, and builds the
// combined schema set in file then declaration order.
func Load(paths ...string) ([]*schema.Schema, error) {
	docs := make([]fileDoc, 0, len(paths))
	for _, path := range paths {
		doc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return build(docs)
}

// LoadInto loads paths and registers every schema under its own name.
func LoadInto(reg *schema.Registry, paths ...string) ([]*schema.Schema, error) {
	schemas, err := Load(paths...)
	if err != nil {
		return nil, err
	}
	for _, s := range schemas {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	return schemas, nil
}

func readFile(path string) (fileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileDoc{}, fmt.Errorf("read schema file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(data, path)
	case ".yaml", ".yml":
		return decodeYAML(data, path)
	default:
		return fileDoc{}, fmt.Errorf("%w: %s", ErrFormat, path)
	}
}

func decodeTOML(data []byte, origin string) (fileDoc, error) {
	var doc fileDoc
	meta, err := toml.Decode(string(data), &doc)
	if err != nil {
		return fileDoc{}, fmt.Errorf("parse schema toml %s: %w", origin, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fileDoc{}, fmt.Errorf("%w: %s %s", ErrUnknownKey, origin, strings.Join(keys, ", "))
	}
	if !meta.IsDefined("message") {
		return fileDoc{}, nil
	}
	return doc, nil
}

func decodeYAML(data []byte, origin string) (fileDoc, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return fileDoc{}, nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && strings.Contains(err.Error(), "not found in type") {
			return fileDoc{}, fmt.Errorf("%w: %s: %v", ErrUnknownKey, origin, err)
		}
		return fileDoc{}, fmt.Errorf("parse schema yaml %s: %w", origin, err)
	}
	return doc, nil
}

// build declares every message first so fields can reference any of them,
// then defines each in order.
func build(docs []fileDoc) ([]*schema.Schema, error) {
	byName := make(map[string]*schema.Schema)
	var order []*schema.Schema
	var defs []messageDoc
	for _, doc := range docs {
		for _, m := range doc.Messages {
			name := strings.TrimSpace(m.Name)
			if name == "" {
				return nil, fmt.Errorf("%w: message without name", schema.ErrInvalidSchema)
			}
			if _, dup := byName[name]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateMessage, name)
			}
			s := schema.Declare(name)
			byName[name] = s
			order = append(order, s)
			defs = append(defs, m)
		}
	}
	for i, m := range defs {
		fields := make([]schema.FieldSpec, 0, len(m.Fields))
		for _, f := range m.Fields {
			spec, err := fieldSpec(order[i].Name(), f, byName)
			if err != nil {
				return nil, err
			}
			fields = append(fields, spec)
		}
		if err := order[i].Define(fields...); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func fieldSpec(owner string, f fieldDoc, byName map[string]*schema.Schema) (schema.FieldSpec, error) {
	kind, ok := schema.ParseKind(strings.TrimSpace(f.Kind))
	if !ok {
		return schema.FieldSpec{}, fmt.Errorf("%w: %s.%s: %q", ErrInvalidKind, owner, f.Name, f.Kind)
	}
	card, ok := schema.ParseCardinality(strings.TrimSpace(f.Cardinality))
	if !ok {
		return schema.FieldSpec{}, fmt.Errorf("%w: %s.%s: %q", ErrInvalidCardinality, owner, f.Name, f.Cardinality)
	}
	// range check before narrowing to wire.Number
	if f.Number < int64(wire.MinNumber) || f.Number > int64(wire.MaxNumber) {
		return schema.FieldSpec{}, fmt.Errorf(
			"%w: %s.%s: invalid field number %d", schema.ErrInvalidSchema, owner, f.Name, f.Number,
		)
	}
	spec := schema.FieldSpec{
		Name:        strings.TrimSpace(f.Name),
		Number:      wire.Number(f.Number),
		Kind:        kind,
		Cardinality: card,
	}
	ref := strings.TrimSpace(f.Message)
	switch {
	case kind == schema.KindMessage && ref == "":
		return schema.FieldSpec{}, fmt.Errorf("%w: %s.%s: message kind needs a message name", ErrUnknownMessageRef, owner, f.Name)
	case kind == schema.KindMessage:
		nested, ok := byName[ref]
		if !ok {
			return schema.FieldSpec{}, fmt.Errorf("%w: %s.%s references %q", ErrUnknownMessageRef, owner, f.Name, ref)
		}
		spec.Message = nested
	case ref != "":
		return schema.FieldSpec{}, fmt.Errorf("%w: %s.%s: %s field names message %q", schema.ErrInvalidSchema, owner, f.Name, kind, ref)
	}
	return spec, nil
}
