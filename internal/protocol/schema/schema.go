package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/msgwire/internal/protocol/wire"
)

var (
	ErrInvalidSchema  = errors.New("schema: invalid schema")
	ErrAlreadyDefined = errors.New("schema: already defined")
	ErrUndefined      = errors.New("schema: declared but not defined")
)

// Kind is the element type of a field.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt64
	KindString
	KindBytes
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindMessage:
		return "message"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a textual kind name to a Kind.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bool":
		return KindBool, true
	case "int64":
		return KindInt64, true
	case "string":
		return KindString, true
	case "bytes":
		return KindBytes, true
	case "message":
		return KindMessage, true
	default:
		return KindInvalid, false
	}
}

// WireType is the wire type used for a single element of kind k.
func (k Kind) WireType() wire.Type {
	switch k {
	case KindBool, KindInt64:
		return wire.TypeVarint
	default:
		return wire.TypeBytes
	}
}

// Cardinality says how many occurrences a field may have.
type Cardinality uint8

const (
	Optional Cardinality = iota
	Required
	Repeated
)

func (c Cardinality) String() string {
	switch c {
	case Optional:
		return "optional"
	case Required:
		return "required"
	case Repeated:
		return "repeated"
	default:
		return fmt.Sprintf("cardinality(%d)", uint8(c))
	}
}

// ParseCardinality maps a textual cardinality to a Cardinality. The empty
// string means optional.
func ParseCardinality(raw string) (Cardinality, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "optional":
		return Optional, true
	case "required":
		return Required, true
	case "repeated":
		return Repeated, true
	default:
		return Optional, false
	}
}

// FieldSpec declares a field within a message schema.
type FieldSpec struct {
	Name        string
	Number      wire.Number
	Kind        Kind
	Cardinality Cardinality
	// Message is the nested schema when Kind is KindMessage.
	Message *Schema
}

// TypeName renders the declared type, e.g. "repeated<string>".
func (f FieldSpec) TypeName() string {
	elem := f.Kind.String()
	if f.Kind == KindMessage && f.Message != nil {
		elem = f.Message.Name()
	}
	if f.Cardinality == Repeated {
		return "repeated<" + elem + ">"
	}
	return elem
}

// Schema is a named, ordered set of fields. A Schema is declared first and
// defined exactly once; after Define it never changes, so it may be shared
// freely between goroutines.
type Schema struct {
	name     string
	fields   []FieldSpec
	byName   map[string]int
	byNumber map[wire.Number]int
	defined  bool
}

// Declare returns an empty named schema that can be referenced by fields
// before it is defined. This is how recursive messages are built.
func Declare(name string) *Schema {
	return &Schema{name: name}
}

// New declares and defines a schema in one step.
func New(name string, fields ...FieldSpec) (*Schema, error) {
	s := Declare(name)
	if err := s.Define(fields...); err != nil {
		return nil, err
	}
	return s, nil
}

// MustNew is New that panics on error, for package-level fixtures.
func MustNew(name string, fields ...FieldSpec) *Schema {
	s, err := New(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Define sets the fields of a declared schema. It fails if the schema was
// already defined or if the fields break a schema invariant.
func (s *Schema) Define(fields ...FieldSpec) error {
	if s.defined {
		return fmt.Errorf("%w: %s", ErrAlreadyDefined, s.name)
	}
	if strings.TrimSpace(s.name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSchema)
	}
	byName := make(map[string]int, len(fields))
	byNumber := make(map[wire.Number]int, len(fields))
	for i, f := range fields {
		if err := checkField(f); err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidSchema, s.name, f.Name, err)
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("%w: %s: duplicate field name %q", ErrInvalidSchema, s.name, f.Name)
		}
		if prev, dup := byNumber[f.Number]; dup {
			return fmt.Errorf(
				"%w: %s: field number %d used by %q and %q",
				ErrInvalidSchema, s.name, f.Number, fields[prev].Name, f.Name,
			)
		}
		byName[f.Name] = i
		byNumber[f.Number] = i
	}
	s.fields = append([]FieldSpec(nil), fields...)
	s.byName = byName
	s.byNumber = byNumber
	s.defined = true
	return nil
}

func checkField(f FieldSpec) error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("empty field name")
	}
	if !wire.ValidNumber(f.Number) {
		return fmt.Errorf("invalid field number %d", f.Number)
	}
	switch f.Kind {
	case KindBool, KindInt64, KindString, KindBytes:
		if f.Message != nil {
			return fmt.Errorf("%s field carries a message reference", f.Kind)
		}
	case KindMessage:
		if f.Message == nil {
			return errors.New("message field without nested schema")
		}
	default:
		return fmt.Errorf("invalid kind %d", f.Kind)
	}
	switch f.Cardinality {
	case Optional, Required, Repeated:
	default:
		return fmt.Errorf("invalid cardinality %d", f.Cardinality)
	}
	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string {
	return s.name
}

// Defined reports whether Define has succeeded.
func (s *Schema) Defined() bool {
	return s.defined
}

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []FieldSpec {
	return append([]FieldSpec(nil), s.fields...)
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}

// Field returns the i-th declared field.
func (s *Schema) Field(i int) FieldSpec {
	return s.fields[i]
}

// ByName looks a field up by name.
func (s *Schema) ByName(name string) (FieldSpec, bool) {
	i, ok := s.byName[name]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// ByNumber looks a field up by wire number.
func (s *Schema) ByNumber(n wire.Number) (FieldSpec, bool) {
	i, ok := s.byNumber[n]
	if !ok {
		return FieldSpec{}, false
	}
	return s.fields[i], true
}

// CheckDefined walks s and every schema reachable from it and fails on the
// first one that was declared but never defined.
func CheckDefined(s *Schema) error {
	seen := make(map[*Schema]struct{})
	var walk func(*Schema) error
	walk = func(cur *Schema) error {
		if _, ok := seen[cur]; ok {
			return nil
		}
		seen[cur] = struct{}{}
		if !cur.defined {
			return fmt.Errorf("%w: %s", ErrUndefined, cur.name)
		}
		for _, f := range cur.fields {
			if f.Kind == KindMessage {
				if err := walk(f.Message); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return walk(s)
}
