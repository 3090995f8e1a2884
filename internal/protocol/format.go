package protocol

import (
	"strconv"
	"strings"

	"github.com/danmuck/msgwire/internal/protocol/schema"
)

// Format renders m as indented text in the schema's field order, one line
// per scalar and one block per nested message:
//
//	name: "Ana"
//	tags: "x"
//	consent {
//	  granted: true
//	}
//
// Names s does not declare and values that do not match their declared
// kind are left out.
func Format(s *schema.Schema, m Message) string {
	b := &strings.Builder{}
	formatMessage(b, s, m, 0)
	return b.String()
}

func formatMessage(b *strings.Builder, s *schema.Schema, m Message, depth int) {
	for i := 0; i < s.Len(); i++ {
		spec := s.Field(i)
		v, ok := m[spec.Name]
		if !ok || v.IsNull() {
			continue
		}
		if spec.Cardinality == schema.Repeated {
			if v.Kind != ValueList {
				continue
			}
			for _, elem := range v.List {
				formatElement(b, spec, elem, depth)
			}
			continue
		}
		formatElement(b, spec, v, depth)
	}
}

func formatElement(b *strings.Builder, spec schema.FieldSpec, v Value, depth int) {
	if !v.matches(spec.Kind) {
		return
	}
	indent := strings.Repeat("  ", depth)
	if spec.Kind == schema.KindMessage {
		b.WriteString(indent + spec.Name + " {\n")
		formatMessage(b, spec.Message, v.Msg, depth+1)
		b.WriteString(indent + "}\n")
		return
	}
	b.WriteString(indent + spec.Name + ": ")
	switch spec.Kind {
	case schema.KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case schema.KindInt64:
		b.WriteString(strconv.FormatInt(v.Int, 10))
	case schema.KindString:
		b.WriteString(strconv.Quote(v.Str))
	case schema.KindBytes:
		b.WriteString(strconv.Quote(string(v.Bytes)))
	}
	b.WriteString("\n")
}
