package mapping

import (
	"encoding/base64"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/schema"
)

// ToNative converts m into a JSON-ready tree. Absent, null and empty
// repeated fields are omitted, as are values that do not match their
// declared kind and names s does not declare.
func ToNative(s *schema.Schema, m protocol.Message) map[string]any {
	out := make(map[string]any, len(m))
	for _, spec := range s.Fields() {
		v, ok := m[spec.Name]
		if !ok || v.IsNull() {
			continue
		}
		if spec.Cardinality == schema.Repeated {
			if v.Kind != protocol.ValueList || len(v.List) == 0 {
				continue
			}
			items := make([]any, 0, len(v.List))
			for _, elem := range v.List {
				if x, ok := toElement(spec, elem); ok {
					items = append(items, x)
				}
			}
			out[spec.Name] = items
			continue
		}
		if x, ok := toElement(spec, v); ok {
			out[spec.Name] = x
		}
	}
	return out
}

func toElement(spec schema.FieldSpec, v protocol.Value) (any, bool) {
	switch {
	case spec.Kind == schema.KindBool && v.Kind == protocol.ValueBool:
		return v.Bool, true
	case spec.Kind == schema.KindInt64 && v.Kind == protocol.ValueInt64:
		return strconv.FormatInt(v.Int, 10), true
	case spec.Kind == schema.KindString && v.Kind == protocol.ValueString:
		return v.Str, true
	case spec.Kind == schema.KindBytes && v.Kind == protocol.ValueBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes), true
	case spec.Kind == schema.KindMessage && v.Kind == protocol.ValueMessage:
		return ToNative(spec.Message, v.Msg), true
	}
	return nil, false
}

// ToJSON renders m as a JSON object with sorted keys.
func ToJSON(s *schema.Schema, m protocol.Message) ([]byte, error) {
	return json.Marshal(ToNative(s, m))
}

// ToJSONIndent is ToJSON with two-space indentation.
func ToJSONIndent(s *schema.Schema, m protocol.Message) ([]byte, error) {
	return json.MarshalIndent(ToNative(s, m), "", "  ")
}
