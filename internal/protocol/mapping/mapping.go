// Package mapping converts between messages and the untyped trees produced
// by JSON and YAML decoders.
//
// The JSON form follows the protobuf JSON conventions the codec was built
// against: field names are keys, int64 values are written as decimal
// strings, bytes are standard base64. Reading is lenient in the same way:
// int64 fields accept numbers or decimal strings and bytes fields accept
// base64 strings. A value that cannot be read as its declared kind keeps
// its natural kind so protocol.Validate reports the mismatch.
package mapping

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/schema"
)

var (
	ErrSyntax      = errors.New("mapping: malformed document")
	ErrNotObject   = errors.New("mapping: document root is not an object")
	ErrNumber      = errors.New("mapping: number is not an integer")
	ErrUnsupported = errors.New("mapping: unsupported value")
)

// FromJSON decodes a JSON object into a message of schema s.
func FromJSON(s *schema.Schema, data []byte) (protocol.Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: json: %v", ErrSyntax, err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: json: trailing data after document", ErrSyntax)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return FromNative(s, obj)
}

// FromYAML decodes a YAML mapping into a message of schema s.
func FromYAML(s *schema.Schema, data []byte) (protocol.Message, error) {
	var root any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: yaml: %v", ErrSyntax, err)
	}
	obj, ok := stringMap(root)
	if !ok {
		return nil, ErrNotObject
	}
	return FromNative(s, obj)
}

// FromNative converts an untyped tree into a message of schema s. Keys s
// does not declare are dropped.
func FromNative(s *schema.Schema, in map[string]any) (protocol.Message, error) {
	return fromObject(s, in, "")
}

func fromObject(s *schema.Schema, in map[string]any, path string) (protocol.Message, error) {
	out := make(protocol.Message, len(in))
	for key, raw := range in {
		spec, ok := s.ByName(key)
		if !ok {
			continue
		}
		v, err := fromField(spec, raw, join(path, key))
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func fromField(spec schema.FieldSpec, raw any, path string) (protocol.Value, error) {
	if spec.Cardinality == schema.Repeated {
		if items, ok := raw.([]any); ok {
			list := make([]protocol.Value, 0, len(items))
			for i, item := range items {
				v, err := fromElement(spec, item, path+"["+strconv.Itoa(i)+"]")
				if err != nil {
					return protocol.Value{}, err
				}
				list = append(list, v)
			}
			return protocol.List(list...), nil
		}
	}
	return fromElement(spec, raw, path)
}

func fromElement(spec schema.FieldSpec, raw any, path string) (protocol.Value, error) {
	switch spec.Kind {
	case schema.KindInt64:
		if s, ok := raw.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return protocol.Int64(n), nil
			}
		}
	case schema.KindBytes:
		if s, ok := raw.(string); ok {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				return protocol.Bytes(b), nil
			}
		}
	case schema.KindMessage:
		if obj, ok := stringMap(raw); ok {
			m, err := fromObject(spec.Message, obj, path)
			if err != nil {
				return protocol.Value{}, err
			}
			return protocol.Msg(m), nil
		}
	}
	return natural(raw, path)
}

// natural converts raw without schema guidance.
func natural(raw any, path string) (protocol.Value, error) {
	switch t := raw.(type) {
	case nil:
		return protocol.Null(), nil
	case bool:
		return protocol.Bool(t), nil
	case string:
		return protocol.String(t), nil
	case []byte:
		return protocol.Bytes(t), nil
	case json.Number:
		return number(string(t), path)
	case int:
		return protocol.Int64(int64(t)), nil
	case int64:
		return protocol.Int64(t), nil
	case int32:
		return protocol.Int64(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return protocol.Value{}, fmt.Errorf("%w: %s overflows int64", ErrNumber, path)
		}
		return protocol.Int64(int64(t)), nil
	case float64:
		return float(t, path)
	case []any:
		list := make([]protocol.Value, 0, len(t))
		for i, item := range t {
			v, err := natural(item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return protocol.Value{}, err
			}
			list = append(list, v)
		}
		return protocol.List(list...), nil
	}
	if obj, ok := stringMap(raw); ok {
		m := make(protocol.Message, len(obj))
		for key, item := range obj {
			v, err := natural(item, join(path, key))
			if err != nil {
				return protocol.Value{}, err
			}
			m[key] = v
		}
		return protocol.Msg(m), nil
	}
	return protocol.Value{}, fmt.Errorf("%w: %s has type %T", ErrUnsupported, path, raw)
}

func number(text, path string) (protocol.Value, error) {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return protocol.Int64(n), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return protocol.Value{}, fmt.Errorf("%w: %s is %q", ErrNumber, path, text)
	}
	return float(f, path)
}

func float(f float64, path string) (protocol.Value, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return protocol.Value{}, fmt.Errorf("%w: %s is %v", ErrNumber, path, f)
	}
	return protocol.Int64(int64(f)), nil
}

// stringMap accepts both map shapes YAML decoders produce.
func stringMap(raw any) (map[string]any, bool) {
	switch t := raw.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	}
	return nil, false
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
