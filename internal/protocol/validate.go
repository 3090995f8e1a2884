package protocol

import (
	"strconv"

	"github.com/danmuck/msgwire/internal/protocol/schema"
)

// Validate checks m against s and returns every violation in declared field
// order. A nil result means m is valid. Names in m that s does not declare
// are ignored. Neither m nor s is modified.
func Validate(s *schema.Schema, m Message) ValidationErrors {
	var errs ValidationErrors
	validateMessage(s, m, "", &errs)
	return errs
}

func validateMessage(s *schema.Schema, m Message, prefix string, errs *ValidationErrors) {
	for i := 0; i < s.Len(); i++ {
		spec := s.Field(i)
		path := joinPath(prefix, spec.Name)
		v, present := m[spec.Name]
		if !present || v.IsNull() {
			if spec.Cardinality == schema.Required {
				*errs = append(*errs, ValidationError{Code: CodeMissingField, Path: path, Want: spec.TypeName()})
			}
			continue
		}
		if spec.Cardinality == schema.Repeated {
			if v.Kind != ValueList {
				*errs = append(*errs, mismatch(path, spec.TypeName(), v))
				continue
			}
			for j, elem := range v.List {
				validateElement(spec, elem, path+"["+strconv.Itoa(j)+"]", errs)
			}
			continue
		}
		validateElement(spec, v, path, errs)
	}
}

func validateElement(spec schema.FieldSpec, v Value, path string, errs *ValidationErrors) {
	if !v.matches(spec.Kind) {
		want := spec.Kind.String()
		if spec.Kind == schema.KindMessage {
			want = spec.Message.Name()
		}
		*errs = append(*errs, mismatch(path, want, v))
		return
	}
	if spec.Kind == schema.KindMessage {
		validateMessage(spec.Message, v.Msg, path, errs)
	}
}

func mismatch(path, want string, got Value) ValidationError {
	return ValidationError{Code: CodeTypeMismatch, Path: path, Want: want, Got: got.Kind.String()}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
