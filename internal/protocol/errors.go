package protocol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEncode = errors.New("protocol: encode failed")
	ErrDecode = errors.New("protocol: decode failed")

	ErrTruncatedInput     = errors.New("protocol: truncated input")
	ErrInvalidVarint      = errors.New("protocol: invalid varint")
	ErrWireTypeMismatch   = errors.New("protocol: wire type mismatch")
	ErrInvalidFieldNumber = errors.New("protocol: invalid field number")
	ErrDepthExceeded      = errors.New("protocol: nesting depth exceeded")
	ErrMessageTooLarge    = errors.New("protocol: message too large")
	ErrMalformed          = errors.New("protocol: malformed field")
)

// Validation issue codes.
const (
	CodeMissingField = "missing_field"
	CodeTypeMismatch = "type_mismatch"
)

// ValidationError is one violation found by Validate. Path names the field
// from the message root, e.g. "consent.scopes[1]".
type ValidationError struct {
	Code string `json:"code"`
	Path string `json:"path"`
	Want string `json:"want,omitempty"`
	Got  string `json:"got,omitempty"`
}

func (e ValidationError) Error() string {
	switch e.Code {
	case CodeMissingField:
		return fmt.Sprintf("protocol: %s: missing required field", e.Path)
	case CodeTypeMismatch:
		return fmt.Sprintf("protocol: %s: type mismatch: want %s, got %s", e.Path, e.Want, e.Got)
	default:
		return fmt.Sprintf("protocol: %s: %s", e.Path, e.Code)
	}
}

// ValidationErrors is every violation found in one pass, in schema order.
type ValidationErrors []ValidationError

// Error summarizes the first few violations.
func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	lim := len(errs)
	if lim > maxShown {
		lim = maxShown
	}
	b.WriteString("protocol: invalid message: ")
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(b, "%s at %s", errs[i].Code, errs[i].Path)
	}
	if len(errs) > lim {
		fmt.Fprintf(b, "; ... (total %d)", len(errs))
	}
	return b.String()
}

// Has reports whether any violation carries code at path.
func (errs ValidationErrors) Has(code, path string) bool {
	for _, e := range errs {
		if e.Code == code && e.Path == path {
			return true
		}
	}
	return false
}

// EncodeError reports a message that failed validation inside Encode.
type EncodeError struct {
	Schema string
	Issues ValidationErrors
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("protocol: encode %s: %s", e.Schema, e.Issues.Error())
}

func (e *EncodeError) Unwrap() []error {
	return []error{ErrEncode, e.Issues}
}

// DecodeError reports where decoding stopped. Offset is relative to the
// start of the outermost input.
type DecodeError struct {
	Offset int
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("protocol: decode at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("protocol: decode %s at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	if err == nil {
		return nil, false
	}
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}
