// Package codec is the name-based entry point used by the CLI and the
// server: schemas are looked up in a registry, decode limits are applied,
// and every operation is logged and counted.
package codec

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/msgwire/internal/observability"
	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/schema"
)

type Options struct {
	// Registry defaults to an empty registry.
	Registry *schema.Registry
	// Limits defaults to protocol.DefaultLimits.
	Limits *protocol.Limits
	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

type Codec struct {
	reg    *schema.Registry
	limits protocol.Limits
	log    zerolog.Logger
}

func New(opts Options) *Codec {
	c := &Codec{
		reg:    opts.Registry,
		limits: protocol.DefaultLimits(),
		log:    log.Logger,
	}
	if c.reg == nil {
		c.reg = schema.NewRegistry()
	}
	if opts.Limits != nil {
		c.limits = *opts.Limits
	}
	if opts.Logger != nil {
		c.log = *opts.Logger
	}
	c.log = c.log.With().Str("component", "codec").Logger()
	return c
}

func (c *Codec) Registry() *schema.Registry {
	return c.reg
}

func (c *Codec) Limits() protocol.Limits {
	return c.limits
}

// RegisterSchema adds s under its own name. Registration must finish before
// the codec is shared between goroutines; Freeze enforces that.
func (c *Codec) RegisterSchema(s *schema.Schema) error {
	if err := c.reg.Register(s); err != nil {
		return err
	}
	c.log.Debug().Str("schema", s.Name()).Int("fields", s.Len()).Msg("schema registered")
	return nil
}

func (c *Codec) Freeze() {
	c.reg.Freeze()
}

func (c *Codec) Schema(name string) (*schema.Schema, error) {
	return c.reg.Lookup(name)
}

func (c *Codec) Schemas() []string {
	return c.reg.Names()
}

// Validate checks m against the named schema. The error is non-nil only
// when the schema is unknown.
func (c *Codec) Validate(name string, m protocol.Message) (protocol.ValidationErrors, error) {
	s, err := c.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	issues := protocol.Validate(s, m)
	if len(issues) > 0 {
		observability.RecordCodecOp("validate", name, observability.ResultInvalid, -1)
		c.log.Debug().Str("schema", name).Int("issues", len(issues)).Msg("validate rejected message")
		return issues, nil
	}
	observability.RecordCodecOp("validate", name, observability.ResultOK, -1)
	return nil, nil
}

func (c *Codec) Encode(name string, m protocol.Message) ([]byte, error) {
	s, err := c.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	b, err := protocol.Encode(s, m)
	if err != nil {
		c.failed("encode", name, err)
		return nil, err
	}
	observability.RecordCodecOp("encode", name, observability.ResultOK, len(b))
	c.log.Debug().Str("schema", name).Int("bytes", len(b)).Msg("encoded")
	return b, nil
}

// Decode parses b with the named schema and the codec limits. The result
// is not validated; see DecodeValid.
func (c *Codec) Decode(name string, b []byte) (protocol.Message, error) {
	s, err := c.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	m, err := protocol.DecodeWithLimits(s, b, c.limits)
	if err != nil {
		c.failed("decode", name, err)
		return nil, err
	}
	observability.RecordCodecOp("decode", name, observability.ResultOK, len(b))
	c.log.Debug().Str("schema", name).Int("bytes", len(b)).Int("fields", len(m)).Msg("decoded")
	return m, nil
}

// DecodeValid decodes b and validates the result. Validation failures are
// returned as protocol.ValidationErrors.
func (c *Codec) DecodeValid(name string, b []byte) (protocol.Message, error) {
	m, err := c.Decode(name, b)
	if err != nil {
		return nil, err
	}
	issues, err := c.Validate(name, m)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		return m, issues
	}
	return m, nil
}

// Format renders m with the named schema.
func (c *Codec) Format(name string, m protocol.Message) (string, error) {
	s, err := c.reg.Lookup(name)
	if err != nil {
		return "", err
	}
	return protocol.Format(s, m), nil
}

func (c *Codec) failed(op, name string, err error) {
	result := observability.ResultError
	event := c.log.Warn().Str("schema", name).Err(err)
	if issues, ok := protocol.AsValidationErrors(err); ok {
		result = observability.ResultInvalid
		event = event.Int("issues", len(issues))
	}
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		event = event.Int("offset", de.Offset)
	}
	observability.RecordCodecOp(op, name, result, -1)
	event.Msg(op + " failed")
}
