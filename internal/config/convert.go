package config

import (
	"github.com/danmuck/msgwire/internal/protocol"
	"github.com/danmuck/msgwire/internal/protocol/frame"
)

// DecodeLimits converts the configured limits for the message decoder.
func (cfg Config) DecodeLimits() protocol.Limits {
	return protocol.Limits{
		MaxDepth:        cfg.Limits.MaxDepth,
		MaxMessageBytes: cfg.Limits.MaxMessageBytes,
	}
}

// FrameLimits converts the configured limits for delimited streams.
func (cfg Config) FrameLimits() frame.Limits {
	return frame.Limits{MaxMessageBytes: uint64(cfg.Limits.MaxMessageBytes)}
}

// TokenSubjects returns the token to subject table.
func (cfg Config) TokenSubjects() map[string]string {
	out := make(map[string]string, len(cfg.Server.Tokens))
	for _, tok := range cfg.Server.Tokens {
		out[tok.Token] = tok.Subject
	}
	return out
}
