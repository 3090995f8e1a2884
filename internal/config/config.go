package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the shared configuration of wirectl and wired.
type Config struct {
	// Schemas lists schema files. Relative paths resolve against the
	// directory of the config file.
	Schemas []string     `toml:"schemas"`
	Limits  LimitsConfig `toml:"limits"`
	Server  ServerConfig `toml:"server"`
}

type LimitsConfig struct {
	MaxDepth        int `toml:"max_depth"`
	MaxMessageBytes int `toml:"max_message_bytes"`
}

type ServerConfig struct {
	Addr         string        `toml:"addr"`
	CorsOrigins  []string      `toml:"cors_origins"`
	StoreKeyFile string        `toml:"store_key_file"`
	TLSCertFile  string        `toml:"tls_cert_file"`
	TLSKeyFile   string        `toml:"tls_key_file"`
	Tokens       []TokenConfig `toml:"tokens"`
}

// TokenConfig binds a bearer token to the subject it authenticates. The
// subject "*" may access every context.
type TokenConfig struct {
	Token   string `toml:"token"`
	Subject string `toml:"subject"`
}

const (
	DefaultAddr            = ":9400"
	DefaultMaxDepth        = 64
	DefaultMaxMessageBytes = 64 * 1024 * 1024
)

func Default() Config {
	return Config{
		Limits: LimitsConfig{
			MaxDepth:        DefaultMaxDepth,
			MaxMessageBytes: DefaultMaxMessageBytes,
		},
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	cfg.resolvePaths(filepath.Dir(path))
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Limits.MaxDepth == 0 {
		cfg.Limits.MaxDepth = DefaultMaxDepth
	}
	if cfg.Limits.MaxMessageBytes == 0 {
		cfg.Limits.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = DefaultAddr
	}
}

func (cfg *Config) resolvePaths(base string) {
	for i, p := range cfg.Schemas {
		cfg.Schemas[i] = resolve(base, p)
	}
	cfg.Server.StoreKeyFile = resolve(base, cfg.Server.StoreKeyFile)
	cfg.Server.TLSCertFile = resolve(base, cfg.Server.TLSCertFile)
	cfg.Server.TLSKeyFile = resolve(base, cfg.Server.TLSKeyFile)
}

func resolve(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func Validate(cfg Config) error {
	for i, p := range cfg.Schemas {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("schemas[%d] is empty", i)
		}
	}
	if cfg.Limits.MaxDepth < 1 {
		return fmt.Errorf("limits.max_depth must be positive, got %d", cfg.Limits.MaxDepth)
	}
	if cfg.Limits.MaxMessageBytes < 1 {
		return fmt.Errorf("limits.max_message_bytes must be positive, got %d", cfg.Limits.MaxMessageBytes)
	}
	if (cfg.Server.TLSCertFile == "") != (cfg.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file must be set together")
	}
	seen := make(map[string]struct{}, len(cfg.Server.Tokens))
	for i, tok := range cfg.Server.Tokens {
		if err := ValidateTokenEntry(tok); err != nil {
			return fmt.Errorf("server.tokens[%d] invalid: %w", i, err)
		}
		if _, dup := seen[tok.Token]; dup {
			return fmt.Errorf("server.tokens[%d] invalid: duplicate token", i)
		}
		seen[tok.Token] = struct{}{}
	}
	return nil
}

func ValidateTokenEntry(tok TokenConfig) error {
	if strings.TrimSpace(tok.Token) == "" {
		return fmt.Errorf("token is required")
	}
	if strings.TrimSpace(tok.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}
