package observability

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/msgwire/internal/logging"
)

// InitLogger builds the process logger for app from the runtime logging
// profile and installs it as the global zerolog logger.
func InitLogger(app string) zerolog.Logger {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	logging.ApplyEnvOverrides(&cfg, os.Getenv)
	zerolog.SetGlobalLevel(cfg.Level)
	logger := logging.New(os.Stderr, cfg).With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
