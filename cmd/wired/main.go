package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/msgwire/internal/auth"
	"github.com/danmuck/msgwire/internal/codec"
	"github.com/danmuck/msgwire/internal/config"
	"github.com/danmuck/msgwire/internal/observability"
	"github.com/danmuck/msgwire/internal/schemafile"
	"github.com/danmuck/msgwire/internal/server"
	"github.com/danmuck/msgwire/internal/store"
)

func main() {
	logger := observability.InitLogger("wired")
	configPath := flag.String("config", "wired.toml", "config file (toml)")
	flag.Parse()

	srv, err := build(*configPath, logger)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("failed to start wired")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("wired stopped")
	}
}

func build(configPath string, logger zerolog.Logger) (*server.Server, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", configPath).Int("schema_files", len(cfg.Schemas)).Msg("loaded wired config")

	limits := cfg.DecodeLimits()
	c := codec.New(codec.Options{Limits: &limits, Logger: &logger})
	if _, err := schemafile.LoadInto(c.Registry(), cfg.Schemas...); err != nil {
		return nil, err
	}
	c.Freeze()

	key, err := loadKey(cfg.Server.StoreKeyFile)
	if err != nil {
		return nil, err
	}
	sealer, err := store.NewSealer(key)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenTable(cfg.TokenSubjects())
	if tokens.Len() == 0 {
		log.Warn().Msg("no tokens configured; context routes will reject every request")
	}

	return server.New(server.Options{
		Name:         "wired",
		Addr:         cfg.Server.Addr,
		CorsOrigins:  cfg.Server.CorsOrigins,
		Codec:        c,
		Store:        store.New(sealer),
		Auth:         tokens,
		MaxBodyBytes: int64(cfg.Limits.MaxMessageBytes),
		TLSCertFile:  cfg.Server.TLSCertFile,
		TLSKeyFile:   cfg.Server.TLSKeyFile,
		Logger:       &logger,
	}), nil
}

func loadKey(path string) ([]byte, error) {
	if path != "" {
		_, err := os.Stat(path)
		if err == nil {
			return store.LoadKeyFile(path)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("store key file %s: %w", path, err)
		}
	}
	key, err := store.GenerateKey()
	if err != nil {
		return nil, err
	}
	if path == "" {
		log.Warn().Msg("no store_key_file configured; using an ephemeral key, stored contexts are lost on restart")
		return key, nil
	}
	if err := store.WriteKeyFile(path, key); err != nil {
		return nil, err
	}
	log.Warn().Str("path", path).Msg("store key file missing; generated a new key")
	return key, nil
}
