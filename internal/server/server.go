// Package server exposes the codec and the sealed context store over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/msgwire/internal/auth"
	"github.com/danmuck/msgwire/internal/codec"
	"github.com/danmuck/msgwire/internal/observability"
	"github.com/danmuck/msgwire/internal/store"
)

const defaultMaxBodyBytes = 64 * 1024 * 1024

type Options struct {
	Name        string
	Addr        string
	CorsOrigins []string
	Codec       *codec.Codec
	// Store and Auth enable the context routes; both are required for them.
	Store        *store.Store
	Auth         auth.Authenticator
	MaxBodyBytes int64
	// TLSCertFile and TLSKeyFile switch the listener to HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string
	Logger      *zerolog.Logger
}

type Server struct {
	Name     string
	Addr     string
	Appeared time.Time

	codec   *codec.Codec
	store   *store.Store
	authn   auth.Authenticator
	maxBody int64
	tlsCert string
	tlsKey  string
	log     zerolog.Logger
	router  *gin.Engine
}

func New(opts Options) *Server {
	observability.RegisterMetrics()
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Name == "" {
		opts.Name = "wired"
	}
	if opts.Codec == nil {
		opts.Codec = codec.New(codec.Options{Logger: &logger})
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := gin.New()
	r.Use(observability.Recovery(logger))
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.RequestMetricsMiddleware(opts.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		Name:     opts.Name,
		Addr:     opts.Addr,
		Appeared: time.Now(),
		codec:    opts.Codec,
		store:    opts.Store,
		authn:    opts.Auth,
		maxBody:  opts.MaxBodyBytes,
		tlsCert:  opts.TLSCertFile,
		tlsKey:   opts.TLSKeyFile,
		log:      logger,
		router:   r,
	}
	s.RegisterRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Run listens on Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	tlsOn := s.tlsCert != "" && s.tlsKey != ""
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Str("service", s.Name).Bool("tls", tlsOn).Msg("server listening")
		if tlsOn {
			errc <- srv.ServeTLS(ln, s.tlsCert, s.tlsKey)
			return
		}
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Str("service", s.Name).Msg("server stopped")
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
