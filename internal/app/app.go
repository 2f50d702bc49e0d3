package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet/internal/auth"
	"github.com/vovakirdan/wiremeet/internal/config"
	"github.com/vovakirdan/wiremeet/internal/core"
	wmlog "github.com/vovakirdan/wiremeet/internal/log"
	"github.com/vovakirdan/wiremeet/internal/store"
	"github.com/vovakirdan/wiremeet/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wiremeet/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// JWTConfig derives token settings from cfg.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
}

// HubOptions derives hub settings from cfg.
func HubOptions(cfg *config.Config) core.Options {
	return core.Options{
		DefaultRoom:       cfg.DefaultRoom,
		SendBuffer:        cfg.SendBuffer,
		RelayUnknownTypes: cfg.RelayUnknownTypes,
		TrackerQueue:      cfg.TrackerQueue,
		StoreTimeout:      cfg.StoreTimeout,
	}
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st, JWTConfig(cfg), wmlog.Component(logger, "auth"))
	hub := core.NewHub(core.Deps{
		Verifier:      authService,
		Meetings:      st,
		Participation: st,
	}, HubOptions(cfg), wmlog.Component(logger, "hub"))
	server := transporthttp.NewServer(hub, authService, st, cfg, wmlog.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	var err error
	select {
	case err = <-serverErr:
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err = a.server.Shutdown(shutdownCtx); err == nil {
			err = <-serverErr
		}
	}

	// Participation writes must finish before the store closes. Hijacked
	// sockets outlive server.Shutdown, so drop them here and let Run drain.
	a.hub.Shutdown()
	stopHub()
	<-hubDone
	a.cleanup()
	return err
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
