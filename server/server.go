package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/ralim/titlecheck/library"
	"github.com/ralim/titlecheck/settings"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

//Server exposes the registry and version reports as JSON

type Server struct {
	library  *library.Library
	settings *settings.Settings
	http     *http.Server
	handler  http.Handler
}

func NewServer(lib *library.Library, settings *settings.Settings) *Server {
	server := &Server{
		library:  lib,
		settings: settings,
	}
	chain := alice.New(
		hlog.NewHandler(log.Logger),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("HTTP request")
		}),
		hlog.RemoteAddrHandler("ip"),
		hlog.RequestIDHandler("req_id", "Request-Id"),
	)
	server.handler = chain.Then(server)
	return server
}

// Handler is the router wrapped in the logging middleware
func (server *Server) Handler() http.Handler {
	return server.handler
}

// Run starts the HTTP listener in the background. Does nothing when the port is 0
func (server *Server) Run() {
	if server.settings.HTTPPort == 0 {
		log.Info().Msg("HTTP server disabled")
		return
	}
	server.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", server.settings.HTTPPort),
		Handler:           server.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Int("port", server.settings.HTTPPort).Msg("Starting HTTP server")
	go func() {
		if err := server.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()
}

func (server *Server) Stop() {
	if server.http == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.http.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
	}
}
