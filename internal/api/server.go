// Package api serves the read-only updater status surface over HTTP.
// Every endpoint is a projection of already-synchronized state; nothing
// here mutates the graph or the manager.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/plannerstack/graphupdater/internal/observability"
	"github.com/plannerstack/graphupdater/internal/updater"
	"github.com/rs/zerolog"
)

// ServerConfig configures the status HTTP listener.
type ServerConfig struct {
	Addr        string
	CorsOrigins []string
}

// Server hosts the updater status API.
type Server struct {
	manager *updater.Manager
	router  *gin.Engine
	http    *http.Server
	log     zerolog.Logger
}

func NewServer(manager *updater.Manager, cfg ServerConfig, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(logger))
	if manager != nil {
		router.Use(observability.RequestMetricsMiddleware(manager.Graph().RouterID()))
	}
	if len(cfg.CorsOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = cfg.CorsOrigins
		router.Use(cors.New(corsCfg))
	}

	s := &Server{
		manager: manager,
		router:  router,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.With().Str("component", "status_api").Logger(),
	}
	s.registerRoutes()
	return s
}

// Router exposes the gin engine for in-process tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *Server) Serve() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("status api listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
