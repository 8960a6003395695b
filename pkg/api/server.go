// Package api exposes the HTTP surface: the chat endpoint driving the
// advisory pipeline, profile and report access, session administration,
// and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/database"
	"github.com/finagent-io/finagent/pkg/orchestrator"
	"github.com/finagent-io/finagent/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	cfg      *config.Config
	orch     *orchestrator.Orchestrator
	dbClient *database.Client
	profiles services.ProfileStore
	reports  services.ReportStore

	httpServer *http.Server
}

// NewServer creates the API server. dbClient, profiles, and reports may
// be nil when running without persistence.
func NewServer(cfg *config.Config, orch *orchestrator.Orchestrator, dbClient *database.Client, profiles services.ProfileStore, reports services.ReportStore) *Server {
	return &Server{
		cfg:      cfg,
		orch:     orch,
		dbClient: dbClient,
		profiles: profiles,
		reports:  reports,
	}
}

// Routes builds the gin engine with all endpoints registered.
func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), securityHeaders())

	router.GET("/health", s.healthHandler)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/chat", s.chatHandler)

		v1.GET("/profile/:userID", s.getProfileHandler)
		v1.PUT("/profile/:userID", s.updateProfileHandler)
		v1.GET("/reports/:userID/latest", s.latestReportHandler)

		v1.GET("/sessions", s.listSessionsHandler)
		v1.DELETE("/sessions/:sessionID", s.deleteSessionHandler)
	}
	return router
}

// Start begins serving on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
