// Package server hosts the shared coordination endpoint: the control
// API for session lifecycle and document operations, and the websocket
// push channel that mirrors live updates to viewers. Exactly one
// process per host runs this server; siblings attach over the same
// port (see the locator package).
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/pksebben/Napkin/config"
	"github.com/pksebben/Napkin/registry"
)

// Server is the shared coordination server.
type Server struct {
	registry   *registry.Registry
	router     *httprouter.Router
	httpServer *http.Server
	wsConfig   *config.WebSocketConfig
}

// New creates a server around a session registry.
func New(reg *registry.Registry, wsConfig *config.WebSocketConfig) *Server {
	s := &Server{
		registry: reg,
		router:   httprouter.New(),
		wsConfig: wsConfig,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	// Control API
	s.router.GET("/api/sessions", s.handleListSessions)
	s.router.POST("/api/sessions", s.handleCreateSession)
	s.router.DELETE("/api/sessions/:name", s.handleDestroySession)
	s.router.GET("/api/sessions/:name/design", s.handleReadDesign)
	s.router.POST("/api/sessions/:name/design", s.handleWriteDesign)
	s.router.GET("/api/sessions/:name/history", s.handleHistory)
	s.router.POST("/api/sessions/:name/rollback", s.handleRollback)
	s.router.DELETE("/api/sessions/:name/history/:timestamp", s.handleDeleteSnapshot)

	// Viewer push channel
	s.router.GET("/s/:name/ws", s.handleViewerSocket)
}

// Handler exposes the routing table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Registry returns the registry this server mutates.
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Serve runs the HTTP server on an already-bound listener. The caller
// owns the bind so the port race is decided before any server exists.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
	}
	log.Printf("Coordination server listening on %s", ln.Addr())
	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("coordination server: %w", err)
	}
	return nil
}

// Shutdown drains the HTTP server and closes every viewer connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.registry.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
