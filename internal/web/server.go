package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	middleware "github.com/go-chi/chi/v5/middleware"
	websocket "github.com/gorilla/websocket"
	config "github.com/inference-gateway/adgate/config"
	domain "github.com/inference-gateway/adgate/internal/domain"
	logger "github.com/inference-gateway/adgate/internal/logger"
	metrics "github.com/inference-gateway/adgate/internal/metrics"
	services "github.com/inference-gateway/adgate/internal/services"
)

const maxBodyBytes = 1 << 20

// Deps are the services exposed over HTTP
type Deps struct {
	Gate        *services.ToolGate
	Approvals   *services.ApprovalGateway
	Tasks       *services.BackgroundTaskManager
	Visibility  *services.ProviderVisibilityFilter
	Credentials *services.CredentialBroker
	Catalog     domain.ToolCatalog
	Executor    domain.ToolExecutor
	Health      func(ctx context.Context) error
}

// Server is the gate's HTTP API
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	server   *http.Server
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	return &Server{
		cfg:  cfg,
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the API routes
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireIdentity)
		r.Use(limitBody)

		r.Get("/providers", s.handleProviders)
		r.Post("/credentials/invalidate", s.handleInvalidateCredentials)

		r.Get("/tools", s.handleListTools)
		r.Get("/tools/{name}/classification", s.handleClassify)

		r.Post("/tool-calls", s.handleToolCall)
		r.Post("/tool-calls/resume", s.handleResume)

		r.Get("/approvals", s.handleListApprovals)
		r.Get("/approvals/{id}", s.handleGetApproval)
		r.Post("/approvals/{id}/resolve", s.handleResolveApproval)

		r.Post("/pre-approvals", s.handleAddPreApproval)

		r.Get("/blocked-tools", s.handleListBlocked)
		r.Post("/blocked-tools", s.handleAddBlocked)
		r.Delete("/blocked-tools", s.handleClearBlocked)

		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)
		r.Get("/tasks/{id}/stream", s.handleStreamTask)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP API...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
