// Package httpapi serves a small read-only status endpoint for debugging
// the controller from the local network.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Status is the snapshot returned by /api/v1/status.
type Status struct {
	Cover               string    `json:"cover"`
	Window              string    `json:"window"`
	SGReady             string    `json:"sgReady"`
	Raining             bool      `json:"raining"`
	ScheduleRefreshedAt time.Time `json:"scheduleRefreshedAt"`
}

// Server exposes the controller state over HTTP.
type Server struct {
	addr   string
	status func() Status
	logger *slog.Logger
}

func New(addr string, status func() Status) *Server {
	return &Server{
		addr:   addr,
		status: status,
		logger: slog.Default().With("task", "httpapi", "addr", addr),
	}
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    s.addr,
		Handler: handlers.LoggingHandler(os.Stdout, router),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("server stopped", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		s.logger.Error("failed to encode status", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
