// Package server exposes the extraction pipeline over HTTP: a single
// server-sent-events endpoint that processes exactly one document per request.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/qb-bastiaan/invoice-processor-app/internal/common"
	"github.com/qb-bastiaan/invoice-processor-app/internal/enumerate"
	"github.com/qb-bastiaan/invoice-processor-app/internal/extract"
	"github.com/qb-bastiaan/invoice-processor-app/internal/history"
	"github.com/qb-bastiaan/invoice-processor-app/internal/persist"
	"github.com/qb-bastiaan/invoice-processor-app/internal/schema"
)

// Server wires the enumerator, pipeline collaborators and the SSE handler.
type Server struct {
	logger     *slog.Logger
	cfg        *common.Config
	router     *chi.Mux
	enumerator *enumerate.Enumerator
	registry   *schema.Registry
	model      extract.ModelCaller
	persister  *persist.Persister
	hist       *history.Store // nil when disabled

	promptOnce sync.Once
	prompt     string
	promptErr  error
}

// New builds the server. hist may be nil.
func New(logger *slog.Logger, cfg *common.Config, model extract.ModelCaller, hist *history.Store) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:     logger,
		cfg:        cfg,
		router:     chi.NewRouter(),
		enumerator: enumerate.New(cfg.Files.InputDir),
		registry:   schema.NewRegistry(cfg.Files.SchemaPath, logger),
		model:      model,
		persister:  persist.New(cfg.Files.OutputDir, logger),
		hist:       hist,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/api/process-invoices", s.processInvoices)
	s.router.Get("/api/history", s.listHistory)
	s.router.Get("/healthz", s.health)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "history store disabled", http.StatusNotFound)
		return
	}
	entries, err := s.hist.List(r.Context(), 100)
	if err != nil {
		s.logger.Error("history.list_failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// systemPrompt loads the configured system prompt once per process.
func (s *Server) systemPrompt() (string, error) {
	s.promptOnce.Do(func() {
		raw, err := os.ReadFile(s.cfg.Files.SystemPromptPath)
		if err != nil {
			s.promptErr = common.WrapError(err, "could not read gemini system prompt file")
			return
		}
		s.prompt = string(raw)
	})
	return s.prompt, s.promptErr
}
