package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docpen/internal/config"
	"github.com/dgallion1/docpen/internal/editor"
	"github.com/dgallion1/docpen/internal/generate"
	"github.com/dgallion1/docpen/internal/metrics"
	"github.com/dgallion1/docpen/internal/pipeline"
)

// Server is the HTTP API server for docpen.
type Server struct {
	router       chi.Router
	docs         *editor.Store
	orchestrator *pipeline.Orchestrator
	models       *generate.Registry
	met          *metrics.Metrics
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(docs *editor.Store, orch *pipeline.Orchestrator, models *generate.Registry, met *metrics.Metrics, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		docs:         docs,
		orchestrator: orch,
		models:       models,
		met:          met,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(MetricsMiddleware(s.met))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.met.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleCreateDocument)
		r.Get("/api/documents", s.handleListDocuments)
		r.Route("/api/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Delete("/", s.handleDeleteDocument)
			r.Put("/selection", s.handleSetSelection)
			r.Post("/commands", s.handleCommand)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Get("/export", s.handleExport)
			r.Get("/events", s.handleEvents)
			r.Post("/generate", s.handleGenerate)
		})

		r.Get("/api/generations/{jobID}/status", s.handleGenerationStatus)
		r.Delete("/api/generations/{jobID}", s.handleCancelGeneration)

		r.Post("/api/assist", s.handleAssist)
		r.Get("/api/models", s.handleModels)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
