// Package http exposes the evaluation service API: the SSE evaluation
// endpoint, history and share links, template CRUD, and the homework
// job surface.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"

	"dialeval/internal/config"
	"dialeval/internal/history"
	"dialeval/internal/homework"
	"dialeval/internal/llm"
	"dialeval/internal/rubric"
	"dialeval/internal/storage"
	"dialeval/internal/templates"
)

type Server struct {
	DB        *sqlx.DB
	S3        *storage.Client
	Asynq     *asynq.Client
	Bus       *homework.EventBus
	Cfg       *config.Config
	History   *history.Store
	Templates *templates.Store
	Jobs      *homework.JobStore
	LLM       *llm.Client
	Rubric    *rubric.Rubric
	Logger    *slog.Logger
}

func NewServer(s *Server) *http.Server {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Rubric == nil {
		s.Rubric = rubric.Default()
	}

	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	// API-token protected
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.Cfg.APIToken))

		r.Post("/api/evaluate", s.evaluate)

		r.Get("/api/history", s.listHistory)
		r.Get("/api/history/{id}", s.getHistory)
		r.Delete("/api/history/{id}", s.deleteHistory)
		r.Post("/api/history/{id}/share", s.createShare)

		r.Get("/api/templates", s.listTemplates)
		r.Post("/api/templates", s.createTemplate)
		r.Get("/api/templates/{id}", s.getTemplate)
		r.Put("/api/templates/{id}", s.updateTemplate)
		r.Delete("/api/templates/{id}", s.deleteTemplate)

		r.Get("/api/prompt-templates", s.listPromptTemplates)
		r.Post("/api/prompt-templates", s.createPromptTemplate)
		r.Get("/api/prompt-templates/{id}", s.getPromptTemplate)
		r.Put("/api/prompt-templates/{id}", s.updatePromptTemplate)
		r.Delete("/api/prompt-templates/{id}", s.deletePromptTemplate)
		r.Post("/api/prompt-templates/{id}/use", s.usePromptTemplate)

		r.Post("/api/homework/reviews", s.createReviewJob)
		r.Post("/api/homework/generate", s.createGenerateJob)
		r.Get("/api/homework/jobs/{id}", s.getJob)
		r.Get("/api/homework/jobs/{id}/events", s.jobEvents)
	})

	// Share tokens are their own credential
	r.Get("/api/shared/{token}", s.getShared)

	r.Get("/api/models", s.listModels)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.DB.Ping(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"status":"db error"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &http.Server{Addr: s.Cfg.Addr, Handler: r}
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"models": llm.AvailableModels})
}
