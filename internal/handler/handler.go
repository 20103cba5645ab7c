package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pavelanni/biopractice/internal/auth"
	"github.com/pavelanni/biopractice/internal/exam"
	appI18n "github.com/pavelanni/biopractice/internal/i18n"
	"github.com/pavelanni/biopractice/internal/metrics"
	"github.com/pavelanni/biopractice/internal/model"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	exam     *exam.Service
	accounts *auth.Accounts
	tokens   *auth.Tokens
	db       Pinger
	config   model.AppConfig
}

// New creates a new Handler.
func New(svc *exam.Service, accounts *auth.Accounts, tokens *auth.Tokens, db Pinger, cfg model.AppConfig) *Handler {
	return &Handler{exam: svc, accounts: accounts, tokens: tokens, db: db, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(appI18n.Middleware(h.config.DefaultLang))

	r.Get("/healthz", h.handleHealth)
	r.Method("GET", "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/token/refresh", h.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(h.tokens.Middleware(h.writeError))

			r.Post("/auth/logout", h.handleLogout)
			r.Get("/auth/user", h.handleUser)

			r.Get("/topics", h.handleTopics)
			r.Get("/subtopics", h.handleSubTopics)
			r.Get("/subcategories", h.handleSubCategories)

			r.Post("/questions/generate", h.handleGenerate)
			r.Post("/questions/mark", h.handleMark)

			r.Post("/sessions/submit", h.handleSubmit)
			r.Get("/sessions", h.handleSessions)
			r.Get("/sessions/{id}", h.handleSession)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.writeError(w, r, fmt.Errorf("ping database: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.exam.ListTopics(r.Context(), r.URL.Query().Get("exam_board"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(topics))
}

func (h *Handler) handleSubTopics(w http.ResponseWriter, r *http.Request) {
	topicID, err := queryID(r, "topic_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	subtopics, err := h.exam.ListSubTopics(r.Context(), topicID, r.URL.Query().Get("exam_board"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subtopics))
}

func (h *Handler) handleSubCategories(w http.ResponseWriter, r *http.Request) {
	subtopicID, err := queryID(r, "subtopic_id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	subcategories, err := h.exam.ListSubCategories(r.Context(), subtopicID, r.URL.Query().Get("exam_board"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subcategories))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req exam.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.exam.CreateSession(r.Context(), model.UserIDFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	var req exam.MarkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.exam.MarkAnswer(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req exam.FinalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.exam.FinalizeSession(r.Context(), model.UserIDFromContext(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.exam.ListSessions(r.Context(), model.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sessions))
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, r, model.NotFound(model.ErrSessionNotFound))
		return
	}
	sess, err := h.exam.GetSession(r.Context(), model.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// queryID parses an optional positive integer query parameter. Absent means 0.
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, model.Validation(fmt.Errorf("%w: %s=%q", errBadRequest, name, v))
	}
	return id, nil
}

// nonNil keeps empty lists as [] rather than null on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
