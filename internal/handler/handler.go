package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/adaptest/internal/cat"
	appI18n "github.com/pavelanni/adaptest/internal/i18n"
	"github.com/pavelanni/adaptest/internal/model"
)

// ItemStore provides the item bank to new sessions and accepts item imports.
type ItemStore interface {
	LoadBank(ctx context.Context) ([]model.Item, error)
	ImportItems(items []model.ItemImport) (int, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine    *cat.Engine
	items     ItemStore
	adminHash []byte
}

// New creates a new Handler. An empty adminPassword disables the admin
// routes.
func New(engine *cat.Engine, items ItemStore, adminPassword string) (*Handler, error) {
	h := &Handler{engine: engine, items: items}
	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		h.adminHash = hash
	}
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/start-quiz", h.handleStartQuiz)
		r.Get("/next-question", h.handleNextQuestion)
		r.Post("/submit-answer", h.handleSubmitAnswer)
		r.Get("/sessions/{userID}", h.handleSession)
		if h.adminHash != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(h.requireAdmin)
				r.Delete("/sessions/{userID}", h.handleEndSession)
				r.Post("/items", h.handleImportItems)
			})
		}
	})
}

type nextQuestionResponse struct {
	Finished  bool        `json:"finished"`
	Question  *model.Item `json:"question,omitempty"`
	Message   string      `json:"message,omitempty"`
	Theta     float64     `json:"theta"`
	SE        float64     `json:"se"`
	Remaining int         `json:"remaining"`
}

type submitAnswerRequest struct {
	UserID     string `json:"user_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type startQuizRequest struct {
	UserID string `json:"user_id"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	langs := []string{}
	for _, tag := range appI18n.Languages() {
		langs = append(langs, tag.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": h.engine.ActiveSessions(),
		"max_questions":   h.engine.Config().MaxQuestions,
		"languages":       langs,
	})
}

// handleStartQuiz discards any session the user has and starts a new one.
func (h *Handler) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	var req startQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.writeMissing(w, r, "user_id")
		return
	}

	if err := h.engine.EndSession(req.UserID); err != nil && !errors.Is(err, cat.ErrSessionNotFound) {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.createSession(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// handleNextQuestion creates the user's session on first contact and returns
// the most informative unanswered item, or the final estimate once the test
// is over.
func (h *Handler) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		h.writeMissing(w, r, "user_id")
		return
	}

	item, ok, err := h.engine.NextItem(userID)
	if errors.Is(err, cat.ErrSessionNotFound) {
		if _, err = h.createSession(r.Context(), userID); err == nil {
			item, ok, err = h.engine.NextItem(userID)
		}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	snap, err := h.engine.Snapshot(userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := nextQuestionResponse{Theta: snap.Theta, SE: snap.SE, Remaining: snap.Remaining}
	if ok {
		resp.Question = &item
	} else {
		resp.Finished = true
		resp.Message = appI18n.T(r.Context(), "TestCompleted")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	var missing []string
	if strings.TrimSpace(req.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		missing = append(missing, "question_id")
	}
	if strings.TrimSpace(req.Answer) == "" {
		missing = append(missing, "answer")
	}
	if len(missing) > 0 {
		h.writeMissing(w, r, missing...)
		return
	}

	res, err := h.engine.SubmitAnswer(r.Context(), req.UserID, req.QuestionID, req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.engine.Snapshot(chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) createSession(ctx context.Context, userID string) (model.SessionSnapshot, error) {
	bank, err := h.items.LoadBank(ctx)
	if err != nil {
		return model.SessionSnapshot{}, fmt.Errorf("load item bank: %w", err)
	}
	return h.engine.CreateSession(userID, bank)
}

// errorStatus maps engine errors to an HTTP status and message ID.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, cat.ErrSessionNotFound):
		return http.StatusNotFound, "SessionNotFound"
	case errors.Is(err, cat.ErrAlreadyAnswered):
		return http.StatusConflict, "AlreadyAnswered"
	case errors.Is(err, cat.ErrItemNotFound):
		return http.StatusNotFound, "ItemNotFound"
	case errors.Is(err, cat.ErrSessionCompleted):
		return http.StatusConflict, "SessionCompleted"
	case errors.Is(err, cat.ErrEmptyItemBank):
		return http.StatusUnprocessableEntity, "EmptyItemBank"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msgID := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeMessage(w, r, status, msgID)
}

func (h *Handler) writeMissing(w http.ResponseWriter, r *http.Request, fields ...string) {
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
		Error:  "MissingFields",
		Detail: appI18n.Td(r.Context(), "MissingFields", map[string]any{"Fields": strings.Join(fields, ", ")}),
	})
}

func (h *Handler) writeMessage(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: msgID, Detail: appI18n.T(r.Context(), msgID)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
