package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/glossgame/internal/domain"
	"github.com/ashureev/glossgame/internal/game"
	"github.com/ashureev/glossgame/internal/identity"
)

// TopicLister lists the glossary topics.
type TopicLister interface {
	Topics(ctx context.Context) ([]domain.Topic, error)
}

// SessionHandler serves the true/false game endpoints.
type SessionHandler struct {
	engine *game.Engine
	topics TopicLister
}

// NewSessionHandler creates a handler over the game engine and topic catalog.
func NewSessionHandler(engine *game.Engine, topics TopicLister) *SessionHandler {
	return &SessionHandler{engine: engine, topics: topics}
}

// RegisterRoutes registers the game routes under /api/v1.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/topics", h.ListTopics)
		r.Get("/topics/{topicID}/stats", h.TopicStats)
		r.Post("/sessions", h.StartSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/answer", h.Answer)
			r.Post("/next", h.Next)
			r.Post("/restart", h.Restart)
			r.Get("/answers", h.ListAnswers)
		})
	})
}

// questionView is the player-facing part of a question. The ground truth and
// explanation are only revealed in an AnswerResult.
type questionView struct {
	ID              string `json:"id"`
	Term            string `json:"term"`
	ShownDefinition string `json:"shown_definition"`
	IconKey         string `json:"icon_key,omitempty"`
	OrderIndex      int    `json:"order_index"`
}

type sessionResponse struct {
	*domain.Session
	CurrentQuestion *questionView `json:"current_question"`
}

type startRequest struct {
	TopicID    string `json:"topic_id"`
	NQuestions int    `json:"n_questions"`
	Resume     bool   `json:"resume"`
}

type answerRequest struct {
	QuestionID     string `json:"question_id"`
	UserAnswer     *bool  `json:"user_answer"`
	ResponseTimeMs *int   `json:"response_time_ms"`
}

func (h *SessionHandler) respondSession(w http.ResponseWriter, r *http.Request, status int, s *domain.Session) {
	resp := sessionResponse{Session: s}
	q, err := h.engine.CurrentQuestion(r.Context(), s)
	if err != nil {
		writeError(w, r, fmt.Errorf("load current question: %w", err))
		return
	}
	if q != nil {
		resp.CurrentQuestion = &questionView{
			ID:              q.ID,
			Term:            q.Term,
			ShownDefinition: q.ShownDefinition,
			IconKey:         q.IconKey,
			OrderIndex:      s.CurrentIndex,
		}
	}
	JSON(w, status, resp)
}

// ListTopics returns every glossary topic.
func (h *SessionHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topics.Topics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, topics)
}

// TopicStats returns the caller's aggregate results for a topic.
func (h *SessionHandler) TopicStats(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	stats, err := h.engine.Stats(r.Context(), userID, chi.URLParam(r, "topicID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// StartSession creates a session, or resumes the active one when requested.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.TopicID = strings.TrimSpace(req.TopicID)
	if req.TopicID == "" {
		writeError(w, r, fmt.Errorf("%w: topic_id is required", domain.ErrInvalidInput))
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	s, resumed, err := h.engine.Start(r.Context(), userID, req.TopicID, req.NQuestions, req.Resume)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slog.Info("Session opened",
		"session_id", s.ID,
		"topic_id", s.TopicID,
		"resumed", resumed,
		"anonymous", identity.IsAnonymous(r.Context()),
		"ip", identity.IPFromRequest(r),
	)

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	h.respondSession(w, r, status, s)
}

// GetSession returns the session state with its current question.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	s, err := h.engine.Get(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusOK, s)
}

// Answer records the player's answer to the current question.
func (h *SessionHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.QuestionID == "" || req.UserAnswer == nil {
		writeError(w, r, fmt.Errorf("%w: question_id and user_answer are required", domain.ErrInvalidInput))
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.engine.Answer(r.Context(), userID, sessionID, req.QuestionID, *req.UserAnswer, req.ResponseTimeMs)
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		body := ErrorBody{Error: "already_answered", Message: err.Error()}
		if recorded, rerr := h.engine.RecordedResult(r.Context(), userID, sessionID); rerr == nil {
			body.Result = recorded
		} else {
			slog.Warn("Recorded answer unavailable", "session_id", sessionID, "error", rerr)
		}
		JSON(w, http.StatusConflict, body)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

// Next advances the session to the following question.
func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	s, err := h.engine.Next(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusOK, s)
}

// Restart begins a new attempt of the session.
func (h *SessionHandler) Restart(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	s, err := h.engine.Restart(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondSession(w, r, http.StatusOK, s)
}

// ListAnswers returns the answers recorded in the session's current attempt.
func (h *SessionHandler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	answers, err := h.engine.Answers(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, answers)
}
