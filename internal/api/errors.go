package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/glossgame/internal/domain"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrStaleQuestion, http.StatusConflict, "stale_question"},
	{domain.ErrAlreadyAnswered, http.StatusConflict, "already_answered"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrAnswerRequired, http.StatusUnprocessableEntity, "answer_required"},
	{domain.ErrSessionNotActive, http.StatusUnprocessableEntity, "session_not_active"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
}

// statusFor maps an engine error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeError renders err as a JSON error response. Unmapped errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		Error(w, status, code, "internal server error")
		return
	}
	Error(w, status, code, err.Error())
}
