package domain

import "errors"

var (
	// ErrNotFound is returned for unknown topics, sessions, or empty question banks.
	ErrNotFound = errors.New("not found")
	// ErrStaleQuestion means the submitted question is not the one at the session pointer.
	ErrStaleQuestion = errors.New("stale question")
	// ErrAlreadyAnswered rejects a second submission for the same question and attempt.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrAnswerRequired rejects advancing before the current question was answered.
	ErrAnswerRequired = errors.New("answer required before advancing")
	// ErrConflict means a concurrent write won the compare-and-swap on the session version.
	ErrConflict = errors.New("concurrent modification")
	// ErrInvalidInput covers malformed requests and precondition violations on inputs.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotActive is returned when answering a finished or abandoned session.
	ErrSessionNotActive = errors.New("session not active")
)
