// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/glossgame/internal/domain"
)

// ContentStore holds the read-only glossary reference data.
type ContentStore interface {
	// ListTopics returns every topic in creation order.
	ListTopics(ctx context.Context) ([]domain.Topic, error)

	// ListQuestions returns the question bank of a topic ordered by order_index.
	// An unknown topic yields an empty slice, not an error.
	ListQuestions(ctx context.Context, topicID string) ([]domain.Question, error)

	// SeedContent inserts topics and questions that do not exist yet. Existing rows are left alone.
	SeedContent(ctx context.Context, topics []domain.Topic, questions []domain.Question) error
}

// SessionStore is the durable keyed storage for game sessions.
//
// Every write is a compare-and-swap against the version the caller read. On
// success the session's Version and UpdatedAt are refreshed in place.
type SessionStore interface {
	// GetSession returns domain.ErrNotFound for unknown ids.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// FindActiveSession returns the active session for a user and topic, or nil if there is none.
	FindActiveSession(ctx context.Context, userID, topicID string) (*domain.Session, error)

	// CreateSession inserts a new session. Any other active session for the same
	// user and topic is marked abandoned in the same transaction.
	CreateSession(ctx context.Context, session *domain.Session) error

	// PutSession stores the session if the stored version equals expectedVersion.
	// Returns domain.ErrConflict when it does not.
	PutSession(ctx context.Context, session *domain.Session, expectedVersion int64) error

	// CommitAnswer atomically stores the session (compare-and-swap on expectedVersion)
	// and appends the answer record. A second record for the same attempt and
	// question index fails with domain.ErrAlreadyAnswered.
	CommitAnswer(ctx context.Context, session *domain.Session, expectedVersion int64, answer *domain.AnswerRecord) error

	// GetAnswer returns the recorded answer for a question index of an attempt.
	GetAnswer(ctx context.Context, sessionID string, attemptNo, questionIndex int) (*domain.AnswerRecord, error)

	// ListAnswers returns the answers of one attempt in question order.
	ListAnswers(ctx context.Context, sessionID string, attemptNo int) ([]domain.AnswerRecord, error)

	// TopicStats aggregates the answer log of a user for a topic.
	TopicStats(ctx context.Context, userID, topicID string) (*domain.TopicStats, error)

	// AbandonIdleSessions marks active sessions untouched for longer than idle as abandoned.
	AbandonIdleSessions(ctx context.Context, idle time.Duration) (int64, error)
}

// Repository combines content and session persistence behind one connection.
type Repository interface {
	ContentStore
	SessionStore

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

func accuracyPercent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(correct) / float64(total) * 100
	return float64(int(pct*100+0.5)) / 100
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
