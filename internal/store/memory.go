package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/glossgame/internal/domain"
)

type answerKey struct {
	sessionID string
	attemptNo int
	index     int
}

// MemoryStore implements Repository in process memory. Values are copied on
// the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	topics    map[string]domain.Topic
	questions map[string][]domain.Question
	sessions  map[string]*domain.Session
	answers   map[answerKey]domain.AnswerRecord
	now       func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		topics:    make(map[string]domain.Topic),
		questions: make(map[string][]domain.Question),
		sessions:  make(map[string]*domain.Session),
		answers:   make(map[answerKey]domain.AnswerRecord),
		now:       nowUTC,
	}
}

// ListTopics returns every topic in creation order.
func (m *MemoryStore) ListTopics(_ context.Context) ([]domain.Topic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	topics := make([]domain.Topic, 0, len(m.topics))
	for _, t := range m.topics {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].SortOrder != topics[j].SortOrder {
			return topics[i].SortOrder < topics[j].SortOrder
		}
		return topics[i].ID < topics[j].ID
	})
	return topics, nil
}

// ListQuestions returns the question bank of a topic.
func (m *MemoryStore) ListQuestions(_ context.Context, topicID string) ([]domain.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Question{}, m.questions[topicID]...), nil
}

// SeedContent inserts topics and questions that are not stored yet.
func (m *MemoryStore) SeedContent(_ context.Context, topics []domain.Topic, questions []domain.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range topics {
		if _, ok := m.topics[t.ID]; !ok {
			m.topics[t.ID] = t
		}
	}

	known := make(map[string]bool)
	for _, bank := range m.questions {
		for _, q := range bank {
			known[q.ID] = true
		}
	}
	for _, q := range questions {
		if known[q.ID] {
			continue
		}
		known[q.ID] = true
		m.questions[q.TopicID] = append(m.questions[q.TopicID], q)
	}
	for topicID, bank := range m.questions {
		sort.SliceStable(bank, func(i, j int) bool {
			if bank[i].OrderIndex != bank[j].OrderIndex {
				return bank[i].OrderIndex < bank[j].OrderIndex
			}
			return bank[i].ID < bank[j].ID
		})
		m.questions[topicID] = bank
	}
	return nil
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

// FindActiveSession returns the active session for a user and topic, or nil.
func (m *MemoryStore) FindActiveSession(_ context.Context, userID, topicID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.sessions {
		if s.UserID == userID && s.TopicID == topicID && s.Status == domain.StatusActive {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

// CreateSession inserts a new session, abandoning any other active one for the same user and topic.
func (m *MemoryStore) CreateSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return domain.ErrConflict
	}
	now := m.now()
	m.abandonOthersLocked(session, now)

	session.Version = 1
	session.CreatedAt = now
	session.UpdatedAt = now
	m.sessions[session.ID] = session.Clone()
	return nil
}

// PutSession stores the session if the stored version still equals expectedVersion.
func (m *MemoryStore) PutSession(_ context.Context, session *domain.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkVersionLocked(session.ID, expectedVersion); err != nil {
		return err
	}
	now := m.now()
	if session.Status == domain.StatusActive {
		m.abandonOthersLocked(session, now)
	}
	m.storeLocked(session, expectedVersion, now)
	return nil
}

// CommitAnswer stores the session and its new answer record atomically.
func (m *MemoryStore) CommitAnswer(_ context.Context, session *domain.Session, expectedVersion int64, answer *domain.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := answerKey{sessionID: answer.SessionID, attemptNo: answer.AttemptNo, index: answer.QuestionIndex}
	if _, exists := m.answers[key]; exists {
		return domain.ErrAlreadyAnswered
	}
	if err := m.checkVersionLocked(session.ID, expectedVersion); err != nil {
		return err
	}

	now := m.now()
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = now
	}
	m.answers[key] = *answer
	m.storeLocked(session, expectedVersion, now)
	return nil
}

func (m *MemoryStore) checkVersionLocked(id string, expectedVersion int64) error {
	current, ok := m.sessions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.ErrConflict
	}
	return nil
}

func (m *MemoryStore) storeLocked(session *domain.Session, expectedVersion int64, now time.Time) {
	session.Version = expectedVersion + 1
	session.UpdatedAt = now
	m.sessions[session.ID] = session.Clone()
}

func (m *MemoryStore) abandonOthersLocked(session *domain.Session, now time.Time) {
	for id, other := range m.sessions {
		if id == session.ID || other.UserID != session.UserID || other.TopicID != session.TopicID {
			continue
		}
		if other.Status == domain.StatusActive {
			other.Status = domain.StatusAbandoned
			other.Version++
			other.UpdatedAt = now
		}
	}
}

// GetAnswer returns the answer recorded for one question index of an attempt.
func (m *MemoryStore) GetAnswer(_ context.Context, sessionID string, attemptNo, questionIndex int) (*domain.AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.answers[answerKey{sessionID: sessionID, attemptNo: attemptNo, index: questionIndex}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

// ListAnswers returns the answers of one attempt in question order.
func (m *MemoryStore) ListAnswers(_ context.Context, sessionID string, attemptNo int) ([]domain.AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	answers := []domain.AnswerRecord{}
	for k, a := range m.answers {
		if k.sessionID == sessionID && k.attemptNo == attemptNo {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].QuestionIndex < answers[j].QuestionIndex })
	return answers, nil
}

// TopicStats aggregates a user's answers for a topic across sessions and attempts.
func (m *MemoryStore) TopicStats(_ context.Context, userID, topicID string) (*domain.TopicStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type attemptKey struct {
		sessionID string
		attemptNo int
	}
	attempts := make(map[attemptKey]bool)
	stats := &domain.TopicStats{TopicID: topicID}
	var correct, total int
	for k, a := range m.answers {
		s, ok := m.sessions[k.sessionID]
		if !ok || s.UserID != userID || s.TopicID != topicID {
			continue
		}
		attempts[attemptKey{k.sessionID, k.attemptNo}] = true
		total++
		if a.IsCorrect {
			correct++
		}
		stats.BestStreak = max(stats.BestStreak, a.StreakAfter)
	}
	stats.Attempts = len(attempts)
	stats.Accuracy = accuracyPercent(correct, total)
	return stats, nil
}

// AbandonIdleSessions marks active sessions idle for longer than idle as abandoned.
func (m *MemoryStore) AbandonIdleSessions(_ context.Context, idle time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	threshold := now.Add(-idle)
	var n int64
	for _, s := range m.sessions {
		if s.Status == domain.StatusActive && s.UpdatedAt.Before(threshold) {
			s.Status = domain.StatusAbandoned
			s.Version++
			s.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

var _ Repository = (*MemoryStore)(nil)
