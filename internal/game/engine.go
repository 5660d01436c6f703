package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ashureev/glossgame/internal/domain"
	"github.com/ashureev/glossgame/internal/store"
)

// Question-count limits applied when Options leaves them unset.
const (
	DefaultQuestions    = 20
	DefaultMaxQuestions = 100
)

// QuestionSource is the read-only view of topics and question banks the engine needs.
type QuestionSource interface {
	Topic(ctx context.Context, id string) (domain.Topic, error)
	QuestionBank(ctx context.Context, topicID string) ([]domain.Question, error)
	Question(ctx context.Context, topicID, questionID string) (*domain.Question, error)
}

// Options configures an Engine.
type Options struct {
	Policy           Policy
	DefaultQuestions int
	MaxQuestions     int
}

// Engine runs the session state machine. Writes for a session id are
// serialized in process and committed through the store with a version
// compare-and-swap, so a write from another process fails with
// domain.ErrConflict instead of being lost.
type Engine struct {
	sessions  store.SessionStore
	questions QuestionSource
	policy    Policy
	defaultN  int
	maxN      int
	newID     func() string

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

// keyLock is a mutex shared by the callers currently holding or waiting on a key.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewEngine creates an engine over the given session store and question source.
func NewEngine(sessions store.SessionStore, questions QuestionSource, opts Options) *Engine {
	if opts.Policy.BaseScore == 0 {
		opts.Policy = DefaultPolicy()
	}
	if opts.DefaultQuestions <= 0 {
		opts.DefaultQuestions = DefaultQuestions
	}
	if opts.MaxQuestions <= 0 {
		opts.MaxQuestions = DefaultMaxQuestions
	}
	return &Engine{
		sessions:  sessions,
		questions: questions,
		policy:    opts.Policy,
		defaultN:  min(opts.DefaultQuestions, opts.MaxQuestions),
		maxN:      opts.MaxQuestions,
		newID:     uuid.NewString,
		locks:     make(map[string]*keyLock),
	}
}

// lock serializes callers on key. The entry is dropped once the last caller
// unlocks, so keys taken from request paths do not accumulate.
func (e *Engine) lock(key string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &keyLock{}
		e.locks[key] = l
	}
	l.refs++
	e.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, key)
		}
		e.locksMu.Unlock()
	}
}

// Start returns the user's active session for the topic when resume is set,
// or creates a new one. The boolean reports whether an existing session was resumed.
// nQuestions of zero selects the configured default.
func (e *Engine) Start(ctx context.Context, userID, topicID string, nQuestions int, resume bool) (*domain.Session, bool, error) {
	if userID == "" {
		return nil, false, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	if nQuestions == 0 {
		nQuestions = e.defaultN
	}
	if nQuestions < 1 || nQuestions > e.maxN {
		return nil, false, fmt.Errorf("%w: n_questions must be between 1 and %d", domain.ErrInvalidInput, e.maxN)
	}

	if _, err := e.questions.Topic(ctx, topicID); err != nil {
		return nil, false, err
	}

	unlock := e.lock("start:" + userID + ":" + topicID)
	defer unlock()

	if resume {
		active, err := e.sessions.FindActiveSession(ctx, userID, topicID)
		if err != nil {
			return nil, false, fmt.Errorf("find active session: %w", err)
		}
		if active != nil {
			return active, true, nil
		}
	}

	session := &domain.Session{
		ID:         e.newID(),
		TopicID:    topicID,
		UserID:     userID,
		Status:     domain.StatusActive,
		NQuestions: nQuestions,
		AttemptNo:  1,
	}
	if err := e.shuffle(ctx, session); err != nil {
		return nil, false, err
	}
	if err := e.sessions.CreateSession(ctx, session); err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}

	slog.Debug("Session started", "session_id", session.ID, "user_id", userID, "topic_id", topicID, "n_questions", nQuestions)
	return session, false, nil
}

// shuffle seeds and draws a fresh question order for the session's current attempt.
func (e *Engine) shuffle(ctx context.Context, session *domain.Session) error {
	bank, err := e.questions.QuestionBank(ctx, session.TopicID)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}
	if len(bank) == 0 {
		return fmt.Errorf("topic %q has no questions: %w", session.TopicID, domain.ErrNotFound)
	}

	ids := make([]string, len(bank))
	for i, q := range bank {
		ids[i] = q.ID
	}
	session.Seed = SeedFor(session.UserID, session.TopicID, session.ID, session.AttemptNo)
	session.QuestionOrder = SelectOrder(ids, session.NQuestions, session.Seed)
	return nil
}

// Get returns a session owned by userID. Sessions of other users are reported as not found.
func (e *Engine) Get(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	session, err := e.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// CurrentQuestion returns the question at the session pointer, or nil when
// the session is not active.
func (e *Engine) CurrentQuestion(ctx context.Context, session *domain.Session) (*domain.Question, error) {
	if !session.IsActive() {
		return nil, nil
	}
	id := session.CurrentQuestionID()
	if id == "" {
		return nil, nil
	}
	return e.questions.Question(ctx, session.TopicID, id)
}

// Answer checks userAnswer against the current question and records the
// result. The session must be active, questionID must be the current
// question and the question must not have been answered in this attempt.
func (e *Engine) Answer(ctx context.Context, userID, sessionID, questionID string, userAnswer bool, responseTimeMs *int) (*domain.AnswerResult, error) {
	if responseTimeMs != nil && *responseTimeMs < 0 {
		return nil, fmt.Errorf("%w: response_time_ms must be non-negative", domain.ErrInvalidInput)
	}

	unlock := e.lock(sessionID)
	defer unlock()

	session, err := e.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, domain.ErrSessionNotActive
	}
	if questionID != session.CurrentQuestionID() {
		return nil, domain.ErrStaleQuestion
	}
	if session.AnsweredCurrent {
		return nil, domain.ErrAlreadyAnswered
	}

	question, err := e.questions.Question(ctx, session.TopicID, questionID)
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}

	correct := userAnswer == question.IsDefinitionCorrect
	outcome := e.policy.Score(correct, session.StreakCurrent, session.StreakMax)

	next := session.Clone()
	next.StreakCurrent = outcome.StreakCurrent
	next.StreakMax = outcome.StreakMax
	next.ScoreTotal += outcome.ScoreDelta
	if correct {
		next.CorrectCount++
	} else {
		next.WrongCount++
	}
	next.AnsweredCurrent = true

	record := &domain.AnswerRecord{
		ID:             e.newID(),
		SessionID:      session.ID,
		AttemptNo:      session.AttemptNo,
		QuestionIndex:  session.CurrentIndex,
		QuestionID:     questionID,
		UserAnswer:     userAnswer,
		IsCorrect:      correct,
		ScoreDelta:     outcome.ScoreDelta,
		Multiplier:     outcome.Multiplier,
		StreakAfter:    outcome.StreakCurrent,
		ResponseTimeMs: responseTimeMs,
	}
	if err := e.sessions.CommitAnswer(ctx, next, session.Version, record); err != nil {
		if errors.Is(err, domain.ErrAlreadyAnswered) {
			return nil, err
		}
		return nil, fmt.Errorf("commit answer: %w", err)
	}

	logArgs := []any{"session_id", session.ID, "question_index", record.QuestionIndex, "correct", correct, "streak", outcome.StreakCurrent}
	if responseTimeMs != nil {
		logArgs = append(logArgs, "response_time_ms", *responseTimeMs)
	}
	slog.Debug("Answer recorded", logArgs...)

	return &domain.AnswerResult{
		IsCorrect:     correct,
		ScoreDelta:    outcome.ScoreDelta,
		ScoreTotal:    next.ScoreTotal,
		StreakCurrent: next.StreakCurrent,
		StreakMax:     next.StreakMax,
		Multiplier:    outcome.Multiplier,
		Explanation:   question.Explanation,
		CorrectAnswer: question.IsDefinitionCorrect,
	}, nil
}

// RecordedResult rebuilds the feedback for the answer already recorded on the
// current question, for clients that retried a submission.
func (e *Engine) RecordedResult(ctx context.Context, userID, sessionID string) (*domain.AnswerResult, error) {
	session, err := e.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.AnsweredCurrent {
		return nil, domain.ErrNotFound
	}
	record, err := e.sessions.GetAnswer(ctx, session.ID, session.AttemptNo, session.CurrentIndex)
	if err != nil {
		return nil, err
	}
	question, err := e.questions.Question(ctx, session.TopicID, record.QuestionID)
	if err != nil {
		return nil, err
	}
	return &domain.AnswerResult{
		IsCorrect:     record.IsCorrect,
		ScoreDelta:    record.ScoreDelta,
		ScoreTotal:    session.ScoreTotal,
		StreakCurrent: session.StreakCurrent,
		StreakMax:     session.StreakMax,
		Multiplier:    record.Multiplier,
		Explanation:   question.Explanation,
		CorrectAnswer: question.IsDefinitionCorrect,
	}, nil
}

// Next advances past an answered question and finishes the session after the last one.
func (e *Engine) Next(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	unlock := e.lock(sessionID)
	defer unlock()

	session, err := e.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, domain.ErrSessionNotActive
	}
	if !session.AnsweredCurrent {
		return nil, domain.ErrAnswerRequired
	}

	next := session.Clone()
	next.CurrentIndex++
	next.AnsweredCurrent = false
	if next.CurrentIndex >= next.NQuestions {
		next.CurrentIndex = next.NQuestions
		next.Status = domain.StatusFinished
	}
	if err := e.sessions.PutSession(ctx, next, session.Version); err != nil {
		return nil, fmt.Errorf("advance session: %w", err)
	}

	if next.Status == domain.StatusFinished {
		slog.Info("Session finished", "session_id", next.ID, "user_id", userID, "score", next.ScoreTotal, "streak_max", next.StreakMax)
	}
	return next, nil
}

// Restart begins a new attempt on the same session id with a fresh question
// order. It is allowed in any state. streak_max is kept as the session's
// high-water mark; every other counter starts over.
func (e *Engine) Restart(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	unlock := e.lock(sessionID)
	defer unlock()

	session, err := e.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	next := session.Clone()
	next.Status = domain.StatusActive
	next.AttemptNo++
	next.CurrentIndex = 0
	next.ScoreTotal = 0
	next.CorrectCount = 0
	next.WrongCount = 0
	next.StreakCurrent = 0
	next.AnsweredCurrent = false
	if err := e.shuffle(ctx, next); err != nil {
		return nil, err
	}
	if err := e.sessions.PutSession(ctx, next, session.Version); err != nil {
		return nil, fmt.Errorf("restart session: %w", err)
	}

	slog.Info("Session restarted", "session_id", next.ID, "user_id", userID, "attempt_no", next.AttemptNo)
	return next, nil
}

// Answers lists the answers recorded in the session's current attempt.
func (e *Engine) Answers(ctx context.Context, userID, sessionID string) ([]domain.AnswerRecord, error) {
	session, err := e.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return e.sessions.ListAnswers(ctx, session.ID, session.AttemptNo)
}

// Stats aggregates the user's answer history for a topic.
func (e *Engine) Stats(ctx context.Context, userID, topicID string) (*domain.TopicStats, error) {
	if _, err := e.questions.Topic(ctx, topicID); err != nil {
		return nil, err
	}
	return e.sessions.TopicStats(ctx, userID, topicID)
}
