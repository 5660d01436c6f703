package domain

import (
	"time"
)

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusFinished  SessionStatus = "finished"
	StatusAbandoned SessionStatus = "abandoned"
)

// Session is one play-through of the true/false mini-game for a user and topic.
type Session struct {
	ID              string        `json:"id"`
	TopicID         string        `json:"topic_id"`
	UserID          string        `json:"-"`
	Status          SessionStatus `json:"status"`
	NQuestions      int           `json:"n_questions"`
	QuestionOrder   []string      `json:"-"`
	CurrentIndex    int           `json:"current_index"`
	ScoreTotal      int           `json:"score_total"`
	CorrectCount    int           `json:"correct_count"`
	WrongCount      int           `json:"wrong_count"`
	StreakCurrent   int           `json:"streak_current"`
	StreakMax       int           `json:"streak_max"`
	AttemptNo       int           `json:"attempt_no"`
	AnsweredCurrent bool          `json:"answered_current"`
	Seed            string        `json:"-"`
	// Version is bumped on every committed write and used for compare-and-swap.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s *Session) Clone() *Session {
	c := *s
	c.QuestionOrder = append([]string(nil), s.QuestionOrder...)
	return &c
}

// IsActive reports whether the session still accepts answers.
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// CurrentQuestionID returns the question id at the session pointer, or "" once past the end.
func (s *Session) CurrentQuestionID() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.QuestionOrder) {
		return ""
	}
	return s.QuestionOrder[s.CurrentIndex]
}

// AnswerRecord is a persisted answer for one question of one attempt.
type AnswerRecord struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	AttemptNo      int       `json:"attempt_no"`
	QuestionIndex  int       `json:"question_index"`
	QuestionID     string    `json:"question_id"`
	UserAnswer     bool      `json:"user_answer"`
	IsCorrect      bool      `json:"is_correct"`
	ScoreDelta     int       `json:"score_delta"`
	Multiplier     float64   `json:"multiplier"`
	StreakAfter    int       `json:"streak_after"`
	ResponseTimeMs *int      `json:"response_time_ms,omitempty"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// AnswerResult is the feedback returned to the player after answering.
type AnswerResult struct {
	IsCorrect     bool    `json:"is_correct"`
	ScoreDelta    int     `json:"score_delta"`
	ScoreTotal    int     `json:"score_total"`
	StreakCurrent int     `json:"streak_current"`
	StreakMax     int     `json:"streak_max"`
	Multiplier    float64 `json:"multiplier"`
	Explanation   string  `json:"explanation"`
	CorrectAnswer bool    `json:"correct_answer"`
}
