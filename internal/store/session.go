package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/glossgame/internal/domain"
	"github.com/ashureev/glossgame/internal/shared"
)

const sessionColumns = `id, topic_id, user_id, status, n_questions, question_order, current_index,
	score_total, correct_count, wrong_count, streak_current, streak_max, attempt_no,
	answered_current, seed, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var s domain.Session
	var status, order string
	var createdAt, updatedAt int64
	if err := row.Scan(
		&s.ID, &s.TopicID, &s.UserID, &status, &s.NQuestions, &order, &s.CurrentIndex,
		&s.ScoreTotal, &s.CorrectCount, &s.WrongCount, &s.StreakCurrent, &s.StreakMax, &s.AttemptNo,
		&s.AnsweredCurrent, &s.Seed, &s.Version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(order), &s.QuestionOrder); err != nil {
		return nil, fmt.Errorf("decode question order: %w", err)
	}
	s.Status = domain.SessionStatus(status)
	s.CreatedAt = time.UnixMilli(createdAt).UTC()
	s.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &s, nil
}

// GetSession retrieves a session by id.
func (s *SQLStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// FindActiveSession returns the active session for a user and topic, or nil.
func (s *SQLStore) FindActiveSession(ctx context.Context, userID, topicID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+sessionColumns+`
		FROM sessions WHERE user_id = ? AND topic_id = ? AND status = ?`),
		userID, topicID, string(domain.StatusActive))
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return session, nil
}

// CreateSession inserts a new session, abandoning any other active one for the same user and topic.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	order, err := json.Marshal(session.QuestionOrder)
	if err != nil {
		return fmt.Errorf("encode question order: %w", err)
	}
	now := nowUTC()

	err = s.inTx(ctx, "create session", func(tx *sql.Tx) error {
		if err := s.abandonOthers(ctx, tx, session, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO sessions (`+sessionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			session.ID, session.TopicID, session.UserID, string(session.Status), session.NQuestions,
			string(order), session.CurrentIndex, session.ScoreTotal, session.CorrectCount,
			session.WrongCount, session.StreakCurrent, session.StreakMax, session.AttemptNo,
			session.AnsweredCurrent, session.Seed, int64(1), now.UnixMilli(), now.UnixMilli(),
		)
		if err != nil {
			if shared.IsUniqueViolation(err) {
				return fmt.Errorf("insert session: %w", domain.ErrConflict)
			}
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	session.Version = 1
	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

// PutSession stores the session if the stored version still equals expectedVersion.
func (s *SQLStore) PutSession(ctx context.Context, session *domain.Session, expectedVersion int64) error {
	now := nowUTC()
	err := s.inTx(ctx, "put session", func(tx *sql.Tx) error {
		if session.Status == domain.StatusActive {
			if err := s.abandonOthers(ctx, tx, session, now); err != nil {
				return err
			}
		}
		return s.updateSession(ctx, tx, session, expectedVersion, now)
	})
	if err != nil {
		return err
	}
	session.Version = expectedVersion + 1
	session.UpdatedAt = now
	return nil
}

// CommitAnswer stores the session and its new answer record in one transaction.
func (s *SQLStore) CommitAnswer(ctx context.Context, session *domain.Session, expectedVersion int64, answer *domain.AnswerRecord) error {
	now := nowUTC()
	if answer.AnsweredAt.IsZero() {
		answer.AnsweredAt = now
	}

	err := s.inTx(ctx, "commit answer", func(tx *sql.Tx) error {
		var responseTime any
		if answer.ResponseTimeMs != nil {
			responseTime = *answer.ResponseTimeMs
		}
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO answers (id, session_id, attempt_no, question_index, question_id, user_answer,
			                     is_correct, score_delta, multiplier, streak_after, response_time_ms, answered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			answer.ID, answer.SessionID, answer.AttemptNo, answer.QuestionIndex, answer.QuestionID,
			answer.UserAnswer, answer.IsCorrect, answer.ScoreDelta, answer.Multiplier, answer.StreakAfter,
			responseTime, answer.AnsweredAt.UnixMilli(),
		)
		if err != nil {
			if shared.IsUniqueViolation(err) {
				return domain.ErrAlreadyAnswered
			}
			return fmt.Errorf("insert answer: %w", err)
		}
		return s.updateSession(ctx, tx, session, expectedVersion, now)
	})
	if err != nil {
		return err
	}
	session.Version = expectedVersion + 1
	session.UpdatedAt = now
	return nil
}

func (s *SQLStore) updateSession(ctx context.Context, tx *sql.Tx, session *domain.Session, expectedVersion int64, now time.Time) error {
	order, err := json.Marshal(session.QuestionOrder)
	if err != nil {
		return fmt.Errorf("encode question order: %w", err)
	}

	result, err := tx.ExecContext(ctx, s.q(`
		UPDATE sessions SET
			status = ?, n_questions = ?, question_order = ?, current_index = ?,
			score_total = ?, correct_count = ?, wrong_count = ?, streak_current = ?,
			streak_max = ?, attempt_no = ?, answered_current = ?, seed = ?,
			version = ?, updated_at = ?
		WHERE id = ? AND version = ?`),
		string(session.Status), session.NQuestions, string(order), session.CurrentIndex,
		session.ScoreTotal, session.CorrectCount, session.WrongCount, session.StreakCurrent,
		session.StreakMax, session.AttemptNo, session.AnsweredCurrent, session.Seed,
		expectedVersion+1, now.UnixMilli(),
		session.ID, expectedVersion,
	)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return fmt.Errorf("update session: %w", domain.ErrConflict)
		}
		return fmt.Errorf("update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM sessions WHERE id = ?`), session.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return domain.ErrConflict
}

func (s *SQLStore) abandonOthers(ctx context.Context, tx *sql.Tx, session *domain.Session, now time.Time) error {
	_, err := tx.ExecContext(ctx, s.q(`
		UPDATE sessions SET status = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND topic_id = ? AND status = ? AND id <> ?`),
		string(domain.StatusAbandoned), now.UnixMilli(),
		session.UserID, session.TopicID, string(domain.StatusActive), session.ID,
	)
	if err != nil {
		return fmt.Errorf("abandon previous sessions: %w", err)
	}
	return nil
}

const answerColumns = `id, session_id, attempt_no, question_index, question_id, user_answer,
	is_correct, score_delta, multiplier, streak_after, response_time_ms, answered_at`

func scanAnswer(row rowScanner) (*domain.AnswerRecord, error) {
	var a domain.AnswerRecord
	var responseTime sql.NullInt64
	var answeredAt int64
	if err := row.Scan(
		&a.ID, &a.SessionID, &a.AttemptNo, &a.QuestionIndex, &a.QuestionID, &a.UserAnswer,
		&a.IsCorrect, &a.ScoreDelta, &a.Multiplier, &a.StreakAfter, &responseTime, &answeredAt,
	); err != nil {
		return nil, err
	}
	if responseTime.Valid {
		ms := int(responseTime.Int64)
		a.ResponseTimeMs = &ms
	}
	a.AnsweredAt = time.UnixMilli(answeredAt).UTC()
	return &a, nil
}

// GetAnswer returns the answer recorded for one question index of an attempt.
func (s *SQLStore) GetAnswer(ctx context.Context, sessionID string, attemptNo, questionIndex int) (*domain.AnswerRecord, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+answerColumns+` FROM answers
		WHERE session_id = ? AND attempt_no = ? AND question_index = ?`),
		sessionID, attemptNo, questionIndex)
	answer, err := scanAnswer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get answer: %w", err)
	}
	return answer, nil
}

// ListAnswers returns the answers of one attempt in question order.
func (s *SQLStore) ListAnswers(ctx context.Context, sessionID string, attemptNo int) ([]domain.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+answerColumns+` FROM answers
		WHERE session_id = ? AND attempt_no = ? ORDER BY question_index`), sessionID, attemptNo)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer rows.Close()

	answers := []domain.AnswerRecord{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}
	return answers, nil
}

// TopicStats aggregates a user's answers for a topic across sessions and attempts.
func (s *SQLStore) TopicStats(ctx context.Context, userID, topicID string) (*domain.TopicStats, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT COUNT(*), SUM(CASE WHEN a.is_correct THEN 1 ELSE 0 END), MAX(a.streak_after)
		FROM answers a JOIN sessions s ON s.id = a.session_id
		WHERE s.user_id = ? AND s.topic_id = ?
		GROUP BY a.session_id, a.attempt_no`), userID, topicID)
	if err != nil {
		return nil, fmt.Errorf("query topic stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.TopicStats{TopicID: topicID}
	var correct, total int
	for rows.Next() {
		var n, c, best int
		if err := rows.Scan(&n, &c, &best); err != nil {
			return nil, fmt.Errorf("scan topic stats: %w", err)
		}
		stats.Attempts++
		total += n
		correct += c
		stats.BestStreak = max(stats.BestStreak, best)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic stats: %w", err)
	}
	stats.Accuracy = accuracyPercent(correct, total)
	return stats, nil
}

// AbandonIdleSessions marks active sessions idle for longer than idle as abandoned.
func (s *SQLStore) AbandonIdleSessions(ctx context.Context, idle time.Duration) (int64, error) {
	now := nowUTC()
	threshold := now.Add(-idle).UnixMilli()
	var affected int64
	err := s.inTx(ctx, "abandon idle sessions", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, s.q(`
			UPDATE sessions SET status = ?, version = version + 1, updated_at = ?
			WHERE status = ? AND updated_at < ?`),
			string(domain.StatusAbandoned), now.UnixMilli(), string(domain.StatusActive), threshold)
		if err != nil {
			return fmt.Errorf("abandon idle sessions: %w", err)
		}
		affected, err = result.RowsAffected()
		return err
	})
	return affected, err
}
