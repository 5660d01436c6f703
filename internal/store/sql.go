package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/glossgame/internal/shared"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	writeMaxRetries    = 3
	writeRetryBaseWait = 50 * time.Millisecond
)

// SQLStore implements Repository on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL keeps readers off the writer's back; busy_timeout absorbs short lock waits.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open(DialectSQLite.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer connection turns lock contention into queueing.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, DialectSQLite)
}

// NewPostgres creates a new PostgreSQL-backed repository.
func NewPostgres(databaseURL string) (*SQLStore, error) {
	db, err := sql.Open(DialectPostgres.DriverName(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, DialectPostgres)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			skill_tag TEXT NOT NULL DEFAULT '',
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			term TEXT NOT NULL,
			shown_definition TEXT NOT NULL,
			is_definition_correct BOOLEAN NOT NULL,
			explanation TEXT NOT NULL,
			icon_key TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_topic ON questions(topic_id, order_index)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			topic_id TEXT NOT NULL REFERENCES topics(id),
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			n_questions INTEGER NOT NULL,
			question_order TEXT NOT NULL,
			current_index INTEGER NOT NULL,
			score_total INTEGER NOT NULL,
			correct_count INTEGER NOT NULL,
			wrong_count INTEGER NOT NULL,
			streak_current INTEGER NOT NULL,
			streak_max INTEGER NOT NULL,
			attempt_no INTEGER NOT NULL,
			answered_current BOOLEAN NOT NULL,
			seed TEXT NOT NULL,
			version BIGINT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active ON sessions(user_id, topic_id) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_idle ON sessions(status, updated_at)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			attempt_no INTEGER NOT NULL,
			question_index INTEGER NOT NULL,
			question_id TEXT NOT NULL,
			user_answer BOOLEAN NOT NULL,
			is_correct BOOLEAN NOT NULL,
			score_delta INTEGER NOT NULL,
			multiplier DOUBLE PRECISION NOT NULL,
			streak_after INTEGER NOT NULL,
			response_time_ms INTEGER,
			answered_at BIGINT NOT NULL,
			UNIQUE (session_id, attempt_no, question_index)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Dialect reports which SQL flavour the store speaks.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) q(query string) string {
	return s.dialect.Rebind(query)
}

// inTx runs fn inside a transaction and retries the whole transaction with
// exponential backoff when SQLite reports lock contention.
func (s *SQLStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	var err error
	for i := 0; i < writeMaxRetries; i++ {
		err = s.inTxOnce(ctx, fn)
		if err == nil || !shared.IsRetryableError(err) {
			return err
		}
		if i < writeMaxRetries-1 {
			delay := writeRetryBaseWait * time.Duration(1<<i) // 50ms, 100ms, 200ms
			slog.Debug("database locked, retrying", "op", op, "attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", op, writeMaxRetries, err)
}

func (s *SQLStore) inTxOnce(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

var _ Repository = (*SQLStore)(nil)
