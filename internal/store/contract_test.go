package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/glossgame/internal/domain"
)

func seedFixture(t *testing.T, repo Repository) {
	t.Helper()
	topics := []domain.Topic{
		{ID: "t2", Slug: "second", Title: "Second", SortOrder: 2},
		{ID: "t1", Slug: "first", Title: "First", SortOrder: 1},
	}
	questions := []domain.Question{
		{ID: "q2", TopicID: "t1", Term: "B", ShownDefinition: "b", IsDefinitionCorrect: false, Explanation: "no", OrderIndex: 2},
		{ID: "q1", TopicID: "t1", Term: "A", ShownDefinition: "a", IsDefinitionCorrect: true, Explanation: "yes", OrderIndex: 1},
		{ID: "q3", TopicID: "t2", Term: "C", ShownDefinition: "c", IsDefinitionCorrect: true, OrderIndex: 1},
	}
	require.NoError(t, repo.SeedContent(context.Background(), topics, questions))
}

func newTestSession(id, userID, topicID string) *domain.Session {
	return &domain.Session{
		ID:            id,
		TopicID:       topicID,
		UserID:        userID,
		Status:        domain.StatusActive,
		NQuestions:    2,
		QuestionOrder: []string{"q1", "q2"},
		AttemptNo:     1,
		Seed:          "seed-" + id,
	}
}

func runRepositoryContract(t *testing.T, open func(t *testing.T) Repository) {
	newRepo := func(t *testing.T) Repository {
		t.Helper()
		repo := open(t)
		seedFixture(t, repo)
		return repo
	}

	t.Run("content", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		// Seeding twice keeps the first copy.
		require.NoError(t, repo.SeedContent(ctx, []domain.Topic{{ID: "t1", Slug: "first", Title: "Changed", SortOrder: 1}}, nil))

		topics, err := repo.ListTopics(ctx)
		require.NoError(t, err)
		require.Len(t, topics, 2)
		assert.Equal(t, "t1", topics[0].ID)
		assert.Equal(t, "First", topics[0].Title)

		qs, err := repo.ListQuestions(ctx, "t1")
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, "q1", qs[0].ID)
		assert.True(t, qs[0].IsDefinitionCorrect)
		assert.Equal(t, "yes", qs[0].Explanation)

		empty, err := repo.ListQuestions(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.GetSession(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		s := newTestSession("s1", "u1", "t1")
		require.NoError(t, repo.CreateSession(ctx, s))
		assert.Equal(t, int64(1), s.Version)
		assert.False(t, s.CreatedAt.IsZero())

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []string{"q1", "q2"}, got.QuestionOrder)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Equal(t, "seed-s1", got.Seed)
		assert.Equal(t, int64(1), got.Version)

		active, err := repo.FindActiveSession(ctx, "u1", "t1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "s1", active.ID)

		none, err := repo.FindActiveSession(ctx, "u2", "t1")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("create abandons previous active session", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.CreateSession(ctx, newTestSession("s1", "u1", "t1")))
		require.NoError(t, repo.CreateSession(ctx, newTestSession("s2", "u1", "t1")))
		require.NoError(t, repo.CreateSession(ctx, newTestSession("s3", "u1", "t2")))

		old, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAbandoned, old.Status)
		assert.Equal(t, int64(2), old.Version)

		active, err := repo.FindActiveSession(ctx, "u1", "t1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "s2", active.ID)

		other, err := repo.GetSession(ctx, "s3")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, other.Status)
	})

	t.Run("put compares versions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		s := newTestSession("s1", "u1", "t1")
		require.NoError(t, repo.CreateSession(ctx, s))

		update := s.Clone()
		update.CurrentIndex = 1
		require.NoError(t, repo.PutSession(ctx, update, 1))
		assert.Equal(t, int64(2), update.Version)

		stale := s.Clone()
		stale.ScoreTotal = 99
		err := repo.PutSession(ctx, stale, 1)
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.CurrentIndex)
		assert.Equal(t, 0, got.ScoreTotal)

		missing := newTestSession("ghost", "u1", "t1")
		assert.ErrorIs(t, repo.PutSession(ctx, missing, 1), domain.ErrNotFound)
	})

	t.Run("commit answer", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		s := newTestSession("s1", "u1", "t1")
		require.NoError(t, repo.CreateSession(ctx, s))

		ms := 850
		next := s.Clone()
		next.AnsweredCurrent = true
		next.ScoreTotal = 10
		next.CorrectCount = 1
		next.StreakCurrent = 1
		next.StreakMax = 1
		record := &domain.AnswerRecord{
			ID: "a1", SessionID: "s1", AttemptNo: 1, QuestionIndex: 0, QuestionID: "q1",
			UserAnswer: true, IsCorrect: true, ScoreDelta: 10, Multiplier: 1.0, StreakAfter: 1,
			ResponseTimeMs: &ms,
		}
		require.NoError(t, repo.CommitAnswer(ctx, next, 1, record))
		assert.Equal(t, int64(2), next.Version)

		got, err := repo.GetAnswer(ctx, "s1", 1, 0)
		require.NoError(t, err)
		assert.True(t, got.IsCorrect)
		assert.Equal(t, "q1", got.QuestionID)
		require.NotNil(t, got.ResponseTimeMs)
		assert.Equal(t, 850, *got.ResponseTimeMs)

		dup := next.Clone()
		dup.ScoreTotal = 20
		err = repo.CommitAnswer(ctx, dup, 2, &domain.AnswerRecord{
			ID: "a2", SessionID: "s1", AttemptNo: 1, QuestionIndex: 0, QuestionID: "q1",
		})
		assert.ErrorIs(t, err, domain.ErrAlreadyAnswered)

		stored, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 10, stored.ScoreTotal)
		assert.Equal(t, int64(2), stored.Version)

		// A lost compare-and-swap must not leave the answer behind.
		err = repo.CommitAnswer(ctx, stored.Clone(), 1, &domain.AnswerRecord{
			ID: "a3", SessionID: "s1", AttemptNo: 1, QuestionIndex: 1, QuestionID: "q2",
		})
		assert.ErrorIs(t, err, domain.ErrConflict)
		_, err = repo.GetAnswer(ctx, "s1", 1, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		answers, err := repo.ListAnswers(ctx, "s1", 1)
		require.NoError(t, err)
		require.Len(t, answers, 1)
		assert.Equal(t, "a1", answers[0].ID)

		none, err := repo.ListAnswers(ctx, "s1", 2)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("topic stats", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		s := newTestSession("s1", "u1", "t1")
		require.NoError(t, repo.CreateSession(ctx, s))
		version := s.Version
		commit := func(id string, attempt, idx int, correct bool, streak int) {
			t.Helper()
			next, err := repo.GetSession(ctx, "s1")
			require.NoError(t, err)
			require.NoError(t, repo.CommitAnswer(ctx, next, version, &domain.AnswerRecord{
				ID: id, SessionID: "s1", AttemptNo: attempt, QuestionIndex: idx, QuestionID: "q1",
				IsCorrect: correct, StreakAfter: streak, Multiplier: 1,
			}))
			version = next.Version
		}
		commit("a1", 1, 0, true, 1)
		commit("a2", 1, 1, true, 2)
		commit("a3", 2, 0, false, 0)

		stats, err := repo.TopicStats(ctx, "u1", "t1")
		require.NoError(t, err)
		assert.Equal(t, "t1", stats.TopicID)
		assert.Equal(t, 2, stats.Attempts)
		assert.InDelta(t, 66.67, stats.Accuracy, 0.001)
		assert.Equal(t, 2, stats.BestStreak)

		empty, err := repo.TopicStats(ctx, "u2", "t1")
		require.NoError(t, err)
		assert.Equal(t, 0, empty.Attempts)
		assert.Zero(t, empty.Accuracy)
	})

	t.Run("abandon idle sessions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		require.NoError(t, repo.CreateSession(ctx, newTestSession("s1", "u1", "t1")))
		n, err := repo.AbandonIdleSessions(ctx, time.Hour)
		require.NoError(t, err)
		assert.Zero(t, n)

		time.Sleep(5 * time.Millisecond)
		n, err = repo.AbandonIdleSessions(ctx, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := repo.GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAbandoned, got.Status)
		assert.True(t, errors.Is(repo.PutSession(ctx, got.Clone(), 1), domain.ErrConflict))
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newRepo(t).Ping(context.Background()))
	})
}
