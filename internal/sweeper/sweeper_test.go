package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/glossgame/internal/domain"
	"github.com/ashureev/glossgame/internal/store"
)

type fakeAbandoner struct {
	calls atomic.Int32
	idle  atomic.Int64
	err   error
}

func (f *fakeAbandoner) AbandonIdleSessions(_ context.Context, idle time.Duration) (int64, error) {
	f.calls.Add(1)
	f.idle.Store(int64(idle))
	return 2, f.err
}

func TestStartSweepsUntilCanceled(t *testing.T) {
	f := &fakeAbandoner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := Start(ctx, f, time.Hour, 5*time.Millisecond)

	deadline := time.After(2 * time.Second)
	for f.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sweeper ran %d times, want at least 2", f.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
	if got := time.Duration(f.idle.Load()); got != time.Hour {
		t.Errorf("idle ttl = %v, want 1h", got)
	}
}

func TestSweepError(t *testing.T) {
	f := &fakeAbandoner{err: errors.New("db down")}
	if n := Sweep(context.Background(), f, time.Minute); n != 0 {
		t.Errorf("Sweep() = %d, want 0 on error", n)
	}
}

func TestSweepAbandonsIdleSessions(t *testing.T) {
	repo := store.NewMemory()
	ctx := context.Background()
	if err := repo.SeedContent(ctx, []domain.Topic{{ID: "t1", Slug: "t1", Title: "T"}}, nil); err != nil {
		t.Fatalf("SeedContent() error = %v", err)
	}
	s := &domain.Session{ID: "s1", TopicID: "t1", UserID: "u1", Status: domain.StatusActive, NQuestions: 1, QuestionOrder: []string{"q"}, AttemptNo: 1}
	if err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if n := Sweep(ctx, repo, time.Hour); n != 0 {
		t.Errorf("Sweep(1h) = %d, want 0", n)
	}
	time.Sleep(5 * time.Millisecond)
	if n := Sweep(ctx, repo, time.Millisecond); n != 1 {
		t.Errorf("Sweep(1ms) = %d, want 1", n)
	}

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != domain.StatusAbandoned {
		t.Errorf("Status = %s, want abandoned", got.Status)
	}
}
