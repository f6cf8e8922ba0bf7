package question

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/bookqa/internal/db/memory"
	"github.com/kailas-cloud/bookqa/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestRepo(t *testing.T) (*Repo, *memory.Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	mem := memory.NewStore().WithClock(c.Now)
	return New(mem).WithClock(c.Now), mem, c
}

func TestRepo_FindMissing(t *testing.T) {
	repo, _, _ := newTestRepo(t)

	_, err := repo.Find(context.Background(), "what is minimalism?")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_SaveAndFind(t *testing.T) {
	repo, _, c := newTestRepo(t)
	ctx := context.Background()

	q := &domain.Question{
		Question: "how do i find customers?",
		Context:  "\n* Start with your community.",
		Answer:   " Start with the people you already know.",
		AskCount: 1,
	}
	if err := repo.Save(ctx, q); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if q.ID != ID("how do i find customers?") {
		t.Errorf("unexpected id %q", q.ID)
	}
	if q.CreatedAt != c.t.UnixMilli() || q.UpdatedAt != c.t.UnixMilli() {
		t.Errorf("timestamps not set: %+v", q)
	}

	got, err := repo.Find(ctx, "how do i find customers?")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != *q {
		t.Errorf("Find = %+v, want %+v", got, *q)
	}
}

func TestRepo_IncrementAskCount(t *testing.T) {
	repo, _, c := newTestRepo(t)
	ctx := context.Background()

	q := &domain.Question{Question: "why?", Answer: "because", AskCount: 1}
	if err := repo.Save(ctx, q); err != nil {
		t.Fatalf("Save: %v", err)
	}

	c.t = c.t.Add(time.Minute)
	n, err := repo.IncrementAskCount(ctx, "why?")
	if err != nil {
		t.Fatalf("IncrementAskCount: %v", err)
	}
	if n != 2 {
		t.Errorf("expected ask_count 2, got %d", n)
	}

	got, _ := repo.Find(ctx, "why?")
	if got.AskCount != 2 {
		t.Errorf("stored ask_count = %d, want 2", got.AskCount)
	}
	if got.UpdatedAt != c.t.UnixMilli() {
		t.Errorf("updated_at not bumped: %d", got.UpdatedAt)
	}
	if got.CreatedAt == got.UpdatedAt {
		t.Error("created_at must not change on increment")
	}
}

func TestRepo_IncrementMissing(t *testing.T) {
	repo, mem, _ := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.IncrementAskCount(ctx, "never asked?")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := mem.Exists(ctx, questionKey(ID("never asked?"))); ok {
		t.Error("increment must not create a partial record")
	}
}

func TestRepo_TTL(t *testing.T) {
	repo, _, c := newTestRepo(t)
	repo.WithTTL(24 * time.Hour)
	ctx := context.Background()

	_ = repo.Save(ctx, &domain.Question{Question: "ttl?", Answer: "a"})

	c.t = c.t.Add(24 * time.Hour)
	if _, err := repo.Find(ctx, "ttl?"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected record to expire, got %v", err)
	}
}

type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) HGetAll(_ context.Context, _ string) (map[string]string, error) {
	return nil, f.err
}

func (f *failingStore) HSet(_ context.Context, _ string, _ map[string]string) error {
	return f.err
}

func TestRepo_StoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	repo := New(&failingStore{Store: memory.NewStore(), err: boom})
	ctx := context.Background()

	if _, err := repo.Find(ctx, "q?"); !errors.Is(err, boom) {
		t.Errorf("Find: expected wrapped store error, got %v", err)
	}
	if err := repo.Save(ctx, &domain.Question{Question: "q?"}); !errors.Is(err, boom) {
		t.Errorf("Save: expected wrapped store error, got %v", err)
	}
}

func TestParseHashFields_BadNumber(t *testing.T) {
	_, err := parseHashFields("id", map[string]string{fieldQuestion: "q", fieldAskCount: "x"})
	if err == nil {
		t.Fatal("expected error for non-numeric ask_count")
	}
}

func TestRepo_IncrementAfterExpiry(t *testing.T) {
	repo, mem, c := newTestRepo(t)
	repo.WithTTL(time.Hour)
	ctx := context.Background()

	_ = repo.Save(ctx, &domain.Question{Question: "late?", Answer: "a", AskCount: 1})

	c.t = c.t.Add(time.Hour)
	if _, err := repo.IncrementAskCount(ctx, "late?"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	// Просроченная запись не воскресает в виде заглушки
	if ok, _ := mem.Exists(ctx, questionKey(ID("late?"))); ok {
		t.Error("increment after expiry must not recreate the hash")
	}
	if _, err := repo.Find(ctx, "late?"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Find after expiry: expected ErrNotFound, got %v", err)
	}
}

type incrFailingStore struct {
	*memory.Store
	err error
}

func (f *incrFailingStore) HIncrByExisting(_ context.Context, _, _ string, _ int64, _ map[string]string) (int64, error) {
	return 0, f.err
}

func TestRepo_IncrementStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	repo := New(&incrFailingStore{Store: memory.NewStore(), err: boom})

	_, err := repo.IncrementAskCount(context.Background(), "q?")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, domain.ErrNotFound) {
		t.Error("store failure must not be reported as not found")
	}
}
