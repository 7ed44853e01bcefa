package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"competition-service/internal/domain"
)

func TestParticipationStoreLifecycle(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()

	got, err := store.FindActiveOrFinished(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("expected no participation, got %+v err=%v", got, err)
	}

	p := newParticipation("p1", "u1")
	if err := store.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	active, err := store.FindActive(ctx, "u1")
	if err != nil || active == nil {
		t.Fatalf("expected active participation, got %+v err=%v", active, err)
	}

	active.Answers = append(active.Answers, domain.AnswerEntry{QuestionID: "q1", Answer: "4"})
	active.Status = domain.StatusCompleted
	if err := store.Save(ctx, active); err != nil {
		t.Fatalf("save: %v", err)
	}

	if again, _ := store.FindActive(ctx, "u1"); again != nil {
		t.Fatalf("completed participation must not be active")
	}
	finished, _ := store.FindActiveOrFinished(ctx, "u1")
	if finished == nil || finished.Status != domain.StatusCompleted || len(finished.Answers) != 1 {
		t.Fatalf("unexpected finished participation %+v", finished)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if after, _ := store.FindActiveOrFinished(ctx, "u1"); after != nil {
		t.Fatalf("expected empty store after reset")
	}
}

func TestParticipationStoreRejectsSecondCreate(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- store.Create(ctx, newParticipation(string(rune('a'+i)), "u1"))
		}(i)
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrAlreadyActive):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one create to win, got %d", wins)
	}
}

func TestParticipationStoreSaveDetectsStaleVersion(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()
	if err := store.Create(ctx, newParticipation("p1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := store.FindActive(ctx, "u1")
	b, _ := store.FindActive(ctx, "u1")
	if err := store.Save(ctx, a); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, b); !errors.Is(err, domain.ErrConcurrentUpdate) {
		t.Fatalf("expected ErrConcurrentUpdate, got %v", err)
	}
}

func TestParticipationStoreReturnsCopies(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()
	if err := store.Create(ctx, newParticipation("p1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	p, _ := store.FindActive(ctx, "u1")
	p.Status = domain.StatusDisqualified

	again, _ := store.FindActive(ctx, "u1")
	if again == nil || again.Status != domain.StatusActive {
		t.Fatalf("store state changed without Save")
	}
}

func TestParticipationStoreListActive(t *testing.T) {
	store := NewParticipationStore()
	ctx := context.Background()
	for _, id := range []string{"u1", "u2", "u3"} {
		if err := store.Create(ctx, newParticipation("p-"+id, id)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	done, _ := store.FindActive(ctx, "u2")
	done.Status = domain.StatusCompleted
	if err := store.Save(ctx, done); err != nil {
		t.Fatalf("save: %v", err)
	}

	active, err := store.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}
}

func newParticipation(id, userID string) *domain.Participation {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Participation{
		ID:        id,
		UserID:    userID,
		StartTime: now,
		Status:    domain.StatusActive,
		Answers:   []domain.AnswerEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
