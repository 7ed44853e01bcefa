package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"competition-service/internal/domain"
)

func TestActivityLogStoreAppendAndCount(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewActivityLogStore(client)
	ctx := context.Background()
	pid := "p1"
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []domain.ActivityLogEntry{
		{ID: "a1", UserID: "u1", ParticipationID: &pid, Type: domain.ActivityTabSwitch, Timestamp: now, Severity: domain.SeverityMedium},
		{ID: "a2", UserID: "u1", ParticipationID: &pid, Type: domain.ActivityCopyPaste, Timestamp: now, Details: json.RawMessage(`{"chars":120}`)},
		{ID: "a3", UserID: "u1", Type: domain.ActivityOther, Timestamp: now},
	}
	for i := range entries {
		if err := store.Append(ctx, &entries[i]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := store.CountForParticipation(ctx, pid)
	if err != nil || n != 2 {
		t.Fatalf("expected 2, got %d err=%v", n, err)
	}
	if n, _ := store.CountForParticipation(ctx, "unknown"); n != 0 {
		t.Fatalf("expected 0 for unknown participation, got %d", n)
	}

	history, err := store.ForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("for user: %v", err)
	}
	if len(history) != 3 || history[1].ID != "a2" || string(history[1].Details) != `{"chars":120}` {
		t.Fatalf("unexpected history %+v", history)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected no keys after reset, got %v", mr.Keys())
	}
}
