package audit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAppendAndListByOrg(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	for i, action := range []string{ActionUserInvited, ActionUserRoleUpdated, ActionUserRemoved} {
		err := store.Append(ctx, &Entry{
			ID:             string(rune('a' + i)),
			OrganizationID: "org-1",
			ActorUserID:    "admin-1",
			Action:         action,
			ResourceType:   "user",
			ResourceID:     "user-9",
			CreatedAt:      time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := store.Append(ctx, &Entry{ID: "z", OrganizationID: "org-2", Action: ActionUserInvited}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := store.ListByOrg(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("ListByOrg: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries for org-1, got %d", len(entries))
	}
	if entries[0].Action != ActionUserRemoved {
		t.Fatalf("expected newest first, got %s", entries[0].Action)
	}
}

func TestMemoryListLimit(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = store.Append(ctx, &Entry{OrganizationID: "org-1", Action: ActionUserInvited})
	}
	entries, err := store.ListByOrg(ctx, "org-1", 2)
	if err != nil {
		t.Fatalf("ListByOrg: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit 2, got %d", len(entries))
	}
}

func TestAppendCopiesDetails(t *testing.T) {
	store := NewMemory()
	details := map[string]any{"invited_email": "a@b.c"}
	entry := &Entry{OrganizationID: "org-1", Action: ActionUserInvited, Details: details}
	if err := store.Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	details["invited_email"] = "mutated"

	entries, _ := store.ListByOrg(context.Background(), "org-1", 1)
	if entries[0].Details["invited_email"] != "a@b.c" {
		t.Fatal("stored entry shares the caller's details map")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("unexpected request id: %s", got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
	if ctx := WithRequestID(context.Background(), "  "); RequestIDFromContext(ctx) != "" {
		t.Fatal("blank request id should not be stored")
	}
}
