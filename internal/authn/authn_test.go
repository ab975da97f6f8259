package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"cybrsens.io/internal/authz"
)

func setSecret(t *testing.T) {
	t.Helper()
	t.Setenv("CYBRSENS_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	setSecret(t)

	identity := Identity{UserID: "user-1", OrganizationID: "org-1", Role: authz.RoleAnalyst}
	token, err := GenerateToken(identity, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	got, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if got != identity {
		t.Fatalf("identity mismatch: got %+v want %+v", got, identity)
	}
}

func TestGenerateRejectsBadInput(t *testing.T) {
	setSecret(t)

	if _, err := GenerateToken(Identity{OrganizationID: "org-1", Role: authz.RoleAdmin}, time.Minute); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, err := GenerateToken(Identity{UserID: "u", Role: authz.RoleAdmin}, time.Minute); err == nil {
		t.Fatal("expected error for missing organization id")
	}
	if _, err := GenerateToken(Identity{UserID: "u", OrganizationID: "o", Role: "root"}, time.Minute); err == nil {
		t.Fatal("expected error for unknown role")
	}
	if _, err := GenerateToken(Identity{UserID: "u", OrganizationID: "o", Role: authz.RoleViewer}, 0); err == nil {
		t.Fatal("expected error for non-positive ttl")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	setSecret(t)

	token, err := GenerateToken(Identity{UserID: "u", OrganizationID: "o", Role: authz.RoleViewer}, time.Millisecond)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	setSecret(t)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestIdentityContextRoundTrip(t *testing.T) {
	identity := Identity{UserID: "u", OrganizationID: "o", Role: authz.RoleAdmin}
	ctx := ContextWithIdentity(context.Background(), identity)

	got, ok := IdentityFromContext(ctx)
	if !ok || got != identity {
		t.Fatalf("context round trip failed: %+v ok=%v", got, ok)
	}
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context should not carry an identity")
	}
}
