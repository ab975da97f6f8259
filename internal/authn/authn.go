// Package authn handles the verified caller identity. The identity
// collaborator signs short-lived HS256 tokens carrying the actor id, the
// organization and the current role; this package verifies them and makes
// the resulting Identity available on the request context. The core never
// derives identity itself.
package authn

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cybrsens.io/internal/authz"
)

const (
	issuer            = "cybrsens"
	secretEnvVariable = "CYBRSENS_AUTH_SECRET"
)

var (
	errMissingSecret = errors.New("auth secret is not configured")

	secretMu sync.Mutex
	secret   cachedSecret
)

type cachedSecret struct {
	value []byte
	err   error
	ready bool
}

// ErrInvalidToken indicates the token failed validation.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified (actor, role, organization) triple the core
// consumes on every request.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           authz.Role
}

// Claims represents the JWT claims the identity collaborator signs.
type Claims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs a JWT for the given identity using HS256. The
// production signer lives with the identity collaborator; this function is
// the shared contract and what the test suite uses to mint callers.
func GenerateToken(identity Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", errors.New("user id is required")
	}
	if strings.TrimSpace(identity.OrganizationID) == "" {
		return "", errors.New("organization id is required")
	}
	if !identity.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", identity.Role)
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	claims := Claims{
		OrganizationID: identity.OrganizationID,
		Role:           string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secretBytes)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims and
// returns the verified identity.
func ParseAndValidate(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	secretBytes, err := loadSecret()
	if err != nil {
		return Identity{}, err
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secretBytes, nil
	})
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if err := validateClaims(claims); err != nil {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		Role:           authz.Role(strings.ToLower(strings.TrimSpace(claims.Role))),
	}, nil
}

func validateClaims(claims *Claims) error {
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return errors.New("subject missing")
	}
	if strings.TrimSpace(claims.OrganizationID) == "" {
		return errors.New("organization missing")
	}
	if !authz.Role(strings.ToLower(strings.TrimSpace(claims.Role))).Valid() {
		return fmt.Errorf("unknown role: %s", claims.Role)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return errors.New("timestamps missing")
	}
	now := time.Now().UTC()
	if now.After(claims.ExpiresAt.Time) {
		return errors.New("token expired")
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return errors.New("token not yet valid")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(now.Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		return errors.New("token expiry precedes issued-at")
	}
	return nil
}

func loadSecret() ([]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()
	if secret.ready {
		return secret.value, secret.err
	}
	raw := strings.TrimSpace(os.Getenv(secretEnvVariable))
	if raw == "" {
		secret.err = errMissingSecret
		secret.ready = true
		return nil, secret.err
	}
	secret.value = []byte(raw)
	secret.err = nil
	secret.ready = true
	return secret.value, nil
}

// ResetSecretForTests clears the cached secret value. Only intended for test use.
func ResetSecretForTests() {
	secretMu.Lock()
	defer secretMu.Unlock()
	secret = cachedSecret{}
}
