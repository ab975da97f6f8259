package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cybrsens.io/internal/authn"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth verifies the bearer token and attaches the caller identity to
// the request context. Every /v1/orgs route sits behind it.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		identity, err := authn.ParseAndValidate(token)
		if err != nil {
			if errors.Is(err, authn.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		next.ServeHTTP(w, r.WithContext(authn.ContextWithIdentity(r.Context(), identity)))
	})
}

// requireTenant enforces tenant isolation at the edge: the organization in
// the path must match the organization in the verified token. A mismatch
// is a 403, not a 404, so the caller learns nothing about other tenants.
func (a *API) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authn.IdentityFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing identity")
			return
		}
		orgID := chi.URLParam(r, "orgID")
		if orgID == "" || orgID != identity.OrganizationID {
			writeError(w, r, http.StatusForbidden, "organization access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityOrFail(w http.ResponseWriter, r *http.Request) (authn.Identity, bool) {
	identity, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing identity")
	}
	return identity, ok
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
