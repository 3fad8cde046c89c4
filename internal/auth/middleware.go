package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/vaxcart-api/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware attaches the verified caller to request contexts.
type Middleware struct {
	Verifier  *Verifier
	AdminRole string
}

// Authenticate attaches the caller when a valid token is present and lets
// anonymous requests through unchanged. Invalid tokens are rejected so a
// stale session never silently downgrades to anonymous.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.principal(r)
		if errors.Is(err, errNoToken) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), p)))
	})
}

// RequireAuth rejects requests without a valid bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.principal(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin allows only callers carrying the admin role. It expects
// RequireAuth to run first.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	role := m.AdminRole
	if role == "" {
		role = "admin"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := common.PrincipalFrom(r.Context())
		if !ok {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if p.Role != role {
			common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) principal(r *http.Request) (common.Principal, error) {
	if m.Verifier == nil {
		return common.Principal{}, errors.New("auth: verifier not configured")
	}
	token := extractToken(r)
	if token == "" {
		return common.Principal{}, errNoToken
	}
	return m.Verifier.ParseAccessToken(token)
}

func writeAuthError(w http.ResponseWriter, err error) {
	if appErr, ok := common.AsAppError(err); ok && appErr.HTTPStatus != 0 {
		common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
