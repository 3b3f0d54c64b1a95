package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/medistore/medistore/internal/platform/httpx"
	"github.com/medistore/medistore/internal/shared"
)

// Verifier resolves bearer tokens into claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (shared.Claims, error)
}

// Authenticate attaches the claims of a valid bearer token to the request
// context. Requests without a valid token continue without claims and are
// rejected downstream by the authorization middleware. When the token store
// cannot be reached the request is answered with 503 instead, so an outage is
// never reported as a missing login.
func Authenticate(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if !errors.Is(err, shared.ErrTokenInvalid) {
					logger.Error("verify bearer token", slog.Any("error", err))
					httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "credentials could not be verified")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
