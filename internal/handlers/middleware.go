package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/domain"
)

type contextKey string

const identityContextKey contextKey = "identity"

type MiddlewareProvider struct {
	jwtService primary.JWTService
	logger     primary.Logger
}

func New(jwtService primary.JWTService, logger primary.Logger) *MiddlewareProvider {
	return &MiddlewareProvider{
		jwtService: jwtService,
		logger:     logger,
	}
}

// IdentityFromContext returns the caller identity stored by
// JWTMiddleware
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(domain.Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the caller identity
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// bearerToken extracts the session token from the Authorization header
// or, for WebSocket clients that cannot set headers, the token query
// parameter.
func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// JWTMiddleware verifies the session token and stores the caller
// identity in the request context
func (m *MiddlewareProvider) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "Authorization header missing", http.StatusUnauthorized)
			return
		}

		valid, err := m.jwtService.VerifyTokenHMAC(r.Context(), tokenString, "HS256")
		if err != nil || !valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		payload, err := m.jwtService.DecodeTokenPayload(r.Context(), tokenString)
		if err != nil {
			m.logger.Error("Failed to decode token payload", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		identity := domain.Identity{
			UserID:      userID,
			Username:    payload.Username,
			Email:       payload.Email,
			Allowlisted: payload.Allowlisted,
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}
