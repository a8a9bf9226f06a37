package auth

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/domain"
	"gitlab.com/omj-2025.net/internal/global/logger"
	"gitlab.com/omj-2025.net/internal/static/errs"
)

type IAuthService interface {
	ProviderName() domain.Provider
	Login(ctx context.Context, users *domain.Users) (string, error)
}

// issueToken signs the session token for a stored user. The
// allowlisted claim is resolved here so the rate limiter can trust the
// token without reloading config per request.
func issueToken(ctx context.Context, jwtProvider primary.JWTService, rateLimitCfg *config.RateLimitConfig, user *domain.Users) (string, error) {
	email := ""
	if user.Email != nil {
		email = *user.Email
	}

	authPayload := domain.AuthPayload{
		UserID:      user.ID.String(),
		Username:    user.UserName,
		Email:       email,
		Allowlisted: rateLimitCfg.IsAllowlisted(email),
	}
	var buf bytes.Buffer

	err := json.NewEncoder(&buf).Encode(authPayload)
	if err != nil {
		return "", errs.InternalError
	}
	var payload map[string]interface{}
	err = json.Unmarshal(buf.Bytes(), &payload)
	if err != nil {
		logger.Error("Failed to unmarshal auth payload", "error", err)
		return "", errs.InternalError
	}
	token, err := jwtProvider.GenerateTokenHMAC(ctx, jwt.SigningMethodHS256.Name, payload)
	if err != nil {
		return "", errs.GeneratingToken
	}
	return token, nil
}
