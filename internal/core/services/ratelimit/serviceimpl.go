package ratelimit

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/omj-2025.net/internal/config"
	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

var _ IRateLimitService = (*RateLimitService)(nil)

// Denial reasons shown to the user. Tests assert the word "limit".
const (
	userDeniedReason   = "Przekroczono dzienny limit zgłoszeń. Spróbuj ponownie później."
	globalDeniedReason = "Dzienny limit zgłoszeń w systemie został wyczerpany. Spróbuj ponownie jutro."
)

// RateLimitService implements admission control over a counter store.
// Allowlisted identities are counted for observability but never
// denied.
type RateLimitService struct {
	counters secondary.AdmissionCounters
	cfg      *config.RateLimitConfig
	logger   primary.Logger
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counters secondary.AdmissionCounters, cfg *config.RateLimitConfig, logger primary.Logger) *RateLimitService {
	return &RateLimitService{
		counters: counters,
		cfg:      cfg,
		logger:   logger,
	}
}

// Admit checks the identity's counter and then the global counter and
// increments both when the submission is let through
func (s *RateLimitService) Admit(ctx context.Context, identity domain.Identity) (domain.Admission, error) {
	bypass := identity.Allowlisted || s.cfg.IsAllowlisted(identity.Email)
	userKey := fmt.Sprintf("user:%s", identity.UserID)

	decision, err := s.counters.Admit(ctx, userKey, s.cfg.PerUserPerWindow, s.cfg.GlobalPerWindow, s.cfg.Window, bypass)
	if err != nil {
		return domain.Admission{}, fmt.Errorf("failed to check admission counters: %w", err)
	}

	admission := domain.Admission{
		Allowed: decision.Allowed,
		Limit:   s.cfg.PerUserPerWindow,
		ResetAt: decision.ResetAt,
	}
	admission.Remaining = s.cfg.PerUserPerWindow - decision.Count
	if admission.Remaining < 0 {
		admission.Remaining = 0
	}

	if decision.Allowed {
		if bypass {
			s.logger.Debug("Submission admitted via allowlist",
				"user", identity.Username, "count", decision.Count)
		}
		return admission, nil
	}

	// a denied response always reads as exhausted, even when the
	// global counter ran out with user headroom left
	admission.Remaining = 0

	retryAfter := time.Until(decision.ResetAt)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	admission.RetryAfter = retryAfter

	switch decision.ExhaustedScope {
	case "global":
		admission.DeniedBy = domain.ScopeGlobal
		admission.Reason = globalDeniedReason
	default:
		admission.DeniedBy = domain.ScopeUser
		admission.Reason = userDeniedReason
	}

	s.logger.Info("Submission denied by rate limit",
		"user", identity.Username,
		"scope", admission.DeniedBy,
		"resetAt", decision.ResetAt)

	return admission, nil
}
