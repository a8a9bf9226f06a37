package ratelimit

import (
	"context"

	"gitlab.com/omj-2025.net/internal/domain"
)

// IRateLimitService decides whether an identity may submit. The
// decision always carries the user-scope counter's limit, remaining
// and reset instant for response headers, on denial as well as on
// admission.
type IRateLimitService interface {
	Admit(ctx context.Context, identity domain.Identity) (domain.Admission, error)
}
