package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type RateLimitConfig struct {
	// PerUserPerWindow caps one identity's admissions inside a window
	PerUserPerWindow int
	// GlobalPerWindow caps admissions across all identities
	GlobalPerWindow int
	// Window is the counting period, one day by default
	Window time.Duration
	// AllowedEmails bypass denial (lowercase set)
	AllowedEmails map[string]struct{}
	// Backend selects the counter store: "memory" (default) or "redis"
	Backend string
}

func NewRateLimitConfig() *RateLimitConfig {
	perUser, err := strconv.Atoi(os.Getenv("RATE_LIMIT_PER_USER_PER_DAY"))
	if err != nil || perUser <= 0 {
		perUser = 3
	}
	global, err := strconv.Atoi(os.Getenv("RATE_LIMIT_GLOBAL_PER_DAY"))
	if err != nil || global <= 0 {
		global = 100
	}
	windowHours, err := strconv.Atoi(os.Getenv("RATE_LIMIT_WINDOW_HOURS"))
	if err != nil || windowHours <= 0 {
		windowHours = 24
	}

	allowed := make(map[string]struct{})
	for _, email := range strings.Split(os.Getenv("ALLOWED_EMAILS"), ",") {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowed[email] = struct{}{}
		}
	}

	return &RateLimitConfig{
		PerUserPerWindow: perUser,
		GlobalPerWindow:  global,
		Window:           time.Duration(windowHours) * time.Hour,
		AllowedEmails:    allowed,
		Backend:          getEnv("RATE_LIMIT_BACKEND", "memory"),
	}
}

// IsAllowlisted reports whether an email bypasses rate-limit denial
func (c *RateLimitConfig) IsAllowlisted(email string) bool {
	_, ok := c.AllowedEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
