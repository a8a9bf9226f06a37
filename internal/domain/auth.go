package domain

type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderLocal  Provider = "local"
)

// AuthPayload is the claim set carried in the session token. The
// Allowlisted flag feeds the rate limiter's bypass check.
type AuthPayload struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Allowlisted bool   `json:"allowlisted"`
}

type LoginResponse struct {
	Token string `json:"token"`
}
