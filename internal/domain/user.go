package domain

import "github.com/google/uuid"

type Users struct {
	ID           uuid.UUID `db:"id"`
	UserName     string    `db:"user_name"`
	PasswordHash *string   `db:"password_hash"`
	Email        *string   `db:"email"`
	AuthProvider string    `db:"auth_provider"`
	GoogleID     *string   `db:"google_id"`
}

// Identity is the authenticated caller a submission is made for, as
// reconstructed from the session token by the auth middleware.
type Identity struct {
	UserID      uuid.UUID
	Username    string
	Email       string
	Allowlisted bool
}
