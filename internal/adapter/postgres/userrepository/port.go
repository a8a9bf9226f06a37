package userrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"gitlab.com/omj-2025.net/internal/core/ports/primary"
	"gitlab.com/omj-2025.net/internal/core/ports/secondary"
	"gitlab.com/omj-2025.net/internal/domain"
)

var _ secondary.UserPort = &userRepo{}

type userRepo struct {
	db     *sqlx.DB
	logger primary.Logger
}

func New(db *sqlx.DB, logger primary.Logger) secondary.UserPort {
	return &userRepo{
		db:     db,
		logger: logger,
	}
}

func (u userRepo) Create(ctx context.Context, user *domain.Users) error {
	query := `
		INSERT INTO users (id, user_name, password_hash, email, auth_provider, google_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := u.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.UserName,
		user.PasswordHash,
		user.Email,
		user.AuthProvider,
		user.GoogleID,
	)
	if err != nil {
		u.logger.Error("Failed to create user", "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (u userRepo) GetByEmail(ctx context.Context, email string) (*domain.Users, error) {
	return u.getOne(ctx, "email", email)
}

func (u userRepo) GetByGoogleID(ctx context.Context, googleID string) (*domain.Users, error) {
	return u.getOne(ctx, "google_id", googleID)
}

func (u userRepo) GetByUserName(ctx context.Context, userName string) (*domain.Users, error) {
	return u.getOne(ctx, "user_name", userName)
}

func (u userRepo) getOne(ctx context.Context, column, value string) (*domain.Users, error) {
	query := fmt.Sprintf(`
		SELECT id, user_name, password_hash, email, auth_provider, google_id
		FROM users
		WHERE %s = $1
	`, column)

	var user domain.Users
	err := u.db.GetContext(ctx, &user, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		u.logger.Error("Failed to get user", "column", column, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
