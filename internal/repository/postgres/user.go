package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rentloop-backend/internal/domain"
	"rentloop-backend/internal/repository"
)

type userRepository struct {
	db DBTX
}

func NewUserRepository(db DBTX) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetEmail(ctx context.Context, userID int32) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.Errorf(domain.ErrNotFound, "user %d not found", userID)
	}
	if err != nil {
		return "", err
	}
	return email, nil
}
