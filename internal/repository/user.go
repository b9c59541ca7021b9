package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/jackc/pgx/v5"
)

type UserRepository struct {
	server *server.Server
}

func NewUserRepository(s *server.Server) *UserRepository {
	return &UserRepository{server: s}
}

const userColumns = `id, username, email, password_hash, is_active, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts user and sets its ID and CreatedAt.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	stmt := `
		INSERT INTO users (username, email, password_hash, is_active)
		VALUES (@username, @email, @password_hash, @is_active)
		RETURNING id, created_at
	`

	err := r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{
		"username":      user.Username,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"is_active":     user.IsActive,
	}).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user %q: %w", user.Username, err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	stmt := `SELECT ` + userColumns + ` FROM users WHERE username = @username`

	user, err := scanUser(r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{"username": username}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("users", "username "+username, err)
		}
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return user, nil
}

// UpdatePasswordAndRotateToken stores the new hash and replaces the user's
// token with newKey in one transaction.
func (r *UserRepository) UpdatePasswordAndRotateToken(ctx context.Context, userID int64, passwordHash, newKey string) (*model.AuthToken, error) {
	var token model.AuthToken

	err := pgx.BeginFunc(ctx, r.server.DB.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET password_hash = @password_hash WHERE id = @id`,
			pgx.NamedArgs{"id": userID, "password_hash": passwordHash},
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound("users", fmt.Sprintf("user %d", userID), pgx.ErrNoRows)
		}

		return tx.QueryRow(ctx, upsertTokenStmt, pgx.NamedArgs{"key": newKey, "user_id": userID}).
			Scan(&token.Key, &token.UserID, &token.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to change password of user %d: %w", userID, err)
	}
	return &token, nil
}
