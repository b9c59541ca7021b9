package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/jackc/pgx/v5"
)

type TokenRepository struct {
	server *server.Server
}

func NewTokenRepository(s *server.Server) *TokenRepository {
	return &TokenRepository{server: s}
}

// upsertTokenStmt replaces the token of a user.
const upsertTokenStmt = `
	INSERT INTO auth_tokens (key, user_id)
	VALUES (@key, @user_id)
	ON CONFLICT (user_id) DO UPDATE SET key = EXCLUDED.key, created_at = now()
	RETURNING key, user_id, created_at
`

// GetOrCreate returns the existing token of userID, or stores newKey.
func (r *TokenRepository) GetOrCreate(ctx context.Context, userID int64, newKey string) (*model.AuthToken, error) {
	stmt := `
		INSERT INTO auth_tokens (key, user_id)
		VALUES (@key, @user_id)
		ON CONFLICT (user_id) DO UPDATE SET user_id = auth_tokens.user_id
		RETURNING key, user_id, created_at
	`

	var token model.AuthToken
	err := r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{"key": newKey, "user_id": userID}).
		Scan(&token.Key, &token.UserID, &token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create token of user %d: %w", userID, err)
	}
	return &token, nil
}

// GetUser resolves a token key to its user.
func (r *TokenRepository) GetUser(ctx context.Context, key string) (*model.User, error) {
	stmt := `
		SELECT u.id, u.username, u.email, u.password_hash, u.is_active, u.created_at
		FROM auth_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.key = @key
	`

	user, err := scanUser(r.server.DB.Pool.QueryRow(ctx, stmt, pgx.NamedArgs{"key": key}))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("auth_tokens", "token", err)
		}
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}
	return user, nil
}

// DeleteForUser removes the token of userID, if any.
func (r *TokenRepository) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := r.server.DB.Pool.Exec(ctx, `DELETE FROM auth_tokens WHERE user_id = @user_id`, pgx.NamedArgs{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete token of user %d: %w", userID, err)
	}
	return nil
}
