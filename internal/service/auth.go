package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/sqlerr"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the persistence of staff users.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdatePasswordAndRotateToken(ctx context.Context, userID int64, passwordHash, newKey string) (*model.AuthToken, error)
}

// TokenStore is the persistence of auth tokens.
type TokenStore interface {
	GetOrCreate(ctx context.Context, userID int64, newKey string) (*model.AuthToken, error)
	GetUser(ctx context.Context, key string) (*model.User, error)
	DeleteForUser(ctx context.Context, userID int64) error
}

const (
	MsgInvalidCredentials = "Invalid credentials or inactive user"
	MsgInvalidToken       = "Invalid token."
	MsgInactiveUser       = "User inactive or deleted."
	MsgIncorrectPassword  = "Incorrect old password"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type AuthService struct {
	logger            *zerolog.Logger
	users             UserStore
	tokens            TokenStore
	minPasswordLength int
	cost              int

	// dummyHash is compared against when the user does not exist, so a
	// miss costs as much as a wrong password.
	dummyHash []byte
}

func NewAuthService(logger *zerolog.Logger, users UserStore, tokens TokenStore, minPasswordLength int) *AuthService {
	return newAuthService(logger, users, tokens, minPasswordLength, bcrypt.DefaultCost)
}

func newAuthService(logger *zerolog.Logger, users UserStore, tokens TokenStore, minPasswordLength, cost int) *AuthService {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("lead-intake"), cost)
	return &AuthService{
		logger:            logger,
		users:             users,
		tokens:            tokens,
		minPasswordLength: minPasswordLength,
		cost:              cost,
		dummyHash:         dummy,
	}
}

// GenerateKey returns a random 40 character hex token key.
func GenerateKey() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Login checks the credentials and returns the user's token, creating it
// on first login.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*LoginResult, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if !sqlerr.IsNotFound(err) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return nil, errs.NewUnauthorizedError(MsgInvalidCredentials, true)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil || !user.IsActive {
		s.logger.Info().Str("username", req.Username).Msg("failed login attempt")
		return nil, errs.NewUnauthorizedError(MsgInvalidCredentials, true)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetOrCreate(ctx, user.ID, key)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token.Key,
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, nil
}

// Logout deletes the caller's token.
func (s *AuthService) Logout(ctx context.Context, user *model.User) error {
	return s.tokens.DeleteForUser(ctx, user.ID)
}

// ChangePassword verifies the old password, stores the new one and
// rotates the token. It returns the new token key.
func (s *AuthService) ChangePassword(ctx context.Context, user *model.User, req *model.ChangePasswordRequest) (string, error) {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return "", errs.NewBadRequestError(MsgIncorrectPassword, true, nil, nil, nil)
	}

	if err := s.checkPasswordLength(req.NewPassword); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return "", err
	}

	token, err := s.users.UpdatePasswordAndRotateToken(ctx, user.ID, string(hash), key)
	if err != nil {
		return "", err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("password changed, token rotated")
	return token.Key, nil
}

func (s *AuthService) checkPasswordLength(password string) error {
	if len([]rune(password)) < s.minPasswordLength {
		return errs.NewBadRequestError(
			fmt.Sprintf("New password must be at least %d characters long", s.minPasswordLength),
			true, nil, nil, nil,
		)
	}
	return nil
}

// Authenticate resolves a token key to an active user.
func (s *AuthService) Authenticate(ctx context.Context, key string) (*model.User, error) {
	user, err := s.tokens.GetUser(ctx, key)
	if err != nil {
		if sqlerr.IsNotFound(err) {
			return nil, errs.NewUnauthorizedError(MsgInvalidToken, true)
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, errs.NewUnauthorizedError(MsgInactiveUser, true)
	}
	return user, nil
}

// CreateUser registers an active staff user.
func (s *AuthService) CreateUser(ctx context.Context, username, email, password string) (*model.User, error) {
	if username == "" {
		return nil, errs.NewBadRequestError("Username is required", true, nil, nil, nil)
	}
	if err := s.checkPasswordLength(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
