package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/labstack/echo/v4"
)

// Authenticator resolves a token key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*model.User, error)
}

// Authorization schemes accepted in the Authorization header.
var authSchemes = []string{"Token", "Bearer"}

const MsgCredentialsMissing = "Authentication credentials were not provided."

type AuthMiddleware struct {
	server        *server.Server
	authenticator Authenticator
}

func NewAuthMiddleware(s *server.Server, authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{
		server:        s,
		authenticator: authenticator,
	}
}

// RequireAuth accepts "Authorization: Token <key>" (or Bearer) and stores
// the user on the echo context.
func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, ok := tokenFromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return errs.NewUnauthorizedError(MsgCredentialsMissing, true)
		}

		user, err := auth.authenticator.Authenticate(c.Request().Context(), key)
		if err != nil {
			GetLogger(c).Warn().Err(err).Msg("token authentication failed")
			return err
		}

		userID := strconv.FormatInt(user.ID, 10)
		c.Set(UserKey, user)
		c.Set(UserIDKey, userID)
		setLogger(c, GetLogger(c).With().Str("user_id", userID).Logger())

		return next(c)
	}
}

func tokenFromHeader(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, " ") {
		return "", false
	}
	for _, s := range authSchemes {
		if strings.EqualFold(scheme, s) {
			return key, true
		}
	}
	return "", false
}

// GetUser returns the authenticated user, nil on public routes.
func GetUser(c echo.Context) *model.User {
	if u, ok := c.Get(UserKey).(*model.User); ok {
		return u
	}
	return nil
}
