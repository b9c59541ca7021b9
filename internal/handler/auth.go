package handler

import (
	"github.com/deppfellow/lead-intake/internal/errs"
	"github.com/deppfellow/lead-intake/internal/middleware"
	"github.com/deppfellow/lead-intake/internal/model"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/service"
	"github.com/labstack/echo/v4"
)

const (
	MsgLoggedOut       = "Successfully logged out"
	MsgPasswordChanged = "Password changed successfully"
)

type ChangePasswordResponse struct {
	Message  string `json:"message"`
	NewToken string `json:"new_token"`
}

type AuthHandler struct {
	Handler
	auth *service.AuthService
}

func NewAuthHandler(s *server.Server, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		Handler: NewHandler(s),
		auth:    auth,
	}
}

func (h *AuthHandler) Login(c echo.Context, req *model.LoginRequest) (*service.LoginResult, error) {
	return h.auth.Login(c.Request().Context(), req)
}

func (h *AuthHandler) Logout(c echo.Context, _ *model.EmptyRequest) (*MessageResponse, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}

	if err := h.auth.Logout(c.Request().Context(), user); err != nil {
		return nil, err
	}
	return &MessageResponse{Message: MsgLoggedOut}, nil
}

func (h *AuthHandler) ChangePassword(c echo.Context, req *model.ChangePasswordRequest) (*ChangePasswordResponse, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}

	key, err := h.auth.ChangePassword(c.Request().Context(), user, req)
	if err != nil {
		return nil, err
	}
	return &ChangePasswordResponse{Message: MsgPasswordChanged, NewToken: key}, nil
}

func currentUser(c echo.Context) (*model.User, error) {
	user := middleware.GetUser(c)
	if user == nil {
		return nil, errs.NewUnauthorizedError(middleware.MsgCredentialsMissing, true)
	}
	return user, nil
}
