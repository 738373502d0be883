package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/logging"
	"github.com/octobees/provider-directory/internal/service"
)

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
	expiresIn   int
}

// NewAuthHandler constructs an AuthHandler. tokenTTLSeconds is reported to clients.
func NewAuthHandler(authService *service.AuthService, tokenTTLSeconds int) *AuthHandler {
	return &AuthHandler{authService: authService, expiresIn: tokenTTLSeconds}
}

// Login handles POST /auth/login requests.
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req = req.Normalize()
	if !req.Complete() {
		return Error(c, http.StatusBadRequest, "email and password are required")
	}

	token, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return Error(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrAdminDisabled):
			return Error(c, http.StatusServiceUnavailable, "admin login is not configured")
		}
		logging.FromContext(c.Request().Context()).Error().Err(err).Msg("login failed")
		return Error(c, http.StatusInternalServerError, "unable to authenticate")
	}

	return Success(c, http.StatusOK, "login successful", dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   h.expiresIn,
	})
}
