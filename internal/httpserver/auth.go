package httpserver

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/medisync/internal/middleware"
	"github.com/Skotchmaster/medisync/internal/service"
	"github.com/Skotchmaster/medisync/internal/transport"
	"github.com/Skotchmaster/medisync/pkg/logging"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

func invalidPayload(err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{
			Error: "Validation failed", Details: verrs,
		})
	}
	return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
}

func authResponse(message string, sess *service.Session) transport.AuthResponse {
	return transport.AuthResponse{
		Message:      message,
		Token:        sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    sess.ExpiresIn(),
		User:         transport.NewUserView(sess.User),
	}
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req transport.RegisterRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Trim()
	if err := req.Validate(); err != nil {
		l.Warn("register_error", "status", 400, "reason", "validation failed", "error", err)
		return invalidPayload(err)
	}

	sess, err := h.Svc.Register(ctx, req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusCreated, authResponse("User registered successfully!", sess))
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req transport.LoginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Trim()
	if err := req.Validate(); err != nil {
		l.Warn("login_error", "status", 400, "reason", "validation failed", "error", err)
		return invalidPayload(err)
	}

	sess, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, authResponse("Login successful!", sess))
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req transport.RefreshRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("refresh_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := req.Validate(); err != nil {
		l.Warn("refresh_error", "status", 400, "reason", "refresh token is required")
		return echo.NewHTTPError(http.StatusBadRequest, "Refresh token is required.")
	}

	sess, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, authResponse("", sess))
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token")
	}

	if err := h.Svc.Logout(c.Request().Context(), id.Token, id.Claims); err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Logged out successfully."})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	id := middleware.IdentityFrom(c)
	if id == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "no token")
	}

	view := transport.IdentityView{
		ID:    id.UserID,
		Name:  id.Name,
		Email: id.Email,
		Role:  id.Role,
	}
	if id.ExpiresAt != nil {
		view.ExpiresAt = id.ExpiresAt.Time.UTC()
	}
	return c.JSON(http.StatusOK, view)
}
