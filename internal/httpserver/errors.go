package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/medisync/internal/service"
	"github.com/Skotchmaster/medisync/internal/transport"
	"github.com/Skotchmaster/medisync/pkg/logging"
)

const genericServerError = "Something went wrong. Please try again later."

// ErrorHandler renders every error as {"error": ...}. The message of a 500
// never reaches the client; the cause is logged instead.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := &echo.HTTPError{Code: http.StatusInternalServerError}
	if !errors.As(err, &he) {
		he = &echo.HTTPError{Code: http.StatusInternalServerError, Internal: err}
	}

	var body transport.ErrorResponse
	switch m := he.Message.(type) {
	case transport.ErrorResponse:
		body = m
	case string:
		body = transport.ErrorResponse{Error: m}
	case nil:
		body = transport.ErrorResponse{Error: http.StatusText(he.Code)}
	default:
		body = transport.ErrorResponse{Error: fmt.Sprint(m)}
	}

	switch {
	case errors.Is(err, echo.ErrNotFound):
		body = transport.ErrorResponse{Error: "Route not found"}
	case he.Code == http.StatusInternalServerError:
		logging.FromContext(c.Request().Context()).Error("unhandled_error",
			"status", he.Code, "error", err)
		body = transport.ErrorResponse{Error: genericServerError}
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(he.Code)
	} else {
		werr = c.JSON(he.Code, body)
	}
	if werr != nil {
		logging.FromContext(c.Request().Context()).Error("error_response_failed", "error", werr)
	}
}

// mapServiceError turns a session error into the response the client sees.
func mapServiceError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, transport.ErrorResponse{
			Error: "Validation failed", Details: err.Error(),
		})
	case errors.Is(err, service.ErrDuplicateEmail):
		return echo.NewHTTPError(http.StatusConflict, "Email already exists!")
	case errors.Is(err, service.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password!")
	case errors.Is(err, service.ErrInvalidToken):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token.")
	case errors.Is(err, service.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found.")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}
