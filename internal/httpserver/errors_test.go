package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/medisync/internal/service"
)

func TestMapServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "validation", err: fmt.Errorf("%w: role", service.ErrValidation), code: http.StatusBadRequest},
		{name: "duplicate", err: service.ErrDuplicateEmail, code: http.StatusConflict},
		{name: "credentials", err: service.ErrInvalidCredentials, code: http.StatusUnauthorized},
		{name: "token", err: service.ErrInvalidToken, code: http.StatusUnauthorized},
		{name: "user gone", err: service.ErrUserNotFound, code: http.StatusUnauthorized},
		{name: "store", err: fmt.Errorf("%w: connection refused", service.ErrStoreUnavailable), code: http.StatusInternalServerError},
		{name: "unknown", err: errors.New("boom"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.code, mapServiceError(tt.err).Code)
		})
	}
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	t.Parallel()

	e := echo.New()

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{
			name: "plain error",
			err:  errors.New(`pq: relation "users" does not exist`),
			code: http.StatusInternalServerError,
			body: `{"error":"` + genericServerError + `"}`,
		},
		{
			name: "http error with message",
			err:  echo.NewHTTPError(http.StatusUnauthorized, "revoked"),
			code: http.StatusUnauthorized,
			body: `{"error":"revoked"}`,
		},
		{
			name: "server error with message",
			err:  echo.NewHTTPError(http.StatusInternalServerError, "secret detail"),
			code: http.StatusInternalServerError,
			body: `{"error":"` + genericServerError + `"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.code, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}
