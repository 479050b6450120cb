package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/medisync/internal/middleware"
	loggingmw "github.com/Skotchmaster/medisync/pkg/middleware/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	AuthHandler    *AuthHTTP
	Gate           *middleware.Gate
	DB             Pinger
	Logger         *slog.Logger
	AllowedOrigins []string
}

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e.Use(
		ecM.Recover(),
		ecM.RequestID(),
		loggingmw.RequestLogger(logger),
		ecM.Secure(),
		ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins:     origins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}),
		ecM.BodyLimit("10M"),
	)

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "MediSync Backend is Running!")
	})
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/health/ready", func(c echo.Context) error {
		if err := d.DB.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Database not connected!").SetInternal(err)
		}
		return c.NoContent(http.StatusNoContent)
	})
	e.GET("/test-db", func(c echo.Context) error {
		if err := d.DB.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Database not connected!").SetInternal(err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "Database connected successfully!"})
	})

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)

	requireAuth := d.Gate.RequireAuth()
	auth.POST("/logout", d.AuthHandler.Logout, requireAuth)
	auth.GET("/me", d.AuthHandler.Me, requireAuth)
}
