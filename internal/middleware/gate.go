package middleware

import (
	"errors"
	"fmt"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/medisync/pkg/logging"
	"github.com/Skotchmaster/medisync/pkg/revocation"
	"github.com/Skotchmaster/medisync/pkg/tokens"
)

// ContextKey is where the gate stores the *Identity of an authorized request.
const ContextKey = "user"

var (
	errRevoked       = errors.New("token revoked")
	errRegistryCheck = errors.New("revocation check failed")
)

type Identity struct {
	*tokens.Claims
	Token string
}

// IdentityFrom returns the identity attached by the gate, or nil on routes
// the gate does not guard.
func IdentityFrom(c echo.Context) *Identity {
	id, _ := c.Get(ContextKey).(*Identity)
	return id
}

type Gate struct {
	Codec   *tokens.Codec
	Revoked revocation.Registry
}

func NewGate(codec *tokens.Codec, revoked revocation.Registry) *Gate {
	return &Gate{Codec: codec, Revoked: revoked}
}

// RequireAuth accepts "Authorization: Bearer <access token>" and rejects
// missing, malformed, revoked, refresh, forged and expired tokens with 401.
func (g *Gate) RequireAuth() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:     ContextKey,
		TokenLookup:    "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: g.parse,
		ErrorHandler:   g.reject,
	})
}

func (g *Gate) parse(c echo.Context, auth string) (interface{}, error) {
	revoked, err := g.Revoked.IsRevoked(c.Request().Context(), auth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errRegistryCheck, err)
	}
	if revoked {
		return nil, errRevoked
	}

	claims, err := g.Codec.VerifyKind(auth, tokens.KindAccess)
	if err != nil {
		return nil, err
	}
	return &Identity{Claims: claims, Token: auth}, nil
}

func (g *Gate) reject(c echo.Context, err error) error {
	l := logging.FromContext(c.Request().Context()).With("mw", "auth_gate")

	var parseErr *echojwt.TokenParsingError
	if !errors.As(err, &parseErr) {
		if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
			l.Warn("auth_rejected", "status", 401, "reason", "no token")
			return echo.NewHTTPError(http.StatusUnauthorized, "no token")
		}
		l.Warn("auth_rejected", "status", 401, "reason", "malformed authorization header")
		return echo.NewHTTPError(http.StatusUnauthorized, "malformed")
	}

	switch {
	case errors.Is(err, errRegistryCheck):
		l.Error("auth_rejected", "status", 500, "reason", "cannot check revocation", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	case errors.Is(err, errRevoked):
		l.Warn("auth_rejected", "status", 401, "reason", "revoked")
		return echo.NewHTTPError(http.StatusUnauthorized, "revoked")
	default:
		l.Warn("auth_rejected", "status", 401, "reason", "invalid or expired", "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired")
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := IdentityFrom(c)
			if id == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "no token")
			}
			for _, r := range roles {
				if id.Role == r {
					return next(c)
				}
			}
			logging.FromContext(c.Request().Context()).Warn("access_denied",
				"status", 403, "reason", "role not allowed", "role", id.Role, "user_id", id.UserID)
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}
	}
}
