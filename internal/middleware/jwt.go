package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// Authenticator resolves a raw bearer token into a live profile.
// *service.AuthGate implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.Profile, error)
}

const bearerPrefix = "Bearer "

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token owner's profile into the request context. Failures are
// returned as apperr values and rendered by the HTTP error handler:
// NotAuthenticated without a bearer, ExpiredToken or InvalidToken from
// verification, ProfileNotFound when the profile is gone.
func JWTAuth(gate Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, bearerPrefix) {
				return apperr.New(apperr.ErrNotAuthenticated, nil)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
			if raw == "" {
				return apperr.New(apperr.ErrNotAuthenticated, nil)
			}

			p, err := gate.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			SetProfile(c, p)
			return next(c)
		}
	}
}
