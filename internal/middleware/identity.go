package middleware

// identity.go holds the context plumbing shared by the auth and rate limit
// middleware: where the authenticated profile is stored and how it is read
// back by handlers.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// profileKey is the echo context key under which JWTAuth stores the profile.
const profileKey = "profile"

// SetProfile stores the authenticated profile on the context.
func SetProfile(c echo.Context, p *model.Profile) { c.Set(profileKey, p) }

// CurrentProfile returns the profile stored by JWTAuth.
func CurrentProfile(c echo.Context) (*model.Profile, bool) {
	p, ok := c.Get(profileKey).(*model.Profile)
	return p, ok && p != nil
}

// subject identifies the caller for rate limiting. It returns "anon" when
// no profile is authenticated.
func subject(c echo.Context) string {
	if p, ok := CurrentProfile(c); ok {
		return strconv.FormatInt(p.ID, 10)
	}
	return "anon"
}
