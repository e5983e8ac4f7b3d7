// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/EugeneTurkin/fav-movies/internal/handler"
	"github.com/EugeneTurkin/fav-movies/internal/metrics"
)

// Deps groups what the route tree needs. Auth runs before RateLimit on
// protected groups so that buckets are keyed by profile.
type Deps struct {
	Health    echo.HandlerFunc
	Auth      *handler.AuthHandler
	Movies    *handler.MovieHandler
	JWT       echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers non-authenticated operational routes.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	// Used by load balancers and monitoring systems.
	e.GET("/healthz", health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterAuth registers the public credential endpoints and the protected
// profile endpoint.
func RegisterAuth(e *echo.Echo, d Deps) {
	e.POST("/register", d.Auth.Register, d.RateLimit)
	e.POST("/login", d.Auth.Login, d.RateLimit)

	e.GET("/profile", d.Auth.Profile, d.JWT, d.RateLimit)
}

// RegisterMovies registers /movies. Static segments (favorites, search)
// take precedence over the :kinopoisk_id parameter.
func RegisterMovies(e *echo.Echo, d Deps) {
	g := e.Group("/movies", d.JWT, d.RateLimit)
	g.GET("/favorites", d.Movies.ListFavorites)
	g.POST("/favorites", d.Movies.AddFavorite)
	g.DELETE("/favorites/:kinopoisk_id", d.Movies.RemoveFavorite)
	g.GET("/search", d.Movies.Search)
	g.GET("/:kinopoisk_id", d.Movies.ByID)
}

// Register wires the whole route tree.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d)
	RegisterMovies(e, d)
}
