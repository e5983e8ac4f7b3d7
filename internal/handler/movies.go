package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/EugeneTurkin/fav-movies/internal/middleware"
	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// FavoritesService is the favorites flow.
type FavoritesService interface {
	Add(ctx context.Context, profileID, externalID int64) (*model.Movie, error)
	Remove(ctx context.Context, profileID, externalID int64) error
	List(ctx context.Context, profileID int64) ([]model.Movie, error)
}

// MovieLookup reads movie data through the cache.
type MovieLookup interface {
	Resolve(ctx context.Context, externalID int64) (*model.Movie, error)
	SearchByKeyword(ctx context.Context, keyword string) (json.RawMessage, error)
}

// MovieHandler serves the /movies endpoints. All of them require JWTAuth.
type MovieHandler struct {
	favorites FavoritesService
	movies    MovieLookup
}

func NewMovieHandler(favorites FavoritesService, movies MovieLookup) *MovieHandler {
	return &MovieHandler{favorites: favorites, movies: movies}
}

type movieData struct {
	Data json.RawMessage `json:"data"`
}

type moviesResp struct {
	Movies []movieData `json:"movies"`
}

type addFavoriteReq struct {
	ID *int64 `json:"id"`
}

// ListFavorites: GET /movies/favorites
func (h *MovieHandler) ListFavorites(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	movies, err := h.favorites.List(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	resp := moviesResp{Movies: make([]movieData, 0, len(movies))}
	for _, m := range movies {
		resp.Movies = append(resp.Movies, movieData{Data: m.Payload})
	}
	return c.JSON(http.StatusOK, resp)
}

// AddFavorite: POST /movies/favorites {"id": <kinopoisk id>}
func (h *MovieHandler) AddFavorite(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	var req addFavoriteReq
	if err := c.Bind(&req); err != nil {
		return invalid("body must be a JSON object with an integer id")
	}
	if req.ID == nil || *req.ID <= 0 {
		return invalid("id must be a positive integer")
	}
	m, err := h.favorites.Add(c.Request().Context(), p.ID, *req.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, movieData{Data: m.Payload})
}

// RemoveFavorite: DELETE /movies/favorites/:kinopoisk_id
func (h *MovieHandler) RemoveFavorite(c echo.Context) error {
	p, err := profile(c)
	if err != nil {
		return err
	}
	id, err := kinopoiskID(c)
	if err != nil {
		return err
	}
	if err := h.favorites.Remove(c.Request().Context(), p.ID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Search: GET /movies/search?keyword=
func (h *MovieHandler) Search(c echo.Context) error {
	keyword := strings.TrimSpace(c.QueryParam("keyword"))
	if keyword == "" {
		return invalid("keyword query parameter is required")
	}
	res, err := h.movies.SearchByKeyword(c.Request().Context(), keyword)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, movieData{Data: res})
}

// ByID: GET /movies/:kinopoisk_id
func (h *MovieHandler) ByID(c echo.Context) error {
	id, err := kinopoiskID(c)
	if err != nil {
		return err
	}
	m, err := h.movies.Resolve(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, movieData{Data: m.Payload})
}

func profile(c echo.Context) (*model.Profile, error) {
	p, ok := middleware.CurrentProfile(c)
	if !ok {
		return nil, echo.ErrUnauthorized
	}
	return p, nil
}

func kinopoiskID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("kinopoisk_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("kinopoisk_id must be a positive integer")
	}
	return id, nil
}
