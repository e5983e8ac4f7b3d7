package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/metrics"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
)

// FavoriteStore is the favorite association table.
type FavoriteStore interface {
	Insert(ctx context.Context, profileID, movieID int64) (*model.Favorite, error)
	Delete(ctx context.Context, profileID, movieID int64) (int64, error)
	ListMovies(ctx context.Context, profileID int64) ([]model.Movie, error)
}

// FavoriteLedger records which movies each profile has favorited. The
// (profile, movie) uniqueness is enforced by the store, never pre-checked.
type FavoriteLedger struct {
	store FavoriteStore
	log   logrus.FieldLogger
}

// NewFavoriteLedger wires a FavoriteLedger.
func NewFavoriteLedger(store FavoriteStore, log logrus.FieldLogger) *FavoriteLedger {
	return &FavoriteLedger{store: store, log: log}
}

// Link adds movieID to the profile's favorites.
func (l *FavoriteLedger) Link(ctx context.Context, profileID, movieID int64) (*model.Favorite, error) {
	f, err := l.store.Insert(ctx, profileID, movieID)
	switch {
	case err == nil:
		metrics.RecordFavoriteOperation("link", "ok")
		return f, nil
	case errors.Is(err, repository.ErrDuplicateKey):
		metrics.RecordFavoriteOperation("link", "duplicate")
		return nil, apperr.New(apperr.ErrFavoriteAlreadyExists, err)
	case isProfileFK(err):
		metrics.RecordFavoriteOperation("link", "missing_profile")
		return nil, apperr.New(apperr.ErrProfileNotFound, err)
	case errors.Is(err, repository.ErrForeignKey):
		metrics.RecordFavoriteOperation("link", "missing_movie")
		return nil, apperr.New(apperr.ErrMovieNotFound, err)
	default:
		metrics.RecordFavoriteOperation("link", "error")
		return nil, fmt.Errorf("link favorite: %w", err)
	}
}

// Unlink removes the pair. The delete is its own existence check, so two
// concurrent unlinks cannot both succeed.
func (l *FavoriteLedger) Unlink(ctx context.Context, profileID, movieID int64) error {
	n, err := l.store.Delete(ctx, profileID, movieID)
	if err != nil {
		metrics.RecordFavoriteOperation("unlink", "error")
		return fmt.Errorf("unlink favorite: %w", err)
	}
	if n == 0 {
		metrics.RecordFavoriteOperation("unlink", "not_found")
		return apperr.New(apperr.ErrFavoriteNotFound, nil)
	}
	metrics.RecordFavoriteOperation("unlink", "ok")
	return nil
}

// List returns the profile's favorite movies in storage order. No
// favorites is an empty slice, not an error.
func (l *FavoriteLedger) List(ctx context.Context, profileID int64) ([]model.Movie, error) {
	movies, err := l.store.ListMovies(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return movies, nil
}

func isProfileFK(err error) bool {
	var fk *repository.ForeignKeyError
	return errors.As(err, &fk) && fk.Constraint == repository.FavoriteProfileFK
}
