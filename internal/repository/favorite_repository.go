package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// FavoriteRepo manages the favorite association table.
type FavoriteRepo struct {
	db *sql.DB
}

// NewFavoriteRepo constructs a FavoriteRepo with the provided DB handle.
func NewFavoriteRepo(db *sql.DB) *FavoriteRepo {
	return &FavoriteRepo{db: db}
}

// Insert links a movie to a profile. The (profile_id, movie_id) unique key
// yields ErrDuplicateKey for a repeated pair and the movie foreign key
// yields ErrForeignKey for an unknown movie.
func (r *FavoriteRepo) Insert(ctx context.Context, profileID, movieID int64) (*model.Favorite, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO favorite (profile_id, movie_id) VALUES (?, ?)", profileID, movieID)
	if err != nil {
		return nil, fmt.Errorf("insert favorite: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("favorite id: %w", err)
	}
	return &model.Favorite{ID: id, ProfileID: profileID, MovieID: movieID}, nil
}

// Delete removes the pair and reports how many rows went away (0 or 1).
func (r *FavoriteRepo) Delete(ctx context.Context, profileID, movieID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM favorite WHERE profile_id = ? AND movie_id = ?", profileID, movieID)
	if err != nil {
		return 0, fmt.Errorf("delete favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListMovies returns the movies linked to profileID in insertion order.
func (r *FavoriteRepo) ListMovies(ctx context.Context, profileID int64) ([]model.Movie, error) {
	const q = `SELECT m.external_id, m.payload
		FROM favorite f
		JOIN movie m ON m.external_id = f.movie_id
		WHERE f.profile_id = ?
		ORDER BY f.id`
	rows, err := r.db.QueryContext(ctx, q, profileID)
	if err != nil {
		return nil, fmt.Errorf("select favorites: %w", err)
	}
	defer rows.Close()

	movies := make([]model.Movie, 0)
	for rows.Next() {
		var (
			m       model.Movie
			payload []byte
		)
		if err := rows.Scan(&m.ExternalID, &payload); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		m.Payload = json.RawMessage(payload)
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return movies, nil
}
