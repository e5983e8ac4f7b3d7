package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// MovieRepo stores upstream movie payloads keyed by their external id.
// Rows are only ever inserted; there is no update or delete.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the provided DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo {
	return &MovieRepo{db: db}
}

// Get returns the stored movie or ErrNotFound.
func (r *MovieRepo) Get(ctx context.Context, externalID int64) (*model.Movie, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, "SELECT payload FROM movie WHERE external_id = ?", externalID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select movie: %w", err)
	}
	return &model.Movie{ExternalID: externalID, Payload: json.RawMessage(payload)}, nil
}

// Insert stores m. A row already present under the same id yields
// ErrDuplicateKey; the existing row is left as is.
func (r *MovieRepo) Insert(ctx context.Context, m *model.Movie) error {
	_, err := r.db.ExecContext(ctx, "INSERT INTO movie (external_id, payload) VALUES (?, ?)", m.ExternalID, []byte(m.Payload))
	if err != nil {
		return fmt.Errorf("insert movie: %w", translate(err))
	}
	return nil
}
