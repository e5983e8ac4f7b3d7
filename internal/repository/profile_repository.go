package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

// ProfileRepo reads and writes the profile and password_credential tables.
type ProfileRepo struct {
	db *sql.DB
}

// NewProfileRepo constructs a ProfileRepo with the provided DB handle.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// CreateWithCredential inserts the profile row and its credential in one
// transaction. A taken name yields ErrDuplicateKey and nothing is written.
// On success p.ID and p.CreatedAt are filled in.
func (r *ProfileRepo) CreateWithCredential(ctx context.Context, p *model.Profile, cred model.PasswordCredential) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "INSERT INTO profile (name) VALUES (?)", p.Name)
	if err != nil {
		return fmt.Errorf("insert profile: %w", translate(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("profile id: %w", err)
	}

	const qCred = "INSERT INTO password_credential (profile_id, algorithm, salt, hash_value) VALUES (?, ?, ?, ?)"
	if _, err = tx.ExecContext(ctx, qCred, id, string(cred.Algorithm), cred.Salt, cred.HashValue); err != nil {
		return fmt.Errorf("insert credential: %w", translate(err))
	}

	// Read back the server-assigned timestamp.
	if err = tx.QueryRowContext(ctx, "SELECT created_at FROM profile WHERE id = ?", id).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	p.ID = id
	return nil
}

// GetWithCredentialByName joins a profile with its credential by name.
// Returns ErrNotFound when no profile has that name.
func (r *ProfileRepo) GetWithCredentialByName(ctx context.Context, name string) (*model.Profile, *model.PasswordCredential, error) {
	const q = `SELECT p.id, p.name, p.created_at, c.algorithm, c.salt, c.hash_value
		FROM profile p
		JOIN password_credential c ON c.profile_id = p.id
		WHERE p.name = ?`
	var (
		p   model.Profile
		c   model.PasswordCredential
		alg string
	)
	err := r.db.QueryRowContext(ctx, q, name).Scan(&p.ID, &p.Name, &p.CreatedAt, &alg, &c.Salt, &c.HashValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("select profile by name: %w", err)
	}
	c.ProfileID = p.ID
	c.Algorithm = model.HashAlgorithm(alg)
	return &p, &c, nil
}

// GetByID fetches a profile by id or returns ErrNotFound.
func (r *ProfileRepo) GetByID(ctx context.Context, id int64) (*model.Profile, error) {
	var p model.Profile
	err := r.db.QueryRowContext(ctx, "SELECT id, name, created_at FROM profile WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return &p, nil
}
