package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

const movieKeyPrefix = "movie:"

// blobCache is the subset of Redis the movie tier needs.
type blobCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetNX(ctx context.Context, key string, value []byte) error
}

type redisBlobCache struct{ c *redis.Client }

func (r redisBlobCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetNX without expiry: a cached payload is as immutable as the row.
func (r redisBlobCache) SetNX(ctx context.Context, key string, value []byte) error {
	return r.c.SetNX(ctx, key, value, 0).Err()
}

// movieStore is satisfied by *MovieRepo.
type movieStore interface {
	Get(ctx context.Context, externalID int64) (*model.Movie, error)
	Insert(ctx context.Context, m *model.Movie) error
}

// CachedMovieRepo puts Redis in front of the movie table. MySQL stays the
// source of truth; Redis failures are logged and the call falls through.
type CachedMovieRepo struct {
	db    movieStore
	cache blobCache
	log   logrus.FieldLogger
}

// NewCachedMovieRepo wraps db with the given Redis client. A nil client
// returns a repo that only talks to MySQL.
func NewCachedMovieRepo(db *MovieRepo, rdb *redis.Client, log logrus.FieldLogger) *CachedMovieRepo {
	r := &CachedMovieRepo{db: db, log: log}
	if rdb != nil {
		r.cache = redisBlobCache{c: rdb}
	}
	return r
}

func movieKey(id int64) string { return movieKeyPrefix + strconv.FormatInt(id, 10) }

// Get checks Redis first, then MySQL, filling Redis on a database hit.
func (r *CachedMovieRepo) Get(ctx context.Context, externalID int64) (*model.Movie, error) {
	if r.cache != nil {
		b, ok, err := r.cache.Get(ctx, movieKey(externalID))
		switch {
		case err != nil:
			r.log.WithError(err).WithField("movie_id", externalID).Warn("redis get movie failed")
		case ok:
			return &model.Movie{ExternalID: externalID, Payload: json.RawMessage(b)}, nil
		}
	}
	m, err := r.db.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	r.fill(ctx, m)
	return m, nil
}

// Insert writes to MySQL and, once the row exists, to Redis.
func (r *CachedMovieRepo) Insert(ctx context.Context, m *model.Movie) error {
	if err := r.db.Insert(ctx, m); err != nil {
		return err
	}
	r.fill(ctx, m)
	return nil
}

func (r *CachedMovieRepo) fill(ctx context.Context, m *model.Movie) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetNX(ctx, movieKey(m.ExternalID), m.Payload); err != nil {
		r.log.WithError(fmt.Errorf("setnx %s: %w", movieKey(m.ExternalID), err)).Warn("redis fill movie failed")
	}
}
