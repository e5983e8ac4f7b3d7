package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/kinopoisk"
	"github.com/EugeneTurkin/fav-movies/internal/metrics"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
)

// resolveTimeout bounds a shared first resolution, which no single request
// context owns.
const resolveTimeout = 30 * time.Second

// MovieStore is the insert-only movie table, optionally fronted by Redis.
type MovieStore interface {
	Get(ctx context.Context, externalID int64) (*model.Movie, error)
	Insert(ctx context.Context, m *model.Movie) error
}

// MovieUpstream is the remote movie provider. *kinopoisk.Client
// implements it.
type MovieUpstream interface {
	FilmByID(ctx context.Context, id int64) ([]byte, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]byte, error)
}

// MovieCache resolves movies from the local store, fetching and storing
// them from upstream on first reference. Stored movies are never refreshed.
type MovieCache struct {
	store    MovieStore
	upstream MovieUpstream
	log      logrus.FieldLogger
	flight   singleflight.Group
}

// NewMovieCache wires a MovieCache.
func NewMovieCache(store MovieStore, upstream MovieUpstream, log logrus.FieldLogger) *MovieCache {
	return &MovieCache{store: store, upstream: upstream, log: log}
}

// Resolve returns the movie for externalID. Concurrent misses for the same
// id share one upstream call.
func (c *MovieCache) Resolve(ctx context.Context, externalID int64) (*model.Movie, error) {
	m, err := c.store.Get(ctx, externalID)
	if err == nil {
		metrics.RecordMovieLookup("hit")
		return m, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		metrics.RecordMovieLookup("error")
		return nil, fmt.Errorf("load movie %d: %w", externalID, err)
	}

	metrics.RecordMovieLookup("miss")
	// The shared fetch is detached from the caller that started it, so one
	// cancelled request cannot fail the others waiting on the same id.
	ch := c.flight.DoChan(strconv.FormatInt(externalID, 10), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()
		return c.fetchAndStore(fctx, externalID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.log.WithField("movie_id", externalID).Debug("shared in-flight resolve")
		}
		return res.Val.(*model.Movie), nil
	}
}

func (c *MovieCache) fetchAndStore(ctx context.Context, externalID int64) (*model.Movie, error) {
	body, err := c.upstream.FilmByID(ctx, externalID)
	if err != nil {
		return nil, upstreamError(err)
	}

	var doc struct {
		KinopoiskID int64 `json:"kinopoiskId"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.KinopoiskID == 0 {
		return nil, apperr.Newf(apperr.ErrUpstreamProtocol, "film %d: response has no kinopoiskId", externalID)
	}
	if doc.KinopoiskID != externalID {
		c.log.WithFields(logrus.Fields{
			"requested": externalID,
			"returned":  doc.KinopoiskID,
		}).Warn("upstream returned a different film id")
	}

	m := &model.Movie{ExternalID: doc.KinopoiskID, Payload: json.RawMessage(body)}
	if err := c.store.Insert(ctx, m); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("store movie %d: %w", m.ExternalID, err)
		}
		// Another process stored it first; its row is the one that counts.
		stored, gerr := c.store.Get(ctx, m.ExternalID)
		if gerr != nil {
			return nil, fmt.Errorf("reload movie %d: %w", m.ExternalID, gerr)
		}
		return stored, nil
	}
	c.log.WithField("movie_id", m.ExternalID).Info("movie cached")
	return m, nil
}

// SearchByKeyword forwards the query upstream. Results are not stored.
func (c *MovieCache) SearchByKeyword(ctx context.Context, keyword string) (json.RawMessage, error) {
	body, err := c.upstream.SearchByKeyword(ctx, keyword)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, upstreamError(err)
	}
	if !json.Valid(body) {
		return nil, apperr.Newf(apperr.ErrUpstreamProtocol, "search response is not JSON")
	}
	return json.RawMessage(body), nil
}

// upstreamError maps a client failure onto the upstream kinds. 401 and
// transport failures, including the fetch timing out, mean the provider
// cannot be used at all; any other status means it answered something we
// cannot handle.
func upstreamError(err error) error {
	var se *kinopoisk.StatusError
	switch {
	case kinopoisk.IsUnauthorized(err):
		return apperr.New(apperr.ErrUpstreamUnavailable, err)
	case errors.As(err, &se):
		return apperr.New(apperr.ErrUpstreamProtocol, err)
	default:
		return apperr.New(apperr.ErrUpstreamUnavailable, err)
	}
}
