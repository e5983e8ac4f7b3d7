package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/queue"
)

// EventPublisher delivers favorite events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.FavoriteEvent) error
}

// Favorites composes the movie cache and the ledger into the operations
// exposed to users.
type Favorites struct {
	movies *MovieCache
	ledger *FavoriteLedger
	events EventPublisher
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewFavorites wires the flow. events may be nil to disable publishing.
func NewFavorites(movies *MovieCache, ledger *FavoriteLedger, events EventPublisher, log logrus.FieldLogger) *Favorites {
	return &Favorites{movies: movies, ledger: ledger, events: events, log: log, now: time.Now}
}

// Add resolves externalID and links it to the profile. A resolve failure
// links nothing; a link failure leaves the movie cached.
func (f *Favorites) Add(ctx context.Context, profileID, externalID int64) (*model.Movie, error) {
	m, err := f.movies.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if _, err := f.ledger.Link(ctx, profileID, m.ExternalID); err != nil {
		return nil, err
	}
	f.publish(ctx, queue.EventFavoriteAdded, profileID, m.ExternalID)
	return m, nil
}

// Remove unlinks externalID from the profile.
func (f *Favorites) Remove(ctx context.Context, profileID, externalID int64) error {
	if err := f.ledger.Unlink(ctx, profileID, externalID); err != nil {
		return err
	}
	f.publish(ctx, queue.EventFavoriteRemoved, profileID, externalID)
	return nil
}

// List returns the profile's favorite movies.
func (f *Favorites) List(ctx context.Context, profileID int64) ([]model.Movie, error) {
	return f.ledger.List(ctx, profileID)
}

func (f *Favorites) publish(ctx context.Context, typ queue.EventType, profileID, movieID int64) {
	if f.events == nil {
		return
	}
	ev := queue.FavoriteEvent{Type: typ, ProfileID: profileID, MovieID: movieID, OccurredAt: f.now().UTC()}
	if err := f.events.Publish(ctx, ev); err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"event":      typ,
			"profile_id": profileID,
			"movie_id":   movieID,
		}).Warn("publish favorite event failed")
	}
}
