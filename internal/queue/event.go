// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import "time"

// DefaultQueueName is the durable queue favorite events are routed to.
const DefaultQueueName = "favorites.events"

// EventType distinguishes favorite list changes.
type EventType string

const (
	EventFavoriteAdded   EventType = "favorite.added"
	EventFavoriteRemoved EventType = "favorite.removed"
)

// FavoriteEvent is published after a favorite link is created or removed.
// It carries ids only; consumers that need movie data read it from the
// movie store, which never changes once written.
type FavoriteEvent struct {
	Type       EventType `json:"type"`
	ProfileID  int64     `json:"profile_id"`
	MovieID    int64     `json:"movie_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
