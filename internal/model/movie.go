package model

import "encoding/json"

// Movie is a cached upstream movie record from the `movie` table. The
// ExternalID is the identifier assigned by the upstream provider and the
// Payload is the provider's response body stored verbatim. Rows are written
// once and never updated.
type Movie struct {
	ExternalID int64           // movie.external_id
	Payload    json.RawMessage // movie.payload
}

// Favorite links a profile to a cached movie. The pair (ProfileID, MovieID)
// is unique.
type Favorite struct {
	ID        int64 // favorite.id
	ProfileID int64 // favorite.profile_id
	MovieID   int64 // favorite.movie_id
}
