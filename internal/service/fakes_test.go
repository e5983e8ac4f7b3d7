package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EugeneTurkin/fav-movies/internal/kinopoisk"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/queue"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
)

// memProfiles mirrors the profile/password_credential tables.
type memProfiles struct {
	mu    sync.Mutex
	next  int64
	byID  map[int64]model.Profile
	creds map[int64]model.PasswordCredential
}

func newMemProfiles() *memProfiles {
	return &memProfiles{byID: map[int64]model.Profile{}, creds: map[int64]model.PasswordCredential{}}
}

func (s *memProfiles) CreateWithCredential(_ context.Context, p *model.Profile, cred model.PasswordCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Name == p.Name {
			return fmt.Errorf("insert profile: %w", repository.ErrDuplicateKey)
		}
	}
	s.next++
	p.ID = s.next
	p.CreatedAt = time.Now().UTC()
	cred.ProfileID = p.ID
	s.byID[p.ID] = *p
	s.creds[p.ID] = cred
	return nil
}

func (s *memProfiles) GetWithCredentialByName(_ context.Context, name string) (*model.Profile, *model.PasswordCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.byID {
		if p.Name == name {
			p := p
			c := s.creds[id]
			return &p, &c, nil
		}
	}
	return nil, nil, repository.ErrNotFound
}

func (s *memProfiles) GetByID(_ context.Context, id int64) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// memMovies is an insert-only movie table.
type memMovies struct {
	mu      sync.Mutex
	rows    map[int64]model.Movie
	inserts int
}

func newMemMovies() *memMovies { return &memMovies{rows: map[int64]model.Movie{}} }

func (s *memMovies) Get(_ context.Context, id int64) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *memMovies) Insert(_ context.Context, m *model.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if _, ok := s.rows[m.ExternalID]; ok {
		return fmt.Errorf("insert movie: %w", repository.ErrDuplicateKey)
	}
	s.rows[m.ExternalID] = *m
	return nil
}

func (s *memMovies) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rows[id]
	return ok
}

// fakeUpstream counts calls and answers from a table of bodies/statuses.
type fakeUpstream struct {
	mu          sync.Mutex
	films       map[int64]string
	status      int   // non-zero forces a StatusError
	err         error // forces a transport error
	gate        chan struct{}
	filmCalls   int
	searchCalls int
}

func newFakeUpstream() *fakeUpstream { return &fakeUpstream{films: map[int64]string{}} }

func (u *fakeUpstream) FilmByID(_ context.Context, id int64) ([]byte, error) {
	u.mu.Lock()
	u.filmCalls++
	gate := u.gate
	u.mu.Unlock()
	if gate != nil {
		<-gate
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	if u.status != 0 {
		return nil, &kinopoisk.StatusError{StatusCode: u.status, Endpoint: "film"}
	}
	body, ok := u.films[id]
	if !ok {
		return nil, &kinopoisk.StatusError{StatusCode: 404, Endpoint: "film"}
	}
	return []byte(body), nil
}

func (u *fakeUpstream) SearchByKeyword(_ context.Context, keyword string) ([]byte, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.searchCalls++
	if u.err != nil {
		return nil, u.err
	}
	if u.status != 0 {
		return nil, &kinopoisk.StatusError{StatusCode: u.status, Endpoint: "search"}
	}
	return []byte(fmt.Sprintf(`{"keyword":%q,"films":[]}`, keyword)), nil
}

func (u *fakeUpstream) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.filmCalls
}

// memFavorites enforces the unique pair and the movie foreign key.
type memFavorites struct {
	mu     sync.Mutex
	movies *memMovies
	next   int64
	rows   []model.Favorite
}

func newMemFavorites(movies *memMovies) *memFavorites { return &memFavorites{movies: movies} }

func (s *memFavorites) Insert(_ context.Context, profileID, movieID int64) (*model.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.rows {
		if f.ProfileID == profileID && f.MovieID == movieID {
			return nil, fmt.Errorf("insert favorite: %w", repository.ErrDuplicateKey)
		}
	}
	if !s.movies.has(movieID) {
		return nil, fmt.Errorf("insert favorite: %w", repository.ErrForeignKey)
	}
	s.next++
	f := model.Favorite{ID: s.next, ProfileID: profileID, MovieID: movieID}
	s.rows = append(s.rows, f)
	return &f, nil
}

func (s *memFavorites) Delete(_ context.Context, profileID, movieID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.rows {
		if f.ProfileID == profileID && f.MovieID == movieID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memFavorites) ListMovies(ctx context.Context, profileID int64) ([]model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Movie{}
	for _, f := range s.rows {
		if f.ProfileID != profileID {
			continue
		}
		m, err := s.movies.Get(ctx, f.MovieID)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, nil
}

// recordingPublisher keeps published events and can be made to fail.
type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.FavoriteEvent
	fail   bool
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.FavoriteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.events = append(p.events, ev)
	return nil
}
