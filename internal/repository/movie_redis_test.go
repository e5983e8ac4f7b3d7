package repository

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EugeneTurkin/fav-movies/internal/model"
)

type memBlobCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memBlobCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	b, ok := m.data[key]
	return b, ok, nil
}

func (m *memBlobCache) SetNX(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.data[key]; !ok {
		m.data[key] = value
	}
	return nil
}

type memMovieStore struct {
	rows    map[int64]model.Movie
	gets    int
	inserts int
}

func (s *memMovieStore) Get(_ context.Context, id int64) (*model.Movie, error) {
	s.gets++
	m, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (s *memMovieStore) Insert(_ context.Context, m *model.Movie) error {
	s.inserts++
	if _, ok := s.rows[m.ExternalID]; ok {
		return ErrDuplicateKey
	}
	s.rows[m.ExternalID] = *m
	return nil
}

func TestCachedMovieRepo_FillsAndServesFromRedis(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := &memMovieStore{rows: map[int64]model.Movie{}}
	cache := &memBlobCache{data: map[string][]byte{}}
	repo := &CachedMovieRepo{db: store, cache: cache, log: log}
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &model.Movie{ExternalID: 301, Payload: []byte(`{"kinopoiskId":301}`)}))
	assert.Contains(t, cache.data, "movie:301")

	m, err := repo.Get(ctx, 301)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kinopoiskId":301}`, string(m.Payload))
	assert.Zero(t, store.gets, "redis hit must not touch mysql")
}

func TestCachedMovieRepo_DuplicateInsertKeepsFirstPayload(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := &memMovieStore{rows: map[int64]model.Movie{}}
	cache := &memBlobCache{data: map[string][]byte{}}
	repo := &CachedMovieRepo{db: store, cache: cache, log: log}
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &model.Movie{ExternalID: 1, Payload: []byte(`{"v":1}`)}))
	err := repo.Insert(ctx, &model.Movie{ExternalID: 1, Payload: []byte(`{"v":2}`)})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.Equal(t, `{"v":1}`, string(cache.data["movie:1"]))
}

func TestCachedMovieRepo_RedisDownFallsThrough(t *testing.T) {
	log, hook := test.NewNullLogger()
	store := &memMovieStore{rows: map[int64]model.Movie{7: {ExternalID: 7, Payload: []byte(`{}`)}}}
	repo := &CachedMovieRepo{db: store, cache: &memBlobCache{err: errors.New("conn refused")}, log: log}

	m, err := repo.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.ExternalID)
	assert.Equal(t, 1, store.gets)
	assert.NotEmpty(t, hook.AllEntries())

	_, err = repo.Get(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewCachedMovieRepo_NilClient(t *testing.T) {
	log, _ := test.NewNullLogger()
	repo := NewCachedMovieRepo(NewMovieRepo(nil), nil, log)
	assert.Nil(t, repo.cache)
}
