package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EugeneTurkin/fav-movies/internal/apperr"
	"github.com/EugeneTurkin/fav-movies/internal/model"
	"github.com/EugeneTurkin/fav-movies/internal/repository"
)

const film301 = `{"kinopoiskId":301,"nameRu":"Матрица","year":1999}`

func newTestMovieCache(t *testing.T) (*MovieCache, *memMovies, *fakeUpstream) {
	t.Helper()
	log, _ := test.NewNullLogger()
	movies := newMemMovies()
	up := newFakeUpstream()
	up.films[301] = film301
	return NewMovieCache(movies, up, log), movies, up
}

func TestMovieCache_ResolveOnceUpstream(t *testing.T) {
	cache, movies, up := newTestMovieCache(t)
	ctx := context.Background()

	first, err := cache.Resolve(ctx, 301)
	require.NoError(t, err)
	assert.Equal(t, int64(301), first.ExternalID)
	assert.JSONEq(t, film301, string(first.Payload))

	second, err := cache.Resolve(ctx, 301)
	require.NoError(t, err)
	assert.Equal(t, string(first.Payload), string(second.Payload))

	assert.Equal(t, 1, up.calls())
	assert.Equal(t, 1, movies.inserts)
}

func TestMovieCache_StoredPayloadIsNeverRefreshed(t *testing.T) {
	cache, _, up := newTestMovieCache(t)
	ctx := context.Background()

	_, err := cache.Resolve(ctx, 301)
	require.NoError(t, err)

	up.mu.Lock()
	up.films[301] = `{"kinopoiskId":301,"nameRu":"changed"}`
	up.mu.Unlock()

	m, err := cache.Resolve(ctx, 301)
	require.NoError(t, err)
	assert.JSONEq(t, film301, string(m.Payload))
}

func TestMovieCache_UpstreamStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   apperr.Kind
	}{
		{401, apperr.KindUpstreamUnavailable},
		{402, apperr.KindUpstreamProtocol},
		{404, apperr.KindUpstreamProtocol},
		{429, apperr.KindUpstreamProtocol},
		{500, apperr.KindUpstreamProtocol},
	}
	for _, tc := range cases {
		cache, movies, up := newTestMovieCache(t)
		up.status = tc.status

		_, err := cache.Resolve(context.Background(), 301)
		assert.Equal(t, tc.want, apperr.KindOf(err), "status %d", tc.status)
		assert.Zero(t, movies.inserts, "nothing stored on status %d", tc.status)

		_, err = cache.SearchByKeyword(context.Background(), "matrix")
		assert.Equal(t, tc.want, apperr.KindOf(err), "search status %d", tc.status)
	}
}

func TestMovieCache_TransportErrorIsUnavailable(t *testing.T) {
	cache, _, up := newTestMovieCache(t)
	up.err = errors.New("dial tcp: connection refused")

	_, err := cache.Resolve(context.Background(), 301)
	assert.True(t, errors.Is(err, apperr.ErrUpstreamUnavailable))
}

func TestMovieCache_FetchTimeoutIsUnavailable(t *testing.T) {
	cache, _, up := newTestMovieCache(t)
	up.err = context.DeadlineExceeded

	_, err := cache.Resolve(context.Background(), 301)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}

func TestMovieCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	cache, movies, up := newTestMovieCache(t)
	up.gate = make(chan struct{})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Resolve(ctxA, 301)
		errA <- err
	}()
	require.Eventually(t, func() bool { return up.calls() == 1 }, time.Second, time.Millisecond)

	type result struct {
		m   *model.Movie
		err error
	}
	resB := make(chan result, 1)
	go func() {
		m, err := cache.Resolve(context.Background(), 301)
		resB <- result{m, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(up.gate)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, int64(301), r.m.ExternalID)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.True(t, movies.has(301))
	assert.Equal(t, 1, up.calls())
}

func TestMovieCache_PayloadWithoutID(t *testing.T) {
	cache, movies, up := newTestMovieCache(t)
	up.films[5] = `{"nameRu":"no id"}`
	up.films[6] = `not json`

	for _, id := range []int64{5, 6} {
		_, err := cache.Resolve(context.Background(), id)
		assert.Equal(t, apperr.KindUpstreamProtocol, apperr.KindOf(err))
	}
	assert.Zero(t, movies.inserts)
}

func TestMovieCache_SearchIsNeverCached(t *testing.T) {
	cache, movies, up := newTestMovieCache(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := cache.SearchByKeyword(ctx, "матрица")
		require.NoError(t, err)
		assert.JSONEq(t, `{"keyword":"матрица","films":[]}`, string(res))
	}
	assert.Equal(t, 2, up.searchCalls)
	assert.Zero(t, movies.inserts)
}

func TestMovieCache_ConcurrentResolveSharesUpstreamCall(t *testing.T) {
	cache, movies, up := newTestMovieCache(t)
	up.gate = make(chan struct{})

	const n = 8
	var wg sync.WaitGroup
	results := make([]*model.Movie, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Resolve(context.Background(), 301)
		}(i)
	}

	// Let the first call reach upstream, then give the rest time to join it.
	require.Eventually(t, func() bool { return up.calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(up.gate)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(301), results[i].ExternalID)
	}
	assert.Len(t, movies.rows, 1)
	assert.LessOrEqual(t, up.calls(), 2)
}

// racingStore reports a miss, then loses the insert to a concurrent writer.
type racingStore struct {
	*memMovies
	winner model.Movie
	gets   int
}

func (s *racingStore) Get(ctx context.Context, id int64) (*model.Movie, error) {
	s.gets++
	if s.gets == 1 {
		return nil, repository.ErrNotFound
	}
	return s.memMovies.Get(ctx, id)
}

func (s *racingStore) Insert(ctx context.Context, m *model.Movie) error {
	_ = s.memMovies.Insert(ctx, &s.winner)
	return s.memMovies.Insert(ctx, m)
}

func TestMovieCache_LostInsertRaceReturnsStoredRow(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := &racingStore{
		memMovies: newMemMovies(),
		winner:    model.Movie{ExternalID: 301, Payload: []byte(`{"kinopoiskId":301,"by":"other"}`)},
	}
	up := newFakeUpstream()
	up.films[301] = film301
	cache := NewMovieCache(store, up, log)

	m, err := cache.Resolve(context.Background(), 301)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kinopoiskId":301,"by":"other"}`, string(m.Payload))
}
