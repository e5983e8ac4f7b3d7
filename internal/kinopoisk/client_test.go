package kinopoisk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	log, _ := test.NewNullLogger()
	return NewClient(srv.Client(), srv.URL+"/api/", "secret-key", log)
}

func TestClient_FilmByID(t *testing.T) {
	body := `{"kinopoiskId":301,"nameRu":"Матрица"}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v2.2/films/301", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("X-API-KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	got, err := c.FilmByID(context.Background(), 301)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestClient_SearchByKeyword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2.1/films/search-by-keyword", r.URL.Path)
		assert.Equal(t, "матрица перезагрузка", r.URL.Query().Get("keyword"))
		_, _ = w.Write([]byte(`{"films":[]}`))
	})

	got, err := c.SearchByKeyword(context.Background(), "матрица перезагрузка")
	require.NoError(t, err)
	assert.JSONEq(t, `{"films":[]}`, string(got))
}

func TestClient_StatusErrors(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		_, err := c.FilmByID(context.Background(), 1)

		var se *StatusError
		require.True(t, errors.As(err, &se), "code %d: %v", code, err)
		assert.Equal(t, code, se.StatusCode)
		assert.Equal(t, code == http.StatusUnauthorized, IsUnauthorized(err))
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	log, _ := test.NewNullLogger()
	c := NewClient(nil, url, "k", log)
	_, err := c.FilmByID(context.Background(), 1)
	require.Error(t, err)

	var se *StatusError
	assert.False(t, errors.As(err, &se))
}

func TestClient_ContextCancel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FilmByID(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	log, _ := test.NewNullLogger()
	c := NewClient(nil, "", "k", log)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
}
