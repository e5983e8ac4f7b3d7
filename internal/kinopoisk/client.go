// Package kinopoisk is a thin client for the unofficial Kinopoisk API. It
// returns response bodies verbatim and reports non-200 statuses as
// *StatusError; deciding what a status means is left to the caller.
package kinopoisk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/metrics"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://kinopoiskapiunofficial.tech/api"

	filmPath   = "/v2.2/films/"
	searchPath = "/v2.1/films/search-by-keyword"

	// maxBodyBytes bounds how much of a response is read into memory.
	maxBodyBytes = 8 << 20
)

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kinopoisk %s: unexpected status %d", e.Endpoint, e.StatusCode)
}

// IsUnauthorized reports whether err is a 401 from the API, which is what it
// answers when the API key is missing, invalid or out of quota.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

// Client calls the Kinopoisk API with a fixed API key.
type Client struct {
	httpClient *http.Client
	logger     logrus.FieldLogger
	baseURL    string
	apiKey     string
}

// NewClient builds a client. An empty baseURL selects DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL, apiKey string, logger logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// FilmByID fetches the film document for id.
func (c *Client) FilmByID(ctx context.Context, id int64) ([]byte, error) {
	return c.get(ctx, "film", filmPath+strconv.FormatInt(id, 10), nil)
}

// SearchByKeyword runs a keyword search and returns the raw result page.
func (c *Client) SearchByKeyword(ctx context.Context, keyword string) ([]byte, error) {
	q := url.Values{}
	q.Set("keyword", keyword)
	return c.get(ctx, "search", searchPath, q)
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamCall(endpoint, 0, time.Since(start))
		c.logger.WithError(err).WithField("endpoint", endpoint).Error("kinopoisk request failed")
		return nil, fmt.Errorf("kinopoisk %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamCall(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		c.logger.WithFields(logrus.Fields{
			"endpoint":    endpoint,
			"http_status": resp.StatusCode,
		}).Warn("kinopoisk returned non-200 status")
		return nil, &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read kinopoisk %s body: %w", endpoint, err)
	}
	return body, nil
}
