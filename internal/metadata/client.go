// Package metadata talks to the upstream title metadata API used to enrich
// newly created movies.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when upstream has no record for the title.
var ErrNotFound = errors.New("metadata: not found")

// Result carries the fields a movie can be enriched with. Every field is
// optional.
type Result struct {
	Description *string
	ImageURL    *string
	TrailerURL  *string
	ReleaseYear *int
}

// Empty reports whether upstream returned nothing usable.
func (r *Result) Empty() bool {
	return r == nil || (r.Description == nil && r.ImageURL == nil && r.TrailerURL == nil && r.ReleaseYear == nil)
}

// Client defines the contract for querying the upstream metadata API.
type Client interface {
	Fetch(ctx context.Context, name string) (*Result, error)
}

// Disabled is used when no upstream is configured. Every lookup misses.
type Disabled struct{}

// Fetch always reports ErrNotFound.
func (Disabled) Fetch(context.Context, string) (*Result, error) { return nil, ErrNotFound }

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// New returns an HTTP client for baseURL, or Disabled when baseURL is empty.
func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return Disabled{}, nil
	}
	return NewHTTPClient(baseURL, apiKey, timeout, logger)
}

// NewHTTPClient constructs a new HTTP-backed metadata client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse metadata url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("parse metadata url: unsupported scheme %q", parsed.Scheme)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// Fetch retrieves metadata for a title by name.
func (c *HTTPClient) Fetch(ctx context.Context, name string) (*Result, error) {
	rel := &url.URL{Path: c.baseURL.Path + "/titles"}
	q := rel.Query()
	q.Set("name", name)
	rel.RawQuery = q.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode metadata response: %w", err)
		}
		return convertToResult(payload), nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Warn("metadata: unexpected upstream status",
			zap.Int("status", resp.StatusCode),
			zap.String("name", name))
		return nil, fmt.Errorf("metadata: upstream returned %d", resp.StatusCode)
	}
}

type apiResponse struct {
	Name        string  `json:"name"`
	Overview    *string `json:"overview"`
	Poster      *string `json:"poster"`
	Trailer     *string `json:"trailer"`
	ReleaseDate *string `json:"releaseDate"`
}

func convertToResult(payload apiResponse) *Result {
	return &Result{
		Description: cleanString(payload.Overview),
		ImageURL:    cleanURL(payload.Poster),
		TrailerURL:  cleanURL(payload.Trailer),
		ReleaseYear: releaseYear(payload.ReleaseDate),
	}
}

func cleanString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// cleanURL drops anything that is not an absolute http(s) URL.
func cleanURL(s *string) *string {
	v := cleanString(s)
	if v == nil {
		return nil
	}
	u, err := url.Parse(*v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil
	}
	return v
}

// releaseYear accepts "2006-01-02" or a bare "2006".
func releaseYear(s *string) *int {
	v := cleanString(s)
	if v == nil {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006"} {
		if t, err := time.Parse(layout, *v); err == nil {
			year := t.Year()
			return &year
		}
	}
	return nil
}
