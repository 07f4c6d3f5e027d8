package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/titles" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Query().Get("name") {
		case "Arrival":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"Arrival","overview":" Linguist meets heptapods. ","poster":"https://img.example/arrival.jpg","trailer":"javascript:alert(1)","releaseDate":"2016-11-11"}`))
		case "Broken":
			_, _ = w.Write([]byte(`{not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClientFetch(t *testing.T) {
	srv := newTestUpstream(t)
	client, err := NewHTTPClient(srv.URL+"/v1/", "key", time.Second, nil)
	require.NoError(t, err)

	result, err := client.Fetch(context.Background(), "Arrival")
	require.NoError(t, err)
	require.NotNil(t, result.Description)
	assert.Equal(t, "Linguist meets heptapods.", *result.Description)
	assert.Equal(t, "https://img.example/arrival.jpg", *result.ImageURL)
	assert.Nil(t, result.TrailerURL, "non-http urls are dropped")
	require.NotNil(t, result.ReleaseYear)
	assert.Equal(t, 2016, *result.ReleaseYear)

	_, err = client.Fetch(context.Background(), "Unknown")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = client.Fetch(context.Background(), "Broken")
	assert.ErrorContains(t, err, "decode metadata response")
}

func TestHTTPClientUpstreamError(t *testing.T) {
	srv := newTestUpstream(t)
	client, err := NewHTTPClient(srv.URL+"/v1", "wrong", time.Second, nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "Arrival")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNew(t *testing.T) {
	c, err := New("  ", "", time.Second, nil)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = New("ftp://example.com", "", time.Second, nil)
	assert.Error(t, err)

	c, err = New("http://localhost:9099", "", time.Second, nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, c)
}

func TestReleaseYear(t *testing.T) {
	cases := map[string]*int{
		"2016-11-11": intPtr(2016),
		"1999":       intPtr(1999),
		"11/11/2016": nil,
		"":           nil,
	}
	for in, want := range cases {
		assert.Equal(t, want, releaseYear(&in), in)
	}
	assert.Nil(t, releaseYear(nil))
}

// TestHTTPClientSmoke runs against a live upstream when METADATA_URL is set.
func TestHTTPClientSmoke(t *testing.T) {
	baseURL := os.Getenv("METADATA_URL")
	if baseURL == "" {
		t.Skip("METADATA_URL not provided")
	}
	client, err := NewHTTPClient(baseURL, os.Getenv("METADATA_API_KEY"), 3*time.Second, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := client.Fetch(ctx, "Inception")
	require.NoError(t, err)
	assert.False(t, result.Empty())
}

func intPtr(i int) *int { return &i }
