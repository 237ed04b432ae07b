package httpclient

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DefaultHeaders(t *testing.T) {
	var gotUA, gotLang, gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotCT = r.Header.Get("Content-Type")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewWithOptions(Options{
		Timeout:   time.Second,
		UserAgent: "agent/1.0",
		Headers:   map[string]string{"Accept-Language": "en"},
	})

	status, body, err := c.Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "agent/1.0", gotUA)
	assert.Equal(t, "en", gotLang)

	resp, err := c.Post(t.Context(), srv.URL, strings.NewReader("{}"), map[string]string{"Accept-Language": "de"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "de", gotLang, "per-request header wins")
	assert.Equal(t, "application/json", gotCT)
}

func TestClient_FetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(time.Second)
	status, body, err := c.Fetch(t.Context(), url)
	assert.Error(t, err)
	assert.Zero(t, status)
	assert.Nil(t, body)
}

func TestNew_DefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, New(0).GetTimeout())
	assert.Equal(t, 5*time.Second, NewWithOptions(Options{Timeout: 5 * time.Second, ProxyURL: "http://127.0.0.1:3128"}).GetTimeout())
}

func TestClient_FetchTruncationIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewWithOptions(Options{Timeout: time.Second, MaxBodyBytes: 16, Log: zerolog.New(&buf)})

	status, body, err := c.Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, body, 16)
	assert.Contains(t, buf.String(), "response body truncated")
	assert.Contains(t, buf.String(), `"limit_bytes":16`)
}

func TestClient_FetchAtLimitIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 16)))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	c := NewWithOptions(Options{Timeout: time.Second, MaxBodyBytes: 16, Log: zerolog.New(&buf)})

	_, body, err := c.Fetch(t.Context(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 16)
	assert.Empty(t, buf.String())
}

func TestClient_RequestsPerSecond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewWithOptions(Options{Timeout: time.Second, RequestsPerSecond: 10})
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, _, err := c.Fetch(t.Context(), srv.URL)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond, "burst of one, then 100ms per request")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, _, err := c.Fetch(ctx, srv.URL)
	assert.Error(t, err)
}
