package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/config"
	"ytmetube/internal/run"
)

func TestDemoChannelEndToEnd(t *testing.T) {
	srv := httptest.NewServer(createHandler(2))
	defer srv.Close()

	ac := config.Defaults()
	ac.YouTube.BaseURL = srv.URL
	ac.MeTube.URL = srv.URL + "/metube"
	ac.Discovery.Count = 3
	ac.Discovery.ClassifyDelayMS = 0
	ac.Discovery.SubmitDelayMS = 0

	runner, err := run.Build(ac, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	sum, err := runner.Channel(t.Context(), run.ChannelOptions{Channel: "@ExampleChannel", Count: 3, Filter: true})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Successful)

	h, err := run.NewMeTubeClient(ac, zerolog.Nop()).History(t.Context())
	require.NoError(t, err)
	assert.Len(t, h.Queue, 2)
}

func TestDemoHandlerRoutes(t *testing.T) {
	srv := httptest.NewServer(createHandler(0))
	defer srv.Close()

	for path, want := range map[string]int{
		"/@ExampleChannel": http.StatusOK,
		"/metube/history":  http.StatusOK,
		"/metube/unknown":  http.StatusNotFound,
		"/@NoSuchChannel":  http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}
