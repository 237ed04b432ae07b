package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/config"
	"ytmetube/internal/fixture"
	"ytmetube/internal/history"
	"ytmetube/internal/progress"
	"ytmetube/internal/run"
)

func newTools(t *testing.T, statuses ...int) (*Tools, *fixture.MeTube) {
	t.Helper()
	return newToolsWithJournal(t, &progress.Recorder{}, statuses...)
}

func newToolsWithJournal(t *testing.T, journal *progress.Recorder, statuses ...int) (*Tools, *fixture.MeTube) {
	t.Helper()
	yt := httptest.NewServer(fixture.NewYouTube(fixture.DemoChannel()))
	t.Cleanup(yt.Close)
	mt := fixture.NewMeTube(statuses...)
	mtSrv := httptest.NewServer(mt)
	t.Cleanup(mtSrv.Close)

	ac := config.Defaults()
	ac.YouTube.BaseURL = yt.URL
	ac.MeTube.URL = mtSrv.URL
	ac.Discovery.ClassifyDelayMS = 0
	ac.Discovery.SubmitDelayMS = 0

	store, err := history.OpenStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runner, err := run.Build(ac, store, journal, zerolog.Nop())
	require.NoError(t, err)
	return NewTools(runner, store, journal), mt
}

func asMap(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "unexpected result %T", v)
	return m
}

func TestDiscoverThenSubmit(t *testing.T) {
	tools, mt := newTools(t)
	ctx := t.Context()

	_, out, err := tools.HandleDiscover(ctx, nil, DiscoverParams{Channel: "@ExampleChannel", Count: 2, WithDetails: true})
	require.NoError(t, err)
	res := asMap(t, out)
	assert.Equal(t, true, res["ok"])
	assert.Equal(t, 2, res["count"])
	assert.NotEmpty(t, res["log"])
	assert.Contains(t, res, "details")
	assert.Empty(t, mt.Calls())

	_, out, err = tools.HandleSubmit(ctx, nil, SubmitParams{Quality: "720P"})
	require.NoError(t, err)
	res = asMap(t, out)
	assert.Equal(t, 2, res["successful"])
	calls := mt.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "720p", calls[0].Quality)
}

func TestJournalStaysBounded(t *testing.T) {
	journal := progress.NewRecorder(6)
	tools, _ := newToolsWithJournal(t, journal)

	_, _, err := tools.HandleDiscover(t.Context(), nil, DiscoverParams{Channel: "@ExampleChannel", Count: 1})
	require.NoError(t, err)
	_, out, err := tools.HandleDiscover(t.Context(), nil, DiscoverParams{Channel: "@ExampleChannel", Count: 2})
	require.NoError(t, err)

	log, ok := asMap(t, out)["log"].([]string)
	require.True(t, ok)
	require.NotEmpty(t, log)
	assert.LessOrEqual(t, len(log), 6)
	for _, line := range log {
		assert.NotContains(t, line, "(1/1)", "log of an earlier call leaked")
	}
	assert.LessOrEqual(t, len(journal.Events()), 6)
	assert.Greater(t, journal.Len(), 6)
}

func TestSubmitWithoutVideos(t *testing.T) {
	tools, _ := newTools(t)
	_, out, err := tools.HandleSubmit(t.Context(), nil, SubmitParams{})
	require.NoError(t, err)
	res := asMap(t, out)
	assert.Equal(t, false, res["ok"])
	assert.Contains(t, res["message"], "No videos to submit")
}

func TestProcessChannel(t *testing.T) {
	tools, mt := newTools(t, http.StatusOK, http.StatusInternalServerError, http.StatusOK)
	_, out, err := tools.HandleProcess(t.Context(), nil, ProcessParams{Channel: "https://www.youtube.com/@ExampleChannel", Count: 3})
	require.NoError(t, err)
	res := asMap(t, out)
	assert.Equal(t, 2, res["successful"])
	assert.Equal(t, 1, res["failed"])
	assert.Equal(t, 3, res["total"])
	assert.Len(t, mt.Calls(), 3)

	results, ok := res["results"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, results[1]["success"])
	assert.Contains(t, results[1], "error")

	_, out, err = tools.HandleRuns(t.Context(), nil, RunsParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, asMap(t, out)["count"])
}

func TestInvalidInput(t *testing.T) {
	tools, mt := newTools(t)

	_, out, err := tools.HandleProcess(t.Context(), nil, ProcessParams{Channel: "@ExampleChannel", Quality: "8k"})
	require.NoError(t, err)
	res := asMap(t, out)
	assert.Equal(t, false, res["ok"])
	assert.Contains(t, res["error"], "invalid quality")

	_, out, err = tools.HandleDiscover(t.Context(), nil, DiscoverParams{Channel: " "})
	require.NoError(t, err)
	assert.Equal(t, "channel is required", asMap(t, out)["message"])
	assert.Empty(t, mt.Calls())
}

func TestRunsWithoutHistory(t *testing.T) {
	tools := NewTools(run.New(run.Deps{Log: zerolog.Nop()}), nil, nil)
	_, out, err := tools.HandleRuns(t.Context(), nil, RunsParams{})
	require.NoError(t, err)
	assert.Equal(t, false, asMap(t, out)["ok"])
	assert.NotNil(t, NewServer(tools))
}
