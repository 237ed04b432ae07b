package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"ytmetube/internal/config"
	"ytmetube/internal/progress"
)

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestRootRequiresMode(t *testing.T) {
	err := newApp().Run(t.Context(), []string{"ytmetube", "--config", missingConfig(t)})
	var ue usageError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Error(), "--channel or --test-video")
}

func TestRootRejectsBadInputBeforeNetwork(t *testing.T) {
	cfg := missingConfig(t)
	cases := map[string][]string{
		"quality": {"--channel", "@Example", "--quality", "8k"},
		"format":  {"--channel", "@Example", "--format", "avi"},
		"channel": {"--channel", "https://example.com/nothing"},
		"both":    {"--channel", "@Example", "--test-video", "https://youtu.be/dQw4w9WgXcQ"},
		"count":   {"--channel", "@Example", "--count", "0"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			argv := append([]string{"ytmetube", "--config", cfg, "--metube-url", "http://127.0.0.1:1"}, args...)
			err := newApp().Run(t.Context(), argv)
			var ue usageError
			assert.ErrorAs(t, err, &ue)
		})
	}
}

func loadWith(t *testing.T, args ...string) (config.AppConfig, error) {
	t.Helper()
	var (
		ac  config.AppConfig
		err error
	)
	app := newApp()
	app.Action = func(ctx context.Context, c *cli.Command) error {
		ac, err = loadConfig(c)
		return nil
	}
	require.NoError(t, app.Run(t.Context(), append([]string{"ytmetube"}, args...)))
	return ac, err
}

func TestLoadConfigOverlay(t *testing.T) {
	path := missingConfig(t)
	require.NoError(t, os.WriteFile(path, []byte("metube:\n  url: http://file:8081\ndiscovery:\n  count: 9\n  quality: 720p\n"), 0o644))

	ac, err := loadWith(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "http://file:8081", ac.MeTube.URL)
	assert.Equal(t, 9, ac.Discovery.Count)
	assert.True(t, ac.Discovery.Filter)

	ac, err = loadWith(t, "--config", path, "--metube-url", "http://flag:8081/", "--count", "2",
		"--quality", "audio", "--format", "mp3", "--no-filter", "--no-history")
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8081", ac.MeTube.URL)
	assert.Equal(t, 2, ac.Discovery.Count)
	assert.Equal(t, "audio", ac.Discovery.Quality)
	assert.Equal(t, "mp3", ac.Discovery.Format)
	assert.False(t, ac.Discovery.Filter)
	assert.False(t, ac.History.Enabled)
}

func TestLoadConfigReadsEnv(t *testing.T) {
	t.Setenv("METUBE_URL", "http://env:8081")
	ac, err := loadWith(t, "--config", missingConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "http://env:8081", ac.MeTube.URL)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	c := newConsole(&buf)
	c.Emit(progress.Log(progress.LevelInfo, "Resolving channel @Example"))
	c.Emit(progress.VideosFound([]string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"}))
	c.Emit(progress.Progress(1, 1, "Submitting 1/1"))
	c.Summary(progress.Summary{Successful: 1, Total: 1})

	out := buf.String()
	assert.Contains(t, out, "Resolving channel @Example")
	assert.Contains(t, out, "Found 1 videos")
	assert.Contains(t, out, "1. https://www.youtube.com/watch?v=aaaaaaaaaaa")
	assert.Contains(t, out, "[1/1] Submitting 1/1")
	assert.Contains(t, out, "Total:      1")
}
