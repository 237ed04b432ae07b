package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_MissingUsesDefaults(t *testing.T) {
	ac, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), ac)
	assert.NoError(t, ac.Validate())
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
metube:
  url: "http://nas.local:8081/"
youtube:
  channel_aliases:
    LinusTechTips: UCXuqSBlHAE6Xw-yeJA0Tunw
discovery:
  count: 3
  filter: false
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	ac, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://nas.local:8081", ac.MeTube.URL)
	assert.True(t, ac.MeTube.AutoStart, "untouched default survives")
	assert.Equal(t, 3, ac.Discovery.Count)
	assert.False(t, ac.Discovery.Filter)
	assert.Equal(t, "best", ac.Discovery.Quality)
	assert.Equal(t, "UCXuqSBlHAE6Xw-yeJA0Tunw", ac.YouTube.ChannelAliases["LinusTechTips"])
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metube: [unclosed"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ac := Defaults()
	ac.MeTube.URL = "nas.local:8081"
	assert.ErrorContains(t, ac.Validate(), "metube.url")

	ac = Defaults()
	ac.Discovery.Count = 0
	assert.ErrorContains(t, ac.Validate(), "discovery.count")

	ac = Defaults()
	ac.Discovery.SubmitDelayMS = -1
	assert.Error(t, ac.Validate())

	ac = Defaults()
	ac.YouTube.RequestsPerSecond = -2
	assert.ErrorContains(t, ac.Validate(), "youtube.requests_per_second")
}

func TestWriteConfig_RoundTripAndBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ytmetube", "config.yaml")

	ac := Defaults()
	ac.MeTube.URL = "http://metube:8081"
	require.NoError(t, WriteConfig(path, ac))
	require.NoError(t, WriteConfig(path, ac))

	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://metube:8081", got.MeTube.URL)

	backups, err := filepath.Glob(path + ".bak-*")
	require.NoError(t, err)
	assert.NotEmpty(t, backups)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x", "y.db"), ExpandPath("~/x/y.db"))
	t.Setenv("YTM_TEST_DIR", "/tmp/ytm")
	assert.Equal(t, "/tmp/ytm/h.db", ExpandPath("$YTM_TEST_DIR/h.db"))
	assert.Equal(t, "", ExpandPath(""))
}
