package launchd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPlist(t *testing.T) {
	data, err := BuildPlist(InstallOptions{
		Label:           DefaultLabel,
		IntervalMinutes: 30,
		ProgramPath:     "/usr/local/bin/ytmetube",
		ProgramArgs:     []string{"--channel", "@Tom & Jerry", "--count", "5"},
		Env:             map[string]string{"METUBE_URL": "http://nas:8081", "A": "1"},
		StdOutPath:      "/tmp/ytmetube.log",
	})
	require.NoError(t, err)
	s := string(data)

	assert.Contains(t, s, "<string>com.ytmetube.sync</string>")
	assert.Contains(t, s, "<string>/usr/local/bin/ytmetube</string>")
	assert.Contains(t, s, "<string>@Tom &amp; Jerry</string>")
	assert.Contains(t, s, "<integer>1800</integer>")
	assert.Contains(t, s, "<key>METUBE_URL</key>")
	assert.Less(t, strings.Index(s, "<key>A</key>"), strings.Index(s, "<key>METUBE_URL</key>"))
	assert.Contains(t, s, "<key>StandardErrorPath</key>\n    <string>/tmp/ytmetube.log</string>")
	assert.NotContains(t, s, "KeepAlive")
}

func TestBuildPlist_Validation(t *testing.T) {
	_, err := BuildPlist(InstallOptions{ProgramPath: "/bin/true"})
	assert.EqualError(t, err, "label required")
	_, err = BuildPlist(InstallOptions{Label: "x"})
	assert.EqualError(t, err, "program path required")
}

func TestExtractStartInterval(t *testing.T) {
	data, err := BuildPlist(InstallOptions{Label: "x", ProgramPath: "/bin/true", StdOutPath: "/tmp/x.log"})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "x.plist")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	secs, err := ExtractStartInterval(path)
	require.NoError(t, err)
	assert.Equal(t, 3600, secs)

	require.NoError(t, os.WriteFile(path, []byte("<plist/>"), 0o644))
	_, err = ExtractStartInterval(path)
	assert.Error(t, err)
}
