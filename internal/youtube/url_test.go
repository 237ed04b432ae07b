package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVideoRef(t *testing.T) {
	v, ok := NewVideoRef("http://yt.test/", "dQw4w9WgXcQ")
	assert.True(t, ok)
	assert.Equal(t, "http://yt.test/watch?v=dQw4w9WgXcQ", v.URL)

	v, ok = NewVideoRef("", "dQw4w9WgXcQ")
	assert.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", v.String())

	for _, bad := range []string{"", "short", "dQw4w9WgXcQx", "dQw4w9WgX!Q"} {
		_, ok := NewVideoRef("", bad)
		assert.False(t, ok, bad)
	}
}

func TestExtractYouTubeID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=PL1&v=dQw4w9WgXcQ":   "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                           "dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ":             "dQw4w9WgXcQ",
		"https://m.youtube.com/embed/x?next=watch?v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://example.com/video/1":                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ExtractYouTubeID(in), in)
	}
}

func TestRefFromURL(t *testing.T) {
	v, ok := RefFromURL(" https://youtu.be/dQw4w9WgXcQ ")
	assert.True(t, ok)
	assert.Equal(t, VideoRef{ID: "dQw4w9WgXcQ", URL: "https://youtu.be/dQw4w9WgXcQ"}, v)

	_, ok = RefFromURL("https://example.com/")
	assert.False(t, ok)
}

func TestFeedURL(t *testing.T) {
	assert.Equal(t, "http://yt.test/feeds/videos.xml?channel_id=UCabc", FeedURL("http://yt.test", "UCabc"))
}
