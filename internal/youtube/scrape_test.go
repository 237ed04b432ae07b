package youtube

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/fixture"
)

func TestPageScraper_UnionKeepsValidIDsInOrder(t *testing.T) {
	base := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/@Scraped/videos", r.URL.Path)
		fmt.Fprint(w, `{"videoId":"tooShort"},{"videoId":"vid00000001"},{"videoId":"vid00000001"}`+
			`<a href="/watch?v=vid00000002">two</a> <a href="https://www.youtube.com/watch?v=vid00000001">dup</a>`+
			`{"videoId":"waytoolongvideoid"}`)
	}))
	s := NewPageScraper(testClient(), base, zerolog.Nop())

	got := s.ListRecent(t.Context(), "@Scraped", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "vid00000001", got[0].ID)
	assert.Equal(t, "vid00000002", got[1].ID)
	for _, v := range got {
		assert.Len(t, v.ID, VideoIDLength)
	}
}

func TestPageScraper_Limit(t *testing.T) {
	base := serve(t, fixture.NewYouTube(channelWith(12)))
	s := NewPageScraper(testClient(), base, zerolog.Nop())

	got := s.ListRecent(t.Context(), base+"/@Feedy", 4)
	require.Len(t, got, 4)
	assert.Equal(t, fixture.VideoID(1), got[0].ID)
	assert.Equal(t, fixture.VideoID(4), got[3].ID)
}

func TestPageScraper_FailureYieldsEmpty(t *testing.T) {
	ch := channelWith(3)
	ch.ScrapeStatus = http.StatusForbidden
	base := serve(t, fixture.NewYouTube(ch))
	s := NewPageScraper(testClient(), base, zerolog.Nop())

	assert.Empty(t, s.ListRecent(t.Context(), "@Feedy", 5))
	assert.Empty(t, s.ListRecent(t.Context(), "", 5))
}

func TestVideosPageURL(t *testing.T) {
	cases := []struct{ base, ref, want string }{
		{"http://yt.test", "@Foo", "http://yt.test/@Foo/videos"},
		{"", "https://www.youtube.com/@Foo/", "https://www.youtube.com/@Foo/videos"},
		{"", "https://www.youtube.com/@Foo/videos?view=0", "https://www.youtube.com/@Foo/videos"},
		{"", "https://www.youtube.com/channel/UCabc#about", "https://www.youtube.com/channel/UCabc/videos"},
		{"", "  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, VideosPageURL(tc.base, tc.ref), tc.ref)
	}
}
