package youtube

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/fixture"
	"ytmetube/internal/httpclient"
)

func serve(t *testing.T, h http.Handler) string {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv.URL
}

func testClient() *httpclient.Client {
	return httpclient.New(2 * time.Second)
}

func TestParseChannelRef(t *testing.T) {
	cases := []struct {
		in    string
		kind  RefKind
		value string
	}{
		{"https://www.youtube.com/channel/UC123abc", RefChannelID, "UC123abc"},
		{"https://www.youtube.com/channel/UC123abc/videos", RefChannelID, "UC123abc"},
		{"https://www.youtube.com/@ExampleChannel", RefHandle, "ExampleChannel"},
		{"https://www.youtube.com/@ExampleChannel/videos?view=0", RefHandle, "ExampleChannel"},
		{"https://www.youtube.com/c/LegacyName", RefCustomName, "LegacyName"},
		{"https://www.youtube.com/user/OldUser", RefUserName, "OldUser"},
		{"@ExampleChannel", RefHandle, "ExampleChannel"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			ref, err := ParseChannelRef(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, ref.Kind)
			assert.Equal(t, tc.value, ref.Value)
		})
	}
}

func TestParseChannelRef_Unsupported(t *testing.T) {
	for _, in := range []string{"", "ExampleChannel", "https://www.youtube.com/watch?v=vid00000001", "https://www.youtube.com/@"} {
		_, err := ParseChannelRef(in)
		assert.ErrorIs(t, err, ErrUnsupportedReference, in)
	}
}

func TestResolve_DirectIDMakesNoRequest(t *testing.T) {
	base := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	r := NewResolver(testClient(), base, nil, zerolog.Nop())
	id, err := r.Resolve(t.Context(), base+"/channel/UCdirect")
	require.NoError(t, err)
	assert.Equal(t, "UCdirect", id)
}

func TestResolve_Alias(t *testing.T) {
	base := serve(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}))
	r := NewResolver(testClient(), base, map[string]string{"@KnownOne": "UCknown"}, zerolog.Nop())
	id, err := r.Resolve(t.Context(), "https://www.youtube.com/@knownone")
	require.NoError(t, err)
	assert.Equal(t, "UCknown", id)
}

func TestResolve_Shapes(t *testing.T) {
	yt := fixture.NewYouTube(
		fixture.Channel{Handle: "OGChannel", ID: "UCog", Identity: fixture.IdentityOGURL},
		fixture.Channel{Handle: "CanonChannel", ID: "UCcanon", Identity: fixture.IdentityCanonical, DecoyID: "UCdecoy"},
		fixture.Channel{Handle: "EmbeddedChannel", ID: "UCembedded", Identity: fixture.IdentityEmbeddedContext, DecoyID: "UCdecoy"},
	)
	base := serve(t, yt)
	r := NewResolver(testClient(), base, nil, zerolog.Nop())

	cases := map[string]string{
		base + "/@OGChannel":           "UCog",
		base + "/c/CanonChannel":       "UCcanon",
		base + "/user/EmbeddedChannel": "UCembedded",
	}
	for ref, want := range cases {
		id, err := r.Resolve(t.Context(), ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, id, ref)
	}
}

func TestResolve_FirstEmbeddedIDIsBestEffort(t *testing.T) {
	yt := fixture.NewYouTube(fixture.Channel{
		Handle:   "Ambiguous",
		ID:       "UCreal",
		Identity: fixture.IdentityEmbeddedFirst,
		DecoyID:  "UCdecoy",
	})
	r := NewResolver(testClient(), serve(t, yt), nil, zerolog.Nop())
	id, err := r.Resolve(t.Context(), "@Ambiguous")
	require.NoError(t, err)
	assert.Equal(t, "UCdecoy", id, "without context the first embedded id wins")
}

func TestResolve_TriesNextVariantOnMiss(t *testing.T) {
	yt := fixture.NewYouTube(fixture.Channel{Handle: "Blank", ID: "UCblank", Identity: fixture.IdentityNone})
	base := serve(t, yt)
	r := NewResolver(testClient(), base, nil, zerolog.Nop())

	_, err := r.Resolve(t.Context(), "@Blank")
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.Equal(t, 1, yt.Hits("/@Blank"))
	assert.Equal(t, 1, yt.Hits("/c/Blank"))
	assert.Equal(t, 1, yt.Hits("/user/Blank"))
}

func TestResolve_NotFound(t *testing.T) {
	yt := fixture.NewYouTube()
	base := serve(t, yt)
	r := NewResolver(testClient(), base, nil, zerolog.Nop())

	_, err := r.Resolve(t.Context(), base+"/@Ghost")
	require.ErrorIs(t, err, ErrChannelNotFound)
	assert.Contains(t, err.Error(), "Ghost")
	for _, p := range []string{"/@Ghost", "/c/Ghost", "/user/Ghost"} {
		assert.Equal(t, 1, yt.Hits(p), p)
	}
}

func TestEmbeddedIDsDistinctInOrder(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		b.WriteString(`{"channelId":"UCother","title":"Someone else"},`)
	}
	b.WriteString(`{"channelId":"UCtarget","title":"Target Channel"},`)
	b.WriteString(`{"channelId":"UCother","title":"Someone else"}`)

	p := newChannelPage(b.String(), "Target Channel")
	assert.Equal(t, []string{"UCother", "UCtarget"}, p.embeddedIDs())

	id, ok := contextualEmbeddedID(p)
	require.True(t, ok)
	assert.Equal(t, "UCtarget", id)

	id, ok = firstEmbeddedID(p)
	require.True(t, ok)
	assert.Equal(t, "UCother", id)
}
