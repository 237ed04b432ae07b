package metube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytmetube/internal/fixture"
	"ytmetube/internal/httpclient"
	"ytmetube/internal/progress"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(httpclient.New(2*time.Second), srv.URL+"/", zerolog.Nop())
}

func TestParseQualityAndFormat(t *testing.T) {
	for _, q := range Qualities {
		got, err := ParseQuality(string(q))
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}
	q, err := ParseQuality(" 1080P ")
	require.NoError(t, err)
	assert.Equal(t, Quality1080p, q)
	q, err = ParseQuality("")
	require.NoError(t, err)
	assert.Equal(t, QualityBest, q)
	_, err = ParseQuality("4k")
	assert.ErrorContains(t, err, "invalid quality")

	f, err := ParseFormat("MP3")
	require.NoError(t, err)
	assert.Equal(t, FormatMP3, f)
	_, err = ParseFormat("mkv")
	assert.ErrorContains(t, err, "invalid format")
}

func TestAdd_SendsMeTubeBody(t *testing.T) {
	mt := fixture.NewMeTube()
	c := newTestClient(t, mt)

	no := false
	req := NewAddRequest("https://www.youtube.com/watch?v=vid00000001", Preferences{
		Quality:   Quality720p,
		Format:    FormatMP4,
		Folder:    "channels/example",
		AutoStart: &no,
	})
	require.NoError(t, c.Add(t.Context(), req))

	calls := mt.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, fixture.AddCall{
		URL:     "https://www.youtube.com/watch?v=vid00000001",
		Quality: "720p",
		Format:  "mp4",
		Folder:  "channels/example",
	}, calls[0])
}

func TestAdd_Defaults(t *testing.T) {
	req := NewAddRequest("https://www.youtube.com/watch?v=vid00000001", Preferences{})
	assert.Equal(t, QualityBest, req.Quality)
	assert.Equal(t, FormatAny, req.Format)
	assert.True(t, req.AutoStart)
	assert.False(t, req.PlaylistStrictMode)
	assert.Nil(t, req.PlaylistItemLimit)
}

func TestAdd_ValidatesBeforeSending(t *testing.T) {
	mt := fixture.NewMeTube()
	c := newTestClient(t, mt)

	err := c.Add(t.Context(), AddRequest{URL: "not a url", Quality: QualityBest, Format: FormatAny})
	assert.ErrorContains(t, err, "url")
	err = c.Add(t.Context(), AddRequest{URL: "https://www.youtube.com/watch?v=vid00000001", Quality: "8k", Format: FormatAny})
	assert.ErrorContains(t, err, "quality must be one of")
	assert.Empty(t, mt.Calls())
}

func TestAdd_Rejected(t *testing.T) {
	c := newTestClient(t, fixture.NewMeTube(http.StatusInternalServerError))
	err := c.Add(t.Context(), NewAddRequest("https://www.youtube.com/watch?v=vid00000001", DefaultPreferences()))

	require.ErrorIs(t, err, ErrRejected)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Status)
}

func TestAdd_AcceptsCreated(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	assert.True(t, c.Submit(t.Context(), "https://www.youtube.com/watch?v=vid00000001", DefaultPreferences()))
}

func TestSubmit_TransportFailure(t *testing.T) {
	c := NewClient(httpclient.New(time.Second), "http://127.0.0.1:1", zerolog.Nop())
	assert.False(t, c.Submit(t.Context(), "https://www.youtube.com/watch?v=vid00000001", DefaultPreferences()))
}

func TestHistoryAndDelete(t *testing.T) {
	mt := fixture.NewMeTube()
	c := newTestClient(t, mt)
	ctx := t.Context()

	require.True(t, c.Submit(ctx, "https://www.youtube.com/watch?v=vid00000001", DefaultPreferences()))
	require.True(t, c.Submit(ctx, "https://www.youtube.com/watch?v=vid00000002", DefaultPreferences()))

	h, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, h.Queue, 2)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid00000001", h.Queue[0].URL)

	require.NoError(t, c.Delete(ctx, WhereQueue, []string{h.Queue[0].ID}))
	assert.Equal(t, []string{h.Queue[0].ID}, mt.Deleted())

	h, err = c.History(ctx)
	require.NoError(t, err)
	assert.Len(t, h.Queue, 1)

	assert.Error(t, c.Delete(ctx, "trash", []string{"x"}))
	assert.NoError(t, c.Delete(ctx, WhereDone, nil))
}

func TestSubmitAll_RecordsFailuresAndContinues(t *testing.T) {
	mt := fixture.NewMeTube(http.StatusOK, http.StatusInternalServerError)
	c := newTestClient(t, mt)
	rec := &progress.Recorder{}
	s := NewSubmitter(c, DefaultPreferences(), 0, rec, zerolog.Nop())

	sum := s.SubmitAll(t.Context(), Items([]string{
		"https://www.youtube.com/watch?v=vid00000001",
		"https://www.youtube.com/watch?v=vid00000002",
	}))
	assert.Equal(t, 1, sum.Successful)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 2, sum.Total)
	require.Len(t, sum.Outcomes, 2)
	assert.True(t, sum.Outcomes[0].Succeeded)
	assert.ErrorIs(t, sum.Outcomes[1].Err, ErrRejected)
	assert.Len(t, mt.Calls(), 2)

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, progress.KindComplete, last.Kind)
	assert.Equal(t, progress.Summary{Successful: 1, Failed: 1, Total: 2}, *last.Summary)
}

func TestSubmitAll_PerItemQuality(t *testing.T) {
	mt := fixture.NewMeTube()
	s := NewSubmitter(newTestClient(t, mt), Preferences{Quality: Quality1080p, Format: FormatMP4}, 0, nil, zerolog.Nop())

	s.SubmitAll(t.Context(), []Item{
		{URL: "https://www.youtube.com/watch?v=vid00000001"},
		{URL: "https://www.youtube.com/watch?v=vid00000002", Quality: QualityAudio},
	})
	calls := mt.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "1080p", calls[0].Quality)
	assert.Equal(t, "audio", calls[1].Quality)
	assert.Equal(t, "mp4", calls[1].Format)
}

type countingAdder struct{ times []time.Time }

func (c *countingAdder) Add(context.Context, AddRequest) error {
	c.times = append(c.times, time.Now())
	return nil
}

func TestSubmitAll_PacesCalls(t *testing.T) {
	a := &countingAdder{}
	s := NewSubmitter(a, DefaultPreferences(), 40*time.Millisecond, nil, zerolog.Nop())

	start := time.Now()
	sum := s.SubmitAll(t.Context(), Items([]string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}))
	assert.Equal(t, 3, sum.Successful)
	require.Len(t, a.times, 3)
	assert.Less(t, a.times[0].Sub(start), 20*time.Millisecond, "first call is immediate")
	assert.GreaterOrEqual(t, a.times[2].Sub(a.times[0]), 70*time.Millisecond)
}

type slowAdder struct {
	took         time.Duration
	starts, ends []time.Time
}

func (s *slowAdder) Add(context.Context, AddRequest) error {
	s.starts = append(s.starts, time.Now())
	time.Sleep(s.took)
	s.ends = append(s.ends, time.Now())
	return nil
}

func TestSubmitAll_FullPauseAfterSlowCall(t *testing.T) {
	a := &slowAdder{took: 40 * time.Millisecond}
	delay := 40 * time.Millisecond
	sum := NewSubmitter(a, DefaultPreferences(), delay, nil, zerolog.Nop()).
		SubmitAll(t.Context(), Items([]string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}))
	require.Equal(t, 3, sum.Successful)
	for i := 1; i < len(a.starts); i++ {
		assert.GreaterOrEqual(t, a.starts[i].Sub(a.ends[i-1]), delay, "gap before call %d", i+1)
	}
}

func TestSubmitAll_CancelledDuringPause(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
	defer cancel()
	a := &countingAdder{}
	start := time.Now()
	sum := NewSubmitter(a, DefaultPreferences(), time.Second, nil, zerolog.Nop()).
		SubmitAll(ctx, Items([]string{"https://a.test/1", "https://a.test/2"}))
	assert.Equal(t, 1, sum.Total)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSubmitAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	a := &countingAdder{}
	sum := NewSubmitter(a, DefaultPreferences(), 0, nil, zerolog.Nop()).SubmitAll(ctx, Items([]string{"https://a.test/1"}))
	assert.Equal(t, 0, sum.Total)
	assert.Empty(t, a.times)
}
