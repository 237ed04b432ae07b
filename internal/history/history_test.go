package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()

	r, err := s.StartRun(ctx, Run{Kind: KindChannel, Channel: "@ExampleChannel", Target: 3, Filter: true, Quality: "best", Format: "any"})
	require.NoError(t, err)
	_, err = uuid.Parse(r.ID)
	require.NoError(t, err)

	require.NoError(t, s.AddSubmission(ctx, Submission{RunID: r.ID, Seq: 1, URL: "https://www.youtube.com/watch?v=vid00000001", Quality: "best", Succeeded: true}))
	require.NoError(t, s.AddSubmission(ctx, Submission{RunID: r.ID, Seq: 2, URL: "https://www.youtube.com/watch?v=vid00000003", Quality: "best", Error: "metube rejected request: HTTP 500"}))

	r.Discovered, r.Successful, r.Failed, r.Total = 2, 1, 1, 2
	require.NoError(t, s.FinishRun(ctx, r))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "@ExampleChannel", got.Channel)
	assert.True(t, got.Filter)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Failed)
	assert.False(t, got.FinishedAt.IsZero())
	assert.WithinDuration(t, time.Now(), got.StartedAt, time.Minute)

	subs, err := s.Submissions(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.True(t, subs[0].Succeeded)
	assert.False(t, subs[1].Succeeded)
	assert.Contains(t, subs[1].Error, "HTTP 500")

	urls, err := s.SubmittedURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"https://www.youtube.com/watch?v=vid00000001": {}}, urls)
}

func TestRecentRunsOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	base := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		_, err := s.StartRun(ctx, Run{Kind: KindSingle, Channel: string(rune('a' + i)), StartedAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}
	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "d", runs[0].Channel)
	assert.Equal(t, "c", runs[1].Channel)
	assert.True(t, runs[0].FinishedAt.IsZero())
}

func TestErrors(t *testing.T) {
	s := openTestStore(t)
	ctx := t.Context()
	assert.Error(t, s.FinishRun(ctx, Run{ID: "missing"}))
	assert.Error(t, s.AddSubmission(ctx, Submission{URL: "x"}))
	assert.Error(t, s.AddSubmission(ctx, Submission{RunID: "missing", URL: "x"}), "foreign key enforced")
}
