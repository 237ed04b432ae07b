package metube

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ytmetube/internal/progress"
)

// Adder is the part of Client the Submitter needs.
type Adder interface {
	Add(ctx context.Context, req AddRequest) error
}

// Item is one video to submit. A zero Quality uses the submitter default.
type Item struct {
	URL     string  `json:"url"`
	Quality Quality `json:"quality,omitempty"`
}

// Outcome is the result of one submission.
type Outcome struct {
	Video     string  `json:"video"`
	Quality   Quality `json:"quality"`
	Succeeded bool    `json:"succeeded"`
	Err       error   `json:"-"`
}

// Summary tallies a batch of submissions.
type Summary struct {
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Outcomes   []Outcome `json:"outcomes,omitempty"`
}

// Progress converts s to its progress event form.
func (s Summary) Progress() progress.Summary {
	return progress.Summary{Successful: s.Successful, Failed: s.Failed, Total: s.Total}
}

// Submitter sends videos to MeTube one at a time with a pause between calls.
type Submitter struct {
	client Adder
	prefs  Preferences
	delay  time.Duration
	sink   progress.Sink
	log    zerolog.Logger
}

func NewSubmitter(client Adder, prefs Preferences, delay time.Duration, sink progress.Sink, log zerolog.Logger) *Submitter {
	return &Submitter{client: client, prefs: prefs, delay: delay, sink: progress.OrDiscard(sink), log: log}
}

// SubmitAll submits every item in order. A failed item is recorded and the rest are
// still submitted. Cancellation stops the batch; unsent items are not counted.
func (s *Submitter) SubmitAll(ctx context.Context, items []Item) Summary {
	var sum Summary
	for i, it := range items {
		wait := s.delay
		if i == 0 {
			wait = 0
		}
		if err := pause(ctx, wait); err != nil {
			s.log.Warn().Err(err).Int("remaining", len(items)-i).Msg("submission cancelled")
			break
		}
		p := s.prefs
		if it.Quality != "" {
			p.Quality = it.Quality
		}
		s.sink.Emit(progress.Progress(i+1, len(items), fmt.Sprintf("Submitting %d/%d", i+1, len(items))))

		req := NewAddRequest(it.URL, p)
		err := s.client.Add(ctx, req)
		out := Outcome{Video: it.URL, Quality: req.Quality, Succeeded: err == nil, Err: err}
		sum.Outcomes = append(sum.Outcomes, out)
		sum.Total++
		if err != nil {
			sum.Failed++
			s.log.Warn().Err(err).Str("video", it.URL).Msg("submission failed")
			s.sink.Emit(progress.Log(progress.LevelError, fmt.Sprintf("Failed to submit %s: %v", it.URL, err)))
		} else {
			sum.Successful++
			s.log.Info().Str("video", it.URL).Str("quality", string(req.Quality)).Msg("submitted")
			s.sink.Emit(progress.Log(progress.LevelSuccess, "Submitted "+it.URL))
		}
		s.sink.Emit(progress.VideoResult(it.URL, err == nil))
	}
	s.sink.Emit(progress.Complete(sum.Progress()))
	return sum
}

// pause waits d, or less if ctx ends first.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Items wraps plain URLs.
func Items(urls []string) []Item {
	out := make([]Item, len(urls))
	for i, u := range urls {
		out[i] = Item{URL: u}
	}
	return out
}
