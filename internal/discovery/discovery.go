// Package discovery turns a channel reference into a short list of videos worth
// downloading.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ytmetube/internal/progress"
	"ytmetube/internal/youtube"
)

// ErrInProgress is returned when a discovery is already running.
var ErrInProgress = errors.New("operation already in progress")

// overfetch is how many candidates are listed per wanted video when filtering.
const overfetch = 3

type ChannelResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

type FeedSource interface {
	ListRecent(ctx context.Context, channelID string, limit int) []youtube.VideoRef
}

type PageSource interface {
	ListRecent(ctx context.Context, channelRef string, limit int) []youtube.VideoRef
}

type VideoClassifier interface {
	Classify(ctx context.Context, v youtube.VideoRef) youtube.Verdict
}

// Options tune an Orchestrator.
type Options struct {
	// ClassifyDelay separates consecutive watch page requests.
	ClassifyDelay time.Duration
	Sink          progress.Sink
	Log           zerolog.Logger
}

// Orchestrator runs resolve, list and classify for one channel at a time.
type Orchestrator struct {
	resolver   ChannelResolver
	feed       FeedSource
	pages      PageSource
	classifier VideoClassifier
	delay      time.Duration
	sink       progress.Sink
	log        zerolog.Logger
	busy       atomic.Bool
}

func New(resolver ChannelResolver, feed FeedSource, pages PageSource, classifier VideoClassifier, opts Options) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver,
		feed:       feed,
		pages:      pages,
		classifier: classifier,
		delay:      opts.ClassifyDelay,
		sink:       progress.OrDiscard(opts.Sink),
		log:        opts.Log,
	}
}

// Busy reports whether a discovery is running.
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Discover returns up to target recent videos of the channel. With filter set, members
// only videos, shorts and livestreams are skipped. A channel that cannot be found or
// listed yields an empty list and no error.
func (o *Orchestrator) Discover(ctx context.Context, ref string, target int, filter bool) ([]youtube.VideoRef, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer o.busy.Store(false)

	if target <= 0 {
		return nil, nil
	}
	fetchCount := target
	if filter {
		fetchCount = target * overfetch
	}
	log := o.log.With().Str("channel", ref).Int("target", target).Bool("filter", filter).Logger()

	candidates := o.candidates(ctx, log, ref, fetchCount)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		o.sink.Emit(progress.Log(progress.LevelWarning, "No videos found for channel"))
		log.Warn().Msg("no videos found")
		return nil, nil
	}

	if !filter {
		if len(candidates) > target {
			candidates = candidates[:target]
		}
		o.found(candidates)
		return candidates, nil
	}

	accepted, err := o.filter(ctx, log, candidates, target)
	o.found(accepted)
	return accepted, err
}

// candidates tries the feed first and falls back to scraping the channel page.
func (o *Orchestrator) candidates(ctx context.Context, log zerolog.Logger, ref string, limit int) []youtube.VideoRef {
	o.sink.Emit(progress.Log(progress.LevelInfo, "Resolving channel "+ref))
	id, err := o.resolver.Resolve(ctx, ref)
	if err != nil {
		log.Info().Err(err).Msg("channel id unavailable, scraping page")
	} else {
		log = log.With().Str("channel_id", id).Logger()
		if vids := o.feed.ListRecent(ctx, id, limit); len(vids) > 0 {
			o.sink.Emit(progress.Log(progress.LevelInfo, fmt.Sprintf("Found %d videos in channel feed", len(vids))))
			log.Info().Int("candidates", len(vids)).Msg("feed listed")
			return vids
		}
		log.Info().Msg("feed empty, scraping page")
	}
	if ctx.Err() != nil {
		return nil
	}
	vids := o.pages.ListRecent(ctx, ref, limit)
	if len(vids) > 0 {
		o.sink.Emit(progress.Log(progress.LevelInfo, fmt.Sprintf("Found %d videos on channel page", len(vids))))
	}
	log.Info().Int("candidates", len(vids)).Msg("page scraped")
	return vids
}

func (o *Orchestrator) filter(ctx context.Context, log zerolog.Logger, candidates []youtube.VideoRef, target int) ([]youtube.VideoRef, error) {
	accepted := make([]youtube.VideoRef, 0, target)
	checked := 0
	for i, v := range candidates {
		if len(accepted) == target {
			break
		}
		wait := o.delay
		if checked == 0 {
			wait = 0
		}
		if err := pause(ctx, wait); err != nil {
			return accepted, err
		}
		checked++
		o.sink.Emit(progress.Progress(i+1, len(candidates), "Checking "+v.URL))
		verdict := o.classifier.Classify(ctx, v)
		// a cancelled fetch fails open inside the classifier; its verdict is not a check
		if err := ctx.Err(); err != nil {
			log.Info().Int("checked", checked).Int("accepted", len(accepted)).Msg("filtering cancelled")
			return accepted, err
		}
		if verdict.Included {
			accepted = append(accepted, v)
			o.sink.Emit(progress.Log(progress.LevelSuccess, fmt.Sprintf("Accepted %s (%d/%d)", v.URL, len(accepted), target)))
			continue
		}
		o.sink.Emit(progress.Log(progress.LevelInfo, fmt.Sprintf("Skipped %s: %s", v.URL, verdict.Reason)))
		log.Debug().Str("video", v.URL).Str("reason", string(verdict.Reason)).Msg("video skipped")
	}
	log.Info().Int("checked", checked).Int("accepted", len(accepted)).Msg("filtering done")
	return accepted, ctx.Err()
}

func (o *Orchestrator) found(videos []youtube.VideoRef) {
	urls := make([]string, len(videos))
	for i, v := range videos {
		urls[i] = v.URL
	}
	o.sink.Emit(progress.VideosFound(urls))
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
