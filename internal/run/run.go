// Package run coordinates discovery, submission and history for every front end.
package run

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"ytmetube/internal/config"
	"ytmetube/internal/discovery"
	"ytmetube/internal/history"
	"ytmetube/internal/httpclient"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
	"ytmetube/internal/version"
	"ytmetube/internal/youtube"
)

// ErrNoVideos is returned by Submit when there is nothing to send.
var ErrNoVideos = errors.New("no videos to submit")

// Discoverer lists a channel's acceptable videos.
type Discoverer interface {
	Discover(ctx context.Context, ref string, target int, filter bool) ([]youtube.VideoRef, error)
}

// Ledger records runs; *history.Store implements it.
type Ledger interface {
	StartRun(ctx context.Context, r history.Run) (history.Run, error)
	FinishRun(ctx context.Context, r history.Run) error
	AddSubmission(ctx context.Context, s history.Submission) error
	SubmittedURLs(ctx context.Context) (map[string]struct{}, error)
}

// Describer loads display details of a video.
type Describer interface {
	Describe(ctx context.Context, v youtube.VideoRef) youtube.Details
}

// ChannelOptions select the channel and how many videos to forward.
type ChannelOptions struct {
	Channel     string
	Count       int
	Filter      bool
	Preferences metube.Preferences
}

// Deps are the collaborators of a Runner. Ledger and Details may be nil.
type Deps struct {
	Discoverer  Discoverer
	MeTube      metube.Adder
	Ledger      Ledger
	Details     Describer
	Preferences metube.Preferences
	SubmitDelay time.Duration
	// SkipSubmitted drops videos the ledger has seen accepted before.
	SkipSubmitted bool
	Sink          progress.Sink
	Log           zerolog.Logger
}

// Runner runs one operation at a time.
type Runner struct {
	deps Deps
	sink progress.Sink
	log  zerolog.Logger
	busy atomic.Bool

	mu         sync.Mutex
	discovered []youtube.VideoRef
	lastRun    *Result
}

// Result describes a finished run.
type Result struct {
	RunID   string             `json:"run_id,omitempty"`
	Kind    string             `json:"kind"`
	Channel string             `json:"channel,omitempty"`
	Videos  []youtube.VideoRef `json:"videos"`
	Summary metube.Summary     `json:"summary"`
	Started time.Time          `json:"started"`
	Ended   time.Time          `json:"ended"`
}

func New(deps Deps) *Runner {
	if deps.Preferences.Quality == "" {
		deps.Preferences.Quality = metube.QualityBest
	}
	if deps.Preferences.Format == "" {
		deps.Preferences.Format = metube.FormatAny
	}
	return &Runner{deps: deps, sink: progress.OrDiscard(deps.Sink), log: deps.Log}
}

// Busy reports whether an operation is running.
func (r *Runner) Busy() bool { return r.busy.Load() }

// Preferences returns the default download preferences.
func (r *Runner) Preferences() metube.Preferences { return r.deps.Preferences }

// Discovered returns the videos found by the last Discover call.
func (r *Runner) Discovered() []youtube.VideoRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]youtube.VideoRef(nil), r.discovered...)
}

// LastResult returns the most recent finished run, if any.
func (r *Runner) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRun == nil {
		return nil
	}
	res := *r.lastRun
	return &res
}

func (r *Runner) acquire() error {
	if !r.busy.CompareAndSwap(false, true) {
		return discovery.ErrInProgress
	}
	return nil
}

func (r *Runner) release() { r.busy.Store(false) }

// Channel discovers recent videos of a channel and submits them to MeTube.
func (r *Runner) Channel(ctx context.Context, opts ChannelOptions) (metube.Summary, error) {
	if err := r.acquire(); err != nil {
		return metube.Summary{}, err
	}
	defer r.release()

	prefs := r.prefs(opts.Preferences)
	started := time.Now()
	run := r.startRun(ctx, history.Run{
		Kind: history.KindChannel, Channel: opts.Channel, Target: opts.Count, Filter: opts.Filter,
		Quality: string(prefs.Quality), Format: string(prefs.Format),
	})

	mode := "no filtering"
	if opts.Filter {
		mode = "filtering out member-only, Shorts, and livestreams"
	}
	r.sink.Emit(progress.Log(progress.LevelInfo, fmt.Sprintf("Fetching %d most recent videos (%s)", opts.Count, mode)))

	videos, err := r.discover(ctx, opts.Channel, opts.Count, opts.Filter)
	run.Discovered = len(videos)
	if err != nil {
		run.Error = err.Error()
		r.finishRun(ctx, run)
		return metube.Summary{}, err
	}
	if len(videos) == 0 {
		r.sink.Emit(progress.Log(progress.LevelWarning, "No videos found"))
		sum := metube.Summary{}
		r.sink.Emit(progress.Complete(sum.Progress()))
		r.finishRun(ctx, run)
		r.remember(Result{RunID: run.ID, Kind: history.KindChannel, Channel: opts.Channel, Started: started})
		return sum, nil
	}

	r.sink.Emit(progress.Log(progress.LevelInfo, fmt.Sprintf("Submitting %d videos to MeTube", len(videos))))
	sum := r.submit(ctx, &run, urls(videos), prefs)
	r.remember(Result{RunID: run.ID, Kind: history.KindChannel, Channel: opts.Channel, Videos: videos, Summary: sum, Started: started})
	return sum, ctx.Err()
}

// Single submits one video URL without discovery.
func (r *Runner) Single(ctx context.Context, videoURL string, p metube.Preferences) (metube.Summary, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return metube.Summary{}, ErrNoVideos
	}
	if err := r.acquire(); err != nil {
		return metube.Summary{}, err
	}
	defer r.release()

	prefs := r.prefs(p)
	started := time.Now()
	run := r.startRun(ctx, history.Run{Kind: history.KindSingle, Target: 1, Quality: string(prefs.Quality), Format: string(prefs.Format)})
	run.Discovered = 1
	r.sink.Emit(progress.Log(progress.LevelInfo, "Testing with single video: "+videoURL))
	sum := r.submit(ctx, &run, []string{videoURL}, prefs)

	var videos []youtube.VideoRef
	if v, ok := youtube.RefFromURL(videoURL); ok {
		videos = append(videos, v)
	}
	r.remember(Result{RunID: run.ID, Kind: history.KindSingle, Videos: videos, Summary: sum, Started: started})
	return sum, nil
}

// Discover lists a channel's videos without submitting them. The result is kept for a
// later Submit.
func (r *Runner) Discover(ctx context.Context, channel string, count int, filter bool) ([]youtube.VideoRef, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.discover(ctx, channel, count, filter)
}

// Submit sends previously discovered videos. Items without a quality use p.
func (r *Runner) Submit(ctx context.Context, items []metube.Item, p metube.Preferences) (metube.Summary, error) {
	if len(items) == 0 {
		return metube.Summary{}, ErrNoVideos
	}
	if err := r.acquire(); err != nil {
		return metube.Summary{}, err
	}
	defer r.release()

	prefs := r.prefs(p)
	started := time.Now()
	run := r.startRun(ctx, history.Run{Kind: history.KindSubmit, Target: len(items), Quality: string(prefs.Quality), Format: string(prefs.Format)})
	run.Discovered = len(items)
	sum := r.submitItems(ctx, &run, items, prefs)

	var videos []youtube.VideoRef
	for _, it := range items {
		if v, ok := youtube.RefFromURL(it.URL); ok {
			videos = append(videos, v)
		}
	}
	r.remember(Result{RunID: run.ID, Kind: history.KindSubmit, Videos: videos, Summary: sum, Started: started})
	return sum, ctx.Err()
}

// Describe loads details of the given videos in order.
func (r *Runner) Describe(ctx context.Context, videos []youtube.VideoRef) []youtube.Details {
	out := make([]youtube.Details, 0, len(videos))
	if r.deps.Details == nil {
		for _, v := range videos {
			out = append(out, youtube.Details{VideoID: v.ID, URL: v.URL})
		}
		return out
	}
	for _, v := range videos {
		if ctx.Err() != nil {
			break
		}
		out = append(out, r.deps.Details.Describe(ctx, v))
	}
	return out
}

func (r *Runner) discover(ctx context.Context, channel string, count int, filter bool) ([]youtube.VideoRef, error) {
	videos, err := r.deps.Discoverer.Discover(ctx, channel, count, filter)
	if err != nil {
		return videos, err
	}
	videos = r.skipSubmitted(ctx, videos)
	r.mu.Lock()
	r.discovered = append([]youtube.VideoRef(nil), videos...)
	r.mu.Unlock()
	return videos, nil
}

func (r *Runner) skipSubmitted(ctx context.Context, videos []youtube.VideoRef) []youtube.VideoRef {
	if !r.deps.SkipSubmitted || r.deps.Ledger == nil || len(videos) == 0 {
		return videos
	}
	seen, err := r.deps.Ledger.SubmittedURLs(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not read submission history")
		return videos
	}
	kept := videos[:0:0]
	for _, v := range videos {
		if _, ok := seen[v.URL]; ok {
			r.sink.Emit(progress.Log(progress.LevelInfo, "Already submitted: "+v.URL))
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

func (r *Runner) submit(ctx context.Context, run *history.Run, videoURLs []string, prefs metube.Preferences) metube.Summary {
	return r.submitItems(ctx, run, metube.Items(videoURLs), prefs)
}

func (r *Runner) submitItems(ctx context.Context, run *history.Run, items []metube.Item, prefs metube.Preferences) metube.Summary {
	s := metube.NewSubmitter(r.deps.MeTube, prefs, r.deps.SubmitDelay, r.sink, r.log)
	sum := s.SubmitAll(ctx, items)

	if r.deps.Ledger != nil && run.ID != "" {
		for i, o := range sum.Outcomes {
			sub := history.Submission{RunID: run.ID, Seq: i + 1, URL: o.Video, Quality: string(o.Quality), Succeeded: o.Succeeded}
			if o.Err != nil {
				sub.Error = o.Err.Error()
			}
			if err := r.deps.Ledger.AddSubmission(context.WithoutCancel(ctx), sub); err != nil {
				r.log.Warn().Err(err).Str("video", o.Video).Msg("could not record submission")
			}
		}
	}
	run.Successful, run.Failed, run.Total = sum.Successful, sum.Failed, sum.Total
	if err := ctx.Err(); err != nil {
		run.Error = err.Error()
	}
	r.finishRun(ctx, *run)
	r.log.Info().Int("successful", sum.Successful).Int("failed", sum.Failed).Int("total", sum.Total).Msg("submission summary")
	return sum
}

func (r *Runner) startRun(ctx context.Context, run history.Run) history.Run {
	if r.deps.Ledger == nil {
		return run
	}
	stored, err := r.deps.Ledger.StartRun(context.WithoutCancel(ctx), run)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not record run")
		return run
	}
	return stored
}

func (r *Runner) finishRun(ctx context.Context, run history.Run) {
	if r.deps.Ledger == nil || run.ID == "" {
		return
	}
	if err := r.deps.Ledger.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		r.log.Warn().Err(err).Str("run", run.ID).Msg("could not finish run record")
	}
}

func (r *Runner) remember(res Result) {
	res.Ended = time.Now()
	r.mu.Lock()
	r.lastRun = &res
	r.mu.Unlock()
}

func (r *Runner) prefs(p metube.Preferences) metube.Preferences {
	def := r.deps.Preferences
	if p.Quality == "" {
		p.Quality = def.Quality
	}
	if p.Format == "" {
		p.Format = def.Format
	}
	if p.Folder == "" {
		p.Folder = def.Folder
	}
	if p.CustomNamePrefix == "" {
		p.CustomNamePrefix = def.CustomNamePrefix
	}
	if p.AutoStart == nil {
		p.AutoStart = def.AutoStart
	}
	return p
}

func urls(videos []youtube.VideoRef) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.URL
	}
	return out
}

// Build wires a Runner from configuration. store may be nil to disable history.
func Build(ac config.AppConfig, store *history.Store, sink progress.Sink, log zerolog.Logger) (*Runner, error) {
	prefs, err := Preferences(ac)
	if err != nil {
		return nil, err
	}
	ylog := log.With().Str("component", "youtube").Logger()
	yt := httpclient.NewWithOptions(httpclient.Options{
		Timeout:           ac.YouTube.Timeout(),
		UserAgent:         ac.YouTube.UserAgent,
		Headers:           map[string]string{"Accept-Language": "en-US,en;q=0.9"},
		ProxyURL:          ac.YouTube.ProxyURL,
		RequestsPerSecond: ac.YouTube.RequestsPerSecond,
		Log:               ylog,
	})
	base := ac.YouTube.BaseURL
	orch := discovery.New(
		youtube.NewResolver(yt, base, ac.YouTube.ChannelAliases, ylog),
		youtube.NewFeedLister(yt, base, ylog),
		youtube.NewPageScraper(yt, base, ylog),
		youtube.NewClassifier(yt, ylog),
		discovery.Options{
			ClassifyDelay: ac.Discovery.ClassifyDelay(),
			Sink:          sink,
			Log:           log.With().Str("component", "discovery").Logger(),
		},
	)

	deps := Deps{
		Discoverer:    orch,
		MeTube:        NewMeTubeClient(ac, log),
		Details:       youtube.NewDetailFetcher(yt, ylog),
		Preferences:   prefs,
		SubmitDelay:   ac.Discovery.SubmitDelay(),
		SkipSubmitted: ac.History.SkipSubmitted,
		Sink:          sink,
		Log:           log.With().Str("component", "run").Logger(),
	}
	if store != nil {
		deps.Ledger = store
	}
	return New(deps), nil
}

// NewMeTubeClient builds the MeTube API client described by ac.
func NewMeTubeClient(ac config.AppConfig, log zerolog.Logger) *metube.Client {
	mlog := log.With().Str("component", "metube").Logger()
	hc := httpclient.NewWithOptions(httpclient.Options{
		Timeout:   ac.MeTube.Timeout(),
		UserAgent: version.UserAgent(),
		Log:       mlog,
	})
	return metube.NewClient(hc, ac.MeTube.URL, mlog)
}

// Preferences derives the default download preferences from configuration.
func Preferences(ac config.AppConfig) (metube.Preferences, error) {
	q, err := metube.ParseQuality(ac.Discovery.Quality)
	if err != nil {
		return metube.Preferences{}, err
	}
	f, err := metube.ParseFormat(ac.Discovery.Format)
	if err != nil {
		return metube.Preferences{}, err
	}
	auto := ac.MeTube.AutoStart
	return metube.Preferences{
		Quality:          q,
		Format:           f,
		Folder:           ac.MeTube.Folder,
		CustomNamePrefix: ac.MeTube.CustomNamePrefix,
		AutoStart:        &auto,
	}, nil
}
