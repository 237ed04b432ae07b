// Package server exposes discovery and submission as MCP tools over stdio.
package server

import (
	"context"
	"errors"
	"strings"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"ytmetube/internal/discovery"
	"ytmetube/internal/history"
	"ytmetube/internal/metube"
	"ytmetube/internal/progress"
	"ytmetube/internal/run"
	"ytmetube/internal/version"
)

type DiscoverParams struct {
	Channel     string `json:"channel" jsonschema:"channel URL, @handle or channel id"`
	Count       int    `json:"count,omitempty" jsonschema:"number of videos, default 5"`
	NoFilter    bool   `json:"no_filter,omitempty" jsonschema:"skip Shorts, livestream and member-only checks"`
	WithDetails bool   `json:"with_details,omitempty" jsonschema:"include title, duration and thumbnails"`
}

type SubmitParams struct {
	Videos  []string `json:"videos,omitempty" jsonschema:"video URLs; defaults to the last discovered list"`
	Quality string   `json:"quality,omitempty"`
	Format  string   `json:"format,omitempty"`
}

type ProcessParams struct {
	Channel  string `json:"channel"`
	Count    int    `json:"count,omitempty"`
	NoFilter bool   `json:"no_filter,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Format   string `json:"format,omitempty"`
}

type RunsParams struct {
	Limit int `json:"limit,omitempty"`
}

// JournalSize bounds how many events a long-running server keeps.
const JournalSize = 1000

// Tools holds the state shared by the tool handlers.
type Tools struct {
	runner  *run.Runner
	store   *history.Store
	journal *progress.Recorder
}

// NewTools returns handlers backed by runner. journal collects the runner's events
// and may be nil; store may be nil to disable list_runs.
func NewTools(runner *run.Runner, store *history.Store, journal *progress.Recorder) *Tools {
	if journal == nil {
		journal = progress.NewRecorder(JournalSize)
	}
	return &Tools{runner: runner, store: store, journal: journal}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(t *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "ytmetube", Version: version.GetVersion()}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "discover_videos", Description: "List the most recent regular videos of a YouTube channel without submitting them"}, t.HandleDiscover)
	mcp.AddTool(server, &mcp.Tool{Name: "submit_videos", Description: "Send video URLs, or the last discovered list, to MeTube"}, t.HandleSubmit)
	mcp.AddTool(server, &mcp.Tool{Name: "process_channel", Description: "Discover a channel's recent videos and submit them to MeTube"}, t.HandleProcess)
	mcp.AddTool(server, &mcp.Tool{Name: "list_runs", Description: "Show recent runs recorded in the history database"}, t.HandleRuns)
	return server
}

// Run serves the tools on stdin/stdout until ctx is done.
func Run(ctx context.Context, t *Tools) error {
	return NewServer(t).Run(ctx, &mcp.StdioTransport{})
}

func (t *Tools) HandleDiscover(ctx context.Context, req *mcp.CallToolRequest, p DiscoverParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(p.Channel) == "" {
		return nil, failure("channel is required", nil), nil
	}
	mark := t.journal.Len()
	videos, err := t.runner.Discover(ctx, p.Channel, count(p.Count), !p.NoFilter)
	if err != nil {
		return nil, failure("discovery failed", err), nil
	}
	resp := map[string]any{
		"ok":     true,
		"count":  len(videos),
		"videos": videos,
		"log":    t.logSince(mark),
	}
	if p.WithDetails {
		resp["details"] = t.runner.Describe(ctx, videos)
	}
	return nil, resp, nil
}

func (t *Tools) HandleSubmit(ctx context.Context, req *mcp.CallToolRequest, p SubmitParams) (*mcp.CallToolResult, any, error) {
	prefs, err := preferences(p.Quality, p.Format)
	if err != nil {
		return nil, failure("invalid preferences", err), nil
	}
	urls := p.Videos
	if len(urls) == 0 {
		for _, v := range t.runner.Discovered() {
			urls = append(urls, v.URL)
		}
	}
	mark := t.journal.Len()
	sum, err := t.runner.Submit(ctx, metube.Items(urls), prefs)
	if errors.Is(err, run.ErrNoVideos) {
		return nil, failure("No videos to submit. Run discover_videos first or pass videos.", nil), nil
	}
	if err != nil && sum.Total == 0 {
		return nil, failure("submission failed", err), nil
	}
	return nil, summary(sum, t.logSince(mark)), nil
}

func (t *Tools) HandleProcess(ctx context.Context, req *mcp.CallToolRequest, p ProcessParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(p.Channel) == "" {
		return nil, failure("channel is required", nil), nil
	}
	prefs, err := preferences(p.Quality, p.Format)
	if err != nil {
		return nil, failure("invalid preferences", err), nil
	}
	mark := t.journal.Len()
	sum, err := t.runner.Channel(ctx, run.ChannelOptions{Channel: p.Channel, Count: count(p.Count), Filter: !p.NoFilter, Preferences: prefs})
	if err != nil && sum.Total == 0 {
		return nil, failure("channel run failed", err), nil
	}
	return nil, summary(sum, t.logSince(mark)), nil
}

func (t *Tools) HandleRuns(ctx context.Context, req *mcp.CallToolRequest, p RunsParams) (*mcp.CallToolResult, any, error) {
	if t.store == nil {
		return nil, map[string]any{"ok": false, "message": "history is disabled", "hint": "Set history.enabled: true in the config file."}, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	runs, err := t.store.RecentRuns(ctx, limit)
	if err != nil {
		return nil, failure("could not read history", err), nil
	}
	return nil, map[string]any{"ok": true, "count": len(runs), "runs": runs}, nil
}

func (t *Tools) logSince(mark int) []string {
	var out []string
	for _, e := range t.journal.Since(mark) {
		if e.Kind == progress.KindLog {
			out = append(out, e.Message)
		}
	}
	return out
}

func count(n int) int {
	if n <= 0 {
		return 5
	}
	return n
}

func preferences(quality, format string) (metube.Preferences, error) {
	var p metube.Preferences
	if quality != "" {
		q, err := metube.ParseQuality(quality)
		if err != nil {
			return p, err
		}
		p.Quality = q
	}
	if format != "" {
		f, err := metube.ParseFormat(format)
		if err != nil {
			return p, err
		}
		p.Format = f
	}
	return p, nil
}

func summary(sum metube.Summary, log []string) map[string]any {
	results := make([]map[string]any, 0, len(sum.Outcomes))
	for _, o := range sum.Outcomes {
		r := map[string]any{"video": o.Video, "quality": o.Quality, "success": o.Succeeded}
		if o.Err != nil {
			r["error"] = o.Err.Error()
		}
		results = append(results, r)
	}
	return map[string]any{
		"ok":         true,
		"successful": sum.Successful,
		"failed":     sum.Failed,
		"total":      sum.Total,
		"results":    results,
		"log":        log,
	}
}

func failure(msg string, err error) map[string]any {
	m := map[string]any{"ok": false, "message": msg}
	if errors.Is(err, discovery.ErrInProgress) {
		m["message"] = "Operation already in progress"
	}
	if err != nil {
		m["error"] = err.Error()
	}
	return m
}
