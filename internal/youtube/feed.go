package youtube

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"ytmetube/internal/httpclient"
)

// FeedLister lists the most recent videos of a channel from its Atom feed. The feed
// only carries the latest entries, newest first.
type FeedLister struct {
	client  *httpclient.Client
	baseURL string
	parser  *gofeed.Parser
	log     zerolog.Logger
}

func NewFeedLister(client *httpclient.Client, baseURL string, log zerolog.Logger) *FeedLister {
	return &FeedLister{client: client, baseURL: baseOrDefault(baseURL), parser: gofeed.NewParser(), log: log}
}

var rawFeedVideoIDRe = regexp.MustCompile(`<yt:videoId>([^<]+)</yt:videoId>`)

// ListRecent returns up to limit videos in feed order. Any failure yields an empty list.
func (f *FeedLister) ListRecent(ctx context.Context, channelID string, limit int) []VideoRef {
	if limit <= 0 || strings.TrimSpace(channelID) == "" {
		return nil
	}
	feedURL := FeedURL(f.baseURL, channelID)
	status, body, err := f.client.Fetch(ctx, feedURL)
	if err != nil {
		f.log.Warn().Err(err).Str("url", feedURL).Msg("feed fetch failed")
		return nil
	}
	if status != 200 {
		f.log.Warn().Int("status", status).Str("url", feedURL).Msg("feed fetch rejected")
		return nil
	}

	var ids []string
	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil || feed == nil {
		f.log.Debug().Err(err).Msg("feed parse failed, scanning raw body")
		for _, m := range rawFeedVideoIDRe.FindAllSubmatch(body, -1) {
			ids = append(ids, string(m[1]))
		}
	} else {
		for _, it := range feed.Items {
			if id := entryVideoID(it); id != "" {
				ids = append(ids, id)
			}
		}
	}

	var out []VideoRef
	for _, id := range ids {
		if ref, ok := NewVideoRef(f.baseURL, id); ok {
			out = append(out, ref)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	f.log.Info().Str("channel_id", channelID).Int("entries", len(ids)).Int("videos", len(out)).Msg("feed listed")
	return out
}

// entryVideoID tries the yt:videoId extension, then the yt:video:<id> entry id, then
// the watch link.
func entryVideoID(it *gofeed.Item) string {
	if it == nil {
		return ""
	}
	if yt, ok := it.Extensions["yt"]; ok {
		for _, e := range yt["videoId"] {
			if v := strings.TrimSpace(e.Value); v != "" {
				return v
			}
		}
	}
	if rest, ok := strings.CutPrefix(strings.TrimSpace(it.GUID), "yt:video:"); ok && rest != "" {
		return rest
	}
	if id := ExtractYouTubeID(it.Link); id != "" {
		return id
	}
	return ""
}
