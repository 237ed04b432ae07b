package youtube

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"ytmetube/internal/httpclient"
)

// PageScraper lists videos by pattern matching the rendered channel "videos" page.
// It is the fallback when the feed yields nothing.
type PageScraper struct {
	client  *httpclient.Client
	baseURL string
	log     zerolog.Logger
}

func NewPageScraper(client *httpclient.Client, baseURL string, log zerolog.Logger) *PageScraper {
	return &PageScraper{client: client, baseURL: baseOrDefault(baseURL), log: log}
}

// Patterns are independent; their matches are unioned.
var scrapePatterns = []*regexp.Regexp{
	regexp.MustCompile(`"videoId":"([^"]+)"`),
	regexp.MustCompile(`/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`watch\?v=([a-zA-Z0-9_-]{11})`),
}

// ListRecent returns up to limit distinct videos found on the channel's videos page.
func (s *PageScraper) ListRecent(ctx context.Context, channelRef string, limit int) []VideoRef {
	if limit <= 0 {
		return nil
	}
	pageURL := VideosPageURL(s.baseURL, channelRef)
	if pageURL == "" {
		return nil
	}
	status, body, err := s.client.Fetch(ctx, pageURL)
	if err != nil {
		s.log.Warn().Err(err).Str("url", pageURL).Msg("channel page fetch failed")
		return nil
	}
	if status != 200 {
		s.log.Warn().Int("status", status).Str("url", pageURL).Msg("channel page fetch rejected")
		return nil
	}

	ids := unionMatches(string(body), scrapePatterns)
	var out []VideoRef
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		if ref, ok := NewVideoRef(s.baseURL, id); ok {
			out = append(out, ref)
		}
	}
	s.log.Info().Str("url", pageURL).Int("matches", len(ids)).Int("videos", len(out)).Msg("channel page scraped")
	return out
}

// unionMatches collects the first group of every pattern match, dropping duplicates
// and keeping first appearance order.
func unionMatches(body string, patterns []*regexp.Regexp) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			if _, ok := seen[m[1]]; ok {
				continue
			}
			seen[m[1]] = struct{}{}
			out = append(out, m[1])
		}
	}
	return out
}

// VideosPageURL normalizes a channel reference to its /videos listing.
func VideosPageURL(base, channelRef string) string {
	ref := strings.TrimSpace(channelRef)
	if ref == "" {
		return ""
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	if !strings.Contains(ref, "://") {
		ref = baseOrDefault(base) + "/" + strings.TrimLeft(ref, "/")
	}
	ref = strings.TrimRight(ref, "/")
	if strings.HasSuffix(ref, "/videos") {
		return ref
	}
	return ref + "/videos"
}
