package youtube

import (
	"bytes"
	"context"
	"fmt"
	neturl "net/url"
	"strings"

	trafilatura "github.com/markusmobius/go-trafilatura"
	"github.com/rs/zerolog"

	"ytmetube/internal/httpclient"
)

// Details is display information about a video.
type Details struct {
	VideoID          string   `json:"video_id"`
	URL              string   `json:"url"`
	Title            string   `json:"title"`
	Duration         string   `json:"duration"`
	DurationSeconds  int      `json:"duration_seconds"`
	SuggestedQuality string   `json:"suggested_quality"`
	ThumbnailURLs    []string `json:"thumbnail_urls"`
}

// DetailFetcher loads titles and durations for discovered videos.
type DetailFetcher struct {
	client *httpclient.Client
	log    zerolog.Logger
}

func NewDetailFetcher(client *httpclient.Client, log zerolog.Logger) *DetailFetcher {
	return &DetailFetcher{client: client, log: log}
}

// Describe fetches the watch page of v. Failures produce placeholder details rather
// than an error.
func (d *DetailFetcher) Describe(ctx context.Context, v VideoRef) Details {
	status, body, err := d.client.Fetch(ctx, v.URL)
	if err != nil || status != 200 {
		thumbs := thumbnailURLs(v.ID)
		if len(thumbs) > 1 {
			thumbs = thumbs[1:]
		}
		d.log.Warn().Err(err).Int("status", status).Str("video", v.URL).Msg("video details unavailable")
		return Details{
			VideoID:          v.ID,
			URL:              v.URL,
			Title:            "Error loading title",
			Duration:         "Unknown",
			SuggestedQuality: "best",
			ThumbnailURLs:    thumbs,
		}
	}

	title := ExtractTitle(string(body))
	if title == "" {
		title = metadataTitle(body, v.URL)
	}
	if title == "" {
		title = "Unknown Title"
	}
	secs, _ := ExtractDuration(string(body))
	return Details{
		VideoID:          v.ID,
		URL:              v.URL,
		Title:            title,
		Duration:         FormatDuration(secs),
		DurationSeconds:  secs,
		SuggestedQuality: SuggestQuality(secs),
		ThumbnailURLs:    thumbnailURLs(v.ID),
	}
}

// metadataTitle falls back to the page metadata (og:title, <title>) via trafilatura.
func metadataTitle(body []byte, pageURL string) string {
	u, _ := neturl.Parse(pageURL)
	res, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{
		OriginalURL:    u,
		EnableFallback: true,
		Focus:          trafilatura.Balanced,
	})
	if err != nil || res == nil {
		return ""
	}
	return strings.TrimSuffix(strings.TrimSpace(res.Metadata.Title), " - YouTube")
}

// FormatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func FormatDuration(secs int) string {
	if secs < 0 {
		secs = 0
	}
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// SuggestQuality lowers the quality for long videos.
func SuggestQuality(secs int) string {
	switch {
	case secs > 3600:
		return "720p"
	case secs > 1800:
		return "1080p"
	default:
		return "best"
	}
}

func thumbnailURLs(id string) []string {
	if id == "" {
		return nil
	}
	return []string{
		"https://img.youtube.com/vi/" + id + "/maxresdefault.jpg",
		"https://img.youtube.com/vi/" + id + "/hqdefault.jpg",
		"https://img.youtube.com/vi/" + id + "/mqdefault.jpg",
	}
}
