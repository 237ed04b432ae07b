package youtube

import (
	"fmt"
	neturl "net/url"
	"regexp"
	"strings"
)

// DefaultBaseURL is the site every page and feed is fetched from.
const DefaultBaseURL = "https://www.youtube.com"

// VideoIDLength is the fixed length of a platform video identifier.
const VideoIDLength = 11

var (
	ytHostRe    = regexp.MustCompile(`(?i)(^|\.)youtube\.com$`)
	videoIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	watchLinkRe = regexp.MustCompile(`watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`)
)

// VideoRef is a playable video: its 11-character id and the watch URL built from it.
type VideoRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (v VideoRef) String() string { return v.URL }

// NewVideoRef builds the watch URL for id under base. It reports false for
// identifiers that are not exactly 11 valid characters.
func NewVideoRef(base, id string) (VideoRef, bool) {
	id = strings.TrimSpace(id)
	if !ValidVideoID(id) {
		return VideoRef{}, false
	}
	return VideoRef{ID: id, URL: WatchURL(base, id)}, true
}

// ValidVideoID reports whether id has the platform's 11-character shape.
func ValidVideoID(id string) bool {
	return len(id) == VideoIDLength && videoIDRe.MatchString(id)
}

func WatchURL(base, id string) string {
	return fmt.Sprintf("%s/watch?v=%s", baseOrDefault(base), id)
}

// FeedURL is the Atom feed of a channel.
func FeedURL(base, channelID string) string {
	return fmt.Sprintf("%s/feeds/videos.xml?channel_id=%s", baseOrDefault(base), neturl.QueryEscape(channelID))
}

// RefFromURL turns an arbitrary video URL into a VideoRef, keeping the original URL.
func RefFromURL(u string) (VideoRef, bool) {
	id := ExtractYouTubeID(u)
	if !ValidVideoID(id) {
		return VideoRef{}, false
	}
	return VideoRef{ID: id, URL: strings.TrimSpace(u)}, true
}

// ExtractYouTubeID returns the video id of watch, youtu.be and shorts URLs.
func ExtractYouTubeID(u string) string {
	parsed, err := neturl.Parse(strings.TrimSpace(u))
	if err != nil {
		return ""
	}
	h := strings.ToLower(parsed.Host)
	if h == "youtu.be" {
		return strings.Trim(parsed.Path, "/")
	}
	if strings.HasPrefix(parsed.Path, "/watch") {
		return strings.TrimSpace(parsed.Query().Get("v"))
	}
	if strings.HasPrefix(parsed.Path, "/shorts/") {
		return strings.Trim(strings.TrimPrefix(parsed.Path, "/shorts/"), "/")
	}
	if ytHostRe.MatchString(h) {
		if m := watchLinkRe.FindStringSubmatch(u); m != nil {
			return m[1]
		}
	}
	return ""
}

// IsShortURL reports whether the URL path points at the short-form player.
func IsShortURL(u string) bool {
	return strings.Contains(u, "/shorts/")
}

func baseOrDefault(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return DefaultBaseURL
	}
	return base
}
