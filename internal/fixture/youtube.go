// Package fixture serves fake YouTube and MeTube endpoints for tests and demos.
package fixture

import (
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
)

// Video is a fake video; the flags control which markers its watch page carries.
type Video struct {
	ID            string
	Title         string
	LengthSeconds int
	Short         bool
	MemberOnly    bool
	Live          bool
	// Status overrides the watch page status code (e.g. 500 to simulate failures).
	Status int
}

// Identity selects how a channel page exposes its id.
type Identity int

const (
	IdentityOGURL Identity = iota
	IdentityCanonical
	IdentityEmbeddedContext
	IdentityEmbeddedFirst
	IdentityNone
)

// Channel is a fake channel reachable under /@Handle, /c/Handle and /user/Handle.
type Channel struct {
	Handle   string
	ID       string
	Title    string
	Identity Identity
	// LookupStatus overrides the status of the channel pages (e.g. 404).
	LookupStatus int
	// FeedStatus overrides the status of the Atom feed.
	FeedStatus int
	// ScrapeStatus overrides the status of the /videos page.
	ScrapeStatus int
	// DecoyID is embedded before the real id to exercise identity disambiguation.
	DecoyID string
	Videos  []Video
}

// YouTube is an http.Handler imitating the pages ytmetube reads.
type YouTube struct {
	mu       sync.Mutex
	channels map[string]*Channel
	videos   map[string]Video
	hits     map[string]int
	watched  []string
}

func NewYouTube(channels ...Channel) *YouTube {
	y := &YouTube{
		channels: map[string]*Channel{},
		videos:   map[string]Video{},
		hits:     map[string]int{},
	}
	for _, c := range channels {
		y.AddChannel(c)
	}
	return y
}

func (y *YouTube) AddChannel(c Channel) {
	y.mu.Lock()
	defer y.mu.Unlock()
	if c.Title == "" {
		c.Title = c.Handle
	}
	ch := c
	y.channels[strings.ToLower(c.Handle)] = &ch
	for _, v := range c.Videos {
		y.videos[v.ID] = v
	}
}

// AddVideo registers a video that belongs to no channel.
func (y *YouTube) AddVideo(v Video) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.videos[v.ID] = v
}

// Hits returns how many times path was requested.
func (y *YouTube) Hits(path string) int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.hits[path]
}

// Watched returns the video ids whose watch page was requested, in request order.
func (y *YouTube) Watched() []string {
	y.mu.Lock()
	defer y.mu.Unlock()
	return append([]string(nil), y.watched...)
}

func (y *YouTube) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	y.mu.Lock()
	y.hits[r.URL.Path]++
	y.mu.Unlock()

	switch {
	case r.URL.Path == "/feeds/videos.xml":
		y.serveFeed(w, r)
	case r.URL.Path == "/watch" || strings.HasPrefix(r.URL.Path, "/shorts/"):
		y.serveWatch(w, r)
	default:
		y.serveChannel(w, r)
	}
}

func (y *YouTube) serveFeed(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("channel_id")
	ch := y.channelByID(id)
	if ch == nil {
		http.NotFound(w, r)
		return
	}
	if ch.FeedStatus != 0 && ch.FeedStatus != http.StatusOK {
		http.Error(w, "feed unavailable", ch.FeedStatus)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=UTF-8")
	fmt.Fprint(w, AtomFeed(*ch))
}

func (y *YouTube) serveWatch(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("v")
	if id == "" {
		id = strings.Trim(strings.TrimPrefix(r.URL.Path, "/shorts/"), "/")
	}
	y.mu.Lock()
	y.watched = append(y.watched, id)
	v, ok := y.videos[id]
	y.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if v.Status != 0 && v.Status != http.StatusOK {
		http.Error(w, "video unavailable", v.Status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, WatchPage(v))
}

// serveChannel handles /@h, /c/h, /user/h, /channel/id and their /videos pages.
func (y *YouTube) serveChannel(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var ch *Channel
	switch {
	case len(parts) >= 1 && strings.HasPrefix(parts[0], "@"):
		ch = y.channel(strings.TrimPrefix(parts[0], "@"))
		parts = parts[1:]
	case len(parts) >= 2 && (parts[0] == "c" || parts[0] == "user"):
		ch = y.channel(parts[1])
		parts = parts[2:]
	case len(parts) >= 2 && parts[0] == "channel":
		ch = y.channelByID(parts[1])
		parts = parts[2:]
	}
	if ch == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if len(parts) == 1 && parts[0] == "videos" {
		if ch.ScrapeStatus != 0 && ch.ScrapeStatus != http.StatusOK {
			http.Error(w, "unavailable", ch.ScrapeStatus)
			return
		}
		fmt.Fprint(w, VideosPage(*ch))
		return
	}
	if ch.LookupStatus != 0 && ch.LookupStatus != http.StatusOK {
		http.Error(w, "unavailable", ch.LookupStatus)
		return
	}
	fmt.Fprint(w, ChannelPage(*ch))
}

func (y *YouTube) channel(handle string) *Channel {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.channels[strings.ToLower(handle)]
}

func (y *YouTube) channelByID(id string) *Channel {
	y.mu.Lock()
	defer y.mu.Unlock()
	for _, c := range y.channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ChannelPage renders the channel home page exposing the id the way ch.Identity says.
func ChannelPage(ch Channel) string {
	var head, data strings.Builder
	switch ch.Identity {
	case IdentityOGURL:
		fmt.Fprintf(&head, `<meta property="og:url" content="https://www.youtube.com/channel/%s">`, ch.ID)
	case IdentityCanonical:
		fmt.Fprintf(&head, `<link rel="canonical" href="https://www.youtube.com/channel/%s">`, ch.ID)
	}
	if ch.DecoyID != "" {
		fmt.Fprintf(&data, `{"channelId":"%s","title":"Some Other Channel"},`, ch.DecoyID)
	}
	switch ch.Identity {
	case IdentityEmbeddedContext, IdentityOGURL, IdentityCanonical:
		fmt.Fprintf(&data, `{"channelId":"%s","title":"%s"}`, ch.ID, ch.Title)
	case IdentityEmbeddedFirst:
		fmt.Fprintf(&data, `{"channelId":"%s","title":"Untitled"}`, ch.ID)
	}
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>%s - YouTube</title>%s</head>
<body><script>var ytInitialData = {"items":[%s]};</script></body></html>`,
		html.EscapeString(ch.Title), head.String(), data.String())
}

// VideosPage renders the channel's video listing with ids in several markups.
func VideosPage(ch Channel) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><body><script>var ytInitialData = {"contents":[`)
	for i, v := range ch.Videos {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"videoId":"%s","title":"%s"}`, v.ID, v.Title)
	}
	b.WriteString(`]};</script>`)
	for _, v := range ch.Videos {
		fmt.Fprintf(&b, `<a href="/watch?v=%s">%s</a>`, v.ID, html.EscapeString(v.Title))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

// WatchPage renders a watch page carrying the markers of v.
func WatchPage(v Video) string {
	var data []string
	data = append(data, fmt.Sprintf(`"videoDetails":{"videoId":"%s","title":"%s","lengthSeconds":"%d"}`, v.ID, v.Title, v.LengthSeconds))
	if v.Short {
		data = append(data, `"isShort":true`)
	}
	if v.MemberOnly {
		data = append(data, `"playabilityStatus":{"status":"UNPLAYABLE","reason":{"code":"MEMBERSHIP_CONTENT_NOT_AVAILABLE"}}`)
	}
	if v.Live {
		data = append(data, `"isLiveNow":true`)
	}
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>%s - YouTube</title>
<meta property="og:title" content="%s"></head>
<body><script>var ytInitialPlayerResponse = {%s};</script></body></html>`,
		html.EscapeString(v.Title), html.EscapeString(v.Title), strings.Join(data, ","))
}

// AtomFeed renders the channel feed, newest first in slice order.
func AtomFeed(ch Channel) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
`)
	fmt.Fprintf(&b, " <id>yt:channel:%s</id>\n <yt:channelId>%s</yt:channelId>\n <title>%s</title>\n", ch.ID, ch.ID, html.EscapeString(ch.Title))
	for i, v := range ch.Videos {
		fmt.Fprintf(&b, ` <entry>
  <id>yt:video:%s</id>
  <yt:videoId>%s</yt:videoId>
  <yt:channelId>%s</yt:channelId>
  <title>%s</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=%s"/>
  <published>2025-08-%02dT10:00:00+00:00</published>
 </entry>
`, v.ID, v.ID, ch.ID, html.EscapeString(v.Title), v.ID, 28-i%28)
	}
	b.WriteString("</feed>\n")
	return b.String()
}

// VideoID builds a deterministic 11-character id such as "vid00000001".
func VideoID(n int) string {
	return fmt.Sprintf("vid%08d", n)
}
