// Package metube talks to a MeTube instance: queueing downloads, reading the queue and
// removing entries.
package metube

import (
	"fmt"
	"strings"
)

// Quality is the video quality selector MeTube accepts.
type Quality string

const (
	QualityBest  Quality = "best"
	Quality2160p Quality = "2160p"
	Quality1440p Quality = "1440p"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	QualityWorst Quality = "worst"
	QualityAudio Quality = "audio"
)

// Qualities lists every accepted quality.
var Qualities = []Quality{QualityBest, Quality2160p, Quality1440p, Quality1080p, Quality720p, Quality480p, QualityWorst, QualityAudio}

// Format is the container or audio format selector MeTube accepts.
type Format string

const (
	FormatAny  Format = "any"
	FormatMP4  Format = "mp4"
	FormatM4A  Format = "m4a"
	FormatMP3  Format = "mp3"
	FormatOpus Format = "opus"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

// Formats lists every accepted format.
var Formats = []Format{FormatAny, FormatMP4, FormatM4A, FormatMP3, FormatOpus, FormatWAV, FormatFLAC}

// ParseQuality accepts a quality name case-insensitively; empty means best.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return QualityBest, nil
	}
	for _, q := range Qualities {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("invalid quality %q (want one of %s)", s, join(Qualities))
}

// ParseFormat accepts a format name case-insensitively; empty means any.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatAny, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("invalid format %q (want one of %s)", s, join(Formats))
}

func join[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

// Preferences are the download options applied to a submission.
type Preferences struct {
	Quality          Quality `json:"quality" yaml:"quality"`
	Format           Format  `json:"format" yaml:"format"`
	Folder           string  `json:"folder,omitempty" yaml:"folder"`
	CustomNamePrefix string  `json:"custom_name_prefix,omitempty" yaml:"custom_name_prefix"`
	// AutoStart nil means true.
	AutoStart *bool `json:"auto_start,omitempty" yaml:"auto_start"`
}

// DefaultPreferences are best quality, any format, auto start.
func DefaultPreferences() Preferences {
	return Preferences{Quality: QualityBest, Format: FormatAny}
}

// AddRequest is the body of POST /add.
type AddRequest struct {
	URL                string  `json:"url" validate:"required,url"`
	Quality            Quality `json:"quality" validate:"required,oneof=best 2160p 1440p 1080p 720p 480p worst audio"`
	Format             Format  `json:"format" validate:"required,oneof=any mp4 m4a mp3 opus wav flac"`
	Folder             string  `json:"folder"`
	CustomNamePrefix   string  `json:"customNamePrefix"`
	PlaylistStrictMode bool    `json:"playlistStrictMode"`
	PlaylistItemLimit  *int    `json:"playlistItemLimit,omitempty" validate:"omitempty,min=0"`
	AutoStart          bool    `json:"autoStart"`
}

// NewAddRequest builds the /add body for url with the given preferences.
func NewAddRequest(url string, p Preferences) AddRequest {
	if p.Quality == "" {
		p.Quality = QualityBest
	}
	if p.Format == "" {
		p.Format = FormatAny
	}
	auto := true
	if p.AutoStart != nil {
		auto = *p.AutoStart
	}
	return AddRequest{
		URL:              url,
		Quality:          p.Quality,
		Format:           p.Format,
		Folder:           p.Folder,
		CustomNamePrefix: p.CustomNamePrefix,
		AutoStart:        auto,
	}
}

// Download is one entry of the MeTube queue or history.
type Download struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Quality   string  `json:"quality"`
	Format    string  `json:"format"`
	Folder    string  `json:"folder"`
	Status    string  `json:"status"`
	Msg       string  `json:"msg"`
	Percent   float64 `json:"percent"`
	Filename  string  `json:"filename"`
	Timestamp float64 `json:"timestamp"`
}

// History is the response of GET /history.
type History struct {
	Queue   []Download `json:"queue"`
	Done    []Download `json:"done"`
	Pending []Download `json:"pending"`
}

// Where selects the list an entry is deleted from.
type Where string

const (
	WhereQueue Where = "queue"
	WhereDone  Where = "done"
)
