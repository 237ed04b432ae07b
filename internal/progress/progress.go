// Package progress carries run events from the pipeline to whichever front end is
// watching: console, terminal UI, web dashboard or MCP caller.
package progress

import "sync"

// Kind identifies an event.
type Kind string

const (
	KindLog         Kind = "log"
	KindVideosFound Kind = "videos_found"
	KindProgress    Kind = "progress"
	KindVideoResult Kind = "video_result"
	KindComplete    Kind = "complete"
)

// Level is the severity of a log event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Summary is the final tally of a submission run.
type Summary struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// Event is a single progress notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind    Kind     `json:"type"`
	Level   Level    `json:"level,omitempty"`
	Message string   `json:"message,omitempty"`
	Current int      `json:"current,omitempty"`
	Total   int      `json:"total,omitempty"`
	Video   string   `json:"video,omitempty"`
	Success bool     `json:"success,omitempty"`
	Videos  []string `json:"videos,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

// Sink receives events. Implementations must be safe for use from one goroutine at a
// time; Multi and Recorder are safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans events out to every sink in order.
func Multi(sinks ...Sink) Sink {
	var out []Sink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range out {
			s.Emit(e)
		}
	})
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

func Log(level Level, msg string) Event {
	return Event{Kind: KindLog, Level: level, Message: msg}
}

func VideosFound(urls []string) Event {
	return Event{Kind: KindVideosFound, Videos: urls, Total: len(urls)}
}

func Progress(current, total int, msg string) Event {
	return Event{Kind: KindProgress, Current: current, Total: total, Message: msg}
}

func VideoResult(video string, success bool) Event {
	return Event{Kind: KindVideoResult, Video: video, Success: success}
}

func Complete(s Summary) Event {
	return Event{Kind: KindComplete, Summary: &s}
}

// Recorder keeps the events it receives. The zero value keeps all of them; a Recorder
// from NewRecorder keeps only the most recent max.
type Recorder struct {
	mu      sync.Mutex
	max     int
	dropped int
	events  []Event
}

func NewRecorder(max int) *Recorder {
	return &Recorder{max: max}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.max > 0 && len(r.events) > r.max {
		n := len(r.events) - r.max
		r.dropped += n
		r.events = append(r.events[:0:0], r.events[n:]...)
	}
}

// Events returns a copy of the retained events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len counts every event ever received, including dropped ones. Use it as a mark
// for Since.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped + len(r.events)
}

// Since returns the retained events received after mark.
func (r *Recorder) Since(mark int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := min(max(mark-r.dropped, 0), len(r.events))
	return append([]Event(nil), r.events[i:]...)
}

// Messages returns the messages of the recorded log events.
func (r *Recorder) Messages() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Kind == KindLog {
			out = append(out, e.Message)
		}
	}
	return out
}
