package youtube

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ytmetube/internal/httpclient"
)

// Reason explains a classification verdict.
type Reason string

const (
	ReasonValid      Reason = "valid"
	ReasonMemberOnly Reason = "member-only"
	ReasonShort      Reason = "short"
	ReasonLivestream Reason = "livestream"
	// ReasonUnknown is the fail-open verdict used when the page could not be fetched.
	ReasonUnknown Reason = "unknown-assume-valid"
)

// Verdict is the outcome of classifying one video.
type Verdict struct {
	Included bool   `json:"included"`
	Reason   Reason `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

// Duration thresholds, in seconds.
const (
	MaxShortSeconds      = 60
	MinLivestreamSeconds = 7200
)

var (
	memberOnlyIndicators = []string{
		`"isAvailable":false`,
		`"reason":{"code":"MEMBERSHIP_CONTENT_NOT_AVAILABLE"`,
		`Join this channel to get access to members-only content`,
		`"unplayableText":"Join this channel`,
	}
	shortIndicators = []string{
		`"isShort":true`,
	}
	liveIndicators = []string{
		`"liveBroadcastContent":"live"`,
		`"liveBroadcastContent":"upcoming"`,
		`"isLiveNow":true`,
		`"isLive":true`,
		`"wasLive":true`,
	}
	// Matched case-insensitively against the title only.
	liveTitleKeywords = []string{"live stream", "livestream", "🔴", "live:", " live ", "stream:"}

	titleRe    = regexp.MustCompile(`"title":"((?:[^"\\]|\\.)*)"`)
	durationRe = regexp.MustCompile(`"lengthSeconds":"(\d+)"`)
)

// Classifier decides whether a video should be forwarded.
type Classifier struct {
	client *httpclient.Client
	log    zerolog.Logger
}

func NewClassifier(client *httpclient.Client, log zerolog.Logger) *Classifier {
	return &Classifier{client: client, log: log}
}

// Classify fetches the watch page of v and evaluates the exclusion rules in order.
// A page that cannot be fetched is assumed valid.
func (c *Classifier) Classify(ctx context.Context, v VideoRef) Verdict {
	status, body, err := c.client.Fetch(ctx, v.URL)
	if err != nil || status < 200 || status >= 300 {
		c.log.Warn().Err(err).Int("status", status).Str("video", v.URL).Msg("video check failed, assuming valid")
		return Verdict{Included: true, Reason: ReasonUnknown}
	}
	verdict := Evaluate(v.URL, string(body))
	c.log.Debug().Str("video", v.URL).Bool("included", verdict.Included).Str("reason", string(verdict.Reason)).Msg("video classified")
	return verdict
}

// Evaluate applies the classification rules to an already fetched watch page.
func Evaluate(videoURL, body string) Verdict {
	p := &watchPage{url: videoURL, body: body}
	for _, rule := range classifyRules {
		if v, ok := rule.check(p); ok {
			return v
		}
	}
	return Verdict{Included: true, Reason: ReasonValid}
}

type watchPage struct {
	url  string
	body string
}

func (p *watchPage) containsAny(needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(p.body, n) {
			return n, true
		}
	}
	return "", false
}

type classifyRule struct {
	name  string
	check func(*watchPage) (Verdict, bool)
}

// Platform flags come before the duration heuristic; title keywords only count for live.
var classifyRules = []classifyRule{
	{"member-only", memberOnlyRule},
	{"short", shortRule},
	{"live", liveRule},
	{"duration", durationRule},
}

func excluded(r Reason, detail string) (Verdict, bool) {
	return Verdict{Included: false, Reason: r, Detail: detail}, true
}

func memberOnlyRule(p *watchPage) (Verdict, bool) {
	if n, ok := p.containsAny(memberOnlyIndicators); ok {
		return excluded(ReasonMemberOnly, n)
	}
	return Verdict{}, false
}

func shortRule(p *watchPage) (Verdict, bool) {
	if n, ok := p.containsAny(shortIndicators); ok {
		return excluded(ReasonShort, n)
	}
	if IsShortURL(p.url) {
		return excluded(ReasonShort, "shorts URL")
	}
	return Verdict{}, false
}

func liveRule(p *watchPage) (Verdict, bool) {
	if n, ok := p.containsAny(liveIndicators); ok {
		return excluded(ReasonLivestream, n)
	}
	title := strings.ToLower(ExtractTitle(p.body))
	for _, kw := range liveTitleKeywords {
		if strings.Contains(title, kw) {
			return excluded(ReasonLivestream, "title keyword "+strconv.Quote(kw))
		}
	}
	return Verdict{}, false
}

func durationRule(p *watchPage) (Verdict, bool) {
	secs, ok := ExtractDuration(p.body)
	if !ok {
		return Verdict{}, false
	}
	switch {
	case secs <= MaxShortSeconds:
		return excluded(ReasonShort, strconv.Itoa(secs)+"s")
	case secs >= MinLivestreamSeconds:
		return excluded(ReasonLivestream, strconv.Itoa(secs)+"s")
	}
	return Verdict{}, false
}

// ExtractTitle returns the first embedded "title" string of a watch page, unescaped.
func ExtractTitle(body string) string {
	m := titleRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return s
	}
	return m[1]
}

// ExtractDuration returns the declared length of a watch page in seconds.
func ExtractDuration(body string) (int, bool) {
	m := durationRe.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
