package youtube

import (
	"context"
	"fmt"
	neturl "net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"ytmetube/internal/httpclient"
)

// RefKind is the shape of a channel reference.
type RefKind int

const (
	RefChannelID RefKind = iota + 1
	RefHandle
	RefCustomName
	RefUserName
)

func (k RefKind) String() string {
	switch k {
	case RefChannelID:
		return "channel-id"
	case RefHandle:
		return "handle"
	case RefCustomName:
		return "custom-name"
	case RefUserName:
		return "user-name"
	default:
		return "unknown"
	}
}

// ChannelRef is a parsed channel reference.
type ChannelRef struct {
	Kind  RefKind
	Value string
}

// Shape markers in priority order: a direct id always wins.
var refMarkers = []struct {
	marker string
	kind   RefKind
}{
	{"/channel/", RefChannelID},
	{"/@", RefHandle},
	{"/c/", RefCustomName},
	{"/user/", RefUserName},
}

// ParseChannelRef detects which of the accepted shapes ref has.
func ParseChannelRef(ref string) (ChannelRef, error) {
	ref = strings.TrimSpace(ref)
	for _, m := range refMarkers {
		if i := strings.LastIndex(ref, m.marker); i >= 0 {
			if v := firstSegment(ref[i+len(m.marker):]); v != "" {
				return ChannelRef{Kind: m.kind, Value: v}, nil
			}
		}
	}
	if strings.HasPrefix(ref, "@") {
		if v := firstSegment(ref[1:]); v != "" {
			return ChannelRef{Kind: RefHandle, Value: v}, nil
		}
	}
	return ChannelRef{}, fmt.Errorf("%w: %q", ErrUnsupportedReference, ref)
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if u, err := neturl.PathUnescape(s); err == nil {
		s = u
	}
	return strings.TrimSpace(s)
}

// Resolver maps channel references to canonical channel identifiers.
type Resolver struct {
	client  *httpclient.Client
	baseURL string
	aliases map[string]string
	log     zerolog.Logger
}

// NewResolver builds a resolver. aliases maps handles or legacy names to ids that are
// returned without a lookup.
func NewResolver(client *httpclient.Client, baseURL string, aliases map[string]string, log zerolog.Logger) *Resolver {
	a := make(map[string]string, len(aliases))
	for k, v := range aliases {
		a[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(k), "@"))] = strings.TrimSpace(v)
	}
	return &Resolver{client: client, baseURL: baseOrDefault(baseURL), aliases: a, log: log}
}

// Resolve returns the channel identifier for ref, or ErrChannelNotFound.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	cr, err := ParseChannelRef(ref)
	if err != nil {
		return "", err
	}
	if cr.Kind == RefChannelID {
		r.log.Debug().Str("channel_id", cr.Value).Msg("direct channel id")
		return cr.Value, nil
	}
	if id, ok := r.aliases[strings.ToLower(cr.Value)]; ok && id != "" {
		r.log.Debug().Str("name", cr.Value).Str("channel_id", id).Msg("channel alias")
		return id, nil
	}

	for _, u := range r.lookupURLs(cr.Value) {
		if ctx.Err() != nil {
			break
		}
		status, body, err := r.client.Fetch(ctx, u)
		if err != nil || status != 200 {
			r.log.Debug().Str("url", u).Int("status", status).Err(err).Msg("channel lookup miss")
			continue
		}
		if id, ok := r.extract(string(body), cr.Value); ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q", ErrChannelNotFound, cr.Kind, cr.Value)
}

func (r *Resolver) lookupURLs(name string) []string {
	esc := neturl.PathEscape(name)
	return []string{
		r.baseURL + "/@" + esc,
		r.baseURL + "/c/" + esc,
		r.baseURL + "/user/" + esc,
	}
}

func (r *Resolver) extract(body, name string) (string, bool) {
	page := newChannelPage(body, name)
	for _, rule := range idRules {
		id, ok := rule.find(page)
		if !ok {
			continue
		}
		if rule.bestEffort {
			r.log.Warn().
				Str("channel_id", id).
				Int("candidates", len(page.embeddedIDs())).
				Str("name", name).
				Msg("using first channelId match without validation")
		} else {
			r.log.Debug().Str("rule", rule.name).Str("channel_id", id).Msg("channel id found")
		}
		return id, true
	}
	return "", false
}

type channelPage struct {
	body   string
	name   string
	doc    *goquery.Document
	embeds []string
}

func newChannelPage(body, name string) *channelPage {
	p := &channelPage{body: body, name: name}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		p.doc = doc
	}
	return p
}

// embeddedIDs lists the distinct channelId values in first-seen order.
func (p *channelPage) embeddedIDs() []string {
	if p.embeds == nil {
		p.embeds = []string{}
		seen := make(map[string]bool)
		for _, m := range embeddedChannelIDRe.FindAllStringSubmatch(p.body, -1) {
			if seen[m[1]] {
				continue
			}
			seen[m[1]] = true
			p.embeds = append(p.embeds, m[1])
		}
	}
	return p.embeds
}

var (
	channelPathRe       = regexp.MustCompile(`/channel/([A-Za-z0-9_-]+)`)
	embeddedChannelIDRe = regexp.MustCompile(`"channelId":"([^"]+)"`)
)

// idRule extracts a channel id from a page; rules run in order and the first hit wins.
type idRule struct {
	name       string
	bestEffort bool
	find       func(*channelPage) (string, bool)
}

var idRules = []idRule{
	{name: "og:url", find: attrRule(`meta[property="og:url"]`, "content")},
	{name: "canonical", find: attrRule(`link[rel="canonical"]`, "href")},
	{name: "channelId-context", find: contextualEmbeddedID},
	{name: "channelId-first", bestEffort: true, find: firstEmbeddedID},
}

func attrRule(selector, attr string) func(*channelPage) (string, bool) {
	return func(p *channelPage) (string, bool) {
		if p.doc == nil {
			return "", false
		}
		var id string
		p.doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			if m := channelPathRe.FindStringSubmatch(v); m != nil {
				id = m[1]
				return false
			}
			return true
		})
		return id, id != ""
	}
}

// contextualEmbeddedID prefers an embedded id followed, within the same object, by a
// title that mentions the requested name.
func contextualEmbeddedID(p *channelPage) (string, bool) {
	if p.name == "" {
		return "", false
	}
	for _, id := range p.embeddedIDs() {
		re, err := regexp.Compile(`(?i)"channelId":"` + regexp.QuoteMeta(id) + `"[^}]*"title":"[^"]*` + regexp.QuoteMeta(p.name))
		if err != nil {
			continue
		}
		if re.MatchString(p.body) {
			return id, true
		}
	}
	return "", false
}

func firstEmbeddedID(p *channelPage) (string, bool) {
	ids := p.embeddedIDs()
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}
