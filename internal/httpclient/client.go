package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultUserAgent mimics a desktop browser; YouTube serves reduced pages to unknown agents.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultMaxBodyBytes caps how much of a page is read into memory.
const DefaultMaxBodyBytes = 8 << 20

// Options configure a Client. They are copied at construction and never change afterwards.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Headers are sent with every request unless a per-request header overrides them.
	Headers map[string]string
	// ProxyURL routes all traffic through an HTTP proxy when set.
	ProxyURL string
	// MaxBodyBytes bounds Fetch; bodies beyond it are cut and logged. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
	// RequestsPerSecond caps outgoing requests across all callers. Zero disables the cap.
	RequestsPerSecond float64
	Log               zerolog.Logger
}

// Client provides a configurable HTTP client with common functionality
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	maxBody    int64
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// New creates a new HTTP client with the specified timeout
func New(timeout time.Duration) *Client {
	return NewWithOptions(Options{Timeout: timeout})
}

// NewWithOptions creates a client with default headers and an optional proxy.
func NewWithOptions(opts Options) (c *Client) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	headers := map[string]string{}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		headers["User-Agent"] = ua
	}

	var transport *http.Transport
	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		if u, err := neturl.Parse(p); err == nil {
			transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
	if transport != nil {
		c = NewWithTransport(opts.Timeout, transport)
	} else {
		c = &Client{httpClient: &http.Client{Timeout: opts.Timeout}, timeout: opts.Timeout, maxBody: DefaultMaxBodyBytes}
	}
	c.headers = headers
	if opts.MaxBodyBytes > 0 {
		c.maxBody = opts.MaxBodyBytes
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	c.log = opts.Log
	return c
}

// NewWithTransport creates a new HTTP client with custom transport
func NewWithTransport(timeout time.Duration, transport *http.Transport) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		timeout:    timeout,
		maxBody:    DefaultMaxBodyBytes,
		log:        zerolog.Nop(),
	}
}

// Get performs a GET request with proper context and headers
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyHeaders(req, headers)

	return c.do(req)
}

// Post performs a POST request with proper context and headers
func (c *Client) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.applyHeaders(req, headers)

	if headers == nil || headers["Content-Type"] == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return c.httpClient.Do(req)
}

// Fetch GETs url and returns the status code and body. A non-nil error means no
// response was received or the body could not be read. A body longer than the
// client's limit is returned cut to the limit with a warning logged.
func (c *Client) Fetch(ctx context.Context, url string) (int, []byte, error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.maxBody {
		body = body[:c.maxBody]
		c.log.Warn().Str("url", url).Int64("limit_bytes", c.maxBody).Msg("response body truncated")
	}
	return resp.StatusCode, body, nil
}

// GetTimeout returns the client timeout
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}

func (c *Client) applyHeaders(req *http.Request, headers map[string]string) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
}
