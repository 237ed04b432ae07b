package metube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"ytmetube/internal/bind"
	"ytmetube/internal/httpclient"
)

// ErrRejected is wrapped by every non-success response from MeTube.
var ErrRejected = errors.New("metube rejected request")

// StatusError carries the status and body of a rejected request.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d", ErrRejected, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", ErrRejected, e.Status, body)
}

func (e *StatusError) Unwrap() error { return ErrRejected }

// Client is a MeTube API client.
type Client struct {
	http    *httpclient.Client
	baseURL string
	log     zerolog.Logger
}

func NewClient(hc *httpclient.Client, baseURL string, log zerolog.Logger) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"), log: log}
}

// BaseURL returns the MeTube address the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

var jsonHeaders = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// Add queues a download. The request is validated before anything is sent.
func (c *Client) Add(ctx context.Context, req AddRequest) error {
	if err := bind.Struct(req); err != nil {
		return fmt.Errorf("invalid add request: %w", err)
	}
	_, err := c.postJSON(ctx, "/add", req)
	if err != nil {
		return err
	}
	c.log.Debug().Str("video", req.URL).Str("quality", string(req.Quality)).Str("format", string(req.Format)).Msg("queued in metube")
	return nil
}

// Submit queues url and reports whether MeTube accepted it. Failures are logged.
func (c *Client) Submit(ctx context.Context, url string, p Preferences) bool {
	if err := c.Add(ctx, NewAddRequest(url, p)); err != nil {
		c.log.Warn().Err(err).Str("video", url).Msg("metube submission failed")
		return false
	}
	return true
}

// History returns the current queue, pending and finished downloads.
func (c *Client) History(ctx context.Context) (History, error) {
	var h History
	resp, err := c.http.Get(ctx, c.baseURL+"/history", map[string]string{"Accept": "application/json"})
	if err != nil {
		return h, fmt.Errorf("fetching metube history: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return h, fmt.Errorf("reading metube history: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return h, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, &h); err != nil {
		return h, fmt.Errorf("decoding metube history: %w", err)
	}
	return h, nil
}

// Delete removes downloads by id from the queue or the finished list.
func (c *Client) Delete(ctx context.Context, where Where, ids []string) error {
	if where != WhereQueue && where != WhereDone {
		return fmt.Errorf("invalid delete target %q (want queue or done)", where)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := c.postJSON(ctx, "/delete", struct {
		IDs   []string `json:"ids"`
		Where Where    `json:"where"`
	}{ids, where})
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", path, err)
	}
	resp, err := c.http.Post(ctx, c.baseURL+path, bytes.NewReader(b), jsonHeaders)
	if err != nil {
		return nil, fmt.Errorf("posting to metube %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return body, &StatusError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
