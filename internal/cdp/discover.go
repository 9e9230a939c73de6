package cdp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	gojson "github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Version is the payload of /json/version.
type Version struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Target is one entry of /json/list.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Client talks to the DevTools HTTP endpoints of a browser.
type Client struct {
	baseURL  string
	http     *http.Client
	attempts uint
	delay    time.Duration
}

// NewClient returns a client for a DevTools HTTP address such as
// http://127.0.0.1:9222. Version lookups are retried attempts times.
func NewClient(baseURL string, attempts int, delay time.Duration) *Client {
	if attempts < 1 {
		attempts = 1
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		attempts: uint(attempts),
		delay:    delay,
	}
}

// Version waits for the browser to answer /json/version.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	err := retry.New(
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		return c.getJSON(ctx, http.MethodGet, "/json/version", &v)
	})
	if err != nil {
		return nil, fmt.Errorf("devtools not reachable at %s: %w", c.baseURL, err)
	}
	return &v, nil
}

// Targets lists the debuggable targets.
func (c *Client) Targets(ctx context.Context) ([]Target, error) {
	var targets []Target
	if err := c.getJSON(ctx, http.MethodGet, "/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// Pages lists page targets only.
func (c *Client) Pages(ctx context.Context) ([]Target, error) {
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(targets, func(t Target, _ int) bool {
		return t.Type == "page"
	}), nil
}

// NewPage opens a blank tab.
func (c *Client) NewPage(ctx context.Context) (*Target, error) {
	var t Target
	if err := c.getJSON(ctx, http.MethodPut, "/json/new?"+url.QueryEscape(BlankURL), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// PageTarget returns the first existing page or opens a new one.
func (c *Client) PageTarget(ctx context.Context) (*Target, error) {
	pages, err := c.Pages(ctx)
	if err != nil {
		return nil, err
	}
	if len(pages) > 0 && pages[0].WebSocketDebuggerURL != "" {
		return &pages[0], nil
	}
	return c.NewPage(ctx)
}

func (c *Client) getJSON(ctx context.Context, method, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: bad status: %s: %s", method, path, resp.Status, strings.TrimSpace(string(body)))
	}
	return gojson.NewDecoder(resp.Body).Decode(v)
}
