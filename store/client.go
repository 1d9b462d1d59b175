package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hazyhaar/whichsocial/guard"
	"github.com/hazyhaar/whichsocial/kit"
)

// Client is a Store backed by a remote Handler.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for the Handler served at baseURL. A nil hc
// uses a client with a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

func (c *Client) keyURL(key string) string {
	return c.base + "/kv/" + url.PathEscape(key)
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.keyURL(key), nil)
	if err != nil {
		return "", false, fmt.Errorf("store: get %q: %w", key, err)
	}
	resp, err := c.do(req)
	if err != nil {
		return "", false, fmt.Errorf("store: get %q: %w", key, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("store: get %q: status %d", key, resp.StatusCode)
	}
	body, err := guard.LimitedReadAll(resp.Body, guard.MaxResponseBody)
	if err != nil {
		return "", false, fmt.Errorf("store: get %q: read body: %w", key, err)
	}
	return compact(body), true, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	return c.send(ctx, http.MethodPut, key, strings.NewReader(value))
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.send(ctx, http.MethodDelete, key, nil)
}

func (c *Client) send(ctx context.Context, method, key string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, method, c.keyURL(key), body)
	if err != nil {
		return fmt.Errorf("store: %s %q: %w", strings.ToLower(method), key, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("store: %s %q: %w", strings.ToLower(method), key, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store: %s %q: status %d", strings.ToLower(method), key, resp.StatusCode)
	}
	return nil
}

// do forwards the caller's trace ID so server logs correlate.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if id := kit.Correlation(req.Context()); id != "" {
		req.Header.Set("X-Trace-ID", id)
	}
	return c.http.Do(req)
}

// compact strips insignificant whitespace from JSON text. Invalid input is
// returned unchanged.
func compact(b []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}
