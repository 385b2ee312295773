// Package restclient is the small JSON-over-HTTP helper shared by the
// adapters that have no vendor SDK (ollama, deepl, chatterbox, elevenlabs).
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StatusError is returned for any upstream response with status >= 400.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s api error %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s api error %d: %s", e.Service, e.Status, e.Body)
}

// StatusOf extracts the upstream status code from err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Client issues requests against one upstream base URL.
type Client struct {
	service string
	baseURL string
	headers http.Header
	http    *http.Client
}

func New(service, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{},
		http:    &http.Client{Timeout: timeout},
	}
}

// WithHeader sets a header sent on every request.
func (c *Client) WithHeader(key, value string) *Client {
	c.headers.Set(key, value)
	return c
}

// WithHTTPClient swaps the transport client, mostly for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// PostJSON encodes payload, posts it to path and decodes the reply into out.
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s encode request: %w", c.service, err)
	}
	resp, err := c.Do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

// PostBytes posts a JSON payload and returns the raw reply body, for audio endpoints.
func (c *Client) PostBytes(ctx context.Context, path string, payload any) ([]byte, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%s encode request: %w", c.service, err)
	}
	resp, err := c.Do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s read response: %w", c.service, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// GetJSON fetches path and decodes the reply into out. A nil out discards the body.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return c.decode(resp, out)
}

// Do sends a request and converts error statuses into *StatusError. The
// caller owns the returned body.
func (c *Client) Do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, vals := range c.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Service: c.service, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return resp, nil
}

// Close drops pooled connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w", c.service, err)
	}
	return nil
}
