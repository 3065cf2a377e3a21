// Package backend talks to the Haunted Nexus HTTP API. Failures come back
// as *APIError and never take the audio core down.
package backend

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

	"nexus/clock"
	"nexus/log"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultRetries = 2
	defaultBackoff = time.Second
	defaultTimeout = 60 * time.Second
)

// Options tune the client. A zero Retries means DefaultRetries; pass a
// negative value to disable retrying.
type Options struct {
	Retries int
	Backoff time.Duration
	Timeout time.Duration
	Clock   clock.Clock
	Cache   *Cache
}

type Client struct {
	base    string
	http    *tracedClient
	retries int
	backoff time.Duration
	clk     clock.Clock
	cache   *Cache
}

func New(baseURL string, opts Options) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Cache == nil {
		opts.Cache = NewCache(opts.Clock)
	}
	return &Client{
		base:    strings.TrimRight(baseURL, "/"),
		http:    newTracedClient(opts.Timeout),
		retries: opts.Retries,
		backoff: opts.Backoff,
		clk:     opts.Clock,
		cache:   opts.Cache,
	}
}

func (c *Client) BaseURL() string { return c.base }
func (c *Client) Cache() *Cache   { return c.cache }

type errorBody struct {
	Error struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func details(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

// do sends one request and returns the raw JSON envelope.
func (c *Client) do(ctx context.Context, method, path string, body []byte, attempt int) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.do(req)
	if err != nil {
		return nil, &APIError{
			Message: "Network error. Please check your connection.",
			Code:    CodeNetwork,
			Details: err.Error(),
			Err:     err,
		}
	}
	log.APIRequest(method, path, resp.StatusCode, attempt, resp.Metrics)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		if err := json.Unmarshal(resp.Body, &eb); err != nil {
			return nil, &APIError{Message: "Failed to parse server response", Code: CodeParse, Details: err.Error(), Status: resp.StatusCode, Err: err}
		}
		e := &APIError{
			Message: eb.Error.Message,
			Code:    eb.Error.Code,
			Details: details(eb.Error.Details),
			Status:  resp.StatusCode,
		}
		if e.Message == "" {
			e.Message = "An error occurred"
		}
		if e.Code == "" {
			e.Code = CodeUnknown
		}
		return nil, e
	}
	if !json.Valid(resp.Body) {
		return nil, &APIError{Message: "Failed to parse server response", Code: CodeParse, Details: "invalid JSON", Status: resp.StatusCode}
	}
	return resp.Body, nil
}

// request retries transient failures with a linear backoff. A 4xx answer
// is returned at once.
func (c *Client) request(ctx context.Context, method, path string, in any) (json.RawMessage, error) {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
	}

	var last error
	for attempt := 0; attempt <= c.retries; attempt++ {
		raw, err := c.do(ctx, method, path, body, attempt)
		if err == nil {
			return raw, nil
		}
		last = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt < c.retries {
			wait := c.backoff * time.Duration(attempt+1)
			log.Warnf("%s %s failed (attempt %d), retrying in %s: %v", method, path, attempt+1, wait, err)
			select {
			case <-c.clk.After(wait):
			case <-ctx.Done():
				return nil, err
			}
		}
	}
	if last == nil {
		return nil, &APIError{Message: "Request failed after retries", Code: CodeRetryFailed}
	}
	return nil, last
}

// call sends a request and decodes the "data" member of the envelope into
// out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	raw, err := c.request(ctx, method, path, in)
	if err != nil {
		return err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Message: "Failed to parse server response", Code: CodeParse, Details: err.Error(), Err: err}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &APIError{Message: "Server response has no data", Code: CodeParse}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Message: "Failed to parse server response", Code: CodeParse, Details: err.Error(), Err: err}
	}
	return nil
}

// cached serves GET endpoints from the client cache when it can.
func cached[T any](ctx context.Context, c *Client, path string) (T, error) {
	var out T
	key := Key(c.base+path, nil)
	if v, ok := c.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return out, err
	}
	c.cache.Set(key, out, DefaultTTL)
	return out, nil
}
