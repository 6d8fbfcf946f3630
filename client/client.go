package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/modaops/retailfetch/query"
)

// maxErrorBodyLen caps how much of an error response body is retained for
// error messages.
const maxErrorBodyLen = 512

// Client performs HTTP requests against the dashboard backend.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: all requests honor cancellation/deadlines.
// - Errors: see errors.go for the taxonomy; errors are never swallowed here.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The caller is
// responsible for attaching a cookie jar if session cookies are needed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a bearer token to every request. If the token is a JWT,
// its expiry is checked locally before each request and an expired token
// fails fast with ErrUnauthorized instead of a round trip.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout overrides the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the given base URL. The default HTTP client has a
// 30s timeout and an in-memory cookie jar so session cookies set by the
// backend are included on subsequent requests.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs the request described by d and returns the raw response
// body. It satisfies the store's Fetcher contract.
func (c *Client) Fetch(ctx context.Context, d query.Descriptor) ([]byte, error) {
	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}
	return c.do(ctx, d.Method, d.URL, d.ContentType, body)
}

// dataEnvelope is the read-endpoint response shape: a "data" field holding an
// ordered sequence of records.
type dataEnvelope struct {
	Data []json.RawMessage `json:"data"`
}

// FetchData performs a read and decodes the JSON "data" envelope every chart
// endpoint returns. A 2xx body without a data field is ErrMalformedResponse.
func (c *Client) FetchData(ctx context.Context, d query.Descriptor) ([]json.RawMessage, error) {
	raw, err := c.Fetch(ctx, d)
	if err != nil {
		return nil, err
	}

	var envelope dataEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: missing data field", ErrMalformedResponse)
	}
	return envelope.Data, nil
}

// Post sends a write request with the given body and returns the raw
// response body. Used by the upload controller.
func (c *Client) Post(ctx context.Context, path, contentType string, body io.Reader) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, contentType, body)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	if c.token != "" && tokenExpired(c.token, time.Now()) {
		return nil, fmt.Errorf("%w: bearer token expired", ErrUnauthorized)
	}
	if method == "" {
		method = http.MethodGet
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		return nil, &TransportError{Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{err: fmt.Errorf("read body: %w", err)}
	}
	return raw, nil
}
