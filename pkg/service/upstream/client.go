package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrTagUpstreamStatus marks a non-2xx response from an upstream API
	ErrTagUpstreamStatus = goerr.NewTag("upstream_status")
	// ErrTagUpstreamRequest marks a network level failure
	ErrTagUpstreamRequest = goerr.NewTag("upstream_request")
	// ErrTagUpstreamDecode marks an undecodable response body
	ErrTagUpstreamDecode = goerr.NewTag("upstream_decode")
)

// maxBodySize bounds upstream response bodies read into memory
const maxBodySize = 8 << 20

// Client issues GET requests against third-party threat-intel APIs
type Client struct {
	httpClient *http.Client
}

// Option configures Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets a per-request timeout. Zero keeps the client default.
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.httpClient = &http.Client{
				Transport: client.httpClient.Transport,
				Timeout:   d,
			}
		}
	}
}

// New creates a new upstream client
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRaw performs a GET request and returns the raw response body. A non-2xx
// status is returned as an error tagged with ErrTagUpstreamStatus.
func (c *Client) GetRaw(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create upstream request",
			goerr.T(ErrTagUpstreamRequest))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "upstream request failed",
			goerr.T(ErrTagUpstreamRequest),
			goerr.V("host", req.URL.Host),
			goerr.V("path", req.URL.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, goerr.New("upstream API returned error status",
			goerr.T(ErrTagUpstreamStatus),
			goerr.V("status", resp.StatusCode),
			goerr.V("host", req.URL.Host),
			goerr.V("path", req.URL.Path))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read upstream response",
			goerr.T(ErrTagUpstreamRequest),
			goerr.V("host", req.URL.Host))
	}

	return body, nil
}

// GetJSON performs a GET request and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.GetRaw(ctx, url, headers)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return goerr.Wrap(err, "failed to decode upstream response",
			goerr.T(ErrTagUpstreamDecode))
	}
	return nil
}
