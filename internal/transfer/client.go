// SPDX-License-Identifier: MPL-2.0

// Package transfer implements the range-resumable fragment download
// pipeline: one ranged GET (Stream), a complete-file retry loop over it
// (File), and module-level selection, URL decoration, and split-part
// reassembly (Module) — components A, B, and C.
package transfer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "fragmenter/dev"

// Client performs the HTTP calls the transfer pipeline needs: HEAD to
// probe size and range support, and ranged GET to stream a byte range.
// It is injected everywhere rather than reaching for http.DefaultClient,
// matching this repository's convention for HTTP collaborators.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client, useful for tests
// or for callers that need a custom idle/response-header timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithUserAgent overrides the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// NewClient builds a Client with a default *http.Client carrying a sane
// idle-connection timeout (§6), overridable via WithHTTPClient.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				IdleConnTimeout: 90 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Probe is the result of a HEAD request: the advertised content length
// (-1 if absent) and whether the server supports byte ranges.
type Probe struct {
	ContentLength int64
	AcceptsRanges bool
}

// Head issues a HEAD request and reports content length and range support.
func (c *Client) Head(ctx context.Context, url string) (Probe, error) {
	req, err := newRequest(ctx, http.MethodHead, url, c.userAgent)
	if err != nil {
		return Probe{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Probe{}, fmt.Errorf("probing %s: %w", redact(url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Probe{}, fmt.Errorf("probing %s: unexpected status %d", redact(url), resp.StatusCode)
	}

	return Probe{
		ContentLength: resp.ContentLength,
		AcceptsRanges: strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes"),
	}, nil
}

// redact strips query parameters from a URL before it appears in an error
// message, since §4.C decorates every request URL with cache-key params.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
