// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flybywiresim/fragmenter/internal/ferr"
)

// Get performs a single, non-resumable GET and returns the full response
// body. It is used for small documents — the distribution manifest — that
// don't warrant the File Downloader's range-resume machinery.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := newRequest(ctx, http.MethodGet, url, c.userAgent)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ferr.Classify("fetching "+redact(url), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", redact(url), resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ferr.Classify("reading response body for "+redact(url), err)
	}
	return data, nil
}
