// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flybywiresim/fragmenter/internal/ferr"
)

func newRequest(ctx context.Context, method, url, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// StreamResult is the outcome of one ranged GET: every chunk read from the
// response body, concatenated, and how many bytes that totals.
type StreamResult struct {
	Data         []byte
	BytesWritten int64
}

// Stream issues a single GET with Range: bytes=offset- (the header is
// omitted when offset is 0), and reads the full body into memory,
// invoking onChunk after each read so callers can report progress. It
// makes exactly one attempt — retrying a stream is the File Downloader's
// job (component B), not this one's.
func (c *Client) Stream(ctx context.Context, url string, offset int64, onChunk func(bytesSoFar int64)) (StreamResult, error) {
	req, err := newRequest(ctx, http.MethodGet, url, c.userAgent)
	if err != nil {
		return StreamResult{}, err
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return StreamResult{}, ferr.Classify("stream download", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return StreamResult{}, ferr.New(ferr.NetworkError, "stream download").
			WithResource(fmt.Sprintf("%s (status %d)", redact(url), resp.StatusCode))
	}

	var buf []byte
	chunk := make([]byte, 64*1024)
	total := offset
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			total += int64(n)
			if onChunk != nil {
				onChunk(total)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return StreamResult{Data: buf, BytesWritten: int64(len(buf))}, ferr.Classify("stream download", readErr)
		}
	}

	return StreamResult{Data: buf, BytesWritten: int64(len(buf))}, nil
}
