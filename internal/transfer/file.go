// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/internal/sink"
)

// fileDownloadRetries is the retry ceiling of the File Downloader's
// resume loop (§4.B), distinct from the orchestrator's own
// maxModuleRetries — this one governs resuming a single HTTP transfer,
// not re-attempting a whole module.
const fileDownloadRetries = 5

// Download drives a complete file download to destPath: probe range
// support via HEAD, then loop the Stream Downloader — resuming from the
// last received byte when the server supports ranges, restarting from
// zero otherwise — until the expected size is reached or the retry
// ceiling is exhausted.
func Download(ctx context.Context, client *Client, sk sink.Sink, moduleName, url, destPath string, expectedSize int64) (int64, error) {
	probe, err := client.Head(ctx, url)
	if err != nil {
		return 0, err
	}

	total := probe.ContentLength
	if total <= 0 {
		total = expectedSize
	}

	var accumulated []byte
	var lastErr error

	for attempt := 0; attempt < fileDownloadRetries; attempt++ {
		if attempt > 0 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ferr.Classify("file download", ctxErr)
			}
			sk.OnDownloadInterrupted(moduleName, false)
			time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}

		offset := int64(0)
		if probe.AcceptsRanges {
			offset = int64(len(accumulated))
		} else {
			accumulated = nil
		}

		result, streamErr := client.Stream(ctx, url, offset, func(bytesSoFar int64) {
			sk.OnDownloadProgress(sink.DownloadProgress{Module: moduleName, Loaded: bytesSoFar, Total: total})
		})
		if probe.AcceptsRanges {
			accumulated = append(accumulated, result.Data...)
		} else {
			accumulated = result.Data
		}

		if streamErr == nil {
			if total <= 0 || int64(len(accumulated)) >= total {
				if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
					return 0, fmt.Errorf("creating download directory: %w", err)
				}
				if err := os.WriteFile(destPath, accumulated, 0o644); err != nil {
					return 0, fmt.Errorf("writing %s: %w", destPath, err)
				}
				return int64(len(accumulated)), nil
			}
			lastErr = ferr.New(ferr.DownloadStreamClosed, "file download").WithResource(destPath)
			continue
		}

		if !ferr.Recoverable(streamErr) {
			return 0, streamErr
		}
		lastErr = streamErr
	}

	if lastErr == nil {
		return 0, ferr.New(ferr.MaxModuleRetries, "file download").WithResource(destPath)
	}
	return 0, ferr.Wrap(ferr.MaxModuleRetries, "file download", lastErr).WithResource(destPath)
}
