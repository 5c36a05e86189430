// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/internal/sink"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// ModuleRequest describes one fragment to fetch: its resolved download
// file, the URL it lives under, and retry/caching context used to
// decorate the request URL (§4.C).
type ModuleRequest struct {
	ModuleName string
	File       manifest.DownloadFile
	BaseURL    string
	FullHash   string
	RetryCount int
	CacheBust  bool
}

// DownloadModule fetches a module's fragment — as a single file or as
// ordered split parts reassembled by concatenation — into
// destDir/<moduleName>.zip, and returns the path to the resulting ZIP. An
// empty File.Path is fetched as <moduleName>.zip, or as
// <moduleName>/<key>.zip when the file carries an alternative key.
func DownloadModule(ctx context.Context, client *Client, sk sink.Sink, req ModuleRequest, destDir string) (string, error) {
	zipPath := filepath.Join(destDir, req.ModuleName+".zip")
	if req.File.Path == "" {
		req.File.Path = req.ModuleName + ".zip"
		if req.File.Key != "" {
			req.File.Path = req.ModuleName + "/" + req.File.Key + ".zip"
		}
	}

	sk.OnDownloadStarted(req.ModuleName)

	if req.File.SplitFileCount <= 1 {
		url := decorateURL(joinURL(req.BaseURL, req.File.Path), req)
		if _, err := Download(ctx, client, sk, req.ModuleName, url, zipPath, int64(req.File.CompleteFileSize)); err != nil {
			return "", err
		}
		sk.OnDownloadFinished(req.ModuleName)
		return zipPath, nil
	}

	if err := downloadSplitParts(ctx, client, sk, req, zipPath); err != nil {
		return "", err
	}
	sk.OnDownloadFinished(req.ModuleName)
	return zipPath, nil
}

// downloadSplitParts fetches every part strictly in ascending index
// order, writes each to a temp file, and appends it onto zipPath before
// deleting the part — so the growing zipPath never contains more than
// one unmerged part at a time.
func downloadSplitParts(ctx context.Context, client *Client, sk sink.Sink, req ModuleRequest, zipPath string) error {
	width := len(fmt.Sprintf("%d", req.File.SplitFileCount))

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", zipPath, err)
	}
	defer func() { _ = out.Close() }()

	var loadedSoFar int64
	total := int64(req.File.CompleteFileSize)

	for idx := uint32(1); idx <= req.File.SplitFileCount; idx++ {
		partSuffix := fmt.Sprintf(".sf-part%0*d", width, idx)
		partURL := decorateURL(joinURL(req.BaseURL, req.File.Path+partSuffix), req)
		partTmp := zipPath + fmt.Sprintf(".fg-tmp%0*d", width, idx)

		partLoaded := loadedSoFar
		if _, err := Download(ctx, client, sk, req.ModuleName, partURL, partTmp, 0); err != nil {
			return err
		}

		partFile, err := os.Open(partTmp)
		if err != nil {
			return fmt.Errorf("opening downloaded part %s: %w", partTmp, err)
		}

		n, copyErr := io.Copy(out, partFile)
		_ = partFile.Close()
		_ = os.Remove(partTmp)
		if copyErr != nil {
			return ferr.Wrap(ferr.DownloadStreamClosed, "merging split fragment part", copyErr).WithResource(zipPath)
		}

		loadedSoFar = partLoaded + n
		sk.OnDownloadProgress(sink.DownloadProgress{
			Module:    req.ModuleName,
			Loaded:    loadedSoFar,
			Total:     total,
			PartIndex: int(idx),
			NumParts:  int(req.File.SplitFileCount),
		})
	}

	return nil
}

// decorateURL appends the informational cache-key parameters (§4.C):
// moduleHash and fullHash truncated to 8 hex characters, plus retry and
// cache-busting parameters when applicable. The server-side CDN may use
// these; the client never parses them back out.
func decorateURL(rawURL string, req ModuleRequest) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	decorated := fmt.Sprintf("%s%smoduleHash=%s&fullHash=%s", rawURL, sep, truncateHash(req.File.Hash), truncateHash(req.FullHash))
	if req.RetryCount > 0 {
		decorated += fmt.Sprintf("&retry=%d", req.RetryCount)
	}
	if req.CacheBust {
		decorated += fmt.Sprintf("&cache=%d", rand.Int63()) //nolint:gosec // cache-busting query param, not a security control
	}
	return decorated
}

func truncateHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
