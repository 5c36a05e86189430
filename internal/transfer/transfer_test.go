// SPDX-License-Identifier: MPL-2.0

package transfer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/flybywiresim/fragmenter/internal/sink"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

func TestDownloadSingleFile(t *testing.T) {
	t.Parallel()

	const payload = "hello fragment"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewClient()
	dest := filepath.Join(t.TempDir(), "out.bin")

	n, err := Download(context.Background(), client, sink.NopSink{}, "mod", srv.URL, dest, int64(len(payload)))
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("Download() = %d bytes, want %d", n, len(payload))
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("downloaded content = %q, want %q", got, payload)
	}
}

func TestDownloadResumesWithRange(t *testing.T) {
	t.Parallel()

	const payload = "0123456789abcdef"
	var attempts int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			return
		}

		attempts++
		rangeHeader := r.Header.Get("Range")
		if attempts == 1 {
			// Simulate a truncated first attempt: write half the body then
			// close the connection without completing it.
			offset := 0
			if rangeHeader != "" {
				offset = parseRangeOffset(t, rangeHeader)
			}
			half := len(payload) / 2
			_, _ = w.Write([]byte(payload[offset:half]))
			if hijacker, ok := w.(http.Hijacker); ok {
				conn, _, _ := hijacker.Hijack()
				_ = conn.Close()
			}
			return
		}

		offset := 0
		if rangeHeader != "" {
			offset = parseRangeOffset(t, rangeHeader)
		}
		_, _ = w.Write([]byte(payload[offset:]))
	}))
	defer srv.Close()

	client := NewClient()
	dest := filepath.Join(t.TempDir(), "out.bin")

	n, err := Download(context.Background(), client, sink.NopSink{}, "mod", srv.URL, dest, int64(len(payload)))
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("Download() = %d bytes, want %d", n, len(payload))
	}
}

func parseRangeOffset(t *testing.T, header string) int {
	t.Helper()
	// Format: "bytes=<start>-"
	trimmed := strings.TrimPrefix(header, "bytes=")
	trimmed = strings.TrimSuffix(trimmed, "-")
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		t.Fatalf("parsing range header %q: %v", header, err)
	}
	return n
}

func TestDownloadModuleSingleFile(t *testing.T) {
	t.Parallel()

	const payload = "zip-bytes"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			return
		}
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	client := NewClient()
	destDir := t.TempDir()

	req := ModuleRequest{
		ModuleName: "a32nx",
		File:       manifest.DownloadFile{Path: "a32nx.zip", Hash: "deadbeefdeadbeef", CompleteFileSize: uint64(len(payload))},
		BaseURL:    srv.URL,
		FullHash:   "cafebabecafebabe",
	}

	zipPath, err := DownloadModule(context.Background(), client, sink.NopSink{}, req, destDir)
	if err != nil {
		t.Fatalf("DownloadModule() error = %v", err)
	}

	got, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("reading downloaded module: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("module content = %q, want %q", got, payload)
	}
}

func TestDownloadModuleSplitParts(t *testing.T) {
	t.Parallel()

	parts := []string{"AAAA", "BBBB", "CC"}
	full := strings.Join(parts, "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		var idx int
		switch {
		case strings.HasSuffix(path, "sf-part01"):
			idx = 0
		case strings.HasSuffix(path, "sf-part02"):
			idx = 1
		case strings.HasSuffix(path, "sf-part03"):
			idx = 2
		default:
			t.Fatalf("unexpected request path %q", path)
		}

		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(parts[idx])))
			return
		}
		_, _ = w.Write([]byte(parts[idx]))
	}))
	defer srv.Close()

	client := NewClient()
	destDir := t.TempDir()

	req := ModuleRequest{
		ModuleName: "bigmod",
		File: manifest.DownloadFile{
			Path:             "bigmod.zip",
			Hash:             "deadbeefdeadbeef",
			SplitFileCount:   3,
			CompleteFileSize: uint64(len(full)),
		},
		BaseURL:  srv.URL,
		FullHash: "cafebabecafebabe",
	}

	zipPath, err := DownloadModule(context.Background(), client, sink.NopSink{}, req, destDir)
	if err != nil {
		t.Fatalf("DownloadModule() error = %v", err)
	}

	got, err := os.ReadFile(zipPath)
	if err != nil {
		t.Fatalf("reading merged module: %v", err)
	}
	if string(got) != full {
		t.Fatalf("merged content = %q, want %q", got, full)
	}

	entries, err := os.ReadDir(destDir)
	if err != nil {
		t.Fatalf("reading dest dir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "fg-tmp") {
			t.Fatalf("leftover part temp file %q was not cleaned up", e.Name())
		}
	}
}

func TestDecorateURLAppendsCacheKeyParams(t *testing.T) {
	t.Parallel()

	req := ModuleRequest{
		File:     manifest.DownloadFile{Hash: "0123456789abcdef"},
		FullHash: "fedcba9876543210",
	}

	got := decorateURL("https://cdn.example/base/mod.zip", req)
	if !strings.Contains(got, "moduleHash=01234567") || !strings.Contains(got, "fullHash=fedcba98") {
		t.Fatalf("decorated URL missing truncated hash params: %s", got)
	}

	req.RetryCount = 2
	got = decorateURL("https://cdn.example/base/mod.zip", req)
	if !strings.Contains(got, "retry=2") {
		t.Fatalf("decorated URL missing retry param: %s", got)
	}
}
