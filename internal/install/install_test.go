// SPDX-License-Identifier: MPL-2.0

package install

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// testServer serves a two-module distribution (a32nx, a380x) whose
// content can be mutated between requests, so a test can simulate the
// server publishing an update between two install runs. A second module
// is required to exercise the genuinely modular strategy — the
// orchestrator collapses a single-module distribution to a full install
// whenever its only module is touched (§4.F step 2's "every existing
// module is in updated∪removed" rule).
type testServer struct {
	mu            sync.Mutex
	moduleHash    string
	moduleContent string
	a380xHash     string
	a380xContent  string
	failA32nx     bool
}

func buildModuleZip(hash, content string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	mf, _ := w.Create("module.json")
	_, _ = mf.Write([]byte(`{"hash":"` + hash + `"}`))
	entry, _ := w.Create("aircraft.cfg")
	_, _ = entry.Write([]byte(content))
	_ = w.Close()
	return buf.Bytes()
}

func buildBaseZip() []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	entry, _ := w.Create("readme.txt")
	_, _ = entry.Write([]byte("base contents"))
	_ = w.Close()
	return buf.Bytes()
}

// buildFullZip mirrors the merged base+modules tree a real full.zip would
// contain: base files at the root, module files nested under their
// destination directory — the exact layout moveTree reproduces under
// destDir.
func buildFullZip(a32nxContent, a380xContent string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	base, _ := w.Create("readme.txt")
	_, _ = base.Write([]byte("base contents"))
	m1, _ := w.Create("a32nx/aircraft.cfg")
	_, _ = m1.Write([]byte(a32nxContent))
	m2, _ := w.Create("a380x/aircraft.cfg")
	_, _ = m2.Write([]byte(a380xContent))
	_ = w.Close()
	return buf.Bytes()
}

func (s *testServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		hash, content := s.moduleHash, s.moduleContent
		a380xHash, a380xContent := s.a380xHash, s.a380xContent
		failA32nx := s.failA32nx
		s.mu.Unlock()

		if failA32nx && r.URL.Path == "/a32nx.zip" {
			http.Error(w, "simulated server failure", http.StatusInternalServerError)
			return
		}

		switch r.URL.Path {
		case "/modules.json":
			dist := manifest.DistributionManifest{
				Version: "1.0.0",
				Base:    manifest.Base{Path: "base.zip"},
				Modules: []manifest.Module{
					&manifest.SimpleModule{
						ModuleName:    "a32nx",
						ModuleDestDir: "a32nx",
						File: manifest.DownloadFile{
							Path:             "a32nx.zip",
							Hash:             hash,
							CompleteFileSize: uint64(len(buildModuleZip(hash, content))),
						},
					},
					&manifest.SimpleModule{
						ModuleName:    "a380x",
						ModuleDestDir: "a380x",
						File: manifest.DownloadFile{
							Path:             "a380x.zip",
							Hash:             a380xHash,
							CompleteFileSize: uint64(len(buildModuleZip(a380xHash, a380xContent))),
						},
					},
				},
			}
			data, _ := json.Marshal(dist)
			_, _ = w.Write(data)
		case "/base.zip":
			_, _ = w.Write(buildBaseZip())
		case "/full.zip":
			_, _ = w.Write(buildFullZip(content, a380xContent))
		case "/a32nx.zip":
			_, _ = w.Write(buildModuleZip(hash, content))
		case "/a380x.zip":
			_, _ = w.Write(buildModuleZip(a380xHash, a380xContent))
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestServer() *testServer {
	return &testServer{
		moduleHash:    "hash-a32nx-v1",
		moduleContent: "a32nx-v1-config",
		a380xHash:     "hash-a380x-v1",
		a380xContent:  "a380x-v1-config",
	}
}

func TestRunFreshInstall(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	destDir := t.TempDir()
	in := NewInstaller(ts.URL, destDir)

	result, err := in.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Changed {
		t.Fatal("expected a fresh install to report changed=true")
	}

	got, err := os.ReadFile(filepath.Join(destDir, "a32nx", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading installed module file: %v", err)
	}
	if string(got) != "a32nx-v1-config" {
		t.Fatalf("installed content = %q, want a32nx-v1-config", got)
	}

	if _, err := os.Stat(filepath.Join(destDir, "readme.txt")); err != nil {
		t.Fatalf("base file missing after install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "install.json")); err != nil {
		t.Fatalf("install.json missing after install: %v", err)
	}

	if entry, ok := result.Manifest.ModuleByName("a32nx"); !ok || entry.VerifiedHash != "hash-a32nx-v1" {
		t.Fatalf("unexpected manifest entry: %+v", entry)
	}

	if len(result.Manifest.Base.Files) != 1 || result.Manifest.Base.Files[0] != "readme.txt" {
		t.Fatalf("Base.Files = %v, want [readme.txt]", result.Manifest.Base.Files)
	}
	onDisk, err := manifest.LoadInstallManifest(filepath.Join(destDir, "install.json"))
	if err != nil {
		t.Fatalf("loading install.json: %v", err)
	}
	if len(onDisk.Base.Files) != 1 || onDisk.Base.Files[0] != "readme.txt" {
		t.Fatalf("install.json base.files = %v, want [readme.txt]", onDisk.Base.Files)
	}
}

func TestRunNoopWhenUnchanged(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	destDir := t.TempDir()
	in := NewInstaller(ts.URL, destDir)

	if _, err := in.Run(t.Context()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	result, err := in.Run(t.Context())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if result.Changed {
		t.Fatal("expected second run against an unchanged distribution to report changed=false")
	}
}

// TestRunAppliesModularUpdate updates only a380x, leaving a32nx installed
// but untouched — since a32nx is not in updated∪removed, the orchestrator
// takes the modular branch rather than collapsing to a full install, and
// a32nx's backed-up directory must come back unmodified.
func TestRunAppliesModularUpdate(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	destDir := t.TempDir()
	in := NewInstaller(ts.URL, destDir)

	if _, err := in.Run(t.Context()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	srv.mu.Lock()
	srv.a380xHash = "hash-a380x-v2"
	srv.a380xContent = "a380x-v2-config"
	srv.mu.Unlock()

	result, err := in.Run(t.Context())
	if err != nil {
		t.Fatalf("update Run() error = %v", err)
	}
	if !result.Changed {
		t.Fatal("expected the module update to report changed=true")
	}

	gotA380x, err := os.ReadFile(filepath.Join(destDir, "a380x", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading updated module file: %v", err)
	}
	if string(gotA380x) != "a380x-v2-config" {
		t.Fatalf("updated content = %q, want a380x-v2-config", gotA380x)
	}

	gotA32nx, err := os.ReadFile(filepath.Join(destDir, "a32nx", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading untouched module file: %v", err)
	}
	if string(gotA32nx) != "a32nx-v1-config" {
		t.Fatalf("untouched module content changed: got %q", gotA32nx)
	}

	a380xEntry, ok := result.Manifest.ModuleByName("a380x")
	if !ok || a380xEntry.VerifiedHash != "hash-a380x-v2" {
		t.Fatalf("a380x manifest entry not updated: %+v", a380xEntry)
	}
	a32nxEntry, ok := result.Manifest.ModuleByName("a32nx")
	if !ok || a32nxEntry.VerifiedHash != "hash-a32nx-v1" {
		t.Fatalf("a32nx manifest entry should be unchanged: %+v", a32nxEntry)
	}

	if _, err := os.Stat(filepath.Join(destDir, "readme.txt")); err != nil {
		t.Fatalf("base file missing after modular update: %v", err)
	}

	if len(result.Manifest.Base.Files) != 1 || result.Manifest.Base.Files[0] != "readme.txt" {
		t.Fatalf("Base.Files after modular update = %v, want [readme.txt]", result.Manifest.Base.Files)
	}
}

// TestRunRetryExhaustionRestoresBackup exercises scenario S6 with the
// full-install fallback disabled: a32nx's fragment endpoint fails on every
// attempt, the per-module retry loop exhausts, and since there is nowhere
// to fall back to, Run must restore destDir to exactly its pre-run state
// rather than leave a partially-applied update on disk.
func TestRunRetryExhaustionRestoresBackup(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	destDir := t.TempDir()
	in := NewInstaller(ts.URL, destDir, WithMaxModuleRetries(1), WithDisableFallbackToFull(true))

	if _, err := in.Run(t.Context()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	wantA32nx, err := os.ReadFile(filepath.Join(destDir, "a32nx", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading pre-run a32nx content: %v", err)
	}
	wantInstallJSON, err := os.ReadFile(filepath.Join(destDir, "install.json"))
	if err != nil {
		t.Fatalf("reading pre-run install.json: %v", err)
	}

	srv.mu.Lock()
	srv.moduleHash = "hash-a32nx-v2"
	srv.moduleContent = "a32nx-v2-config"
	srv.failA32nx = true
	srv.mu.Unlock()

	_, err = in.Run(t.Context())
	if err == nil {
		t.Fatal("expected Run() to fail once retries are exhausted with fallback disabled")
	}
	if code := ferr.CodeOf(err); code != ferr.MaxModuleRetries {
		t.Fatalf("Run() error code = %v, want MaxModuleRetries", code)
	}

	gotA32nx, err := os.ReadFile(filepath.Join(destDir, "a32nx", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading a32nx content after restore: %v", err)
	}
	if string(gotA32nx) != string(wantA32nx) {
		t.Fatalf("a32nx content after failed update = %q, want restored %q", gotA32nx, wantA32nx)
	}

	gotInstallJSON, err := os.ReadFile(filepath.Join(destDir, "install.json"))
	if err != nil {
		t.Fatalf("reading install.json after restore: %v", err)
	}
	if string(gotInstallJSON) != string(wantInstallJSON) {
		t.Fatalf("install.json after failed update was not restored bit-for-bit")
	}
}

// TestRunRetryExhaustionFallsBackToFullInstall exercises scenario S6 with
// the default fallback behavior: the same exhausted a32nx retry loop, but
// since disableFallbackToFull is false the orchestrator recovers by
// downloading the full fragment instead of failing the run.
func TestRunRetryExhaustionFallsBackToFullInstall(t *testing.T) {
	srv := newTestServer()
	ts := httptest.NewServer(srv.handler())
	defer ts.Close()

	destDir := t.TempDir()
	in := NewInstaller(ts.URL, destDir, WithMaxModuleRetries(1))

	if _, err := in.Run(t.Context()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	srv.mu.Lock()
	srv.moduleHash = "hash-a32nx-v2"
	srv.moduleContent = "a32nx-v2-config"
	srv.failA32nx = true
	srv.mu.Unlock()

	result, err := in.Run(t.Context())
	if err != nil {
		t.Fatalf("Run() with fallback enabled should recover via full install, got error: %v", err)
	}
	if !result.Changed {
		t.Fatal("expected the fallback full install to report changed=true")
	}

	gotA32nx, err := os.ReadFile(filepath.Join(destDir, "a32nx", "aircraft.cfg"))
	if err != nil {
		t.Fatalf("reading a32nx content after fallback: %v", err)
	}
	if string(gotA32nx) != "a32nx-v2-config" {
		t.Fatalf("a32nx content after fallback = %q, want a32nx-v2-config", gotA32nx)
	}
}
