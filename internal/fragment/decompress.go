// SPDX-License-Identifier: MPL-2.0

// Package fragment implements the Module Decompressor (§4.D): extracting a
// downloaded fragment ZIP into a staging directory, then verifying its
// embedded module.json hash against the hash expected from the
// distribution manifest.
package fragment

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/internal/sink"
)

// moduleManifest is the { "hash": <hex> } document every fragment embeds
// at its root so the client can verify the extracted tree without
// recomputing a content hash expensive enough to matter.
type moduleManifest struct {
	Hash string `json:"hash"`
}

// Extract unpacks the ZIP at zipPath into destDir, emitting an
// UnzipProgress event per entry, then reads destDir/module.json and
// compares its hash against expectedHash.
func Extract(zipPath, destDir string, expectedHash, moduleName string, sk sink.Sink) error {
	absDestDir, err := ExtractOnly(zipPath, destDir, moduleName, sk)
	if err != nil {
		return err
	}
	return Verify(absDestDir, expectedHash)
}

// ExtractOnly unpacks the ZIP at zipPath into destDir, emitting an
// UnzipProgress event per entry, and returns the resolved absolute
// destination directory without reading or verifying module.json. The
// base fragment has no module.json (it is not a module), so the
// orchestrator extracts it with this and verifies the resulting tree with
// fraghash.TreeHash instead.
func ExtractOnly(zipPath, destDir, moduleName string, sk sink.Sink) (string, error) {
	sk.OnUnzipStarted(moduleName)

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", ferr.Classify("opening fragment archive", err)
	}
	defer func() { _ = reader.Close() }()

	absDestDir, err := filepath.Abs(destDir)
	if err != nil {
		return "", fmt.Errorf("resolving destination directory: %w", err)
	}
	if err := os.MkdirAll(absDestDir, 0o755); err != nil {
		return "", fmt.Errorf("creating destination directory: %w", err)
	}

	entryCount := len(reader.File)
	for i, file := range reader.File {
		if err := extractEntry(file, absDestDir); err != nil {
			return "", ferr.Classify("extracting fragment entry", err)
		}
		sk.OnUnzipProgress(sink.UnzipProgress{
			Module:     moduleName,
			EntryIndex: i + 1,
			EntryName:  file.Name,
			EntryCount: entryCount,
		})
	}

	sk.OnUnzipFinished(moduleName)

	return absDestDir, nil
}

// extractEntry extracts a single ZIP entry to its place under destDir,
// rejecting any entry whose name would resolve outside of destDir.
func extractEntry(file *zip.File, destDir string) error {
	destPath := filepath.Join(destDir, filepath.FromSlash(file.Name))

	rel, err := filepath.Rel(destDir, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("fragment entry %q escapes destination directory", file.Name)
	}

	if file.FileInfo().IsDir() {
		return os.MkdirAll(destPath, file.Mode())
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", file.Name, err)
	}

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", file.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, file.Mode())
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("writing %s: %w", destPath, err)
	}

	return nil
}

// Verify reads destDir/module.json and compares its embedded hash against
// expectedHash. A missing or malformed manifest is ModuleJsonInvalid; a
// present but mismatched hash is ModuleCrcMismatch.
func Verify(destDir, expectedHash string) error {
	manifestPath := filepath.Join(destDir, "module.json")

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return ferr.Wrap(ferr.ModuleJsonInvalid, "reading fragment module.json", err).WithResource(manifestPath)
	}

	var mm moduleManifest
	if err := json.Unmarshal(data, &mm); err != nil || mm.Hash == "" {
		return ferr.Wrap(ferr.ModuleJsonInvalid, "parsing fragment module.json", err).WithResource(manifestPath)
	}

	if !strings.EqualFold(mm.Hash, expectedHash) {
		return ferr.New(ferr.ModuleCrcMismatch, "verifying fragment hash").
			WithResource(fmt.Sprintf("%s: got %s, want %s", destDir, mm.Hash, expectedHash))
	}

	return nil
}
