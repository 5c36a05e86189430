// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/internal/fragment"
	"github.com/flybywiresim/fragmenter/internal/sink"
	"github.com/flybywiresim/fragmenter/internal/transfer"
	"github.com/flybywiresim/fragmenter/pkg/fraghash"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// moduleDestDirSet returns the set of destination directory names owned by
// modules across both manifests, so the orchestrator can tell a base
// entry apart from a module entry when partitioning a backup (§4.F step 5:
// everything under destDir that isn't a module's destDir belongs to the
// base fragment).
func moduleDestDirSet(dist *manifest.DistributionManifest, existing *manifest.InstallManifest) map[string]bool {
	set := map[string]bool{}
	if dist != nil {
		for _, m := range dist.Modules {
			set[m.DestDir()] = true
		}
	}
	if existing != nil {
		for _, m := range existing.Modules {
			set[m.Module.DestDir()] = true
		}
	}
	return set
}

// applyFullInstall replaces destDir entirely with the full fragment: one
// transfer, one extraction, one move of every file into destDir. It
// returns the relative paths of the files the full fragment leaves
// outside every module's destDir — i.e. the base fragment's own file
// list (§3's Base.Files), computed from the extracted tree rather than
// trusted blindly off the wire, since a full install has no separate
// base download to derive it from.
func (in *Installer) applyFullInstall(ctx context.Context, dist *manifest.DistributionManifest, tempDir, destDir string) ([]string, error) {
	sk := in.cfg.Sink

	file := manifest.DownloadFile{
		Path:                         "full.zip",
		Hash:                         dist.FullHash,
		SplitFileCount:               dist.FullSplitFileCount,
		CompleteFileSize:             dist.FullCompleteFileSize,
		CompleteFileSizeUncompressed: dist.FullCompleteFileSizeUncompressed,
	}

	zipPath, err := transfer.DownloadModule(ctx, in.client, sk, transfer.ModuleRequest{
		ModuleName: "full",
		File:       file,
		BaseURL:    in.source,
		FullHash:   dist.FullHash,
		CacheBust:  in.cfg.ForceCacheBust,
	}, filepath.Join(tempDir, "download"))
	if err != nil {
		return nil, err
	}

	extractDir := filepath.Join(tempDir, "extract", "full")
	absExtractDir, err := fragment.ExtractOnly(zipPath, extractDir, "full", sk)
	if err != nil {
		return nil, err
	}

	if dist.FullHash != "" {
		got, err := fraghash.TreeHash(absExtractDir)
		if err != nil {
			return nil, fmt.Errorf("hashing extracted full fragment: %w", err)
		}
		if !fraghash.Equal(got, dist.FullHash) {
			return nil, ferr.New(ferr.ModuleCrcMismatch, "verifying full fragment hash").
				WithResource(fmt.Sprintf("got %s, want %s", got, dist.FullHash))
		}
	}

	baseFiles, err := baseFilesUnder(absExtractDir, moduleDestDirSet(dist, nil))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}
	if err := moveTree(sk, "full", absExtractDir, destDir); err != nil {
		return nil, err
	}
	return baseFiles, nil
}

// applyBaseChanged transfers and extracts the base fragment and moves its
// files into destDir, verifying the extracted tree's content hash. It
// returns the relative paths extracted, which is exactly the file list
// the resulting install manifest must record as Base.Files.
func (in *Installer) applyBaseChanged(ctx context.Context, base manifest.Base, tempDir, destDir string) ([]string, error) {
	sk := in.cfg.Sink

	file := manifest.DownloadFile{
		Path:                         base.Path,
		Hash:                         base.Hash,
		SplitFileCount:               base.SplitFileCount,
		CompleteFileSize:             base.CompleteFileSize,
		CompleteFileSizeUncompressed: base.CompleteFileSizeUncompressed,
	}

	zipPath, err := transfer.DownloadModule(ctx, in.client, sk, transfer.ModuleRequest{
		ModuleName: "base",
		File:       file,
		BaseURL:    in.source,
		CacheBust:  in.cfg.ForceCacheBust,
	}, filepath.Join(tempDir, "download"))
	if err != nil {
		return nil, err
	}

	extractDir := filepath.Join(tempDir, "extract", "base")
	absExtractDir, err := fragment.ExtractOnly(zipPath, extractDir, "base", sk)
	if err != nil {
		return nil, err
	}

	if base.Hash != "" {
		got, err := fraghash.TreeHash(absExtractDir)
		if err != nil {
			return nil, fmt.Errorf("hashing extracted base fragment: %w", err)
		}
		if !fraghash.Equal(got, base.Hash) {
			return nil, ferr.New(ferr.ModuleCrcMismatch, "verifying base fragment hash").
				WithResource(fmt.Sprintf("got %s, want %s", got, base.Hash))
		}
	}

	baseFiles, err := listFiles(absExtractDir)
	if err != nil {
		return nil, err
	}

	if err := moveTree(sk, "base", absExtractDir, destDir); err != nil {
		return nil, err
	}
	return baseFiles, nil
}

// baseFilesUnder lists every file under root not rooted in one of
// moduleDirs, used when a single extracted tree (the full fragment)
// mixes base files with every module's files and the base's own file
// list has to be separated out.
func baseFilesUnder(root string, moduleDirs map[string]bool) ([]string, error) {
	all, err := listFiles(root)
	if err != nil {
		return nil, err
	}
	baseFiles := all[:0]
	for _, rel := range all {
		first := rel
		if idx := strings.IndexByte(rel, filepath.Separator); idx != -1 {
			first = rel[:idx]
		}
		if !moduleDirs[first] {
			baseFiles = append(baseFiles, rel)
		}
	}
	return baseFiles, nil
}

// downloadAndInstallModule runs the per-module retry loop (§4.F, §8
// property 5): download, decompress, move, retrying the whole cycle up to
// maxModuleRetries times with 2^retryCount second backoff between
// attempts. Returns the resolved file's hash (recorded as VerifiedHash)
// and the chosen alternative key, if any.
func (in *Installer) downloadAndInstallModule(ctx context.Context, m manifest.Module, fullHash string, moduleIndex int, tempDir, destDir string) (verifiedHash, chosenKey string, err error) {
	sk := in.cfg.Sink
	chosenKey = in.cfg.ModuleAlternativesMap[m.Name()]

	file, err := manifest.ResolveDownloadFile(m, chosenKey)
	if err != nil {
		return "", "", err
	}

	var lastErr error
	for retryCount := 0; retryCount < in.cfg.MaxModuleRetries; retryCount++ {
		if retryCount > 0 {
			wait := 1 << retryCount
			sk.OnRetryScheduled(sink.RetryScheduled{Module: m.Name(), RetryCount: retryCount, WaitSeconds: wait})
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", "", ferr.Classify("installing module "+m.Name(), ctxErr)
			}
			time.Sleep(time.Duration(wait) * time.Second)
			sk.OnRetryStarted(m.Name(), retryCount)
		}

		sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseInstallModuleDownload, Module: m.Name(), ModuleIndex: moduleIndex})
		zipPath, dlErr := transfer.DownloadModule(ctx, in.client, sk, transfer.ModuleRequest{
			ModuleName: m.Name(),
			File:       file,
			BaseURL:    in.source,
			FullHash:   fullHash,
			RetryCount: retryCount,
			CacheBust:  in.cfg.ForceCacheBust,
		}, filepath.Join(tempDir, "download"))
		if dlErr != nil {
			if !ferr.Recoverable(dlErr) {
				return "", "", dlErr
			}
			lastErr = dlErr
			continue
		}

		sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseInstallModuleDecompress, Module: m.Name(), ModuleIndex: moduleIndex})
		stageDir := filepath.Join(tempDir, "extract", m.Name())
		if extractErr := fragment.Extract(zipPath, stageDir, file.Hash, m.Name(), sk); extractErr != nil {
			if !ferr.Recoverable(extractErr) {
				return "", "", extractErr
			}
			lastErr = extractErr
			continue
		}

		if err := moveTree(sk, m.Name(), stageDir, filepath.Join(destDir, m.DestDir())); err != nil {
			return "", "", err
		}

		return file.Hash, chosenKey, nil
	}

	if lastErr == nil {
		lastErr = ferr.New(ferr.Unknown, "installing module "+m.Name())
	}
	return "", "", ferr.Wrap(ferr.MaxModuleRetries, "installing module", lastErr).WithResource(m.Name())
}
