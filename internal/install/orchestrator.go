// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/internal/plan"
	"github.com/flybywiresim/fragmenter/internal/sink"
	"github.com/flybywiresim/fragmenter/internal/transfer"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

// Installer drives one run of the state machine described in §4.F: update
// check, backup, apply (full or modular), and finish-or-restore.
type Installer struct {
	source  string
	destDir string
	cfg     Config
	client  *transfer.Client
}

// NewInstaller builds an Installer for the distribution at source, applied
// to destDir, configured by opts.
func NewInstaller(source, destDir string, opts ...Option) *Installer {
	return &Installer{
		source:  source,
		destDir: destDir,
		cfg:     NewConfig(opts...),
		client:  transfer.NewClient(),
	}
}

// Result is what Run returns on success: whether anything changed on disk,
// and the manifest now describing destDir (the pre-existing one when
// nothing changed).
type Result struct {
	Changed  bool
	Manifest manifest.InstallManifest
}

// Run executes the full state machine against destDir. It always removes
// its temporary directory before returning, successfully or not (§8
// property 7), and restores the pre-run tree from backup if it fails after
// backupStarted (§8 property 4).
func (in *Installer) Run(ctx context.Context) (*Result, error) {
	sk := in.cfg.Sink
	installPath := filepath.Join(in.destDir, "install.json")

	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseUpdateCheck, ModuleIndex: -1})

	fetcher := manifestFetcher{client: in.client, source: in.source, cacheBust: in.cfg.ForceManifestCacheBust}
	p, err := plan.Compute(ctx, fetcher, plan.Options{
		DestDir:               in.destDir,
		AlternativesMap:       in.cfg.ModuleAlternativesMap,
		ForceFullInstallRatio: in.cfg.ForceFullInstallRatio,
	})
	if err != nil {
		return nil, err
	}

	if p.IsNoop() {
		existing, err := manifest.LoadInstallManifest(installPath)
		if err != nil {
			return nil, fmt.Errorf("loading unchanged install manifest: %w", err)
		}
		return &Result{Changed: false, Manifest: *existing}, nil
	}

	var existing *manifest.InstallManifest
	if !p.IsFreshInstall {
		existing, err = manifest.LoadInstallManifest(installPath)
		if err != nil {
			return nil, fmt.Errorf("loading existing install manifest: %w", err)
		}
	}

	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseInstallBegin, ModuleIndex: -1})

	tempDir, err := in.ensureTempDir()
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	backupDir := filepath.Join(tempDir, "restore")
	preRun := map[string]bool{}
	if entries, readErr := os.ReadDir(in.destDir); readErr == nil {
		for _, e := range entries {
			preRun[e.Name()] = true
		}
	}
	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseBackupStarted, ModuleIndex: -1})
	if err := backup(in.destDir, backupDir); err != nil {
		return nil, fmt.Errorf("backing up destination: %w", err)
	}
	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseBackupFinished, ModuleIndex: -1})

	full := p.IsFreshInstall || in.cfg.ForceFreshInstall || p.WillFullyReDownload || allExistingTouched(p, existing)

	var im manifest.InstallManifest
	if full {
		im, err = in.runFullStrategy(ctx, p, tempDir)
	} else {
		im, err = in.runModularStrategy(ctx, p, existing, tempDir, backupDir)
		if err != nil {
			// Hand pre-run entries already restored from backupDir back to it, so it again holds the whole pre-run tree.
			for name := range preRun {
				if _, statErr := os.Stat(filepath.Join(backupDir, name)); os.IsNotExist(statErr) {
					_ = os.Rename(filepath.Join(in.destDir, name), filepath.Join(backupDir, name))
				}
			}
		}
		if err != nil && ferr.CodeOf(err) == ferr.MaxModuleRetries && !in.cfg.DisableFallbackToFull {
			sk.OnError(err)
			im, err = in.runFullStrategy(ctx, p, tempDir)
		}
	}

	if err != nil {
		sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseInstallFailRestore, ModuleIndex: -1})
		_ = os.RemoveAll(in.destDir)
		_ = os.MkdirAll(in.destDir, 0o755)
		if restoreErr := restore(in.destDir, backupDir); restoreErr != nil {
			return nil, fmt.Errorf("install failed (%w) and restore failed: %w", err, restoreErr)
		}
		if ferr.CodeOf(err) == ferr.UserAborted {
			sk.OnCancelled()
		}
		return nil, err
	}

	if err := im.Save(installPath); err != nil {
		return nil, fmt.Errorf("saving install manifest: %w", err)
	}

	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseInstallFinish, ModuleIndex: -1})
	sk.OnPhaseChange(sink.PhaseChange{Phase: sink.PhaseDone, ModuleIndex: -1})

	return &Result{Changed: true, Manifest: im}, nil
}

// allExistingTouched reports whether every currently installed module is
// either updated or removed by the plan — one of the full-install triggers
// alongside isFreshInstall, ForceFreshInstall and willFullyReDownload.
func allExistingTouched(p *manifest.UpdatePlan, existing *manifest.InstallManifest) bool {
	if existing == nil || len(existing.Modules) == 0 {
		return false
	}
	touched := map[string]bool{}
	for _, u := range p.Updated {
		touched[u.Installed.Module.Name()] = true
	}
	for _, r := range p.Removed {
		touched[r.Module.Name()] = true
	}
	for _, m := range existing.Modules {
		if !touched[m.Module.Name()] {
			return false
		}
	}
	return true
}

func (in *Installer) ensureTempDir() (string, error) {
	if in.cfg.TemporaryDirectory != "" {
		if err := os.MkdirAll(in.cfg.TemporaryDirectory, 0o755); err != nil {
			return "", fmt.Errorf("creating temporary directory: %w", err)
		}
		return in.cfg.TemporaryDirectory, nil
	}
	dir, err := os.MkdirTemp("", "fragmenter-")
	if err != nil {
		return "", fmt.Errorf("creating temporary directory: %w", err)
	}
	return dir, nil
}

// runFullStrategy empties destDir and replaces it with the full fragment,
// then builds a fresh InstallManifest describing every distributed module.
func (in *Installer) runFullStrategy(ctx context.Context, p *manifest.UpdatePlan, tempDir string) (manifest.InstallManifest, error) {
	dist := p.Distribution

	if err := os.RemoveAll(in.destDir); err != nil {
		return manifest.InstallManifest{}, fmt.Errorf("clearing destination: %w", err)
	}
	baseFiles, err := in.applyFullInstall(ctx, dist, tempDir, in.destDir)
	if err != nil {
		return manifest.InstallManifest{}, err
	}

	builder := manifest.NewInstallBuilder(in.source, dist)
	base := dist.Base
	base.Files = baseFiles
	builder.SetBase(base)
	for _, m := range dist.Modules {
		chosenKey := in.cfg.ModuleAlternativesMap[m.Name()]
		file, err := manifest.ResolveDownloadFile(m, chosenKey)
		if err != nil {
			return manifest.InstallManifest{}, err
		}
		builder.RecordModule(manifest.InstalledModule{
			Module:                  m,
			InstalledAlternativeKey: chosenKey,
			VerifiedHash:            file.Hash,
		})
	}

	return builder.Build(), nil
}

// runModularStrategy applies only the touched modules and the base (if
// changed), restoring everything else from the pre-run backup.
func (in *Installer) runModularStrategy(ctx context.Context, p *manifest.UpdatePlan, existing *manifest.InstallManifest, tempDir, backupDir string) (manifest.InstallManifest, error) {
	dist := p.Distribution
	builder := manifest.FromExisting(existing)

	if p.BaseChanged {
		baseFiles, err := in.applyBaseChanged(ctx, dist.Base, tempDir, in.destDir)
		if err != nil {
			return manifest.InstallManifest{}, err
		}
		base := dist.Base
		base.Files = baseFiles
		builder.SetBase(base)
	} else {
		moduleDirs := moduleDestDirSet(dist, existing)
		if err := restoreNonModuleEntries(in.destDir, backupDir, moduleDirs); err != nil {
			return manifest.InstallManifest{}, err
		}
	}

	for _, r := range p.Removed {
		builder.RemoveModule(r.Module.Name())
	}

	for _, u := range p.Unchanged {
		if err := restoreModule(in.destDir, backupDir, u.Module.DestDir()); err != nil {
			return manifest.InstallManifest{}, err
		}
	}

	toInstall := make([]manifest.Module, 0, len(p.Added)+len(p.Updated))
	toInstall = append(toInstall, p.Added...)
	for _, u := range p.Updated {
		toInstall = append(toInstall, u.Distributed)
	}

	for idx, m := range toInstall {
		verifiedHash, chosenKey, err := in.downloadAndInstallModule(ctx, m, dist.FullHash, idx, tempDir, in.destDir)
		if err != nil {
			return manifest.InstallManifest{}, err
		}
		builder.RecordModule(manifest.InstalledModule{
			Module:                  m,
			InstalledAlternativeKey: chosenKey,
			VerifiedHash:            verifiedHash,
		})
	}

	return builder.Build(), nil
}

// restoreNonModuleEntries moves every backed-up destDir entry that is not
// a module's destDir back into destDir — i.e. the base fragment's files,
// when the base did not change.
func restoreNonModuleEntries(destDir, backupDir string, moduleDirs map[string]bool) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading backup directory: %w", err)
	}
	for _, entry := range entries {
		if moduleDirs[entry.Name()] {
			continue
		}
		from := filepath.Join(backupDir, entry.Name())
		to := filepath.Join(destDir, entry.Name())
		_ = os.RemoveAll(to)
		if err := os.Rename(from, to); err != nil {
			return fmt.Errorf("restoring base entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}
