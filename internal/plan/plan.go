// SPDX-License-Identifier: MPL-2.0

// Package plan implements the Update Planner (§4.E): diffing a freshly
// fetched distribution manifest against whatever install manifest is
// already on disk to produce the minimal set of module changes an install
// run must apply.
package plan

import (
	"context"
	"fmt"
	"os"

	"github.com/flybywiresim/fragmenter/internal/ferr"
	"github.com/flybywiresim/fragmenter/pkg/fraghash"
	"github.com/flybywiresim/fragmenter/pkg/manifest"
	"github.com/flybywiresim/fragmenter/pkg/platform"
)

// Options configures how a plan is computed; it mirrors the subset of the
// installer's own Config that the planner needs to make its decision,
// rather than taking the whole Config so this package stays usable on its
// own (e.g. from a "fragmenter plan" CLI subcommand with no install
// intent).
type Options struct {
	// DestDir is where install.json (if any) already lives.
	DestDir string

	// AlternativesMap selects, for every distributed alternatives module,
	// which alternative key to resolve against. Missing an entry for an
	// alternatives module present in the distribution is InvalidOptions.
	AlternativesMap map[string]string

	// ForceFullInstallRatio upgrades a plan to a full re-download when the
	// fraction of touched modules exceeds it. Zero disables the check.
	ForceFullInstallRatio float64
}

// Fetcher retrieves the distribution manifest a plan is computed against.
// The installer supplies an implementation backed by a one-shot GET
// (transfer.Client.Get); tests and the CLI's --local mode can supply one backed by
// manifest.LoadDistributionManifest instead.
type Fetcher interface {
	FetchDistributionManifest(ctx context.Context) (*manifest.DistributionManifest, error)
}

// Compute fetches the distribution manifest via fetcher, loads any
// existing install manifest under opts.DestDir, and returns the diff
// between them as an UpdatePlan.
func Compute(ctx context.Context, fetcher Fetcher, opts Options) (*manifest.UpdatePlan, error) {
	dist, err := fetcher.FetchDistributionManifest(ctx)
	if err != nil {
		return nil, err
	}

	if err := validateModuleNames(dist); err != nil {
		return nil, err
	}
	if err := validateAlternatives(dist, opts.AlternativesMap); err != nil {
		return nil, err
	}
	if err := validateDestDirs(dist); err != nil {
		return nil, err
	}

	installPath := installManifestPath(opts.DestDir)
	existing, err := manifest.LoadInstallManifest(installPath)
	if err != nil {
		if os.IsNotExist(err) || ferr.IsNotExist(err) {
			return freshInstallPlan(dist), nil
		}
		return nil, fmt.Errorf("loading existing install manifest: %w", err)
	}

	return diff(dist, existing, opts), nil
}

func installManifestPath(destDir string) string {
	return destDir + string(os.PathSeparator) + "install.json"
}

// validateModuleNames enforces the §3 invariant that module names are
// unique within a manifest, case-sensitive, and that "base" and "full"
// are reserved and never used as a module name.
func validateModuleNames(dist *manifest.DistributionManifest) error {
	seen := make(map[string]bool, len(dist.Modules))
	for _, m := range dist.Modules {
		name := m.Name()
		if name == "base" || name == "full" {
			return ferr.New(ferr.InvalidDistributionManifest, "computing update plan").
				WithResource(fmt.Sprintf("module name %q is reserved", name))
		}
		if seen[name] {
			return ferr.New(ferr.InvalidDistributionManifest, "computing update plan").
				WithResource(fmt.Sprintf("module name %q is not unique", name))
		}
		seen[name] = true
	}
	return nil
}

// validateAlternatives enforces the §3 invariant that every alternatives
// module in the distribution has a chosen key in alternativesMap.
func validateAlternatives(dist *manifest.DistributionManifest, alternativesMap map[string]string) error {
	for _, m := range dist.Modules {
		alt, ok := m.(*manifest.AlternativesModule)
		if !ok {
			continue
		}
		key, chosen := alternativesMap[alt.ModuleName]
		if !chosen {
			return ferr.New(ferr.InvalidOptions, "computing update plan").
				WithResource(fmt.Sprintf("module %q has no chosen alternative", alt.ModuleName))
		}
		if _, ok := alt.Find(key); !ok {
			return ferr.New(ferr.InvalidOptions, "computing update plan").
				WithResource(fmt.Sprintf("module %q has no alternative with key %q", alt.ModuleName, key))
		}
	}
	return nil
}

// validateDestDirs rejects a distribution manifest that names a module
// destination directory Windows cannot create, since a module extracted
// under that name would silently fail or collide on a Windows install.
func validateDestDirs(dist *manifest.DistributionManifest) error {
	for _, m := range dist.Modules {
		if platform.IsWindowsReservedName(m.DestDir()) {
			return ferr.New(ferr.InvalidDistributionManifest, "computing update plan").
				WithResource(fmt.Sprintf("module %q has a Windows-reserved destination directory %q", m.Name(), m.DestDir()))
		}
	}
	return nil
}

// freshInstallPlan builds the plan for a destination with no existing
// install manifest: every distributed module is Added, and the base is
// always considered changed since nothing is on disk yet.
func freshInstallPlan(dist *manifest.DistributionManifest) *manifest.UpdatePlan {
	added := make([]manifest.Module, len(dist.Modules))
	copy(added, dist.Modules)

	return &manifest.UpdatePlan{
		IsFreshInstall:      true,
		BaseChanged:         true,
		WillFullyReDownload: true,
		Added:               added,
		DownloadSize:        dist.FullCompleteFileSize,
		RequiredDiskSpace:   dist.FullCompleteFileSizeUncompressed,
		Distribution:        dist,
	}
}

// diff computes the set-level module diff between dist and existing per
// §4.E steps 4-9.
func diff(dist *manifest.DistributionManifest, existing *manifest.InstallManifest, opts Options) *manifest.UpdatePlan {
	p := &manifest.UpdatePlan{
		BaseChanged:  !hashEqual(existing.Base.Hash, dist.Base.Hash),
		Distribution: dist,
	}

	distByName := make(map[string]manifest.Module, len(dist.Modules))
	for _, m := range dist.Modules {
		distByName[m.Name()] = m
	}
	existingByName := make(map[string]manifest.InstalledModule, len(existing.Modules))
	for _, m := range existing.Modules {
		existingByName[m.Module.Name()] = m
	}

	for name, m := range distByName {
		if _, ok := existingByName[name]; !ok {
			p.Added = append(p.Added, m)
		}
	}
	for name, m := range existingByName {
		if _, ok := distByName[name]; !ok {
			p.Removed = append(p.Removed, m)
		}
	}

	for name, distModule := range distByName {
		installed, ok := existingByName[name]
		if !ok {
			continue
		}

		chosenKey := opts.AlternativesMap[name]
		resolved, err := manifest.ResolveDownloadFile(distModule, chosenKey)
		if err != nil {
			// Already validated above; unreachable in practice, but treat
			// as an update rather than panic if it ever happens.
			p.Updated = append(p.Updated, manifest.ModuleUpdate{Installed: installed, Distributed: distModule})
			continue
		}

		keyChanged := installed.InstalledAlternativeKey != chosenKey
		hashChanged := !hashEqual(installed.VerifiedHash, resolved.Hash)

		if keyChanged || hashChanged {
			p.Updated = append(p.Updated, manifest.ModuleUpdate{Installed: installed, Distributed: distModule})
		} else {
			p.Unchanged = append(p.Unchanged, installed)
		}
	}

	for _, m := range p.Added {
		p.DownloadSize += completeFileSize(m, opts.AlternativesMap)
		p.RequiredDiskSpace += completeFileSizeUncompressed(m, opts.AlternativesMap)
	}
	for _, u := range p.Updated {
		p.DownloadSize += completeFileSize(u.Distributed, opts.AlternativesMap)
		p.RequiredDiskSpace += completeFileSizeUncompressed(u.Distributed, opts.AlternativesMap)
	}

	if opts.ForceFullInstallRatio > 0 {
		touched := len(p.Added) + len(p.Updated)
		total := len(existing.Modules)
		if total == 0 {
			total = 1
		}
		if float64(touched)/float64(total) > opts.ForceFullInstallRatio {
			p.WillFullyReDownload = true
			p.DownloadSize = dist.FullCompleteFileSize
			p.RequiredDiskSpace = dist.FullCompleteFileSizeUncompressed
		}
	}

	return p
}

func completeFileSize(m manifest.Module, alternativesMap map[string]string) uint64 {
	file, err := manifest.ResolveDownloadFile(m, alternativesMap[m.Name()])
	if err != nil {
		return 0
	}
	return file.CompleteFileSize
}

func completeFileSizeUncompressed(m manifest.Module, alternativesMap map[string]string) uint64 {
	file, err := manifest.ResolveDownloadFile(m, alternativesMap[m.Name()])
	if err != nil {
		return 0
	}
	return file.CompleteFileSizeUncompressed
}

func hashEqual(a, b string) bool {
	return fraghash.Equal(a, b)
}
