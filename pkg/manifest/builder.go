// SPDX-License-Identifier: MPL-2.0

package manifest

// InstallBuilder accumulates the installed-module records produced while an
// install or update runs. Nothing is written to disk until Build succeeds,
// so a crash mid-install never leaves a manifest describing modules that
// were never actually applied — the orchestrator calls Save only after
// every module it touched has been recorded here.
type InstallBuilder struct {
	source  string
	version string
	base    Base
	modules []InstalledModule
	full    struct {
		hash                         string
		splitFileCount               uint32
		completeFileSize             uint64
		completeFileSizeUncompressed uint64
	}
}

// NewInstallBuilder starts a builder seeded from a distribution manifest
// fetched from source. Nothing is committed until Build is called.
func NewInstallBuilder(source string, dist *DistributionManifest) *InstallBuilder {
	b := &InstallBuilder{
		source:  source,
		version: dist.Version,
		base:    dist.Base,
	}
	b.full.hash = dist.FullHash
	b.full.splitFileCount = dist.FullSplitFileCount
	b.full.completeFileSize = dist.FullCompleteFileSize
	b.full.completeFileSizeUncompressed = dist.FullCompleteFileSizeUncompressed
	return b
}

// FromExisting seeds a builder from a manifest already on disk, for an
// update that keeps most modules unchanged and only re-records the ones the
// plan touched.
func FromExisting(existing *InstallManifest) *InstallBuilder {
	b := &InstallBuilder{
		source:  existing.Source,
		version: existing.Version,
		base:    existing.Base,
		modules: append([]InstalledModule(nil), existing.Modules...),
	}
	b.full.hash = existing.FullHash
	b.full.splitFileCount = existing.FullSplitFileCount
	b.full.completeFileSize = existing.FullCompleteFileSize
	b.full.completeFileSizeUncompressed = existing.FullCompleteFileSizeUncompressed
	return b
}

// SetBase overwrites the base fragment record, used when the base itself
// changed as part of the plan being applied.
func (b *InstallBuilder) SetBase(base Base) *InstallBuilder {
	b.base = base
	return b
}

// RecordModule upserts the installed record for a module that was
// downloaded, decompressed, and verified during this run.
func (b *InstallBuilder) RecordModule(m InstalledModule) *InstallBuilder {
	for i, existing := range b.modules {
		if existing.Module.Name() == m.Module.Name() {
			b.modules[i] = m
			return b
		}
	}
	b.modules = append(b.modules, m)
	return b
}

// RemoveModule drops a module's record, used when the plan removed it.
func (b *InstallBuilder) RemoveModule(name string) *InstallBuilder {
	filtered := b.modules[:0]
	for _, m := range b.modules {
		if m.Module.Name() != name {
			filtered = append(filtered, m)
		}
	}
	b.modules = filtered
	return b
}

// Build finalizes the accumulated state into an InstallManifest. The
// caller is expected to call Save only once every module the plan named
// has either been recorded or removed.
func (b *InstallBuilder) Build() InstallManifest {
	return InstallManifest{
		Source:                           b.source,
		Version:                          b.version,
		Base:                             b.base,
		Modules:                          append([]InstalledModule(nil), b.modules...),
		FullHash:                         b.full.hash,
		FullSplitFileCount:               b.full.splitFileCount,
		FullCompleteFileSize:             b.full.completeFileSize,
		FullCompleteFileSizeUncompressed: b.full.completeFileSizeUncompressed,
	}
}
