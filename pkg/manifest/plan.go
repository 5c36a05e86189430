// SPDX-License-Identifier: MPL-2.0

package manifest

// UpdatePlan is the diff between an InstallManifest already on disk and a
// freshly fetched DistributionManifest: which modules need to be added,
// removed, or re-fetched, and whether the base fragment itself changed.
type UpdatePlan struct {
	// IsFreshInstall is true when no InstallManifest existed yet — every
	// module in Added, and BaseChanged is always true in this case.
	IsFreshInstall bool

	// BaseChanged is true when the base fragment's hash differs from what
	// is installed, forcing a re-download of the base before any module.
	BaseChanged bool

	// WillFullyReDownload is true on a fresh install, and when
	// ForceFullInstallRatio tripped: the
	// fraction of touched modules was large enough that the orchestrator
	// should treat this as a full install rather than an incremental
	// patch. When true, DownloadSize and RequiredDiskSpace describe the
	// full fragment instead of the sum over Added/Updated.
	WillFullyReDownload bool

	// Added lists modules present in the distribution but not installed.
	Added []Module

	// Removed lists modules installed but no longer present in the
	// distribution; their destination directories are deleted.
	Removed []InstalledModule

	// Updated lists modules present in both manifests whose resolved
	// download file (by hash) differs from what is installed, or whose
	// chosen alternative key differs from the installed one.
	Updated []ModuleUpdate

	// Unchanged lists modules present in both manifests with a matching
	// hash and alternative key; they are left untouched on disk.
	Unchanged []InstalledModule

	// DownloadSize is the sum of CompleteFileSize over Added ∪ Updated
	// (or the full fragment's size when WillFullyReDownload is true).
	DownloadSize uint64

	// RequiredDiskSpace is the sum of CompleteFileSizeUncompressed over
	// the same set DownloadSize was computed from.
	RequiredDiskSpace uint64

	// Distribution is the manifest this plan was computed against, kept so
	// the orchestrator does not need to re-fetch it to apply the plan.
	Distribution *DistributionManifest
}

// ModuleUpdate pairs an installed module with its replacement from the
// distribution manifest.
type ModuleUpdate struct {
	Installed   InstalledModule
	Distributed Module
}

// NeedsUpdate reports whether applying this plan would change anything on
// disk.
func (p *UpdatePlan) NeedsUpdate() bool {
	return p.IsFreshInstall || p.BaseChanged || len(p.Added) > 0 || len(p.Removed) > 0 || len(p.Updated) > 0
}

// IsNoop is the complement of NeedsUpdate.
func (p *UpdatePlan) IsNoop() bool {
	return !p.NeedsUpdate()
}

// TouchedModuleCount returns how many modules this plan will download,
// decompress, or remove.
func (p *UpdatePlan) TouchedModuleCount() int {
	return len(p.Added) + len(p.Removed) + len(p.Updated)
}
