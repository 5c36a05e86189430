// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// InstalledModule pairs a distributed Module with the annotations the
// installed client records about it: which alternative was chosen (when
// applicable) and the hash verified when it was extracted.
type InstalledModule struct {
	Module                  Module
	InstalledAlternativeKey string
	VerifiedHash            string
}

type installedModuleWire struct {
	moduleWire
	InstalledAlternativeKey string `json:"installedAlternativeKey,omitempty"`
	VerifiedHash            string `json:"verifiedHash"`
}

// InstallManifest is the client-side record of what is currently on disk:
// a DistributionManifest plus the base URL it was fetched from and, per
// module, the installed annotations. The orchestrator builds it through
// InstallBuilder rather than with a struct literal.
type InstallManifest struct {
	Source                           string
	Version                          string
	Base                             Base
	Modules                          []InstalledModule
	FullHash                         string
	FullSplitFileCount               uint32
	FullCompleteFileSize             uint64
	FullCompleteFileSizeUncompressed uint64
}

type installManifestWire struct {
	Source                           string                `json:"source"`
	Version                          string                `json:"version,omitempty"`
	Base                             Base                  `json:"base"`
	Modules                          []installedModuleWire `json:"modules"`
	FullHash                         string                `json:"fullHash"`
	FullSplitFileCount               uint32                `json:"fullSplitFileCount"`
	FullCompleteFileSize             uint64                `json:"fullCompleteFileSize"`
	FullCompleteFileSizeUncompressed uint64                `json:"fullCompleteFileSizeUncompressed"`
}

func (im InstallManifest) MarshalJSON() ([]byte, error) {
	wires := make([]installedModuleWire, 0, len(im.Modules))
	for _, m := range im.Modules {
		w, err := toModuleWire(m.Module)
		if err != nil {
			return nil, err
		}
		wires = append(wires, installedModuleWire{
			moduleWire:              w,
			InstalledAlternativeKey: m.InstalledAlternativeKey,
			VerifiedHash:            m.VerifiedHash,
		})
	}
	return json.Marshal(installManifestWire{
		Source:                           im.Source,
		Version:                          im.Version,
		Base:                             im.Base,
		Modules:                          wires,
		FullHash:                         im.FullHash,
		FullSplitFileCount:               im.FullSplitFileCount,
		FullCompleteFileSize:             im.FullCompleteFileSize,
		FullCompleteFileSizeUncompressed: im.FullCompleteFileSizeUncompressed,
	})
}

func (im *InstallManifest) UnmarshalJSON(data []byte) error {
	var wire installManifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	modules := make([]InstalledModule, 0, len(wire.Modules))
	for _, w := range wire.Modules {
		m, err := w.moduleWire.toModule()
		if err != nil {
			return err
		}
		modules = append(modules, InstalledModule{
			Module:                  m,
			InstalledAlternativeKey: w.InstalledAlternativeKey,
			VerifiedHash:            w.VerifiedHash,
		})
	}
	im.Source = wire.Source
	im.Version = wire.Version
	im.Base = wire.Base
	im.Modules = modules
	im.FullHash = wire.FullHash
	im.FullSplitFileCount = wire.FullSplitFileCount
	im.FullCompleteFileSize = wire.FullCompleteFileSize
	im.FullCompleteFileSizeUncompressed = wire.FullCompleteFileSizeUncompressed
	return nil
}

// ModuleByName returns the installed entry for name, or false if the
// module was never installed.
func (im *InstallManifest) ModuleByName(name string) (InstalledModule, bool) {
	for _, m := range im.Modules {
		if m.Module.Name() == name {
			return m, true
		}
	}
	return InstalledModule{}, false
}

// LoadInstallManifest reads and decodes an install manifest from path. A
// missing file is reported through the returned error, not a sentinel
// zero value, so callers distinguish "no manifest yet" from a malformed one
// via ferr.Classify or errors.Is(err, fs.ErrNotExist); the error is wrapped,
// so os.IsNotExist alone does not recognise it.
func LoadInstallManifest(path string) (*InstallManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading install manifest: %w", err)
	}
	var im InstallManifest
	if err := json.Unmarshal(data, &im); err != nil {
		return nil, fmt.Errorf("decoding install manifest %s: %w", path, err)
	}
	return &im, nil
}

// Save writes the manifest to path atomically: encode to a temp file in the
// same directory, then rename over the destination. A reader never
// observes a half-written manifest.
func (im InstallManifest) Save(path string) error {
	data, err := json.MarshalIndent(im, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding install manifest: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating install manifest directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing install manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming install manifest into place: %w", err)
	}
	return nil
}

// LoadDistributionManifest reads and decodes a distribution manifest from
// path (used by the CLI wrapper in --local testing modes; production
// installs fetch it with a one-shot HTTP GET instead).
func LoadDistributionManifest(path string) (*DistributionManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading distribution manifest: %w", err)
	}
	var dm DistributionManifest
	if err := json.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("decoding distribution manifest %s: %w", path, err)
	}
	return &dm, nil
}
