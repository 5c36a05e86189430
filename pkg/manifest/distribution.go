// SPDX-License-Identifier: MPL-2.0

package manifest

import "encoding/json"

// Base describes the fragment that every install starts from: the set of
// files present regardless of which modules are selected.
type Base struct {
	Hash                         string   `json:"hash"`
	Path                         string   `json:"path"`
	Compression                  string   `json:"compression"`
	Files                        []string `json:"files"`
	SplitFileCount               uint32   `json:"splitFileCount"`
	CompleteFileSize             uint64   `json:"completeFileSize"`
	CompleteFileSizeUncompressed uint64   `json:"completeFileSizeUncompressed"`
}

// DistributionManifest is the server-published description of a package:
// the base fragment, the modules available on top of it, and the hash of
// the fully assembled tree (base plus every module, used only to detect
// that a fresh install matches expectations end to end).
type DistributionManifest struct {
	Version                          string   `json:"version,omitempty"`
	Base                             Base     `json:"base"`
	Modules                          []Module `json:"-"`
	FullHash                         string   `json:"fullHash"`
	FullSplitFileCount               uint32   `json:"fullSplitFileCount"`
	FullCompleteFileSize             uint64   `json:"fullCompleteFileSize"`
	FullCompleteFileSizeUncompressed uint64   `json:"fullCompleteFileSizeUncompressed"`
}

type distributionManifestWire struct {
	Version                          string       `json:"version,omitempty"`
	Base                             Base         `json:"base"`
	Modules                          []moduleWire `json:"modules"`
	FullHash                         string       `json:"fullHash"`
	FullSplitFileCount               uint32       `json:"fullSplitFileCount"`
	FullCompleteFileSize             uint64       `json:"fullCompleteFileSize"`
	FullCompleteFileSizeUncompressed uint64       `json:"fullCompleteFileSizeUncompressed"`
}

// MarshalJSON flattens the Module sum type to its wire form.
func (d DistributionManifest) MarshalJSON() ([]byte, error) {
	wires, err := marshalModules(d.Modules)
	if err != nil {
		return nil, err
	}
	return json.Marshal(distributionManifestWire{
		Version:                          d.Version,
		Base:                             d.Base,
		Modules:                          wires,
		FullHash:                         d.FullHash,
		FullSplitFileCount:               d.FullSplitFileCount,
		FullCompleteFileSize:             d.FullCompleteFileSize,
		FullCompleteFileSizeUncompressed: d.FullCompleteFileSizeUncompressed,
	})
}

// UnmarshalJSON expands the wire form back into the Module sum type.
func (d *DistributionManifest) UnmarshalJSON(data []byte) error {
	var wire distributionManifestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	modules, err := unmarshalModules(wire.Modules)
	if err != nil {
		return err
	}
	d.Version = wire.Version
	d.Base = wire.Base
	d.Modules = modules
	d.FullHash = wire.FullHash
	d.FullSplitFileCount = wire.FullSplitFileCount
	d.FullCompleteFileSize = wire.FullCompleteFileSize
	d.FullCompleteFileSizeUncompressed = wire.FullCompleteFileSizeUncompressed
	return nil
}

// ModuleByName returns the module with the given name, or false if absent.
func (d *DistributionManifest) ModuleByName(name string) (Module, bool) {
	for _, m := range d.Modules {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}
