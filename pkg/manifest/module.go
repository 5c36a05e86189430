// SPDX-License-Identifier: MPL-2.0

// Package manifest holds the data model shared by the distribution server
// and the installed client: fragments, modules, and the two manifest kinds
// that describe them (§3).
package manifest

import (
	"encoding/json"
	"fmt"

	"github.com/flybywiresim/fragmenter/internal/ferr"
)

// DownloadFile describes one fetchable fragment file — the distributed form
// of either a simple module's single file or one alternative's file.
type DownloadFile struct {
	Key                          string `json:"key,omitempty"`
	DisplayName                  string `json:"displayName,omitempty"`
	Path                         string `json:"path"`
	Hash                         string `json:"hash"`
	Compression                  string `json:"compression"`
	SplitFileCount               uint32 `json:"splitFileCount"`
	CompleteFileSize             uint64 `json:"completeFileSize"`
	CompleteFileSizeUncompressed uint64 `json:"completeFileSizeUncompressed"`
}

// Module is a sum type over the two module kinds a distribution manifest
// can carry. It is modeled as an interface with a private marker method so
// the only two implementations are SimpleModule and AlternativesModule;
// every exhaustive switch over it is a type switch, never a string
// comparison against a "kind" field — that field exists only at the JSON
// wire boundary, in moduleWire.
type Module interface {
	Name() string
	DestDir() string
	moduleSealed()
}

// SimpleModule is a module distributed as exactly one fragment file.
type SimpleModule struct {
	ModuleName    string
	ModuleDestDir string
	File          DownloadFile
}

func (m *SimpleModule) Name() string    { return m.ModuleName }
func (m *SimpleModule) DestDir() string { return m.ModuleDestDir }
func (m *SimpleModule) moduleSealed()   {}

// AlternativesModule is a module with mutually exclusive variants, each a
// separate fragment file keyed by DownloadFile.Key.
type AlternativesModule struct {
	ModuleName    string
	ModuleDestDir string
	Alternatives  []DownloadFile
}

func (m *AlternativesModule) Name() string    { return m.ModuleName }
func (m *AlternativesModule) DestDir() string { return m.ModuleDestDir }
func (m *AlternativesModule) moduleSealed()   {}

// Find returns the alternative with the given key, or false if none match.
func (m *AlternativesModule) Find(key string) (DownloadFile, bool) {
	for _, alt := range m.Alternatives {
		if alt.Key == key {
			return alt, true
		}
	}
	return DownloadFile{}, false
}

const (
	kindSimple       = "simple"
	kindAlternatives = "alternatives"
)

// moduleWire is the JSON wire shape of Module. It is the single place a
// "kind" discriminant string is inspected; every other site in this
// codebase exhausts Module via a Go type switch.
type moduleWire struct {
	Kind         string         `json:"kind"`
	Name         string         `json:"name"`
	DestDir      string         `json:"destDir"`
	DownloadFile *DownloadFile  `json:"downloadFile,omitempty"`
	Alternatives []DownloadFile `json:"alternatives,omitempty"`
}

func toModuleWire(m Module) (moduleWire, error) {
	switch mod := m.(type) {
	case *SimpleModule:
		return moduleWire{
			Kind:         kindSimple,
			Name:         mod.ModuleName,
			DestDir:      mod.ModuleDestDir,
			DownloadFile: &mod.File,
		}, nil
	case *AlternativesModule:
		return moduleWire{
			Kind:         kindAlternatives,
			Name:         mod.ModuleName,
			DestDir:      mod.ModuleDestDir,
			Alternatives: mod.Alternatives,
		}, nil
	default:
		return moduleWire{}, fmt.Errorf("manifest: unknown module implementation %T", m)
	}
}

func (w moduleWire) toModule() (Module, error) {
	switch w.Kind {
	case kindSimple:
		if w.DownloadFile == nil {
			return nil, fmt.Errorf("manifest: module %q has kind=simple but no downloadFile", w.Name)
		}
		return &SimpleModule{ModuleName: w.Name, ModuleDestDir: w.DestDir, File: *w.DownloadFile}, nil
	case kindAlternatives:
		return &AlternativesModule{ModuleName: w.Name, ModuleDestDir: w.DestDir, Alternatives: w.Alternatives}, nil
	default:
		return nil, fmt.Errorf("manifest: module %q has unknown kind %q", w.Name, w.Kind)
	}
}

// marshalModules converts a []Module to its wire form for the manifest
// MarshalJSON methods, so callers never touch moduleWire.
func marshalModules(modules []Module) ([]moduleWire, error) {
	wires := make([]moduleWire, 0, len(modules))
	for _, m := range modules {
		w, err := toModuleWire(m)
		if err != nil {
			return nil, err
		}
		wires = append(wires, w)
	}
	return wires, nil
}

func unmarshalModules(wires []moduleWire) ([]Module, error) {
	modules := make([]Module, 0, len(wires))
	for _, w := range wires {
		m, err := w.toModule()
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// ResolveDownloadFile applies the alternative-selection rule (§4.C): a
// simple module always resolves to its one file; an alternatives module
// resolves to the file whose key matches chosenKey, or a hard
// InvalidParameters error if no alternative carries that key.
func ResolveDownloadFile(m Module, chosenKey string) (DownloadFile, error) {
	switch mod := m.(type) {
	case *SimpleModule:
		return mod.File, nil
	case *AlternativesModule:
		file, ok := mod.Find(chosenKey)
		if !ok {
			return DownloadFile{}, ferr.New(ferr.InvalidParameters, "resolving module download file").
				WithResource(fmt.Sprintf("%s: no alternative with key %q", mod.ModuleName, chosenKey))
		}
		return file, nil
	default:
		return DownloadFile{}, fmt.Errorf("manifest: unknown module implementation %T", m)
	}
}

// jsonRoundTrip is used by the tests in this package to sanity-check the
// moduleWire encode/decode pair without exporting it.
func jsonRoundTrip(m Module) (Module, error) {
	w, err := toModuleWire(m)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	var w2 moduleWire
	if err := json.Unmarshal(raw, &w2); err != nil {
		return nil, err
	}
	return w2.toModule()
}
