// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func TestModuleJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		module Module
	}{
		{
			name: "simple",
			module: &SimpleModule{
				ModuleName:    "a32nx",
				ModuleDestDir: "a32nx",
				File: DownloadFile{
					Path:                         "a32nx.zip",
					Hash:                         "deadbeef",
					Compression:                  "zip",
					SplitFileCount:               0,
					CompleteFileSize:             100,
					CompleteFileSizeUncompressed: 200,
				},
			},
		},
		{
			name: "alternatives",
			module: &AlternativesModule{
				ModuleName:    "liveries",
				ModuleDestDir: "liveries",
				Alternatives: []DownloadFile{
					{Key: "efb-light", DisplayName: "Light livery", Path: "light.zip", Hash: "aaa"},
					{Key: "efb-dark", DisplayName: "Dark livery", Path: "dark.zip", Hash: "bbb"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := jsonRoundTrip(tt.module)
			if err != nil {
				t.Fatalf("jsonRoundTrip() error = %v", err)
			}
			if got.Name() != tt.module.Name() || got.DestDir() != tt.module.DestDir() {
				t.Fatalf("round trip changed identity: got %+v, want %+v", got, tt.module)
			}
		})
	}
}

func TestResolveDownloadFile(t *testing.T) {
	alt := &AlternativesModule{
		ModuleName: "liveries",
		Alternatives: []DownloadFile{
			{Key: "light", Path: "light.zip"},
			{Key: "dark", Path: "dark.zip"},
		},
	}

	got, err := ResolveDownloadFile(alt, "dark")
	if err != nil {
		t.Fatalf("ResolveDownloadFile() error = %v", err)
	}
	if got.Path != "dark.zip" {
		t.Fatalf("ResolveDownloadFile() = %+v, want dark.zip", got)
	}

	if _, err := ResolveDownloadFile(alt, "missing"); err == nil {
		t.Fatal("expected error for unknown alternative key")
	}

	simple := &SimpleModule{ModuleName: "base", File: DownloadFile{Path: "base.zip"}}
	got, err = ResolveDownloadFile(simple, "ignored")
	if err != nil {
		t.Fatalf("ResolveDownloadFile(simple) error = %v", err)
	}
	if got.Path != "base.zip" {
		t.Fatalf("ResolveDownloadFile(simple) = %+v, want base.zip", got)
	}
}

func TestDistributionManifestJSONRoundTrip(t *testing.T) {
	dm := DistributionManifest{
		Version: "1.2.3",
		Base:    Base{Hash: "basehash", Path: "base.zip", Compression: "zip", Files: []string{"readme.txt", "data/config.ini"}, CompleteFileSize: 10},
		Modules: []Module{
			&SimpleModule{ModuleName: "a32nx", ModuleDestDir: "a32nx", File: DownloadFile{Path: "a32nx.zip", Hash: "h1"}},
			&AlternativesModule{ModuleName: "liveries", ModuleDestDir: "liveries", Alternatives: []DownloadFile{
				{Key: "light", Path: "light.zip", Hash: "h2"},
			}},
		},
		FullHash: "fullhash",
	}

	data, err := json.Marshal(dm)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got DistributionManifest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got.Version != dm.Version || got.FullHash != dm.FullHash {
		t.Fatalf("scalar fields lost in round trip: got %+v", got)
	}
	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(got.Modules))
	}
	if _, ok := got.Modules[0].(*SimpleModule); !ok {
		t.Fatalf("modules[0] = %T, want *SimpleModule", got.Modules[0])
	}
	if _, ok := got.Modules[1].(*AlternativesModule); !ok {
		t.Fatalf("modules[1] = %T, want *AlternativesModule", got.Modules[1])
	}
	if len(got.Base.Files) != 2 || got.Base.Files[0] != "readme.txt" || got.Base.Files[1] != "data/config.ini" {
		t.Fatalf("Base.Files lost in round trip: got %+v", got.Base.Files)
	}
}

func TestInstallManifestSaveAndLoad(t *testing.T) {
	im := InstallManifest{
		Source:   "https://example.test/dist",
		Version:  "1.0.0",
		Base:     Base{Hash: "basehash", Files: []string{"readme.txt"}},
		FullHash: "fullhash",
		Modules: []InstalledModule{
			{
				Module:       &SimpleModule{ModuleName: "a32nx", File: DownloadFile{Path: "a32nx.zip", Hash: "h1"}},
				VerifiedHash: "h1",
			},
			{
				Module: &AlternativesModule{ModuleName: "liveries", Alternatives: []DownloadFile{
					{Key: "light", Path: "light.zip", Hash: "h2"},
				}},
				InstalledAlternativeKey: "light",
				VerifiedHash:            "h2",
			},
		},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "install-manifest.json")

	if err := im.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := LoadInstallManifest(path)
	if err != nil {
		t.Fatalf("LoadInstallManifest() error = %v", err)
	}

	if got.Source != im.Source || got.FullHash != im.FullHash {
		t.Fatalf("scalar fields lost: got %+v", got)
	}
	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(got.Modules))
	}
	if len(got.Base.Files) != 1 || got.Base.Files[0] != "readme.txt" {
		t.Fatalf("Base.Files lost in round trip: got %+v", got.Base.Files)
	}

	altEntry, ok := got.ModuleByName("liveries")
	if !ok {
		t.Fatal("liveries module missing after round trip")
	}
	if altEntry.InstalledAlternativeKey != "light" {
		t.Fatalf("InstalledAlternativeKey = %q, want light", altEntry.InstalledAlternativeKey)
	}
}

func TestInstallBuilderRecordAndRemove(t *testing.T) {
	dist := &DistributionManifest{
		Version:  "2.0.0",
		Base:     Base{Hash: "basehash"},
		FullHash: "fullhash",
	}

	b := NewInstallBuilder("https://example.test/dist", dist)
	b.RecordModule(InstalledModule{
		Module:       &SimpleModule{ModuleName: "a32nx", File: DownloadFile{Path: "a32nx.zip", Hash: "h1"}},
		VerifiedHash: "h1",
	})
	b.RecordModule(InstalledModule{
		Module:       &SimpleModule{ModuleName: "a380x", File: DownloadFile{Path: "a380x.zip", Hash: "h2"}},
		VerifiedHash: "h2",
	})

	im := b.Build()
	if len(im.Modules) != 2 {
		t.Fatalf("expected 2 modules after recording, got %d", len(im.Modules))
	}

	b2 := FromExisting(&im)
	b2.RemoveModule("a32nx")
	b2.RecordModule(InstalledModule{
		Module:       &SimpleModule{ModuleName: "a380x", File: DownloadFile{Path: "a380x.zip", Hash: "h3"}},
		VerifiedHash: "h3",
	})

	updated := b2.Build()
	if len(updated.Modules) != 1 {
		t.Fatalf("expected 1 module after removal, got %d", len(updated.Modules))
	}
	entry, ok := updated.ModuleByName("a380x")
	if !ok {
		t.Fatal("a380x missing after update")
	}
	if entry.VerifiedHash != "h3" {
		t.Fatalf("VerifiedHash = %q, want h3 (record should upsert, not duplicate)", entry.VerifiedHash)
	}
}

func TestUpdatePlanIsNoop(t *testing.T) {
	noop := &UpdatePlan{}
	if !noop.IsNoop() {
		t.Fatal("empty plan should be a noop")
	}

	notNoop := &UpdatePlan{BaseChanged: true}
	if notNoop.IsNoop() {
		t.Fatal("base-changed plan should not be a noop")
	}
}
