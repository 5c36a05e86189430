// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flybywiresim/fragmenter/pkg/manifest"
)

func writeLocalManifest(t *testing.T) string {
	t.Helper()

	dist := manifest.DistributionManifest{
		Version: "1.0.0",
		Base:    manifest.Base{Path: "base.zip"},
		Modules: []manifest.Module{
			&manifest.SimpleModule{ModuleName: "addon", ModuleDestDir: "addon", File: manifest.DownloadFile{Path: "addon.zip", Hash: "h1"}},
		},
	}
	data, err := json.Marshal(dist)
	if err != nil {
		t.Fatalf("marshal distribution manifest: %v", err)
	}

	path := filepath.Join(t.TempDir(), "modules.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing local manifest: %v", err)
	}
	return path
}

func TestRunPlanFreshInstallLocal(t *testing.T) {
	path := writeLocalManifest(t)

	var stdout bytes.Buffer
	p := planParams{
		stdout:        &stdout,
		destDir:       t.TempDir(),
		localManifest: path,
	}

	if err := runPlan(t.Context(), p); err != nil {
		t.Fatalf("runPlan() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "addon") {
		t.Errorf("plan output = %q, want it to mention module addon", stdout.String())
	}
}

func TestRenderPlanMarkdownNoop(t *testing.T) {
	p := &manifest.UpdatePlan{}
	md := renderPlanMarkdown(p)
	if !strings.Contains(md, "Already up to date") {
		t.Errorf("renderPlanMarkdown() = %q, want an up-to-date heading", md)
	}
}

func TestRenderPlanMarkdownFreshInstall(t *testing.T) {
	p := &manifest.UpdatePlan{
		IsFreshInstall: true,
		Added: []manifest.Module{
			&manifest.SimpleModule{ModuleName: "addon", ModuleDestDir: "addon"},
		},
	}
	md := renderPlanMarkdown(p)
	if !strings.Contains(md, "Fresh install") || !strings.Contains(md, "addon") {
		t.Errorf("renderPlanMarkdown() = %q, want a fresh install heading mentioning addon", md)
	}
}
