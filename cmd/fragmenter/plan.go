// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/flybywiresim/fragmenter/internal/plan"
	"github.com/flybywiresim/fragmenter/pkg/manifest"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// render is a package-level seam over glamour.Render, following
// internal/issue's own test-seam pattern for the same library.
var render = glamour.Render

type planParams struct {
	stdout io.Writer

	source         string
	destDir        string
	localManifest  string
	alternatives   map[string]string
	forceFullRatio float64
}

func newPlanCommand() *cobra.Command {
	var p planParams

	cmd := &cobra.Command{
		Use:     "plan <source> <destination>",
		Aliases: []string{"check"},
		Short:   "Show what an install would change without applying it",
		Long: `Compute and display the update plan for a distribution without
downloading or installing anything: which modules would be added,
removed, or updated, and the total download size.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			p.stdout = cmd.OutOrStdout()
			p.source = args[0]
			p.destDir = args[1]

			if err := runPlan(cmd.Context(), p); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ErrorStyle.Render("Error: ")+formatError(err))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&p.localManifest, "local", "", "read the distribution manifest from this local file instead of fetching source")
	cmd.Flags().StringToStringVar(&p.alternatives, "alt", nil, "module=key pairs selecting which alternative to plan for each alternatives module")
	cmd.Flags().Float64Var(&p.forceFullRatio, "force-full-ratio", 0, "treat an update as a full install when the touched-module fraction exceeds this (0 disables)")

	return cmd
}

func runPlan(ctx context.Context, p planParams) error {
	var fetcher plan.Fetcher
	if p.localManifest != "" {
		fetcher = localManifestFetcher{path: p.localManifest}
	} else {
		fetcher = newHTTPManifestFetcher(p.source)
	}

	result, err := plan.Compute(ctx, fetcher, plan.Options{
		DestDir:               p.destDir,
		AlternativesMap:       p.alternatives,
		ForceFullInstallRatio: p.forceFullRatio,
	})
	if err != nil {
		return err
	}

	md := renderPlanMarkdown(result)
	out, err := render(md, "dark")
	if err != nil {
		fmt.Fprint(p.stdout, md)
		return nil
	}
	fmt.Fprint(p.stdout, out)
	return nil
}

// renderPlanMarkdown formats an UpdatePlan as a markdown table for glamour
// to render, mirroring internal/issue's "build markdown, then glamour.Render
// it" pattern for a different purpose.
func renderPlanMarkdown(p *manifest.UpdatePlan) string {
	var b strings.Builder

	if p.IsFreshInstall {
		b.WriteString("# Fresh install\n\n")
	} else if p.IsNoop() {
		b.WriteString("# Already up to date\n\n")
		return b.String()
	} else {
		b.WriteString("# Update plan\n\n")
	}

	if p.WillFullyReDownload {
		b.WriteString("This update will fall back to a **full re-download**.\n\n")
	}

	b.WriteString(fmt.Sprintf("Base fragment changed: **%v**\n\n", p.BaseChanged))
	b.WriteString(fmt.Sprintf("Download size: **%s**  \n", byteCount(int64(p.DownloadSize))))
	b.WriteString(fmt.Sprintf("Required disk space: **%s**\n\n", byteCount(int64(p.RequiredDiskSpace))))

	b.WriteString("| Module | Change |\n|---|---|\n")
	for _, m := range p.Added {
		b.WriteString(fmt.Sprintf("| %s | added |\n", m.Name()))
	}
	for _, u := range p.Updated {
		b.WriteString(fmt.Sprintf("| %s | updated |\n", u.Distributed.Name()))
	}
	for _, r := range p.Removed {
		b.WriteString(fmt.Sprintf("| %s | removed |\n", r.Module.Name()))
	}
	for _, u := range p.Unchanged {
		b.WriteString(fmt.Sprintf("| %s | unchanged |\n", u.Module.Name()))
	}

	return b.String()
}
