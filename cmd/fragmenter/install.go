// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flybywiresim/fragmenter/internal/install"
	"github.com/flybywiresim/fragmenter/pkg/manifest"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// installParams bundles the install command's dependencies and flags so
// runInstall is testable without a real Cobra command.
type installParams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	source  string
	destDir string

	yes                   bool
	forceFresh            bool
	cacheBust             bool
	manifestCacheBust     bool
	disableFallbackToFull bool
	maxRetries            int
	tempDir               string
	forceFullRatio        float64
	alternatives          map[string]string
}

func newInstallCommand() *cobra.Command {
	var p installParams

	cmd := &cobra.Command{
		Use:   "install <source> <destination>",
		Short: "Install or update a distribution at destination",
		Long: `Install or update a distribution published at source into destination.

On first run this downloads the full fragment. On subsequent runs it
fetches the distribution manifest, diffs it against what's already
installed, and downloads only the modules whose content hash changed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			p.stdin = cmd.InOrStdin()
			p.stdout = cmd.OutOrStdout()
			p.stderr = cmd.ErrOrStderr()
			p.source = args[0]
			p.destDir = args[1]

			wrapperCfg, err := loadWrapperConfig()
			if err != nil {
				fmt.Fprintln(p.stderr, WarningStyle.Render("Warning: ")+"loading configuration: "+err.Error())
				wrapperCfg = nil
			}
			if wrapperCfg != nil {
				if !cmd.Flags().Changed("cache-bust") {
					p.cacheBust = wrapperCfg.CacheBust
				}
				if !cmd.Flags().Changed("manifest-cache-bust") {
					p.manifestCacheBust = wrapperCfg.ManifestCacheBust
				}
				if !cmd.Flags().Changed("max-retries") {
					p.maxRetries = wrapperCfg.MaxModuleRetries
				}
				if !cmd.Flags().Changed("force-full-ratio") {
					p.forceFullRatio = wrapperCfg.ForceFullInstallRatio
				}
			}

			if err := runInstall(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+formatError(err))
				return &ExitError{Code: classifyExitCode(err), Err: err}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&p.yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&p.forceFresh, "force-fresh", false, "discard whatever is at destination and reinstall everything")
	cmd.Flags().BoolVar(&p.cacheBust, "cache-bust", false, "append a cache-busting query parameter to fragment URLs")
	cmd.Flags().BoolVar(&p.manifestCacheBust, "manifest-cache-bust", false, "append a cache-busting query parameter to the distribution manifest request")
	cmd.Flags().BoolVar(&p.disableFallbackToFull, "disable-fallback-to-full", false, "fail instead of falling back to a full install when a module exhausts its retries")
	cmd.Flags().IntVar(&p.maxRetries, "max-retries", 5, "per-module download-decompress retry ceiling")
	cmd.Flags().StringVar(&p.tempDir, "temp-dir", "", "directory for staging and backup data (default: a temp directory under the OS default)")
	cmd.Flags().Float64Var(&p.forceFullRatio, "force-full-ratio", 0, "treat an update as a full install when the touched-module fraction exceeds this (0 disables)")
	cmd.Flags().StringToStringVar(&p.alternatives, "alt", nil, "module=key pairs selecting which alternative to install for each alternatives module")

	return cmd
}

// runInstall is the core install logic, separated from Cobra for
// testability.
func runInstall(ctx context.Context, p installParams) error {
	logger := log.NewWithOptions(p.stderr, log.Options{Level: log.InfoLevel})
	if p.yes {
		// --yes implies a non-interactive run; keep logging terse.
		logger.SetLevel(log.WarnLevel)
	}
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	sk := newTerminalSink(p.stdout, logger)

	previousVersion := ""
	if existing, err := manifest.LoadInstallManifest(filepath.Join(p.destDir, "install.json")); err == nil {
		previousVersion = existing.Version
	}

	if !p.yes && !p.forceFresh {
		if _, err := os.Stat(p.destDir); err == nil {
			if !confirm(p.stdin, p.stdout, fmt.Sprintf("Install/update %s into %s?", p.source, p.destDir)) {
				fmt.Fprintln(p.stdout, "Aborted.")
				return nil
			}
		}
	}

	in := install.NewInstaller(p.source, p.destDir,
		install.WithSink(sk),
		install.WithForceFreshInstall(p.forceFresh),
		install.WithForceCacheBust(p.cacheBust),
		install.WithForceManifestCacheBust(p.manifestCacheBust),
		install.WithDisableFallbackToFull(p.disableFallbackToFull),
		install.WithMaxModuleRetries(p.maxRetries),
		install.WithTemporaryDirectory(p.tempDir),
		install.WithForceFullInstallRatio(p.forceFullRatio),
		install.WithModuleAlternativesMap(p.alternatives),
	)

	result, err := in.Run(ctx)
	if err != nil {
		return err
	}

	if !result.Changed {
		fmt.Fprintln(p.stdout, SuccessStyle.Render("Already up to date."))
		return nil
	}

	printVersionBanner(p.stdout, previousVersion, result.Manifest.Version)
	fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Installed %d module(s) into %s", len(result.Manifest.Modules), p.destDir)))
	return nil
}

// printVersionBanner prints an informational "updated from vX to vY" line
// when both the previous and new distribution versions are valid semver,
// per the CLI-layer semver wiring: the update planner itself is exact-hash,
// never version-range, so this comparison never influences what gets
// downloaded.
func printVersionBanner(out io.Writer, previous, current string) {
	if previous == "" || current == "" || previous == current {
		return
	}
	pv, cv := normalizeSemver(previous), normalizeSemver(current)
	if !semver.IsValid(pv) || !semver.IsValid(cv) {
		return
	}
	if semver.Compare(pv, cv) < 0 {
		fmt.Fprintln(out, SubtitleStyle.Render(fmt.Sprintf("Package updated from %s to %s", previous, current)))
	}
}

func normalizeSemver(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}
