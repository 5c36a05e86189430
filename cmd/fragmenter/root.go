// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the fragmenter CLI's command tree.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/flybywiresim/fragmenter/cmd/fragmenter/config"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"

	cfgFile string
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "fragmenter",
		Short: "Install and update content-addressed package distributions",
		Long: TitleStyle.Render("fragmenter") + SubtitleStyle.Render(" - content-addressed package distribution") + `

fragmenter installs and updates large directory trees published as a base
fragment plus a set of named modules, each individually addressable by the
content hash of its files. An update only downloads the modules whose
hash changed, falling back to a full re-download when too much changed
or the local install manifest is missing.

` + SubtitleStyle.Render("Examples:") + `
  fragmenter plan https://cdn.example.com/addon ./addon
  fragmenter install https://cdn.example.com/addon ./addon
  fragmenter install https://cdn.example.com/addon ./addon --yes --alt hifi=high`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config directory)")

	rootCmd.AddCommand(newInstallCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newCompletionCommand())
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Execute runs the fragmenter root command. Called once from main.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// loadWrapperConfig loads the CLI wrapper's own layered configuration
// (flags > env > config file > defaults), distinct from the engine's
// install.Config.
func loadWrapperConfig() (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
}
