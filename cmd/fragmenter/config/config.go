// SPDX-License-Identifier: MPL-2.0

// Package config loads the fragmenter CLI wrapper's own layered
// configuration: flags override environment variables, which override a
// config file, which overrides built-in defaults. This is distinct from
// the engine's own install.Config, which the wrapper builds separately
// from the values loaded here (§6 of the distribution engine's design
// deliberately defines no file, environment, or CLI surface of its own).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/flybywiresim/fragmenter/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName names the platform config directory this CLI reads from.
	AppName        = "fragmenter"
	ConfigFileName = "config"
	ConfigFileExt  = "yaml"
)

// Config is the wrapper-level configuration: settings the CLI needs that
// are not part of the engine's own typed Config.
type Config struct {
	// DefaultInstallDir is loaded from the default_install_dir setting. No
	// command reads it: the destination directory is always given on the
	// command line.
	DefaultInstallDir string

	// CacheBust and ManifestCacheBust mirror install.Config's
	// ForceCacheBust/ForceManifestCacheBust, set here as the wrapper's
	// own default rather than requiring a flag every invocation.
	CacheBust         bool
	ManifestCacheBust bool

	// MaxModuleRetries and ForceFullInstallRatio mirror the
	// corresponding install.Config fields.
	MaxModuleRetries      int
	ForceFullInstallRatio float64

	// LogLevel is loaded from the log_level setting ("debug", "info",
	// "warn", "error"). No command reads it: the install command's terminal
	// sink logs at info, at warn with --yes, and at debug with --verbose.
	LogLevel string
}

// LoadOptions customizes where Load reads a config file from.
type LoadOptions struct {
	// ConfigFilePath, when set, is read exclusively instead of the
	// platform config directory search.
	ConfigFilePath string
}

// DefaultConfig returns the configuration used when no file, environment
// variable, or flag overrides a setting.
func DefaultConfig() Config {
	return Config{
		MaxModuleRetries: 5,
		LogLevel:         "info",
	}
}

// ConfigDir returns the platform-specific directory fragmenter's own
// config file lives in.
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case platform.Windows:
		dir = os.Getenv("APPDATA")
		if dir == "" {
			dir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, "Library", "Application Support")
	default:
		dir = os.Getenv("XDG_CONFIG_HOME")
		if dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolving home directory: %w", err)
			}
			dir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(dir, AppName), nil
}

// Load builds a Config by layering, in increasing precedence: built-in
// defaults, a config file, and FRAGMENTER_-prefixed environment variables.
// Flags are applied by the caller on top of the returned Config, since
// cobra flag values aren't visible to this package.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("default_install_dir", defaults.DefaultInstallDir)
	v.SetDefault("cache_bust", defaults.CacheBust)
	v.SetDefault("manifest_cache_bust", defaults.ManifestCacheBust)
	v.SetDefault("max_module_retries", defaults.MaxModuleRetries)
	v.SetDefault("force_full_install_ratio", defaults.ForceFullInstallRatio)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix("FRAGMENTER")
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		dir, err := ConfigDir()
		if err == nil {
			v.AddConfigPath(dir)
			v.SetConfigName(ConfigFileName)
			v.SetConfigType(ConfigFileExt)
			if err := v.ReadInConfig(); err != nil {
				if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
					return nil, fmt.Errorf("reading config file: %w", err)
				}
			}
		}
	}

	return &Config{
		DefaultInstallDir:     v.GetString("default_install_dir"),
		CacheBust:             v.GetBool("cache_bust"),
		ManifestCacheBust:     v.GetBool("manifest_cache_bust"),
		MaxModuleRetries:      v.GetInt("max_module_retries"),
		ForceFullInstallRatio: v.GetFloat64("force_full_install_ratio"),
		LogLevel:              v.GetString("log_level"),
	}, nil
}
