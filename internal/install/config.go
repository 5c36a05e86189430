// SPDX-License-Identifier: MPL-2.0

// Package install implements the Install Orchestrator (§4.F): the state
// machine that turns an UpdatePlan into bytes on disk, with backup-before-
// mutate crash safety and per-module retry.
package install

import "github.com/flybywiresim/fragmenter/internal/sink"

// defaultMaxModuleRetries is how many times the orchestrator re-attempts a
// single module's download-decompress cycle before raising MaxModuleRetries
// and, unless disabled, falling back to a full install.
const defaultMaxModuleRetries = 5

// Config is the engine's own typed configuration, built via DefaultConfig
// and functional options — no file, flag, or environment parsing lives
// here; that belongs to the CLI wrapper's layered viper configuration.
type Config struct {
	// TemporaryDirectory is where downloads, decompression staging, and the
	// pre-install backup live while an install runs. Empty means the
	// orchestrator creates one under os.TempDir() and removes it on every
	// exit path.
	TemporaryDirectory string

	// MaxModuleRetries bounds the per-module download-decompress retry
	// loop (§4.F, §8 property 5).
	MaxModuleRetries int

	// ForceFreshInstall skips the planner's diff entirely and always
	// applies a full install, discarding whatever is at DestDir.
	ForceFreshInstall bool

	// ForceCacheBust appends a cache-busting query parameter to every
	// fragment URL (§4.C).
	ForceCacheBust bool

	// ForceManifestCacheBust appends a cache-busting query parameter to
	// the distribution manifest request itself.
	ForceManifestCacheBust bool

	// DisableFallbackToFull turns off the MaxModuleRetries→full-install
	// fallback (§8 scenario S6): a module retry exhaustion fails the
	// install outright and restores the backup instead.
	DisableFallbackToFull bool

	// ModuleAlternativesMap selects which alternative key to install for
	// every alternatives module present in the distribution.
	ModuleAlternativesMap map[string]string

	// ForceFullInstallRatio upgrades an incremental plan to a full
	// re-download when the touched-module fraction exceeds it. Zero
	// disables the check.
	ForceFullInstallRatio float64

	// Sink receives every lifecycle and progress event. Defaults to
	// sink.NopSink{} when unset.
	Sink sink.Sink
}

// Option mutates a Config during construction.
type Option func(*Config)

// DefaultConfig returns the engine's baseline configuration before any
// Option is applied.
func DefaultConfig() Config {
	return Config{
		MaxModuleRetries: defaultMaxModuleRetries,
		Sink:             sink.NopSink{},
	}
}

// WithTemporaryDirectory overrides where staging and backup data live.
func WithTemporaryDirectory(dir string) Option {
	return func(c *Config) { c.TemporaryDirectory = dir }
}

// WithMaxModuleRetries overrides the per-module retry ceiling.
func WithMaxModuleRetries(n int) Option {
	return func(c *Config) { c.MaxModuleRetries = n }
}

// WithForceFreshInstall forces a full install regardless of what plan.Compute
// would otherwise decide.
func WithForceFreshInstall(force bool) Option {
	return func(c *Config) { c.ForceFreshInstall = force }
}

// WithForceCacheBust toggles the cache-busting query parameter on fragment
// URLs.
func WithForceCacheBust(force bool) Option {
	return func(c *Config) { c.ForceCacheBust = force }
}

// WithForceManifestCacheBust toggles the cache-busting query parameter on
// the distribution manifest request.
func WithForceManifestCacheBust(force bool) Option {
	return func(c *Config) { c.ForceManifestCacheBust = force }
}

// WithDisableFallbackToFull disables the automatic full-install fallback on
// MaxModuleRetries.
func WithDisableFallbackToFull(disable bool) Option {
	return func(c *Config) { c.DisableFallbackToFull = disable }
}

// WithModuleAlternativesMap sets which alternative key to install for each
// alternatives module.
func WithModuleAlternativesMap(m map[string]string) Option {
	return func(c *Config) { c.ModuleAlternativesMap = m }
}

// WithForceFullInstallRatio sets the touched-module-fraction threshold that
// upgrades an incremental plan to a full re-download.
func WithForceFullInstallRatio(ratio float64) Option {
	return func(c *Config) { c.ForceFullInstallRatio = ratio }
}

// WithSink registers the observer that receives lifecycle and progress
// events for the run.
func WithSink(s sink.Sink) Option {
	return func(c *Config) { c.Sink = s }
}

// NewConfig builds a Config from DefaultConfig with opts applied, and fills
// in a NopSink if the caller never supplied one.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	if c.Sink == nil {
		c.Sink = sink.NopSink{}
	}
	if c.MaxModuleRetries <= 0 {
		c.MaxModuleRetries = defaultMaxModuleRetries
	}
	return c
}
