// Package extension provides the Forge extension adapter for Stockwise.
//
// It implements the forge.Extension interface to integrate the inventory
// tracker into a Forge application with DI registration and lifecycle
// management. The tracker is always provided; the HTTP API server is
// provided as well unless routes are disabled.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.stockwise" or
// "stockwise" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	stockwise "github.com/xraph/stockwise"
	"github.com/xraph/stockwise/api"
	"github.com/xraph/stockwise/session"
	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "stockwise"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Ledger-backed inventory tracker"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Stockwise as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	tracker     *stockwise.Tracker
	server      *api.Server
	store       store.Store
	trackerOpts []stockwise.Option
	apiOpts     []api.Option
}

// New creates a new Stockwise Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tracker returns the underlying tracker. Nil until Register is called.
func (e *Extension) Tracker() *stockwise.Tracker { return e.tracker }

// Server returns the HTTP API server, or nil when routes are disabled.
func (e *Extension) Server() *api.Server { return e.server }

// Register implements [forge.Extension]. It loads configuration, builds
// the tracker and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	if err := vessel.Provide(fapp.Container(), func() (*stockwise.Tracker, error) {
		return e.tracker, nil
	}); err != nil {
		return err
	}
	if e.server == nil {
		return nil
	}
	return vessel.Provide(fapp.Container(), func() (*api.Server, error) {
		return e.server, nil
	})
}

// build constructs the tracker and, unless routes are disabled, the API
// server from the resolved config.
func (e *Extension) build() error {
	if e.store == nil {
		e.store = memory.New()
	}
	e.tracker = stockwise.New(e.store, e.buildTrackerOpts()...)

	if e.config.DisableRoutes {
		return nil
	}
	sessions, err := session.New([]byte(e.config.SessionSecret))
	if err != nil {
		return errors.New("stockwise: session_secret is required when routes are enabled")
	}
	opts := []api.Option{
		api.WithSessions(sessions),
		api.WithStaticDir(e.config.StaticDir),
	}
	e.server = api.New(e.tracker, append(opts, e.apiOpts...)...)
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.tracker == nil {
		return errors.New("stockwise: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.tracker.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.tracker != nil {
		if err := e.tracker.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("stockwise: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildTrackerOpts constructs stockwise.Option values from the resolved config.
func (e *Extension) buildTrackerOpts() []stockwise.Option {
	opts := make([]stockwise.Option, 0, len(e.trackerOpts)+2)
	if e.config.ReconcileRetries > 0 {
		opts = append(opts, stockwise.WithReconcileRetries(e.config.ReconcileRetries))
	}
	if e.config.BcryptCost > 0 {
		opts = append(opts, stockwise.WithBcryptCost(e.config.BcryptCost))
	}
	// Pass-through options win over config.
	return append(opts, e.trackerOpts...)
}

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("stockwise: configuration is required but not found in config files; " +
				"ensure 'extensions.stockwise' or 'stockwise' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("stockwise: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("reconcile_retries", e.config.ReconcileRetries),
		forge.F("bcrypt_cost", e.config.BcryptCost),
		forge.F("static_dir", e.config.StaticDir),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.stockwise", "stockwise"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("stockwise: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("stockwise: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ReconcileRetries == 0 {
		cfg.ReconcileRetries = defaults.ReconcileRetries
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML takes precedence; programmatic values fill gaps and bool flags
// override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if yamlConfig.SessionSecret == "" {
		yamlConfig.SessionSecret = programmaticConfig.SessionSecret
	}
	if yamlConfig.StaticDir == "" {
		yamlConfig.StaticDir = programmaticConfig.StaticDir
	}
	if yamlConfig.ReconcileRetries == 0 {
		yamlConfig.ReconcileRetries = programmaticConfig.ReconcileRetries
	}
	if yamlConfig.BcryptCost == 0 {
		yamlConfig.BcryptCost = programmaticConfig.BcryptCost
	}
	return mergeWithDefaults(yamlConfig)
}
