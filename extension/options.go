package extension

import (
	stockwise "github.com/xraph/stockwise"
	"github.com/xraph/stockwise/api"
	"github.com/xraph/stockwise/plugin"
	"github.com/xraph/stockwise/store"
)

// Option configures the Stockwise Forge extension.
type Option func(*Extension)

// WithStore sets the store for the tracker.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithTrackerOption passes a stockwise.Option through to the tracker.
func WithTrackerOption(opt stockwise.Option) Option {
	return func(e *Extension) {
		e.trackerOpts = append(e.trackerOpts, opt)
	}
}

// WithAPIOption passes an api.Option through to the HTTP server.
func WithAPIOption(opt api.Option) Option {
	return func(e *Extension) {
		e.apiOpts = append(e.apiOpts, opt)
	}
}

// WithPlugin registers a tracker plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.trackerOpts = append(e.trackerOpts, stockwise.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes skips the HTTP API server.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents store migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithSessionSecret sets the key used to sign session cookies.
func WithSessionSecret(secret string) Option {
	return func(e *Extension) { e.config.SessionSecret = secret }
}

// WithStaticDir serves the client bundle in dir for unmatched routes.
func WithStaticDir(dir string) Option {
	return func(e *Extension) { e.config.StaticDir = dir }
}

// WithReconcileRetries bounds version-conflict retries per item write.
func WithReconcileRetries(n int) Option {
	return func(e *Extension) { e.config.ReconcileRetries = n }
}

// WithBcryptCost sets the password hashing work factor.
func WithBcryptCost(cost int) Option {
	return func(e *Extension) { e.config.BcryptCost = cost }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
