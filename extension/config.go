package extension

import "golang.org/x/crypto/bcrypt"

// Config holds the Stockwise extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.stockwise" or "stockwise" keys).
type Config struct {
	// DisableRoutes skips building and registering the HTTP API server.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents store migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// ReconcileRetries bounds version-conflict retries per item write (default: 5).
	ReconcileRetries int `json:"reconcile_retries" mapstructure:"reconcile_retries" yaml:"reconcile_retries"`

	// BcryptCost is the work factor for password and security answer hashes.
	BcryptCost int `json:"bcrypt_cost" mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`

	// SessionSecret signs session cookies. Required unless DisableRoutes is set.
	SessionSecret string `json:"session_secret" mapstructure:"session_secret" yaml:"session_secret"`

	// StaticDir is served as the single page client when non-empty.
	StaticDir string `json:"static_dir" mapstructure:"static_dir" yaml:"static_dir"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileRetries: 5,
		BcryptCost:       bcrypt.DefaultCost,
	}
}
