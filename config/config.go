// Package config loads process configuration from the environment.
//
// Values come from STOCKWISE_* variables, optionally seeded from a .env
// file. PORT and MONGODB_URI are honoured as fallbacks so existing
// deployments keep working.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds everything cmd/stockwise needs to assemble a server.
type Config struct {
	// Addr is the HTTP listen address (default ":3000").
	Addr string
	// StaticDir, when set, is served as a single page application.
	StaticDir string
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string

	// Store selects the backend: memory, sqlite, mongo or postgres.
	Store            string
	SQLitePath       string
	MongoURI         string
	MongoDatabase    string
	PostgresDSN      string
	PostgresPoolSize int

	// RedisAddr enables the Redis item locker when set.
	RedisAddr     string
	RedisPassword string
	LockTTL       time.Duration

	// SessionSecret signs remember-me cookies.
	SessionSecret string
	SecureCookie  bool

	// BackupDir keeps a copy of every export on disk.
	BackupDir string
	// GCSBucket keeps a copy of every export in Cloud Storage. It wins
	// over BackupDir.
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string

	LogFormat string
	LogLevel  slog.Level

	ReconcileRetries int
	BcryptCost       int
	ShutdownTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:             ":3000",
		Store:            StoreMemory,
		SQLitePath:       "stockwise.db",
		MongoDatabase:    "stockwise",
		PostgresPoolSize: 10,
		LockTTL:          10 * time.Second,
		GCSPrefix:        "backups/",
		LogFormat:        "text",
		LogLevel:         slog.LevelInfo,
		ReconcileRetries: 3,
		BcryptCost:       10,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Load reads the given .env files (".env" when none), then the
// environment. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a variable lookup function.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	r := reader{lookup: lookup}

	if port, ok := lookup("PORT"); ok && port != "" {
		cfg.Addr = ":" + port
	}
	if uri, ok := lookup("MONGODB_URI"); ok && uri != "" {
		cfg.MongoURI = uri
		cfg.Store = StoreMongo
	}

	r.str("STOCKWISE_ADDR", &cfg.Addr)
	r.str("STOCKWISE_STATIC_DIR", &cfg.StaticDir)
	r.list("STOCKWISE_CORS_ORIGINS", &cfg.CORSOrigins)
	r.str("STOCKWISE_STORE", &cfg.Store)
	r.str("STOCKWISE_SQLITE_PATH", &cfg.SQLitePath)
	r.str("STOCKWISE_MONGO_URI", &cfg.MongoURI)
	r.str("STOCKWISE_MONGO_DATABASE", &cfg.MongoDatabase)
	r.str("STOCKWISE_POSTGRES_DSN", &cfg.PostgresDSN)
	r.integer("STOCKWISE_POSTGRES_POOL_SIZE", &cfg.PostgresPoolSize)
	r.str("STOCKWISE_REDIS_ADDR", &cfg.RedisAddr)
	r.str("STOCKWISE_REDIS_PASSWORD", &cfg.RedisPassword)
	r.duration("STOCKWISE_LOCK_TTL", &cfg.LockTTL)
	r.str("STOCKWISE_SESSION_SECRET", &cfg.SessionSecret)
	r.boolean("STOCKWISE_SECURE_COOKIE", &cfg.SecureCookie)
	r.str("STOCKWISE_BACKUP_DIR", &cfg.BackupDir)
	r.str("STOCKWISE_GCS_BUCKET", &cfg.GCSBucket)
	r.str("STOCKWISE_GCS_PREFIX", &cfg.GCSPrefix)
	r.str("STOCKWISE_GCS_CREDENTIALS_FILE", &cfg.GCSCredentialsFile)
	r.str("STOCKWISE_LOG_FORMAT", &cfg.LogFormat)
	r.level("STOCKWISE_LOG_LEVEL", &cfg.LogLevel)
	r.integer("STOCKWISE_RECONCILE_RETRIES", &cfg.ReconcileRetries)
	r.integer("STOCKWISE_BCRYPT_COST", &cfg.BcryptCost)
	r.duration("STOCKWISE_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	if err := r.err.Err(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: STOCKWISE_SQLITE_PATH is required for the sqlite store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("config: STOCKWISE_MONGO_URI is required for the mongo store")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: STOCKWISE_POSTGRES_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if c.ReconcileRetries < 0 {
		return errors.New("config: STOCKWISE_RECONCILE_RETRIES must not be negative")
	}
	return nil
}

// Logger builds the process logger.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

type reader struct {
	lookup func(string) (string, bool)
	err    errorList
}

func (r *reader) get(key string) (string, bool) {
	v, ok := r.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) str(key string, dst *string) {
	if v, ok := r.get(key); ok {
		*dst = v
	}
}

func (r *reader) list(key string, dst *[]string) {
	v, ok := r.get(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (r *reader) integer(key string, dst *int) {
	if v, ok := r.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.err.add(key, err)
			return
		}
		*dst = n
	}
}

func (r *reader) boolean(key string, dst *bool) {
	if v, ok := r.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.err.add(key, err)
			return
		}
		*dst = b
	}
}

func (r *reader) duration(key string, dst *time.Duration) {
	if v, ok := r.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.err.add(key, err)
			return
		}
		*dst = d
	}
}

func (r *reader) level(key string, dst *slog.Level) {
	if v, ok := r.get(key); ok {
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			r.err.add(key, err)
		}
	}
}

type errorList []error

func (l *errorList) add(key string, err error) {
	*l = append(*l, fmt.Errorf("config: %s: %w", key, err))
}

func (l errorList) Err() error {
	return errors.Join(l...)
}
