package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/xraph/grove"

	"github.com/xraph/stockwise"
	audithook "github.com/xraph/stockwise/audit_hook"
	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/config"
	"github.com/xraph/stockwise/lock"
	"github.com/xraph/stockwise/observability"
	"github.com/xraph/stockwise/session"
	"github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/store/memory"
	"github.com/xraph/stockwise/store/mongo"
	"github.com/xraph/stockwise/store/postgres"
	"github.com/xraph/stockwise/store/sqlite"
)

// app is a started Tracker with everything it was assembled from.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	tracker  *stockwise.Tracker
	registry *prometheus.Registry
	closers  []func() error
}

func loadConfig() (config.Config, error) {
	return config.Load(envFile)
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, grove.WithLogger(logger))
	case config.StoreMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, grove.WithLogger(logger))
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.PostgresDSN, cfg.PostgresPoolSize, grove.WithLogger(logger))
	default:
		return memory.New(), nil
	}
}

// newApp assembles and starts the Tracker. Callers must call close.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := cfg.Logger()
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s, err := openStore(ctx, cfg, logger.With("component", "store"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}

	opts := []stockwise.Option{
		stockwise.WithLogger(logger),
		stockwise.WithReconcileRetries(cfg.ReconcileRetries),
		stockwise.WithBcryptCost(cfg.BcryptCost),
		stockwise.WithPlugin(audithook.New(audithook.SlogRecorder{Logger: logger.With("component", "audit")})),
		stockwise.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(a.registry))),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			_ = s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		opts = append(opts, stockwise.WithLocker(lock.NewRedis(client, cfg.LockTTL)))
		logger.Info("using redis item locks", "addr", cfg.RedisAddr)
	}

	switch {
	case cfg.GCSBucket != "":
		var gcsOpts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			gcsOpts = append(gcsOpts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		sink, err := backup.NewGCSSink(ctx, cfg.GCSBucket, cfg.GCSPrefix, gcsOpts...)
		if err != nil {
			a.close()
			_ = s.Close()
			return nil, err
		}
		a.closers = append(a.closers, sink.Close)
		opts = append(opts, stockwise.WithBackupSink(sink))
	case cfg.BackupDir != "":
		opts = append(opts, stockwise.WithBackupSink(backup.FileSink{Dir: cfg.BackupDir}))
	}

	a.tracker = stockwise.New(s, opts...)
	if err := a.tracker.Start(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// close stops the Tracker, then releases what it was built on.
func (a *app) close() {
	if a.tracker != nil {
		if err := a.tracker.Stop(); err != nil {
			a.logger.Warn("stop tracker", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close dependency", "error", err)
		}
	}
}

// sessions builds the cookie signer. Without a configured secret a random
// one is used, so remembered signins end with the process.
func (a *app) sessions() (*session.Manager, error) {
	secret := []byte(a.cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		a.logger.Warn("STOCKWISE_SESSION_SECRET is not set; sessions will not survive a restart")
	}
	return session.New(secret, session.WithSecureCookie(a.cfg.SecureCookie), session.WithTTL(session.DefaultTTL))
}

func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
