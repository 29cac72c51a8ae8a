package stockwise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/lock"
	"github.com/xraph/stockwise/plugin"
	"github.com/xraph/stockwise/store"
)

// instrumentationName names the tracer.
const instrumentationName = "github.com/xraph/stockwise"

// Tracker is the inventory engine. It owns every write to item ledgers.
type Tracker struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locker  lock.Locker
	tracer  trace.Tracer
	clock   func() time.Time
	sink    backup.Sink

	// maint is held shared by every write and exclusively by a reset.
	// It only covers writers in this process.
	maint sync.RWMutex

	// Configuration
	retries    int
	bcryptCost int
}

// New creates a new Tracker instance.
func New(s store.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:      s,
		plugins:    plugin.NewRegistry(),
		logger:     slog.Default(),
		locker:     lock.NewLocal(),
		tracer:     otel.Tracer(instrumentationName),
		clock:      time.Now,
		retries:    3,
		bcryptCost: bcrypt.DefaultCost,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Option configures a Tracker instance.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
		t.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(t *Tracker) {
		_ = t.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithLocker replaces the in-process item locker, typically with a Redis
// locker when several replicas share one database.
func WithLocker(l lock.Locker) Option {
	return func(t *Tracker) {
		t.locker = l
	}
}

// WithClock sets the time source for ledger timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.clock = now
	}
}

// WithReconcileRetries sets how many times an item write is retried after a
// version conflict.
func WithReconcileRetries(n int) Option {
	return func(t *Tracker) {
		if n >= 0 {
			t.retries = n
		}
	}
}

// WithBcryptCost sets the cost of password and security answer hashes.
func WithBcryptCost(cost int) Option {
	return func(t *Tracker) {
		t.bcryptCost = cost
	}
}

// WithBackupSink keeps a copy of every backup export.
func WithBackupSink(s backup.Sink) Option {
	return func(t *Tracker) {
		t.sink = s
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Tracker) {
		t.tracer = tp.Tracer(instrumentationName)
	}
}

// Start migrates the store and initializes plugins.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.store.Migrate(ctx); err != nil {
		return err
	}

	t.plugins.EmitInit(ctx, t)

	t.logger.Info("stockwise started",
		"plugins", t.plugins.Count(),
		"reconcile_retries", t.retries,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (t *Tracker) Stop() error {
	ctx := context.Background()
	t.plugins.EmitShutdown(ctx)

	return t.store.Close()
}

// Store returns the underlying store.
func (t *Tracker) Store() store.Store { return t.store }

// Plugins returns the plugin registry.
func (t *Tracker) Plugins() *plugin.Registry { return t.plugins }

// Logger returns the tracker's logger.
func (t *Tracker) Logger() *slog.Logger { return t.logger }

// Ping checks the store.
func (t *Tracker) Ping(ctx context.Context) error { return t.store.Ping(ctx) }

func (t *Tracker) now() time.Time { return t.clock().UTC() }

// writing blocks while a reset runs and returns the matching release.
func (t *Tracker) writing() func() {
	t.maint.RLock()
	return t.maint.RUnlock
}

// mutateItem runs a locked, version-checked read-modify-write on one item.
// fn edits the freshly loaded item and reports whether anything changed;
// it may run more than once. before is the item as loaded on the
// successful attempt.
func (t *Tracker) mutateItem(ctx context.Context, itemID string, fn func(it *item.Item) (bool, error)) (after, before *item.Item, err error) {
	ctx, span := t.tracer.Start(ctx, "stockwise.item.write",
		trace.WithAttributes(attribute.String("stockwise.item_id", itemID)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	release, err := t.locker.Acquire(ctx, "item:"+itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrVersionConflict, err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			t.logger.Warn("item lock release failed", "item_id", itemID, "error", rerr)
		}
	}()

	for attempt := 0; ; attempt++ {
		it, err := t.store.GetItem(ctx, itemID)
		if err != nil {
			return nil, nil, err
		}
		before = it.Clone()

		changed, err := fn(it)
		if err != nil {
			return nil, nil, err
		}
		if !changed {
			return it, before, nil
		}

		it.Touch()
		err = t.store.UpdateItem(ctx, it)
		if err == nil {
			span.SetAttributes(attribute.Int("stockwise.attempts", attempt+1))
			return it, before, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= t.retries {
			return nil, nil, err
		}
		t.logger.Debug("retrying item write after version conflict",
			"item_id", itemID,
			"attempt", attempt+1,
		)
	}
}

// notifyStock emits OnLowStock when a write takes an item under its
// minimum level.
func (t *Tracker) notifyStock(ctx context.Context, before, after *item.Item) {
	if after.IsLow() && (before == nil || !before.IsLow()) {
		t.plugins.EmitLowStock(ctx, after)
	}
}
