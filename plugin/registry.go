package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// DefaultTimeout bounds every hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit             []OnInit
	onShutdown         []OnShutdown
	onItemCreated      []OnItemCreated
	onItemUpdated      []OnItemUpdated
	onItemDeleted      []OnItemDeleted
	onStockAdjusted    []OnStockAdjusted
	onLowStock         []OnLowStock
	onReceiptCreated   []OnReceiptCreated
	onReceiptUpdated   []OnReceiptUpdated
	onReceiptDeleted   []OnReceiptDeleted
	onUsageCreated     []OnUsageCreated
	onUsageUpdated     []OnUsageUpdated
	onUsageDeleted     []OnUsageDeleted
	onRequirementSaved []OnRequirementSaved
	onReconcileWarning []OnReconcileWarning
	onUserCreated      []OnUserCreated
	onUserSignedIn     []OnUserSignedIn
	onAuthFailed       []OnAuthFailed
	onUserDeleted      []OnUserDeleted
	onBackupCompleted  []OnBackupCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	cache(p, &r.onInit)
	cache(p, &r.onShutdown)
	cache(p, &r.onItemCreated)
	cache(p, &r.onItemUpdated)
	cache(p, &r.onItemDeleted)
	cache(p, &r.onStockAdjusted)
	cache(p, &r.onLowStock)
	cache(p, &r.onReceiptCreated)
	cache(p, &r.onReceiptUpdated)
	cache(p, &r.onReceiptDeleted)
	cache(p, &r.onUsageCreated)
	cache(p, &r.onUsageUpdated)
	cache(p, &r.onUsageDeleted)
	cache(p, &r.onRequirementSaved)
	cache(p, &r.onReconcileWarning)
	cache(p, &r.onUserCreated)
	cache(p, &r.onUserSignedIn)
	cache(p, &r.onAuthFailed)
	cache(p, &r.onUserDeleted)
	cache(p, &r.onBackupCompleted)

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

func cache[T Plugin](p Plugin, list *[]T) {
	if v, ok := p.(T); ok {
		*list = append(*list, v)
	}
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnItemCreated", reflect.TypeFor[OnItemCreated]()},
	{"OnItemUpdated", reflect.TypeFor[OnItemUpdated]()},
	{"OnItemDeleted", reflect.TypeFor[OnItemDeleted]()},
	{"OnStockAdjusted", reflect.TypeFor[OnStockAdjusted]()},
	{"OnLowStock", reflect.TypeFor[OnLowStock]()},
	{"OnReceiptCreated", reflect.TypeFor[OnReceiptCreated]()},
	{"OnReceiptUpdated", reflect.TypeFor[OnReceiptUpdated]()},
	{"OnReceiptDeleted", reflect.TypeFor[OnReceiptDeleted]()},
	{"OnUsageCreated", reflect.TypeFor[OnUsageCreated]()},
	{"OnUsageUpdated", reflect.TypeFor[OnUsageUpdated]()},
	{"OnUsageDeleted", reflect.TypeFor[OnUsageDeleted]()},
	{"OnRequirementSaved", reflect.TypeFor[OnRequirementSaved]()},
	{"OnReconcileWarning", reflect.TypeFor[OnReconcileWarning]()},
	{"OnUserCreated", reflect.TypeFor[OnUserCreated]()},
	{"OnUserSignedIn", reflect.TypeFor[OnUserSignedIn]()},
	{"OnAuthFailed", reflect.TypeFor[OnAuthFailed]()},
	{"OnUserDeleted", reflect.TypeFor[OnUserDeleted]()},
	{"OnBackupCompleted", reflect.TypeFor[OnBackupCompleted]()},
}

// implementedInterfaces returns the hook names p implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// dispatch calls fn for every plugin in the snapshot. Failures are logged,
// never returned: a plugin cannot fail the operation that triggered it.
func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *list
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, tracker any) {
	dispatch(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, tracker) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	dispatch(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitItemCreated emits an item created event.
func (r *Registry) EmitItemCreated(ctx context.Context, it *item.Item) {
	dispatch(ctx, r, "OnItemCreated", &r.onItemCreated, func(p OnItemCreated) error { return p.OnItemCreated(ctx, it) })
}

// EmitItemUpdated emits an item updated event.
func (r *Registry) EmitItemUpdated(ctx context.Context, before, after *item.Item) {
	dispatch(ctx, r, "OnItemUpdated", &r.onItemUpdated, func(p OnItemUpdated) error { return p.OnItemUpdated(ctx, before, after) })
}

// EmitItemDeleted emits an item deleted event.
func (r *Registry) EmitItemDeleted(ctx context.Context, itemID string) {
	dispatch(ctx, r, "OnItemDeleted", &r.onItemDeleted, func(p OnItemDeleted) error { return p.OnItemDeleted(ctx, itemID) })
}

// EmitStockAdjusted emits a manual stock adjustment event.
func (r *Registry) EmitStockAdjusted(ctx context.Context, it *item.Item, entry history.Entry) {
	dispatch(ctx, r, "OnStockAdjusted", &r.onStockAdjusted, func(p OnStockAdjusted) error { return p.OnStockAdjusted(ctx, it, entry) })
}

// EmitLowStock emits a low stock event.
func (r *Registry) EmitLowStock(ctx context.Context, it *item.Item) {
	dispatch(ctx, r, "OnLowStock", &r.onLowStock, func(p OnLowStock) error { return p.OnLowStock(ctx, it) })
}

// EmitReceiptCreated emits a receipt created event.
func (r *Registry) EmitReceiptCreated(ctx context.Context, rc *receipt.Receipt) {
	dispatch(ctx, r, "OnReceiptCreated", &r.onReceiptCreated, func(p OnReceiptCreated) error { return p.OnReceiptCreated(ctx, rc) })
}

// EmitReceiptUpdated emits a receipt updated event.
func (r *Registry) EmitReceiptUpdated(ctx context.Context, rc *receipt.Receipt) {
	dispatch(ctx, r, "OnReceiptUpdated", &r.onReceiptUpdated, func(p OnReceiptUpdated) error { return p.OnReceiptUpdated(ctx, rc) })
}

// EmitReceiptDeleted emits a receipt deleted event.
func (r *Registry) EmitReceiptDeleted(ctx context.Context, rc *receipt.Receipt) {
	dispatch(ctx, r, "OnReceiptDeleted", &r.onReceiptDeleted, func(p OnReceiptDeleted) error { return p.OnReceiptDeleted(ctx, rc) })
}

// EmitUsageCreated emits a usage created event.
func (r *Registry) EmitUsageCreated(ctx context.Context, u *usage.Usage) {
	dispatch(ctx, r, "OnUsageCreated", &r.onUsageCreated, func(p OnUsageCreated) error { return p.OnUsageCreated(ctx, u) })
}

// EmitUsageUpdated emits a usage updated event.
func (r *Registry) EmitUsageUpdated(ctx context.Context, u *usage.Usage) {
	dispatch(ctx, r, "OnUsageUpdated", &r.onUsageUpdated, func(p OnUsageUpdated) error { return p.OnUsageUpdated(ctx, u) })
}

// EmitUsageDeleted emits a usage deleted event.
func (r *Registry) EmitUsageDeleted(ctx context.Context, u *usage.Usage) {
	dispatch(ctx, r, "OnUsageDeleted", &r.onUsageDeleted, func(p OnUsageDeleted) error { return p.OnUsageDeleted(ctx, u) })
}

// EmitRequirementSaved emits a requirement saved event.
func (r *Registry) EmitRequirementSaved(ctx context.Context, rq *requirement.Requirement) {
	dispatch(ctx, r, "OnRequirementSaved", &r.onRequirementSaved, func(p OnRequirementSaved) error { return p.OnRequirementSaved(ctx, rq) })
}

// EmitReconcileWarning emits reconciliation warnings. Empty lists are dropped.
func (r *Registry) EmitReconcileWarning(ctx context.Context, warnings []reconcile.Warning) {
	if len(warnings) == 0 {
		return
	}
	dispatch(ctx, r, "OnReconcileWarning", &r.onReconcileWarning, func(p OnReconcileWarning) error { return p.OnReconcileWarning(ctx, warnings) })
}

// EmitUserCreated emits a signup event.
func (r *Registry) EmitUserCreated(ctx context.Context, u *user.User) {
	dispatch(ctx, r, "OnUserCreated", &r.onUserCreated, func(p OnUserCreated) error { return p.OnUserCreated(ctx, u) })
}

// EmitUserSignedIn emits a signin event.
func (r *Registry) EmitUserSignedIn(ctx context.Context, u *user.User) {
	dispatch(ctx, r, "OnUserSignedIn", &r.onUserSignedIn, func(p OnUserSignedIn) error { return p.OnUserSignedIn(ctx, u) })
}

// EmitAuthFailed emits a rejected credential event.
func (r *Registry) EmitAuthFailed(ctx context.Context, login string, reason error) {
	dispatch(ctx, r, "OnAuthFailed", &r.onAuthFailed, func(p OnAuthFailed) error { return p.OnAuthFailed(ctx, login, reason) })
}

// EmitUserDeleted emits an account deletion event.
func (r *Registry) EmitUserDeleted(ctx context.Context, userID string) {
	dispatch(ctx, r, "OnUserDeleted", &r.onUserDeleted, func(p OnUserDeleted) error { return p.OnUserDeleted(ctx, userID) })
}

// EmitBackupCompleted emits a backup event.
func (r *Registry) EmitBackupCompleted(ctx context.Context, size int64, reset bool, elapsed time.Duration) {
	dispatch(ctx, r, "OnBackupCompleted", &r.onBackupCompleted, func(p OnBackupCompleted) error {
		return p.OnBackupCompleted(ctx, size, reset, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block a stock write.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
