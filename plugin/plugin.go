// Package plugin provides an extensible plugin system for Stockwise.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the tracker starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, tracker any) error
}

// OnShutdown is called when the tracker stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnItemCreated is called after an item is stored.
type OnItemCreated interface {
	Plugin
	OnItemCreated(ctx context.Context, it *item.Item) error
}

// OnItemUpdated is called after an item's fields or levels change.
type OnItemUpdated interface {
	Plugin
	OnItemUpdated(ctx context.Context, before, after *item.Item) error
}

// OnItemDeleted is called after an item is removed.
type OnItemDeleted interface {
	Plugin
	OnItemDeleted(ctx context.Context, itemID string) error
}

// OnStockAdjusted is called after a manual Stock entry is appended.
type OnStockAdjusted interface {
	Plugin
	OnStockAdjusted(ctx context.Context, it *item.Item, entry history.Entry) error
}

// OnLowStock is called when a write leaves an item under its minimum level.
type OnLowStock interface {
	Plugin
	OnLowStock(ctx context.Context, it *item.Item) error
}

// ──────────────────────────────────────────────────
// Record hooks
// ──────────────────────────────────────────────────

// OnReceiptCreated is called after a receipt is stored and reconciled.
type OnReceiptCreated interface {
	Plugin
	OnReceiptCreated(ctx context.Context, r *receipt.Receipt) error
}

// OnReceiptUpdated is called after a receipt edit is reconciled.
type OnReceiptUpdated interface {
	Plugin
	OnReceiptUpdated(ctx context.Context, r *receipt.Receipt) error
}

// OnReceiptDeleted is called after a receipt is removed.
type OnReceiptDeleted interface {
	Plugin
	OnReceiptDeleted(ctx context.Context, r *receipt.Receipt) error
}

// OnUsageCreated is called after a usage is stored and reconciled.
type OnUsageCreated interface {
	Plugin
	OnUsageCreated(ctx context.Context, u *usage.Usage) error
}

// OnUsageUpdated is called after a usage edit is reconciled.
type OnUsageUpdated interface {
	Plugin
	OnUsageUpdated(ctx context.Context, u *usage.Usage) error
}

// OnUsageDeleted is called after a usage is removed.
type OnUsageDeleted interface {
	Plugin
	OnUsageDeleted(ctx context.Context, u *usage.Usage) error
}

// OnRequirementSaved is called after a requirement is created or updated.
type OnRequirementSaved interface {
	Plugin
	OnRequirementSaved(ctx context.Context, r *requirement.Requirement) error
}

// OnReconcileWarning is called when reconciliation skipped one or more lines.
type OnReconcileWarning interface {
	Plugin
	OnReconcileWarning(ctx context.Context, warnings []reconcile.Warning) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserCreated is called after signup.
type OnUserCreated interface {
	Plugin
	OnUserCreated(ctx context.Context, u *user.User) error
}

// OnUserSignedIn is called after a successful signin.
type OnUserSignedIn interface {
	Plugin
	OnUserSignedIn(ctx context.Context, u *user.User) error
}

// OnAuthFailed is called when a password or security answer is rejected.
type OnAuthFailed interface {
	Plugin
	OnAuthFailed(ctx context.Context, login string, reason error) error
}

// OnUserDeleted is called after an account is removed.
type OnUserDeleted interface {
	Plugin
	OnUserDeleted(ctx context.Context, userID string) error
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnBackupCompleted is called after a workbook export, with reset reporting
// whether the destructive reset ran.
type OnBackupCompleted interface {
	Plugin
	OnBackupCompleted(ctx context.Context, size int64, reset bool, elapsed time.Duration) error
}
