// Package observability provides a metrics extension for Stockwise that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/plugin"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnItemCreated      = (*MetricsExtension)(nil)
	_ plugin.OnItemUpdated      = (*MetricsExtension)(nil)
	_ plugin.OnItemDeleted      = (*MetricsExtension)(nil)
	_ plugin.OnStockAdjusted    = (*MetricsExtension)(nil)
	_ plugin.OnLowStock         = (*MetricsExtension)(nil)
	_ plugin.OnReceiptCreated   = (*MetricsExtension)(nil)
	_ plugin.OnReceiptUpdated   = (*MetricsExtension)(nil)
	_ plugin.OnReceiptDeleted   = (*MetricsExtension)(nil)
	_ plugin.OnUsageCreated     = (*MetricsExtension)(nil)
	_ plugin.OnUsageUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnUsageDeleted     = (*MetricsExtension)(nil)
	_ plugin.OnRequirementSaved = (*MetricsExtension)(nil)
	_ plugin.OnReconcileWarning = (*MetricsExtension)(nil)
	_ plugin.OnUserCreated      = (*MetricsExtension)(nil)
	_ plugin.OnUserSignedIn     = (*MetricsExtension)(nil)
	_ plugin.OnAuthFailed       = (*MetricsExtension)(nil)
	_ plugin.OnBackupCompleted  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Tracker plugin to track inventory activity.
type MetricsExtension struct {
	factory MetricFactory

	// Item metrics
	ItemCreated   Counter
	ItemUpdated   Counter
	ItemDeleted   Counter
	StockAdjusted Counter
	LowStock      Counter

	// Record metrics
	ReceiptCreated   Counter
	ReceiptUpdated   Counter
	ReceiptDeleted   Counter
	UnitsReceived    Counter
	UsageCreated     Counter
	UsageUpdated     Counter
	UsageDeleted     Counter
	UnitsUsed        Counter
	RequirementSaved Counter
	RecordLines      Histogram

	// Reconciliation metrics
	ReconcileSkipped Counter

	// Account metrics
	UserCreated Counter
	SignIns     Counter
	AuthFailed  Counter

	// Maintenance metrics
	Backups       Counter
	Resets        Counter
	BackupBytes   Histogram
	BackupLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ItemCreated:   factory.Counter("stockwise.item.created"),
		ItemUpdated:   factory.Counter("stockwise.item.updated"),
		ItemDeleted:   factory.Counter("stockwise.item.deleted"),
		StockAdjusted: factory.Counter("stockwise.stock.adjusted"),
		LowStock:      factory.Counter("stockwise.stock.low"),

		ReceiptCreated:   factory.Counter("stockwise.receipt.created"),
		ReceiptUpdated:   factory.Counter("stockwise.receipt.updated"),
		ReceiptDeleted:   factory.Counter("stockwise.receipt.deleted"),
		UnitsReceived:    factory.Counter("stockwise.units.received"),
		UsageCreated:     factory.Counter("stockwise.usage.created"),
		UsageUpdated:     factory.Counter("stockwise.usage.updated"),
		UsageDeleted:     factory.Counter("stockwise.usage.deleted"),
		UnitsUsed:        factory.Counter("stockwise.units.used"),
		RequirementSaved: factory.Counter("stockwise.requirement.saved"),
		RecordLines:      factory.Histogram("stockwise.record.lines"),

		ReconcileSkipped: factory.Counter("stockwise.reconcile.skipped"),

		UserCreated: factory.Counter("stockwise.user.created"),
		SignIns:     factory.Counter("stockwise.user.signins"),
		AuthFailed:  factory.Counter("stockwise.auth.failed"),

		Backups:       factory.Counter("stockwise.backup.completed"),
		Resets:        factory.Counter("stockwise.history.reset"),
		BackupBytes:   factory.Histogram("stockwise.backup.bytes"),
		BackupLatency: factory.Histogram("stockwise.backup.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnItemCreated implements plugin.OnItemCreated.
func (m *MetricsExtension) OnItemCreated(_ context.Context, _ *item.Item) error {
	m.ItemCreated.Inc()
	return nil
}

// OnItemUpdated implements plugin.OnItemUpdated.
func (m *MetricsExtension) OnItemUpdated(_ context.Context, _, _ *item.Item) error {
	m.ItemUpdated.Inc()
	return nil
}

// OnItemDeleted implements plugin.OnItemDeleted.
func (m *MetricsExtension) OnItemDeleted(_ context.Context, _ string) error {
	m.ItemDeleted.Inc()
	return nil
}

// OnStockAdjusted implements plugin.OnStockAdjusted.
func (m *MetricsExtension) OnStockAdjusted(_ context.Context, _ *item.Item, _ history.Entry) error {
	m.StockAdjusted.Inc()
	return nil
}

// OnLowStock implements plugin.OnLowStock.
func (m *MetricsExtension) OnLowStock(_ context.Context, _ *item.Item) error {
	m.LowStock.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Record hooks
// ──────────────────────────────────────────────────

// OnReceiptCreated implements plugin.OnReceiptCreated.
func (m *MetricsExtension) OnReceiptCreated(_ context.Context, r *receipt.Receipt) error {
	m.ReceiptCreated.Inc()
	m.RecordLines.Observe(float64(len(r.Items)))
	for _, l := range r.Items {
		m.UnitsReceived.Add(float64(l.QuantityReceived))
	}
	return nil
}

// OnReceiptUpdated implements plugin.OnReceiptUpdated.
func (m *MetricsExtension) OnReceiptUpdated(_ context.Context, _ *receipt.Receipt) error {
	m.ReceiptUpdated.Inc()
	return nil
}

// OnReceiptDeleted implements plugin.OnReceiptDeleted.
func (m *MetricsExtension) OnReceiptDeleted(_ context.Context, _ *receipt.Receipt) error {
	m.ReceiptDeleted.Inc()
	return nil
}

// OnUsageCreated implements plugin.OnUsageCreated.
func (m *MetricsExtension) OnUsageCreated(_ context.Context, u *usage.Usage) error {
	m.UsageCreated.Inc()
	m.RecordLines.Observe(float64(len(u.Items)))
	for _, l := range u.Items {
		m.UnitsUsed.Add(float64(l.QuantityUsed))
	}
	return nil
}

// OnUsageUpdated implements plugin.OnUsageUpdated.
func (m *MetricsExtension) OnUsageUpdated(_ context.Context, _ *usage.Usage) error {
	m.UsageUpdated.Inc()
	return nil
}

// OnUsageDeleted implements plugin.OnUsageDeleted.
func (m *MetricsExtension) OnUsageDeleted(_ context.Context, _ *usage.Usage) error {
	m.UsageDeleted.Inc()
	return nil
}

// OnRequirementSaved implements plugin.OnRequirementSaved.
func (m *MetricsExtension) OnRequirementSaved(_ context.Context, _ *requirement.Requirement) error {
	m.RequirementSaved.Inc()
	return nil
}

// OnReconcileWarning implements plugin.OnReconcileWarning.
func (m *MetricsExtension) OnReconcileWarning(_ context.Context, warnings []reconcile.Warning) error {
	m.ReconcileSkipped.Add(float64(len(warnings)))
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserCreated implements plugin.OnUserCreated.
func (m *MetricsExtension) OnUserCreated(_ context.Context, _ *user.User) error {
	m.UserCreated.Inc()
	return nil
}

// OnUserSignedIn implements plugin.OnUserSignedIn.
func (m *MetricsExtension) OnUserSignedIn(_ context.Context, _ *user.User) error {
	m.SignIns.Inc()
	return nil
}

// OnAuthFailed implements plugin.OnAuthFailed.
func (m *MetricsExtension) OnAuthFailed(_ context.Context, _ string, _ error) error {
	m.AuthFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnBackupCompleted implements plugin.OnBackupCompleted.
func (m *MetricsExtension) OnBackupCompleted(_ context.Context, size int64, reset bool, elapsed time.Duration) error {
	m.Backups.Inc()
	if reset {
		m.Resets.Inc()
	}
	m.BackupBytes.Observe(float64(size))
	m.BackupLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
