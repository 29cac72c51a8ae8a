// Package audithook bridges Stockwise lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. SlogRecorder writes events as structured log
// records; callers can inject a RecorderFunc for anything else.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
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

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnItemCreated      = (*Extension)(nil)
	_ plugin.OnItemUpdated      = (*Extension)(nil)
	_ plugin.OnItemDeleted      = (*Extension)(nil)
	_ plugin.OnStockAdjusted    = (*Extension)(nil)
	_ plugin.OnLowStock         = (*Extension)(nil)
	_ plugin.OnReceiptCreated   = (*Extension)(nil)
	_ plugin.OnReceiptUpdated   = (*Extension)(nil)
	_ plugin.OnReceiptDeleted   = (*Extension)(nil)
	_ plugin.OnUsageCreated     = (*Extension)(nil)
	_ plugin.OnUsageUpdated     = (*Extension)(nil)
	_ plugin.OnUsageDeleted     = (*Extension)(nil)
	_ plugin.OnRequirementSaved = (*Extension)(nil)
	_ plugin.OnReconcileWarning = (*Extension)(nil)
	_ plugin.OnUserCreated      = (*Extension)(nil)
	_ plugin.OnUserSignedIn     = (*Extension)(nil)
	_ plugin.OnAuthFailed       = (*Extension)(nil)
	_ plugin.OnUserDeleted      = (*Extension)(nil)
	_ plugin.OnBackupCompleted  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// SlogRecorder writes audit events to a logger under the "audit" message.
type SlogRecorder struct {
	Logger *slog.Logger
}

// Record implements Recorder.
func (s SlogRecorder) Record(ctx context.Context, event *AuditEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	switch event.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError, SeverityCritical:
		level = slog.LevelError
	}
	logger.Log(ctx, level, "audit",
		"action", event.Action,
		"resource", event.Resource,
		"resource_id", event.ResourceID,
		"category", event.Category,
		"outcome", event.Outcome,
		"reason", event.Reason,
		"metadata", event.Metadata,
	)
	return nil
}

// Extension bridges Stockwise lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Item hooks
// ──────────────────────────────────────────────────

// OnItemCreated implements plugin.OnItemCreated.
func (e *Extension) OnItemCreated(ctx context.Context, it *item.Item) error {
	return e.record(ctx, ActionItemCreated, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ItemID, CategoryInventory, nil,
		"description", it.Description,
		"stock", it.Stock(),
	)
}

// OnItemUpdated implements plugin.OnItemUpdated.
func (e *Extension) OnItemUpdated(ctx context.Context, before, after *item.Item) error {
	return e.record(ctx, ActionItemUpdated, SeverityInfo, OutcomeSuccess,
		ResourceItem, after.ItemID, CategoryInventory, nil,
		"stock_before", before.Stock(),
		"stock_after", after.Stock(),
		"min_level", after.MinLevel,
		"max_level", after.MaxLevel,
	)
}

// OnItemDeleted implements plugin.OnItemDeleted.
func (e *Extension) OnItemDeleted(ctx context.Context, itemID string) error {
	return e.record(ctx, ActionItemDeleted, SeverityWarning, OutcomeSuccess,
		ResourceItem, itemID, CategoryInventory, nil,
	)
}

// OnStockAdjusted implements plugin.OnStockAdjusted.
func (e *Extension) OnStockAdjusted(ctx context.Context, it *item.Item, entry history.Entry) error {
	return e.record(ctx, ActionStockAdjusted, SeverityInfo, OutcomeSuccess,
		ResourceItem, it.ItemID, CategoryInventory, nil,
		"actor", entry.Actor,
		"delta", entry.Delta,
		"stock", it.Stock(),
	)
}

// OnLowStock implements plugin.OnLowStock.
func (e *Extension) OnLowStock(ctx context.Context, it *item.Item) error {
	return e.record(ctx, ActionLowStock, SeverityWarning, OutcomeSuccess,
		ResourceItem, it.ItemID, CategoryInventory, nil,
		"stock", it.Stock(),
		"min_level", it.MinLevel,
	)
}

// ──────────────────────────────────────────────────
// Record hooks
// ──────────────────────────────────────────────────

// OnReceiptCreated implements plugin.OnReceiptCreated.
func (e *Extension) OnReceiptCreated(ctx context.Context, r *receipt.Receipt) error {
	return e.recordReceipt(ctx, ActionReceiptCreated, r)
}

// OnReceiptUpdated implements plugin.OnReceiptUpdated.
func (e *Extension) OnReceiptUpdated(ctx context.Context, r *receipt.Receipt) error {
	return e.recordReceipt(ctx, ActionReceiptUpdated, r)
}

// OnReceiptDeleted implements plugin.OnReceiptDeleted.
func (e *Extension) OnReceiptDeleted(ctx context.Context, r *receipt.Receipt) error {
	return e.recordReceipt(ctx, ActionReceiptDeleted, r)
}

func (e *Extension) recordReceipt(ctx context.Context, action string, r *receipt.Receipt) error {
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceReceipt, r.ID.String(), CategoryPurchasing, nil,
		"po_number", r.PONumber,
		"date_received", r.DateReceived.DayString(),
		"lines", len(r.Items),
	)
}

// OnUsageCreated implements plugin.OnUsageCreated.
func (e *Extension) OnUsageCreated(ctx context.Context, u *usage.Usage) error {
	return e.recordUsage(ctx, ActionUsageCreated, u)
}

// OnUsageUpdated implements plugin.OnUsageUpdated.
func (e *Extension) OnUsageUpdated(ctx context.Context, u *usage.Usage) error {
	return e.recordUsage(ctx, ActionUsageUpdated, u)
}

// OnUsageDeleted implements plugin.OnUsageDeleted.
func (e *Extension) OnUsageDeleted(ctx context.Context, u *usage.Usage) error {
	return e.recordUsage(ctx, ActionUsageDeleted, u)
}

func (e *Extension) recordUsage(ctx context.Context, action string, u *usage.Usage) error {
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceUsage, u.ID.String(), CategoryConsumption, nil,
		"job_number", u.JobNumber,
		"date_used", u.DateUsed.DayString(),
		"lines", len(u.Items),
	)
}

// OnRequirementSaved implements plugin.OnRequirementSaved.
func (e *Extension) OnRequirementSaved(ctx context.Context, r *requirement.Requirement) error {
	return e.record(ctx, ActionRequirementSaved, SeverityInfo, OutcomeSuccess,
		ResourceRequirement, r.ID.String(), CategoryPlanning, nil,
		"job_number", r.JobNumber,
		"needed_by", r.NeededBy.DayString(),
	)
}

// OnReconcileWarning implements plugin.OnReconcileWarning. One event is
// recorded per skipped line.
func (e *Extension) OnReconcileWarning(ctx context.Context, warnings []reconcile.Warning) error {
	for _, w := range warnings {
		if err := e.record(ctx, ActionReconcileSkipped, SeverityWarning, OutcomePartial,
			ResourceItem, w.ItemID, CategoryInventory, nil,
			"record_id", w.RecordID,
			"skip_reason", w.Reason,
		); err != nil {
			return err
		}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnUserCreated implements plugin.OnUserCreated.
func (e *Extension) OnUserCreated(ctx context.Context, u *user.User) error {
	return e.record(ctx, ActionUserCreated, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.UserID, CategoryAccess, nil,
	)
}

// OnUserSignedIn implements plugin.OnUserSignedIn.
func (e *Extension) OnUserSignedIn(ctx context.Context, u *user.User) error {
	return e.record(ctx, ActionUserSignedIn, SeverityInfo, OutcomeSuccess,
		ResourceUser, u.UserID, CategoryAccess, nil,
	)
}

// OnAuthFailed implements plugin.OnAuthFailed.
func (e *Extension) OnAuthFailed(ctx context.Context, login string, reason error) error {
	return e.record(ctx, ActionAuthFailed, SeverityWarning, OutcomeFailure,
		ResourceUser, login, CategoryAccess, reason,
	)
}

// OnUserDeleted implements plugin.OnUserDeleted.
func (e *Extension) OnUserDeleted(ctx context.Context, userID string) error {
	return e.record(ctx, ActionUserDeleted, SeverityWarning, OutcomeSuccess,
		ResourceUser, userID, CategoryAccess, nil,
	)
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnBackupCompleted implements plugin.OnBackupCompleted. A reset backup also
// records a critical history reset event.
func (e *Extension) OnBackupCompleted(ctx context.Context, size int64, reset bool, elapsed time.Duration) error {
	if err := e.record(ctx, ActionBackupCompleted, SeverityInfo, OutcomeSuccess,
		ResourceBackup, "", CategoryMaintenance, nil,
		"bytes", size,
		"elapsed_ms", elapsed.Milliseconds(),
	); err != nil {
		return err
	}
	if !reset {
		return nil
	}
	return e.record(ctx, ActionHistoryReset, SeverityCritical, OutcomeSuccess,
		ResourceBackup, "", CategoryMaintenance, nil,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
