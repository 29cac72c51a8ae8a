package stockwise

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
)

// ReceiptInput is the editable part of an order-history record.
type ReceiptInput struct {
	PONumber     string         `json:"poNumber" validate:"required"`
	DateReceived types.Date     `json:"dateReceived" validate:"required"`
	Items        []receipt.Line `json:"items" validate:"required,min=1,dive"`
}

// ReceiptResult is a saved receipt with the lines reconciliation skipped.
type ReceiptResult struct {
	Receipt  *receipt.Receipt
	Warnings []Warning
}

// UsageInput is the editable part of a use-history record.
type UsageInput struct {
	JobNumber string       `json:"jobNumber" validate:"required"`
	DateUsed  types.Date   `json:"dateUsed" validate:"required"`
	Items     []usage.Line `json:"items" validate:"required,min=1,dive"`
}

// UsageResult is a saved usage with the lines reconciliation skipped.
type UsageResult struct {
	Usage    *usage.Usage
	Warnings []Warning
}

func (in *ReceiptInput) normalize() []reconcile.Line {
	in.PONumber = strings.TrimSpace(in.PONumber)
	lines := make([]reconcile.Line, len(in.Items))
	for i := range in.Items {
		in.Items[i].ItemID = strings.TrimSpace(in.Items[i].ItemID)
		lines[i] = reconcile.Line{ItemID: in.Items[i].ItemID, Quantity: in.Items[i].QuantityReceived}
	}
	return lines
}

func (in *UsageInput) normalize() []reconcile.Line {
	in.JobNumber = strings.TrimSpace(in.JobNumber)
	lines := make([]reconcile.Line, len(in.Items))
	for i := range in.Items {
		in.Items[i].ItemID = strings.TrimSpace(in.Items[i].ItemID)
		lines[i] = reconcile.Line{ItemID: in.Items[i].ItemID, Quantity: in.Items[i].QuantityUsed}
	}
	return lines
}

// checkRecord validates a record input and rejects repeated items, which
// would need two entries under one correlation id.
func checkRecord(in any, lines []reconcile.Line) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if dups := reconcile.Duplicates(lines); len(dups) > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateLine, strings.Join(dups, ", "))
	}
	return nil
}

// lockRecord serializes edits of one record.
func (t *Tracker) lockRecord(ctx context.Context, kind reconcile.Kind, recordID id.ID) (func(), error) {
	release, err := t.locker.Acquire(ctx, kind.Name+":"+recordID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionConflict, err)
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn("record lock release failed", "record_id", recordID.String(), "error", err)
		}
	}, nil
}

// reconcile applies changes item by item. Missing items and replacements
// without a correlated entry are skipped and reported as warnings. It
// returns the storage ids of the items that now carry the record's entry.
func (t *Tracker) reconcile(ctx context.Context, kind reconcile.Kind, recordID string, changes []reconcile.Change) (refs []id.ItemID, warnings []Warning, err error) {
	ctx, span := t.tracer.Start(ctx, "stockwise.reconcile",
		trace.WithAttributes(
			attribute.String("stockwise.record_kind", kind.Name),
			attribute.String("stockwise.record_id", recordID),
			attribute.Int("stockwise.changes", len(changes)),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Int("stockwise.warnings", len(warnings)))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	for _, c := range changes {
		matched := false
		after, before, err := t.mutateItem(ctx, c.ItemID, func(it *item.Item) (bool, error) {
			next, ok := reconcile.Apply(it.History, recordID, c)
			matched = ok
			if !ok {
				return false, nil
			}
			it.History = next
			return true, nil
		})
		if errors.Is(err, ErrItemNotFound) {
			warnings = append(warnings, Warning{ItemID: c.ItemID, RecordID: recordID, Reason: reconcile.ReasonItemNotFound})
			continue
		}
		if err != nil {
			return refs, warnings, fmt.Errorf("stockwise: reconcile %s %s on %s: %w", kind.Name, recordID, c.ItemID, err)
		}
		if !matched {
			warnings = append(warnings, Warning{ItemID: c.ItemID, RecordID: recordID, Reason: reconcile.ReasonNoCorrelatedEntry})
		}
		if c.Op != reconcile.Remove {
			refs = append(refs, after.ID)
		}
		t.notifyStock(ctx, before, after)
	}

	if len(warnings) > 0 {
		t.logger.Warn("reconciliation skipped lines",
			"kind", kind.Name,
			"record_id", recordID,
			"warnings", len(warnings),
		)
		t.plugins.EmitReconcileWarning(ctx, warnings)
	}
	return refs, warnings, nil
}

// ──────────────────────────────────────────────────
// Order History (receipts)
// ──────────────────────────────────────────────────

// ListReceipts returns every receipt.
func (t *Tracker) ListReceipts(ctx context.Context) ([]*receipt.Receipt, error) {
	return t.store.ListReceipts(ctx)
}

// GetReceipt retrieves a receipt by ID.
func (t *Tracker) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	return t.store.GetReceipt(ctx, receiptID)
}

// CreateReceipt stores a receipt, then adds one Received entry per line to
// the items it lists. The record is written first so that no entry ever
// points at a record that does not exist. The record lock is taken before
// the insert so a delete of the new id waits for the ledgers to settle.
func (t *Tracker) CreateReceipt(ctx context.Context, actor string, in ReceiptInput) (*ReceiptResult, error) {
	lines := in.normalize()
	if err := checkRecord(in, lines); err != nil {
		return nil, err
	}

	r := &receipt.Receipt{
		Entity:       types.NewEntity(),
		ID:           id.NewReceiptID(),
		PONumber:     in.PONumber,
		DateReceived: in.DateReceived,
		Items:        in.Items,
	}

	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Receipt, r.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.store.CreateReceipt(ctx, r); err != nil {
		return nil, err
	}

	changes := reconcile.PlanCreate(reconcile.Receipt, r.ID.String(), actor, lines, t.now())
	refs, warnings, err := t.reconcile(ctx, reconcile.Receipt, r.ID.String(), changes)
	r.ItemRefs = refs
	if uerr := t.store.UpdateReceipt(ctx, r); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("receipt created", "receipt_id", r.ID.String(), "po_number", r.PONumber, "lines", len(lines))
	t.plugins.EmitReceiptCreated(ctx, r)
	return &ReceiptResult{Receipt: r, Warnings: warnings}, nil
}

// UpdateReceipt reconciles the item ledgers from the receipt's old lines to
// the new ones and saves the receipt.
func (t *Tracker) UpdateReceipt(ctx context.Context, actor string, receiptID id.ReceiptID, in ReceiptInput) (*ReceiptResult, error) {
	lines := in.normalize()
	if err := checkRecord(in, lines); err != nil {
		return nil, err
	}

	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Receipt, receiptID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := t.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	changes := reconcile.PlanUpdate(reconcile.Receipt, r.ID.String(), actor, r.Lines(), lines, t.now())
	refs, warnings, err := t.reconcile(ctx, reconcile.Receipt, r.ID.String(), changes)
	if err != nil {
		return nil, err
	}

	r.PONumber = in.PONumber
	r.DateReceived = in.DateReceived
	r.Items = in.Items
	r.ItemRefs = refs
	r.Touch()
	if err := t.store.UpdateReceipt(ctx, r); err != nil {
		return nil, err
	}

	t.logger.Info("receipt updated", "receipt_id", r.ID.String(), "changes", len(changes))
	t.plugins.EmitReceiptUpdated(ctx, r)
	return &ReceiptResult{Receipt: r, Warnings: warnings}, nil
}

// DeleteReceipt removes the receipt's entries from every item it lists,
// then the receipt itself.
func (t *Tracker) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) ([]Warning, error) {
	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Receipt, receiptID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r, err := t.store.GetReceipt(ctx, receiptID)
	if err != nil {
		return nil, err
	}

	_, warnings, err := t.reconcile(ctx, reconcile.Receipt, r.ID.String(), reconcile.PlanDelete(r.Lines()))
	if err != nil {
		return nil, err
	}
	if err := t.store.DeleteReceipt(ctx, receiptID); err != nil {
		return nil, err
	}

	t.logger.Info("receipt deleted", "receipt_id", r.ID.String())
	t.plugins.EmitReceiptDeleted(ctx, r)
	return warnings, nil
}

// ──────────────────────────────────────────────────
// Use History (usages)
// ──────────────────────────────────────────────────

// ListUsages returns every usage.
func (t *Tracker) ListUsages(ctx context.Context) ([]*usage.Usage, error) {
	return t.store.ListUsages(ctx)
}

// GetUsage retrieves a usage by ID.
func (t *Tracker) GetUsage(ctx context.Context, usageID id.UsageID) (*usage.Usage, error) {
	return t.store.GetUsage(ctx, usageID)
}

// CreateUsage stores a usage, then adds one Used entry per line.
func (t *Tracker) CreateUsage(ctx context.Context, actor string, in UsageInput) (*UsageResult, error) {
	lines := in.normalize()
	if err := checkRecord(in, lines); err != nil {
		return nil, err
	}

	u := &usage.Usage{
		Entity:    types.NewEntity(),
		ID:        id.NewUsageID(),
		JobNumber: in.JobNumber,
		DateUsed:  in.DateUsed,
		Items:     in.Items,
	}

	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Usage, u.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := t.store.CreateUsage(ctx, u); err != nil {
		return nil, err
	}

	changes := reconcile.PlanCreate(reconcile.Usage, u.ID.String(), actor, lines, t.now())
	refs, warnings, err := t.reconcile(ctx, reconcile.Usage, u.ID.String(), changes)
	u.ItemRefs = refs
	if uerr := t.store.UpdateUsage(ctx, u); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}

	t.logger.Info("usage created", "usage_id", u.ID.String(), "job_number", u.JobNumber, "lines", len(lines))
	t.plugins.EmitUsageCreated(ctx, u)
	return &UsageResult{Usage: u, Warnings: warnings}, nil
}

// UpdateUsage reconciles the item ledgers from the usage's old lines to the
// new ones and saves the usage.
func (t *Tracker) UpdateUsage(ctx context.Context, actor string, usageID id.UsageID, in UsageInput) (*UsageResult, error) {
	lines := in.normalize()
	if err := checkRecord(in, lines); err != nil {
		return nil, err
	}

	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Usage, usageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, err := t.store.GetUsage(ctx, usageID)
	if err != nil {
		return nil, err
	}

	changes := reconcile.PlanUpdate(reconcile.Usage, u.ID.String(), actor, u.Lines(), lines, t.now())
	refs, warnings, err := t.reconcile(ctx, reconcile.Usage, u.ID.String(), changes)
	if err != nil {
		return nil, err
	}

	u.JobNumber = in.JobNumber
	u.DateUsed = in.DateUsed
	u.Items = in.Items
	u.ItemRefs = refs
	u.Touch()
	if err := t.store.UpdateUsage(ctx, u); err != nil {
		return nil, err
	}

	t.logger.Info("usage updated", "usage_id", u.ID.String(), "changes", len(changes))
	t.plugins.EmitUsageUpdated(ctx, u)
	return &UsageResult{Usage: u, Warnings: warnings}, nil
}

// DeleteUsage removes the usage's entries from every item it lists, then
// the usage itself.
func (t *Tracker) DeleteUsage(ctx context.Context, usageID id.UsageID) ([]Warning, error) {
	defer t.writing()()
	unlock, err := t.lockRecord(ctx, reconcile.Usage, usageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	u, err := t.store.GetUsage(ctx, usageID)
	if err != nil {
		return nil, err
	}

	_, warnings, err := t.reconcile(ctx, reconcile.Usage, u.ID.String(), reconcile.PlanDelete(u.Lines()))
	if err != nil {
		return nil, err
	}
	if err := t.store.DeleteUsage(ctx, usageID); err != nil {
		return nil, err
	}

	t.logger.Info("usage deleted", "usage_id", u.ID.String())
	t.plugins.EmitUsageDeleted(ctx, u)
	return warnings, nil
}
