package stockwise

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/dashboard"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/reconcile"
)

// BackupReport describes a finished backup.
type BackupReport struct {
	Name  string         `json:"name"`
	Size  int64          `json:"size"`
	Reset *backup.Report `json:"reset,omitempty"`
}

// snapshot loads every record. It is not a point-in-time read.
func (t *Tracker) snapshot(ctx context.Context) (backup.Snapshot, error) {
	var (
		s   backup.Snapshot
		err error
	)
	if s.Items, err = t.store.ListItems(ctx, item.ListOpts{}); err != nil {
		return s, err
	}
	if s.Receipts, err = t.store.ListReceipts(ctx); err != nil {
		return s, err
	}
	if s.Usages, err = t.store.ListUsages(ctx); err != nil {
		return s, err
	}
	if s.Requirements, err = t.store.ListRequirements(ctx); err != nil {
		return s, err
	}
	return s, nil
}

// ──────────────────────────────────────────────────
// Dashboard and integrity
// ──────────────────────────────────────────────────

// Dashboard derives stock alerts, upcoming requirements and trends.
func (t *Tracker) Dashboard(ctx context.Context) (*dashboard.Dashboard, error) {
	s, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return dashboard.Build(s.Items, s.Receipts, s.Usages, s.Requirements, t.now()), nil
}

// CheckIntegrity audits every item ledger against the records that write
// to it. It reads without locking, so findings may include writes in
// flight.
func (t *Tracker) CheckIntegrity(ctx context.Context) ([]reconcile.Finding, error) {
	s, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	ledgers := make([]reconcile.Ledger, 0, len(s.Items))
	for _, it := range s.Items {
		ledgers = append(ledgers, reconcile.Ledger{ItemID: it.ItemID, Entries: it.History})
	}
	records := make([]reconcile.Record, 0, len(s.Receipts)+len(s.Usages))
	for _, r := range s.Receipts {
		records = append(records, r.Record())
	}
	for _, u := range s.Usages {
		records = append(records, u.Record())
	}

	findings := reconcile.Check(ledgers, records)
	if len(findings) > 0 {
		t.logger.Warn("integrity check found problems", "findings", len(findings))
	}
	return findings, nil
}

// ──────────────────────────────────────────────────
// Backup
// ──────────────────────────────────────────────────

// Backup writes a workbook of every collection to w.
func (t *Tracker) Backup(ctx context.Context, w io.Writer) (*BackupReport, error) {
	return t.backup(ctx, w, false)
}

// BackupAndReset writes a workbook of every collection to w, then deletes
// all receipts, usages and requirements and clears every item ledger. When
// a backup sink is configured the export is stored there first and a sink
// failure aborts the reset. Writes made through this Tracker wait until the
// reset is done, so the workbook holds everything that was deleted.
func (t *Tracker) BackupAndReset(ctx context.Context, w io.Writer) (*BackupReport, error) {
	return t.backup(ctx, w, true)
}

func (t *Tracker) backup(ctx context.Context, w io.Writer, reset bool) (*BackupReport, error) {
	start := time.Now()

	if reset {
		t.maint.Lock()
		defer t.maint.Unlock()
	}

	s, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	size, err := backup.Export(s, &buf)
	if err != nil {
		return nil, err
	}

	rep := &BackupReport{Name: backup.FileName(t.now()), Size: size}
	if t.sink != nil {
		if err := t.sink.Store(ctx, rep.Name, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("stockwise: store backup %s: %w", rep.Name, err)
		}
	}

	if reset {
		r, err := backup.Reset(ctx, t.store)
		if err != nil {
			return nil, err
		}
		rep.Reset = &r
		t.logger.Warn("inventory reset",
			"receipts", r.Receipts,
			"usages", r.Usages,
			"requirements", r.Requirements,
			"items", r.Items,
		)
	}

	if _, err := io.Copy(w, &buf); err != nil {
		return nil, fmt.Errorf("stockwise: write backup: %w", err)
	}

	elapsed := time.Since(start)
	t.logger.Info("backup completed", "name", rep.Name, "size", size, "reset", reset, "elapsed", elapsed)
	t.plugins.EmitBackupCompleted(ctx, size, reset, elapsed)
	return rep, nil
}
