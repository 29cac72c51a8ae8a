package stockwise_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
)

type memorySink struct {
	name string
	data []byte
	err  error
}

func (s *memorySink) Store(_ context.Context, name string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.name = name
	s.data = append([]byte(nil), data...)
	return nil
}

func seedRecords(t *testing.T, tr *stockwise.Tracker) {
	t.Helper()
	ctx := context.Background()
	a := mustItem(t, tr, "bolt", 10)
	if _, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: a.ItemID, Description: "bolt", QuantityReceived: 5})); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.CreateUsage(ctx, "alice", stockwise.UsageInput{
		JobNumber: "JOB-1",
		DateUsed:  types.Day(2026, time.March, 3),
		Items:     []usage.Line{{ItemID: a.ItemID, Description: "bolt", QuantityUsed: 2}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.CreateRequirement(ctx, stockwise.RequirementInput{JobNumber: "JOB-2", NeededBy: types.Day(2026, time.April, 1)}); err != nil {
		t.Fatal(err)
	}
}

func TestBackupAndReset(t *testing.T) {
	sink := &memorySink{}
	tr, _ := newTracker(t, stockwise.WithBackupSink(sink))
	ctx := context.Background()
	seedRecords(t, tr)

	var buf bytes.Buffer
	rep, err := tr.BackupAndReset(ctx, &buf)
	if err != nil {
		t.Fatalf("BackupAndReset: %v", err)
	}
	if rep.Size != int64(buf.Len()) || rep.Size == 0 {
		t.Errorf("expected size %d, got %d", buf.Len(), rep.Size)
	}
	if rep.Reset == nil || rep.Reset.Receipts != 1 || rep.Reset.Usages != 1 || rep.Reset.Requirements != 1 || rep.Reset.Items != 1 {
		t.Errorf("unexpected reset report %+v", rep.Reset)
	}
	if sink.name != rep.Name || !bytes.Equal(sink.data, buf.Bytes()) {
		t.Error("sink should hold the same export")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(backup.SheetItems)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("expected header plus one item row, got %d rows", len(rows))
	}

	if got := stockOf(t, tr, "I001"); got != 0 {
		t.Errorf("expected stock 0 after reset, got %d", got)
	}
	receipts, _ := tr.ListReceipts(ctx)
	usages, _ := tr.ListUsages(ctx)
	reqs, _ := tr.ListRequirements(ctx)
	if len(receipts)+len(usages)+len(reqs) != 0 {
		t.Errorf("expected records deleted, got %d/%d/%d", len(receipts), len(usages), len(reqs))
	}
}

func TestBackupSinkFailureKeepsData(t *testing.T) {
	sink := &memorySink{err: errors.New("bucket unavailable")}
	tr, _ := newTracker(t, stockwise.WithBackupSink(sink))
	ctx := context.Background()
	seedRecords(t, tr)

	var buf bytes.Buffer
	if _, err := tr.BackupAndReset(ctx, &buf); err == nil {
		t.Fatal("expected sink failure")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written on failure")
	}
	if got := stockOf(t, tr, "I001"); got != 13 {
		t.Errorf("reset must not run after a sink failure, got stock %d", got)
	}
}

func TestBackupOnlyLeavesData(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	seedRecords(t, tr)

	var buf bytes.Buffer
	rep, err := tr.Backup(ctx, &buf)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if rep.Reset != nil {
		t.Error("plain backup must not reset")
	}
	if got := stockOf(t, tr, "I001"); got != 13 {
		t.Errorf("expected stock 13, got %d", got)
	}
}

func TestDashboard(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	seedRecords(t, tr)

	d, err := tr.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if !d.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected generation time %v, got %v", fixedNow, d.GeneratedAt)
	}
	if len(d.Levels) != 1 || d.Levels[0].Stock != 13 {
		t.Errorf("unexpected levels %+v", d.Levels)
	}
	if d.MostUsed == nil || d.MostUsed.ItemID != "I001" || d.MostUsed.Quantity != 2 {
		t.Errorf("unexpected most used %+v", d.MostUsed)
	}
}

func TestCheckIntegrity(t *testing.T) {
	tr, s := newTracker(t)
	ctx := context.Background()
	seedRecords(t, tr)

	findings, err := tr.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected a clean ledger, got %v", findings)
	}

	// Tamper with the ledger behind the tracker's back.
	it, err := s.GetItem(ctx, "I001")
	if err != nil {
		t.Fatal(err)
	}
	it.History = append(it.History, history.NewEntry("eve", 1, history.LabelReceived, fixedNow, "rcpt_01h2xcejqtf2nbrexx3vqjhp41"))
	for i, e := range it.History {
		if e.Label == history.LabelUsed {
			it.History = append(it.History[:i], it.History[i+1:]...)
			break
		}
	}
	if err := s.UpdateItem(ctx, it); err != nil {
		t.Fatal(err)
	}

	findings, err = tr.CheckIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	problems := map[reconcile.Problem]int{}
	for _, f := range findings {
		problems[f.Problem]++
	}
	if problems[reconcile.ProblemMissing] != 1 || problems[reconcile.ProblemOrphan] != 1 {
		t.Errorf("expected one missing and one orphan finding, got %v", findings)
	}
}

func TestResetWaitsForWrites(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	it := mustItem(t, tr, "bolt", 10)

	const n = 20
	var (
		wg   sync.WaitGroup
		buf  bytes.Buffer
		rep  *stockwise.BackupReport
		errs = make(chan error, n+1)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.CreateReceipt(ctx, "alice", receiptOf(receipt.Line{ItemID: it.ItemID, Description: "bolt", QuantityReceived: 1}))
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		rep, err = tr.BackupAndReset(ctx, &buf)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(backup.SheetOrderHistories)
	if err != nil {
		t.Fatal(err)
	}
	exported := len(rows) - 1

	remaining, err := tr.ListReceipts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if exported+len(remaining) != n {
		t.Errorf("expected %d receipts across backup and store, got %d exported and %d stored", n, exported, len(remaining))
	}
	if rep.Reset == nil || int(rep.Reset.Receipts) != exported {
		t.Errorf("expected reset of the %d exported receipts, got %+v", exported, rep.Reset)
	}
	if got := stockOf(t, tr, it.ItemID); got != len(remaining) {
		t.Errorf("expected stock %d, got %d", len(remaining), got)
	}
	findings, err := tr.CheckIntegrity(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("expected a clean ledger, got %v", findings)
	}
}
