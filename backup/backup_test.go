package backup_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/stockwise/backup"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/types"
)

func TestExportWritesAllSheets(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	rcpt := &receipt.Receipt{
		ID:           id.NewReceiptID(),
		PONumber:     "PO-17",
		DateReceived: types.Day(2024, 5, 1),
		Items:        []receipt.Line{{ItemID: "I007", Description: "Bolt", QuantityReceived: 5}},
	}
	snap := backup.Snapshot{
		Items: []*item.Item{{
			ID:          id.NewItemID(),
			ItemID:      "I007",
			Description: "Bolt",
			History: []history.Entry{
				history.NewEntry("alice", 10, history.LabelStock, at, ""),
				history.NewEntry("bob", 5, history.LabelReceived, at, rcpt.ID.String()),
			},
			MinLevel: 2,
		}},
		Receipts: []*receipt.Receipt{rcpt},
	}

	var buf bytes.Buffer
	n, err := backup.Export(snap, &buf)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != int64(buf.Len()) || n == 0 {
		t.Fatalf("Export reported %d bytes, buffer has %d", n, buf.Len())
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	want := []string{backup.SheetItems, backup.SheetOrderHistories, backup.SheetRequirements, backup.SheetUseHistories}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}

	rows, err := f.GetRows(backup.SheetItems)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("items rows = %d, want 2", len(rows))
	}
	if rows[1][1] != "I007" || rows[1][8] != "15" {
		t.Errorf("item row = %v", rows[1])
	}

	rows, err = f.GetRows(backup.SheetRequirements)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][0] != "id" {
		t.Errorf("requirements sheet should only carry a header, got %v", rows)
	}
}

type fakeResetter struct {
	calls []string
	fail  string
}

func (f *fakeResetter) step(name string, n int64) (int64, error) {
	f.calls = append(f.calls, name)
	if f.fail == name {
		return 0, errors.New("boom")
	}
	return n, nil
}

func (f *fakeResetter) DeleteAllReceipts(context.Context) (int64, error) { return f.step("receipts", 2) }
func (f *fakeResetter) DeleteAllUsages(context.Context) (int64, error)   { return f.step("usages", 3) }
func (f *fakeResetter) DeleteAllRequirements(context.Context) (int64, error) {
	return f.step("requirements", 1)
}
func (f *fakeResetter) ResetHistory(context.Context) (int64, error) { return f.step("history", 4) }

func TestResetOrder(t *testing.T) {
	r := &fakeResetter{}
	rep, err := backup.Reset(context.Background(), r)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rep != (backup.Report{Receipts: 2, Usages: 3, Requirements: 1, Items: 4}) {
		t.Errorf("report = %+v", rep)
	}
	want := []string{"receipts", "usages", "requirements", "history"}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", r.calls, want)
		}
	}
}

func TestResetStopsOnError(t *testing.T) {
	r := &fakeResetter{fail: "usages"}
	if _, err := backup.Reset(context.Background(), r); err == nil {
		t.Fatal("expected error")
	}
	if len(r.calls) != 2 {
		t.Errorf("reset continued after failure: %v", r.calls)
	}
}

func TestFileSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	sink := backup.FileSink{Dir: dir}
	name := backup.FileName(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	if name != "stockwise_backup_20240501T093000Z.xlsx" {
		t.Errorf("FileName = %q", name)
	}
	if err := sink.Store(context.Background(), name, []byte("xlsx")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil || string(data) != "xlsx" {
		t.Fatalf("read back %q, %v", data, err)
	}
}

func TestExportReportsBytesWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), backup.DownloadName)
	out, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	n, err := backup.Export(backup.Snapshot{}, out)
	if cerr := out.Close(); cerr != nil {
		t.Fatal(cerr)
	}
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 || n != info.Size() {
		t.Errorf("Export reported %d bytes, file has %d", n, info.Size())
	}
}
