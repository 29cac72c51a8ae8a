// Package backup exports every collection to an xlsx workbook and performs
// the destructive reset that follows a backup.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/usage"
)

// ContentType is the MIME type of exported workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DownloadName is the file name offered to browsers.
const DownloadName = "stockwise_backup.xlsx"

// Sheet names, in workbook order.
const (
	SheetItems          = "Items"
	SheetOrderHistories = "OrderHistories"
	SheetRequirements   = "Requirements"
	SheetUseHistories   = "UseHistories"
)

// Snapshot is everything a backup contains.
type Snapshot struct {
	Items        []*item.Item
	Receipts     []*receipt.Receipt
	Usages       []*usage.Usage
	Requirements []*requirement.Requirement
}

// FileName names an archived export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("stockwise_backup_%s.xlsx", t.UTC().Format("20060102T150405Z"))
}

var (
	itemHeader        = []any{"id", "itemid", "description", "material", "comment", "history", "minlevel", "maxlevel", "availablestock", "created_at", "updated_at"}
	receiptHeader     = []any{"id", "poNumber", "dateReceived", "items", "itemHistoryReferences", "created_at", "updated_at"}
	requirementHeader = []any{"id", "jobNumber", "neededBy", "items", "created_at", "updated_at"}
	usageHeader       = []any{"id", "jobNumber", "dateUsed", "items", "itemHistoryReferences", "created_at", "updated_at"}
)

// Export writes s as a workbook to w and returns the number of bytes
// written. Every sheet has a header row even when empty.
func Export(s Snapshot, w io.Writer) (int64, error) {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", SheetItems); err != nil {
		return 0, fmt.Errorf("backup: %w", err)
	}
	for _, name := range []string{SheetOrderHistories, SheetRequirements, SheetUseHistories} {
		if _, err := f.NewSheet(name); err != nil {
			return 0, fmt.Errorf("backup: new sheet %s: %w", name, err)
		}
	}

	items := make([][]any, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, []any{
			it.ID.String(), it.ItemID, it.Description, it.Material, it.Comment,
			strings.Join(formatHistory(it), "\n"),
			it.MinLevel, it.MaxLevel, it.Stock(),
			stamp(it.CreatedAt), stamp(it.UpdatedAt),
		})
	}
	if err := writeSheet(f, SheetItems, itemHeader, items); err != nil {
		return 0, err
	}

	receipts := make([][]any, 0, len(s.Receipts))
	for _, r := range s.Receipts {
		lines, err := jsonCell(r.Items)
		if err != nil {
			return 0, err
		}
		receipts = append(receipts, []any{
			r.ID.String(), r.PONumber, r.DateReceived.String(), lines, refs(r.ItemRefs),
			stamp(r.CreatedAt), stamp(r.UpdatedAt),
		})
	}
	if err := writeSheet(f, SheetOrderHistories, receiptHeader, receipts); err != nil {
		return 0, err
	}

	requirements := make([][]any, 0, len(s.Requirements))
	for _, r := range s.Requirements {
		lines, err := jsonCell(r.Items)
		if err != nil {
			return 0, err
		}
		requirements = append(requirements, []any{
			r.ID.String(), r.JobNumber, r.NeededBy.String(), lines,
			stamp(r.CreatedAt), stamp(r.UpdatedAt),
		})
	}
	if err := writeSheet(f, SheetRequirements, requirementHeader, requirements); err != nil {
		return 0, err
	}

	usages := make([][]any, 0, len(s.Usages))
	for _, u := range s.Usages {
		lines, err := jsonCell(u.Items)
		if err != nil {
			return 0, err
		}
		usages = append(usages, []any{
			u.ID.String(), u.JobNumber, u.DateUsed.String(), lines, refs(u.ItemRefs),
			stamp(u.CreatedAt), stamp(u.UpdatedAt),
		})
	}
	if err := writeSheet(f, SheetUseHistories, usageHeader, usages); err != nil {
		return 0, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return 0, fmt.Errorf("backup: encode workbook: %w", err)
	}
	n, err := buf.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("backup: write workbook: %w", err)
	}
	return n, nil
}

func writeSheet(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("backup: %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("backup: %s row %d: %w", sheet, i, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("backup: %s row %d: %w", sheet, i, err)
		}
	}
	return nil
}

func formatHistory(it *item.Item) []string {
	out := make([]string, len(it.History))
	for i, e := range it.History {
		out[i] = e.String()
	}
	return out
}

func jsonCell(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("backup: encode lines: %w", err)
	}
	return string(data), nil
}

func refs(ids []id.ItemID) string {
	return strings.Join(id.Strings(ids), ",")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Resetter is the storage surface a reset needs.
type Resetter interface {
	DeleteAllReceipts(ctx context.Context) (int64, error)
	DeleteAllUsages(ctx context.Context) (int64, error)
	DeleteAllRequirements(ctx context.Context) (int64, error)
	ResetHistory(ctx context.Context) (int64, error)
}

// Report counts what a reset removed.
type Report struct {
	Receipts     int64 `json:"receipts"`
	Usages       int64 `json:"usages"`
	Requirements int64 `json:"requirements"`
	Items        int64 `json:"items"`
}

// Reset deletes every receipt, usage and requirement and clears every item
// history, in that order. Records go first so no entry is ever left
// correlated to a deleted record.
func Reset(ctx context.Context, s Resetter) (Report, error) {
	var (
		rep Report
		err error
	)
	if rep.Receipts, err = s.DeleteAllReceipts(ctx); err != nil {
		return rep, fmt.Errorf("backup: reset receipts: %w", err)
	}
	if rep.Usages, err = s.DeleteAllUsages(ctx); err != nil {
		return rep, fmt.Errorf("backup: reset usages: %w", err)
	}
	if rep.Requirements, err = s.DeleteAllRequirements(ctx); err != nil {
		return rep, fmt.Errorf("backup: reset requirements: %w", err)
	}
	if rep.Items, err = s.ResetHistory(ctx); err != nil {
		return rep, fmt.Errorf("backup: reset history: %w", err)
	}
	return rep, nil
}
