package dashboard_test

import (
	"testing"
	"time"

	"github.com/xraph/stockwise/dashboard"
	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func stocked(itemID string, qty, minLevel, maxLevel int) *item.Item {
	return &item.Item{
		ItemID:      itemID,
		Description: "part " + itemID,
		History:     []history.Entry{history.NewEntry("alice", qty, history.LabelStock, now, "")},
		MinLevel:    minLevel,
		MaxLevel:    maxLevel,
	}
}

func TestStockAlerts(t *testing.T) {
	items := []*item.Item{
		stocked("I001", 2, 5, 0),   // low
		stocked("I002", 50, 5, 20), // high
		stocked("I003", 10, 5, 20), // ok
		stocked("I004", 10, 0, 0),  // no max means never high
	}
	d := dashboard.Build(items, nil, nil, nil, now)

	if len(d.Levels) != 4 {
		t.Fatalf("levels = %d", len(d.Levels))
	}
	if len(d.LowStock) != 1 || d.LowStock[0].ItemID != "I001" {
		t.Errorf("low = %+v", d.LowStock)
	}
	if len(d.HighStock) != 1 || d.HighStock[0].ItemID != "I002" {
		t.Errorf("high = %+v", d.HighStock)
	}
	if d.Levels[3].Status != dashboard.StatusOK {
		t.Errorf("I004 status = %s", d.Levels[3].Status)
	}
	if d.MostUsed != nil {
		t.Errorf("MostUsed without usages = %+v", d.MostUsed)
	}
}

func TestUpcomingRequirements(t *testing.T) {
	items := []*item.Item{stocked("I001", 4, 0, 0)}
	reqs := []*requirement.Requirement{
		{JobNumber: "J1", NeededBy: types.Day(2024, 7, 1), Items: []requirement.Line{{ItemID: "I001", Description: "Bolt", QuantityNeeded: 3}}},
		{JobNumber: "J2", NeededBy: types.Day(2024, 6, 20), Items: []requirement.Line{{ItemID: "I001", Description: "Bolt", QuantityNeeded: 2}}},
		{JobNumber: "J1", NeededBy: types.Day(2024, 6, 15), Items: []requirement.Line{{ItemID: "I009", Description: "Nut", QuantityNeeded: 1}}},
		{JobNumber: "OLD", NeededBy: types.Day(2024, 6, 14), Items: []requirement.Line{{ItemID: "I001", Description: "Bolt", QuantityNeeded: 99}}},
	}
	d := dashboard.Build(items, nil, nil, reqs, now)

	if len(d.Upcoming) != 2 {
		t.Fatalf("upcoming = %+v", d.Upcoming)
	}
	nut, bolt := d.Upcoming[0], d.Upcoming[1]
	if nut.ItemID != "I009" || nut.AvailableStock != 0 || nut.Shortfall != 1 {
		t.Errorf("nut = %+v", nut)
	}
	if bolt.QuantityNeeded != 5 || bolt.NeededBy.DayString() != "2024-06-20" || bolt.Shortfall != 1 {
		t.Errorf("bolt = %+v", bolt)
	}
	if len(bolt.Jobs) != 2 || bolt.Jobs[0] != "J1" || bolt.Jobs[1] != "J2" {
		t.Errorf("bolt jobs = %v", bolt.Jobs)
	}
}

func TestTrendsAndRanking(t *testing.T) {
	receipts := []*receipt.Receipt{
		{DateReceived: types.Day(2024, 6, 1), Items: []receipt.Line{{ItemID: "I001", QuantityReceived: 5}, {ItemID: "I002", QuantityReceived: 9}}},
		{DateReceived: types.Day(2023, 7, 3), Items: []receipt.Line{{ItemID: "I001", QuantityReceived: 4}}},
		// June of last year falls outside the window.
		{DateReceived: types.Day(2023, 6, 30), Items: []receipt.Line{{ItemID: "I003", QuantityReceived: 100}}},
	}
	usages := []*usage.Usage{
		{DateUsed: types.Day(2024, 5, 10), Items: []usage.Line{{ItemID: "I002", QuantityUsed: 3}}},
		{DateUsed: types.Day(2024, 6, 10), Items: []usage.Line{{ItemID: "I001", QuantityUsed: 3}}},
	}
	d := dashboard.Build(nil, receipts, usages, nil, now)

	if len(d.ReceiptTrend) != dashboard.TrendMonths {
		t.Fatalf("receipt trend months = %d", len(d.ReceiptTrend))
	}
	if first, last := d.ReceiptTrend[0], d.ReceiptTrend[11]; first.Month != "2023-07" || last.Month != "2024-06" {
		t.Errorf("window = %s..%s", first.Month, last.Month)
	}
	if d.ReceiptTrend[0].Total != 4 || d.ReceiptTrend[11].Total != 14 || d.ReceiptTrend[11].ByItem["I002"] != 9 {
		t.Errorf("receipt trend = %+v / %+v", d.ReceiptTrend[0], d.ReceiptTrend[11])
	}
	if d.UsageTrend[10].Total != 3 || d.UsageTrend[11].ByItem["I001"] != 3 {
		t.Errorf("usage trend = %+v / %+v", d.UsageTrend[10], d.UsageTrend[11])
	}

	if len(d.TopReceived) != 3 || d.TopReceived[0].ItemID != "I003" || d.TopReceived[1].ItemID != "I001" {
		t.Errorf("top received = %+v", d.TopReceived)
	}
	// Tie on 3 units: item id breaks it.
	if d.MostUsed == nil || d.MostUsed.ItemID != "I001" || d.MostUsed.Quantity != 3 {
		t.Errorf("most used = %+v", d.MostUsed)
	}
}
