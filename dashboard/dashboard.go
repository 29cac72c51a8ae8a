// Package dashboard derives stock alerts, upcoming requirement totals and
// monthly trends from the stored records. Build is pure.
package dashboard

import (
	"slices"
	"sort"
	"time"

	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/types"
	"github.com/xraph/stockwise/usage"
)

// TrendMonths is the length of the trend window, current month included.
const TrendMonths = 12

// TopReceivedLimit bounds Dashboard.TopReceived.
const TopReceivedLimit = 5

// Stock statuses.
const (
	StatusOK   = "ok"
	StatusLow  = "low"
	StatusHigh = "high"
)

// StockLevel is the derived stock of one item.
type StockLevel struct {
	ItemID      string `json:"itemId"`
	Description string `json:"description"`
	Stock       int    `json:"stock"`
	MinLevel    int    `json:"minLevel"`
	MaxLevel    int    `json:"maxLevel"`
	Status      string `json:"status"`
}

// Upcoming aggregates future requirements for one item.
type Upcoming struct {
	ItemID         string     `json:"itemId"`
	Description    string     `json:"description"`
	QuantityNeeded int        `json:"quantityNeeded"`
	NeededBy       types.Date `json:"neededBy"`
	Jobs           []string   `json:"jobs"`
	AvailableStock int        `json:"availableStock"`
	Shortfall      int        `json:"shortfall"`
}

// Month is one bucket of a trend.
type Month struct {
	Month  string         `json:"month"` // "2006-01"
	Total  int            `json:"total"`
	ByItem map[string]int `json:"byItem"`
}

// ItemQuantity pairs an item with a summed quantity.
type ItemQuantity struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// Dashboard is the full derived view.
type Dashboard struct {
	GeneratedAt  time.Time      `json:"generatedAt"`
	Levels       []StockLevel   `json:"stockLevels"`
	LowStock     []StockLevel   `json:"lowStock"`
	HighStock    []StockLevel   `json:"highStock"`
	Upcoming     []Upcoming     `json:"upcomingRequirements"`
	UsageTrend   []Month        `json:"usageTrend"`
	ReceiptTrend []Month        `json:"receiptTrend"`
	TopReceived  []ItemQuantity `json:"topReceived"`
	MostUsed     *ItemQuantity  `json:"mostUsed"`
}

// Build computes the dashboard as of now.
func Build(items []*item.Item, receipts []*receipt.Receipt, usages []*usage.Usage, reqs []*requirement.Requirement, now time.Time) *Dashboard {
	now = now.UTC()
	d := &Dashboard{
		GeneratedAt: now,
		Levels:      make([]StockLevel, 0, len(items)),
		LowStock:    []StockLevel{},
		HighStock:   []StockLevel{},
	}

	stock := make(map[string]int, len(items))
	for _, it := range items {
		lvl := Level(it)
		stock[it.ItemID] = lvl.Stock
		d.Levels = append(d.Levels, lvl)
		switch lvl.Status {
		case StatusLow:
			d.LowStock = append(d.LowStock, lvl)
		case StatusHigh:
			d.HighStock = append(d.HighStock, lvl)
		}
	}

	d.Upcoming = upcoming(reqs, stock, now)

	usageTrend := newTrend(now)
	used := map[string]int{}
	for _, u := range usages {
		for _, l := range u.Items {
			usageTrend.add(u.DateUsed, l.ItemID, l.QuantityUsed)
			used[l.ItemID] += l.QuantityUsed
		}
	}
	d.UsageTrend = usageTrend.months

	receiptTrend := newTrend(now)
	received := map[string]int{}
	for _, r := range receipts {
		for _, l := range r.Items {
			receiptTrend.add(r.DateReceived, l.ItemID, l.QuantityReceived)
			received[l.ItemID] += l.QuantityReceived
		}
	}
	d.ReceiptTrend = receiptTrend.months

	d.TopReceived = ranked(received)
	if len(d.TopReceived) > TopReceivedLimit {
		d.TopReceived = d.TopReceived[:TopReceivedLimit]
	}
	if top := ranked(used); len(top) > 0 {
		d.MostUsed = &top[0]
	}
	return d
}

// Level derives the stock level and status of it.
func Level(it *item.Item) StockLevel {
	lvl := StockLevel{
		ItemID:      it.ItemID,
		Description: it.Description,
		Stock:       it.Stock(),
		MinLevel:    it.MinLevel,
		MaxLevel:    it.MaxLevel,
		Status:      StatusOK,
	}
	switch {
	case it.IsLow():
		lvl.Status = StatusLow
	case it.IsHigh():
		lvl.Status = StatusHigh
	}
	return lvl
}

// upcoming aggregates requirements due today or later, earliest first.
func upcoming(reqs []*requirement.Requirement, stock map[string]int, now time.Time) []Upcoming {
	today := types.Day(now.Year(), now.Month(), now.Day())

	byItem := map[string]*Upcoming{}
	var order []string
	for _, r := range reqs {
		if r.NeededBy.IsZero() || r.NeededBy.Before(today) {
			continue
		}
		for _, l := range r.Items {
			u, ok := byItem[l.ItemID]
			if !ok {
				u = &Upcoming{
					ItemID:         l.ItemID,
					Description:    l.Description,
					NeededBy:       r.NeededBy,
					AvailableStock: stock[l.ItemID],
				}
				byItem[l.ItemID] = u
				order = append(order, l.ItemID)
			}
			u.QuantityNeeded += l.QuantityNeeded
			if r.NeededBy.Before(u.NeededBy) {
				u.NeededBy = r.NeededBy
			}
			if !slices.Contains(u.Jobs, r.JobNumber) {
				u.Jobs = append(u.Jobs, r.JobNumber)
			}
		}
	}

	out := make([]Upcoming, 0, len(order))
	for _, itemID := range order {
		u := byItem[itemID]
		if short := u.QuantityNeeded - u.AvailableStock; short > 0 {
			u.Shortfall = short
		}
		out = append(out, *u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NeededBy.Time().Equal(out[j].NeededBy.Time()) {
			return out[i].NeededBy.Before(out[j].NeededBy)
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

type trend struct {
	months []Month
	index  map[string]int
}

// newTrend prepares TrendMonths empty buckets ending with the month of now.
func newTrend(now time.Time) *trend {
	t := &trend{months: make([]Month, TrendMonths), index: make(map[string]int, TrendMonths)}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(TrendMonths - 1), 0)
	for i := range t.months {
		key := first.AddDate(0, i, 0).Format("2006-01")
		t.months[i] = Month{Month: key, ByItem: map[string]int{}}
		t.index[key] = i
	}
	return t
}

// add books qty in the month of d. Dates outside the window are ignored.
func (t *trend) add(d types.Date, itemID string, qty int) {
	if d.IsZero() {
		return
	}
	i, ok := t.index[d.MonthKey()]
	if !ok {
		return
	}
	t.months[i].Total += qty
	t.months[i].ByItem[itemID] += qty
}

// ranked sorts totals by quantity descending, then item id.
func ranked(totals map[string]int) []ItemQuantity {
	out := make([]ItemQuantity, 0, len(totals))
	for itemID, q := range totals {
		out = append(out, ItemQuantity{ItemID: itemID, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
