// Package item defines inventory items and their ledger-derived stock.
package item

import (
	"encoding/json"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/types"
)

// Item is one stocked part. Its stock is never stored; it is the sum of the
// deltas in History.
type Item struct {
	types.Entity
	ID          id.ItemID       `json:"id"`
	ItemID      string          `json:"itemid"`
	Description string          `json:"description"`
	Material    string          `json:"material,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	History     []history.Entry `json:"history"`
	MinLevel    int             `json:"minlevel"`
	MaxLevel    int             `json:"maxlevel"`

	// Version increases on every successful write and guards concurrent
	// read-modify-write cycles.
	Version int64 `json:"version"`
}

// Stock returns the current stock level.
func (i *Item) Stock() int {
	return history.Stock(i.History)
}

// IsLow reports whether stock is under the minimum level.
func (i *Item) IsLow() bool {
	return i.Stock() < i.MinLevel
}

// IsHigh reports whether stock exceeds a configured maximum level.
func (i *Item) IsHigh() bool {
	return i.MaxLevel > 0 && i.Stock() > i.MaxLevel
}

// Clone returns a deep copy.
func (i *Item) Clone() *Item {
	c := *i
	c.History = history.Clone(i.History)
	return &c
}

// MarshalJSON adds the derived availablestock field.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	p := plain(i)
	if p.History == nil {
		p.History = []history.Entry{}
	}
	return json.Marshal(struct {
		plain
		AvailableStock int `json:"availablestock"`
	}{p, i.Stock()})
}

// ListOpts filters item listings.
type ListOpts struct {
	// Search matches item number, description or material, case-insensitively.
	Search string
	Limit  int
	Offset int
}
