// Package usage defines use-history records: stock consumed by a job.
package usage

import (
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/types"
)

// Line is one consumed item.
type Line struct {
	ItemID       string `json:"itemId" validate:"required"`
	Description  string `json:"description" validate:"required"`
	QuantityUsed int    `json:"quantityUsed" validate:"gte=0"`
}

// Usage is a use-history record. Its ledger entries carry negative deltas.
type Usage struct {
	types.Entity
	ID        id.UsageID  `json:"_id"`
	JobNumber string      `json:"jobNumber" validate:"required"`
	DateUsed  types.Date  `json:"dateUsed" validate:"required"`
	Items     []Line      `json:"items" validate:"required,min=1,dive"`
	ItemRefs  []id.ItemID `json:"itemHistoryReferences"`
}

// Lines returns the reconciliation view of the usage's items.
func (u *Usage) Lines() []reconcile.Line {
	out := make([]reconcile.Line, len(u.Items))
	for i, l := range u.Items {
		out[i] = reconcile.Line{ItemID: l.ItemID, Quantity: l.QuantityUsed}
	}
	return out
}

// Record returns the usage as seen by the integrity check.
func (u *Usage) Record() reconcile.Record {
	return reconcile.Record{ID: u.ID.String(), Kind: reconcile.Usage, Lines: u.Lines()}
}

// Clone returns a deep copy.
func (u *Usage) Clone() *Usage {
	c := *u
	c.Items = append([]Line(nil), u.Items...)
	c.ItemRefs = append([]id.ItemID(nil), u.ItemRefs...)
	return &c
}
