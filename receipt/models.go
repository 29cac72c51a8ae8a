// Package receipt defines order-history records: stock received against a
// purchase order.
package receipt

import (
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/reconcile"
	"github.com/xraph/stockwise/types"
)

// Line is one received item.
type Line struct {
	ItemID           string `json:"itemId" validate:"required"`
	Description      string `json:"description" validate:"required"`
	QuantityReceived int    `json:"quantityReceived" validate:"gte=0"`
}

// Receipt is an order-history record. Each listed item carries exactly one
// ledger entry correlated to the receipt id.
type Receipt struct {
	types.Entity
	ID           id.ReceiptID `json:"_id"`
	PONumber     string       `json:"poNumber" validate:"required"`
	DateReceived types.Date   `json:"dateReceived" validate:"required"`
	Items        []Line       `json:"items" validate:"required,min=1,dive"`

	// ItemRefs are the storage ids of the items whose ledgers reference
	// this receipt.
	ItemRefs []id.ItemID `json:"itemHistoryReferences"`
}

// Lines returns the reconciliation view of the receipt's items.
func (r *Receipt) Lines() []reconcile.Line {
	out := make([]reconcile.Line, len(r.Items))
	for i, l := range r.Items {
		out[i] = reconcile.Line{ItemID: l.ItemID, Quantity: l.QuantityReceived}
	}
	return out
}

// Record returns the receipt as seen by the integrity check.
func (r *Receipt) Record() reconcile.Record {
	return reconcile.Record{ID: r.ID.String(), Kind: reconcile.Receipt, Lines: r.Lines()}
}

// Clone returns a deep copy.
func (r *Receipt) Clone() *Receipt {
	c := *r
	c.Items = append([]Line(nil), r.Items...)
	c.ItemRefs = append([]id.ItemID(nil), r.ItemRefs...)
	return &c
}
