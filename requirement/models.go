// Package requirement defines forward-looking job requirements. They carry
// no ledger entries.
package requirement

import (
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/types"
)

// Line is one needed item.
type Line struct {
	ItemID         string `json:"itemId" validate:"required"`
	Description    string `json:"description" validate:"required"`
	QuantityNeeded int    `json:"quantityNeeded" validate:"gte=0"`
}

// Requirement lists what a job will need by a date.
type Requirement struct {
	types.Entity
	ID        id.RequirementID `json:"_id"`
	JobNumber string           `json:"jobNumber" validate:"required"`
	NeededBy  types.Date       `json:"neededBy" validate:"required"`
	Items     []Line           `json:"items" validate:"dive"`
}

// Clone returns a deep copy.
func (r *Requirement) Clone() *Requirement {
	c := *r
	c.Items = append([]Line(nil), r.Items...)
	return &c
}
