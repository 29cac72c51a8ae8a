package stockwise

import (
	"context"
	"strings"

	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/requirement"
	"github.com/xraph/stockwise/types"
)

// RequirementInput is the editable part of a requirement.
type RequirementInput struct {
	JobNumber string             `json:"jobNumber" validate:"required"`
	NeededBy  types.Date         `json:"neededBy" validate:"required"`
	Items     []requirement.Line `json:"items" validate:"dive"`
}

func (in *RequirementInput) normalize() {
	in.JobNumber = strings.TrimSpace(in.JobNumber)
	for i := range in.Items {
		in.Items[i].ItemID = strings.TrimSpace(in.Items[i].ItemID)
	}
}

// ──────────────────────────────────────────────────
// Requirements
// ──────────────────────────────────────────────────

// ListRequirements returns every requirement.
func (t *Tracker) ListRequirements(ctx context.Context) ([]*requirement.Requirement, error) {
	return t.store.ListRequirements(ctx)
}

// GetRequirement retrieves a requirement by ID.
func (t *Tracker) GetRequirement(ctx context.Context, requirementID id.RequirementID) (*requirement.Requirement, error) {
	return t.store.GetRequirement(ctx, requirementID)
}

// CreateRequirement stores a new requirement.
func (t *Tracker) CreateRequirement(ctx context.Context, in RequirementInput) (*requirement.Requirement, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	defer t.writing()()
	r := &requirement.Requirement{
		Entity:    types.NewEntity(),
		ID:        id.NewRequirementID(),
		JobNumber: in.JobNumber,
		NeededBy:  in.NeededBy,
		Items:     in.Items,
	}
	if err := t.store.CreateRequirement(ctx, r); err != nil {
		return nil, err
	}

	t.logger.Info("requirement created", "requirement_id", r.ID.String(), "job_number", r.JobNumber)
	t.plugins.EmitRequirementSaved(ctx, r)
	return r, nil
}

// UpdateRequirement replaces a requirement's fields.
func (t *Tracker) UpdateRequirement(ctx context.Context, requirementID id.RequirementID, in RequirementInput) (*requirement.Requirement, error) {
	in.normalize()
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	defer t.writing()()
	r, err := t.store.GetRequirement(ctx, requirementID)
	if err != nil {
		return nil, err
	}
	r.JobNumber = in.JobNumber
	r.NeededBy = in.NeededBy
	r.Items = in.Items
	r.Touch()
	if err := t.store.UpdateRequirement(ctx, r); err != nil {
		return nil, err
	}

	t.logger.Info("requirement updated", "requirement_id", r.ID.String())
	t.plugins.EmitRequirementSaved(ctx, r)
	return r, nil
}

// DeleteRequirement removes a requirement.
func (t *Tracker) DeleteRequirement(ctx context.Context, requirementID id.RequirementID) error {
	defer t.writing()()
	if err := t.store.DeleteRequirement(ctx, requirementID); err != nil {
		return err
	}
	t.logger.Info("requirement deleted", "requirement_id", requirementID.String())
	return nil
}
