package requirement

import (
	"context"

	"github.com/xraph/stockwise/id"
)

// Store persists requirements.
type Store interface {
	CreateRequirement(ctx context.Context, r *Requirement) error
	GetRequirement(ctx context.Context, requirementID id.RequirementID) (*Requirement, error)
	ListRequirements(ctx context.Context) ([]*Requirement, error)
	UpdateRequirement(ctx context.Context, r *Requirement) error
	DeleteRequirement(ctx context.Context, requirementID id.RequirementID) error
	DeleteAllRequirements(ctx context.Context) (int64, error)
}
