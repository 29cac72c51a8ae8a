package usage

import (
	"context"

	"github.com/xraph/stockwise/id"
)

// Store persists usages.
type Store interface {
	CreateUsage(ctx context.Context, u *Usage) error
	GetUsage(ctx context.Context, usageID id.UsageID) (*Usage, error)
	ListUsages(ctx context.Context) ([]*Usage, error)
	UpdateUsage(ctx context.Context, u *Usage) error
	DeleteUsage(ctx context.Context, usageID id.UsageID) error
	DeleteAllUsages(ctx context.Context) (int64, error)
}
