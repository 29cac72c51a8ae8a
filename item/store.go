package item

import (
	"context"

	"github.com/xraph/stockwise/id"
)

// Store persists items.
type Store interface {
	CreateItem(ctx context.Context, it *Item) error
	// GetItem looks an item up by its item number ("I007").
	GetItem(ctx context.Context, itemID string) (*Item, error)
	GetItemByID(ctx context.Context, itemID id.ItemID) (*Item, error)
	ListItems(ctx context.Context, opts ListOpts) ([]*Item, error)
	// UpdateItem writes it only if the stored version still equals
	// it.Version, then increments it.Version.
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, itemID string) error
	// LatestItemID returns the lexicographically largest item number of the
	// form "I<digits>", or "" when there is none.
	LatestItemID(ctx context.Context) (string, error)
}
