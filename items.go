package stockwise

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/stockwise/history"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/types"
)

// ItemInput describes a new item. Stock becomes the item's first ledger
// entry.
type ItemInput struct {
	Description string `json:"description" validate:"required"`
	Material    string `json:"material"`
	Comment     string `json:"comment"`
	Stock       int    `json:"availablestock" validate:"gte=0"`
	MinLevel    int    `json:"minlevel" validate:"gte=0"`
	MaxLevel    int    `json:"maxlevel" validate:"gte=0"`
}

// ItemUpdate changes an item. Nil fields are left alone. A Stock target is
// recorded as a manual Stock entry of the difference.
type ItemUpdate struct {
	Description *string `json:"description" validate:"omitnil,min=1"`
	Material    *string `json:"material"`
	Comment     *string `json:"comment"`
	Stock       *int    `json:"availablestock"`
	MinLevel    *int    `json:"minlevel" validate:"omitnil,gte=0"`
	MaxLevel    *int    `json:"maxlevel" validate:"omitnil,gte=0"`
}

func checkLevels(minLevel, maxLevel int) error {
	if maxLevel > 0 && maxLevel < minLevel {
		return ValidationError{Field: "maxlevel", Message: "must not be below minlevel"}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Item Management
// ──────────────────────────────────────────────────

// ListItems returns items ordered by item number.
func (t *Tracker) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	return t.store.ListItems(ctx, opts)
}

// GetItem retrieves an item by item number.
func (t *Tracker) GetItem(ctx context.Context, itemID string) (*item.Item, error) {
	return t.store.GetItem(ctx, itemID)
}

// ItemHistory returns an item's ledger entries in write order.
func (t *Tracker) ItemHistory(ctx context.Context, itemID string) ([]history.Entry, error) {
	it, err := t.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return it.History, nil
}

// CreateItem assigns the next item number and stores the item with one
// Stock entry for its opening stock, zero included.
func (t *Tracker) CreateItem(ctx context.Context, actor string, in ItemInput) (*item.Item, error) {
	in.Description = strings.TrimSpace(in.Description)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkLevels(in.MinLevel, in.MaxLevel); err != nil {
		return nil, err
	}

	defer t.writing()()
	release, err := t.locker.Acquire(ctx, "item-number")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionConflict, err)
	}
	defer release(context.WithoutCancel(ctx)) //nolint:errcheck // nothing to recover

	itemID, err := t.nextItemID(ctx)
	if err != nil {
		return nil, err
	}

	it := &item.Item{
		Entity:      types.NewEntity(),
		ID:          id.NewItemID(),
		ItemID:      itemID,
		Description: in.Description,
		Material:    strings.TrimSpace(in.Material),
		Comment:     strings.TrimSpace(in.Comment),
		History:     []history.Entry{history.NewEntry(actor, in.Stock, history.LabelStock, t.now(), "")},
		MinLevel:    in.MinLevel,
		MaxLevel:    in.MaxLevel,
	}
	if err := t.store.CreateItem(ctx, it); err != nil {
		return nil, err
	}

	t.logger.Info("item created", "item_id", it.ItemID, "stock", in.Stock)
	t.plugins.EmitItemCreated(ctx, it)
	t.notifyStock(ctx, nil, it)
	return it, nil
}

// nextItemID proposes the number after the lexicographically largest one
// and fails instead of reusing a number that is already taken.
func (t *Tracker) nextItemID(ctx context.Context) (string, error) {
	latest, err := t.store.LatestItemID(ctx)
	if err != nil {
		return "", err
	}
	next, err := item.NextID(latest)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	_, err = t.store.GetItem(ctx, next)
	switch {
	case err == nil:
		t.logger.Error("next item number already taken", "latest", latest, "next", next)
		return "", fmt.Errorf("%w: %s", ErrItemIDExhausted, next)
	case IsNotFound(err):
		return next, nil
	default:
		return "", err
	}
}

// UpdateItem changes descriptive fields and levels, and records a Stock
// entry when the requested stock differs from the current one.
func (t *Tracker) UpdateItem(ctx context.Context, actor, itemID string, in ItemUpdate) (*item.Item, error) {
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	defer t.writing()()
	var adjustment *history.Entry
	after, before, err := t.mutateItem(ctx, itemID, func(it *item.Item) (bool, error) {
		adjustment = nil
		changed := false
		set := func(dst, src *string) {
			if src == nil {
				return
			}
			if v := strings.TrimSpace(*src); v != *dst {
				*dst = v
				changed = true
			}
		}
		set(&it.Description, in.Description)
		set(&it.Material, in.Material)
		set(&it.Comment, in.Comment)
		if in.MinLevel != nil && *in.MinLevel != it.MinLevel {
			it.MinLevel = *in.MinLevel
			changed = true
		}
		if in.MaxLevel != nil && *in.MaxLevel != it.MaxLevel {
			it.MaxLevel = *in.MaxLevel
			changed = true
		}
		if err := checkLevels(it.MinLevel, it.MaxLevel); err != nil {
			return false, err
		}
		if in.Stock != nil {
			if diff := *in.Stock - it.Stock(); diff != 0 {
				e := history.NewEntry(actor, diff, history.LabelStock, t.now(), "")
				it.History = append(it.History, e)
				adjustment = &e
				changed = true
			}
		}
		return changed, nil
	})
	if err != nil {
		return nil, err
	}

	if adjustment != nil {
		t.plugins.EmitStockAdjusted(ctx, after, *adjustment)
	}
	t.plugins.EmitItemUpdated(ctx, before, after)
	t.notifyStock(ctx, before, after)
	return after, nil
}

// AdjustStock appends a manual Stock entry of delta.
func (t *Tracker) AdjustStock(ctx context.Context, actor, itemID string, delta int) (*item.Item, error) {
	if delta == 0 {
		return nil, ValidationError{Field: "delta", Message: "must not be zero"}
	}

	defer t.writing()()
	var entry history.Entry
	after, before, err := t.mutateItem(ctx, itemID, func(it *item.Item) (bool, error) {
		entry = history.NewEntry(actor, delta, history.LabelStock, t.now(), "")
		it.History = append(it.History, entry)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("stock adjusted", "item_id", itemID, "delta", delta, "stock", after.Stock())
	t.plugins.EmitStockAdjusted(ctx, after, entry)
	t.notifyStock(ctx, before, after)
	return after, nil
}

// DeleteItem removes an item and its ledger.
func (t *Tracker) DeleteItem(ctx context.Context, itemID string) error {
	defer t.writing()()
	release, err := t.locker.Acquire(ctx, "item:"+itemID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVersionConflict, err)
	}
	defer release(context.WithoutCancel(ctx)) //nolint:errcheck // nothing to recover

	if err := t.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	t.logger.Info("item deleted", "item_id", itemID)
	t.plugins.EmitItemDeleted(ctx, itemID)
	return nil
}
