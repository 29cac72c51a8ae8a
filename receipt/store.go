package receipt

import (
	"context"

	"github.com/xraph/stockwise/id"
)

// Store persists receipts.
type Store interface {
	CreateReceipt(ctx context.Context, r *Receipt) error
	GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*Receipt, error)
	ListReceipts(ctx context.Context) ([]*Receipt, error)
	UpdateReceipt(ctx context.Context, r *Receipt) error
	DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error
	DeleteAllReceipts(ctx context.Context) (int64, error)
}
