// Package mongo implements store.Store on MongoDB through grove's
// mongodriver. Ledger entries are stored as structured sub-documents.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	stockstore "github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// Collection name constants.
const (
	colItems        = "stockwise_items"
	colReceipts     = "stockwise_receipts"
	colUsages       = "stockwise_usages"
	colRequirements = "stockwise_requirements"
	colUsers        = "stockwise_users"
)

// compile-time interface check
var _ stockstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// Connect dials uri and opens database.
func Connect(ctx context.Context, uri, database string, opts ...grove.Option) (*Store, error) {
	drv := mongodriver.New()
	if err := drv.Open(ctx, uri, mongodriver.WithDatabase(database)); err != nil {
		_ = drv.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stockwise/mongo: connect: %w", err)
	}
	db, err := grove.Open(drv, opts...)
	if err != nil {
		_ = drv.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stockwise/mongo: connect: %w", err)
	}
	return New(db), nil
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all stockwise collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("stockwise/mongo: migrate %s indexes: %w: %w", col, stockwise.ErrMigrationFailed, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Item Store ====================

func (s *Store) CreateItem(ctx context.Context, it *item.Item) error {
	if _, err := s.mdb.NewInsert(toItemModel(it)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockwise.ErrAlreadyExists
		}
		return fmt.Errorf("stockwise/mongo: create item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*item.Item, error) {
	return s.findItem(ctx, bson.M{"item_id": itemID})
}

func (s *Store) GetItemByID(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	return s.findItem(ctx, bson.M{"_id": itemID.String()})
}

func (s *Store) findItem(ctx context.Context, filter bson.M) (*item.Item, error) {
	var m itemModel
	if err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, stockwise.ErrItemNotFound
		}
		return nil, fmt.Errorf("stockwise/mongo: get item: %w", err)
	}
	return fromItemModel(&m)
}

func (s *Store) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	var models []itemModel

	filter := bson.M{}
	if opts.Search != "" {
		pattern := bson.Regex{Pattern: regexp.QuoteMeta(opts.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"item_id": pattern},
			bson.M{"description": pattern},
			bson.M{"material": pattern},
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "item_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/mongo: list items: %w", err)
	}

	result := make([]*item.Item, 0, len(models))
	for i := range models {
		it, err := fromItemModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, nil
}

func (s *Store) UpdateItem(ctx context.Context, it *item.Item) error {
	m := toItemModel(it)
	m.Version = it.Version + 1

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID, "item_id": m.ItemID, "version": it.Version}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: update item: %w", err)
	}
	if res.MatchedCount() == 0 {
		n, err := s.mdb.NewFind((*itemModel)(nil)).
			Filter(bson.M{"_id": m.ID, "item_id": m.ItemID}).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("stockwise/mongo: update item: %w", err)
		}
		if n == 0 {
			return stockwise.ErrItemNotFound
		}
		return stockwise.ErrVersionConflict
	}
	it.Version = m.Version
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	res, err := s.mdb.NewDelete((*itemModel)(nil)).
		Filter(bson.M{"item_id": itemID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: delete item: %w", err)
	}
	if res.DeletedCount() == 0 {
		return stockwise.ErrItemNotFound
	}
	return nil
}

func (s *Store) LatestItemID(ctx context.Context) (string, error) {
	var m itemModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"item_id": bson.Regex{Pattern: `^I[0-9]+$`}}).
		Sort(bson.D{{Key: "item_id", Value: -1}}).
		Project(bson.M{"item_id": 1}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return "", nil
		}
		return "", fmt.Errorf("stockwise/mongo: latest item id: %w", err)
	}
	return m.ItemID, nil
}

func (s *Store) ResetHistory(ctx context.Context) (int64, error) {
	res, err := s.mdb.NewUpdate((*itemModel)(nil)).
		SetUpdate(bson.M{
			"$set": bson.M{"history": bson.A{}, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		}).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/mongo: reset history: %w", err)
	}
	return res.ModifiedCount(), nil
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	if _, err := s.mdb.NewInsert(toReceiptModel(r)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockwise.ErrAlreadyExists
		}
		return fmt.Errorf("stockwise/mongo: create receipt: %w", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	var m receiptModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": receiptID.String()}).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, stockwise.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("stockwise/mongo: get receipt: %w", err)
	}
	return fromReceiptModel(&m)
}

func (s *Store) ListReceipts(ctx context.Context) ([]*receipt.Receipt, error) {
	var models []receiptModel
	if err := s.findAll(ctx, &models); err != nil {
		return nil, fmt.Errorf("stockwise/mongo: list receipts: %w", err)
	}
	result := make([]*receipt.Receipt, 0, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) UpdateReceipt(ctx context.Context, r *receipt.Receipt) error {
	m := toReceiptModel(r)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: update receipt: %w", err)
	}
	if res.MatchedCount() == 0 {
		return stockwise.ErrReceiptNotFound
	}
	return nil
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error {
	return s.deleteOne(ctx, (*receiptModel)(nil), receiptID, stockwise.ErrReceiptNotFound)
}

func (s *Store) DeleteAllReceipts(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*receiptModel)(nil))
}

// ==================== Usage Store ====================

func (s *Store) CreateUsage(ctx context.Context, u *usage.Usage) error {
	if _, err := s.mdb.NewInsert(toUsageModel(u)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockwise.ErrAlreadyExists
		}
		return fmt.Errorf("stockwise/mongo: create usage: %w", err)
	}
	return nil
}

func (s *Store) GetUsage(ctx context.Context, usageID id.UsageID) (*usage.Usage, error) {
	var m usageModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": usageID.String()}).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, stockwise.ErrUsageNotFound
		}
		return nil, fmt.Errorf("stockwise/mongo: get usage: %w", err)
	}
	return fromUsageModel(&m)
}

func (s *Store) ListUsages(ctx context.Context) ([]*usage.Usage, error) {
	var models []usageModel
	if err := s.findAll(ctx, &models); err != nil {
		return nil, fmt.Errorf("stockwise/mongo: list usages: %w", err)
	}
	result := make([]*usage.Usage, 0, len(models))
	for i := range models {
		u, err := fromUsageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, nil
}

func (s *Store) UpdateUsage(ctx context.Context, u *usage.Usage) error {
	m := toUsageModel(u)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: update usage: %w", err)
	}
	if res.MatchedCount() == 0 {
		return stockwise.ErrUsageNotFound
	}
	return nil
}

func (s *Store) DeleteUsage(ctx context.Context, usageID id.UsageID) error {
	return s.deleteOne(ctx, (*usageModel)(nil), usageID, stockwise.ErrUsageNotFound)
}

func (s *Store) DeleteAllUsages(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*usageModel)(nil))
}

// ==================== Requirement Store ====================

func (s *Store) CreateRequirement(ctx context.Context, r *requirement.Requirement) error {
	if _, err := s.mdb.NewInsert(toRequirementModel(r)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return stockwise.ErrAlreadyExists
		}
		return fmt.Errorf("stockwise/mongo: create requirement: %w", err)
	}
	return nil
}

func (s *Store) GetRequirement(ctx context.Context, requirementID id.RequirementID) (*requirement.Requirement, error) {
	var m requirementModel
	if err := s.mdb.NewFind(&m).Filter(bson.M{"_id": requirementID.String()}).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, stockwise.ErrRequirementNotFound
		}
		return nil, fmt.Errorf("stockwise/mongo: get requirement: %w", err)
	}
	return fromRequirementModel(&m)
}

func (s *Store) ListRequirements(ctx context.Context) ([]*requirement.Requirement, error) {
	var models []requirementModel
	if err := s.findAll(ctx, &models); err != nil {
		return nil, fmt.Errorf("stockwise/mongo: list requirements: %w", err)
	}
	result := make([]*requirement.Requirement, 0, len(models))
	for i := range models {
		r, err := fromRequirementModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (s *Store) UpdateRequirement(ctx context.Context, r *requirement.Requirement) error {
	m := toRequirementModel(r)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: update requirement: %w", err)
	}
	if res.MatchedCount() == 0 {
		return stockwise.ErrRequirementNotFound
	}
	return nil
}

func (s *Store) DeleteRequirement(ctx context.Context, requirementID id.RequirementID) error {
	return s.deleteOne(ctx, (*requirementModel)(nil), requirementID, stockwise.ErrRequirementNotFound)
}

func (s *Store) DeleteAllRequirements(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*requirementModel)(nil))
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if _, err := s.mdb.NewInsert(toUserModel(u)).Exec(ctx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUserErr(err)
		}
		return fmt.Errorf("stockwise/mongo: create user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"user_id": userID})
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *Store) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	var m userModel
	if err := s.mdb.NewFind(&m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return nil, stockwise.ErrUserNotFound
		}
		return nil, fmt.Errorf("stockwise/mongo: get user: %w", err)
	}
	return fromUserModel(&m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	m := toUserModel(u)
	res, err := s.mdb.NewUpdate(m).Filter(bson.M{"_id": m.ID}).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return duplicateUserErr(err)
		}
		return fmt.Errorf("stockwise/mongo: update user: %w", err)
	}
	if res.MatchedCount() == 0 {
		return stockwise.ErrUserNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	return s.deleteOne(ctx, (*userModel)(nil), userID, stockwise.ErrUserNotFound)
}

// ==================== helpers ====================

func (s *Store) findAll(ctx context.Context, models any) error {
	return s.mdb.NewFind(models).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
}

func (s *Store) deleteOne(ctx context.Context, model any, recordID id.ID, notFound error) error {
	res, err := s.mdb.NewDelete(model).
		Filter(bson.M{"_id": recordID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/mongo: delete %s: %w", recordID.Prefix(), err)
	}
	if res.DeletedCount() == 0 {
		return notFound
	}
	return nil
}

func (s *Store) deleteAll(ctx context.Context, model any) (int64, error) {
	res, err := s.mdb.NewDelete(model).Many().Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/mongo: truncate: %w", err)
	}
	return res.DeletedCount(), nil
}

// duplicateUserErr names the unique index that rejected the write.
func duplicateUserErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "user_id"):
		return stockwise.ErrUsernameTaken
	case strings.Contains(msg, "email"):
		return stockwise.ErrEmailTaken
	default:
		return stockwise.ErrAlreadyExists
	}
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all stockwise collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colItems: {
			{
				Keys:    bson.D{{Key: "item_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "history.correlation_id", Value: 1}}},
		},
		colReceipts: {
			{Keys: bson.D{{Key: "date_received", Value: -1}}},
			{Keys: bson.D{{Key: "items.item_id", Value: 1}}},
		},
		colUsages: {
			{Keys: bson.D{{Key: "date_used", Value: -1}}},
			{Keys: bson.D{{Key: "job_number", Value: 1}}},
			{Keys: bson.D{{Key: "items.item_id", Value: 1}}},
		},
		colRequirements: {
			{Keys: bson.D{{Key: "needed_by", Value: 1}}},
		},
		colUsers: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys:    bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}
