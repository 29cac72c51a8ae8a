// Package sqlite implements store.Store on an embedded SQLite database
// through grove's sqlitedriver (modernc.org/sqlite, no cgo). Nested lists
// are stored as JSON columns.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/stockwise"
	"github.com/xraph/stockwise/id"
	"github.com/xraph/stockwise/item"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/requirement"
	stockstore "github.com/xraph/stockwise/store"
	"github.com/xraph/stockwise/usage"
	"github.com/xraph/stockwise/user"
)

// compile-time interface check
var _ stockstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// Open opens (creating if needed) the database file at path. Use ":memory:"
// for a throwaway database.
func Open(ctx context.Context, path string, opts ...grove.Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("stockwise/sqlite: create directory: %w", err)
		}
	}
	drv := sqlitedriver.New()
	// One connection: SQLite serializes writers and a :memory: database
	// lives only as long as its connection.
	if err := drv.Open(ctx, path+"?_pragma=busy_timeout(5000)", driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("stockwise/sqlite: open %s: %w", path, err)
	}
	db, err := grove.Open(drv, opts...)
	if err != nil {
		_ = drv.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stockwise/sqlite: open %s: %w", path, err)
	}
	return New(db), nil
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("stockwise/sqlite: %w: %w", stockwise.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Item Store ====================

func (s *Store) CreateItem(ctx context.Context, it *item.Item) error {
	m, err := toItemModel(it)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: create item: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create item", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*item.Item, error) {
	return s.findItem(ctx, "item_id = ?", itemID)
}

func (s *Store) GetItemByID(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	return s.findItem(ctx, "id = ?", itemID.String())
}

func (s *Store) findItem(ctx context.Context, where string, arg string) (*item.Item, error) {
	m := new(itemModel)
	if err := s.sdb.NewSelect(m).Where(where, arg).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrItemNotFound
		}
		return nil, fmt.Errorf("stockwise/sqlite: get item: %w", err)
	}
	return fromItemModel(m)
}

func (s *Store) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	var models []itemModel
	q := s.sdb.NewSelect(&models)
	if opts.Search != "" {
		like := "%" + strings.ToLower(opts.Search) + "%"
		q = q.Where("lower(item_id) LIKE ?", like).
			WhereOr("lower(description) LIKE ?", like).
			WhereOr("lower(material) LIKE ?", like)
	}
	q = q.OrderExpr("item_id ASC")
	switch {
	case opts.Limit > 0:
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	case opts.Offset > 0:
		// SQLite rejects OFFSET without LIMIT.
		q = q.Limit(math.MaxInt32).Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/sqlite: list items: %w", err)
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
	m, err := toItemModel(it)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update item: %w", err)
	}
	m.Version = it.Version + 1

	res, err := s.sdb.NewUpdate(m).
		Column("description", "material", "comment", "history", "min_level", "max_level", "version", "updated_at").
		Where("id = ?", m.ID).
		Where("item_id = ?", m.ItemID).
		Where("version = ?", it.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update item: %w", err)
	}
	if rows == 0 {
		// Distinguish a stale version from a missing row.
		n, err := s.sdb.NewSelect((*itemModel)(nil)).
			Where("id = ?", m.ID).
			Where("item_id = ?", m.ItemID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("stockwise/sqlite: update item: %w", err)
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
	res, err := s.sdb.NewDelete((*itemModel)(nil)).
		Where("item_id = ?", itemID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: delete item: %w", err)
	}
	return affected(res, stockwise.ErrItemNotFound)
}

func (s *Store) LatestItemID(ctx context.Context) (string, error) {
	// GLOB narrows the scan; IsNumber rejects ids like "I12x".
	var models []itemModel
	err := s.sdb.NewSelect(&models).
		Where("item_id GLOB 'I[0-9]*'").
		OrderExpr("item_id DESC").
		Scan(ctx)
	if err != nil {
		return "", fmt.Errorf("stockwise/sqlite: latest item id: %w", err)
	}
	for _, m := range models {
		if item.IsNumber(m.ItemID) {
			return m.ItemID, nil
		}
	}
	return "", nil
}

func (s *Store) ResetHistory(ctx context.Context) (int64, error) {
	res, err := s.sdb.NewUpdate((*itemModel)(nil)).
		Set("history = ?", "[]").
		Set("version = version + 1").
		Set("updated_at = ?", formatTime(time.Now())).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/sqlite: reset history: %w", err)
	}
	return res.RowsAffected()
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	m, err := toReceiptModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: create receipt: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create receipt", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	m := new(receiptModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", receiptID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("stockwise/sqlite: get receipt: %w", err)
	}
	return fromReceiptModel(m)
}

func (s *Store) ListReceipts(ctx context.Context) ([]*receipt.Receipt, error) {
	var models []receiptModel
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/sqlite: list receipts: %w", err)
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
	m, err := toReceiptModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update receipt: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).
		Column("po_number", "date_received", "items", "item_refs", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update receipt: %w", err)
	}
	return affected(res, stockwise.ErrReceiptNotFound)
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error {
	res, err := s.sdb.NewDelete((*receiptModel)(nil)).
		Where("id = ?", receiptID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: delete receipt: %w", err)
	}
	return affected(res, stockwise.ErrReceiptNotFound)
}

func (s *Store) DeleteAllReceipts(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*receiptModel)(nil), "receipts")
}

// ==================== Usage Store ====================

func (s *Store) CreateUsage(ctx context.Context, u *usage.Usage) error {
	m, err := toUsageModel(u)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: create usage: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create usage", err)
	}
	return nil
}

func (s *Store) GetUsage(ctx context.Context, usageID id.UsageID) (*usage.Usage, error) {
	m := new(usageModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", usageID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrUsageNotFound
		}
		return nil, fmt.Errorf("stockwise/sqlite: get usage: %w", err)
	}
	return fromUsageModel(m)
}

func (s *Store) ListUsages(ctx context.Context) ([]*usage.Usage, error) {
	var models []usageModel
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/sqlite: list usages: %w", err)
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
	m, err := toUsageModel(u)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update usage: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).
		Column("job_number", "date_used", "items", "item_refs", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update usage: %w", err)
	}
	return affected(res, stockwise.ErrUsageNotFound)
}

func (s *Store) DeleteUsage(ctx context.Context, usageID id.UsageID) error {
	res, err := s.sdb.NewDelete((*usageModel)(nil)).
		Where("id = ?", usageID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: delete usage: %w", err)
	}
	return affected(res, stockwise.ErrUsageNotFound)
}

func (s *Store) DeleteAllUsages(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*usageModel)(nil), "usages")
}

// ==================== Requirement Store ====================

func (s *Store) CreateRequirement(ctx context.Context, r *requirement.Requirement) error {
	m, err := toRequirementModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: create requirement: %w", err)
	}
	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create requirement", err)
	}
	return nil
}

func (s *Store) GetRequirement(ctx context.Context, requirementID id.RequirementID) (*requirement.Requirement, error) {
	m := new(requirementModel)
	if err := s.sdb.NewSelect(m).Where("id = ?", requirementID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrRequirementNotFound
		}
		return nil, fmt.Errorf("stockwise/sqlite: get requirement: %w", err)
	}
	return fromRequirementModel(m)
}

func (s *Store) ListRequirements(ctx context.Context) ([]*requirement.Requirement, error) {
	var models []requirementModel
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/sqlite: list requirements: %w", err)
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
	m, err := toRequirementModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update requirement: %w", err)
	}
	res, err := s.sdb.NewUpdate(m).
		Column("job_number", "needed_by", "items", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: update requirement: %w", err)
	}
	return affected(res, stockwise.ErrRequirementNotFound)
}

func (s *Store) DeleteRequirement(ctx context.Context, requirementID id.RequirementID) error {
	res, err := s.sdb.NewDelete((*requirementModel)(nil)).
		Where("id = ?", requirementID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: delete requirement: %w", err)
	}
	return affected(res, stockwise.ErrRequirementNotFound)
}

func (s *Store) DeleteAllRequirements(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, (*requirementModel)(nil), "requirements")
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if _, err := s.sdb.NewInsert(toUserModel(u)).Exec(ctx); err != nil {
		return writeErr("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*user.User, error) {
	return s.findUser(ctx, "user_id = ?", userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, "email = ?", email)
}

func (s *Store) findUser(ctx context.Context, where, arg string) (*user.User, error) {
	m := new(userModel)
	if err := s.sdb.NewSelect(m).Where(where, arg).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrUserNotFound
		}
		return nil, fmt.Errorf("stockwise/sqlite: get user: %w", err)
	}
	return fromUserModel(m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.sdb.NewUpdate(toUserModel(u)).
		Column("user_id", "email", "password_hash", "security_question", "security_answer_hash", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return writeErr("update user", err)
	}
	return affected(res, stockwise.ErrUserNotFound)
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	res, err := s.sdb.NewDelete((*userModel)(nil)).
		Where("id = ?", userID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/sqlite: delete user: %w", err)
	}
	return affected(res, stockwise.ErrUserNotFound)
}

// ==================== helpers ====================

func (s *Store) deleteAll(ctx context.Context, model any, what string) (int64, error) {
	res, err := s.sdb.NewDelete(model).Where("1 = 1").Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/sqlite: truncate %s: %w", what, err)
	}
	return res.RowsAffected()
}

func affected(res driver.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// writeErr maps a constraint violation to the matching sentinel.
func writeErr(op string, err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return fmt.Errorf("stockwise/sqlite: %s: %w", op, err)
	}
	switch {
	case strings.Contains(msg, "stockwise_users.user_id"):
		return stockwise.ErrUsernameTaken
	case strings.Contains(msg, "stockwise_users.email"):
		return stockwise.ErrEmailTaken
	default:
		return stockwise.ErrAlreadyExists
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
