// Package postgres implements store.Store on PostgreSQL through grove's
// pgdriver. Nested lists are stored as JSONB columns.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the postgres migration executor
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string, poolSize int, opts ...grove.Option) (*Store, error) {
	drv := pgdriver.New()
	var dopts []driver.Option
	if poolSize > 0 {
		dopts = append(dopts, driver.WithPoolSize(poolSize))
	}
	if err := drv.Open(ctx, dsn, dopts...); err != nil {
		return nil, fmt.Errorf("stockwise/postgres: open: %w", err)
	}
	db, err := grove.Open(drv, opts...)
	if err != nil {
		_ = drv.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("stockwise/postgres: open: %w", err)
	}
	return New(db), nil
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("stockwise/postgres: %w: %w", stockwise.ErrMigrationFailed, err)
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
		return fmt.Errorf("stockwise/postgres: create item: %w", err)
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create item", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*item.Item, error) {
	return s.findItem(ctx, "item_id = $1", itemID)
}

func (s *Store) GetItemByID(ctx context.Context, itemID id.ItemID) (*item.Item, error) {
	return s.findItem(ctx, "id = $1", itemID.String())
}

func (s *Store) findItem(ctx context.Context, where, arg string) (*item.Item, error) {
	m := new(itemModel)
	if err := s.pg.NewSelect(m).Where(where, arg).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrItemNotFound
		}
		return nil, fmt.Errorf("stockwise/postgres: get item: %w", err)
	}
	return fromItemModel(m)
}

func (s *Store) ListItems(ctx context.Context, opts item.ListOpts) ([]*item.Item, error) {
	var models []itemModel
	q := s.pg.NewSelect(&models)
	if opts.Search != "" {
		q = q.Where("(item_id ILIKE $1 OR description ILIKE $1 OR material ILIKE $1)", "%"+escapeLike(opts.Search)+"%")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr(`item_id COLLATE "C" ASC`)

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/postgres: list items: %w", err)
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
		return fmt.Errorf("stockwise/postgres: update item: %w", err)
	}

	res, err := s.pg.NewUpdate((*itemModel)(nil)).
		Set("description = $1", m.Description).
		Set("material = $2", m.Material).
		Set("comment = $3", m.Comment).
		Set("history = $4", m.History).
		Set("min_level = $5", m.MinLevel).
		Set("max_level = $6", m.MaxLevel).
		Set("updated_at = $7", m.UpdatedAt).
		Set("version = version + 1").
		Where("id = $8", m.ID).
		Where("item_id = $9", m.ItemID).
		Where("version = $10", it.Version).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: update item: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("stockwise/postgres: update item: %w", err)
	}
	if rows == 0 {
		// Distinguish a stale version from a missing row.
		n, err := s.pg.NewSelect((*itemModel)(nil)).
			Where("id = $1", m.ID).
			Where("item_id = $2", m.ItemID).
			Count(ctx)
		if err != nil {
			return fmt.Errorf("stockwise/postgres: update item: %w", err)
		}
		if n == 0 {
			return stockwise.ErrItemNotFound
		}
		return stockwise.ErrVersionConflict
	}
	it.Version++
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	res, err := s.pg.NewDelete((*itemModel)(nil)).
		Where("item_id = $1", itemID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: delete item: %w", err)
	}
	return affected(res, stockwise.ErrItemNotFound)
}

func (s *Store) LatestItemID(ctx context.Context) (string, error) {
	var latest string
	err := s.pg.NewRaw(`
		SELECT item_id FROM stockwise_items
		WHERE item_id ~ '^I[0-9]+$'
		ORDER BY item_id COLLATE "C" DESC
		LIMIT 1
	`).Scan(ctx, &latest)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("stockwise/postgres: latest item id: %w", err)
	}
	return latest, nil
}

func (s *Store) ResetHistory(ctx context.Context) (int64, error) {
	res, err := s.pg.NewUpdate((*itemModel)(nil)).
		Set("history = '[]'::jsonb").
		Set("version = version + 1").
		Set("updated_at = $1", time.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/postgres: reset history: %w", err)
	}
	return res.RowsAffected()
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	m, err := toReceiptModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: create receipt: %w", err)
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create receipt", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID id.ReceiptID) (*receipt.Receipt, error) {
	m := new(receiptModel)
	if err := s.pg.NewSelect(m).Where("id = $1", receiptID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrReceiptNotFound
		}
		return nil, fmt.Errorf("stockwise/postgres: get receipt: %w", err)
	}
	return fromReceiptModel(m)
}

func (s *Store) ListReceipts(ctx context.Context) ([]*receipt.Receipt, error) {
	var models []receiptModel
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/postgres: list receipts: %w", err)
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
		return fmt.Errorf("stockwise/postgres: update receipt: %w", err)
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: update receipt: %w", err)
	}
	return affected(res, stockwise.ErrReceiptNotFound)
}

func (s *Store) DeleteReceipt(ctx context.Context, receiptID id.ReceiptID) error {
	res, err := s.pg.NewDelete((*receiptModel)(nil)).
		Where("id = $1", receiptID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: delete receipt: %w", err)
	}
	return affected(res, stockwise.ErrReceiptNotFound)
}

func (s *Store) DeleteAllReceipts(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, "stockwise_receipts")
}

// ==================== Usage Store ====================

func (s *Store) CreateUsage(ctx context.Context, u *usage.Usage) error {
	m, err := toUsageModel(u)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: create usage: %w", err)
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create usage", err)
	}
	return nil
}

func (s *Store) GetUsage(ctx context.Context, usageID id.UsageID) (*usage.Usage, error) {
	m := new(usageModel)
	if err := s.pg.NewSelect(m).Where("id = $1", usageID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrUsageNotFound
		}
		return nil, fmt.Errorf("stockwise/postgres: get usage: %w", err)
	}
	return fromUsageModel(m)
}

func (s *Store) ListUsages(ctx context.Context) ([]*usage.Usage, error) {
	var models []usageModel
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/postgres: list usages: %w", err)
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
		return fmt.Errorf("stockwise/postgres: update usage: %w", err)
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: update usage: %w", err)
	}
	return affected(res, stockwise.ErrUsageNotFound)
}

func (s *Store) DeleteUsage(ctx context.Context, usageID id.UsageID) error {
	res, err := s.pg.NewDelete((*usageModel)(nil)).
		Where("id = $1", usageID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: delete usage: %w", err)
	}
	return affected(res, stockwise.ErrUsageNotFound)
}

func (s *Store) DeleteAllUsages(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, "stockwise_usages")
}

// ==================== Requirement Store ====================

func (s *Store) CreateRequirement(ctx context.Context, r *requirement.Requirement) error {
	m, err := toRequirementModel(r)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: create requirement: %w", err)
	}
	if _, err := s.pg.NewInsert(m).Exec(ctx); err != nil {
		return writeErr("create requirement", err)
	}
	return nil
}

func (s *Store) GetRequirement(ctx context.Context, requirementID id.RequirementID) (*requirement.Requirement, error) {
	m := new(requirementModel)
	if err := s.pg.NewSelect(m).Where("id = $1", requirementID.String()).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrRequirementNotFound
		}
		return nil, fmt.Errorf("stockwise/postgres: get requirement: %w", err)
	}
	return fromRequirementModel(m)
}

func (s *Store) ListRequirements(ctx context.Context) ([]*requirement.Requirement, error) {
	var models []requirementModel
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stockwise/postgres: list requirements: %w", err)
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
		return fmt.Errorf("stockwise/postgres: update requirement: %w", err)
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: update requirement: %w", err)
	}
	return affected(res, stockwise.ErrRequirementNotFound)
}

func (s *Store) DeleteRequirement(ctx context.Context, requirementID id.RequirementID) error {
	res, err := s.pg.NewDelete((*requirementModel)(nil)).
		Where("id = $1", requirementID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: delete requirement: %w", err)
	}
	return affected(res, stockwise.ErrRequirementNotFound)
}

func (s *Store) DeleteAllRequirements(ctx context.Context) (int64, error) {
	return s.deleteAll(ctx, "stockwise_requirements")
}

// ==================== User Store ====================

func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	if _, err := s.pg.NewInsert(toUserModel(u)).Exec(ctx); err != nil {
		return writeErr("create user", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (*user.User, error) {
	return s.findUser(ctx, "user_id = $1", userID)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return s.findUser(ctx, "email = $1", email)
}

func (s *Store) findUser(ctx context.Context, where, arg string) (*user.User, error) {
	m := new(userModel)
	if err := s.pg.NewSelect(m).Where(where, arg).Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, stockwise.ErrUserNotFound
		}
		return nil, fmt.Errorf("stockwise/postgres: get user: %w", err)
	}
	return fromUserModel(m)
}

func (s *Store) UpdateUser(ctx context.Context, u *user.User) error {
	res, err := s.pg.NewUpdate(toUserModel(u)).WherePK().Exec(ctx)
	if err != nil {
		return writeErr("update user", err)
	}
	return affected(res, stockwise.ErrUserNotFound)
}

func (s *Store) DeleteUser(ctx context.Context, userID id.UserID) error {
	res, err := s.pg.NewDelete((*userModel)(nil)).
		Where("id = $1", userID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("stockwise/postgres: delete user: %w", err)
	}
	return affected(res, stockwise.ErrUserNotFound)
}

// ==================== helpers ====================

func (s *Store) deleteAll(ctx context.Context, table string) (int64, error) {
	res, err := s.pg.NewRaw(`DELETE FROM ` + table).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("stockwise/postgres: truncate %s: %w", table, err)
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

// writeErr maps a unique violation to the matching sentinel.
func writeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return fmt.Errorf("stockwise/postgres: %s: %w", op, err)
	}
	switch pgErr.ConstraintName {
	case "idx_stockwise_users_user_id":
		return stockwise.ErrUsernameTaken
	case "idx_stockwise_users_email":
		return stockwise.ErrEmailTaken
	default:
		return stockwise.ErrAlreadyExists
	}
}

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
