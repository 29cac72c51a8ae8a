package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the SQLite store.
var Migrations = migrate.NewGroup("stockwise")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_stockwise_items",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stockwise_items (
    id          TEXT PRIMARY KEY,
    item_id     TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    material    TEXT NOT NULL DEFAULT '',
    comment     TEXT NOT NULL DEFAULT '',
    history     TEXT NOT NULL DEFAULT '[]',
    min_level   INTEGER NOT NULL DEFAULT 0,
    max_level   INTEGER NOT NULL DEFAULT 0,
    version     INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stockwise_items`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stockwise_receipts",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stockwise_receipts (
    id            TEXT PRIMARY KEY,
    po_number     TEXT NOT NULL DEFAULT '',
    date_received TEXT NOT NULL DEFAULT '',
    items         TEXT NOT NULL DEFAULT '[]',
    item_refs     TEXT NOT NULL DEFAULT '[]',
    created_at    TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stockwise_receipts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stockwise_usages",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stockwise_usages (
    id         TEXT PRIMARY KEY,
    job_number TEXT NOT NULL DEFAULT '',
    date_used  TEXT NOT NULL DEFAULT '',
    items      TEXT NOT NULL DEFAULT '[]',
    item_refs  TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stockwise_usages_job ON stockwise_usages (job_number);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stockwise_usages`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stockwise_requirements",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stockwise_requirements (
    id         TEXT PRIMARY KEY,
    job_number TEXT NOT NULL DEFAULT '',
    needed_by  TEXT NOT NULL DEFAULT '',
    items      TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stockwise_requirements_needed_by ON stockwise_requirements (needed_by);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stockwise_requirements`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_stockwise_users",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS stockwise_users (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL UNIQUE,
    email                TEXT NOT NULL UNIQUE,
    password_hash        TEXT NOT NULL DEFAULT '',
    security_question    TEXT NOT NULL DEFAULT '',
    security_answer_hash TEXT NOT NULL DEFAULT '',
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS stockwise_users`)
				return err
			},
		},
	)
}
