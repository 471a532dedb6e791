package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const createCoreTablesSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	plan TEXT NOT NULL DEFAULT 'free',
	plan_expires_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS catalogs (
	kind TEXT PRIMARY KEY,
	data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS curriculum (
	id INT PRIMARY KEY,
	data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS assessment_sessions (
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	current_index INT NOT NULL DEFAULT 0,
	data JSONB NOT NULL,
	PRIMARY KEY (user_id, kind)
);

CREATE TABLE IF NOT EXISTS assessment_results (
	user_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	wave INT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (user_id, kind, wave)
);

CREATE TABLE IF NOT EXISTS review_sessions (
	user_id TEXT PRIMARY KEY,
	version INT NOT NULL DEFAULT 0,
	data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS day_progress (
	user_id TEXT NOT NULL,
	day_id TEXT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (user_id, day_id)
);

-- one active day per user, enforced by the store
CREATE UNIQUE INDEX IF NOT EXISTS day_progress_one_active
	ON day_progress (user_id) WHERE (data->>'status') = 'active';

CREATE TABLE IF NOT EXISTS task_progress (
	user_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (user_id, task_id)
);

CREATE TABLE IF NOT EXISTS streaks (
	user_id TEXT PRIMARY KEY,
	data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS xp_ledger (
	id BIGSERIAL PRIMARY KEY,
	user_id TEXT NOT NULL,
	amount INT NOT NULL,
	ts TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS xp_ledger_user ON xp_ledger (user_id);
`

const dropCoreTablesSQL = `
DROP TABLE IF EXISTS xp_ledger;
DROP TABLE IF EXISTS streaks;
DROP TABLE IF EXISTS task_progress;
DROP TABLE IF EXISTS day_progress;
DROP TABLE IF EXISTS review_sessions;
DROP TABLE IF EXISTS assessment_results;
DROP TABLE IF EXISTS assessment_sessions;
DROP TABLE IF EXISTS curriculum;
DROP TABLE IF EXISTS catalogs;
DROP TABLE IF EXISTS users;
`

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createCoreTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, dropCoreTablesSQL)
			return err
		},
	)
}
