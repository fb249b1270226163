package database

import (
	"context"
	"fmt"
)

// Migration is one ordered schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the ordered schema for the service. The indexes mirror the
// two query shapes the app issues: keyset pagination over (created_at, id)
// and rate-limit counting over (subject, timestamp).
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "create_places",
		SQL: `
			CREATE TABLE IF NOT EXISTS places (
				id UUID PRIMARY KEY,
				name_en TEXT NOT NULL,
				name_ja TEXT,
				city TEXT,
				ward TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		Version: 2,
		Name:    "create_visits",
		SQL: `
			CREATE TABLE IF NOT EXISTS visits (
				id UUID PRIMARY KEY,
				user_id UUID NOT NULL,
				place_id UUID NOT NULL REFERENCES places(id),
				rating SMALLINT NOT NULL,
				comment TEXT NOT NULL DEFAULT '',
				photo_urls TEXT[] NOT NULL DEFAULT '{}',
				visited_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_visits_feed
				ON visits (created_at DESC, id DESC);
			CREATE INDEX IF NOT EXISTS idx_visits_user_created
				ON visits (user_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_visits_user_updated
				ON visits (user_id, updated_at)
		`,
	},
	{
		Version: 3,
		Name:    "create_follows",
		SQL: `
			CREATE TABLE IF NOT EXISTS follows (
				follower_id UUID NOT NULL,
				followee_id UUID NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (follower_id, followee_id)
			);
			CREATE INDEX IF NOT EXISTS idx_follows_follower_created
				ON follows (follower_id, created_at)
		`,
	},
	{
		Version: 4,
		Name:    "create_list_items",
		SQL: `
			CREATE TABLE IF NOT EXISTS list_items (
				list_id UUID NOT NULL,
				place_id UUID NOT NULL REFERENCES places(id),
				added_by UUID NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (list_id, place_id)
			);
			CREATE INDEX IF NOT EXISTS idx_list_items_added_by_created
				ON list_items (added_by, created_at)
		`,
	},
	{
		Version: 5,
		Name:    "create_signup_throttle",
		SQL: `
			CREATE TABLE IF NOT EXISTS signup_throttle (
				id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				ip_address TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_signup_throttle_ip_created
				ON signup_throttle (ip_address, created_at)
		`,
	},
	{
		Version: 6,
		Name:    "create_city_scores",
		SQL: `
			CREATE TABLE IF NOT EXISTS city_scores (
				user_id UUID NOT NULL,
				city TEXT NOT NULL,
				handle TEXT NOT NULL DEFAULT '',
				points BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, city)
			);
			CREATE INDEX IF NOT EXISTS idx_city_scores_rank
				ON city_scores (city, points DESC, user_id ASC)
		`,
	},
	{
		Version: 7,
		Name:    "create_remote_config",
		SQL: `
			CREATE TABLE IF NOT EXISTS remote_config (
				key TEXT PRIMARY KEY,
				value JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
}

// Migrate applies pending migrations in order. Each migration runs in its
// own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, pool *Pool) error {
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if applied[m.Version] {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(ctx, m.SQL); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
			m.Version, m.Name,
		); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, pool *Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, pool *Pool) (map[int]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
