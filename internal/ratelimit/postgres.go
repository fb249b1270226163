package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vistly/vistly/internal/database"
	"github.com/vistly/vistly/internal/metrics"
)

// PostgresStore counts events by querying the rows the policy table names.
// Identifiers are interpolated from the static policy table, never from
// request input.
type PostgresStore struct {
	pool *database.Pool
}

// NewPostgresStore creates a Postgres-backed counting store.
func NewPostgresStore(pool *database.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CountSince returns the number of qualifying events at or after since.
func (s *PostgresStore) CountSince(ctx context.Context, p Policy, subject string, since time.Time) (int, error) {
	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE %s = $1 AND %s >= $2`,
		p.Table, p.SubjectColumn, p.TimestampColumn,
	)

	start := time.Now()
	var count int
	err := s.pool.QueryRow(ctx, query, subject, since).Scan(&count)
	metrics.RecordDBQuery("ratelimit_count", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("count %s events: %w", p.Action, err)
	}
	return count, nil
}

// OldestSince returns the timestamp of the oldest qualifying event at or
// after since.
func (s *PostgresStore) OldestSince(ctx context.Context, p Policy, subject string, since time.Time) (time.Time, bool, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1 AND %s >= $2 ORDER BY %s ASC LIMIT 1`,
		p.TimestampColumn, p.Table, p.SubjectColumn, p.TimestampColumn, p.TimestampColumn,
	)

	start := time.Now()
	var oldest time.Time
	err := s.pool.QueryRow(ctx, query, subject, since).Scan(&oldest)
	metrics.RecordDBQuery("ratelimit_oldest", time.Since(start))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("find oldest %s event: %w", p.Action, err)
	}
	return oldest, true, nil
}
