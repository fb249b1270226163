package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// isNoRows reports whether err is pgx's no-rows sentinel. With
// ON CONFLICT DO NOTHING, no returned row means the insert hit an
// existing row.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
