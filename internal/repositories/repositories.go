// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a *sql.DB and translates between rows and [models] entities.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/shared"
	"github.com/mattn/go-sqlite3"
)

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// notFound wraps [shared.ErrNotFound] with the entity and key that were missing.
func notFound(entity string, key ...any) error {
	return fmt.Errorf("%w: %s %v", shared.ErrNotFound, entity, key)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// utc normalizes timestamps before they are written so that text comparisons in SQL order correctly.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// expectOne turns a zero RowsAffected into a not found error.
func expectOne(result sql.Result, entity string, key ...any) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound(entity, key...)
	}
	return nil
}
