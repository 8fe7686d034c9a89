package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

var (
	// ErrConflict is returned when a conditional update finds the row no longer in
	// the expected state because a concurrent writer got there first.
	ErrConflict = errors.New("store: concurrent state change")

	// ErrInvalidTransition is returned when a status change is not permitted from the
	// row's current status.
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrNotFound is returned by multi-step operations whose target row is missing.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when an insert collides with an existing unique key.
	ErrDuplicate = errors.New("store: duplicate key")
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// swapChildStatus moves a child from one status to another only if it is still in
// the expected status. It reports whether the row was changed.
func swapChildStatus(ctx context.Context, q execer, childID int64, from, to model.ChildStatus, reservationID *int64, now time.Time) (bool, error) {
	var rID sql.NullInt64
	if reservationID != nil {
		rID = sql.NullInt64{Int64: *reservationID, Valid: true}
	}
	result, err := q.ExecContext(ctx,
		`UPDATE children SET status = ?, reservation_id = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to, rID, now, childID, from,
	)
	if err != nil {
		return false, fmt.Errorf("swap child status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
