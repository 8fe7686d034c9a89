package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

type ReservationStore struct {
	db *sql.DB
}

func NewReservationStore(db *sql.DB) *ReservationStore {
	return &ReservationStore{db: db}
}

func scanReservation(scanner interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var closedAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.Token, &r.Sponsor.Name, &r.Sponsor.Email, &r.Sponsor.Phone, &r.Sponsor.Address,
		&r.Status, &r.CreatedAt, &r.ExpiresAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.ClosedAt = nullTime(closedAt)
	return &r, nil
}

const reservationCols = `id, token, sponsor_name, sponsor_email, sponsor_phone, sponsor_address, status, created_at, expires_at, closed_at`

// NewReservation holds everything needed to claim a set of children.
type NewReservation struct {
	Token     string
	Sponsor   model.Sponsor
	ChildIDs  []int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Create claims every child in p.ChildIDs for a new active reservation, or none of
// them. If any child is missing or not available, nothing is written and the
// offending ids are returned with a nil reservation.
func (s *ReservationStore) Create(ctx context.Context, p NewReservation) (*model.Reservation, []int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	unavailable, err := unavailableChildren(ctx, tx, p.ChildIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(unavailable) > 0 {
		return nil, unavailable, nil
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (token, sponsor_name, sponsor_email, sponsor_phone, sponsor_address, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Token, p.Sponsor.Name, p.Sponsor.Email, p.Sponsor.Phone, p.Sponsor.Address,
		model.ReservationActive, p.CreatedAt, p.ExpiresAt,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("insert reservation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	// The availability read above is advisory; the conditional update is what
	// actually claims each child.
	for i, childID := range p.ChildIDs {
		ok, err := swapChildStatus(ctx, tx, childID, model.ChildAvailable, model.ChildPending, &id, p.CreatedAt)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, []int64{childID}, nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reservation_children (reservation_id, child_id, position) VALUES (?, ?, ?)`,
			id, childID, i,
		); err != nil {
			return nil, nil, fmt.Errorf("insert reservation child: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	return &model.Reservation{
		ID:        id,
		Token:     p.Token,
		Sponsor:   p.Sponsor,
		ChildIDs:  append([]int64(nil), p.ChildIDs...),
		Status:    model.ReservationActive,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}, nil, nil
}

// unavailableChildren returns the ids, in request order, that are missing or not
// currently available.
func unavailableChildren(ctx context.Context, q execer, ids []int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, status FROM children WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	defer rows.Close()

	statuses := make(map[int64]model.ChildStatus, len(ids))
	for rows.Next() {
		var id int64
		var status model.ChildStatus
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		statuses[id] = status
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var unavailable []int64
	for _, id := range ids {
		if status, ok := statuses[id]; !ok || status != model.ChildAvailable {
			unavailable = append(unavailable, id)
		}
	}
	return unavailable, nil
}

func (s *ReservationStore) GetByToken(ctx context.Context, token string) (*model.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE token = ?`, token)
	return s.get(ctx, row, "get reservation by token")
}

func (s *ReservationStore) GetByID(ctx context.Context, id int64) (*model.Reservation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id)
	return s.get(ctx, row, "get reservation")
}

func (s *ReservationStore) get(ctx context.Context, row *sql.Row, op string) (*model.Reservation, error) {
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ids, err := reservationChildIDs(ctx, s.db, r.ID)
	if err != nil {
		return nil, err
	}
	r.ChildIDs = ids
	return r, nil
}

func reservationChildIDs(ctx context.Context, q execer, reservationID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT child_id FROM reservation_children WHERE reservation_id = ? ORDER BY position`,
		reservationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservation children: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reservation child: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListExpired returns active reservations whose expiry is before now.
func (s *ReservationStore) ListExpired(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE status = ? AND expires_at < ? ORDER BY expires_at`,
		model.ReservationActive, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Close ends an active reservation with the given terminal status and returns every
// child still pending under it to the available pool. It reports the released child
// ids and whether the reservation was still active. Closing an already closed
// reservation is a no-op.
func (s *ReservationStore) Close(ctx context.Context, id int64, status model.ReservationStatus, now time.Time) ([]int64, bool, error) {
	if status != model.ReservationExpired && status != model.ReservationCancelled {
		return nil, false, fmt.Errorf("close reservation as %q: %w", status, ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		status, now, id, model.ReservationActive,
	)
	if err != nil {
		return nil, false, fmt.Errorf("close reservation: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM children WHERE reservation_id = ? AND status = ? ORDER BY id`,
		id, model.ChildPending,
	)
	if err != nil {
		return nil, false, fmt.Errorf("list pending children: %w", err)
	}
	var released []int64
	for rows.Next() {
		var childID int64
		if err := rows.Scan(&childID); err != nil {
			rows.Close()
			return nil, false, fmt.Errorf("scan pending child: %w", err)
		}
		released = append(released, childID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE children SET status = ?, reservation_id = NULL, version = version + 1, updated_at = ?
		 WHERE reservation_id = ? AND status = ?`,
		model.ChildAvailable, now, id, model.ChildPending,
	); err != nil {
		return nil, false, fmt.Errorf("release children: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return released, true, nil
}
