package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

type SponsorshipStore struct {
	db *sql.DB
}

func NewSponsorshipStore(db *sql.DB) *SponsorshipStore {
	return &SponsorshipStore{db: db}
}

func scanSponsorship(scanner interface{ Scan(...any) error }) (*model.Sponsorship, error) {
	var sp model.Sponsorship
	var reservationID sql.NullInt64
	var confirmedAt, loggedAt, completedAt, cancelledAt sql.NullTime
	var reason sql.NullString

	err := scanner.Scan(
		&sp.ID, &sp.ChildID, &reservationID,
		&sp.Sponsor.Name, &sp.Sponsor.Email, &sp.Sponsor.Phone, &sp.Sponsor.Address,
		&sp.GiftPreference, &sp.Message, &sp.Status, &sp.RequestedAt,
		&confirmedAt, &loggedAt, &completedAt, &cancelledAt, &reason,
	)
	if err != nil {
		return nil, err
	}

	if reservationID.Valid {
		sp.ReservationID = &reservationID.Int64
	}
	sp.RequestedAt = sp.RequestedAt.UTC()
	sp.ConfirmedAt = nullTime(confirmedAt)
	sp.LoggedAt = nullTime(loggedAt)
	sp.CompletedAt = nullTime(completedAt)
	sp.CancelledAt = nullTime(cancelledAt)
	if reason.Valid {
		sp.CancellationReason = &reason.String
	}
	return &sp, nil
}

const sponsorshipCols = `id, child_id, reservation_id, sponsor_name, sponsor_email, sponsor_phone, sponsor_address,
	gift_preference, message, status, requested_at, confirmed_at, logged_at, completed_at, cancelled_at, cancellation_reason`

// Request is the sponsor-supplied part of a sponsorship.
type Request struct {
	Sponsor        model.Sponsor
	GiftPreference model.GiftPreference
	Message        string
}

func insertSponsorship(ctx context.Context, q execer, childID int64, reservationID *int64, req Request, status model.SponsorshipStatus, now time.Time) (int64, error) {
	var rID sql.NullInt64
	if reservationID != nil {
		rID = sql.NullInt64{Int64: *reservationID, Valid: true}
	}
	var confirmedAt sql.NullTime
	if status == model.SponsorshipConfirmed {
		confirmedAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO sponsorships (child_id, reservation_id, sponsor_name, sponsor_email, sponsor_phone, sponsor_address,
		 gift_preference, message, status, requested_at, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		childID, rID, req.Sponsor.Name, req.Sponsor.Email, req.Sponsor.Phone, req.Sponsor.Address,
		req.GiftPreference, req.Message, status, now, confirmedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert sponsorship: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// CreateForChild claims an available child and records a sponsorship for it in the
// given status. It returns ErrConflict if the child is no longer available.
func (s *SponsorshipStore) CreateForChild(ctx context.Context, childID int64, req Request, status model.SponsorshipStatus, now time.Time) (*model.Sponsorship, error) {
	if status != model.SponsorshipPending && status != model.SponsorshipConfirmed {
		return nil, fmt.Errorf("create sponsorship as %q: %w", status, ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ok, err := swapChildStatus(ctx, tx, childID, model.ChildAvailable, status.ChildStatus(), nil, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	id, err := insertSponsorship(ctx, tx, childID, nil, req, status, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// CreateFromReservation converts an active, unexpired reservation into one confirmed
// sponsorship per reserved child. Returns ErrNotFound if the reservation is not active
// or has expired at now, and ErrConflict if any child is no longer held by it.
func (s *SponsorshipStore) CreateFromReservation(ctx context.Context, reservationID int64, req Request, now time.Time) ([]model.Sponsorship, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id = ?`, reservationID)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if r.Status != model.ReservationActive || r.ExpiredAt(now) {
		return nil, ErrNotFound
	}

	childIDs, err := reservationChildIDs(ctx, tx, reservationID)
	if err != nil {
		return nil, err
	}

	// The reservation snapshot is authoritative for contact details.
	req.Sponsor = r.Sponsor

	ids := make([]int64, 0, len(childIDs))
	for _, childID := range childIDs {
		result, err := tx.ExecContext(ctx,
			`UPDATE children SET status = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND status = ? AND reservation_id = ?`,
			model.ChildConfirmed, now, childID, model.ChildPending, reservationID,
		)
		if err != nil {
			return nil, fmt.Errorf("confirm child: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n != 1 {
			return nil, ErrConflict
		}

		id, err := insertSponsorship(ctx, tx, childID, &reservationID, req, model.SponsorshipConfirmed, now)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		model.ReservationConfirmed, now, reservationID, model.ReservationActive,
	)
	if err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n != 1 {
		return nil, ErrConflict
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	out := make([]model.Sponsorship, 0, len(ids))
	for _, id := range ids {
		sp, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, nil
}

// Transition moves a sponsorship to status `to` and mirrors the change on its child.
// If from is non-empty the sponsorship must currently be in that status. Cancelling
// releases the child back to available. Returns ErrNotFound for an unknown id,
// ErrInvalidTransition if the move is not allowed from the current status, and
// ErrConflict if the status changed underneath.
func (s *SponsorshipStore) Transition(ctx context.Context, id int64, from, to model.SponsorshipStatus, reason string, now time.Time) (*model.Sponsorship, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+sponsorshipCols+` FROM sponsorships WHERE id = ?`, id)
	current, err := scanSponsorship(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sponsorship: %w", err)
	}
	if (from != "" && current.Status != from) || !current.Status.CanTransition(to) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, to, ErrInvalidTransition)
	}

	var query string
	args := []any{to}
	switch {
	case to == model.SponsorshipConfirmed && current.Status == model.SponsorshipLogged:
		query = `UPDATE sponsorships SET status = ?, logged_at = NULL WHERE id = ? AND status = ?`
	case to == model.SponsorshipConfirmed:
		query = `UPDATE sponsorships SET status = ?, confirmed_at = ? WHERE id = ? AND status = ?`
		args = append(args, now)
	case to == model.SponsorshipLogged:
		query = `UPDATE sponsorships SET status = ?, logged_at = ? WHERE id = ? AND status = ?`
		args = append(args, now)
	case to == model.SponsorshipCompleted:
		query = `UPDATE sponsorships SET status = ?, completed_at = ? WHERE id = ? AND status = ?`
		args = append(args, now)
	case to == model.SponsorshipCancelled:
		var r sql.NullString
		if reason != "" {
			r = sql.NullString{String: reason, Valid: true}
		}
		query = `UPDATE sponsorships SET status = ?, cancelled_at = ?, cancellation_reason = ? WHERE id = ? AND status = ?`
		args = append(args, now, r)
	default:
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, to, ErrInvalidTransition)
	}
	args = append(args, id, current.Status)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update sponsorship: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n != 1 {
		return nil, ErrConflict
	}

	childStatus := to.ChildStatus()
	if childStatus == model.ChildAvailable {
		_, err = tx.ExecContext(ctx,
			`UPDATE children SET status = ?, reservation_id = NULL, version = version + 1, updated_at = ? WHERE id = ?`,
			childStatus, now, current.ChildID,
		)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE children SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
			childStatus, now, current.ChildID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("update child status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SponsorshipStore) GetByID(ctx context.Context, id int64) (*model.Sponsorship, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sponsorshipCols+` FROM sponsorships WHERE id = ?`, id)
	sp, err := scanSponsorship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sponsorship: %w", err)
	}
	return sp, nil
}

// ActiveForChild returns the non-cancelled sponsorship for a child, if any.
func (s *SponsorshipStore) ActiveForChild(ctx context.Context, childID int64) (*model.Sponsorship, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sponsorshipCols+` FROM sponsorships WHERE child_id = ? AND status <> ?`,
		childID, model.SponsorshipCancelled,
	)
	sp, err := scanSponsorship(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active sponsorship: %w", err)
	}
	return sp, nil
}

// EmailRegistered reports whether email belongs to a sponsor with at least one
// non-cancelled sponsorship. Matching is case-insensitive.
func (s *SponsorshipStore) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sponsorships WHERE sponsor_email = ? AND status <> ?)`,
		email, model.SponsorshipCancelled,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check sponsor email: %w", err)
	}
	return exists, nil
}

func (s *SponsorshipStore) ListByEmail(ctx context.Context, email string) ([]model.Sponsorship, error) {
	return s.list(ctx,
		`SELECT `+sponsorshipCols+` FROM sponsorships WHERE sponsor_email = ? ORDER BY requested_at, id`,
		email,
	)
}

// List returns sponsorships, optionally filtered by status.
func (s *SponsorshipStore) List(ctx context.Context, status model.SponsorshipStatus) ([]model.Sponsorship, error) {
	if status == "" {
		return s.list(ctx, `SELECT `+sponsorshipCols+` FROM sponsorships ORDER BY requested_at, id`)
	}
	return s.list(ctx,
		`SELECT `+sponsorshipCols+` FROM sponsorships WHERE status = ? ORDER BY requested_at, id`,
		status,
	)
}

func (s *SponsorshipStore) list(ctx context.Context, query string, args ...any) ([]model.Sponsorship, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sponsorships: %w", err)
	}
	defer rows.Close()

	var out []model.Sponsorship
	for rows.Next() {
		sp, err := scanSponsorship(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sponsorship: %w", err)
		}
		out = append(out, *sp)
	}
	return out, rows.Err()
}
