package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var reservationID sql.NullInt64

	err := scanner.Scan(
		&c.ID, &c.FamilyID, &c.DisplayCode, &c.Age, &c.Gender, &c.Wishes,
		&c.Status, &reservationID, &c.Version, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if reservationID.Valid {
		c.ReservationID = &reservationID.Int64
	}
	return &c, nil
}

const childCols = `id, family_id, display_code, age, gender, wishes, status, reservation_id, version, updated_at`

// NewChild describes a child to be created with its family.
type NewChild struct {
	DisplayCode string `json:"display_code" validate:"required,max=20"`
	Age         int    `json:"age" validate:"min=0,max=25"`
	Gender      string `json:"gender" validate:"max=20"`
	Wishes      string `json:"wishes" validate:"max=2000"`
}

// CreateFamily inserts a family and its children in a single transaction.
// Children start out available.
func (s *ChildStore) CreateFamily(ctx context.Context, displayNumber, notes string, children []NewChild) (*model.Family, []model.Child, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO families (display_number, notes, created_at) VALUES (?, ?, ?)`,
		displayNumber, notes, now,
	)
	if isUniqueViolation(err) {
		return nil, nil, fmt.Errorf("family %q: %w", displayNumber, ErrDuplicate)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("insert family: %w", err)
	}
	familyID, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, c := range children {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO children (family_id, display_code, age, gender, wishes, status, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			familyID, c.DisplayCode, c.Age, c.Gender, c.Wishes, model.ChildAvailable, now,
		); isUniqueViolation(err) {
			return nil, nil, fmt.Errorf("child %q: %w", c.DisplayCode, ErrDuplicate)
		} else if err != nil {
			return nil, nil, fmt.Errorf("insert child %q: %w", c.DisplayCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit: %w", err)
	}

	family := &model.Family{ID: familyID, DisplayNumber: displayNumber, Notes: notes, CreatedAt: now}
	created, err := s.ListByFamily(ctx, familyID)
	if err != nil {
		return nil, nil, err
	}
	return family, created, nil
}

func (s *ChildStore) GetByID(ctx context.Context, id int64) (*model.Child, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	return c, nil
}

// GetByIDs returns the children that exist among ids, keyed by id.
func (s *ChildStore) GetByIDs(ctx context.Context, ids []int64) (map[int64]model.Child, error) {
	out := make(map[int64]model.Child, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+childCols+` FROM children WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out[c.ID] = *c
	}
	return out, rows.Err()
}

func (s *ChildStore) ListByFamily(ctx context.Context, familyID int64) ([]model.Child, error) {
	return s.list(ctx, `SELECT `+childCols+` FROM children WHERE family_id = ? ORDER BY display_code`, familyID)
}

func (s *ChildStore) list(ctx context.Context, query string, args ...any) ([]model.Child, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}
