package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/giftlink/internal/model"
)

type MagicLinkStore struct {
	db *sql.DB
}

func NewMagicLinkStore(db *sql.DB) *MagicLinkStore {
	return &MagicLinkStore{db: db}
}

func scanMagicLink(scanner interface{ Scan(...any) error }) (*model.MagicLink, error) {
	var ml model.MagicLink
	var consumedAt sql.NullTime

	err := scanner.Scan(
		&ml.ID, &ml.TokenHash, &ml.Email, &ml.ExpiresAt, &ml.IP, &ml.UserAgent,
		&consumedAt, &ml.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ml.ExpiresAt = ml.ExpiresAt.UTC()
	ml.ConsumedAt = nullTime(consumedAt)
	return &ml, nil
}

const magicLinkCols = `id, token_hash, email, expires_at, ip, user_agent, consumed_at, created_at`

// NewMagicLink is a link to persist. TokenHash must already be hashed.
type NewMagicLink struct {
	TokenHash string
	Email     string
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Create stores a new magic link. Any previous unconsumed links for the same email
// are invalidated first.
func (s *MagicLinkStore) Create(ctx context.Context, p NewMagicLink) (*model.MagicLink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE magic_links SET consumed_at = ? WHERE email = ? AND consumed_at IS NULL`,
		p.CreatedAt, p.Email,
	); err != nil {
		return nil, fmt.Errorf("invalidate previous links: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO magic_links (token_hash, email, expires_at, ip, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.TokenHash, p.Email, p.ExpiresAt, p.IP, p.UserAgent, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert magic link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+magicLinkCols+` FROM magic_links WHERE id = ?`, id)
	return scanMagicLink(row)
}

// GetByHash returns the link with the given token hash regardless of its state, or
// nil if none exists.
func (s *MagicLinkStore) GetByHash(ctx context.Context, tokenHash string) (*model.MagicLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+magicLinkCols+` FROM magic_links WHERE token_hash = ?`, tokenHash)
	ml, err := scanMagicLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get magic link by hash: %w", err)
	}
	return ml, nil
}

// Consume marks the link consumed if it has not been already. It reports whether
// this call was the one that consumed it.
func (s *MagicLinkStore) Consume(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE magic_links SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		now, id,
	)
	if err != nil {
		return false, fmt.Errorf("consume magic link: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpired removes links that expired at or before now.
func (s *MagicLinkStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM magic_links WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired magic links: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
