package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// Insert adds a new user. Returns ErrDuplicateKey if address exists.
func (s *UserStore) Insert(ctx context.Context, u *domain.User) error {
	if u == nil || u.Address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO users (address, last_scanned_at, last_manual_refresh_at, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`

	var createdAt interface{}
	if !u.CreatedAt.IsZero() {
		createdAt = u.CreatedAt
	}

	_, err := s.pool.Exec(ctx, query, u.Address, u.LastScannedAt, u.LastManualRefreshAt, createdAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by address. Returns ErrNotFound if not exists.
func (s *UserStore) Get(ctx context.Context, address string) (*domain.User, error) {
	query := `
		SELECT address, last_scanned_at, last_manual_refresh_at, created_at
		FROM users
		WHERE address = $1
	`

	u, err := scanUser(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List retrieves all tracked users ordered by address.
func (s *UserStore) List(ctx context.Context) ([]*domain.User, error) {
	query := `
		SELECT address, last_scanned_at, last_manual_refresh_at, created_at
		FROM users
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	return users, nil
}

// AdvanceLastScannedAt moves the user's watermark forward. The update is
// conditional on the new timestamp being later, so a concurrent slower
// writer cannot regress the watermark.
func (s *UserStore) AdvanceLastScannedAt(ctx context.Context, address string, t time.Time) error {
	query := `
		UPDATE users
		SET last_scanned_at = $2
		WHERE address = $1
		  AND (last_scanned_at IS NULL OR last_scanned_at < $2)
	`

	if _, err := s.pool.Exec(ctx, query, address, t); err != nil {
		return fmt.Errorf("advance last_scanned_at: %w", err)
	}
	return nil
}

// SetLastManualRefreshAt records a user-triggered rescan.
func (s *UserStore) SetLastManualRefreshAt(ctx context.Context, address string, t time.Time) error {
	query := `UPDATE users SET last_manual_refresh_at = $2 WHERE address = $1`

	if _, err := s.pool.Exec(ctx, query, address, t); err != nil {
		return fmt.Errorf("set last_manual_refresh_at: %w", err)
	}
	return nil
}

// Delete removes a user. Returns ErrNotFound if not exists.
func (s *UserStore) Delete(ctx context.Context, address string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE address = $1`, address)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.Address, &u.LastScannedAt, &u.LastManualRefreshAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
