package postgres

import (
	"context"
	"fmt"
	"time"

	"degen-rank/internal/domain"
	"degen-rank/internal/storage"
)

// StatusStore implements storage.StatusStore using PostgreSQL. The
// system_status table holds a single row with id = 1, seeded by the
// migrations.
type StatusStore struct {
	pool *Pool
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(pool *Pool) *StatusStore {
	return &StatusStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StatusStore = (*StatusStore)(nil)

// Get retrieves the system status.
func (s *StatusStore) Get(ctx context.Context) (*domain.SystemStatus, error) {
	var status domain.SystemStatus

	err := s.pool.QueryRow(ctx, `SELECT last_global_update_at FROM system_status WHERE id = 1`).
		Scan(&status.LastGlobalUpdateAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get system status: %w", err)
	}

	return &status, nil
}

// AdvanceLastGlobalUpdate moves the global watermark forward. The write
// is a conditional compare-and-swap on the timestamp, never a blind
// overwrite, so concurrent batch runs cannot regress it.
func (s *StatusStore) AdvanceLastGlobalUpdate(ctx context.Context, t time.Time) error {
	query := `
		UPDATE system_status
		SET last_global_update_at = $1
		WHERE id = 1
		  AND (last_global_update_at IS NULL OR last_global_update_at < $1)
	`

	if _, err := s.pool.Exec(ctx, query, t); err != nil {
		return fmt.Errorf("advance last_global_update_at: %w", err)
	}
	return nil
}
