package fleet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleet-monitor-backend/internal/db"
)

// DBStore serves the listing and override records from postgres. The
// latest fleet_listing row is the root listing.
type DBStore struct {
	db *db.DB
}

func NewDBStore(database *db.DB) *DBStore {
	return &DBStore{db: database}
}

func (ds *DBStore) ReadRoot(ctx context.Context) ([]byte, error) {
	query := `
		SELECT payload
		FROM fleet_listing
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var payload []byte
	err := ds.db.QueryRowContext(ctx, query).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet listing: %w", err)
	}
	return payload, nil
}

func (ds *DBStore) ReadOverride(ctx context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	query := `SELECT payload FROM entity_overrides WHERE entity_id = $1`
	var payload []byte
	err := ds.db.QueryRowContext(ctx, query, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read override %s: %w", id, err)
	}
	return payload, nil
}

func (ds *DBStore) WriteOverride(ctx context.Context, id string, payload []byte) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	query := `
		INSERT INTO entity_overrides (entity_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (entity_id)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`
	if _, err := ds.db.ExecContext(ctx, query, id, payload); err != nil {
		return fmt.Errorf("failed to save override %s: %w", id, err)
	}
	return nil
}
