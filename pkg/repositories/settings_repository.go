package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/database"
)

// SettingsRepository defines the interface for engine settings access.
// Settings are a generic key/value store for small durable state, such as
// the persisted default generation model.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// settingsRepository implements SettingsRepository using PostgreSQL.
type settingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *database.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// Get retrieves a setting value by key.
func (r *settingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM forge_settings WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}

	return value, nil
}

// Set upserts a setting value.
func (r *settingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO forge_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}

	return nil
}
