package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dentaldesk/internal/config"
	"dentaldesk/internal/models"
)

// UpsertProvider inserts or updates a provider, preserving created_at.
func (db *DB) UpsertProvider(ctx context.Context, p *models.Provider) error {
	if p == nil {
		return fmt.Errorf("provider is nil")
	}

	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO providers (id, name, specialty, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, COALESCE((SELECT created_at FROM providers WHERE id = ?), ?), ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			specialty = excluded.specialty,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Specialty, boolToInt(p.IsActive), p.ID, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert provider %d: %w", p.ID, err)
	}
	return nil
}

// GetProvider returns the provider with id or ErrNotFound.
func (db *DB) GetProvider(ctx context.Context, id int64) (*models.Provider, error) {
	var p models.Provider
	err := db.QueryRowContext(ctx, `
		SELECT id, name, specialty, is_active, created_at, updated_at
		FROM providers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Specialty, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProviders returns providers ordered by name.
func (db *DB) ListProviders(ctx context.Context, activeOnly bool) ([]models.Provider, error) {
	query := `SELECT id, name, specialty, is_active, created_at, updated_at FROM providers`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	providers := make([]models.Provider, 0)
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Specialty, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// DeactivateMissingProviders marks every provider not in keep as inactive.
func (db *DB) DeactivateMissingProviders(ctx context.Context, keep map[int64]struct{}) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM providers WHERE is_active = 1`)
	if err != nil {
		return 0, err
	}

	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now()
	for _, id := range stale {
		if _, err := db.ExecContext(ctx, `UPDATE providers SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return 0, fmt.Errorf("deactivate provider %d: %w", id, err)
		}
	}
	return len(stale), nil
}

// SyncProvidersFromConfig applies providers.yaml to the database.
// Providers are upserted, configured availability is stored only the first time a
// provider is seen, and providers missing from the file are deactivated.
func (db *DB) SyncProvidersFromConfig(ctx context.Context, cfg *config.ProvidersConfig) error {
	if cfg == nil {
		return fmt.Errorf("providers config is nil")
	}

	seen := make(map[int64]struct{}, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p := &models.Provider{
			ID:        pc.ID,
			Name:      pc.Name,
			Specialty: pc.Specialty,
			IsActive:  pc.IsActive,
		}
		if err := db.UpsertProvider(ctx, p); err != nil {
			return err
		}
		seen[pc.ID] = struct{}{}

		if _, err := db.SeedAvailability(ctx, pc.ID, pc.Availability); err != nil {
			return fmt.Errorf("sync provider %d availability: %w", pc.ID, err)
		}
	}

	deactivated, err := db.DeactivateMissingProviders(ctx, seen)
	if err != nil {
		return err
	}

	db.logger.Info().
		Int("providers", len(cfg.Providers)).
		Int("deactivated", deactivated).
		Msg("providers synced from config")
	return nil
}
