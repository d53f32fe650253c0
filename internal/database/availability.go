package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dentaldesk/internal/models"

	"github.com/mattn/go-sqlite3"
)

// ListAvailability returns the stored availability rows of a provider.
func (db *DB) ListAvailability(ctx context.Context, providerID int64) ([]models.DayAvailability, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT provider_id, day_of_week, start_time, end_time, updated_at
		FROM provider_availability
		WHERE provider_id = ?
		ORDER BY day_of_week`,
		providerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []models.DayAvailability
	for rows.Next() {
		var d models.DayAvailability
		if err := rows.Scan(&d.ProviderID, &d.DayOfWeek, &d.Start, &d.End, &d.UpdatedAt); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// GetWeeklyAvailability returns the provider's windows keyed by weekday.
// A provider without rows gets an empty, non-nil map.
func (db *DB) GetWeeklyAvailability(ctx context.Context, providerID int64) (models.WeeklyAvailability, error) {
	days, err := db.ListAvailability(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get availability for provider %d: %w", providerID, err)
	}

	weekly := make(models.WeeklyAvailability, len(days))
	for _, d := range days {
		weekly[d.DayOfWeek] = models.Window{Start: d.Start, End: d.End}
	}
	return weekly, nil
}

// SetAvailability stores the window for one weekday, replacing any previous one.
func (db *DB) SetAvailability(ctx context.Context, providerID int64, day, start, end string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO provider_availability (provider_id, day_of_week, start_time, end_time, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, day_of_week) DO UPDATE SET
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		providerID, day, start, end, time.Now(),
	)
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return ErrNotFound
	}
	return err
}

// ClearAvailability removes the window for one weekday. Clearing a day
// without a window is not an error.
func (db *DB) ClearAvailability(ctx context.Context, providerID int64, day string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM provider_availability WHERE provider_id = ? AND day_of_week = ?`,
		providerID, day,
	)
	return err
}

// SeedAvailability stores the configured windows of a provider the first time it
// is called for that provider and returns how many days were added. Later calls
// are no-ops, so days edited or cleared through the store are never restored.
// An empty weekly leaves the provider unseeded.
func (db *DB) SeedAvailability(ctx context.Context, providerID int64, weekly models.WeeklyAvailability) (int, error) {
	if len(weekly) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() //nolint:errcheck

	var seededAt sql.NullTime
	err = tx.QueryRowContext(ctx, `SELECT availability_seeded_at FROM providers WHERE id = ?`, providerID).Scan(&seededAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read seed state of provider %d: %w", providerID, err)
	}
	if seededAt.Valid {
		return 0, nil
	}

	added := 0
	now := time.Now()
	for day, w := range weekly {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO provider_availability (provider_id, day_of_week, start_time, end_time, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(provider_id, day_of_week) DO NOTHING`,
			providerID, day, w.Start, w.End, now,
		)
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", day, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE providers SET availability_seeded_at = ? WHERE id = ?`, now, providerID); err != nil {
		return 0, fmt.Errorf("mark provider %d seeded: %w", providerID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}
