package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dentaldesk/internal/models"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

const appointmentColumns = `id, provider_id, date, time, status, patient_name, patient_phone, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	if err := row.Scan(
		&a.ID, &a.ProviderID, &a.Date, &a.Time, &a.Status,
		&a.PatientName, &a.PatientPhone, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointments returns appointments matching filter ordered by date and time.
func (db *DB) ListAppointments(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProviderID != 0 {
		where = append(where, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.Date != "" {
		where = append(where, "date = ?")
		args = append(args, filter.Date)
	}
	if filter.From != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		where = append(where, "date <= ?")
		args = append(args, filter.To)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + appointmentColumns + " FROM appointments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, time, created_at"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appointments := make([]models.Appointment, 0)
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *a)
	}
	return appointments, rows.Err()
}

// GetAppointment returns the appointment with id or ErrNotFound.
func (db *DB) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx, "SELECT "+appointmentColumns+" FROM appointments WHERE id = ?", id)
	a, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// CreateAppointment inserts a scheduled appointment. It fills ID, Status and
// timestamps when empty. A second scheduled appointment for the same provider,
// date and time fails with ErrSlotTaken.
func (db *DB) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	if a == nil {
		return fmt.Errorf("appointment is nil")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.StatusScheduled
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := db.ExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProviderID, a.Date, a.Time, a.Status,
		a.PatientName, a.PatientPhone, a.Notes, a.CreatedAt, a.UpdatedAt,
	)
	switch {
	case isConstraint(err, sqlite3.ErrConstraintUnique):
		return ErrSlotTaken
	case isConstraint(err, sqlite3.ErrConstraintForeignKey):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("create appointment: %w", err)
	}

	db.logger.Debug().
		Str("appointment_id", a.ID).
		Int64("provider_id", a.ProviderID).
		Str("date", a.Date).
		Str("time", a.Time).
		Msg("appointment created")
	return nil
}

// UpdateAppointmentStatus moves an appointment from one status to another.
// The update only applies while the stored status still equals from, so
// concurrent transitions cannot both succeed.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id, from, to string) error {
	if !models.CanTransition(from, to) {
		return ErrInvalidTransition
	}

	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, time.Now(), id, from,
	)
	if isConstraint(err, sqlite3.ErrConstraintUnique) {
		return ErrSlotTaken
	}
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	if _, err := db.GetAppointment(ctx, id); err != nil {
		return err
	}
	return ErrInvalidTransition
}

// CompleteAppointmentsBefore marks scheduled appointments starting before
// date/clock as completed and returns the affected appointments.
func (db *DB) CompleteAppointmentsBefore(ctx context.Context, date, clock string) ([]models.Appointment, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE status = ? AND (date < ? OR (date = ? AND time < ?))
		ORDER BY date, time`,
		models.StatusScheduled, date, date, clock,
	)
	if err != nil {
		return nil, err
	}

	var due []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		due = append(due, *a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range due {
		if _, err := tx.ExecContext(ctx,
			`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.StatusCompleted, now, due[i].ID, models.StatusScheduled,
		); err != nil {
			return nil, fmt.Errorf("complete appointment %s: %w", due[i].ID, err)
		}
		due[i].Status = models.StatusCompleted
		due[i].UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return due, nil
}
