package export

import (
	"context"
	"fmt"
	"time"

	"dentaldesk/internal/models"
)

const AppointmentsSheet = "Appointments"

var appointmentColumns = []string{"ID", "Date", "Time", "Status", "Patient", "Phone", "Notes", "Created"}

// Appointments writes one sheet listing appointments in the given order.
func Appointments(w Writer, appointments []models.Appointment) error {
	if err := w.AddSheet(AppointmentsSheet); err != nil {
		return err
	}
	if err := w.WriteHeader(appointmentColumns); err != nil {
		return err
	}

	for i := range appointments {
		a := &appointments[i]
		if err := w.WriteRow([]any{
			a.ID,
			a.Date,
			a.Time,
			a.Status,
			a.PatientName,
			a.PatientPhone,
			a.Notes,
			a.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			return fmt.Errorf("appointment %s: %w", a.ID, err)
		}
	}
	return nil
}

// AppointmentsFilename names an export for a provider and date range.
func AppointmentsFilename(provider models.Provider, from, to string) string {
	return fmt.Sprintf("appointments_%d_%s_%s.xlsx", provider.ID, from, to)
}

// TableSource exposes whole tables for audit exports.
type TableSource interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, table string) ([]map[string]any, []string, error)
}

// Tables writes one sheet per table of src.
func Tables(ctx context.Context, src TableSource, w Writer) error {
	names, err := src.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}

	for _, name := range names {
		rows, columns, err := src.GetTableData(ctx, name)
		if err != nil {
			return fmt.Errorf("read table %s: %w", name, err)
		}
		if err := w.AddSheet(name); err != nil {
			return err
		}
		if err := w.WriteHeader(columns); err != nil {
			return err
		}
		for _, r := range rows {
			values := make([]any, len(columns))
			for i, col := range columns {
				values[i] = cellValue(r[col])
			}
			if err := w.WriteRow(values); err != nil {
				return fmt.Errorf("table %s: %w", name, err)
			}
		}
	}
	return nil
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return t
	}
}
