package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"dentaldesk/internal/export"
	"dentaldesk/internal/models"
)

// ExportAppointments writes a provider's appointments between from and to
// (inclusive, YYYY-MM-DD) as an xlsx workbook and returns a file name for it.
func (s *BookingService) ExportAppointments(ctx context.Context, providerID int64, from, to string, w io.Writer) (string, error) {
	if _, err := time.Parse(models.DateLayout, from); err != nil {
		return "", invalid("from", "expected YYYY-MM-DD, got %q", from)
	}
	if _, err := time.Parse(models.DateLayout, to); err != nil {
		return "", invalid("to", "expected YYYY-MM-DD, got %q", to)
	}
	if from > to {
		return "", invalid("to", "must not be before from")
	}

	p, err := s.provider(ctx, providerID)
	if err != nil {
		return "", err
	}

	appts, err := s.store.ListAppointments(ctx, models.AppointmentFilter{ProviderID: providerID, From: from, To: to})
	if err != nil {
		return "", err
	}

	xw := export.NewExcelWriter()
	defer xw.Close()

	if err := export.Appointments(xw, appts); err != nil {
		return "", fmt.Errorf("render appointments: %w", err)
	}
	if err := xw.Save(w); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	return export.AppointmentsFilename(*p, from, to), nil
}

// ExportAudit writes every audited table as an xlsx workbook and returns a file name for it.
func (s *BookingService) ExportAudit(ctx context.Context, w io.Writer) (string, error) {
	xw := export.NewExcelWriter()
	defer xw.Close()

	if err := export.Tables(ctx, s.store, xw); err != nil {
		return "", err
	}
	if err := xw.Save(w); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	return fmt.Sprintf("audit_%s.xlsx", s.now().In(s.opts.Location).Format("20060102_150405")), nil
}
