package service

import (
	"context"
	"errors"
	"strings"

	"dentaldesk/internal/database"
	"dentaldesk/internal/events"
	"dentaldesk/internal/models"
	"dentaldesk/internal/slots"
)

// Availability returns the weekly windows of a provider.
func (s *BookingService) Availability(ctx context.Context, providerID int64) (models.WeeklyAvailability, error) {
	if _, err := s.provider(ctx, providerID); err != nil {
		return nil, err
	}
	return s.store.GetWeeklyAvailability(ctx, providerID)
}

// SetAvailability replaces the window of one weekday.
func (s *BookingService) SetAvailability(ctx context.Context, providerID int64, day string, window models.Window) error {
	day, err := normalizeDay(day)
	if err != nil {
		return err
	}
	if err := slots.ValidateWindow(window); err != nil {
		return invalid("window", "%v", err)
	}
	if _, err := s.provider(ctx, providerID); err != nil {
		return err
	}

	if err := s.store.SetAvailability(ctx, providerID, day, window.Start, window.End); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrProviderNotFound
		}
		return err
	}

	s.availabilityChanged(ctx, providerID, day)
	return nil
}

// ClearAvailability removes the window of one weekday.
func (s *BookingService) ClearAvailability(ctx context.Context, providerID int64, day string) error {
	day, err := normalizeDay(day)
	if err != nil {
		return err
	}
	if _, err := s.provider(ctx, providerID); err != nil {
		return err
	}

	if err := s.store.ClearAvailability(ctx, providerID, day); err != nil {
		return err
	}

	s.availabilityChanged(ctx, providerID, day)
	return nil
}

func (s *BookingService) availabilityChanged(ctx context.Context, providerID int64, day string) {
	s.cache.InvalidateProvider(ctx, providerID)
	s.publish(ctx, events.AvailabilityUpdated, events.AvailabilityChange{ProviderID: providerID, Day: day})
	s.logger.Info().Int64("provider_id", providerID).Str("day", day).Msg("availability updated")
}

func normalizeDay(day string) (string, error) {
	day = strings.ToLower(strings.TrimSpace(day))
	if !slots.IsWeekday(day) {
		return "", invalid("day", "unknown weekday %q", day)
	}
	return day, nil
}
