package service

import (
	"errors"
	"fmt"

	"dentaldesk/internal/database"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot is not available")
	ErrPastDate            = errors.New("cannot book in the past")
	ErrTooSoon             = errors.New("appointment starts too soon to book")
	ErrDateTooFar          = errors.New("date is too far in the future")

	ErrSlotTaken         = database.ErrSlotTaken
	ErrInvalidTransition = database.ErrInvalidTransition
)

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
