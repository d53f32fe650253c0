package models

import "time"

const (
	StatusScheduled = "scheduled"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

// DateLayout and ClockLayout are the wire formats of Appointment.Date and Appointment.Time.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Appointment is a booking of one slot with a provider.
type Appointment struct {
	ID           string    `json:"id"`
	ProviderID   int64     `json:"provider_id"`
	Date         string    `json:"date"` // YYYY-MM-DD
	Time         string    `json:"time"` // HH:MM
	Status       string    `json:"status"`
	PatientName  string    `json:"patient_name,omitempty"`
	PatientPhone string    `json:"patient_phone,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Blocks reports whether the appointment occupies its slot on date (YYYY-MM-DD).
func (a *Appointment) Blocks(date string) bool {
	return a.Status == StatusScheduled && a.Date == date
}

// StartsAt returns the appointment start in loc, or false if Date/Time do not parse.
func (a *Appointment) StartsAt(loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout+" "+ClockLayout, a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsValidStatus reports whether s is a known appointment status.
func IsValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

// AppointmentFilter narrows appointment listings. Zero fields are ignored.
type AppointmentFilter struct {
	ProviderID int64
	Date       string // exact YYYY-MM-DD
	From       string // inclusive YYYY-MM-DD
	To         string // inclusive YYYY-MM-DD
	Status     string
	Limit      int
}

// CanTransition reports whether an appointment may move from status from to status to.
// Only scheduled appointments change state.
func CanTransition(from, to string) bool {
	return from == StatusScheduled && (to == StatusCanceled || to == StatusCompleted)
}
