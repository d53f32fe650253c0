package models

import "time"

// Window is a provider's working range for one weekday.
type Window struct {
	Start string `json:"start" yaml:"start"` // "09:00"
	End   string `json:"end" yaml:"end"`     // "17:00"
}

// WeeklyAvailability maps a lowercase weekday name ("monday") to its window.
// Days missing from the map have no availability.
type WeeklyAvailability map[string]Window

// DayAvailability is a stored availability row.
type DayAvailability struct {
	ProviderID int64     `json:"provider_id"`
	DayOfWeek  string    `json:"day_of_week"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Clone returns an independent copy.
func (w WeeklyAvailability) Clone() WeeklyAvailability {
	out := make(WeeklyAvailability, len(w))
	for day, win := range w {
		out[day] = win
	}
	return out
}
