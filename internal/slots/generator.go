// Package slots computes bookable appointment start times from a provider's
// weekly availability and the appointments already on the calendar.
package slots

import (
	"fmt"
	"strings"
	"time"

	"dentaldesk/internal/models"
)

// DefaultSlotDuration is used when a non-positive duration is supplied.
const DefaultSlotDuration = 30

// Generate returns the ascending "HH:MM" start times that can still be booked on date.
//
// Only scheduled appointments dated on date block a slot, and only when their time
// matches a generated candidate exactly. A slot is emitted only if it ends at or
// before the window end. Generate performs no I/O and never fails: a day whose
// window does not parse yields no slots, so callers validate availability with
// ValidateAvailability before storing it.
func Generate(date time.Time, availability models.WeeklyAvailability, booked []models.Appointment, slotDurationMinutes int) []string {
	result := make([]string, 0)

	window, ok := availability[WeekdayName(date)]
	if !ok {
		return result
	}

	if slotDurationMinutes <= 0 {
		slotDurationMinutes = DefaultSlotDuration
	}

	startMin, err := ParseClock(window.Start)
	if err != nil {
		return result
	}
	endMin, err := ParseClock(window.End)
	if err != nil {
		return result
	}

	// Wall-clock values: anchor on UTC so a DST switch cannot shift labels.
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	windowStart := day.Add(time.Duration(startMin) * time.Minute)
	windowEnd := day.Add(time.Duration(endMin) * time.Minute)
	step := time.Duration(slotDurationMinutes) * time.Minute

	taken := bookedTimes(day.Format(models.DateLayout), booked)

	for cursor := windowStart; !cursor.Add(step).After(windowEnd); cursor = cursor.Add(step) {
		label := cursor.Format(models.ClockLayout)
		if _, ok := taken[label]; ok {
			continue
		}
		result = append(result, label)
	}

	return result
}

func bookedTimes(date string, booked []models.Appointment) map[string]struct{} {
	taken := make(map[string]struct{}, len(booked))
	for i := range booked {
		if booked[i].Blocks(date) {
			taken[booked[i].Time] = struct{}{}
		}
	}
	return taken
}

// Contains reports whether label is one of slots.
func Contains(slots []string, label string) bool {
	for _, s := range slots {
		if s == label {
			return true
		}
	}
	return false
}

// WeekdayName returns the lowercase English weekday of t, e.g. "monday".
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// IsWeekday reports whether day is a lowercase English weekday name.
func IsWeekday(day string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == day {
			return true
		}
	}
	return false
}

// ParseClock parses a zero-padded 24-hour "HH:MM" and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid time format %q; expected HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("invalid time format %q; expected HH:MM", s)
		}
	}

	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	if minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// ValidateWindow checks that both ends parse and start is before end.
func ValidateWindow(w models.Window) error {
	start, err := ParseClock(w.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return fmt.Errorf("start %s must be before end %s", w.Start, w.End)
	}
	return nil
}

// ValidateAvailability checks every day name and window.
func ValidateAvailability(a models.WeeklyAvailability) error {
	for day, w := range a {
		if !IsWeekday(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		if err := ValidateWindow(w); err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
	}
	return nil
}
