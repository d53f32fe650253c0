package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppointment_Blocks(t *testing.T) {
	tests := []struct {
		name   string
		appt   Appointment
		date   string
		expect bool
	}{
		{"scheduled same date", Appointment{Date: "2024-01-01", Status: StatusScheduled}, "2024-01-01", true},
		{"scheduled other date", Appointment{Date: "2024-01-02", Status: StatusScheduled}, "2024-01-01", false},
		{"canceled", Appointment{Date: "2024-01-01", Status: StatusCanceled}, "2024-01-01", false},
		{"completed", Appointment{Date: "2024-01-01", Status: StatusCompleted}, "2024-01-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.appt.Blocks(tt.date))
		})
	}
}

func TestAppointment_StartsAt(t *testing.T) {
	a := Appointment{Date: "2024-01-01", Time: "10:30"}
	got, ok := a.StartsAt(time.UTC)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), got)

	bad := Appointment{Date: "2024-01-01", Time: "10h30"}
	_, ok = bad.StartsAt(time.UTC)
	assert.False(t, ok)
}

func TestIsValidStatus(t *testing.T) {
	assert.True(t, IsValidStatus(StatusScheduled))
	assert.True(t, IsValidStatus(StatusCanceled))
	assert.True(t, IsValidStatus(StatusCompleted))
	assert.False(t, IsValidStatus("cancelled"))
	assert.False(t, IsValidStatus(""))
}

func TestWeeklyAvailability_Clone(t *testing.T) {
	orig := WeeklyAvailability{"monday": {Start: "09:00", End: "11:00"}}
	cp := orig.Clone()
	cp["tuesday"] = Window{Start: "10:00", End: "12:00"}

	assert.Len(t, orig, 1)
	assert.Len(t, cp, 2)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{StatusScheduled, StatusCanceled, true},
		{StatusScheduled, StatusCompleted, true},
		{StatusScheduled, StatusScheduled, false},
		{StatusCanceled, StatusScheduled, false},
		{StatusCanceled, StatusCompleted, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusScheduled, "archived", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}
