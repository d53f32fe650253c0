package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DENTALDESK_TEST_KEY", "secret")

	path := writeFile(t, dir, "config.yaml", `
server:
  api_key: ${DENTALDESK_TEST_KEY}
database:
  path: `+filepath.Join(dir, "db", "app.db")+`
booking:
  timezone: UTC
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Booking.SlotDurationMinutes)
	assert.Equal(t, 24, cfg.Jobs.CompleteAfterHours)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 90*24*time.Hour, cfg.BookingMaxAdvance())
	assert.Equal(t, time.Duration(0), cfg.BookingMinAdvance())
	assert.Equal(t, 30*time.Second, cfg.ProvidersWatchInterval())
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.Server.TrustProxyHeaders)

	_, err = os.Stat(filepath.Join(dir, "db"))
	assert.NoError(t, err, "database directory should be created")
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		errText string
	}{
		{
			name:    "bad timezone",
			content: "booking:\n  timezone: Mars/Olympus\n",
			errText: "booking.timezone",
		},
		{
			name:    "negative advance",
			content: "booking:\n  min_advance_minutes: -5\n",
			errText: "min_advance_minutes",
		},
		{
			name:    "backup without schedule",
			content: "backup:\n  enabled: true\n",
			errText: "backup.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "bad.yaml", tt.content+"database:\n  path: "+filepath.Join(dir, "x.db")+"\n")
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestLoadProvidersConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "providers.yaml", `
providers:
  - id: 1
    name: Dr. Rivera
    specialty: orthodontics
    is_active: true
    availability:
      monday: {start: "09:00", end: "11:00"}
  - id: 2
    name: Dr. Chen
    is_active: false
defaults:
  availability:
    tuesday: {start: "10:00", end: "16:00"}
`)

	cfg, err := LoadProvidersConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 2)

	first := cfg.Providers[0]
	require.Equal(t, int64(1), first.ID)
	assert.Equal(t, "09:00", first.Availability["monday"].Start)
	assert.NotContains(t, first.Availability, "tuesday")

	second := cfg.Providers[1]
	require.Equal(t, int64(2), second.ID)
	assert.Equal(t, "16:00", second.Availability["tuesday"].End)

	assert.Equal(t, "ProvidersConfig: 2 providers (1 active)", cfg.String())
}

func TestProvidersConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"empty", "providers: []\n", "no providers defined"},
		{"bad id", "providers:\n  - id: 0\n    name: A\n", "id must be positive"},
		{"duplicate id", "providers:\n  - id: 1\n    name: A\n  - id: 1\n    name: B\n", "duplicate id"},
		{"missing name", "providers:\n  - id: 1\n", "name is required"},
		{
			"bad window",
			"providers:\n  - id: 1\n    name: A\n    availability:\n      monday: {start: \"12:00\", end: \"09:00\"}\n",
			"monday",
		},
		{
			"bad day",
			"providers:\n  - id: 1\n    name: A\n    availability:\n      funday: {start: \"09:00\", end: \"12:00\"}\n",
			"unknown weekday",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "providers.yaml", tt.content)
			_, err := LoadProvidersConfig(path)
			assert.ErrorContains(t, err, tt.errText)
		})
	}
}

func TestProvidersWatcher_Poll(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "providers.yaml", "providers:\n  - id: 1\n    name: A\n")

	var updates []*ProvidersConfig
	var errs []error
	w := &ProvidersWatcher{
		Path:     path,
		Interval: time.Hour,
		OnUpdate: func(c *ProvidersConfig) { updates = append(updates, c) },
		OnError:  func(err error) { errs = append(errs, err) },
	}

	ctx := t.Context()
	require.NoError(t, w.Start(ctx))
	require.Len(t, updates, 1)

	// Unchanged file: no reload.
	w.poll()
	assert.Len(t, updates, 1)

	writeFile(t, dir, "providers.yaml", "providers:\n  - id: 1\n    name: A\n  - id: 2\n    name: B\n")
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))
	w.poll()
	require.Len(t, updates, 2)
	assert.Len(t, updates[1].Providers, 2)

	writeFile(t, dir, "providers.yaml", "providers: []\n")
	later := future.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	w.poll()
	assert.Len(t, updates, 2)
	assert.Len(t, errs, 1)
}
