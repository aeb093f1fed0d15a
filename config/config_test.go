package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \"host=db\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db", cfg.Database.DSN)
	assert.Equal(t, []string{"pending", "confirmed"}, cfg.Booking.BlockingStatuses)
	assert.Equal(t, 24*time.Hour, cfg.Booking.CancellationWindow)
	assert.Equal(t, 15, cfg.Pricing.HourlyIncrementMinutes)
	assert.Equal(t, time.UTC, cfg.Booking.Location)
	assert.Equal(t, "BK", cfg.Booking.CodePrefix)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: \"host=file\"\nbooking:\n  cancellation_window_hours: 12\n")
	t.Setenv("SPACEBOOK_DATABASE_DSN", "host=env")
	t.Setenv("SPACEBOOK_BOOKING_TIMEZONE", "Africa/Cairo")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "host=env", cfg.Database.DSN)
	assert.Equal(t, "Africa/Cairo", cfg.Booking.Location.String())
	assert.Equal(t, 12*time.Hour, cfg.Booking.CancellationWindow)
}

func TestLoad_NegativeWindowDisablesGuard(t *testing.T) {
	path := writeConfig(t, "booking:\n  cancellation_window_hours: -1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Booking.CancellationWindow)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	path := writeConfig(t, "booking:\n  timezone: \"Mars/Olympus\"\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
