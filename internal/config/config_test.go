package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CAPITOL_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "")
	t.Setenv("PRICE_PROVIDER", "")
	t.Setenv("TRACKING_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "alphavantage", cfg.Prices.Provider)
	assert.Equal(t, 12*time.Second, cfg.Prices.CallInterval)
	assert.Equal(t, "house", cfg.Disclosures.Layout)
	assert.NotEmpty(t, cfg.Tracking.Actors)
	assert.False(t, cfg.Notification.EmailEnabled())
	assert.False(t, cfg.Backup.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CAPITOL_DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9090")
	t.Setenv("PRICE_PROVIDER", "Yahoo")
	t.Setenv("PRICE_CALL_INTERVAL", "250ms")
	t.Setenv("EMAIL_TO", "a@example.com, b@example.com,")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("EMAIL_FROM", "capitol@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "yahoo", cfg.Prices.Provider)
	assert.Equal(t, 250*time.Millisecond, cfg.Prices.CallInterval)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.Notification.EmailTo)
	assert.True(t, cfg.Notification.EmailEnabled())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:        8001,
			Prices:      PriceConfig{Provider: "alphavantage"},
			Disclosures: DisclosureConfig{Layout: "house"},
			Schedules:   ScheduleConfig{Cycle: "0 0 */2 * * *"},
			Tracking:    DefaultTracking(),
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Port = 0 }, "invalid port"},
		{"bad provider", func(c *Config) { c.Prices.Provider = "bloomberg" }, "unknown price provider"},
		{"bad layout", func(c *Config) { c.Disclosures.Layout = "lords" }, "unknown disclosure feed layout"},
		{"bad cron", func(c *Config) { c.Schedules.Cycle = "every now and then" }, "invalid CYCLE_SCHEDULE"},
		{"disabled schedule", func(c *Config) { c.Schedules.Backup = "" }, ""},
		{"no tracking", func(c *Config) { c.Tracking = nil }, "tracking universe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTracking(t *testing.T) {
	doc := []byte(`
cash: 250
actors:
  - name: " Nancy Pelosi "
    weight: 1.0
    success_rate: 0.7
instruments:
  - ticker: nvda
    target_allocation: 0.25
    initial_value: 750
`)

	tr, err := ParseTracking(doc)
	require.NoError(t, err)
	assert.Equal(t, 250.0, tr.Cash)
	assert.Equal(t, "Nancy Pelosi", tr.Actors[0].Name)
	assert.Equal(t, "NVDA", tr.Instruments[0].Ticker)
	assert.Equal(t, 750.0, tr.Instruments[0].InitialValue)
}

func TestTrackingValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"weight out of range", "actors: [{name: A, weight: 1.5}]\ninstruments: [{ticker: X, target_allocation: 0.1}]"},
		{"zero target", "actors: [{name: A, weight: 0.5}]\ninstruments: [{ticker: X, target_allocation: 0}]"},
		{"duplicate ticker", "actors: [{name: A, weight: 0.5}]\ninstruments: [{ticker: X, target_allocation: 0.1}, {ticker: x, target_allocation: 0.2}]"},
		{"duplicate actor", "actors: [{name: A, weight: 0.5}, {name: a, weight: 0.2}]\ninstruments: [{ticker: X, target_allocation: 0.1}]"},
		{"negative cash", "cash: -1\nactors: [{name: A, weight: 0.5}]\ninstruments: [{ticker: X, target_allocation: 0.1}]"},
		{"no actors", "instruments: [{ticker: X, target_allocation: 0.1}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTracking([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadTracking_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracking.yaml")
	require.NoError(t, os.WriteFile(path, []byte("actors: [{name: A, weight: 0.5}]\ninstruments: [{ticker: X, target_allocation: 0.1}]"), 0o644))

	tr, err := LoadTracking(path)
	require.NoError(t, err)
	assert.Len(t, tr.Instruments, 1)

	_, err = LoadTracking(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
