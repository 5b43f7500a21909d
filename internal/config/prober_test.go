package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultProberConfig_IsValid(t *testing.T) {
	cfg := DefaultProberConfig()

	assert.NoError(t, cfg.Validate())
}

func TestLoadProberFromEnv_Defaults(t *testing.T) {
	cfg := LoadProberFromEnv(discardLogger(), nil)

	assert.Equal(t, DefaultProberConfig(), cfg)
}

func TestLoadProberFromEnv_Overrides(t *testing.T) {
	t.Setenv("PROBE_CRON_SCHEDULE", "*/5 * * * *")
	t.Setenv("PROBER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("SWEEP_TIMEOUT", "2m")
	t.Setenv("PROBE_MAX_CONCURRENT", "16")
	t.Setenv("PROBE_RATE_LIMIT", "50")
	t.Setenv("PROBE_RATE_BURST", "100")
	t.Setenv("OPS_PORT", "9191")
	t.Setenv("OPS_CLIENT_RATE_LIMIT", "5")
	t.Setenv("OPS_CLIENT_RATE_BURST", "10")
	t.Setenv("PROFILES_PATH", "/etc/prober/profiles.yaml")
	t.Setenv("REGISTRY_MAX_BREAKERS", "256")

	cfg := LoadProberFromEnv(discardLogger(), nil)

	assert.Equal(t, "*/5 * * * *", cfg.CronSchedule)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 2*time.Minute, cfg.SweepTimeout)
	assert.Equal(t, 16, cfg.MaxConcurrentProbes)
	assert.Equal(t, 50, cfg.ProbeRateLimit)
	assert.Equal(t, 100, cfg.ProbeRateBurst)
	assert.Equal(t, 9191, cfg.OpsPort)
	assert.Equal(t, 5, cfg.OpsClientRateLimit)
	assert.Equal(t, 10, cfg.OpsClientRateBurst)
	assert.Equal(t, "/etc/prober/profiles.yaml", cfg.ProfilesPath)
	assert.Equal(t, 256, cfg.MaxBreakers)
}

func TestLoadProberFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PROBE_CRON_SCHEDULE", "not a schedule")
	t.Setenv("SWEEP_TIMEOUT", "11m") // above the 10m cap
	t.Setenv("PROBE_MAX_CONCURRENT", "9000")
	t.Setenv("OPS_PORT", "80") // privileged

	cfg := LoadProberFromEnv(discardLogger(), nil)
	def := DefaultProberConfig()

	assert.Equal(t, def.CronSchedule, cfg.CronSchedule)
	assert.Equal(t, def.SweepTimeout, cfg.SweepTimeout)
	assert.Equal(t, def.MaxConcurrentProbes, cfg.MaxConcurrentProbes)
	assert.Equal(t, def.OpsPort, cfg.OpsPort)

	// The loaded config must always pass its own validation
	assert.NoError(t, cfg.Validate())
}

func TestProberConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultProberConfig()
	cfg.CronSchedule = "bogus"
	cfg.Timezone = "Nowhere/Special"
	cfg.MaxConcurrentProbes = 0
	cfg.OpsPort = 99999

	err := cfg.Validate()

	assert.Error(t, err)
	assert.ErrorContains(t, err, "cron schedule")
	assert.ErrorContains(t, err, "timezone")
	assert.ErrorContains(t, err, "max concurrent probes")
	assert.ErrorContains(t, err, "ops port")
}
