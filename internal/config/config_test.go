package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.EnableScheduler)
	assert.Equal(t, 3, cfg.ScheduleHour)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("ENABLE_SCHEDULER", "false")
	t.Setenv("SCHEDULE_HOUR", "17")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.EnableScheduler)
	assert.Equal(t, 17, cfg.ScheduleHour)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoadIgnoresMalformedIntAndBool(t *testing.T) {
	t.Setenv("SCHEDULE_HOUR", "not-a-number")
	t.Setenv("ENABLE_SCHEDULER", "not-a-bool")

	cfg := Load()

	assert.Equal(t, 3, cfg.ScheduleHour)
	assert.True(t, cfg.EnableScheduler)
}
