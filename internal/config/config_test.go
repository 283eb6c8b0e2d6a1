package config_test

import (
	"testing"

	"civictrack/backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("NOTIFY_CONCURRENCY", "")
	t.Setenv("SMTP_FROM", "")
	t.Setenv("SMTP_USERNAME", "mailer@example.org")
	t.Setenv("STRICT_TRANSITIONS", "not-a-bool")

	cfg, _ := config.Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, config.DefaultNotifyConcurrency, cfg.NotifyConcurrency)
	assert.Equal(t, int64(config.DefaultMaxImageBytes), cfg.MaxImageBytes)
	assert.Equal(t, "mailer@example.org", cfg.SMTP.From, "From falls back to the SMTP username")
	assert.False(t, cfg.StrictTransitions)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoad_DiscreteDatabaseVariables(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "civic")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "civicdb")
	t.Setenv("DB_PORT", "")

	cfg, _ := config.Load()

	assert.Equal(t, "host=db user=civic password=secret dbname=civicdb port=5432 sslmode=disable", cfg.DatabaseURL)
}

func TestLoad_ClampsConcurrency(t *testing.T) {
	t.Setenv("NOTIFY_CONCURRENCY", "0")

	cfg, _ := config.Load()

	assert.Equal(t, 1, cfg.NotifyConcurrency)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.DatabaseURL = "postgres://localhost/civic"
	cfg.JWTSecret = "s3cr3t"
	assert.NoError(t, cfg.Validate())
}

func TestReportRoom(t *testing.T) {
	assert.Equal(t, "report_abc", config.ReportRoom("abc"))
}
