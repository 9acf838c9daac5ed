package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 20, cfg.RateMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.RateWindow)
	assert.Equal(t, 5*time.Minute, cfg.RateBlock)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.True(t, cfg.StrictDomainCheck)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":8081")
	t.Setenv("RATE_MAX_ATTEMPTS", "5")
	t.Setenv("RATE_WINDOW", "1m")
	t.Setenv("STRICT_DOMAIN_CHECK", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.RateMaxAttempts)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.False(t, cfg.StrictDomainCheck)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ACCOUNT_API_SECRET", "")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ACCOUNT_API_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.AccountAPISecret)
}

func TestLoadRejectsNonPositiveRateSettings(t *testing.T) {
	t.Setenv("RATE_MAX_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}
