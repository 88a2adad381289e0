package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, time.Minute, cfg.Auth.AccessTTL)
	require.Equal(t, 168*time.Hour, cfg.Auth.RefreshTTL)
	require.True(t, cfg.Dev)
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := Config{}
	cfg.Sanitize()
	require.Error(t, cfg.Validate())

	cfg.Auth.AccessSecret = "same"
	cfg.Auth.RefreshSecret = "same"
	require.Error(t, cfg.Validate(), "identical secrets must be rejected")

	cfg.Auth.RefreshSecret = "different"
	require.NoError(t, cfg.Validate())
}

func TestSanitizeClampsBounds(t *testing.T) {
	cfg := Config{}
	cfg.HTTP.MaxBodyBytes = 1
	cfg.HTTP.RateLimitBurst = 0
	cfg.Sanitize()
	require.EqualValues(t, 1024, cfg.HTTP.MaxBodyBytes)
	require.Equal(t, 1, cfg.HTTP.RateLimitBurst)
	require.Equal(t, time.Minute, cfg.Auth.AccessTTL)
}
