package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")

	cfg := LoadConfig()
	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 14*24*time.Hour, cfg.Lending.LoanPeriod)
	require.Equal(t, 3, cfg.Lending.MaxActiveBorrows)
	require.Equal(t, 5, cfg.RateLimit.Auth.Requests)
	require.Equal(t, time.Hour, cfg.RateLimit.Sustained.Window)
	require.Equal(t, "none", cfg.MQ.Backend)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_USE_SSL", "true")
	t.Setenv("MQ_BACKEND", "RabbitMQ")
	t.Setenv("RATELIMIT_BURST_WINDOW", "30s")
	t.Setenv("LENDING_MAX_ACTIVE_BORROWS", "5")

	cfg := LoadConfig()
	require.Equal(t, 9090, cfg.ServerPort)
	require.True(t, cfg.Database.UseSSL)
	require.Equal(t, "rabbitmq", cfg.MQ.Backend)
	require.Equal(t, 30*time.Second, cfg.RateLimit.Burst.Window)
	require.Equal(t, 5, cfg.Lending.MaxActiveBorrows)
}

func TestLoadConfigIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("SERVER_PORT", "not-a-port")
	t.Setenv("JWT_TOKEN_TTL", "-5m")

	cfg := LoadConfig()
	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, 24*time.Hour, cfg.TokenTTL)
}
