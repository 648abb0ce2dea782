package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, "memory", cfg.Store.Driver)
	require.Equal(t, int64(10), cfg.Engine.MinIncrement)
	require.Equal(t, 5*time.Minute, cfg.Engine.AutoExtendWindow)
	require.Equal(t, 60*time.Second, cfg.Engine.SweepInterval)
	require.Equal(t, 30*time.Second, cfg.Leader.TTL)
	require.NotEmpty(t, cfg.Instance.ID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("ENGINE_MIN_INCREMENT", "25")
	t.Setenv("ENGINE_AUTO_EXTEND_WINDOW", "2m")
	t.Setenv("INSTANCE_ID", "auction-service-7")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "mysql", cfg.Store.Driver)
	require.Equal(t, int64(25), cfg.Engine.MinIncrement)
	require.Equal(t, 2*time.Minute, cfg.Engine.AutoExtendWindow)
	require.Equal(t, "auction-service-7", cfg.Instance.ID)
}
