package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
	require.Equal(t, 1024, cfg.Stores["frame"].Capacity)
	require.Equal(t, 8, cfg.Bench.Workers)
	require.Equal(t, "blockpool", cfg.Telemetry.ServiceName)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	raw := []byte(`
environment: dev
stores:
  frame:
    capacity: 16
  scratch:
    capacity: 0
bench:
  workers: 2
  cycles: 100
telemetry:
  serviceName: blockpool-test
`)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, 16, cfg.Stores["frame"].Capacity)
	require.Equal(t, 0, cfg.Stores["scratch"].Capacity)
	require.Equal(t, 2, cfg.Bench.Workers)
	require.Equal(t, 100, cfg.Bench.Cycles)
	require.Equal(t, "blockpool-test", cfg.Telemetry.ServiceName)
	// Unset YAML fields keep their defaults.
	require.Equal(t, 64, cfg.Bench.QueueDepth)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("BLOCKPOOL_ENV", "dev")
	t.Setenv("BLOCKPOOL_OTLP_ENDPOINT", "http://localhost:4318")
	t.Setenv("BLOCKPOOL_FRAME_CAPACITY", "5")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvDev, cfg.Environment)
	require.Equal(t, "http://localhost:4318", cfg.Telemetry.OTLPEndpoint)
	require.Equal(t, 5, cfg.Stores["frame"].Capacity)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, EnvProd, cfg.Environment)
}

func TestValidateRejectsNegativeCapacity(t *testing.T) {
	cfg := defaultAppConfig()
	cfg.Stores["frame"] = StoreSettings{Capacity: -1}
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsBadBench(t *testing.T) {
	cfg := defaultAppConfig()
	cfg.Bench.Workers = 0
	require.Error(t, cfg.Validate(context.Background()))

	cfg = defaultAppConfig()
	cfg.Bench.Cycles = -5
	require.Error(t, cfg.Validate(context.Background()))

	cfg = defaultAppConfig()
	cfg.Bench.RatePerSecond = -1
	require.Error(t, cfg.Validate(context.Background()))
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	cfg := defaultAppConfig()
	cfg.Environment = Environment("sandbox")
	require.Error(t, cfg.Validate(context.Background()))
}
