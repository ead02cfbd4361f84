package config

import (
	"os"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkerConfigDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	cfg, err := LoadWorkerConfig(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "worker-1", cfg.WorkerID)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 1.0, cfg.BaseRate)
	assert.Equal(t, "", cfg.MonitorURL)
}

func TestLoadWorkerConfigEnvOverride(t *testing.T) {
	os.Setenv("LOADGEN_WORKER_ID", "worker-env")
	defer os.Unsetenv("LOADGEN_WORKER_ID")

	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	cfg, err := LoadWorkerConfig(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "worker-env", cfg.WorkerID)
}

func TestLoadWorkerConfigFlagOverridesEnv(t *testing.T) {
	os.Setenv("LOADGEN_WORKER_ID", "worker-env")
	defer os.Unsetenv("LOADGEN_WORKER_ID")

	fs := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	fs.String("worker_id", "worker-flag", "")
	require.NoError(t, fs.Set("worker_id", "worker-flag"))

	cfg, err := LoadWorkerConfig(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "worker-flag", cfg.WorkerID)
}

func TestLoadMonitorConfigRequiresReferencePath(t *testing.T) {
	fs := pflag.NewFlagSet("monitor", pflag.ContinueOnError)
	_, err := LoadMonitorConfig(fs, "")
	require.Error(t, err)
}

func TestLoadMonitorConfigDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("monitor", pflag.ContinueOnError)
	fs.String("reference_path", "", "")
	require.NoError(t, fs.Set("reference_path", "/tmp/ref.json"))

	cfg, err := LoadMonitorConfig(fs, "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ref.json", cfg.ReferencePath)
	assert.Equal(t, 0.05, cfg.JSThreshold)
	assert.Equal(t, 15, cfg.RedMinutes)
}
