// Package config layers worker/monitor configuration from an optional
// YAML file, environment variables (LOADGEN_ prefix), and command-line
// flags, file < env < flag, following the teacher's viper/pflag/cobra
// convention.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WorkerConfig is the worker process's configuration surface.
type WorkerConfig struct {
	WorkerID               string        `mapstructure:"worker_id"`
	ControlPlaneURL         string        `mapstructure:"control_plane_url"`
	Port                    int           `mapstructure:"port"`
	MetricsPort             int           `mapstructure:"metrics_port"`
	PollInterval            time.Duration `mapstructure:"poll_interval"`
	BatchSize               int           `mapstructure:"batch_size"`
	BatchBytes              int           `mapstructure:"batch_bytes"`
	FlushInterval           time.Duration `mapstructure:"flush_interval"`
	ConnectionBufferBytes   int           `mapstructure:"connection_buffer_bytes"`
	ReconnectInitialMS      int           `mapstructure:"reconnect_initial_ms"`
	ReconnectMaxMS          int           `mapstructure:"reconnect_max_ms"`
	ConnectTimeoutMS        int           `mapstructure:"connect_timeout_ms"`
	WriteDeadlineMS         int           `mapstructure:"write_deadline_ms"`
	BaseRate                float64       `mapstructure:"base_rate"`
	GovernorAccelPerSec     float64       `mapstructure:"governor_accel_per_sec"`
	GovernorRefreshMS       int           `mapstructure:"governor_refresh_ms"`
	MonitorURL              string        `mapstructure:"monitor_url"`
	LogLevel                string        `mapstructure:"log_level"`
}

// MonitorConfig is the monitor process's configuration surface.
type MonitorConfig struct {
	Port                 int     `mapstructure:"port"`
	ReferencePath         string  `mapstructure:"reference_path"`
	JSThreshold           float64 `mapstructure:"js_threshold"`
	WassersteinThreshold  float64 `mapstructure:"wasserstein_threshold"`
	KSThreshold           float64 `mapstructure:"ks_threshold"`
	RedMinutes            int     `mapstructure:"red_minutes"`
	LogLevel              string  `mapstructure:"log_level"`
}

const envPrefix = "LOADGEN"

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	return v
}

// LoadWorkerConfig binds flags, then layers file < env < flag into a
// WorkerConfig. configFile may be empty, in which case only flags and
// env vars apply.
func LoadWorkerConfig(flags *pflag.FlagSet, configFile string) (*WorkerConfig, error) {
	v := newViper(configFile)

	defaults := map[string]interface{}{
		"worker_id":               "worker-1",
		"control_plane_url":       "http://localhost:8080",
		"port":                    9100,
		"metrics_port":            9101,
		"poll_interval":           5 * time.Second,
		"batch_size":              500,
		"batch_bytes":             65536,
		"flush_interval":          2 * time.Second,
		"connection_buffer_bytes": 8192,
		"reconnect_initial_ms":    1000,
		"reconnect_max_ms":        60000,
		"connect_timeout_ms":      2000,
		"write_deadline_ms":       200,
		"base_rate":               1.0,
		"governor_accel_per_sec":  10.0,
		"governor_refresh_ms":     1000,
		"monitor_url":             "",
		"log_level":               "info",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	cfg := &WorkerConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling worker config: %w", err)
	}
	if cfg.WorkerID == "" || cfg.ControlPlaneURL == "" {
		return nil, fmt.Errorf("worker_id and control_plane_url are required")
	}
	return cfg, nil
}

// LoadMonitorConfig binds flags, then layers file < env < flag into a
// MonitorConfig.
func LoadMonitorConfig(flags *pflag.FlagSet, configFile string) (*MonitorConfig, error) {
	v := newViper(configFile)

	defaults := map[string]interface{}{
		"port":                  9200,
		"reference_path":        "",
		"js_threshold":          0.05,
		"wasserstein_threshold": 0.1,
		"ks_threshold":          0.05,
		"red_minutes":           15,
		"log_level":             "info",
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configFile != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	cfg := &MonitorConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling monitor config: %w", err)
	}
	if cfg.ReferencePath == "" {
		return nil, fmt.Errorf("reference_path is required")
	}
	return cfg, nil
}
