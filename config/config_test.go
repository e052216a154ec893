package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 4, cfg.Scheduler.Workers)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.StopTimeout.Std())
	assert.Equal(t, "scaled", cfg.Reader.ReadMode)
	assert.Equal(t, 1024, cfg.Reader.HistorySize)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "daq.json", `{
		"logging": {"level": "debug", "format": "json"},
		"metrics": {"enabled": true, "port": 9200},
		"reader": {
			"read_mode": "unscaled",
			"timeout_type": "any",
			"timeout": "250ms",
			"skip_events": true,
			"queue_limit": 64
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9200, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path, "defaults fill unset fields")
	assert.Equal(t, "unscaled", cfg.Reader.ReadMode)
	assert.Equal(t, "any", cfg.Reader.TimeoutType)
	assert.Equal(t, 250*time.Millisecond, cfg.Reader.Timeout.Std())
	assert.True(t, cfg.Reader.SkipEvents)
	assert.Equal(t, 64, cfg.Reader.QueueLimit)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "daq.yaml", `
version: 2.1.0
scheduler:
  workers: 8
  queue_size: 256
  stop_timeout: 1d
reader:
  timeout: 1000000
  notification_method: scheduler
  history_size: 32
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", cfg.Version)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, 256, cfg.Scheduler.QueueSize)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.StopTimeout.Std())
	assert.Equal(t, time.Millisecond, cfg.Reader.Timeout.Std())
	assert.Equal(t, "scheduler", cfg.Reader.NotificationMethod)
	assert.Equal(t, 32, cfg.Reader.HistorySize)
}

func TestLoader_LayersMerge(t *testing.T) {
	base := writeFile(t, "base.yaml", `
logging:
  level: warn
  format: json
reader:
  history_size: 10
`)
	override := writeFile(t, "override.json", `{"logging": {"level": "error"}}`)

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format, "nested keys of earlier layers survive")
	assert.Equal(t, 10, cfg.Reader.HistorySize)
}

func TestLoader_EnvOverrides(t *testing.T) {
	path := writeFile(t, "daq.json", `{"logging": {"level": "info"}}`)
	t.Setenv("OPENDAQ_LOG_LEVEL", "debug")
	t.Setenv("OPENDAQ_READ_MODE", "raw")
	t.Setenv("OPENDAQ_METRICS_PORT", "9300")
	t.Setenv("OPENDAQ_READ_TIMEOUT", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "raw", cfg.Reader.ReadMode)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9300, cfg.Metrics.Port)
	assert.Equal(t, 2*time.Second, cfg.Reader.Timeout.Std())

	t.Setenv("OPENDAQ_METRICS_PORT", "ninety")
	_, err = Load(path)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed json", "bad.json", `{"logging": `},
		{"malformed yaml", "bad.yaml", "logging: [unclosed"},
		{"unknown read mode", "mode.json", `{"reader": {"read_mode": "sideways"}}`},
		{"bad duration", "dur.json", `{"reader": {"timeout": "soon"}}`},
		{"capacity above limit", "queue.json", `{"reader": {"queue_capacity": 10, "queue_limit": 5}}`},
		{"bad version", "version.json", `{"version": "one"}`},
		{"wrong extension", "daq.toml", `version = "1.0.0"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics port", func(c *Config) { c.Metrics.Enabled, c.Metrics.Port = true, 70000 }},
		{"metrics path", func(c *Config) { c.Metrics.Enabled, c.Metrics.Path = true, "metrics" }},
		{"workers", func(c *Config) { c.Scheduler.Workers = -1 }},
		{"timeout type", func(c *Config) { c.Reader.TimeoutType = "some" }},
		{"notification method", func(c *Config) { c.Reader.NotificationMethod = "carrier_pigeon" }},
		{"negative timeout", func(c *Config) { c.Reader.Timeout = Duration(-time.Second) }},
		{"history size", func(c *Config) { c.Reader.HistorySize = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Reader.Timeout = Duration(75 * time.Millisecond)
	cfg.Reader.ReadMode = "raw"

	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			if diff := cmp.Diff(cfg, loaded); diff != "" {
				t.Errorf("config changed across save and load (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReaderOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.ReaderOptions(), 4)

	cfg.Reader.QueueLimit = 8
	assert.Len(t, cfg.ReaderOptions(), 5)
	assert.Len(t, cfg.PortOptions(), 2)

	cfg.Reader.NotificationMethod = "scheduler"
	port := signal.NewInputPort("in", cfg.PortOptions()...)
	assert.Equal(t, signal.NotifyScheduler, port.NotificationMethod())
}

func TestNewScheduler(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Workers = 2
	s, err := cfg.NewScheduler(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		v1, v2 string
		want   int
	}{
		{"1.0.0", "1.0.0", 0},
		{"v1.2.0", "1.1.9", 1},
		{"1.2.3", "1.10.0", -1},
		{"2.0.0", "10.0.0", -1},
	}
	for _, tt := range tests {
		got, err := CompareVersions(tt.v1, tt.v2)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.v1, tt.v2)
	}

	_, err := CompareVersions("1.0", "1.0.0")
	assert.Error(t, err)
}

func TestConfigFileChecks(t *testing.T) {
	deep := []byte(strings.Repeat("[", maxJSONDepth+1) + strings.Repeat("]", maxJSONDepth+1))
	assert.ErrorIs(t, checkJSONDepth(deep), errors.ErrInvalidConfig)
	assert.NoError(t, checkJSONDepth([]byte(`{"a": [1, {"b": "[[["}]}`)))

	_, err := checkPath("../outside.json")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	_, err = checkPath("daq.toml")
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	_, err = checkPath("")
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	format, err := checkPath("conf/daq.yml")
	require.NoError(t, err)
	assert.Equal(t, formatYAML, format)

	assert.Error(t, checkEnvValue("OPENDAQ_LOG_LEVEL", "de\x00bug"))
	assert.NoError(t, checkEnvValue("OPENDAQ_LOG_LEVEL", "debug"))
}
