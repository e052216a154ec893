package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openDAQ/openDAQ-sub014/errors"
	"github.com/openDAQ/openDAQ-sub014/reader"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// Log formats
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the runtime configuration of an application embedding the SDK.
type Config struct {
	Version   string          `json:"version" yaml:"version"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Scheduler SchedulerConfig `json:"scheduler" yaml:"scheduler"`
	Reader    ReaderConfig    `json:"reader" yaml:"reader"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text, json
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Port    int    `json:"port" yaml:"port"`
	Path    string `json:"path" yaml:"path"`
}

// SchedulerConfig sizes the worker pool running scheduled port notifications.
type SchedulerConfig struct {
	Workers     int      `json:"workers" yaml:"workers"`
	QueueSize   int      `json:"queue_size" yaml:"queue_size"`
	StopTimeout Duration `json:"stop_timeout" yaml:"stop_timeout"`
}

// ReaderConfig holds defaults applied to every reader built from this config.
type ReaderConfig struct {
	ReadMode           string   `json:"read_mode" yaml:"read_mode"`
	TimeoutType        string   `json:"timeout_type" yaml:"timeout_type"`
	Timeout            Duration `json:"timeout" yaml:"timeout"`
	SkipEvents         bool     `json:"skip_events" yaml:"skip_events"`
	NotificationMethod string   `json:"notification_method" yaml:"notification_method"`
	HistorySize        int      `json:"history_size" yaml:"history_size"`

	// Queue limits for reader ports. 0 keeps the queue unbounded.
	QueueCapacity int `json:"queue_capacity,omitempty" yaml:"queue_capacity,omitempty"`
	QueueLimit    int `json:"queue_limit,omitempty" yaml:"queue_limit,omitempty"`
}

// Duration is a time.Duration read from either a duration string ("50ms", "2d")
// or a number of nanoseconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := parseDurationWithDays(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		var n int64
		if err := node.Decode(&n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	parsed, err := parseDurationWithDays(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Scheduler.Workers == 0 {
		c.Scheduler.Workers = 4
	}
	if c.Scheduler.QueueSize == 0 {
		c.Scheduler.QueueSize = 1024
	}
	if c.Scheduler.StopTimeout == 0 {
		c.Scheduler.StopTimeout = Duration(5 * time.Second)
	}
	if c.Reader.ReadMode == "" {
		c.Reader.ReadMode = "scaled"
	}
	if c.Reader.TimeoutType == "" {
		c.Reader.TimeoutType = "all"
	}
	if c.Reader.NotificationMethod == "" {
		c.Reader.NotificationMethod = "same_thread"
	}
	if c.Reader.HistorySize == 0 {
		c.Reader.HistorySize = 1024
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if _, _, _, err := parseSemVer(c.Version); err != nil {
		return configError("version", err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return configErrorf("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		return configErrorf("logging.format", "unknown format %q", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return configErrorf("metrics.port", "port %d out of range", c.Metrics.Port)
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return configErrorf("metrics.path", "path %q must start with /", c.Metrics.Path)
		}
	}

	if c.Scheduler.Workers <= 0 {
		return configErrorf("scheduler.workers", "must be positive, got %d", c.Scheduler.Workers)
	}
	if c.Scheduler.QueueSize <= 0 {
		return configErrorf("scheduler.queue_size", "must be positive, got %d", c.Scheduler.QueueSize)
	}

	if _, ok := reader.ParseReadMode(c.Reader.ReadMode); !ok {
		return configErrorf("reader.read_mode", "unknown read mode %q", c.Reader.ReadMode)
	}
	if _, ok := reader.ParseReadTimeoutType(c.Reader.TimeoutType); !ok {
		return configErrorf("reader.timeout_type", "unknown timeout type %q", c.Reader.TimeoutType)
	}
	if _, ok := signal.ParseNotificationMethod(c.Reader.NotificationMethod); !ok {
		return configErrorf("reader.notification_method", "unknown method %q", c.Reader.NotificationMethod)
	}
	if c.Reader.Timeout < 0 {
		return configErrorf("reader.timeout", "negative timeout %s", c.Reader.Timeout)
	}
	if c.Reader.HistorySize <= 0 {
		return configErrorf("reader.history_size", "must be positive, got %d", c.Reader.HistorySize)
	}
	if c.Reader.QueueCapacity < 0 || c.Reader.QueueLimit < 0 {
		return configErrorf("reader.queue_limit", "queue sizes cannot be negative")
	}
	if c.Reader.QueueLimit > 0 && c.Reader.QueueCapacity > c.Reader.QueueLimit {
		return configErrorf("reader.queue_capacity", "capacity %d exceeds limit %d",
			c.Reader.QueueCapacity, c.Reader.QueueLimit)
	}
	return nil
}

func configError(field string, err error) error {
	return errors.WrapInvalid(fmt.Errorf("%s: %w: %w", field, errors.ErrInvalidConfig, err),
		"Config", "Validate", "field check")
}

func configErrorf(field, format string, args ...any) error {
	return configError(field, fmt.Errorf(format, args...))
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{
		config: cfg.Clone(),
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrArgumentNull, "SafeConfig", "Update", "config check")
	}

	// Validate before updating
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}

// Clone creates a deep copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	copied := *c
	return &copied
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: true,
		envPrefix:  "OPENDAQ",
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the prefix of environment overrides.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	merged := map[string]any{}
	for _, path := range l.layers {
		raw, err := loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		merged = deepMergeMaps(merged, raw)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "Load", "merge layers")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"Loader", "Load", "decode config")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Load reads a single JSON or YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	l := NewLoader()
	l.AddLayer(path)
	return l.Load()
}

// loadRaw reads one layer as a generic map. YAML layers are normalized to the JSON
// shape so both formats merge the same way.
func loadRaw(path string) (map[string]any, error) {
	data, format, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch format {
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "loadRaw", "parse YAML")
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"Loader", "loadRaw", "parse JSON")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		result[k] = v
	}

	return result
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	lookup := func(name string) (string, bool, error) {
		key := l.envPrefix + "_" + name
		val := os.Getenv(key)
		if val == "" {
			return "", false, nil
		}
		if err := checkEnvValue(key, val); err != nil {
			return "", false, err
		}
		return val, true, nil
	}

	fields := map[string]*string{
		"LOG_LEVEL":           &cfg.Logging.Level,
		"LOG_FORMAT":          &cfg.Logging.Format,
		"READ_MODE":           &cfg.Reader.ReadMode,
		"READ_TIMEOUT_TYPE":   &cfg.Reader.TimeoutType,
		"NOTIFICATION_METHOD": &cfg.Reader.NotificationMethod,
	}
	for name, dst := range fields {
		val, ok, err := lookup(name)
		if err != nil {
			return err
		}
		if ok {
			*dst = val
		}
	}

	val, ok, err := lookup("METRICS_PORT")
	if err != nil {
		return err
	}
	if ok {
		port, err := strconv.Atoi(val)
		if err != nil {
			return configErrorf("metrics.port", "invalid %s_METRICS_PORT %q", l.envPrefix, val)
		}
		cfg.Metrics.Port = port
		cfg.Metrics.Enabled = true
	}

	val, ok, err = lookup("READ_TIMEOUT")
	if err != nil {
		return err
	}
	if ok {
		d, err := parseDurationWithDays(val)
		if err != nil {
			return configError("reader.timeout", err)
		}
		cfg.Reader.Timeout = Duration(d)
	}
	return nil
}

// SaveToFile saves the configuration as JSON or YAML depending on the extension.
func (c *Config) SaveToFile(path string) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case formatYAML:
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "encode config")
	}

	return writeConfigFile(path, data)
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// CompareVersions compares two semver version strings
// Returns:
//
//	-1 if v1 < v2
//	 0 if v1 == v2
//	 1 if v1 > v2
//	error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	major1, minor1, patch1, err := parseSemVer(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v1, err)
	}

	major2, minor2, patch2, err := parseSemVer(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version '%s': %w", v2, err)
	}

	for _, pair := range [][2]int{{major1, major2}, {minor1, minor2}, {patch1, patch2}} {
		if pair[0] > pair[1] {
			return 1, nil
		}
		if pair[0] < pair[1] {
			return -1, nil
		}
	}
	return 0, nil
}

// parseSemVer parses a semantic version string (e.g., "1.2.3")
// Returns major, minor, patch, error
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, errors.New("version cannot be empty")
	}

	// Remove 'v' prefix if present
	version = strings.TrimPrefix(version, "v")

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be in format 'major.minor.patch', got '%s'", version)
	}

	var nums [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version part '%s': %w", part, err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
