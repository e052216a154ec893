package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	Debug       bool
	Reader      string
	Signals     int
	Rate        int
	BlockSize   int
	Duration    time.Duration
	ShowVersion bool
	ShowHelp    bool
	Validate    bool
}

var readerKinds = []string{"stream", "tail", "multi", "packet"}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("DAQREADER_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: DAQREADER_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("DAQREADER_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: DAQREADER_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("DAQREADER_LOG_LEVEL", ""),
		"Log level override: debug, info, warn, error (env: DAQREADER_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("DAQREADER_LOG_FORMAT", ""),
		"Log format override: json, text (env: DAQREADER_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("DAQREADER_DEBUG", false),
		"Enable debug logging (env: DAQREADER_DEBUG)")

	flag.StringVar(&cfg.Reader, "reader", "stream",
		"Reader to run: stream, tail, multi, packet")

	flag.IntVar(&cfg.Signals, "signals",
		getEnvInt("DAQREADER_SIGNALS", 2),
		"Number of generated signals for the multi reader (env: DAQREADER_SIGNALS)")

	flag.IntVar(&cfg.Rate, "rate",
		getEnvInt("DAQREADER_RATE", 1000),
		"Samples per second of the first generated signal (env: DAQREADER_RATE)")

	flag.IntVar(&cfg.BlockSize, "block", 100, "Samples per read")

	flag.DurationVar(&cfg.Duration, "duration",
		getEnvDuration("DAQREADER_DURATION", 0),
		"Stop after this long, 0 runs until interrupted (env: DAQREADER_DURATION)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if !slices.Contains(readerKinds, cfg.Reader) {
		return fmt.Errorf("invalid reader: %s", cfg.Reader)
	}
	if cfg.Signals < 1 {
		return fmt.Errorf("invalid signal count: %d", cfg.Signals)
	}
	if cfg.Rate < 1 || cfg.Rate > 1_000_000 {
		return fmt.Errorf("invalid rate: %d", cfg.Rate)
	}
	if cfg.BlockSize < 1 {
		return fmt.Errorf("invalid block size: %d", cfg.BlockSize)
	}
	if cfg.Duration < 0 {
		return fmt.Errorf("invalid duration: %s", cfg.Duration)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - signal reader demo

Generates synthetic signals and reads them with one of the SDK readers.

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Stream 100 samples per read from a 1 kHz ramp
  %s --reader=stream --rate=1000 --block=100

  # Align three signals at 1, 1/2 and 1/3 of the base rate
  %s --reader=multi --signals=3 --config=daq.yaml

  # Validate configuration only
  %s --config=daq.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
