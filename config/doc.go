// Package config loads the runtime configuration of an application built on the
// SDK: logging, the metrics endpoint, the notification scheduler and reader
// defaults.
//
// # Loading
//
// Files are JSON or YAML, chosen by extension. Layers merge key by key, later
// layers winning, then OPENDAQ_* environment variables override single fields:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.yaml")
//	loader.AddLayer("config/site.json")
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Durations are strings ("50ms", "2d") or nanosecond numbers.
//
// # Using the configuration
//
//	sched, _ := cfg.NewScheduler(logger, registry)
//	r, _ := reader.NewStreamReader[float64, int64](sig,
//		cfg.ReaderOptions(reader.WithScheduler(sched))...)
//
// SafeConfig wraps a Config for concurrent readers and validated updates.
package config
