// Package main implements daqreader, a demo that drives synthetic signals through
// the data path and reads them with one of the SDK readers.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	ossignal "os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openDAQ/openDAQ-sub014/config"
	"github.com/openDAQ/openDAQ-sub014/health"
	"github.com/openDAQ/openDAQ-sub014/metric"
	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/pkg/retry"
	"github.com/openDAQ/openDAQ-sub014/pkg/worker"
	"github.com/openDAQ/openDAQ-sub014/reader"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "daqreader"
)

const (
	defaultReadTimeout = 100 * time.Millisecond
	progressInterval   = time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		fmt.Println("Configuration is valid")
		return nil
	}

	logger := setupLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("Starting daqreader",
		"version", Version,
		"reader", cliCfg.Reader,
		"rate", cliCfg.Rate,
		"config_path", cliCfg.ConfigPath)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cliCfg.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cliCfg.Duration)
		defer stop()
	}

	registry := metric.NewMetricsRegistry()
	var server *metric.Server
	if cfg.Metrics.Enabled {
		server = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		go func() {
			err := retry.Do(ctx, retry.Quick(), func() error {
				if ctx.Err() != nil {
					return nil
				}
				return server.Start()
			})
			if err != nil {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Stop() }()
		slog.Info("Metrics server listening", "address", server.Address())
	}

	sched, err := cfg.NewScheduler(logger, registry)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		if err := sched.Stop(cfg.Scheduler.StopTimeout.Std()); err != nil {
			slog.Warn("Scheduler stop failed", "error", err)
		}
	}()

	gens, err := createGenerators(cliCfg, registry)
	if err != nil {
		return err
	}
	defer func() {
		for _, g := range gens {
			g.remove()
		}
	}()

	rd, err := newDemoReader(cliCfg, cfg, gens, sched, registry.CoreMetrics(), logger)
	if err != nil {
		return fmt.Errorf("create %s reader: %w", cliCfg.Reader, err)
	}
	defer func() { _ = rd.Close() }()

	monitor := newMonitor(cliCfg.Reader, rd, sched)

	g, gctx := errgroup.WithContext(ctx)
	for _, gen := range gens {
		g.Go(func() error { return gen.run(gctx) })
	}

	timeout := cfg.Reader.Timeout.Std()
	if timeout == 0 {
		timeout = defaultReadTimeout
	}
	readErr := readLoop(gctx, rd, timeout, func() {
		status := monitor.Check(appName)
		if server != nil {
			server.SetHealthy(!status.IsUnhealthy())
		}
		if !status.IsHealthy() {
			slog.Warn("Data path health", "status", status.Status, "message", status.Message)
		}
	})

	cancel()
	genErr := g.Wait()
	logTotals(registry)
	if genErr != nil {
		return genErr
	}
	return readErr
}

func logTotals(registry *metric.MetricsRegistry) {
	totals, err := registry.CounterTotals(metric.Namespace + "_")
	if err != nil {
		slog.Warn("Gathering metrics failed", "error", err)
		return
	}
	attrs := make([]any, 0, 2*len(totals))
	for name, v := range totals {
		attrs = append(attrs, name, v)
	}
	slog.Info("Totals", attrs...)
}

func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	cfg := config.Default()
	if cliCfg.ConfigPath != "" {
		loaded, err := config.Load(cliCfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// createGenerators builds one generator, or cliCfg.Signals of them for the multi
// reader. Generator i runs at 1/(i+1) of the base rate.
func createGenerators(cliCfg *CLIConfig, registry *metric.MetricsRegistry) ([]*generator, error) {
	count := 1
	if cliCfg.Reader == "multi" {
		count = cliCfg.Signals
	}
	start, err := startTick()
	if err != nil {
		return nil, fmt.Errorf("start tick: %w", err)
	}

	delta := int64(ticksPerSec / cliCfg.Rate)
	gens := make([]*generator, 0, count)
	for i := 0; i < count; i++ {
		g, err := newGenerator(fmt.Sprintf("ai%d", i), delta*int64(i+1), start,
			signal.WithMetrics(registry.CoreMetrics()))
		if err != nil {
			for _, created := range gens {
				created.remove()
			}
			return nil, fmt.Errorf("create generator %d: %w", i, err)
		}
		gens = append(gens, g)
	}
	return gens, nil
}

// demoReader adapts the reader kinds to one read loop.
type demoReader interface {
	// read performs one read. status.Offset holds the domain tick of the first
	// sample when known.
	read(timeout time.Duration) (int, reader.ReaderStatus, error)
	ports() []*signal.InputPort
	IsValid() bool
	Close() error
}

// newMonitor registers probes for the reader, each of its input ports and the
// scheduler.
func newMonitor(name string, rd demoReader, sched *worker.Scheduler) *health.Monitor {
	monitor := health.NewMonitor()
	monitor.Register("reader", health.ReaderProbe(name+" reader", rd))
	for _, port := range rd.ports() {
		monitor.Register("port "+port.LocalID(), health.PortProbe(port.LocalID(), port))
	}
	if sched != nil {
		monitor.Register("scheduler", health.SchedulerProbe("scheduler", sched))
	}
	return monitor
}

func newDemoReader(cliCfg *CLIConfig, cfg *config.Config, gens []*generator, sched *worker.Scheduler,
	metrics *metric.Metrics, logger *slog.Logger) (demoReader, error) {
	opts := cfg.ReaderOptions(
		reader.WithName(cliCfg.Reader),
		reader.WithLogger(logger),
		reader.WithMetrics(metrics),
		reader.WithScheduler(sched),
	)
	block := cliCfg.BlockSize

	switch cliCfg.Reader {
	case "tail":
		size := max(cfg.Reader.HistorySize, block)
		r, err := reader.NewTailReader[float64, int64](gens[0].value, size, opts...)
		if err != nil {
			return nil, err
		}
		return &tailDemo{r: r, values: make([]float64, block), domain: make([]int64, block)}, nil
	case "multi":
		signals := make([]*signal.Signal, len(gens))
		for i, g := range gens {
			signals[i] = g.value
		}
		r, err := reader.NewMultiReader[float64, int64](signals, opts...)
		if err != nil {
			return nil, err
		}
		values := make([][]float64, len(gens))
		for i := range values {
			values[i] = make([]float64, block)
		}
		slog.Info("Multi reader configured",
			"common_rate", r.CommonSampleRate(),
			"dividers", r.Dividers())
		return &multiDemo{r: r, values: values, count: block}, nil
	case "packet":
		r, err := reader.NewPacketReader(gens[0].value, opts...)
		if err != nil {
			return nil, err
		}
		return &packetDemo{r: r}, nil
	default:
		r, err := reader.NewStreamReader[float64, int64](gens[0].value, opts...)
		if err != nil {
			return nil, err
		}
		return &streamDemo{r: r, values: make([]float64, block), domain: make([]int64, block)}, nil
	}
}

type streamDemo struct {
	r      *reader.StreamReader[float64, int64]
	values []float64
	domain []int64
}

func (d *streamDemo) read(timeout time.Duration) (int, reader.ReaderStatus, error) {
	return d.r.ReadWithDomain(d.values, d.domain, timeout)
}

func (d *streamDemo) ports() []*signal.InputPort { return []*signal.InputPort{d.r.InputPort()} }
func (d *streamDemo) IsValid() bool                { return d.r.IsValid() }
func (d *streamDemo) Close() error                 { return d.r.Close() }

type tailDemo struct {
	r      *reader.TailReader[float64, int64]
	values []float64
	domain []int64
}

func (d *tailDemo) read(timeout time.Duration) (int, reader.ReaderStatus, error) {
	// the tail reader does not consume; pace it like a polling display
	time.Sleep(timeout)
	return d.r.ReadWithDomain(d.values, d.domain, 0)
}

func (d *tailDemo) ports() []*signal.InputPort { return []*signal.InputPort{d.r.InputPort()} }
func (d *tailDemo) IsValid() bool                { return d.r.IsValid() }
func (d *tailDemo) Close() error                 { return d.r.Close() }

type multiDemo struct {
	r      *reader.MultiReader[float64, int64]
	values [][]float64
	count  int
}

func (d *multiDemo) read(timeout time.Duration) (int, reader.ReaderStatus, error) {
	n, status, err := d.r.Read(d.values, d.count, timeout)
	return n, status.ReaderStatus, err
}

func (d *multiDemo) ports() []*signal.InputPort { return d.r.InputPorts() }
func (d *multiDemo) IsValid() bool                { return d.r.IsValid() }
func (d *multiDemo) Close() error                 { return d.r.Close() }

type packetDemo struct {
	r *reader.PacketReader
}

func (d *packetDemo) read(timeout time.Duration) (int, reader.ReaderStatus, error) {
	p := d.r.ReadWithTimeout(timeout)
	status := reader.ReaderStatus{Valid: d.r.IsValid()}
	switch pk := p.(type) {
	case *packet.DataPacket:
		if dom := pk.Domain(); dom != nil {
			status.Offset, status.HasOffset = dom.Offset(), true
		}
		return pk.SampleCount(), status, nil
	case *packet.EventPacket:
		status.ReadStatus = reader.Event
		status.EventPacket = pk
	}
	return 0, status, nil
}

func (d *packetDemo) ports() []*signal.InputPort { return []*signal.InputPort{d.r.InputPort()} }
func (d *packetDemo) IsValid() bool                { return d.r.IsValid() }
func (d *packetDemo) Close() error                 { return d.r.Close() }

// readLoop reads until ctx ends or the reader is invalidated. report runs with
// every progress log.
func readLoop(ctx context.Context, rd demoReader, timeout time.Duration, report func()) error {
	var samples, events, reads int64
	lastReport := time.Now()

	for ctx.Err() == nil {
		n, status, err := rd.read(timeout)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if !status.Valid {
			slog.Warn("Reader became invalid, stopping")
			return nil
		}
		reads++
		samples += int64(n)
		if status.ReadStatus == reader.Event {
			events++
			slog.Info("Event received", "event", status.EventPacket.ID())
		}

		if time.Since(lastReport) >= progressInterval {
			attrs := []any{"reads", reads, "samples", samples, "events", events}
			if status.HasOffset {
				attrs = append(attrs, "first_sample_time", formatTick(status.Offset))
			}
			slog.Info("Read progress", attrs...)
			report()
			lastReport = time.Now()
		}
	}

	slog.Info("Reader stopped", "reads", reads, "samples", samples, "events", events)
	return nil
}
