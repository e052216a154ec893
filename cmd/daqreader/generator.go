package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openDAQ/openDAQ-sub014/packet"
	"github.com/openDAQ/openDAQ-sub014/pkg/timestamp"
	"github.com/openDAQ/openDAQ-sub014/signal"
)

const (
	epoch         = "1970-01-01T00:00:00Z"
	ticksPerSec   = 1_000_000
	sendInterval  = 10 * time.Millisecond
	sinePeriodSec = 1.0
)

// generator produces a sine wave on a value signal with a linear time domain.
type generator struct {
	value  *signal.Signal
	domain *signal.Signal
	rate   float64
	delta  int64
	start  int64
	sent   int64
	logger *slog.Logger
}

func newGenerator(name string, delta int64, start int64, opts ...signal.SignalOption) (*generator, error) {
	domainDesc, err := packet.NewDataDescriptorBuilder().
		SetName(name + "_time").
		SetSampleType(packet.SampleTypeInt64).
		SetRule(packet.LinearRule(delta, 0)).
		SetTickResolution(packet.Ratio{Num: 1, Den: ticksPerSec}).
		SetOrigin(epoch).
		SetUnit(packet.Unit{Symbol: "s", Name: "second", Quantity: "time"}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("domain descriptor: %w", err)
	}
	valueDesc, err := packet.NewDataDescriptorBuilder().
		SetName(name).
		SetSampleType(packet.SampleTypeFloat64).
		SetUnit(packet.Unit{Symbol: "V", Name: "volt", Quantity: "voltage"}).
		SetValueRange(packet.Range{Low: -1, High: 1}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("value descriptor: %w", err)
	}

	domain, err := signal.NewSignal(name+"_time", domainDesc, opts...)
	if err != nil {
		return nil, err
	}
	value, err := signal.NewSignal(name, valueDesc,
		append([]signal.SignalOption{signal.WithDomainSignal(domain)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &generator{
		value:  value,
		domain: domain,
		rate:   float64(ticksPerSec) / float64(delta),
		delta:  delta,
		start:  start - start%delta,
		logger: slog.Default().With("component", "generator", "signal", name),
	}, nil
}

// send emits n samples continuing the wave.
func (g *generator) send(n int) error {
	dom, err := g.domain.NewDataPacket(n, g.start+g.sent*g.delta)
	if err != nil {
		return err
	}
	values := make([]float64, n)
	for i := range values {
		t := float64(g.sent+int64(i)) / g.rate
		values[i] = math.Sin(2 * math.Pi * t / sinePeriodSec)
	}
	val, err := packet.NewFloat64Packet(g.value.Descriptor(), values)
	if err != nil {
		return err
	}
	val.SetDomain(dom)

	if err := g.domain.SendPacket(dom); err != nil {
		return err
	}
	if err := g.value.SendPacket(val); err != nil {
		return err
	}
	g.sent += int64(n)
	return nil
}

// run sends the samples due by wall clock until ctx is cancelled.
func (g *generator) run(ctx context.Context) error {
	begin := time.Now()
	ticker := time.NewTicker(sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Debug("generator stopped", "samples", g.sent)
			return nil
		case <-ticker.C:
			due := int64(time.Since(begin).Seconds()*g.rate) - g.sent
			if due <= 0 {
				continue
			}
			if err := g.send(int(due)); err != nil {
				return fmt.Errorf("send %s: %w", g.value.LocalID(), err)
			}
		}
	}
}

func (g *generator) remove() {
	g.value.Remove()
	g.domain.Remove()
}

// startTick is the current wall-clock time in domain ticks.
func startTick() (int64, error) {
	return timestamp.ToTicks(time.Now(), 1, ticksPerSec, epoch)
}

// formatTick renders a domain tick of the generated signals.
func formatTick(tick int64) string {
	t, err := timestamp.FromTicks(tick, 1, ticksPerSec, epoch)
	if err != nil {
		return fmt.Sprintf("tick %d", tick)
	}
	return timestamp.Format(t)
}
