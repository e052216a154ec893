package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openDAQ/openDAQ-sub014/reader"
)

func TestValidateFlags(t *testing.T) {
	valid := func() *CLIConfig {
		return &CLIConfig{Reader: "stream", Signals: 2, Rate: 1000, BlockSize: 100}
	}
	require.NoError(t, validateFlags(valid()))

	tests := []struct {
		name   string
		mutate func(*CLIConfig)
	}{
		{"unknown reader", func(c *CLIConfig) { c.Reader = "fast" }},
		{"no signals", func(c *CLIConfig) { c.Signals = 0 }},
		{"rate too high", func(c *CLIConfig) { c.Rate = 2_000_000 }},
		{"empty block", func(c *CLIConfig) { c.BlockSize = 0 }},
		{"log level", func(c *CLIConfig) { c.LogLevel = "chatty" }},
		{"missing config", func(c *CLIConfig) { c.ConfigPath = "does-not-exist.yaml" }},
		{"negative duration", func(c *CLIConfig) { c.Duration = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validateFlags(cfg))
		})
	}
}

func TestGenerator_ReadBack(t *testing.T) {
	g, err := newGenerator("ai0", 1000, 1_500_250)
	require.NoError(t, err)
	defer g.remove()

	r, err := reader.NewStreamReader[float64, int64](g.value)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	require.NoError(t, g.send(300))

	values := make([]float64, 300)
	domain := make([]int64, 300)
	n, status, err := r.ReadWithDomain(values, domain, 0)
	require.NoError(t, err)
	require.Equal(t, 300, n)

	assert.Equal(t, int64(1_500_000), domain[0], "start aligns to the sample period")
	assert.Equal(t, int64(1_501_000), domain[1])
	assert.InDelta(t, 0.0, values[0], 1e-9)
	assert.InDelta(t, 1.0, values[250], 1e-9, "a quarter second is the sine peak")
	assert.Equal(t, "1970-01-01T00:00:01.5Z", formatTick(status.Offset))
}
