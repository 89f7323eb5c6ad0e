package simharness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sparkmicro/audiocore/internal/config"
)

func testSettings() *config.Settings {
	s := &config.Settings{}
	s.TX.Pipeline = config.PipelineConfig{
		Name: "tx", SampleRateHz: 16000, BitDepth: 16, ChannelCount: 1,
		PayloadSamples: 160, QueueSize: 8, DoInitialBuffering: true, UseEncapsulation: true,
	}
	s.TX.Fallback.Enabled = true
	s.TX.Fallback.IsTXDevice = true
	s.TX.CDC.Enabled = true
	s.TX.CDC.Variant = "resample"
	s.TX.CDC.QueueAvgSize = 100
	s.TX.CDC.WindowFrames = 160

	s.RX.Pipeline = config.PipelineConfig{
		Name: "rx", SampleRateHz: 16000, BitDepth: 16, ChannelCount: 1,
		PayloadSamples: 160, QueueSize: 8, DoInitialBuffering: true, UseEncapsulation: true,
	}
	s.RX.Fallback.Enabled = true
	s.RX.Mute.Enabled = true
	s.RX.Mute.CoverDurationMillis = 30
	return s
}

func TestBuildDemoRunsAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	h, err := BuildDemo(testSettings(), Options{TickInterval: time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = h.Run(ctx, 100*time.Millisecond)
	require.NoError(t, err)

	stats := h.Stats()
	require.GreaterOrEqual(t, stats.TX.ConsumerBufferSize, 0)
}

func TestBuildDemoWithPLLVariant(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
	)

	settings := testSettings()
	settings.TX.CDC.Variant = "pll"

	h, err := BuildDemo(settings, Options{TickInterval: time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, h.Run(ctx, 50*time.Millisecond))
}
