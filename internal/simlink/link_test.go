package simlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/fallback"
)

func TestChannelTickSweepsWithinBounds(t *testing.T) {
	c := NewChannel(20, 0)
	for i := 0; i < 100; i++ {
		raw, received := c.Tick()
		assert.GreaterOrEqual(t, raw, uint8(rssiFloorCode))
		assert.LessOrEqual(t, raw, uint8(rssiCeilCode))
		assert.True(t, received, "rejectEvery=0 disables frame loss")
	}
}

func TestChannelRejectsFramesOnSchedule(t *testing.T) {
	c := NewChannel(20, 5)
	lost := 0
	for i := 0; i < 50; i++ {
		_, received := c.Tick()
		if !received {
			lost++
		}
	}
	assert.Equal(t, 10, lost)
}

func TestSampleAndFeedUpdatesFallbackController(t *testing.T) {
	pool := audiocore.NewPool(make([]byte, 1<<16))
	cs := &audiocore.MutexCriticalSection{}
	noop := func() error { return nil }
	producer := audiocore.NewEndpoint("p", audiocore.RoleProducer,
		audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: 8},
		func(buf []byte) (int, error) { return 0, nil }, noop, noop)
	consumer := audiocore.NewEndpoint("c", audiocore.RoleConsumer,
		audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: 8},
		func(buf []byte) (int, error) { return len(buf), nil }, noop, noop)
	pl, err := audiocore.NewPipeline(pool, cs, "link-test", producer, consumer, nil, audiocore.Config{}, nil)
	require.NoError(t, err)

	ctrl := fallback.DefaultConfig()
	ctrl.IsTxDevice = true
	require.NoError(t, ctrl.Init(audiocore.StageConfig{Pipeline: pl}))

	c := NewChannel(20, 0)
	require.NotPanics(t, func() { c.SampleAndFeed(ctrl) })

	info := c.CCAInfo()
	assert.Equal(t, uint32(1), info.CCAEventCount)
}
