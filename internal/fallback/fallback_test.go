package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
)

func newTXController(t *testing.T, queueSize int) *audiocore.Pipeline {
	t.Helper()

	pool := audiocore.NewPool(make([]byte, 1<<16))
	cs := &audiocore.MutexCriticalSection{}
	noop := func() error { return nil }

	producerCfg := audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: queueSize}
	producer := audiocore.NewEndpoint("producer", audiocore.RoleProducer, producerCfg,
		func(buf []byte) (int, error) { return 0, nil }, noop, noop)

	consumerCfg := audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: queueSize}
	consumer := audiocore.NewEndpoint("consumer", audiocore.RoleConsumer, consumerCfg,
		func(buf []byte) (int, error) { return len(buf), nil }, noop, noop)

	pl, err := audiocore.NewPipeline(pool, cs, "fallback-test", producer, consumer, nil, audiocore.Config{}, nil)
	require.NoError(t, err)
	return pl
}

func TestDefaultConfigStartsInFallbackDisconnect(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	c.IsTxDevice = true
	pl := newTXController(t, 8)

	require.NoError(t, c.Init(audiocore.StageConfig{Pipeline: pl}))
	assert.True(t, c.IsActive())
	assert.Equal(t, StateFallbackDisconnect, c.fallbackState)
}

func TestManualModeTracksFlagDirectly(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	c.IsTxDevice = true
	pl := newTXController(t, 8)
	require.NoError(t, c.Init(audiocore.StageConfig{Pipeline: pl}))

	c.SetManualMode(true)
	c.ClearFallbackFlag()
	c.updateState()
	assert.Equal(t, StateNormal, c.fallbackState)

	c.SetFallbackFlag()
	c.updateState()
	assert.Equal(t, StateFallback, c.fallbackState)
}

func TestRXMirrorsHeaderFallbackBit(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	c.IsTxDevice = false
	require.NoError(t, c.Init(audiocore.StageConfig{}))

	hdr := &audiocore.Header{Fallback: true}
	in := make([]byte, 4)
	out := make([]byte, 4)
	_, err := c.Process(hdr, in, len(in), out)
	require.NoError(t, err)
	assert.True(t, c.IsActive())

	hdr.Fallback = false
	_, err = c.Process(hdr, in, len(in), out)
	require.NoError(t, err)
	assert.False(t, c.IsActive())
}

func TestSetFallbackFlagCountsActivationsOnlyOnce(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	c.ClearFallbackFlag()
	assert.Zero(t, c.FallbackCount())

	c.SetFallbackFlag()
	c.SetFallbackFlag()
	assert.Equal(t, uint32(1), c.FallbackCount())
}

func TestIsLinkGoodRequiresBothMetrics(t *testing.T) {
	t.Parallel()

	c := DefaultConfig()
	c.lm.goodCount, c.lm.goodCountThreshold = 5, 5
	c.cca.goodCount, c.cca.goodCountThreshold = 0, 5
	assert.False(t, c.isLinkGood())

	c.cca.goodCount = 5
	assert.True(t, c.isLinkGood())
}
