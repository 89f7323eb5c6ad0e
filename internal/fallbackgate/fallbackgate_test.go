package fallbackgate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/fallback"
)

func TestGatesFailSafeOnNilController(t *testing.T) {
	assert.False(t, IsFallbackOn(nil)())
	assert.True(t, IsFallbackOff(nil)())
}

func TestGatesTrackControllerState(t *testing.T) {
	pool := audiocore.NewPool(make([]byte, 1<<16))
	cs := &audiocore.MutexCriticalSection{}
	noop := func() error { return nil }
	producer := audiocore.NewEndpoint("p", audiocore.RoleProducer,
		audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: 8},
		func(buf []byte) (int, error) { return 0, nil }, noop, noop)
	consumer := audiocore.NewEndpoint("c", audiocore.RoleConsumer,
		audiocore.EndpointConfig{ChannelCount: 1, AudioPayloadSize: 320, QueueSize: 8},
		func(buf []byte) (int, error) { return len(buf), nil }, noop, noop)
	pl, err := audiocore.NewPipeline(pool, cs, "gate-test", producer, consumer, nil, audiocore.Config{}, nil)
	require.NoError(t, err)

	ctrl := fallback.DefaultConfig()
	ctrl.IsTxDevice = true
	require.NoError(t, ctrl.Init(audiocore.StageConfig{Pipeline: pl}))

	on, off := IsFallbackOn(ctrl), IsFallbackOff(ctrl)
	assert.Equal(t, ctrl.IsActive(), on())
	assert.Equal(t, !ctrl.IsActive(), off())

	ctrl.SetManualMode(true)
	ctrl.SetFallbackFlag()
	assert.True(t, on())
	assert.False(t, off())
}
