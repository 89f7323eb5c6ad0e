package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
)

func sineSamples(n int, freq, rate float64, amp int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(float64(amp) * math.Sin(2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func packInt16(samples []int32) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		buf[2*i] = byte(uint16(s))
		buf[2*i+1] = byte(uint16(s) >> 8)
	}
	return buf
}

func unpackInt16(data []byte) []int32 {
	n := len(data) / 2
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
	}
	return out
}

func TestInterpolateThenDecimateRoundTrip(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, Packed: true, ChannelCount: 1}

	up := New(3, 1)
	err := up.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 320})
	require.NoError(t, err)

	down := New(1, 2)
	err = down.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 960})
	require.NoError(t, err)

	samples := sineSamples(320, 1000, 32000, 20000)
	in := packInt16(samples)

	mid := make([]byte, 4*len(in))
	n, err := up.Process(nil, in, len(in), mid)
	require.NoError(t, err)
	assert.Equal(t, 320*3*2, n)

	out := make([]byte, n)
	n2, err := down.Process(nil, mid[:n], n, out)
	require.NoError(t, err)
	assert.Equal(t, (320*3/2)*2, n2)

	result := unpackInt16(out[:n2])
	require.Len(t, result, 480)

	// Steady-state middle of the buffer should still look like a 1kHz
	// tone at roughly the original amplitude; the filters' group delay
	// only disturbs the edges.
	var peak int32
	for _, s := range result[100:380] {
		if s > peak {
			peak = s
		}
	}
	assert.Greater(t, peak, int32(10000))
	assert.Less(t, peak, int32(25000))
}

func TestGateDiscardKeepsDelayLineWarmWithoutOutput(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, Packed: true, ChannelCount: 1}
	s := New(2, 1)
	require.NoError(t, s.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 160}))

	open := true
	s.WithGate(func() bool { return open })

	in := packInt16(sineSamples(160, 440, 16000, 15000))
	out := make([]byte, 4*len(in))

	open = false
	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	open = true
	n, err = s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, 160*2*2, n)
}

func TestExtraQueueSizeOnlyForNetUpsampling(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, ChannelCount: 2}

	up := New(4, 1)
	require.NoError(t, up.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 100}))
	assert.Positive(t, up.ExtraQueueSize())

	down := New(1, 4)
	require.NoError(t, down.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 100}))
	assert.Zero(t, down.ExtraQueueSize())
}

func TestUnsupportedRatioRejected(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, ChannelCount: 1}
	s := New(5, 1)
	err := s.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 100})
	assert.Error(t, err)
}
