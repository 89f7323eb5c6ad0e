package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
)

func pack16(vals []int16) []byte {
	buf := make([]byte, 2*len(vals))
	for i, v := range vals {
		buf[2*i] = byte(uint16(v))
		buf[2*i+1] = byte(uint16(v) >> 8)
	}
	return buf
}

func unpack16(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}

func TestMuteRampsFactorToZero(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, Packed: true, ChannelCount: 1}
	s := New()
	require.NoError(t, s.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 160}))

	_, err := s.Ctrl(CmdMute, 0)
	require.NoError(t, err)

	in := pack16([]int16{10000, 10000, 10000, 10000})
	out := make([]byte, len(in))

	for i := 0; i < 5000; i++ {
		_, err := s.Process(nil, in, len(in), out)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0, s.Factor(), 1e-9)

	_, err = s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	for _, v := range unpack16(out) {
		assert.Equal(t, int16(0), v)
	}
}

func TestIncreaseDecreaseClampAndSlew(t *testing.T) {
	t.Parallel()

	fmt16 := audiocore.SampleFormat{BitDepth: 16, Packed: true, ChannelCount: 1}
	s := New()
	require.NoError(t, s.Init(audiocore.StageConfig{Input: fmt16, Output: fmt16, SamplesPerPacket: 10}))

	for i := 0; i < 20; i++ {
		_, _ = s.Ctrl(CmdIncrease, 0)
	}
	assert.InDelta(t, 1.0, s.threshold, 1e-9)

	for i := 0; i < 20; i++ {
		_, _ = s.Ctrl(CmdDecrease, 0)
	}
	assert.InDelta(t, 0.0, s.threshold, 1e-9)

	_, _ = s.Ctrl(CmdIncrease, 0)
	_, _ = s.Ctrl(CmdIncrease, 0)
	in := pack16([]int16{1000})
	out := make([]byte, 2)
	prev := s.Factor()
	_, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	// The factor starts at 1.0, above the 0.2 threshold, so one packet
	// slews it down by one step.
	assert.InDelta(t, prev-slewStep, s.Factor(), 1e-9)
}

func TestGetFactorScaled(t *testing.T) {
	t.Parallel()

	s := New()
	v, err := s.Ctrl(CmdGetFactor, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(10000), v)
}

func TestProcess32FastPath(t *testing.T) {
	t.Parallel()

	fmt32 := audiocore.SampleFormat{BitDepth: 32, Packed: false, ChannelCount: 1}
	s := New()
	require.NoError(t, s.Init(audiocore.StageConfig{Input: fmt32, Output: fmt32, SamplesPerPacket: 10}))
	_, _ = s.Ctrl(CmdMute, 0)
	for i := 0; i < 5000; i++ {
		s.slew()
	}

	in := make([]byte, 4)
	in[0], in[1], in[2], in[3] = 0x00, 0x10, 0x00, 0x00
	out := make([]byte, 4)
	n, err := s.Process(nil, in, 4, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)
}
