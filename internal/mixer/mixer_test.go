package mixer

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcm16(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestNewRejectsOutOfRangeConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{NumInputs: 1, PayloadSize: 4, BitDepth: 16})
	assert.Error(t, err)

	_, err = New(Config{NumInputs: 2, PayloadSize: 4, BitDepth: 8})
	assert.Error(t, err)

	_, err = New(Config{NumInputs: 2, PayloadSize: 1000, BitDepth: 16})
	assert.Error(t, err)
}

func TestMixAveragesTwoInputs(t *testing.T) {
	t.Parallel()

	m, err := New(Config{NumInputs: 2, PayloadSize: 4, BitDepth: 16})
	require.NoError(t, err)

	m.AppendSamples(0, pcm16(100, 200))
	m.AppendSamples(1, pcm16(300, -200))
	require.True(t, m.ReadyToMix())

	out := m.Mix()
	require.Len(t, out, 4)
	assert.Equal(t, int16(200), int16(binary.LittleEndian.Uint16(out[0:2])))
	assert.Equal(t, int16(0), int16(binary.LittleEndian.Uint16(out[2:4])))
}

func TestHandleRemainderShiftsLeftoverBytesForward(t *testing.T) {
	t.Parallel()

	m, err := New(Config{NumInputs: 2, PayloadSize: 4, BitDepth: 16})
	require.NoError(t, err)

	m.AppendSamples(0, pcm16(1, 2, 3, 4))
	m.AppendSamples(1, pcm16(5, 6))
	require.True(t, m.ReadyToMix())

	_ = m.Mix()
	m.HandleRemainder()

	assert.Equal(t, 4, m.inputs[0].size)
	assert.False(t, m.ReadyToMix())
	m.AppendSamples(1, pcm16(7, 8))
	assert.True(t, m.ReadyToMix())
}
