package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []Header{
		{TXQueueLevelHigh: false, Fallback: false, PayloadSize: 0},
		{TXQueueLevelHigh: true, Fallback: false, PayloadSize: 120},
		{TXQueueLevelHigh: false, Fallback: true, PayloadSize: 255},
		{TXQueueLevelHigh: true, Fallback: true, PayloadSize: 64},
	}

	for _, h := range cases {
		want := h
		buf := make([]byte, 2)
		want.Encode(buf)

		got, ok := Decode(buf)
		require.True(t, ok)
		assert.Equal(t, want.TXQueueLevelHigh, got.TXQueueLevelHigh)
		assert.Equal(t, want.Fallback, got.Fallback)
		assert.Equal(t, want.PayloadSize, got.PayloadSize)
	}
}

func TestHeaderDecodeDetectsCorruption(t *testing.T) {
	t.Parallel()

	h := Header{TXQueueLevelHigh: true, PayloadSize: 42}
	buf := make([]byte, 2)
	h.Encode(buf)

	buf[1] ^= 0xFF // flip the payload size byte, CRC no longer matches

	_, ok := Decode(buf)
	assert.False(t, ok)
}

func TestHeaderDecodeStableOnZeroed(t *testing.T) {
	t.Parallel()

	got, ok := Decode([]byte{0x00, 0x00})
	assert.True(t, ok)
	assert.Equal(t, Header{}, got)
}

func TestCRC4ITUDeterministic(t *testing.T) {
	t.Parallel()

	data := []byte{0xA5, 0x3C}
	a := CRC4ITU(data)
	b := CRC4ITU(data)
	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a, uint8(0x0F))
}
