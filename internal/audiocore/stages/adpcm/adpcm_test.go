package adpcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeImpulseMono(t *testing.T) {
	t.Parallel()

	var enc, dec State
	enc.Init()
	dec.Init()

	samples := make([]int16, 80)
	samples[0] = 32767

	decoded := make([]int16, 80)
	for i, s := range samples {
		n := enc.Encode(s)
		decoded[i] = dec.Decode(n)
	}

	step0 := stepSizeTable[0]
	assert.LessOrEqual(t, abs32(int32(decoded[0])-int32(samples[0])), step0)

	for i := 2; i < len(decoded); i++ {
		assert.LessOrEqual(t, abs16(decoded[i]), abs16(decoded[i-1])+int16(stepSizeTable[0]))
	}
	assert.LessOrEqual(t, dec.Index, 10)
}

func TestDecodeMatchesEncoderState(t *testing.T) {
	t.Parallel()

	var enc, dec State
	enc.Init()
	dec.Init()

	for i := 0; i < 10000; i++ {
		s := int16((i*37)%16000 - 8000)
		n := enc.Encode(s)
		got := dec.Decode(n)
		assert.Equal(t, enc.Predicted, got)
		assert.Equal(t, enc.Index, dec.Index)
	}
}

func TestBoundedDriftOverTenThousandSamples(t *testing.T) {
	t.Parallel()

	var st State
	st.Init()

	for i := 0; i < 10000; i++ {
		x := int16((i*991)%32000 - 16000)
		n := st.Encode(x)
		_ = n
		diff := abs32(int32(st.Predicted) - int32(x))
		require.LessOrEqual(t, diff, int32(40000))
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func abs16(v int16) int16 {
	if v < 0 {
		return -v
	}
	return v
}
