package packing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack32To24GoldenVector(t *testing.T) {
	t.Parallel()

	samples := []int32{0x00ABCDEF, 0x00123456, 0x00789ABC, 0x00DEF012}
	want := []byte{0xEF, 0xCD, 0xAB, 0x56, 0x34, 0x12, 0xBC, 0x9A, 0x78, 0x12, 0xF0, 0xDE}

	got := Pack32To24(samples)
	require.Len(t, got, 12)
	assert.Equal(t, want, got)
}

func TestUnpack24RoundTrip(t *testing.T) {
	t.Parallel()

	cases := []int32{0, 1, -1, 0x7FFFFF, -0x800000, 12345, -54321}
	for _, x := range cases {
		packed := Pack24([]int32{x & 0xFFFFFF})
		got := Unpack24(packed, 1)
		want := SignExtend(x&0xFFFFFF, 24)
		assert.Equal(t, want, got[0])
	}
}

func TestUnpack18RoundTripAndSignExtend(t *testing.T) {
	t.Parallel()

	x := int32(-100)
	shifted := x >> codecWordShift
	packed := PackN([]int32{shifted}, 18)
	got := Unpack18(packed, 1)
	want := SignExtend(shifted, 18) << codecWordShift
	assert.Equal(t, want, got[0])

	// bit 17 sign-extends into bits 18..31.
	v := SignExtend(1<<17, 18)
	assert.Negative(t, v)
}

func TestPackMTo16ArithmeticShift(t *testing.T) {
	t.Parallel()

	samples := []int32{0x00ABCD00, -0x00800000}
	out := PackMTo16(samples, 24)
	require.Len(t, out, 4)

	got0 := int16(uint16(out[0]) | uint16(out[1])<<8)
	assert.Equal(t, int16(samples[0]>>8), got0)
}

func TestScalePacked24To16(t *testing.T) {
	t.Parallel()

	samples := []int32{100, -200, 300}
	packed := Pack24(samples)
	out := ScalePacked24To16(packed, len(samples))
	require.Len(t, out, 6)
	for i, s := range samples {
		got := int16(uint16(out[2*i]) | uint16(out[2*i+1])<<8)
		assert.Equal(t, int16(s>>8), got)
	}
}
