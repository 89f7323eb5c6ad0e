package cdcresample

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBypassIsOneFrameDelayLine(t *testing.T) {
	t.Parallel()

	e := NewEngine(1, 10)
	in := []int32{1, 2, 3, 4}
	out := e.Process(in, 4)
	require.Len(t, out, 4)
	assert.Equal(t, []int32{0, 1, 2, 3}, out)

	out2 := e.Process([]int32{5, 6, 7, 8}, 4)
	assert.Equal(t, []int32{4, 5, 6, 7}, out2)
}

func TestAddSampleInsertsExactlyOneExtraFrame(t *testing.T) {
	t.Parallel()

	e := NewEngine(1, 4)
	e.Start(CorrectionAdd)

	out := e.Process([]int32{10, 20, 30, 40}, 4)
	require.Len(t, out, 5)
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, uint32(1), e.InflatedPackets)
}

func TestRemoveSampleDropsExactlyOneFrame(t *testing.T) {
	t.Parallel()

	e := NewEngine(1, 4)
	e.Start(CorrectionRemove)

	out := e.Process([]int32{10, 20, 30, 40}, 4)
	require.Len(t, out, 3)
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, uint32(1), e.DeflatedPackets)
}

func TestEpisodeSpanningMultiplePackets(t *testing.T) {
	t.Parallel()

	e := NewEngine(2, 6)
	e.Start(CorrectionAdd)

	out1 := e.Process([]int32{1, 1, 2, 2}, 2)
	assert.Len(t, out1, 4)
	assert.Equal(t, StateRunning, e.State())

	out2 := e.Process([]int32{3, 3, 4, 4}, 2)
	assert.Len(t, out2, 4)
	assert.Equal(t, StateRunning, e.State())

	out3 := e.Process([]int32{5, 5, 6, 6}, 2)
	assert.Len(t, out3, 6)
	assert.Equal(t, StateIdle, e.State())
}
