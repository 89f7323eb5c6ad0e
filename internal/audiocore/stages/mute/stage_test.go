package mute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkmicro/audiocore/internal/audiocore"
)

func TestNoteUnderflowArmsCountdownOnce(t *testing.T) {
	t.Parallel()

	s := NewWithSampleRate(16000)
	require.NoError(t, s.Init(audiocore.StageConfig{SamplesPerPacket: 160}))
	assert.Zero(t, s.Remaining())

	s.NoteUnderflow(1)
	assert.Positive(t, s.Remaining())

	in := make([]byte, 10)
	for i := range in {
		in[i] = 0xAB
	}
	out := make([]byte, 10)

	reload := s.Remaining()
	for i := 0; i < reload; i++ {
		n, err := s.Process(nil, in, len(in), out)
		require.NoError(t, err)
		assert.Equal(t, len(in), n)
		for _, b := range out {
			assert.Equal(t, byte(0), b)
		}
	}
	assert.Zero(t, s.Remaining())

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

func TestNoteUnderflowIgnoresRepeatedZero(t *testing.T) {
	t.Parallel()

	s := NewWithSampleRate(16000)
	require.NoError(t, s.Init(audiocore.StageConfig{SamplesPerPacket: 160}))
	s.NoteUnderflow(0)
	s.NoteUnderflow(0)
	assert.Zero(t, s.Remaining())
}

func TestNbPacketsInXMs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, nbPacketsInXMs(30, 160, 16000))
	assert.Equal(t, 1, nbPacketsInXMs(30, 0, 16000))
}
