package mutepacket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTXCollapsesAllZeroPacket(t *testing.T) {
	t.Parallel()

	s := NewTX()
	in := make([]byte, 32)
	out := make([]byte, 32)

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(32), out[0])
}

func TestTXPassesThroughNonZeroPacket(t *testing.T) {
	t.Parallel()

	s := NewTX()
	in := make([]byte, 32)
	in[5] = 0x01
	out := make([]byte, 32)

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

func TestTXPassesThroughOversizedZeroPacket(t *testing.T) {
	t.Parallel()

	s := NewTX()
	in := make([]byte, 300)
	out := make([]byte, 300)

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
}

func TestRXReconstructsMutedPacket(t *testing.T) {
	t.Parallel()

	s := NewRX()
	in := []byte{32}
	out := make([]byte, 32)
	for i := range out {
		out[i] = 0xFF
	}

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestRXPassesThroughNonMarkerPacket(t *testing.T) {
	t.Parallel()

	s := NewRX()
	in := []byte{1, 2, 3, 4}
	out := make([]byte, 4)

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

func TestTXRXRoundTrip(t *testing.T) {
	t.Parallel()

	tx := NewTX()
	rx := NewRX()

	in := make([]byte, 16)
	compacted := make([]byte, 16)
	n, err := tx.Process(nil, in, len(in), compacted)
	require.NoError(t, err)

	out := make([]byte, 16)
	n2, err := rx.Process(nil, compacted, n, out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n2)
	assert.Equal(t, in, out)
}
