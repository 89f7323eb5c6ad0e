package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	t.Parallel()

	s, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "tx", s.TX.Pipeline.Name)
	assert.Equal(t, 16000, s.TX.Pipeline.SampleRateHz)
	assert.Equal(t, 8, s.TX.Pipeline.QueueSize)
	assert.Equal(t, "resample", s.TX.CDC.Variant)
	assert.True(t, s.RX.Mute.Enabled)
	assert.Equal(t, 30, s.RX.Mute.CoverDurationMillis)
}

func TestValidateCorrectsBadQueueSizeAndVariant(t *testing.T) {
	t.Parallel()

	s := &Settings{}
	s.TX.CDC.Variant = "bogus"
	validate(s)

	assert.Equal(t, 8, s.TX.Pipeline.QueueSize)
	assert.Equal(t, 8, s.RX.Pipeline.QueueSize)
	assert.Equal(t, "resample", s.TX.CDC.Variant)
}

func TestGetReturnsMostRecentLoad(t *testing.T) {
	s, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Same(t, s, Get())
}
