package cpuspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectReturnsUsableBatchSize(t *testing.T) {
	t.Parallel()

	spec := Detect()
	assert.GreaterOrEqual(t, spec.VectorBytes, 8)
	assert.GreaterOrEqual(t, spec.PreferredBatchSamples(), 1)
}

func TestPreferredBatchSamplesNeverZero(t *testing.T) {
	t.Parallel()

	s := Spec{VectorBytes: 0}
	assert.Equal(t, 1, s.PreferredBatchSamples())
}
