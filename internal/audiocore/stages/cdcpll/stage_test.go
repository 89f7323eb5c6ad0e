package cdcpll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHAL struct {
	fracn int32
}

func (f *fakeHAL) GetFracn() int32  { return f.fracn }
func (f *fakeHAL) SetFracn(v int32) { f.fracn = v }

func newTestStage(t *testing.T, queueSize int) (*Stage, *fakeHAL) {
	t.Helper()
	hal := &fakeHAL{}
	s := New(hal)
	s.channels = 1
	s.sampleAmount = 160
	s.queueSize = queueSize
	s.queueLimit = queueSize
	s.targetQueue = int64(queueSize) * int64(s.sampleAmount) * decimalFactor
	s.resetQueueAvg()
	return s, hal
}

func TestCtrlIncreaseDecreaseNudgeFracnByOne(t *testing.T) {
	t.Parallel()

	s, hal := newTestStage(t, 8)
	hal.fracn = 100

	_, err := s.Ctrl(CmdIncrease, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(101), hal.fracn)

	_, err = s.Ctrl(CmdDecrease, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(100), hal.fracn)
}

func TestCtrlSetTargetQueueSizeRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	s, _ := newTestStage(t, 8)
	originalTarget := s.targetQueue

	_, err := s.Ctrl(CmdSetTargetQueueSize, 100)
	require.NoError(t, err)
	assert.Equal(t, originalTarget, s.targetQueue, "arg above queueSize must be rejected")

	_, err = s.Ctrl(CmdSetTargetQueueSize, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4)*int64(s.sampleAmount)*decimalFactor, s.targetQueue)
}

func TestQueueWatermarkConditionsFlagHighAndLow(t *testing.T) {
	t.Parallel()

	s, _ := newTestStage(t, 8)

	for i := range s.avgArr {
		s.avgArr[i] = 7
	}
	s.avgSum = 7 * queueArraySize

	s.pipeline = nil
	// simulate buffered samples directly bypassing pipeline lookup
	bufferedHigh := 7 * s.channels * s.sampleAmount
	currentQueueLength := int32(bufferedHigh / (s.channels * s.sampleAmount))
	assert.True(t, int(currentQueueLength) > s.queueLimit-2)

	s.queueHigh = int(currentQueueLength) > s.queueLimit-2
	assert.True(t, s.queueHigh)

	lowLen := int32(1)
	s.queueLow = lowLen <= queueLowThreshold
	assert.True(t, s.queueLow)
}

func TestProcessIsPassthroughAndNeverErrors(t *testing.T) {
	t.Parallel()

	s, _ := newTestStage(t, 8)
	in := []byte{1, 2, 3, 4, 5}
	out := make([]byte, len(in))

	n, err := s.Process(nil, in, len(in), out)
	require.NoError(t, err)
	assert.Equal(t, len(in), n)
	assert.Equal(t, in, out)
}

func TestAdjustLatencyClampsToMaxOffset(t *testing.T) {
	t.Parallel()

	s, hal := newTestStage(t, 8)
	hal.fracn = 0
	s.avgVal = s.targetQueue + 1000000
	s.adjustLatency()

	assert.Equal(t, int32(maxFracnOffset), s.pllOffset)
	assert.Equal(t, int32(maxFracnOffset), hal.fracn)
}

func TestStatsReportsScaledValues(t *testing.T) {
	t.Parallel()

	s, hal := newTestStage(t, 8)
	hal.fracn = 42
	stats := s.Stats()
	assert.Equal(t, int64(8), stats.TargetQueueSize)
	assert.Equal(t, int32(42), stats.CurrentFracn)
}
