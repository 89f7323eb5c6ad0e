package linkstats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedGainTenthDBWeakestSignal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint16(100), NormalizedGainTenthDB(100, weakestSignalCode))
}

func TestLQIMode1AveragesOverReceivedOnly(t *testing.T) {
	t.Parallel()

	l := &LQI{Mode: Mode1}
	l.Update(FrameReceived, 100, 90, 0, 0)
	l.Update(FrameRejected, 0, 0, 0, 0)
	l.Update(FrameReceived, 100, 90, 0, 0)

	assert.Equal(t, uint32(3), l.TotalCount)
	assert.Equal(t, uint32(2), l.ReceivedCount)
	assert.NotZero(t, l.AvgRSSITenthDB())
}

func TestLQIMode0CountsRejectedTowardAverage(t *testing.T) {
	t.Parallel()

	l := &LQI{Mode: Mode0}
	l.Update(FrameReceived, 100, 90, 50, 50)
	l.Update(FrameRejected, 0, 0, 50, 50)

	assert.Equal(t, uint32(2), l.TotalCount)
	assert.NotZero(t, l.RSSITotalTenthDB)
}

func TestConnectStatusPromotesAfterConnectCount(t *testing.T) {
	t.Parallel()

	c := &ConnectStatus{ConnectCount: 3, DisconnectCount: 2}
	assert.Equal(t, Disconnected, c.Status)

	changed := c.Update(FrameReceived, true, true)
	assert.False(t, changed)
	c.Update(FrameReceived, true, true)
	changed = c.Update(FrameReceived, true, true)
	assert.True(t, changed)
	assert.Equal(t, Connected, c.Status)
}

func TestConnectStatusDemotesAfterDisconnectCount(t *testing.T) {
	t.Parallel()

	c := &ConnectStatus{ConnectCount: 1, DisconnectCount: 2, Status: Connected}

	c.Update(FrameLost, true, true)
	changed := c.Update(FrameLost, true, true)
	assert.True(t, changed)
	assert.Equal(t, Disconnected, c.Status)
}

func TestConnectStatusDisconnectsOnLostSync(t *testing.T) {
	t.Parallel()

	c := &ConnectStatus{ConnectCount: 1, DisconnectCount: 1, Status: Connected}
	changed := c.Update(FrameReceived, false, true)
	assert.True(t, changed)
	assert.Equal(t, Disconnected, c.Status)
}

func TestConnectStatusWithoutAckAlwaysConnected(t *testing.T) {
	t.Parallel()

	c := &ConnectStatus{}
	c.Update(FrameReceived, true, false)
	assert.Equal(t, Connected, c.Status)
}
