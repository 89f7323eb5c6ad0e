// Package simlink drives the fallback controller's link-quality inputs
// for a simulated run: a triangle-wave RSSI generator feeds
// linkstats.LQI and linkstats.ConnectStatus the same way a real radio
// driver would after demodulating each frame, and SampleAndFeed pushes
// the resulting averages into a fallback.Controller the way the
// original wireless core's rx ISR calls sac_fallback_set_rx_link_margin
// once per received packet.
package simlink

import (
	"github.com/sparkmicro/audiocore/internal/fallback"
	"github.com/sparkmicro/audiocore/internal/linkstats"
)

// rssiFloorCode / rssiCeilCode bound the simulated channel's raw RSSI
// code (lower is stronger), loosely matching the sub-GHz radios
// the original fallback defaults (50dB threshold, 20dB hysteresis) were
// tuned against.
const (
	rssiFloorCode  = 40  // raw code, closer to 0 is stronger per calculate_normalized_gain
	rssiCeilCode   = 115 // weakestSignalCode
	minTenthDB     = 0
	rnsiFloorTenthDB = 0
)

// Channel simulates a link whose quality walks a triangle wave between
// strong and weak, producing ConnectStatus/LQI-driven samples.
type Channel struct {
	lqi    linkstats.LQI
	status linkstats.ConnectStatus

	step      int
	direction int
	period    int

	rejectEvery int
	frameIdx    int

	cca Info
}

// Info mirrors the CCA counters a real transport would accumulate
// between fallback.Controller polls.
type Info struct {
	FailCount, EventCount uint32
}

// NewChannel builds a channel that sweeps from strong to weak signal
// over period frames and back over the next period frames, rejecting 1
// in rejectEvery frames to
// exercise the connect/disconnect hysteresis. A rejectEvery of 0
// disables rejection.
func NewChannel(period, rejectEvery int) *Channel {
	if period <= 0 {
		period = 200
	}
	c := &Channel{period: period, direction: 1, rejectEvery: rejectEvery}
	c.status.ConnectCount = 4
	c.status.DisconnectCount = 4
	return c
}

// rawCode returns this tick's simulated raw RSSI code, sweeping
// linearly between rssiFloorCode (strong) and rssiCeilCode (weak).
func (c *Channel) rawCode() uint8 {
	span := rssiCeilCode - rssiFloorCode
	code := rssiFloorCode + (c.step*span)/c.period
	c.step += c.direction
	if c.step >= c.period || c.step <= 0 {
		c.direction = -c.direction
	}
	return uint8(code)
}

// outcome decides whether this simulated frame is received or lost,
// per rejectEvery.
func (c *Channel) outcome() linkstats.FrameOutcome {
	c.frameIdx++
	if c.rejectEvery > 0 && c.frameIdx%c.rejectEvery == 0 {
		return linkstats.FrameLost
	}
	return linkstats.FrameReceived
}

// Tick advances the simulated channel by one frame and returns the raw
// RSSI code and whether the frame was considered received, updating
// the channel's running LQI average and connect status.
func (c *Channel) Tick() (raw uint8, received bool) {
	raw = c.rawCode()
	out := c.outcome()
	c.lqi.Update(out, raw, raw, minTenthDB, rnsiFloorTenthDB)
	changed := c.status.Update(out, true, true)
	if changed && c.status.Status == linkstats.Disconnected {
		c.cca.FailCount++
	}
	c.cca.EventCount++
	return raw, out == linkstats.FrameReceived
}

// LinkMarginDB converts the channel's running average RSSI into a
// link-margin value in whole dB, the unit fallback.Controller's
// SetRXLinkMargin expects.
func (c *Channel) LinkMarginDB() uint8 {
	return uint8(c.lqi.AvgRSSITenthDB() / 10)
}

// CCAInfo reports the accumulated CCA-equivalent counters since the
// channel was created.
func (c *Channel) CCAInfo() fallback.Info {
	return fallback.Info{CCAFailCount: c.cca.FailCount, CCAEventCount: c.cca.EventCount}
}

// SampleAndFeed ticks the channel once and reports the resulting link
// margin into ctrl, mirroring a receive ISR calling
// sac_fallback_set_rx_link_margin once per packet.
func (c *Channel) SampleAndFeed(ctrl *fallback.Controller) {
	c.Tick()
	ctrl.SetRXLinkMargin(c.LinkMarginDB())
}
