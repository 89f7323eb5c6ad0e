// Package linkstats implements the link-quality telemetry the
// fallback controller reads, grounded on
// original_source/core/wireless/link/link_lqi.c (signal-quality
// averaging) and link_connect_status.c (connect/disconnect
// hysteresis). link_utils.h's calculate_normalized_gain supplies the
// raw-RSSI-to-tenths-of-dB conversion.
package linkstats

const (
	weakestSignalCode     = 115
	gainEntryRangeTenthDB = 575
)

// NormalizedGainTenthDB converts a raw RSSI/RNSI code to tenths of dB
// relative to a gain-stage-dependent floor, per calculate_normalized_gain.
func NormalizedGainTenthDB(minTenthDB uint16, raw uint8) uint16 {
	return minTenthDB + uint16(gainEntryRangeTenthDB*(weakestSignalCode-int(raw))/weakestSignalCode)
}

// FrameOutcome mirrors the original's frame_outcome_t.
type FrameOutcome int

const (
	FrameReceived FrameOutcome = iota
	FrameRejected
	FrameLost
	FrameSentACK
	FrameSentACKLost
	FrameSentACKRejected
	FrameWait
)

// Mode selects which counter LQI averaging divides by: Mode1 divides
// by received frames only (skips rejected/lost from the average),
// Mode0 divides by every attempted frame.
type Mode int

const (
	Mode0 Mode = iota
	Mode1
)

// LQI accumulates running RSSI/RNSI totals for link-margin reporting.
type LQI struct {
	Mode Mode

	TotalCount    uint32
	ReceivedCount uint32
	RejectedCount uint32
	LostCount     uint32
	SentCount     uint32
	AckCount      uint32
	NackCount     uint32

	RSSITotal         uint32
	RNSITotal         uint32
	RSSITotalTenthDB  uint32
	RNSITotalTenthDB  uint32

	InstRSSI         uint8
	InstRNSI         uint8
	InstRSSITenthDB  uint16
	InstRNSITenthDB  uint16
}

// Reset zeroes every counter, keeping Mode.
func (l *LQI) Reset() {
	mode := l.Mode
	*l = LQI{Mode: mode}
}

func (l *LQI) count() uint32 {
	if l.Mode == Mode1 {
		return l.ReceivedCount
	}
	return l.TotalCount
}

// AvgRSSITenthDB returns the running average RSSI in tenths of dB.
func (l *LQI) AvgRSSITenthDB() uint16 {
	if l.count() == 0 {
		return 0
	}
	return uint16(l.RSSITotalTenthDB / l.count())
}

// AvgRNSITenthDB returns the running average RNSI in tenths of dB.
func (l *LQI) AvgRNSITenthDB() uint16 {
	if l.count() == 0 {
		return 0
	}
	return uint16(l.RNSITotalTenthDB / l.count())
}

// AvgRSSIRaw returns the running average raw RSSI code.
func (l *LQI) AvgRSSIRaw() uint16 {
	if l.count() == 0 {
		return 0
	}
	return uint16(l.RSSITotal / l.count())
}

// AvgRNSIRaw returns the running average raw RNSI code.
func (l *LQI) AvgRNSIRaw() uint16 {
	if l.count() == 0 {
		return 0
	}
	return uint16(l.RNSITotal / l.count())
}

// Update records one frame outcome's RSSI/RNSI samples, mirroring
// link_lqi_update. minTenthDB/rnsiFloorTenthDB are the current
// gain-loop-stage floors the caller's link layer reports.
func (l *LQI) Update(outcome FrameOutcome, rssi, rnsi uint8, minTenthDB, rnsiFloorTenthDB uint16) {
	l.TotalCount++
	if l.TotalCount == 0 {
		l.Reset()
		return
	}

	switch outcome {
	case FrameReceived, FrameSentACK:
		if outcome == FrameSentACK {
			l.SentCount++
			l.AckCount++
		}
		l.ReceivedCount++
		l.InstRSSI = rssi
		l.InstRNSI = rnsi
		l.InstRNSITenthDB = NormalizedGainTenthDB(minTenthDB, rnsi)
		l.InstRSSITenthDB = NormalizedGainTenthDB(minTenthDB, rssi)
		l.RSSITotalTenthDB += uint32(l.InstRSSITenthDB)
		l.RNSITotalTenthDB += uint32(l.InstRNSITenthDB)
		l.RSSITotal += uint32(rssi)
		l.RNSITotal += uint32(rnsi)
	case FrameRejected:
		l.RejectedCount++
		if l.Mode == Mode0 {
			l.RSSITotalTenthDB += uint32(minTenthDB)
			l.RNSITotalTenthDB += uint32(rnsiFloorTenthDB)
		}
	case FrameLost:
		l.LostCount++
		if l.Mode == Mode0 {
			l.RSSITotalTenthDB += uint32(minTenthDB)
			l.RNSITotalTenthDB += uint32(rnsiFloorTenthDB)
		}
	case FrameSentACKLost, FrameSentACKRejected:
		l.SentCount++
		l.NackCount++
		if l.Mode == Mode0 {
			l.RSSITotalTenthDB += uint32(minTenthDB)
			l.RNSITotalTenthDB += uint32(rnsiFloorTenthDB)
		}
	case FrameWait:
		l.SentCount++
	}
}

// ConnectState mirrors connect_status_t.
type ConnectState int

const (
	Disconnected ConnectState = iota
	Connected
)

// ConnectStatus tracks link connect/disconnect hysteresis: a run of
// ConnectCount good frames promotes Disconnected->Connected; a run of
// DisconnectCount bad frames demotes back, grounded on
// link_connect_status.c.
type ConnectStatus struct {
	ConnectCount    uint32
	DisconnectCount uint32

	receivedCount uint32
	lostCount     uint32
	Status        ConnectState
}

// Update applies one frame outcome, returning true if Status changed.
func (c *ConnectStatus) Update(outcome FrameOutcome, syncStatus, ackEnabled bool) bool {
	old := c.Status

	switch {
	case !syncStatus:
		c.Status = Disconnected
	case ackEnabled:
		switch c.Status {
		case Connected:
			switch outcome {
			case FrameRejected, FrameLost, FrameSentACKLost, FrameSentACKRejected:
				c.lostCount++
				if c.lostCount >= c.DisconnectCount {
					c.Status = Disconnected
					c.receivedCount = 0
					c.lostCount = 0
				}
			case FrameReceived, FrameSentACK:
				c.lostCount = 0
			}
		case Disconnected:
			switch outcome {
			case FrameReceived, FrameSentACK:
				c.receivedCount++
				if c.receivedCount >= c.ConnectCount {
					c.Status = Connected
					c.receivedCount = 0
					c.lostCount = 0
				}
			case FrameRejected, FrameLost, FrameSentACKLost, FrameSentACKRejected:
				c.receivedCount = 0
			}
		}
	default:
		c.Status = Connected
		c.receivedCount = 0
		c.lostCount = 0
	}

	return old != c.Status
}
