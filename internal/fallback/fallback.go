// Package fallback implements the spec's link-quality fallback
// controller: a tx-side state machine that trades audio quality for
// robustness when the radio link degrades, and gates a chain's output
// format by whether fallback is currently active. Grounded on
// original_source/core/audio/processing/sac_fallback.c.
package fallback

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/metrics"
)

const (
	bufSizeDecimalFactor = 10
	samplingFreqHz       = 10
	ccaDecimalFactor     = 100
	queueArrayLen        = 3
)

// State is the fallback state machine's current mode.
type State int

const (
	StateNormal State = iota
	StateWaitThreshold
	StateFallback
	StateFallbackDisconnect
)

// Info is the CCA/link telemetry a transport would report; an
// application wires GetInfo to whatever link layer it runs.
type Info struct {
	CCAFailCount     uint32
	CCAEventCount    uint32
}

type linkMarginMetrics struct {
	accumulator        int64
	accumulatorCount    int64
	accumulatorAverage  int64
	goodCount           int
	goodCountThreshold  int
	threshold           int
	thresholdDefault    int
	thresholdHysteresis int
	minPeak             int
}

type ccaMetrics struct {
	failCountCurrent     uint32
	eventCountCurrent    uint32
	failCountStart       uint32
	eventCountStart      uint32
	failCount            uint32
	eventCount           uint32
	failCountAvg         uint64
	failCountPeak        uint64
	failCountThreshold   uint32
	goodCount            int
	goodCountThreshold   int
	badCount             int
	badCountThreshold    int
}

type queueMetrics struct {
	arr      [queueArrayLen]int64
	idx      int
	sum      int64
	avgTenths int64
}

// Controller is a tx or rx fallback stage instance. Build one with
// DefaultConfig, tune the exported fields, then wire it into a
// Pipeline as an audiocore.Stage.
type Controller struct {
	IsTxDevice bool

	LinkMarginThreshold           int
	LinkMarginThresholdHysteresis int
	LinkMarginGoodTimeSec         int

	CCAMaxTryCount          int
	CCATryCountThresholdPerc int
	CCAGoodTimeSec          int
	CCABadTimeSec           float64

	ConsumerBufferLoadThresholdTenths int64

	// GetTick and TickFrequencyHz drive the 10Hz sampling cadence;
	// GetInfo reports live CCA/event counters from the transport.
	GetTick         func() uint64
	TickFrequencyHz uint64
	GetInfo         func() Info

	// OnStateChange, if set, fires whenever the fallback flag flips.
	OnStateChange func(active bool)

	manualMode bool

	fallbackFlag  bool
	fallbackState State
	fallbackCount uint32

	samplingTickStart uint64
	consumerBufSizeT  int64

	cca   ccaMetrics
	lm    linkMarginMetrics
	queue queueMetrics

	pipeline *audiocore.Pipeline
	metrics  *metrics.Collector
}

// SetMetrics wires a Prometheus collector into this controller; nil
// (the default) keeps every recording call a no-op.
func (c *Controller) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

func (c *Controller) pipelineLabel() string {
	if c.pipeline == nil {
		return "unknown"
	}
	return c.pipeline.Name
}

// DefaultConfig mirrors sac_fallback_get_defaults: rx device, 50dB
// link margin threshold with 20dB hysteresis, 5s good time, CCA
// disabled by default, 1.3-packet buffer load threshold.
func DefaultConfig() *Controller {
	return &Controller{
		LinkMarginThreshold:              50,
		LinkMarginThresholdHysteresis:    20,
		LinkMarginGoodTimeSec:            5,
		CCAMaxTryCount:                   0,
		CCATryCountThresholdPerc:         5,
		CCAGoodTimeSec:                   30,
		CCABadTimeSec:                    0.1,
		ConsumerBufferLoadThresholdTenths: 13,
	}
}

func (c *Controller) Name() string { return "fallback" }

func (c *Controller) Init(cfg audiocore.StageConfig) error {
	c.pipeline = cfg.Pipeline
	c.fallbackFlag = true
	c.fallbackState = StateFallbackDisconnect
	c.fallbackCount = 0

	if !c.IsTxDevice {
		return nil
	}

	if cfg.Pipeline == nil {
		return errNilPipeline("fallback: tx device requires a pipeline")
	}
	queueSize := int64(cfg.Pipeline.ConsumerQueueSize())
	c.consumerBufSizeT = queueSize * bufSizeDecimalFactor
	if c.ConsumerBufferLoadThresholdTenths == 0 ||
		c.ConsumerBufferLoadThresholdTenths >= c.consumerBufSizeT ||
		c.consumerBufSizeT == 0 {
		return errBadThreshold("fallback: consumer_buffer_load_threshold_tenths out of range")
	}

	c.lm.goodCountThreshold = c.LinkMarginGoodTimeSec * samplingFreqHz
	c.cca.goodCountThreshold = c.CCAGoodTimeSec * samplingFreqHz
	c.cca.badCountThreshold = int(c.CCABadTimeSec * samplingFreqHz)
	if c.cca.badCountThreshold == 0 {
		c.cca.badCountThreshold = 1
	}
	c.lm.thresholdDefault = c.LinkMarginThreshold
	c.lm.threshold = c.LinkMarginThreshold
	c.lm.thresholdHysteresis = c.LinkMarginThresholdHysteresis
	c.cca.failCountThreshold = uint32(c.CCAMaxTryCount * c.CCATryCountThresholdPerc)
	c.cca.goodCount = c.cca.goodCountThreshold

	c.queue = queueMetrics{}
	c.initLinkStats()
	return nil
}

type errNilPipeline string

func (e errNilPipeline) Error() string { return string(e) }

type errBadThreshold string

func (e errBadThreshold) Error() string { return string(e) }

// Process runs the state machine on tx (stamping the header's
// fallback bit) or mirrors the remote flag on rx; it never alters the
// payload.
func (c *Controller) Process(hdr *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if c.IsTxDevice {
		c.updateState()
		if hdr != nil {
			hdr.Fallback = c.fallbackFlag
		}
	} else if hdr != nil {
		if hdr.Fallback {
			c.SetFallbackFlag()
		} else {
			c.ClearFallbackFlag()
		}
	}
	return copy(out, in[:inSize]), nil
}

// SetLinkMarginGoodTime sets how long (seconds) the link margin must
// stay above threshold before leaving fallback.
func (c *Controller) SetLinkMarginGoodTime(sec uint32) {
	c.lm.goodCountThreshold = int(sec) * samplingFreqHz
}

// SetCCAGoodTime sets how long (seconds) CCA failures must stay below
// threshold before leaving fallback.
func (c *Controller) SetCCAGoodTime(sec uint32) {
	c.cca.goodCountThreshold = int(sec) * samplingFreqHz
}

// SetCCABadTime sets how long (seconds) CCA failures must stay above
// threshold before entering fallback.
func (c *Controller) SetCCABadTime(sec float64) {
	c.cca.badCountThreshold = int(sec * samplingFreqHz)
	if c.cca.badCountThreshold == 0 {
		c.cca.badCountThreshold = 1
	}
}

// SetRXLinkMargin feeds one rx-reported link margin sample (dB) into
// the averaging accumulator; called once per received packet.
func (c *Controller) SetRXLinkMargin(rxLM uint8) {
	c.lm.accumulator += int64(rxLM)
	c.lm.accumulatorCount++
	if int(rxLM) < c.lm.minPeak || c.lm.minPeak == 0 {
		c.lm.minPeak = int(rxLM)
	}
}

// IsActive reports whether fallback mode is currently engaged.
func (c *Controller) IsActive() bool { return c.fallbackFlag }

// SetFallbackFlag forces fallback on, counting the activation.
func (c *Controller) SetFallbackFlag() {
	if !c.fallbackFlag {
		c.fallbackFlag = true
		c.fallbackCount++
		c.metrics.IncFallbackActivation(c.pipelineLabel())
		c.metrics.RecordFallbackState(c.pipelineLabel(), true)
		if c.OnStateChange != nil {
			c.OnStateChange(true)
		}
	}
}

// ClearFallbackFlag forces fallback off.
func (c *Controller) ClearFallbackFlag() {
	if c.fallbackFlag {
		c.fallbackFlag = false
		c.metrics.RecordFallbackState(c.pipelineLabel(), false)
		if c.OnStateChange != nil {
			c.OnStateChange(false)
		}
	}
}

// SetManualMode disables the automatic state machine; the caller
// drives SetFallbackFlag/ClearFallbackFlag directly.
func (c *Controller) SetManualMode(enabled bool) { c.manualMode = enabled }

// FallbackCount returns the number of times fallback has activated.
func (c *Controller) FallbackCount() uint32 { return c.fallbackCount }

func (c *Controller) updateState() {
	if c.manualMode {
		c.initLinkStats()
		if c.fallbackFlag {
			c.fallbackState = StateFallback
		} else {
			c.fallbackState = StateNormal
		}
		return
	}

	if !c.IsTxDevice {
		return
	}

	c.updateConsumerQueueMetrics()
	c.updateLinkStats()

	switch c.fallbackState {
	case StateNormal:
		switch {
		case c.queue.avgTenths == c.consumerBufSizeT:
			c.lm.threshold = c.lm.thresholdDefault
			c.initLinkStats()
			c.SetFallbackFlag()
			c.fallbackState = StateFallbackDisconnect
		case c.queue.avgTenths > c.ConsumerBufferLoadThresholdTenths && !c.fallbackFlag:
			c.initLinkStats()
			c.SetFallbackFlag()
			c.fallbackState = StateWaitThreshold
		case c.cca.badCount >= c.cca.badCountThreshold:
			c.lm.threshold = c.lm.thresholdDefault
			c.initLinkStats()
			c.SetFallbackFlag()
			c.fallbackState = StateWaitThreshold
		}
	case StateWaitThreshold:
		switch {
		case c.queue.avgTenths == c.consumerBufSizeT:
			c.lm.threshold = c.lm.thresholdDefault
			c.fallbackState = StateFallbackDisconnect
		case c.lm.accumulatorAverage > 0:
			c.lm.threshold = int(c.lm.accumulatorAverage)
			if c.lm.threshold > c.lm.thresholdDefault+c.lm.thresholdHysteresis ||
				c.lm.threshold < c.lm.thresholdDefault-c.lm.thresholdHysteresis {
				c.lm.threshold = c.lm.thresholdDefault
			}
			c.fallbackState = StateFallback
			c.resetPeakStats()
		}
	case StateFallback:
		switch {
		case c.queue.avgTenths == c.consumerBufSizeT:
			c.lm.threshold = c.lm.thresholdDefault
			c.fallbackState = StateFallbackDisconnect
		case c.isLinkGood():
			c.ClearFallbackFlag()
			c.fallbackState = StateNormal
			c.resetPeakStats()
		}
	case StateFallbackDisconnect:
		if c.isLinkGood() {
			c.ClearFallbackFlag()
			c.fallbackState = StateNormal
			c.resetPeakStats()
		}
	}
}

func (c *Controller) initLinkStats() {
	c.lm.accumulator = 0
	c.lm.accumulatorCount = 0
	c.lm.accumulatorAverage = 0
	c.lm.goodCount = 0

	if c.GetInfo != nil {
		info := c.GetInfo()
		c.cca.failCountCurrent = info.CCAFailCount
		c.cca.eventCountCurrent = info.CCAEventCount
		c.cca.failCountStart = c.cca.failCountCurrent
		c.cca.eventCountStart = c.cca.eventCountCurrent
	}
	if c.GetTick != nil {
		c.samplingTickStart = c.GetTick()
	}
}

func (c *Controller) updateConsumerQueueMetrics() {
	if c.pipeline == nil || !c.pipeline.ConsumerBufferingComplete() {
		return
	}
	m := &c.queue
	m.sum -= m.arr[m.idx]
	length := int64(c.pipeline.ConsumerQueueLength())
	m.arr[m.idx] = length
	m.sum += length
	m.idx++
	m.avgTenths = (m.sum * bufSizeDecimalFactor) / queueArrayLen
	m.idx %= queueArrayLen
}

func (c *Controller) updateLinkStats() {
	if c.GetTick == nil || c.TickFrequencyHz == 0 {
		return
	}
	if c.GetTick()-c.samplingTickStart >= c.TickFrequencyHz/samplingFreqHz {
		c.samplingTickStart = c.GetTick()
		c.calculateLinkMarginMetrics()
		c.calculateCCAMetrics()
	}
}

func (c *Controller) calculateLinkMarginMetrics() {
	if c.lm.accumulatorCount == 0 {
		return
	}
	c.lm.accumulatorAverage = c.lm.accumulator / c.lm.accumulatorCount
	c.lm.accumulator = 0
	c.lm.accumulatorCount = 0
	c.metrics.RecordFallbackLinkMargin(c.pipelineLabel(), c.lm.accumulatorAverage)

	if c.lm.accumulatorAverage >= int64(c.lm.threshold+c.lm.thresholdHysteresis) && c.fallbackFlag {
		if c.lm.goodCount+1 < c.lm.goodCountThreshold {
			c.lm.goodCount++
		} else {
			c.lm.goodCount = c.lm.goodCountThreshold
		}
	} else {
		c.lm.goodCount = 0
	}
}

func (c *Controller) calculateCCAMetrics() {
	if c.GetInfo == nil {
		return
	}
	info := c.GetInfo()
	c.cca.eventCountCurrent = info.CCAEventCount
	if c.cca.eventCountCurrent < c.cca.eventCountStart {
		c.cca.eventCount = (^uint32(0) - c.cca.eventCountStart) + c.cca.eventCountCurrent
	} else {
		c.cca.eventCount = c.cca.eventCountCurrent - c.cca.eventCountStart
	}
	c.cca.eventCountStart = c.cca.eventCountCurrent

	c.cca.failCountCurrent = info.CCAFailCount
	if c.cca.failCountCurrent < c.cca.failCountStart {
		c.cca.failCount = (^uint32(0) - c.cca.failCountStart) + c.cca.failCountCurrent
	} else {
		c.cca.failCount = c.cca.failCountCurrent - c.cca.failCountStart
	}
	c.cca.failCountStart = c.cca.failCountCurrent

	if c.cca.eventCount > 0 {
		c.cca.failCountAvg = (uint64(c.cca.failCount) * ccaDecimalFactor) / uint64(c.cca.eventCount)
	}
	if c.cca.failCountAvg > c.cca.failCountPeak {
		c.cca.failCountPeak = c.cca.failCountAvg
	}

	if c.cca.failCountAvg <= uint64(c.cca.failCountThreshold) {
		if c.cca.goodCount+1 < c.cca.goodCountThreshold {
			c.cca.goodCount++
		} else {
			c.cca.goodCount = c.cca.goodCountThreshold
		}
		c.cca.badCount = 0
	} else {
		if c.cca.badCount+1 < c.cca.badCountThreshold {
			c.cca.badCount++
		} else {
			c.cca.badCount = c.cca.badCountThreshold
		}
		c.cca.goodCount = 0
	}
}

func (c *Controller) isLinkGood() bool {
	return c.lm.goodCount >= c.lm.goodCountThreshold && c.cca.goodCount >= c.cca.goodCountThreshold
}

func (c *Controller) resetPeakStats() {
	c.lm.minPeak = 0
	c.cca.failCountPeak = 0
	if c.pipeline != nil {
		c.pipeline.ResetConsumerQueuePeak()
	}
}

// Stats is a snapshot of the fallback controller's running metrics,
// formatted for sac_fallback_format_stats-style reporting.
type Stats struct {
	Active                bool
	ActivationCount       uint32
	QueueLengthAvgTenths  int64
	QueueLengthThreshold  int64
	LinkMarginValue       int64
	LinkMarginMinPeak     int
	LinkMarginThreshold   int
	CCAFailCountAvg       uint64
	CCAFailCountPeak      uint64
	CCAFailCountThreshold uint32
}

func (c *Controller) Stats() Stats {
	return Stats{
		Active:                c.fallbackFlag,
		ActivationCount:       c.fallbackCount,
		QueueLengthAvgTenths:  c.queue.avgTenths,
		QueueLengthThreshold:  c.ConsumerBufferLoadThresholdTenths,
		LinkMarginValue:       c.lm.accumulatorAverage,
		LinkMarginMinPeak:     c.lm.minPeak,
		LinkMarginThreshold:   c.lm.threshold,
		CCAFailCountAvg:       c.cca.failCountAvg,
		CCAFailCountPeak:      c.cca.failCountPeak,
		CCAFailCountThreshold: c.cca.failCountThreshold,
	}
}

// ResetStats clears the activation counter and peak statistics.
func (c *Controller) ResetStats() {
	c.fallbackCount = 0
	c.resetPeakStats()
}
