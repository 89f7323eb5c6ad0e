// Package cdcpll implements clock-drift compensation variant 2 of spec
// §4.10: instead of resampling the audio itself, it nudges a platform
// audio PLL's fractional-N register to speed up or slow down sample
// consumption, grounded on
// original_source/core/audio/processing/sac_cdc_pll.c. Unlike
// cdcresample, this stage never touches the audio payload — Process is
// a pass-through whose only effect is the HAL call.
package cdcpll

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/metrics"
)

const (
	decimalFactor      = 1000
	integratorFactor   = 5
	driftThreshold     = decimalFactor / 4
	maxFracnOffset     = decimalFactor / 2
	errorDivisor       = decimalFactor / 3
	queueArraySize     = 2000
	defaultExtraQueue  = 3
	queueLowThreshold  = 1
)

// HAL is the platform hook this stage drives: get/set the audio PLL's
// fractional-N register.
type HAL interface {
	GetFracn() int32
	SetFracn(int32)
}

// Control command identifiers, spec §4.10.
const (
	CmdIncrease uint32 = iota
	CmdDecrease
	CmdSetTargetQueueSize
)

// Stage tracks a rolling average of the consumer queue's load and
// steers the PLL to hold it near queueSize packets.
type Stage struct {
	hal HAL

	channels     int
	sampleAmount int
	queueSize    int
	queueLimit   int

	avgArr       []int32
	avgIdx       int
	avgSum       int64
	avgVal       int64
	prevAvgVal   int64
	avgValDelta  int64
	targetQueue  int64
	errAcc       int64
	pllOffset    int32
	queueHigh    bool
	queueLow     bool
	txHighCount  uint8

	pipeline *audiocore.Pipeline
	metrics  *metrics.Collector
}

// WithMetrics wires a Prometheus collector into this stage; nil (the
// default) keeps every recording call a no-op.
func (s *Stage) WithMetrics(m *metrics.Collector) *Stage {
	s.metrics = m
	return s
}

func (s *Stage) pipelineLabel() string {
	if s.pipeline == nil {
		return "unknown"
	}
	return s.pipeline.Name
}

// New builds a CDC-PLL stage driven by hal.
func New(hal HAL) *Stage {
	return &Stage{hal: hal, avgArr: make([]int32, queueArraySize)}
}

func (s *Stage) Name() string { return "cdc-pll" }

func (s *Stage) ExtraQueueSize() int { return defaultExtraQueue }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	s.channels = cfg.Input.ChannelCount
	if s.channels == 0 {
		s.channels = 1
	}
	s.sampleAmount = cfg.SamplesPerPacket
	if s.sampleAmount <= 0 {
		s.sampleAmount = 1
	}
	s.pipeline = cfg.Pipeline
	if cfg.Pipeline != nil {
		s.queueSize = cfg.Pipeline.ConsumerQueueSize()
	}
	s.queueLimit = s.queueSize
	s.targetQueue = int64(s.queueSize) * int64(s.sampleAmount) * decimalFactor
	s.resetQueueAvg()
	return nil
}

func (s *Stage) resetQueueAvg() {
	s.avgIdx = 0
	s.avgVal = s.targetQueue
	s.prevAvgVal = s.targetQueue
	s.avgValDelta = 0
	for i := range s.avgArr {
		s.avgArr[i] = int32(s.queueSize)
	}
	s.avgSum = int64(s.queueSize) * queueArraySize
}

func (s *Stage) Ctrl(cmd, arg uint32) (uint32, error) {
	switch cmd {
	case CmdIncrease:
		s.hal.SetFracn(s.hal.GetFracn() + 1)
	case CmdDecrease:
		s.hal.SetFracn(s.hal.GetFracn() - 1)
	case CmdSetTargetQueueSize:
		if int(arg) <= s.queueSize && arg > 0 {
			s.targetQueue = int64(arg) * int64(s.sampleAmount) * decimalFactor
		}
	}
	return 0, nil
}

// Process never alters the payload; it runs the PLL-steering control
// loop as a side effect and copies the input through unchanged.
func (s *Stage) Process(hdr *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if s.pipeline != nil && hdr != nil {
		s.tick(hdr)
		if s.metrics != nil {
			s.metrics.RecordCDCFracnOffset(s.pipelineLabel(), s.pllOffset)
		}
	}
	return copy(out, in[:inSize]), nil
}

func (s *Stage) tick(hdr *audiocore.Header) {
	currentFracn := s.hal.GetFracn()

	s.updateQueueAvg()

	if s.queueHigh {
		s.hal.SetFracn(s.fracnDefault() + maxFracnOffset)
		s.pllOffset = maxFracnOffset
		return
	}

	if hdr.TXQueueLevelHigh {
		if int(s.txHighCount) > s.queueSize-2 && abs32(s.pllOffset) > 0 {
			s.hal.SetFracn(currentFracn - s.pllOffset)
			s.pllOffset = 0
		}
		s.txHighCount++
		return
	}

	s.txHighCount = 0
	if s.queueLow {
		s.hal.SetFracn(s.fracnDefault() - maxFracnOffset)
		s.pllOffset = -maxFracnOffset
		return
	}

	if s.avgIdx == 0 {
		if abs64(s.avgValDelta) < driftThreshold {
			s.errAcc += s.errorValue()
			if s.pllOffset > 0 && s.errAcc > integratorFactor*decimalFactor {
				s.pllOffset = 0
				s.errAcc = 0
			} else if s.pllOffset < 0 && s.errAcc < -integratorFactor*decimalFactor {
				s.pllOffset = 0
				s.errAcc = 0
			}
		} else {
			s.errAcc = 0
		}
		s.adjustLatency()
	}
}

// fracnDefault assumes a HAL default of 0 offset baseline; HAL
// implementations that need a nonzero default should fold it into
// GetFracn/SetFracn's own baseline.
func (s *Stage) fracnDefault() int32 { return 0 }

func (s *Stage) errorValue() int64 {
	return s.avgVal - s.targetQueue
}

func (s *Stage) adjustLatency() {
	currentOffset := s.pllOffset
	offset := s.errorValue() / errorDivisor
	if offset > maxFracnOffset {
		offset = maxFracnOffset
	} else if offset < -maxFracnOffset {
		offset = -maxFracnOffset
	}
	s.pllOffset = int32(offset)

	adjust := s.pllOffset - currentOffset
	current := s.hal.GetFracn()
	s.hal.SetFracn(current + adjust)
}

func (s *Stage) updateQueueAvg() {
	bufferedSamples := 0
	if s.pipeline != nil {
		bufferedSamples = s.pipeline.SamplesBufferedSize()
	}
	currentQueueLength := int32(bufferedSamples / (s.channels * s.sampleAmount))

	s.queueHigh = int(currentQueueLength) > s.queueLimit-2
	s.queueLow = currentQueueLength <= queueLowThreshold

	s.avgSum -= int64(s.avgArr[s.avgIdx])
	s.avgArr[s.avgIdx] = currentQueueLength
	s.avgSum += int64(currentQueueLength)
	s.avgVal = int64(s.sampleAmount) * ((s.avgSum * decimalFactor) / queueArraySize)

	s.avgIdx++
	if s.avgIdx >= queueArraySize {
		s.avgIdx = 0
		s.avgValDelta = s.avgVal - s.prevAvgVal
		s.prevAvgVal = s.avgVal
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// Stats mirrors sac_cdc_pll_get_stats: target/avg queue size, current
// error and delta (all in packets), current PLL value and offset.
type Stats struct {
	TargetQueueSize int64
	AvgQueueSize    int64
	QueueSizeError  int64
	AvgDelta        int64
	CurrentFracn    int32
	FracnOffset     int32
}

func (s *Stage) Stats() Stats {
	scale := int64(s.sampleAmount) * decimalFactor
	return Stats{
		TargetQueueSize: s.targetQueue / scale,
		AvgQueueSize:    s.avgVal / scale,
		QueueSizeError:  s.errorValue() / scale,
		AvgDelta:        s.avgValDelta / scale,
		CurrentFracn:    s.hal.GetFracn(),
		FracnOffset:     s.pllOffset,
	}
}
