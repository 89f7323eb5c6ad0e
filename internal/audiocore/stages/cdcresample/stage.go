package cdcresample

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/packing"
	"github.com/sparkmicro/audiocore/internal/metrics"
)

const (
	decimalFactor         = 100
	defaultQueueAvgSize   = 1000
	defaultWindowFrames   = 1440
	maxQueueOffsetSamples = 3
	defaultExtraQueueSize = 3
)

// Stage wires Engine to the pipeline's buffered-sample count, detecting
// drift from a rolling average of the consumer queue's load and
// triggering insert/remove episodes, spec §4.10 / sac_cdc.c.
type Stage struct {
	channels  int
	queueSize int // configured consumer queue_size, in packets

	queueAvgSize int
	windowFrames int
	avgArr       []int64
	avgIdx       int
	avgSum       int64
	avgVal       int64

	normalQueueSize int64
	maxQueueOffset  int64

	stableCount int

	waitForQueueFull bool

	engine   *Engine
	format   audiocore.SampleFormat
	pipeline *audiocore.Pipeline

	metrics              *metrics.Collector
	prevInflated, prevDeflated uint32
}

// WithMetrics wires a Prometheus collector into this stage; nil (the
// default) keeps every recording call a no-op.
func (s *Stage) WithMetrics(m *metrics.Collector) *Stage {
	s.metrics = m
	return s
}

// New builds a CDC-resample stage; queueAvgSize and windowFrames default
// to the spec's 1000-sample rolling average and 1440-sample resampling
// window when zero.
func New(queueAvgSize, windowFrames int) *Stage {
	if queueAvgSize <= 0 {
		queueAvgSize = defaultQueueAvgSize
	}
	if windowFrames <= 0 {
		windowFrames = defaultWindowFrames
	}
	return &Stage{
		queueAvgSize: queueAvgSize,
		windowFrames: windowFrames,
		avgArr:       make([]int64, queueAvgSize),
	}
}

func (s *Stage) Name() string { return "cdc-resample" }

// ExtraQueueSize requests the 3 extra consumer-queue slots the original
// engine reserves for inflation bursts.
func (s *Stage) ExtraQueueSize() int { return defaultExtraQueueSize }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	s.format = cfg.Input
	s.channels = cfg.Input.ChannelCount
	if s.channels == 0 {
		s.channels = 1
	}
	s.pipeline = cfg.Pipeline
	if cfg.Pipeline != nil {
		s.queueSize = cfg.Pipeline.ConsumerQueueSize()
	}
	sampleAmount := cfg.SamplesPerPacket
	if sampleAmount <= 0 {
		sampleAmount = 1
	}
	s.normalQueueSize = int64(s.queueSize) * int64(sampleAmount) * decimalFactor
	s.maxQueueOffset = maxQueueOffsetSamples * decimalFactor
	s.engine = NewEngine(s.channels, s.windowFrames)
	return nil
}

// detectDrift tracks the remote tx_queue_level_high bit and the queue's
// rolling average before Process runs, mirroring detect_drift's
// ordering in sac_cdc_process.
func (s *Stage) detectDrift(hdr *audiocore.Header, bufferedSamples int) {
	if !hdr.TXQueueLevelHigh {
		s.updateQueueAvg(bufferedSamples)
	}

	if hdr.TXQueueLevelHigh && s.engine.State() == StateIdle {
		s.waitForQueueFull = true
	}

	switch s.engine.State() {
	case StateWaitQueueFull:
		if !hdr.TXQueueLevelHigh {
			s.engine.SetIdle()
			s.waitForQueueFull = false
		}
	case StateIdle:
		if s.waitForQueueFull {
			s.engine.SetWaitQueueFull()
			return
		}
		if s.stableCount <= s.queueAvgSize {
			s.stableCount++
			return
		}
		switch {
		case s.avgVal > s.normalQueueSize+s.maxQueueOffset:
			s.engine.Start(CorrectionRemove)
			s.stableCount = 0
		case s.avgVal < s.normalQueueSize-s.maxQueueOffset:
			s.engine.Start(CorrectionAdd)
			s.stableCount = 0
		}
	}
}

func (s *Stage) updateQueueAvg(bufferedSamples int) {
	frames := int64(bufferedSamples / s.channels)
	s.avgSum -= s.avgArr[s.avgIdx]
	s.avgArr[s.avgIdx] = frames
	s.avgSum += frames
	s.avgIdx++
	if s.avgIdx >= s.queueAvgSize {
		s.avgIdx = 0
	}
	s.avgVal = (s.avgSum * decimalFactor) / int64(s.queueAvgSize)
}

func (s *Stage) Process(hdr *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if s.pipeline != nil && hdr != nil {
		s.detectDrift(hdr, s.pipeline.SamplesBufferedSize())
	}

	count := inSize / packing.ContainerBytes(s.format)
	frames := count / s.channels

	samples := make([]int32, count)
	samples = packing.ReadSamples(in[:inSize], count, s.format, samples)

	result := s.engine.Process(samples, frames)
	s.reportDeltas()
	return packing.WriteSamples(result, s.format, out), nil
}

func (s *Stage) pipelineLabel() string {
	if s.pipeline == nil {
		return "unknown"
	}
	return s.pipeline.Name
}

func (s *Stage) reportDeltas() {
	if s.metrics == nil {
		return
	}
	if s.engine.InflatedPackets != s.prevInflated {
		s.metrics.RecordCDCInflate(s.pipelineLabel())
		s.prevInflated = s.engine.InflatedPackets
	}
	if s.engine.DeflatedPackets != s.prevDeflated {
		s.metrics.RecordCDCDeflate(s.pipelineLabel())
		s.prevDeflated = s.engine.DeflatedPackets
	}
}

// Stats reports the running inflate/deflate counters.
func (s *Stage) Stats() (inflated, deflated uint32) {
	return s.engine.InflatedPackets, s.engine.DeflatedPackets
}
