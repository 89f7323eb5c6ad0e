// Package resample implements the polyphase FIR sample-rate converter of
// spec §4.8: an interpolation stage (zero-stuff + FIR), a decimation
// stage (FIR + downsample), or both back to back, built on the
// CMSIS-derived fixed-point engine and coefficient tables grounded on
// original_source/library/filtering_functions and
// original_source/core/audio/processing/sac_src_cmsis.c.
package resample

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/packing"
	"github.com/sparkmicro/audiocore/internal/cpuspec"
	"github.com/sparkmicro/audiocore/internal/errors"
)

// Stage resamples by MultiplyRatio/DivideRatio, e.g. 3/2 to go from
// 32kHz to 48kHz. A ratio of 1 on either side is a no-op for that half.
type Stage struct {
	multiplyRatio, divideRatio int

	channels   int
	in, out    audiocore.SampleFormat
	interp     *interpolator
	decim      *decimator
	midScratch []int32

	gate func() bool
}

// New builds a resampling stage for the given ratio pair. Both must be
// one of the supported designs (1, 2, 3, 4 or 6).
func New(multiplyRatio, divideRatio int) *Stage {
	return &Stage{multiplyRatio: multiplyRatio, divideRatio: divideRatio}
}

// WithGate attaches a gate predicate; while it returns false Process
// still runs the filters (keeping their delay lines warm) but discards
// the output, mirroring the ADPCM stage's discard behavior so the
// fallback controller can toggle resampling in and out of the chain
// without a filter-priming glitch.
func (s *Stage) WithGate(g func() bool) *Stage {
	s.gate = g
	return s
}

func (s *Stage) Name() string { return "resample" }

func (s *Stage) Gate() bool {
	if s.gate == nil {
		return true
	}
	return s.gate()
}

type ratioErr string

func (e ratioErr) Error() string { return string(e) }
func errRatio(msg string) error  { return ratioErr(msg) }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	if !SupportedRatio(s.multiplyRatio) || !SupportedRatio(s.divideRatio) {
		return errors.New(errRatio("resample: unsupported ratio")).
			Category(errors.CategoryFIR).Build()
	}
	if s.multiplyRatio == 1 && s.divideRatio == 1 {
		return errors.New(errRatio("resample: at least one ratio must exceed 1")).
			Category(errors.CategoryFIR).Build()
	}
	s.in = cfg.Input
	s.out = cfg.Output
	s.channels = cfg.Input.ChannelCount
	if s.channels == 0 {
		s.channels = 1
	}

	midBitDepth := s.out.BitDepth
	if s.divideRatio > 1 {
		midBitDepth = s.in.BitDepth
	}

	if s.multiplyRatio > 1 {
		s.interp = newInterpolator(s.multiplyRatio, s.channels, s.in.BitDepth, midBitDepth)
	}
	if s.divideRatio > 1 {
		s.decim = newDecimator(s.divideRatio, s.channels, midBitDepth, s.out.BitDepth)
	}

	maxSamples := cfg.SamplesPerPacket * s.channels * s.multiplyRatio
	if maxSamples <= 0 {
		maxSamples = s.channels * s.multiplyRatio
	}
	batch := cpuspec.Detect().PreferredBatchSamples()
	if rem := maxSamples % batch; rem != 0 {
		maxSamples += batch - rem
	}
	s.midScratch = make([]int32, maxSamples)
	return nil
}

// ExtraQueueSize asks for channels*FIRNumTaps*4 extra consumer-queue
// slots when the stage upsamples overall and none otherwise; NewPipeline
// adds the sum of these requests to the consumer queue depth in packets,
// clamped to 255 (spec §4.4's extra-queue-size summation).
func (s *Stage) ExtraQueueSize() int {
	if s.multiplyRatio > s.divideRatio {
		return s.channels * FIRNumTaps * 4
	}
	return 0
}

func (s *Stage) Process(_ *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	inBytes := packing.ContainerBytes(s.in)
	count := inSize / inBytes
	samples := make([]int32, count)
	samples = packing.ReadSamples(in[:inSize], count, s.in, samples)

	if !s.Gate() {
		s.runDiscard(samples)
		return 0, nil
	}

	result := s.run(samples)
	return packing.WriteSamples(result, s.out, out), nil
}

// run pushes samples through the interpolator then the decimator (either
// may be absent).
func (s *Stage) run(samples []int32) []int32 {
	mid := samples
	if s.interp != nil {
		mid = s.interp.process(samples, s.channels)
	}
	out := mid
	if s.decim != nil {
		out = s.decim.process(mid, s.channels)
	}
	return out
}

// runDiscard exercises the same filters as run (so their delay lines
// never go cold while the stage is gated off) but throws the output
// away. This keeps the switch click-free on the delay-line side; it does
// not reproduce sac_src_cmsis_process_discard's manual accumulator
// splicing on transition edges (documented as a deliberate simplification
// in DESIGN.md).
func (s *Stage) runDiscard(samples []int32) {
	_ = s.run(samples)
}
