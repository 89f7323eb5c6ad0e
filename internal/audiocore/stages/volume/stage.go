// Package volume implements the digital volume stage of spec §4.9: a
// slewed scalar gain applied to every sample, with INCREASE/DECREASE/
// MUTE/GET_FACTOR control commands reachable through the pipeline's
// Controllable interface.
package volume

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/packing"
)

// Control command identifiers, spec §4.9.
const (
	CmdIncrease uint32 = iota
	CmdDecrease
	CmdMute
	CmdGetFactor
)

const (
	thresholdStep = 0.1
	slewStep      = 0.0003
	// factorScale matches GET_FACTOR's spec'd fixed-point reporting
	// (factor * 10000).
	factorScale = 10000
)

// Stage multiplies every sample by a factor that slews toward a
// user-set threshold at slewStep per processed packet, avoiding the
// zipper noise an instantaneous gain change would cause.
type Stage struct {
	in, out audiocore.SampleFormat

	factor    float64
	threshold float64

	scratch []int32
}

// New builds a volume stage at unity gain.
func New() *Stage {
	return &Stage{factor: 1, threshold: 1}
}

func (s *Stage) Name() string { return "volume" }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	s.in = cfg.Input
	s.out = cfg.Output
	maxSamples := cfg.SamplesPerPacket * cfg.Input.ChannelCount
	if maxSamples <= 0 {
		maxSamples = 1
	}
	s.scratch = make([]int32, maxSamples)
	return nil
}

// Ctrl implements audiocore.Controllable. arg is unused except as a
// placeholder for future parameterized commands; every command here
// acts on the fixed ±0.1 threshold step.
func (s *Stage) Ctrl(cmd, _ uint32) (uint32, error) {
	switch cmd {
	case CmdIncrease:
		s.threshold = clamp01(s.threshold + thresholdStep)
	case CmdDecrease:
		s.threshold = clamp01(s.threshold - thresholdStep)
	case CmdMute:
		s.threshold = 0
	case CmdGetFactor:
		return uint32(s.factor * factorScale), nil
	}
	return 0, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Process multiplies in[:inSize] by the current (slewing) factor and
// writes the result to out, advancing the factor one slewStep toward
// threshold for the next call. The 16-bit packed and 32-bit unpacked
// formats get dedicated loops (spec §4.9); anything else falls back to
// the generic packing-stage conversion path.
func (s *Stage) Process(_ *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	s.slew()

	switch {
	case s.in == s.out && !s.in.Packed && s.in.BitDepth == 32:
		return s.process32(in, inSize, out), nil
	case s.in == s.out && s.in.Packed && s.in.BitDepth == 16:
		return s.process16(in, inSize, out), nil
	default:
		return s.processGeneric(in, inSize, out), nil
	}
}

// process32 is the 32-bit unpacked container fast path.
func (s *Stage) process32(in []byte, inSize int, out []byte) int {
	n := inSize / 4
	for i := 0; i < n; i++ {
		v := int32(uint32(in[4*i]) | uint32(in[4*i+1])<<8 | uint32(in[4*i+2])<<16 | uint32(in[4*i+3])<<24)
		v = int32(float64(v) * s.factor)
		u := uint32(v)
		out[4*i] = byte(u)
		out[4*i+1] = byte(u >> 8)
		out[4*i+2] = byte(u >> 16)
		out[4*i+3] = byte(u >> 24)
	}
	return 4 * n
}

// process16 is the 16-bit packed fast path.
func (s *Stage) process16(in []byte, inSize int, out []byte) int {
	n := inSize / 2
	for i := 0; i < n; i++ {
		v := int16(uint16(in[2*i]) | uint16(in[2*i+1])<<8)
		v = int16(float64(v) * s.factor)
		u := uint16(v)
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return 2 * n
}

func (s *Stage) processGeneric(in []byte, inSize int, out []byte) int {
	count := inSize / packing.ContainerBytes(s.in)
	if count > len(s.scratch) {
		count = len(s.scratch)
	}
	samples := packing.ReadSamples(in[:inSize], count, s.in, s.scratch[:count])
	for i, v := range samples {
		samples[i] = int32(float64(v) * s.factor)
	}
	return packing.WriteSamples(samples, s.out, out)
}

func (s *Stage) slew() {
	switch {
	case s.factor < s.threshold:
		s.factor += slewStep
		if s.factor > s.threshold {
			s.factor = s.threshold
		}
	case s.factor > s.threshold:
		s.factor -= slewStep
		if s.factor < s.threshold {
			s.factor = s.threshold
		}
	}
}

// Factor returns the current (possibly still slewing) gain, for tests
// and diagnostics.
func (s *Stage) Factor() float64 { return s.factor }
