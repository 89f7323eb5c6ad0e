package adpcm

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/packing"
	"github.com/sparkmicro/audiocore/internal/errors"
)

// Mode selects which half of the codec a Stage performs.
type Mode int

const (
	ModeEncode Mode = iota
	ModeDecode
)

// Stage is the ADPCM processing stage (spec §4.7): encode compresses
// PCM samples extracted from the negotiated input format down to 4-bit
// nibbles; decode reverses it. A Gate may be attached so the pipeline's
// fallback controller can switch this stage in or out of the chain.
type Stage struct {
	mode     Mode
	in, out  audiocore.SampleFormat
	channels int
	perChan  int

	left, right State
	scratch     []int32

	gate func() bool

	// discard, when true, makes Process behave like
	// sac_adpcm_process_discard: it still runs Encode to keep the
	// predictor state warm but returns 0 so the chain produces no
	// packet. Used while fallback is off so a later switch to ADPCM
	// is seamless (spec §4.7).
	discard bool
}

// NewEncoder builds a compressing ADPCM stage.
func NewEncoder() *Stage { return &Stage{mode: ModeEncode} }

// NewDecoder builds a decompressing ADPCM stage.
func NewDecoder() *Stage { return &Stage{mode: ModeDecode} }

// WithGate attaches a gate predicate, typically the fallback
// controller's is_fallback_on/is_fallback_off helper.
func (s *Stage) WithGate(g func() bool) *Stage {
	s.gate = g
	return s
}

// SetDiscard toggles discard mode; the caller (the fallback-aware
// pipeline wiring) flips this alongside the gate so the encoder's
// predictor never goes cold while fallback is off.
func (s *Stage) SetDiscard(discard bool) { s.discard = discard }

func (s *Stage) Name() string {
	if s.mode == ModeEncode {
		return "adpcm-encode"
	}
	return "adpcm-decode"
}

func (s *Stage) Gate() bool {
	if s.gate == nil {
		return true
	}
	return s.gate()
}

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	s.in = cfg.Input
	s.out = cfg.Output
	s.channels = cfg.Input.ChannelCount
	if s.mode == ModeDecode {
		s.channels = cfg.Output.ChannelCount
	}
	if s.channels != 1 && s.channels != 2 {
		return errors.New(errChannels("adpcm: channel count must be 1 or 2")).
			Category(errors.CategoryADPCM).Build()
	}
	s.perChan = cfg.SamplesPerPacket
	s.left.Init()
	s.right.Init()
	maxSamples := s.perChan * s.channels
	if maxSamples <= 0 {
		maxSamples = 1
	}
	s.scratch = make([]int32, maxSamples)
	return nil
}

type chanErr string

func (e chanErr) Error() string    { return string(e) }
func errChannels(msg string) error { return chanErr(msg) }

// Process dispatches to Encode or Decode per the stage's mode.
func (s *Stage) Process(hdr *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if s.mode == ModeEncode {
		return s.encodePacket(in, inSize, out)
	}
	return s.decodePacket(in, inSize, out)
}

// encodePacket extracts 16-bit samples per spec §4.7 (right-shifted by
// bit_depth-16 out of whatever the input format declares), quantizes
// them, and writes the stereo/mono packet layout.
func (s *Stage) encodePacket(in []byte, inSize int, out []byte) (int, error) {
	count := inSize / packing.ContainerBytes(s.in)
	if count > len(s.scratch) {
		count = len(s.scratch)
	}
	samples := packing.ReadSamples(in[:inSize], count, s.in, s.scratch[:count])
	for i, v := range samples {
		samples[i] = packing.Rescale(v, s.in.BitDepth, 16)
	}

	if s.channels == 2 {
		return s.encodeStereo(samples, out)
	}
	return s.encodeMono(samples, out)
}

func (s *Stage) encodeStereo(samples []int32, out []byte) (int, error) {
	n := len(samples) / 2
	putState(out[0:3], s.left)
	putState(out[3:6], s.right)
	nibbles := out[6:]
	for i := 0; i < n; i++ {
		l := s.left.Encode(int16(samples[2*i]))
		r := s.right.Encode(int16(samples[2*i+1]))
		nibbles[i] = l | (r << 4)
	}
	written := 2*stateBytes + n
	if s.discard {
		return 0, nil
	}
	return written, nil
}

func (s *Stage) encodeMono(samples []int32, out []byte) (int, error) {
	n := len(samples)
	putState(out[0:stateBytes], s.left)
	nibbles := out[stateBytes:]
	pairs := n / 2
	for i := 0; i < pairs; i++ {
		a := s.left.Encode(int16(samples[2*i]))
		b := s.left.Encode(int16(samples[2*i+1]))
		nibbles[i] = a | (b << 4)
	}
	written := stateBytes + pairs
	if n%2 == 1 {
		last := s.left.Encode(int16(samples[n-1]))
		nibbles[pairs] = last
		written++
	}
	if s.discard {
		return 0, nil
	}
	return written, nil
}

// decodePacket is the exact inverse of encodePacket.
func (s *Stage) decodePacket(in []byte, inSize int, out []byte) (int, error) {
	if s.channels == 2 {
		return s.decodeStereo(in, inSize, out)
	}
	return s.decodeMono(in, inSize, out)
}

func (s *Stage) decodeStereo(in []byte, inSize int, out []byte) (int, error) {
	s.left = getState(in[0:3])
	s.right = getState(in[3:6])
	nibbles := in[6:inSize]
	n := len(nibbles)
	if n > len(s.scratch)/2 {
		n = len(s.scratch) / 2
	}
	samples := s.scratch[:2*n]
	for i := 0; i < n; i++ {
		samples[2*i] = int32(s.left.Decode(nibbles[i] & 0x0F))
		samples[2*i+1] = int32(s.right.Decode(nibbles[i] >> 4))
	}
	for i, v := range samples {
		samples[i] = packing.Rescale(v, 16, s.out.BitDepth)
	}
	return packing.WriteSamples(samples, s.out, out), nil
}

func (s *Stage) decodeMono(in []byte, inSize int, out []byte) (int, error) {
	s.left = getState(in[0:stateBytes])
	nibbles := in[stateBytes:inSize]
	maxSamples := 2 * len(nibbles)
	if maxSamples > len(s.scratch) {
		maxSamples = len(s.scratch)
	}
	samples := s.scratch[:0]
	for _, b := range nibbles {
		if len(samples) >= maxSamples {
			break
		}
		samples = append(samples, int32(s.left.Decode(b&0x0F)))
		if len(samples) < maxSamples {
			samples = append(samples, int32(s.left.Decode(b>>4)))
		}
	}
	for i, v := range samples {
		samples[i] = packing.Rescale(v, 16, s.out.BitDepth)
	}
	return packing.WriteSamples(samples, s.out, out), nil
}

// CompressedSize returns the total wire size of a compressed packet for
// samplesPerChannel samples at the stage's channel count, spec §4.7:
// stereo is 2*sizeof(state)+samplesPerChannel; mono is
// sizeof(state)+ceil(samplesPerChannel/2).
func CompressedSize(channels, samplesPerChannel int) int {
	if channels == 2 {
		return 2*stateBytes + samplesPerChannel
	}
	return stateBytes + (samplesPerChannel+1)/2
}
