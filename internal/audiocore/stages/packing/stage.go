package packing

import (
	"encoding/binary"

	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/errors"
)

// Stage converts between the input and output sample formats negotiated
// at pipeline setup (spec §4.6). Process decodes into a scratch buffer
// sized once at Init; packed formats also go through PackN/UnpackN,
// which allocate a new slice on every call.
type Stage struct {
	in, out audiocore.SampleFormat
	scratch []int32
}

// New constructs an uninitialized packing stage; Init supplies the
// negotiated formats.
func New() *Stage { return &Stage{} }

func (s *Stage) Name() string { return "packing" }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	if cfg.Input.BitDepth == 0 || cfg.Output.BitDepth == 0 {
		return errors.New(errBitDepth("packing: bit depth must be configured")).
			Category(errors.CategoryPacking).Build()
	}
	s.in = cfg.Input
	s.out = cfg.Output
	maxSamples := cfg.SamplesPerPacket * maxInt(cfg.Input.ChannelCount, cfg.Output.ChannelCount)
	if maxSamples <= 0 {
		maxSamples = 1
	}
	s.scratch = make([]int32, maxSamples)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type bitDepthErr string

func (e bitDepthErr) Error() string { return string(e) }
func errBitDepth(msg string) error  { return bitDepthErr(msg) }

// Process converts in[:inSize] from s.in to s.out, writing the result
// into out and returning the number of bytes written.
func (s *Stage) Process(_ *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	count := inSize / ContainerBytes(s.in)
	if count > len(s.scratch) {
		count = len(s.scratch)
	}
	samples := ReadSamples(in[:inSize], count, s.in, s.scratch[:count])
	for i, v := range samples {
		samples[i] = Rescale(v, s.in.BitDepth, s.out.BitDepth)
	}
	return WriteSamples(samples, s.out, out), nil
}

// Rescale adjusts a right-justified sample value from one bit width to
// another by an arithmetic shift, the common operation underlying both
// pack-M->16 (srcBits=M, dstBits=16) and unpack-16->X (srcBits=16,
// dstBits=X), spec §4.6. Other stages (ADPCM's 16-bit extraction) reuse
// it directly rather than re-deriving the shift.
func Rescale(v int32, srcBits, dstBits int) int32 {
	shift := srcBits - dstBits
	switch {
	case shift > 0:
		return v >> uint(shift)
	case shift < 0:
		return v << uint(-shift)
	default:
		return v
	}
}

// ContainerBytes returns the per-sample byte width of a SampleFormat:
// always 4 for an unpacked 32-bit container, or ceil(bits/8) for a
// packed format (used to size scratch buffers and compute sample
// counts from a byte length).
func ContainerBytes(f audiocore.SampleFormat) int {
	if !f.Packed {
		return 4
	}
	return (f.BitDepth + 7) / 8
}

// ReadSamples decodes count samples out of data according to format,
// writing them into dst (which must have length >= count) and
// returning dst[:count].
func ReadSamples(data []byte, count int, f audiocore.SampleFormat, dst []int32) []int32 {
	if !f.Packed {
		for i := 0; i < count; i++ {
			dst[i] = int32(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return dst[:count]
	}
	var samples []int32
	switch f.BitDepth {
	case 18:
		samples = Unpack18(data, count)
	default:
		samples = UnpackN(data, f.BitDepth, count)
	}
	copy(dst[:count], samples)
	return dst[:count]
}

// WriteSamples encodes samples into out according to format, returning
// the number of bytes written.
func WriteSamples(samples []int32, f audiocore.SampleFormat, out []byte) int {
	if !f.Packed {
		for i, v := range samples {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		}
		return 4 * len(samples)
	}
	var packed []byte
	switch f.BitDepth {
	case 18:
		packed = Pack18(samples, 18)
	default:
		packed = PackN(samples, f.BitDepth)
	}
	return copy(out, packed)
}
