// Package cpuspec selects a FIR inner-loop batch-size hint from the host
// CPU's vector width. The polyphase resampler's MAC loop processes one
// output sample per call regardless of this hint; it only sizes an
// optional scratch buffer so callers can batch multiple packets per
// resample call without over- or under-allocating on the pool.
package cpuspec

import "github.com/klauspost/cpuid/v2"

// Spec describes the host's SIMD capability as it affects the resampler's
// batching decisions.
type Spec struct {
	BrandName   string
	VectorBytes int // widest SIMD register available, in bytes
}

// Detect inspects the running CPU once; cheap enough to call per stage
// init, which is what pipeline setup does.
func Detect() Spec {
	return Spec{
		BrandName:   cpuid.CPU.BrandName,
		VectorBytes: vectorBytes(),
	}
}

func vectorBytes() int {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return 64
	case cpuid.CPU.Supports(cpuid.AVX2):
		return 32
	case cpuid.CPU.Supports(cpuid.SSE2), cpuid.CPU.Supports(cpuid.ASIMD):
		return 16
	default:
		return 8
	}
}

// PreferredBatchSamples returns how many int32 samples fit in one vector
// register, used as a hint for the FIR stage's scratch-buffer sizing. It
// never changes the filter's numerical result, only how many samples a
// single resample call is encouraged to process before returning to the
// pipeline loop.
func (s Spec) PreferredBatchSamples() int {
	const sampleBytes = 4
	n := s.VectorBytes / sampleBytes
	if n < 1 {
		return 1
	}
	return n
}
