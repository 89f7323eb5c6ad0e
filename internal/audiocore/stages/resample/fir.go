package resample

// alignShift returns the left-shift that MSB-justifies a right-justified
// sample of the given bit depth into a 32-bit word (spec §4.8): 16 for
// 16-bit containers, 8 for 24-bit, 0 for 32-bit. The coefficient tables
// in coeffs.go are scaled assuming this alignment on both sides of the
// filter, matching how the CMSIS-derived reference engine treats its
// fixed-point accumulator.
func alignShift(bitDepth int) uint {
	return uint(32 - bitDepth)
}

// interpolator is a polyphase FIR zero-stuffing interpolator: for every
// input sample it produces `ratio` output samples at `ratio` times the
// rate, grounded on fir_interpolate.c's polyphase decomposition
// (phaseLength = numTaps/ratio taps per output phase).
type interpolator struct {
	ratio    int
	coeffs   []int32
	phaseLen int
	history  [][]int32 // per channel, length phaseLen-1, oldest first
	inShift  uint
	outShift uint
}

func newInterpolator(ratio, channels int, inBitDepth, outBitDepth int) *interpolator {
	coeffs := interpolationCoeffs(ratio)
	phaseLen := FIRNumTaps / ratio
	hist := make([][]int32, channels)
	for i := range hist {
		hist[i] = make([]int32, phaseLen-1)
	}
	return &interpolator{
		ratio:    ratio,
		coeffs:   coeffs,
		phaseLen: phaseLen,
		history:  hist,
		inShift:  alignShift(inBitDepth),
		outShift: alignShift(outBitDepth),
	}
}

// process interpolates in (interleaved, channels channels, right-justified
// at the format passed to newInterpolator) into out, which must have
// capacity len(in)*ratio.
func (f *interpolator) process(in []int32, channels int) []int32 {
	framesIn := len(in) / channels
	out := make([]int32, framesIn*f.ratio*channels)
	window := make([]int32, f.phaseLen)
	for ch := 0; ch < channels; ch++ {
		hist := f.history[ch]
		for n := 0; n < framesIn; n++ {
			x := in[n*channels+ch] << f.inShift
			copy(window, hist)
			window[len(window)-1] = x
			for phase := 0; phase < f.ratio; phase++ {
				var acc int64
				for m := 0; m < f.phaseLen; m++ {
					tap := f.coeffs[phase+m*f.ratio]
					acc += int64(tap) * int64(window[f.phaseLen-1-m])
				}
				out[(n*f.ratio+phase)*channels+ch] = int32(acc >> (31 + f.outShift))
			}
			copy(hist, hist[1:])
			if len(hist) > 0 {
				hist[len(hist)-1] = x
			}
		}
	}
	return out
}

// decimator is a direct-form FIR anti-alias filter that emits one output
// sample for every `ratio` input samples, grounded on fir_decimate.c.
type decimator struct {
	ratio    int
	coeffs   []int32
	history  [][]int32 // per channel, length numTaps, most-recent last
	inShift  uint
	outShift uint
}

func newDecimator(ratio, channels int, inBitDepth, outBitDepth int) *decimator {
	coeffs := decimationCoeffs(ratio)
	hist := make([][]int32, channels)
	for i := range hist {
		hist[i] = make([]int32, FIRNumTaps)
	}
	return &decimator{
		ratio:    ratio,
		coeffs:   coeffs,
		history:  hist,
		inShift:  alignShift(inBitDepth),
		outShift: alignShift(outBitDepth),
	}
}

// process decimates in (interleaved, channels channels) into out, which
// must have capacity len(in)/ratio.
func (f *decimator) process(in []int32, channels int) []int32 {
	framesIn := len(in) / channels
	out := make([]int32, (framesIn/f.ratio)*channels)
	for ch := 0; ch < channels; ch++ {
		hist := f.history[ch]
		oi := 0
		for n := 0; n < framesIn; n++ {
			x := in[n*channels+ch] << f.inShift
			copy(hist, hist[1:])
			hist[len(hist)-1] = x
			if (n+1)%f.ratio == 0 {
				var acc int64
				for k, c := range f.coeffs {
					acc += int64(c) * int64(hist[k])
				}
				out[oi*channels+ch] = int32(acc >> (31 + f.outShift))
				oi++
			}
		}
	}
	return out
}
