// Package adpcm implements IMA-ADPCM 4-bit compression/decompression,
// mono and stereo, per spec §4.7. The step-size and index-adjustment
// tables are the standard IMA tables, reproduced verbatim.
package adpcm

// State is one channel's ADPCM predictor state.
type State struct {
	Predicted int16
	Index     int
}

// Init zeroes the predictor and index, spec §4.7.
func (s *State) Init() {
	s.Predicted = 0
	s.Index = 0
}

// stateBytes is the on-wire size of one serialized State (predicted
// int16 LE + index uint8).
const stateBytes = 3

// MaxIndex is the inclusive upper bound of the step-index table.
const MaxIndex = 88

var stepSizeTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

var indexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > MaxIndex {
		return MaxIndex
	}
	return i
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Encode quantizes sample against the predictor, returning the 4-bit
// sign+magnitude nibble and advancing the predictor/index in place.
func (s *State) Encode(sample int16) uint8 {
	diff := int32(sample) - int32(s.Predicted)
	sign := uint8(0)
	if diff < 0 {
		sign = 8
		diff = -diff
	}

	step := stepSizeTable[s.Index]
	delta := uint8(0)
	diffq := step >> 3
	tempStep := step

	if diff >= tempStep {
		delta |= 4
		diff -= tempStep
		diffq += tempStep
	}
	tempStep >>= 1
	if diff >= tempStep {
		delta |= 2
		diff -= tempStep
		diffq += tempStep
	}
	tempStep >>= 1
	if diff >= tempStep {
		delta |= 1
		diffq += tempStep
	}

	nibble := sign | delta
	predDiff := diffq
	if sign != 0 {
		predDiff = -predDiff
	}
	s.Predicted = clamp16(int32(s.Predicted) + predDiff)
	s.Index = clampIndex(s.Index + int(indexTable[nibble]))
	return nibble
}

// Decode is the exact inverse predictor: given a 4-bit nibble, it
// advances the same state Encode would have reached and returns the
// reconstructed sample.
func (s *State) Decode(nibble uint8) int16 {
	step := stepSizeTable[s.Index]
	diffq := step >> 3
	if nibble&4 != 0 {
		diffq += step
	}
	if nibble&2 != 0 {
		diffq += step >> 1
	}
	if nibble&1 != 0 {
		diffq += step >> 2
	}
	if nibble&8 != 0 {
		diffq = -diffq
	}
	s.Predicted = clamp16(int32(s.Predicted) + diffq)
	s.Index = clampIndex(s.Index + int(indexTable[nibble]))
	return s.Predicted
}

// putState/getState serialize a channel's predictor/index into the
// packet's per-channel state header.
func putState(dst []byte, s State) {
	dst[0] = byte(uint16(s.Predicted))
	dst[1] = byte(uint16(s.Predicted) >> 8)
	dst[2] = byte(s.Index)
}

func getState(src []byte) State {
	return State{
		Predicted: int16(uint16(src[0]) | uint16(src[1])<<8),
		Index:     clampIndex(int(src[2])),
	}
}
