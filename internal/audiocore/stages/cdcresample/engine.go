// Package cdcresample implements clock-drift compensation variant 1 of
// spec §4.10: a one-sample-frame delay line that inserts or drops a
// single interpolated frame across a resampling window whenever the
// consumer queue's rolling average drifts off target, grounded on
// original_source/library/resampling/resampling.c's add/remove/bypass
// engine (sac_cdc.c wires that engine to the queue-average detector).
//
// The original engine tracks drift with fixed-point Q(bit_depth-1)
// arithmetic (x_axis/bias/step_add/step_rem) sized to run on an MCU
// without a floating-point unit; this port keeps its state machine and
// one-frame delay-line structure but performs the interpolation directly
// on already-decoded int32 samples with plain integer averaging, since
// volume is the only stage in this port that needs float math and nil
// savings come from fixed-point here in Go.
package cdcresample

// Correction is the direction of an active resampling episode.
type Correction int

const (
	CorrectionNone Correction = iota
	CorrectionAdd
	CorrectionRemove
)

// State mirrors the original engine's status field.
type State int

const (
	StateWaitQueueFull State = iota
	StateIdle
	StateRunning
)

// Engine is the per-pipeline resampling instance (one per CDC stage).
type Engine struct {
	channels     int
	windowFrames int

	status State
	corr   Correction
	progress int

	lastFrame []int32

	InflatedPackets uint32
	DeflatedPackets uint32
}

// NewEngine builds an engine for channels-interleaved audio, ramping
// insert/remove episodes over windowFrames frames (spec's 1440-sample
// window).
func NewEngine(channels, windowFrames int) *Engine {
	if channels <= 0 {
		channels = 1
	}
	if windowFrames < 2 {
		windowFrames = 2
	}
	return &Engine{
		channels:     channels,
		windowFrames: windowFrames,
		status:       StateWaitQueueFull,
		lastFrame:    make([]int32, channels),
	}
}

// State returns the engine's current status.
func (e *Engine) State() State { return e.status }

// SetIdle transitions directly to Idle (used when tx_queue_level_high
// clears after a WaitQueueFull pause).
func (e *Engine) SetIdle() { e.status = StateIdle }

// SetWaitQueueFull pauses drift detection while the remote tx queue is
// reporting high.
func (e *Engine) SetWaitQueueFull() { e.status = StateWaitQueueFull }

// Start begins a resampling episode in the given direction.
func (e *Engine) Start(c Correction) {
	e.status = StateRunning
	e.corr = c
	e.progress = 0
}

// shiftFrames runs n frames of in through the one-frame delay line,
// returning n output frames and advancing lastFrame to in's final
// frame.
func (e *Engine) shiftFrames(in []int32, n int) []int32 {
	ch := e.channels
	out := make([]int32, n*ch)
	if n == 0 {
		return out
	}
	copy(out[:ch], e.lastFrame)
	if n > 1 {
		copy(out[ch:], in[:(n-1)*ch])
	}
	copy(e.lastFrame, in[(n-1)*ch:n*ch])
	return out
}

// Process runs frames of in (channels-interleaved) through the engine,
// returning frames, frames+1 (an episode completed by inserting a
// sample) or frames-1 (an episode completed by dropping one) output
// frames.
func (e *Engine) Process(in []int32, frames int) []int32 {
	switch {
	case e.status == StateRunning && e.corr == CorrectionAdd:
		return e.runAdd(in, frames)
	case e.status == StateRunning && e.corr == CorrectionRemove:
		return e.runRemove(in, frames)
	default:
		return e.shiftFrames(in, frames)
	}
}

func (e *Engine) runAdd(in []int32, frames int) []int32 {
	ch := e.channels
	cut := e.windowFrames - e.progress
	if cut > frames {
		e.progress += frames
		return e.shiftFrames(in, frames)
	}

	out := make([]int32, (frames+1)*ch)
	if cut > 0 {
		copy(out[:cut*ch], e.shiftFrames(in[:cut*ch], cut))
	}

	var next []int32
	if cut < frames {
		next = in[cut*ch : (cut+1)*ch]
	} else {
		next = e.lastFrame
	}
	inserted := make([]int32, ch)
	for c := 0; c < ch; c++ {
		inserted[c] = (e.lastFrame[c] + next[c]) / 2
	}
	copy(out[cut*ch:(cut+1)*ch], inserted)
	copy(e.lastFrame, inserted)

	if frames-cut > 0 {
		copy(out[(cut+1)*ch:], e.shiftFrames(in[cut*ch:frames*ch], frames-cut))
	}

	e.InflatedPackets++
	e.status = StateIdle
	e.corr = CorrectionNone
	e.progress = 0
	return out
}

func (e *Engine) runRemove(in []int32, frames int) []int32 {
	ch := e.channels
	cut := e.windowFrames - e.progress
	if cut > frames {
		e.progress += frames
		return e.shiftFrames(in, frames)
	}
	if cut >= frames {
		cut = frames - 1
	}

	out := make([]int32, (frames-1)*ch)
	if cut > 0 {
		copy(out[:cut*ch], e.shiftFrames(in[:cut*ch], cut))
	}

	dropFrom := cut + 1
	if dropFrom < frames {
		copy(out[cut*ch:], e.shiftFrames(in[dropFrom*ch:frames*ch], frames-dropFrom))
	} else {
		copy(e.lastFrame, in[(frames-1)*ch:frames*ch])
	}

	e.DeflatedPackets++
	e.status = StateIdle
	e.corr = CorrectionNone
	e.progress = 0
	return out
}
