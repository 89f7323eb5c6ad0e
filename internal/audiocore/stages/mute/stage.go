// Package mute implements the mute-on-underflow stage of spec §4.11:
// the last stage of a receiving pipeline, it zero-fills a short run of
// packets whenever the consumer queue just underflowed, covering the
// audible pop a dead pipeline would otherwise produce while it refills.
package mute

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
)

// millisecondsToCover is how long a mute run lasts once triggered,
// spec §4.11's ~30ms window.
const millisecondsToCover = 30

// defaultSampleRateHz is used when the stage isn't told the pipeline's
// actual rate via NewWithSampleRate.
const defaultSampleRateHz = 16000

// Stage zero-fills output while its countdown is active.
type Stage struct {
	rateHz        int
	reloadValue   int
	remaining     int
	lastUnderflow uint32
	pipeline      *audiocore.Pipeline
}

// New builds a mute stage sized for the default 16kHz rate; use
// NewWithSampleRate for other rates.
func New() *Stage { return &Stage{rateHz: defaultSampleRateHz} }

// NewWithSampleRate builds a mute stage that sizes its reload window
// for a specific sample rate.
func NewWithSampleRate(rateHz int) *Stage { return &Stage{rateHz: rateHz} }

func (s *Stage) Name() string { return "mute" }

func (s *Stage) Init(cfg audiocore.StageConfig) error {
	if s.rateHz <= 0 {
		s.rateHz = defaultSampleRateHz
	}
	s.reloadValue = nbPacketsInXMs(millisecondsToCover, cfg.SamplesPerPacket, s.rateHz)
	if cfg.Pipeline != nil {
		s.pipeline = cfg.Pipeline
		s.lastUnderflow = cfg.Pipeline.ConsumerUnderflowCount()
	}
	return nil
}

// nbPacketsInXMs returns how many packets of samplesPerPacket samples
// are needed to cover durationMs milliseconds of audio at rateHz,
// spec §4.11's nb_packets_in_x_ms helper.
func nbPacketsInXMs(durationMs, samplesPerPacket, rateHz int) int {
	if samplesPerPacket <= 0 || rateHz <= 0 {
		return 1
	}
	samplesNeeded := (rateHz * durationMs) / 1000
	packets := (samplesNeeded + samplesPerPacket - 1) / samplesPerPacket
	if packets < 1 {
		return 1
	}
	return packets
}

// Process zero-fills out while the mute countdown is active (decrementing
// it), otherwise passes the input through unchanged. The countdown is
// armed by NoteUnderflow, which Process calls first with the pipeline's
// live underflow counter when the stage was initialised with a pipeline.
func (s *Stage) Process(_ *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if s.pipeline != nil {
		s.NoteUnderflow(s.pipeline.ConsumerUnderflowCount())
	}
	n := copy(out, in[:inSize])
	if s.remaining > 0 {
		for i := 0; i < n; i++ {
			out[i] = 0
		}
		s.remaining--
	}
	return n, nil
}

// NoteUnderflow arms the mute countdown when count has advanced past
// the last-seen value and is non-zero (spec §4.11).
func (s *Stage) NoteUnderflow(count uint32) {
	if count != s.lastUnderflow && count != 0 {
		s.remaining = s.reloadValue
	}
	s.lastUnderflow = count
}

// Remaining returns the current countdown, for tests and diagnostics.
func (s *Stage) Remaining() int { return s.remaining }
