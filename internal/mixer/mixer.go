// Package mixer implements spec's N-input sample mixer, grounded on
// original_source/core/audio/module/sac_mixer_module.c: 2 or 3
// 16-bit-PCM input streams are averaged sample-by-sample into a single
// output packet. It reaches a pipeline as a producer endpoint through
// simendpoint.MixedSource; the pipeline does not read Config.MixerOption,
// and the mixer adjusts no pipeline counter.
package mixer

import (
	"github.com/sparkmicro/audiocore/internal/errors"
)

const (
	MinInputs          = 2
	MaxInputs          = 3
	MinPayloadBytes    = 2
	MaxPayloadBytes    = 122
	maxBufferBytes     = MaxPayloadBytes * 2
)

// Config mirrors sac_mixer_module_cfg_t.
type Config struct {
	NumInputs   int
	PayloadSize int // bytes, must match the output endpoint's payload size
	BitDepth    int // only 16 is supported
}

type inputQueue struct {
	samples [maxBufferBytes]byte
	size    int
}

// Mixer averages NumInputs interleaved mono/stereo PCM16 streams into
// one output payload per Mix call.
type Mixer struct {
	cfg    Config
	inputs []inputQueue
	out    []byte
}

// New validates cfg against the original's bounds and builds a Mixer.
func New(cfg Config) (*Mixer, error) {
	if cfg.NumInputs < MinInputs || cfg.NumInputs > MaxInputs {
		return nil, errors.New(mixerErr("mixer: nb_of_inputs out of range")).
			Component("mixer").Category(errors.CategoryInit).Build()
	}
	if cfg.BitDepth != 16 {
		return nil, errors.New(mixerErr("mixer: only 16-bit depth is supported")).
			Component("mixer").Category(errors.CategoryInit).Build()
	}
	if cfg.PayloadSize < MinPayloadBytes || cfg.PayloadSize > MaxPayloadBytes {
		return nil, errors.New(mixerErr("mixer: payload_size out of range")).
			Component("mixer").Category(errors.CategoryInit).Build()
	}
	return &Mixer{
		cfg:    cfg,
		inputs: make([]inputQueue, cfg.NumInputs),
		out:    make([]byte, cfg.PayloadSize),
	}, nil
}

type mixerErr string

func (e mixerErr) Error() string { return string(e) }

// AppendSamples queues samples onto input's pending buffer (spec's
// sac_mixer_module_append_samples).
func (m *Mixer) AppendSamples(input int, samples []byte) {
	q := &m.inputs[input]
	copy(q.samples[q.size:], samples)
	q.size += len(samples)
}

// AppendSilence queues size zero bytes onto input's pending buffer,
// used when an input endpoint underflows (sac_mixer_module_append_silence).
func (m *Mixer) AppendSilence(input int, size int) {
	q := &m.inputs[input]
	for i := 0; i < size; i++ {
		q.samples[q.size+i] = 0
	}
	q.size += size
}

// ReadyToMix reports whether every input has at least one full payload
// queued.
func (m *Mixer) ReadyToMix() bool {
	for i := range m.inputs {
		if m.inputs[i].size < m.cfg.PayloadSize {
			return false
		}
	}
	return true
}

// Mix averages one payload's worth of samples across all inputs,
// returning the mixed output packet. Call HandleRemainder afterward to
// shift any leftover bytes (from inputs queued with more than one
// payload's worth of data) to the front of each queue.
func (m *Mixer) Mix() []byte {
	sampleCount := m.cfg.PayloadSize / 2
	for s := 0; s < sampleCount; s++ {
		var sum int32
		for i := range m.inputs {
			lo := int(m.inputs[i].samples[s*2])
			hi := int(m.inputs[i].samples[s*2+1])
			sum += int32(int16(uint16(lo) | uint16(hi)<<8))
		}
		avg := int16(sum / int32(len(m.inputs)))
		m.out[s*2] = byte(avg)
		m.out[s*2+1] = byte(avg >> 8)
	}
	return m.out
}

// HandleRemainder shifts bytes beyond one payload's worth to the front
// of each input's queue (sac_mixer_module_handle_remainder).
func (m *Mixer) HandleRemainder() {
	for i := range m.inputs {
		q := &m.inputs[i]
		remainder := q.size - m.cfg.PayloadSize
		if remainder > 0 {
			copy(q.samples[:remainder], q.samples[m.cfg.PayloadSize:q.size])
		} else {
			remainder = 0
		}
		q.size = remainder
	}
}
