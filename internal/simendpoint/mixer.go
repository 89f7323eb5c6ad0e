package simendpoint

import (
	"github.com/sparkmicro/audiocore/internal/mixer"
)

// ProduceFunc matches the signature of an Endpoint's producer Action,
// letting MixedSource wrap any number of other producers (e.g. several
// Sinus or WAVSource endpoints) as its inputs.
type ProduceFunc func(buf []byte) (int, error)

// MixedSource exposes mixer.Mixer as a single producer endpoint: each
// Produce call drains one payload from every wrapped input (falling
// back to silence for an input that returns 0, matching
// sac_mixer_module's append_silence path on a starved input) and
// returns the averaged result.
type MixedSource struct {
	mix    *mixer.Mixer
	inputs []ProduceFunc
	scratch []byte
}

// NewMixedSource builds a mixer-backed producer from 2 or 3 input
// producers sharing payloadSize/bitDepth.
func NewMixedSource(cfg mixer.Config, inputs []ProduceFunc) (*MixedSource, error) {
	m, err := mixer.New(cfg)
	if err != nil {
		return nil, err
	}
	return &MixedSource{mix: m, inputs: inputs, scratch: make([]byte, cfg.PayloadSize)}, nil
}

// Produce pulls one payload from each input, mixes them, and copies the
// result into buf.
func (m *MixedSource) Produce(buf []byte) (int, error) {
	for i, in := range m.inputs {
		n, err := in(m.scratch)
		if err != nil {
			return 0, err
		}
		if n < len(m.scratch) {
			m.mix.AppendSilence(i, len(m.scratch)-n)
			if n > 0 {
				m.mix.AppendSamples(i, m.scratch[:n])
			}
			continue
		}
		m.mix.AppendSamples(i, m.scratch[:n])
	}
	if !m.mix.ReadyToMix() {
		return 0, nil
	}
	out := m.mix.Mix()
	m.mix.HandleRemainder()
	return copy(buf, out), nil
}

// Consume is never called; MixedSource is producer-only.
func (m *MixedSource) Consume(_ []byte) (int, error) { return 0, nil }

// Start is a no-op.
func (m *MixedSource) Start() error { return nil }

// Stop is a no-op.
func (m *MixedSource) Stop() error { return nil }
