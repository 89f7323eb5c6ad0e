// Package mutepacket implements the all-zero-packet compaction stage of
// spec §4.11: on a transmitting pipeline it collapses a packet that is
// nothing but silence down to a single size byte; on a receiving
// pipeline it expands that single byte back into size zero bytes.
// Grounded on
// original_source/core/audio/processing/sac_mute_packet.c. This is
// distinct from the mute package's mute-on-underflow stage, which
// zero-fills output after a queue underflow rather than compacting
// silent input.
package mutepacket

import (
	"github.com/sparkmicro/audiocore/internal/audiocore"
)

// Stage is the TX or RX half of the mute-packet compaction, selected by
// IsTX at construction, mirroring sac_mute_packet_instance_t.is_tx.
//
// This stage should be the last stage of a transmitting pipeline's
// chain and the first stage of a receiving pipeline's chain, the same
// ordering constraint the original's header documents.
type Stage struct {
	isTX bool
}

// NewTX builds the transmit-side half: detects an all-zero packet and
// collapses it to a 1-byte marker.
func NewTX() *Stage { return &Stage{isTX: true} }

// NewRX builds the receive-side half: expands a 1-byte marker packet
// back into its original size, all zeros.
func NewRX() *Stage { return &Stage{isTX: false} }

func (s *Stage) Name() string {
	if s.isTX {
		return "mute-packet-tx"
	}
	return "mute-packet-rx"
}

func (s *Stage) Init(audiocore.StageConfig) error { return nil }

// Process compacts or expands depending on which half this is. On the
// TX side a packet that is not all zeros (or is larger than 255 bytes)
// is copied to out unchanged and inSize is returned, matching the
// original's "packet not muted" branch; an all-zero packet is replaced
// by a single byte holding its size and 1 is returned. On the RX side a
// 1-byte packet is expanded to that many zero bytes and any other
// packet is copied through unchanged.
func (s *Stage) Process(_ *audiocore.Header, in []byte, inSize int, out []byte) (int, error) {
	if s.isTX {
		return s.processTX(in, inSize, out)
	}
	return s.processRX(in, inSize, out)
}

func (s *Stage) processTX(in []byte, inSize int, out []byte) (int, error) {
	// The compacted marker is a single byte, so a packet larger than
	// 255 bytes can't be represented even if it is all zeros.
	if inSize > 255 {
		return copy(out, in[:inSize]), nil
	}
	for i := 0; i < inSize; i++ {
		if in[i] != 0 {
			return copy(out, in[:inSize]), nil
		}
	}
	// Packet is all zeros: collapse it to a single byte carrying the
	// original size, so the RX side knows how many zero bytes to
	// reconstruct.
	out[0] = byte(inSize)
	return 1, nil
}

func (s *Stage) processRX(in []byte, inSize int, out []byte) (int, error) {
	if inSize != 1 {
		return copy(out, in[:inSize]), nil
	}
	size := int(in[0])
	for i := 0; i < size; i++ {
		out[i] = 0
	}
	return size, nil
}
