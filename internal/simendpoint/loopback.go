package simendpoint

import "errors"

// ErrClosed is returned by a Loopback action after Stop has closed the
// link.
var ErrClosed = errors.New("simendpoint: loopback closed")

// Loopback stands in for the wireless-core transport endpoint
// (original_source/core/audio/endpoint/sac_endpoint_swc.c) in an
// in-process simulation: its consume half hands a packet to a buffered
// channel and its produce half (on the paired RX side) pulls the next
// packet off it, so a TX and RX pipeline can be run in the same process
// without a real radio. The two halves are built together by
// NewLoopbackLink so they share one channel.
type Loopback struct {
	ch     chan []byte
	closed chan struct{}
}

// NewLoopbackLink builds a connected pair: the returned consumer is
// wired to a TX pipeline's consumer endpoint, the producer to an RX
// pipeline's producer endpoint. depth bounds how many in-flight packets
// the link buffers before Consume starts dropping packets, modeling the
// wireless connection's own queue (spec §6, original's
// swc_connection_send/receive).
func NewLoopbackLink(depth int) (producer *LoopbackProducer, consumer *LoopbackConsumer) {
	if depth <= 0 {
		depth = 1
	}
	l := &Loopback{ch: make(chan []byte, depth), closed: make(chan struct{})}
	return &LoopbackProducer{l: l}, &LoopbackConsumer{l: l}
}

// LoopbackConsumer is the TX-side half: its Consume action copies size
// bytes of buf and enqueues them for delivery to the paired producer.
type LoopbackConsumer struct{ l *Loopback }

// Consume copies buf into a new packet-sized payload and enqueues it,
// dropping the packet (returning 0) if the link's buffer is full rather
// than blocking the pipeline's consume cadence.
func (c *LoopbackConsumer) Consume(buf []byte) (int, error) {
	select {
	case <-c.l.closed:
		return 0, ErrClosed
	default:
	}
	payload := make([]byte, len(buf))
	copy(payload, buf)
	select {
	case c.l.ch <- payload:
		return len(buf), nil
	case <-c.l.closed:
		return 0, ErrClosed
	default:
		return 0, nil
	}
}

// Produce on the consumer side is never called (it's a consumer-only
// endpoint) but is provided so LoopbackConsumer can also serve as a
// producer-role endpoint in tests that exercise a single pipeline
// against the link directly.
func (c *LoopbackConsumer) Produce(_ []byte) (int, error) { return 0, nil }

// Start is a no-op; the channel is ready as soon as NewLoopbackLink
// returns.
func (c *LoopbackConsumer) Start() error { return nil }

// Stop closes the link so a blocked paired Produce unblocks with
// ErrClosed.
func (c *LoopbackConsumer) Stop() error {
	select {
	case <-c.l.closed:
	default:
		close(c.l.closed)
	}
	return nil
}

// LoopbackProducer is the RX-side half: its Produce action dequeues the
// next packet the paired consumer sent and copies it into the caller's
// buffer.
type LoopbackProducer struct{ l *Loopback }

// Produce blocks for the next packet and copies it into buf, truncating
// if buf is smaller than the packet (which should not happen when both
// pipelines agree on payload size).
func (p *LoopbackProducer) Produce(buf []byte) (int, error) {
	select {
	case payload, ok := <-p.l.ch:
		if !ok {
			return 0, ErrClosed
		}
		n := copy(buf, payload)
		return n, nil
	case <-p.l.closed:
		return 0, ErrClosed
	}
}

// Consume is never called on a producer-role endpoint.
func (p *LoopbackProducer) Consume(_ []byte) (int, error) { return 0, nil }

// Start is a no-op.
func (p *LoopbackProducer) Start() error { return nil }

// Stop closes the link.
func (p *LoopbackProducer) Stop() error {
	select {
	case <-p.l.closed:
	default:
		close(p.l.closed)
	}
	return nil
}
