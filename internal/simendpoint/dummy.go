// Package simendpoint provides the endpoint adapters the simulator wires
// onto pipelines: a dummy sink/source, a pre-recorded sine producer, an
// in-process loopback linking a TX pipeline's consumer to an RX
// pipeline's producer, and WAV file producer/consumer endpoints for
// offline runs.
package simendpoint

// Dummy is a no-op endpoint: its produce/consume actions always report
// zero bytes transferred, grounded on
// original_source/core/audio/endpoint/sac_dummy_endpoint.c. It exists to
// keep a pipeline's queue structure intact when a real transport isn't
// wired in yet (e.g. the unused half of a TX-only or RX-only test run).
type Dummy struct{}

// NewDummy builds a Dummy endpoint adapter.
func NewDummy() *Dummy { return &Dummy{} }

// Produce always reports no bytes produced.
func (d *Dummy) Produce(_ []byte) (int, error) { return 0, nil }

// Consume always reports no bytes consumed.
func (d *Dummy) Consume(_ []byte) (int, error) { return 0, nil }

// Start is a no-op.
func (d *Dummy) Start() error { return nil }

// Stop is a no-op.
func (d *Dummy) Stop() error { return nil }
