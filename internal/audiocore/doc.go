// Package audiocore implements the embedded audio streaming core: the
// pipeline runtime, node pool/queues, endpoints, and the stage/gate
// interfaces that the processing stages in stages/ plug into (spec
// §3-4). It is grounded on the original C SDK's core/audio/pipeline and
// core/audio/node_queue sources, re-expressed without ISR-bound
// globals: a Pool, a set of Queues, and a Pipeline are explicit values
// threaded through every call instead of module statics (spec §9).
//
// # Concurrency model
//
// The original runs single-threaded-cooperative plus interrupts; the
// three cadences that would be separate ISR/foreground contexts there
// (producer DMA completion, consumer DMA completion, the host timer
// loop) become goroutines here, each calling Pipeline.Produce/Process/
// Consume. Every queue mutation goes through a CriticalSection the
// caller supplies (MutexCriticalSection by default), matching the
// enter_critical/exit_critical discipline of spec §5. Critical sections
// stay O(1); DSP work always runs outside them.
//
// # Node storage
//
// Pool is a bump allocator seeded once at pipeline setup; every Node's
// backing buffer comes out of it, while the Node and Queue structs are
// ordinary Go values created at setup. Steady-state Produce/Process/
// Consume calls never allocate new node buffers — they move *Node
// values between queues. Some stages (packed-format packing, the
// polyphase resampler, CDC-resample) allocate scratch slices inside
// their Process calls.
//
// # Error handling
//
// Fatal conditions return an *errors.CoreError (component + category
// tagged, see internal/errors). Recoverable, advisory conditions —
// queue-full, queue-empty, short reads — are reported as a *Warning
// returned alongside a nil error (spec §7's two-lane error/warning
// split), never silently swallowed and never in place of a real error.
package audiocore
