package audiocore

import (
	"sync"

	"github.com/sparkmicro/audiocore/internal/errors"
)

const pointerAlignment = 8

// Pool is a single bump allocator seeded with a fixed byte region at
// construction. Alloc rounds requests up to pointer alignment, zeroes the
// returned region, and advances an internal cursor; it never frees
// individual allocations. Reset rewinds the cursor for full teardown.
//
// Every node's data buffer is carved out of a Pool at setup; the Node
// and Queue structs that manage those buffers are ordinary Go values
// created at the same time.
type Pool struct {
	mu        sync.Mutex
	region    []byte
	cursor    int
	allocated int
}

// NewPool wraps region as the backing store for all subsequent
// allocations. The caller owns region's lifetime; Pool never resizes it.
func NewPool(region []byte) *Pool {
	return &Pool{region: region}
}

// Alloc reserves n zeroed bytes, rounded up to pointer alignment. It
// returns CategoryInit/NOT_ENOUGH_MEMORY once the region is exhausted.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New(errNilPtr("pool: alloc size must be positive")).
			Component("pool").Category(errors.CategoryInit).Build()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	aligned := alignUp(n, pointerAlignment)
	if p.cursor+aligned > len(p.region) {
		return nil, errors.New(errNilPtr("pool: not enough memory")).
			Component("pool").Category(errors.CategoryInit).
			Context("requested_bytes", n).
			Context("remaining_bytes", len(p.region)-p.cursor).
			Build()
	}

	buf := p.region[p.cursor : p.cursor+aligned]
	for i := range buf {
		buf[i] = 0
	}
	p.cursor += aligned
	p.allocated += aligned

	return buf[:n:aligned], nil
}

// AllocatedBytes reports bytes handed out so far, mirroring
// sac_get_allocated_bytes.
func (p *Pool) AllocatedBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Capacity returns the total size of the backing region.
func (p *Pool) Capacity() int {
	return len(p.region)
}

// Reset rewinds the pool to empty, for teardown between test runs; it is
// never called in steady-state operation.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
	p.allocated = 0
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func errNilPtr(msg string) error { return simpleErr(msg) }
