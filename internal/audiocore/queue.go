package audiocore

import "sync"

// CriticalSection is the host-supplied mutual-exclusion primitive that
// guards every queue mutation (spec §5). On the original embedded target
// this masks the interrupts that can touch the same queues (DMA
// completion, wireless RX callback); in Go it is satisfied by a mutex,
// since the simulator's cadences are goroutines rather than ISRs.
type CriticalSection interface {
	Enter()
	Exit()
}

// MutexCriticalSection is the default CriticalSection, backed by a
// sync.Mutex. It is safe to share across every queue in an AudioCore.
type MutexCriticalSection struct {
	mu sync.Mutex
}

func (m *MutexCriticalSection) Enter() { m.mu.Lock() }
func (m *MutexCriticalSection) Exit()  { m.mu.Unlock() }

// Queue is a singly-linked FIFO of *Node with a capacity limit. A free
// queue (IsFreeList) holds unused nodes and does not track copyCount on
// enqueue/dequeue; a live queue represents samples in flight and
// increments copyCount on enqueue, decrements on dequeue so a node
// shared by several consumers returns to its free list only once every
// consumer has dequeued it (invariant I3).
type Queue struct {
	cs         CriticalSection
	name       string
	head, tail *Node
	length     int
	limit      int
	isFreeList bool
}

// NewLiveQueue creates an empty, bounded live queue.
func NewLiveQueue(cs CriticalSection, name string, limit int) *Queue {
	return &Queue{cs: cs, name: name, limit: limit}
}

// NewFreeQueue carves numNodes nodes of dataSize bytes each out of pool
// and links them into a free list, mirroring queue_init_pool. It returns
// the queue ready for GetFreeNode calls.
func NewFreeQueue(cs CriticalSection, pool *Pool, name string, numNodes, dataSize int) (*Queue, error) {
	q := &Queue{cs: cs, name: name, limit: numNodes, isFreeList: true}

	var prev *Node
	for i := 0; i < numNodes; i++ {
		buf, err := pool.Alloc(dataSize)
		if err != nil {
			return nil, err
		}
		n := &Node{data: buf, homeQueue: q}
		if prev == nil {
			q.head = n
		} else {
			prev.next = n
		}
		prev = n
	}
	q.tail = prev
	q.length = numNodes
	return q, nil
}

// Name returns the queue's human-readable label, used in statistics.
func (q *Queue) Name() string { return q.name }

// Length returns the current node count.
func (q *Queue) Length() int {
	if q == nil {
		return 0
	}
	q.cs.Enter()
	defer q.cs.Exit()
	return q.length
}

// Limit returns the queue's capacity.
func (q *Queue) Limit() int {
	if q == nil {
		return 0
	}
	return q.limit
}

// IsFreeList reports whether this queue is a node source (true) or a
// live queue carrying samples in flight (false).
func (q *Queue) IsFreeList() bool { return q.isFreeList }

// GetFreeNode pops a node off a free-list queue. It returns nil when
// called on a live queue or when the free list is exhausted.
func (q *Queue) GetFreeNode() *Node {
	if !q.isFreeList {
		return nil
	}
	return q.DequeueNode()
}

// FreeNode returns node to its home free list once no other live queue
// still shares it (copyCount reaches zero), mirroring queue_free_node.
func FreeNode(node *Node) {
	if node == nil {
		return
	}
	q := node.homeQueue
	q.cs.Enter()
	defer q.cs.Exit()
	if node.copyCount == 0 {
		enqueueLocked(q, node)
	}
}

// DequeueNode removes and returns the head node. Dequeuing from a live
// queue decrements copyCount; dequeuing from a free list does not touch
// it (nodes there already have copyCount == 0).
func (q *Queue) DequeueNode() *Node {
	q.cs.Enter()
	defer q.cs.Exit()

	if q.length == 0 {
		return nil
	}
	head := q.head
	if q.length == 1 {
		q.head, q.tail = nil, nil
	} else {
		q.head = q.head.next
	}
	q.length--
	head.next = nil
	if !q.isFreeList {
		head.copyCount--
	}
	return head
}

// EnqueueNode appends node at the tail. It fails (returns false) once
// the queue is at its limit; the caller is expected to drop the oldest
// live node first (head-drop overflow policy, spec §5).
func (q *Queue) EnqueueNode(node *Node) bool {
	if node == nil {
		return false
	}
	q.cs.Enter()
	defer q.cs.Exit()
	return enqueueLocked(q, node)
}

func enqueueLocked(q *Queue, node *Node) bool {
	if q.length >= q.limit {
		return false
	}
	if q.length == 0 {
		q.head = node
	} else {
		q.tail.next = node
	}
	q.tail = node
	node.next = nil
	q.length++
	if !q.isFreeList {
		node.copyCount++
	}
	return true
}

// EnqueueAtHead pushes node to the front, used by delayed-action
// endpoints re-queuing a partially drained node.
func (q *Queue) EnqueueAtHead(node *Node) bool {
	if node == nil {
		return false
	}
	q.cs.Enter()
	defer q.cs.Exit()
	if q.length >= q.limit {
		return false
	}
	if q.length == 0 {
		q.head = node
	} else {
		node.next = q.head
		q.head = node
	}
	q.length++
	if !q.isFreeList {
		node.copyCount++
	}
	return true
}

// Peek returns the head node without removing it, or nil for an empty
// or free-list queue.
func (q *Queue) Peek() *Node {
	q.cs.Enter()
	defer q.cs.Exit()
	if q.isFreeList || q.length == 0 {
		return nil
	}
	return q.head
}

// Flush drains and frees every node in a live queue. No-op on free
// lists (queue_flush refuses to flush them).
func (q *Queue) Flush() {
	if q.isFreeList {
		return
	}
	for {
		n := q.DequeueNode()
		if n == nil {
			return
		}
		FreeNode(n)
	}
}
