package audiocore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolAllocAlignsAndExhausts(t *testing.T) {
	pool := NewPool(make([]byte, 64))

	buf, err := pool.Alloc(10)
	require.NoError(t, err)
	assert.Len(t, buf, 10)
	assert.Equal(t, 16, pool.AllocatedBytes(), "10 bytes rounds up to the next 8-byte alignment")

	_, err = pool.Alloc(100)
	assert.Error(t, err)
}

func TestFreeQueueCarvesNodesFromPool(t *testing.T) {
	pool := NewPool(make([]byte, 4096))
	cs := &MutexCriticalSection{}

	q, err := NewFreeQueue(cs, pool, "free", 4, 32)
	require.NoError(t, err)
	assert.Equal(t, 4, q.Length())
	assert.True(t, q.IsFreeList())

	n := q.GetFreeNode()
	require.NotNil(t, n)
	assert.Equal(t, 3, q.Length())
	assert.Equal(t, 32, n.Capacity())

	FreeNode(n)
	assert.Equal(t, 4, q.Length())
}

func TestLiveQueueEnqueueRespectsLimitAndCopyCount(t *testing.T) {
	pool := NewPool(make([]byte, 4096))
	cs := &MutexCriticalSection{}

	free, err := NewFreeQueue(cs, pool, "free", 2, 16)
	require.NoError(t, err)
	live := NewLiveQueue(cs, "live", 1)

	n := free.GetFreeNode()
	require.NotNil(t, n)

	assert.True(t, live.EnqueueNode(n))
	assert.Equal(t, int32(1), n.CopyCount())

	// a second node can't fit past the limit of 1
	n2 := free.GetFreeNode()
	require.NotNil(t, n2)
	assert.False(t, live.EnqueueNode(n2))

	deq := live.DequeueNode()
	require.Same(t, n, deq)
	assert.Equal(t, int32(0), deq.CopyCount())
}

func TestEnqueueAtHeadPushesFront(t *testing.T) {
	pool := NewPool(make([]byte, 4096))
	cs := &MutexCriticalSection{}
	free, err := NewFreeQueue(cs, pool, "free", 3, 16)
	require.NoError(t, err)
	live := NewLiveQueue(cs, "live", 3)

	a, b, c := free.GetFreeNode(), free.GetFreeNode(), free.GetFreeNode()
	require.True(t, live.EnqueueNode(a))
	require.True(t, live.EnqueueNode(b))
	require.True(t, live.EnqueueAtHead(c))

	assert.Same(t, c, live.Peek())
	assert.Equal(t, 3, live.Length())
}

func TestFlushReturnsAllNodesToFreeList(t *testing.T) {
	pool := NewPool(make([]byte, 4096))
	cs := &MutexCriticalSection{}
	free, err := NewFreeQueue(cs, pool, "free", 3, 16)
	require.NoError(t, err)
	live := NewLiveQueue(cs, "live", 3)

	live.EnqueueNode(free.GetFreeNode())
	live.EnqueueNode(free.GetFreeNode())
	assert.Equal(t, 1, free.Length())

	live.Flush()
	assert.Equal(t, 0, live.Length())
	assert.Equal(t, 3, free.Length())
}

func TestCopyIntoTruncatesToCapacity(t *testing.T) {
	pool := NewPool(make([]byte, 4096))
	cs := &MutexCriticalSection{}
	free, err := NewFreeQueue(cs, pool, "free", 1, 4)
	require.NoError(t, err)
	n := free.GetFreeNode()

	written := CopyInto(n, []byte{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, written)
	assert.Equal(t, []byte{1, 2, 3, 4}, n.Data())
}
