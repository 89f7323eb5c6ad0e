package audiocore

// Node is a fixed-capacity buffer drawn from a Pool, the unit of data
// flow through a pipeline. Its capacity is decided once, at pipeline
// setup, from the larger of the producer and consumer audio payload
// sizes plus header and alignment padding (see Pipeline.nodeDataSize).
//
// A Node is exclusively owned by whichever Queue currently holds it, or
// is the CurrentNode of exactly one Endpoint (invariant I1). copyCount
// allows temporary co-ownership when the same processed packet is
// enqueued into several consumer queues at once (invariant I3): a node
// returns to its home free-list only once copyCount reaches zero.
//
// Go has no pointer-aliasing trick to overlay a length-prefix and header
// onto the raw buffer the way the C source does; Header and PayloadSize
// are explicit fields here instead. Data still sizes to the full
// capacity computed at setup, preserving invariant I2 (capacity is never
// smaller than any payload ever written to it).
type Node struct {
	data        []byte
	payloadSize int
	header      Header
	copyCount   int32
	homeQueue   *Queue
	next        *Node
}

// Data returns the node's full-capacity backing buffer. Callers write
// Data()[:n] and then call SetPayloadSize(n).
func (n *Node) Data() []byte { return n.data }

// Capacity is the fixed size of the node's backing buffer.
func (n *Node) Capacity() int { return len(n.data) }

// PayloadSize is the number of valid bytes currently held in Data().
func (n *Node) PayloadSize() int { return n.payloadSize }

// SetPayloadSize records how many bytes of Data() are valid. It never
// reallocates; callers must not exceed Capacity().
func (n *Node) SetPayloadSize(size int) {
	n.payloadSize = size
}

// Header returns the node's audio header (meaningful only when the
// owning endpoint uses encapsulation).
func (n *Node) Header() *Header { return &n.header }

// Payload is a convenience accessor returning Data()[:PayloadSize()].
func (n *Node) Payload() []byte {
	return n.data[:n.payloadSize]
}

// CopyCount is the number of live queues currently sharing this node.
func (n *Node) CopyCount() int32 { return n.copyCount }

// CopyInto copies up to len(dst) bytes from src into this node's buffer
// and sets the payload size, mirroring sac_node_memcpy.
func CopyInto(dst *Node, src []byte) int {
	n := copy(dst.data, src)
	dst.payloadSize = n
	return n
}
