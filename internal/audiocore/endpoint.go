package audiocore

import (
	"log/slog"

	"github.com/google/uuid"
)

// EndpointRole distinguishes a producer (audio source) from a consumer
// (audio sink), spec §3.
type EndpointRole int

const (
	RoleProducer EndpointRole = iota
	RoleConsumer
)

func (r EndpointRole) String() string {
	if r == RoleProducer {
		return "producer"
	}
	return "consumer"
}

// EndpointConfig mirrors the C source's per-endpoint configuration
// (spec §3).
type EndpointConfig struct {
	UseEncapsulation bool
	DelayedAction    bool
	ChannelCount     int // 1 or 2
	BitDepth         int // one of 16, 18, 20, 24, 32
	Packed           bool
	AudioPayloadSize int
	QueueSize        int
}

// Action is the endpoint's I/O callback. For an immediate (non-delayed)
// endpoint it performs the transfer synchronously and returns the byte
// count transferred (0 means failure/no data). For a delayed endpoint it
// initiates an asynchronous transfer and its byte count is ignored.
// There is no separate completion call: the next Pipeline.Produce
// enqueues the producer's in-flight node, and the next Pipeline.Consume
// frees the consumer's in-flight node.
type Action func(buf []byte) (int, error)

// Endpoint is a producer or consumer I/O adapter tying a pipeline to a
// codec or wireless transport (spec §3, §6). Endpoints may be chained
// via Next to implement extra consumers/producers sharing the same node
// pool.
type Endpoint struct {
	ID     string
	Name   string
	Role   EndpointRole
	Config EndpointConfig

	action Action
	start  func() error
	stop   func() error

	liveQueue *Queue
	freeQueue *Queue

	currentNode         *Node
	bufferingComplete   bool
	extraQueueSizeReq   int

	// Next chains an additional consumer (or producer) sharing this
	// pipeline's node pool, per spec §3's Endpoint.next_endpoint.
	Next *Endpoint

	log *slog.Logger
}

// NewEndpoint constructs an Endpoint. action/start/stop may be nil for
// roles that never call them (a consumer-only chain link, for example).
// Pipeline.Consume treats a nil action as a successful transfer; for an
// immediate producer a nil action produces no data, so Pipeline.Produce
// frees the node and counts it as a corrupted packet.
func NewEndpoint(name string, role EndpointRole, cfg EndpointConfig, action Action, start, stop func() error) *Endpoint {
	return &Endpoint{
		ID:     "endpoint-" + uuid.New().String()[:8],
		Name:   name,
		Role:   role,
		Config: cfg,
		action: action,
		start:  start,
		stop:   stop,
	}
}

// RequestExtraQueueSize lets a processing stage ask this endpoint's
// consumer queue to be deeper than Config.QueueSize. Pipeline setup adds
// the consumer endpoint's requested total to the stages' ExtraQueueSize
// requests (CDC-resample's 3, spec §4.10, arrive that way) before
// allocating queues.
func (e *Endpoint) RequestExtraQueueSize(n int) {
	e.extraQueueSizeReq += n
}

// Start invokes the endpoint's start hook, if any. It does not change the
// buffering state; the pipeline marks a consumer buffering-complete just
// before calling its Start.
func (e *Endpoint) Start() error {
	if e.start == nil {
		return nil
	}
	return e.start()
}

// Stop invokes the endpoint's stop hook, if any. Queued nodes are left
// in place for a subsequent restart, per spec §5.
func (e *Endpoint) Stop() error {
	if e.stop == nil {
		return nil
	}
	return e.stop()
}

// BufferingComplete reports whether the consumer has reached its
// buffering threshold (spec invariant I5).
func (e *Endpoint) BufferingComplete() bool { return e.bufferingComplete }

// CurrentNode returns the node currently checked out to this endpoint's
// in-flight action, or nil.
func (e *Endpoint) CurrentNode() *Node { return e.currentNode }

// LiveQueue returns the endpoint's live sample queue.
func (e *Endpoint) LiveQueue() *Queue { return e.liveQueue }
