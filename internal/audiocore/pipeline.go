package audiocore

import (
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/sparkmicro/audiocore/internal/errors"
	"github.com/sparkmicro/audiocore/internal/metrics"
)

// Constants governing queue sizing at pipeline setup (spec §4.4).
const (
	MinProducerQueueSize  = 2
	EPActionNodeCount     = 1
	ProcessInputNodeCount = 1
	ProcessingQueueNodes  = 2
)

// MixerOption selects whether a pipeline feeds a mixer and, if so, how
// (spec §9 design notes; grounded on the original's mixer module, see
// package mixer). NewPipeline stores the value in Config but does not
// act on it; package mixer is used through simendpoint.MixedSource.
type MixerOption int

const (
	MixerNone MixerOption = iota
	MixerInput
	MixerOutput
)

// Config holds pipeline-level setup options (spec §3).
type Config struct {
	DoInitialBuffering bool
	MixerOption        MixerOption
}

// Stats is the pipeline's advisory statistics block (spec §6). Counters
// use 32-bit-equivalent natural writes; readers may tolerate torn reads.
type Stats struct {
	ProducerBufferLoad             int
	ProducerBufferSize             int
	ProducerOverflowCount          uint32
	ProducerPacketsCorruptedCount  uint32

	ConsumerBufferLoad           int
	ConsumerBufferSize           int
	ConsumerOverflowCount        uint32
	ConsumerUnderflowCount       uint32
	ConsumerQueuePeakBufferLoad  int
}

// Pipeline orchestrates produce -> process chain -> consume for one
// producer endpoint (optionally chained), an ordered processing chain,
// and one or more consumer endpoints (spec §3, §4.4).
type Pipeline struct {
	ID     string
	Name   string
	Config Config

	pool     *Pool
	cs       CriticalSection
	producer *Endpoint
	consumer *Endpoint // head of the consumer chain
	stages   []Stage

	processingFreeQueue *Queue
	producerFreeQueue   *Queue
	consumerFreeQueue   *Queue

	nodeDataSize        int
	bufferingThreshold  int
	samplesBufferedSize int

	stats Stats

	lastUnderflowSeen uint32

	fallbackSource func() bool

	metrics *metrics.Collector

	log *slog.Logger
}

// SetMetrics wires a Prometheus collector into this pipeline; nil (the
// default) keeps every recording call a no-op.
func (p *Pipeline) SetMetrics(m *metrics.Collector) {
	p.metrics = m
}

// SetFallbackSource wires the fallback controller's current flag into
// this pipeline's consume-side header encoding (spec §4.4: "fallback
// mirrors the current mode"). Nil leaves the header's fallback bit
// always false.
func (p *Pipeline) SetFallbackSource(f func() bool) {
	p.fallbackSource = f
}

// NewPipeline performs pipeline setup per spec §4.4: initializes every
// stage in order (summing any ExtraQueueSize requests, clamped to
// UINT8_MAX), computes the shared node size, and allocates the
// processing/producer/consumer queues out of pool.
func NewPipeline(pool *Pool, cs CriticalSection, name string, producer, consumer *Endpoint, stages []Stage, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if pool == nil || cs == nil || producer == nil || consumer == nil {
		return nil, errors.New(errPipeline("pipeline: nil pool/cs/producer/consumer")).
			Component("pipeline").Category(errors.CategoryInit).Build()
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "pipeline", "pipeline", name)

	p := &Pipeline{
		ID:       "pipeline-" + uuid.New().String()[:8],
		Name:     name,
		Config:   cfg,
		pool:     pool,
		cs:       cs,
		producer: producer,
		consumer: consumer,
		stages:   stages,
		log:      log,
	}

	extra := consumer.extraQueueSizeReq
	wordSize := wordSizeFor(consumer.Config.ChannelCount)
	for _, st := range stages {
		fmtCfg := StageConfig{
			Input: SampleFormat{
				ChannelCount: producer.Config.ChannelCount,
				BitDepth:     producer.Config.BitDepth,
				Packed:       producer.Config.Packed,
			},
			Output: SampleFormat{
				ChannelCount: consumer.Config.ChannelCount,
				BitDepth:     consumer.Config.BitDepth,
				Packed:       consumer.Config.Packed,
			},
			SamplesPerPacket: samplesPerPacket(consumer.Config.AudioPayloadSize, consumer.Config.ChannelCount),
			Pipeline:         p,
		}
		if err := st.Init(fmtCfg); err != nil {
			return nil, errors.New(err).Component("pipeline").
				Category(errors.CategoryInit).Context("stage", st.Name()).Build()
		}
		if sizer, ok := st.(ExtraQueueSizer); ok {
			extra += sizer.ExtraQueueSize()
		}
	}
	if extra > math.MaxUint8 {
		extra = math.MaxUint8
	}

	nodeSize := producer.Config.AudioPayloadSize
	if consumer.Config.AudioPayloadSize > nodeSize {
		nodeSize = consumer.Config.AudioPayloadSize
	}
	nodeSize += 1 /* payload-size field */ + headerSize + wordSize
	p.nodeDataSize = alignUp(nodeSize, 4)

	var err error
	p.processingFreeQueue, err = NewFreeQueue(cs, pool, name+".processing", ProcessingQueueNodes, p.nodeDataSize)
	if err != nil {
		return nil, err
	}

	producerQueueSize := producer.Config.QueueSize
	if producerQueueSize < MinProducerQueueSize {
		producerQueueSize = MinProducerQueueSize
	}
	producerQueueSize += EPActionNodeCount + ProcessInputNodeCount
	p.producerFreeQueue, err = NewFreeQueue(cs, pool, name+".producer.free", producerQueueSize, p.nodeDataSize)
	if err != nil {
		return nil, err
	}
	producer.freeQueue = p.producerFreeQueue
	producer.liveQueue = NewLiveQueue(cs, name+".producer.live", producerQueueSize)

	consumerQueueSize := consumer.Config.QueueSize + extra
	if consumer.Config.DelayedAction {
		consumerQueueSize += EPActionNodeCount
	}
	p.consumerFreeQueue, err = NewFreeQueue(cs, pool, name+".consumer.free", consumerQueueSize, p.nodeDataSize)
	if err != nil {
		return nil, err
	}
	for c := consumer; c != nil; c = c.Next {
		c.freeQueue = p.consumerFreeQueue
		c.liveQueue = NewLiveQueue(cs, name+"."+c.Name+".live", consumer.Config.QueueSize+extra)
	}

	if cfg.DoInitialBuffering {
		p.bufferingThreshold = consumer.Config.QueueSize - 1
	} else {
		p.bufferingThreshold = 1
	}

	p.stats.ProducerBufferSize = producerQueueSize
	p.stats.ConsumerBufferSize = consumerQueueSize

	log.Debug("pipeline initialized",
		"pipeline_id", p.ID,
		"node_data_size", p.nodeDataSize,
		"buffering_threshold", p.bufferingThreshold,
		"extra_queue_size", extra)

	return p, nil
}

func wordSizeFor(channels int) int {
	if channels <= 0 {
		return 4
	}
	return 4 * channels
}

func samplesPerPacket(payloadSize, channels int) int {
	if channels <= 0 {
		channels = 1
	}
	bytesPerSample := 2 // default to 16-bit granularity; stages with wider formats override internally.
	perChannelBytes := payloadSize / channels
	return perChannelBytes / bytesPerSample
}

const headerSize = 2

type pipelineErr string

func (e pipelineErr) Error() string { return string(e) }
func errPipeline(msg string) error  { return pipelineErr(msg) }

// SamplesBufferedSize returns the byte count of audio samples currently
// sitting in consumer queues (spec §3's drift-detection input).
func (p *Pipeline) SamplesBufferedSize() int {
	p.cs.Enter()
	defer p.cs.Exit()
	return p.samplesBufferedSize
}

// ConsumerQueueSize returns the configured (pre-extra) consumer queue
// depth, used by CDC to derive its drift target.
func (p *Pipeline) ConsumerQueueSize() int { return p.consumer.Config.QueueSize }

// ConsumerUnderflowCount returns the running underflow counter, used by
// the mute-on-underflow stage to detect a fresh underflow since its last
// call.
func (p *Pipeline) ConsumerUnderflowCount() uint32 {
	p.cs.Enter()
	defer p.cs.Exit()
	return p.stats.ConsumerUnderflowCount
}

// Stats returns a copy of the pipeline's current statistics.
func (p *Pipeline) Stats() Stats {
	p.cs.Enter()
	defer p.cs.Exit()
	return p.stats
}

// ConsumerBufferingComplete reports whether the first consumer has
// finished its initial buffering ramp (spec invariant I5), used by the
// fallback controller to gate queue-length averaging.
func (p *Pipeline) ConsumerBufferingComplete() bool {
	p.cs.Enter()
	defer p.cs.Exit()
	return p.consumer.bufferingComplete
}

// ConsumerQueueLength returns the first consumer's live queue depth in
// packets.
func (p *Pipeline) ConsumerQueueLength() int {
	p.cs.Enter()
	defer p.cs.Exit()
	return p.consumer.liveQueue.Length()
}

// ResetConsumerQueuePeak zeroes the peak consumer buffer load counter,
// used by the fallback controller when it re-enters a tracked state.
func (p *Pipeline) ResetConsumerQueuePeak() {
	p.cs.Enter()
	defer p.cs.Exit()
	p.stats.ConsumerQueuePeakBufferLoad = 0
}

// updateBuffering marks each consumer as buffering-complete once its
// live queue reaches the threshold (spec invariant I5: once started,
// buffering does not stop until Stop).
func (p *Pipeline) updateBuffering() {
	for c := p.consumer; c != nil; c = c.Next {
		if c.bufferingComplete {
			continue
		}
		if c.liveQueue.Length() >= p.bufferingThreshold {
			c.bufferingComplete = true
			if err := c.Start(); err != nil {
				p.log.Warn("consumer start failed", "endpoint", c.Name, "error", err)
			}
		}
	}
}

// Produce drives the producer side (spec §4.4's pipeline_produce).
func (p *Pipeline) Produce() (*Warning, error) {
	ep := p.producer
	if ep.Config.DelayedAction {
		var warn *Warning
		if ep.currentNode != nil {
			if !ep.liveQueue.EnqueueNode(ep.currentNode) {
				p.dropOldestProducer()
				ep.liveQueue.EnqueueNode(ep.currentNode)
				warn = warnProducerQueueFull
			}
			ep.currentNode = nil
		}
		node := ep.freeQueue.GetFreeNode()
		if node == nil {
			return nil, errors.New(errPipeline("pipeline: producer free queue exhausted")).
				Component("pipeline").Category(errors.CategoryRuntime).Build()
		}
		ep.currentNode = node
		if ep.action != nil {
			if _, err := ep.action(node.Data()[:ep.Config.AudioPayloadSize]); err != nil {
				return nil, err
			}
		}
		return warn, nil
	}

	node := ep.freeQueue.GetFreeNode()
	if node == nil {
		return nil, errors.New(errPipeline("pipeline: producer free queue exhausted")).
			Component("pipeline").Category(errors.CategoryRuntime).Build()
	}
	actionSize := ep.Config.AudioPayloadSize
	if ep.Config.UseEncapsulation {
		actionSize += headerSize
	}
	var n int
	var err error
	if ep.action != nil {
		n, err = ep.action(node.Data()[:actionSize])
		if err != nil {
			FreeNode(node)
			return nil, err
		}
	}
	if n > 0 {
		node.SetPayloadSize(n)
		if !ep.liveQueue.EnqueueNode(node) {
			p.dropOldestProducer()
			ep.liveQueue.EnqueueNode(node)
			return warnProducerQueueFull, nil
		}
		return nil, nil
	}
	FreeNode(node)
	p.cs.Enter()
	p.stats.ProducerPacketsCorruptedCount++
	p.cs.Exit()
	p.metrics.RecordPacketCorrupted(p.Name)
	return warnProducerCorrupted, nil
}

func (p *Pipeline) dropOldestProducer() {
	dropped := p.producer.liveQueue.DequeueNode()
	if dropped == nil {
		return
	}
	FreeNode(dropped)
	p.cs.Enter()
	p.stats.ProducerOverflowCount++
	p.cs.Exit()
	p.metrics.RecordProducerOverflow(p.Name)
}

// Process drives one packet through the processing chain (spec §4.4's
// pipeline_process).
func (p *Pipeline) Process() (*Warning, error) {
	p.updateBuffering()

	srcNode := p.producer.liveQueue.DequeueNode()
	if srcNode == nil {
		return warnNoSamples, nil
	}

	procNode := p.processingFreeQueue.GetFreeNode()
	if procNode == nil {
		FreeNode(srcNode)
		return warnProcessingQueueEmpty, nil
	}
	n := CopyInto(procNode, srcNode.Payload())
	*procNode.Header() = *srcNode.Header()
	FreeNode(srcNode)

	hdr := procNode.Header()
	if p.producer.Config.UseEncapsulation {
		buf := procNode.Data()
		decoded, ok := Decode(buf[:headerSize])
		if ok {
			*hdr = decoded
			n -= headerSize
			copy(buf[:n], buf[headerSize:headerSize+n])
		} else {
			*hdr = Header{PayloadSize: uint8(p.producer.Config.AudioPayloadSize)}
			n = p.producer.Config.AudioPayloadSize
			p.cs.Enter()
			p.stats.ProducerPacketsCorruptedCount++
			p.cs.Exit()
			p.metrics.RecordPacketCorrupted(p.Name)
		}
	}

	inNode := procNode
	var outNode *Node
	inSize := n

	for _, st := range p.stages {
		if g, ok := st.(Gated); ok && !g.Gate() {
			continue
		}
		outNode = p.processingFreeQueue.GetFreeNode()
		if outNode == nil {
			outNode = inNode
			break
		}
		written, err := st.Process(inNode.Header(), inNode.Data(), inSize, outNode.Data())
		if err != nil {
			FreeNode(outNode)
			FreeNode(inNode)
			return nil, errors.New(err).Component("pipeline").
				Category(errors.CategoryPipeline).Context("stage", st.Name()).Build()
		}
		if written <= 0 {
			FreeNode(outNode)
			FreeNode(inNode)
			return nil, nil
		}
		*outNode.Header() = *inNode.Header()
		outNode.SetPayloadSize(written)
		FreeNode(inNode)
		inNode = outNode
		inSize = written
	}

	finalNode := inNode
	finalNode.SetPayloadSize(inSize)

	enqueued := false
	for c := p.consumer; c != nil; c = c.Next {
		dst := c.freeQueue.GetFreeNode()
		if dst == nil {
			p.consumerOverflow(c)
			dst = c.freeQueue.GetFreeNode()
			if dst == nil {
				continue
			}
		}
		CopyInto(dst, finalNode.Payload())
		*dst.Header() = *finalNode.Header()
		if !c.liveQueue.EnqueueNode(dst) {
			p.consumerOverflow(c)
			c.liveQueue.EnqueueNode(dst)
		}
		p.cs.Enter()
		p.samplesBufferedSize += dst.PayloadSize()
		if c.liveQueue.Length() > p.stats.ConsumerQueuePeakBufferLoad {
			p.stats.ConsumerQueuePeakBufferLoad = c.liveQueue.Length()
		}
		p.cs.Exit()
		p.metrics.RecordQueueDepth(p.Name, c.Name, c.liveQueue.Length())
		p.metrics.RecordQueuePeak(p.Name, p.stats.ConsumerQueuePeakBufferLoad)
		enqueued = true
	}
	FreeNode(finalNode)

	if !enqueued {
		return warnNoSamples, nil
	}
	return nil, nil
}

func (p *Pipeline) consumerOverflow(c *Endpoint) {
	dropped := c.liveQueue.DequeueNode()
	if dropped == nil {
		return
	}
	p.cs.Enter()
	p.stats.ConsumerOverflowCount++
	p.samplesBufferedSize -= dropped.PayloadSize()
	p.cs.Exit()
	FreeNode(dropped)
	p.metrics.RecordConsumerOverflow(p.Name)
}

// Consume drives the consumer side for one consumer endpoint (spec
// §4.4's pipeline_consume). For a multi-consumer pipeline, call it once
// per distinct consumer endpoint in the chain.
func (p *Pipeline) Consume(c *Endpoint) (*Warning, error) {
	if c.Config.DelayedAction {
		if c.currentNode != nil {
			FreeNode(c.currentNode)
			c.currentNode = nil
		}
		node := c.liveQueue.DequeueNode()
		if node == nil {
			return p.consumeUnderflow(c), nil
		}
		c.currentNode = node
		audioSize := node.PayloadSize()
		p.finalizeEncapsulation(c, node)
		if c.action != nil {
			if _, err := c.action(node.Payload()); err != nil {
				return nil, err
			}
		}
		p.cs.Enter()
		p.samplesBufferedSize -= audioSize
		p.cs.Exit()
		return nil, nil
	}

	node := c.liveQueue.Peek()
	if node == nil {
		return p.consumeUnderflow(c), nil
	}
	audioSize := node.PayloadSize()
	p.finalizeEncapsulation(c, node)
	var err error
	var n int
	if c.action != nil {
		n, err = c.action(node.Payload())
		if err != nil {
			return nil, err
		}
	} else {
		n = audioSize
	}
	if n <= 0 {
		return p.consumeUnderflow(c), nil
	}
	dequeued := c.liveQueue.DequeueNode()
	p.cs.Enter()
	p.samplesBufferedSize -= audioSize
	p.cs.Exit()
	FreeNode(dequeued)
	return nil, nil
}

func (p *Pipeline) consumeUnderflow(c *Endpoint) *Warning {
	c.bufferingComplete = false
	p.cs.Enter()
	p.stats.ConsumerUnderflowCount++
	p.cs.Exit()
	p.metrics.RecordConsumerUnderflow(p.Name)
	return warnConsumerEmpty
}

// finalizeEncapsulation applies the consume-side header rewrite (spec
// §4.4): tx_queue_level_high set iff live-queue length >= 2, fallback
// mirrors the current mode, crc4 recomputed over the zeroed-control-bit
// form.
func (p *Pipeline) finalizeEncapsulation(c *Endpoint, node *Node) {
	if !c.Config.UseEncapsulation {
		return
	}
	hdr := node.Header()
	audioSize := node.PayloadSize()
	hdr.TXQueueLevelHigh = c.liveQueue.Length() >= 2
	if p.fallbackSource != nil {
		hdr.Fallback = p.fallbackSource()
	}
	hdr.PayloadSize = uint8(audioSize)
	buf := node.Data()
	copy(buf[headerSize:headerSize+audioSize], buf[:audioSize])
	hdr.Encode(buf[:headerSize])
	node.SetPayloadSize(headerSize + audioSize)
}

// Stop halts the producer and every consumer endpoint, freeing the
// currently-held producer node; queued nodes are left in place for a
// subsequent restart (spec §5).
func (p *Pipeline) Stop() error {
	if p.producer.currentNode != nil {
		FreeNode(p.producer.currentNode)
		p.producer.currentNode = nil
	}
	if err := p.producer.Stop(); err != nil {
		return err
	}
	for c := p.consumer; c != nil; c = c.Next {
		if err := c.Stop(); err != nil {
			return err
		}
	}
	return nil
}
