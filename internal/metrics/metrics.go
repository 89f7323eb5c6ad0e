// Package metrics wraps the audio core's Prometheus instrumentation the
// way the teacher's internal/audiocore.MetricsCollector wraps its own
// lower-level metrics struct: a single collector holding every
// registered vector, an enabled flag so a caller can construct a no-op
// collector when metrics are off, and one Record/Update method per
// event the core reports. Grounded on
// internal/audiocore/metrics.go's MetricsCollector shape; the
// underlying Prometheus vectors are built directly against
// github.com/prometheus/client_golang since the teacher's own
// observability/metrics.AudioCoreMetrics definition was not retrieved
// with the corpus (see DESIGN.md).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds every audio-core Prometheus vector. A nil *Collector
// (or one built with enabled=false) makes every method a no-op so
// library code can call it unconditionally.
type Collector struct {
	mu      sync.RWMutex
	enabled bool

	queueDepth      *prometheus.GaugeVec
	queuePeak       *prometheus.GaugeVec
	producerOverflow *prometheus.CounterVec
	consumerOverflow *prometheus.CounterVec
	consumerUnderflow *prometheus.CounterVec
	packetsCorrupted *prometheus.CounterVec

	cdcInflated *prometheus.CounterVec
	cdcDeflated *prometheus.CounterVec
	cdcFracnOffset *prometheus.GaugeVec

	fallbackActive     *prometheus.GaugeVec
	fallbackActivations *prometheus.CounterVec
	fallbackLinkMargin *prometheus.GaugeVec
}

var (
	globalCollector atomicCollector
	globalOnce      sync.Once
)

// atomicCollector avoids importing sync/atomic's generic Pointer type
// twice across the package; a mutex-guarded pointer is plenty for a
// value that is set once at startup and read occasionally.
type atomicCollector struct {
	mu sync.RWMutex
	c  *Collector
}

func (a *atomicCollector) store(c *Collector) {
	a.mu.Lock()
	a.c = c
	a.mu.Unlock()
}

func (a *atomicCollector) load() *Collector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.c
}

// New registers every audio-core metric against reg and returns an
// enabled Collector. Pass prometheus.NewRegistry() (or
// prometheus.DefaultRegisterer wrapped in a registry) from the
// simulator's setup path.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{enabled: true}

	c.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "audiocore",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current live-queue length in packets.",
	}, []string{"pipeline", "queue"})

	c.queuePeak = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "audiocore",
		Subsystem: "queue",
		Name:      "peak_depth",
		Help:      "Peak consumer live-queue length observed since last reset.",
	}, []string{"pipeline"})

	c.producerOverflow = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "producer",
		Name:      "overflow_total",
		Help:      "Producer live-queue overflow events (oldest node dropped).",
	}, []string{"pipeline"})

	c.consumerOverflow = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "consumer",
		Name:      "overflow_total",
		Help:      "Consumer live-queue overflow events (oldest node dropped).",
	}, []string{"pipeline"})

	c.consumerUnderflow = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "consumer",
		Name:      "underflow_total",
		Help:      "Consumer queue-empty events (re-enters initial buffering).",
	}, []string{"pipeline"})

	c.packetsCorrupted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "producer",
		Name:      "packets_corrupted_total",
		Help:      "Packets dropped due to a zero-byte action or a failed header CRC4.",
	}, []string{"pipeline"})

	c.cdcInflated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "cdc",
		Name:      "inflated_total",
		Help:      "Clock-drift corrections that inserted a sample (queue running low).",
	}, []string{"pipeline"})

	c.cdcDeflated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "cdc",
		Name:      "deflated_total",
		Help:      "Clock-drift corrections that dropped a sample (queue running high).",
	}, []string{"pipeline"})

	c.cdcFracnOffset = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "audiocore",
		Subsystem: "cdc",
		Name:      "fracn_offset",
		Help:      "Current PLL FRACN offset from default (CDC-PLL variant only).",
	}, []string{"pipeline"})

	c.fallbackActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "audiocore",
		Subsystem: "fallback",
		Name:      "active",
		Help:      "1 while the fallback controller's flag is set, 0 otherwise.",
	}, []string{"pipeline"})

	c.fallbackActivations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "audiocore",
		Subsystem: "fallback",
		Name:      "activations_total",
		Help:      "Count of transitions into fallback mode.",
	}, []string{"pipeline"})

	c.fallbackLinkMargin = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "audiocore",
		Subsystem: "fallback",
		Name:      "link_margin_db",
		Help:      "Rolling average link-margin value feeding the fallback state machine.",
	}, []string{"pipeline"})

	reg.MustRegister(
		c.queueDepth, c.queuePeak, c.producerOverflow, c.consumerOverflow,
		c.consumerUnderflow, c.packetsCorrupted, c.cdcInflated, c.cdcDeflated,
		c.cdcFracnOffset, c.fallbackActive, c.fallbackActivations, c.fallbackLinkMargin,
	)

	return c
}

// InitGlobal stores c as the package-level collector, mirroring the
// teacher's InitMetrics/GetMetrics global-singleton pattern for call
// sites (processing stages) that have no convenient way to thread a
// *Collector through construction.
func InitGlobal(c *Collector) {
	globalOnce.Do(func() {
		globalCollector.store(c)
	})
}

// Global returns the process-wide collector, or a disabled no-op
// Collector if InitGlobal was never called.
func Global() *Collector {
	if c := globalCollector.load(); c != nil {
		return c
	}
	return &Collector{}
}

func (c *Collector) ok() bool { return c != nil && c.enabled }

// RecordQueueDepth reports one queue's current length for a pipeline.
func (c *Collector) RecordQueueDepth(pipeline, queue string, depth int) {
	if !c.ok() {
		return
	}
	c.queueDepth.WithLabelValues(pipeline, queue).Set(float64(depth))
}

// RecordQueuePeak reports a pipeline's consumer peak queue depth.
func (c *Collector) RecordQueuePeak(pipeline string, peak int) {
	if !c.ok() {
		return
	}
	c.queuePeak.WithLabelValues(pipeline).Set(float64(peak))
}

// RecordProducerOverflow increments the producer overflow counter.
func (c *Collector) RecordProducerOverflow(pipeline string) {
	if !c.ok() {
		return
	}
	c.producerOverflow.WithLabelValues(pipeline).Inc()
}

// RecordConsumerOverflow increments the consumer overflow counter.
func (c *Collector) RecordConsumerOverflow(pipeline string) {
	if !c.ok() {
		return
	}
	c.consumerOverflow.WithLabelValues(pipeline).Inc()
}

// RecordConsumerUnderflow increments the consumer underflow counter.
func (c *Collector) RecordConsumerUnderflow(pipeline string) {
	if !c.ok() {
		return
	}
	c.consumerUnderflow.WithLabelValues(pipeline).Inc()
}

// RecordPacketCorrupted increments the corrupted-packet counter.
func (c *Collector) RecordPacketCorrupted(pipeline string) {
	if !c.ok() {
		return
	}
	c.packetsCorrupted.WithLabelValues(pipeline).Inc()
}

// RecordCDCInflate increments the CDC sample-insertion counter.
func (c *Collector) RecordCDCInflate(pipeline string) {
	if !c.ok() {
		return
	}
	c.cdcInflated.WithLabelValues(pipeline).Inc()
}

// RecordCDCDeflate increments the CDC sample-drop counter.
func (c *Collector) RecordCDCDeflate(pipeline string) {
	if !c.ok() {
		return
	}
	c.cdcDeflated.WithLabelValues(pipeline).Inc()
}

// RecordCDCFracnOffset reports the CDC-PLL stage's current FRACN offset.
func (c *Collector) RecordCDCFracnOffset(pipeline string, offset int32) {
	if !c.ok() {
		return
	}
	c.cdcFracnOffset.WithLabelValues(pipeline).Set(float64(offset))
}

// RecordFallbackState reports whether fallback is currently active.
// Callers increment the activation counter separately via
// IncFallbackActivation on each false->true transition.
func (c *Collector) RecordFallbackState(pipeline string, active bool) {
	if !c.ok() {
		return
	}
	v := 0.0
	if active {
		v = 1.0
	}
	c.fallbackActive.WithLabelValues(pipeline).Set(v)
}

// RecordFallbackLinkMargin reports the fallback controller's current
// rolling link-margin average.
func (c *Collector) RecordFallbackLinkMargin(pipeline string, marginDB int64) {
	if !c.ok() {
		return
	}
	c.fallbackLinkMargin.WithLabelValues(pipeline).Set(float64(marginDB))
}

// IncFallbackActivation increments the activation counter by one.
func (c *Collector) IncFallbackActivation(pipeline string) {
	if !c.ok() {
		return
	}
	c.fallbackActivations.WithLabelValues(pipeline).Inc()
}
