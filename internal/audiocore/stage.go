package audiocore

// Stage is a processing stage in a pipeline's chain (spec §3, §4.4). Each
// Process call receives the packet header and the previous stage's output
// bytes and writes into out, returning the number of bytes written; a
// return of 0 means the stage consumed the packet without producing one
// (e.g. ADPCM's discard mode while fallback is off) and the chain stops
// there for this packet.
//
// Stages are dispatched through this interface rather than a closed sum
// type: the per-packet loop in Pipeline.Process calls each stage once,
// so there is no inner per-sample interface dispatch to avoid (see spec
// §9 design notes on avoiding trait-object indirection in the sample
// loop — the sample loop itself lives inside each stage's Process body,
// specialized on that stage's own sample format at Init time).
type Stage interface {
	// Name identifies the stage for logging and statistics.
	Name() string

	// Init prepares the stage's internal state for the given data
	// shape. It is called once, in chain order, during pipeline setup.
	Init(cfg StageConfig) error

	// Process transforms in (in[:inSize] is valid) into out, returning
	// the number of valid bytes written to out.
	Process(hdr *Header, in []byte, inSize int, out []byte) (int, error)
}

// Gated is implemented by stages whose execution is conditional on
// runtime state (typically the fallback flag). When a stage also
// implements Gated and Gate() returns false, the pipeline skips
// Process for that packet and passes the input through unchanged.
type Gated interface {
	Gate() bool
}

// Controllable is implemented by stages that accept runtime commands
// (spec §3: "ctrl hook (commands with 32-bit arg, 32-bit return)"), such
// as volume's INCREASE/DECREASE/MUTE/GET_FACTOR.
type Controllable interface {
	Ctrl(cmd uint32, arg uint32) (uint32, error)
}

// ExtraQueueSizer is implemented by stages that need additional consumer
// queue depth beyond the pipeline's configured queue_size (spec §4.4;
// CDC-resample requests +3). Pipeline setup sums every stage's request,
// clamped to math.MaxUint8.
type ExtraQueueSizer interface {
	ExtraQueueSize() int
}

// SampleFormat describes the fixed numeric shape a stage is initialized
// for: bit depth, packed vs. unpacked container, and channel count.
// Stages specialize their inner loop on this once at Init rather than
// branching per sample (spec §9, "dynamic numeric precision").
type SampleFormat struct {
	BitDepth     int // one of 16, 18, 20, 24, 32
	Packed       bool
	ChannelCount int // 1 or 2
}

// StageConfig is what Pipeline passes to Stage.Init: the negotiated
// sample format plus a handle back to the pipeline for stages that need
// to read pipeline-level state (CDC reads samplesBufferedSize; mute
// reads the consumer underflow counter).
type StageConfig struct {
	Input  SampleFormat
	Output SampleFormat

	// SamplesPerPacket is the configured payload's sample count per
	// channel, used by ADPCM packet sizing, mute's nb_packets_in_x_ms,
	// and CDC's queue-size-derived drift target.
	SamplesPerPacket int

	// Pipeline lets a stage query read-only runtime state it does not
	// own outright (queue lengths, buffered-size, underflow counters).
	Pipeline *Pipeline
}
