package audiocore

// Warning is the advisory, non-fatal counterpart to error (spec §7):
// the pipeline continued in a degraded way and the caller may inspect
// why. Warnings never leave the call that produced them and never
// replace a real error; Pipeline.Produce/Process/Consume return one
// alongside a nil error when applicable.
type Warning struct {
	Code    string
	Message string
}

func (w *Warning) Error() string { return w.Message }

var (
	warnProducerQueueFull    = &Warning{Code: "PRODUCER_Q_FULL", Message: "producer queue full, oldest node dropped"}
	warnProducerCorrupted    = &Warning{Code: "PRODUCER_PACKET_CORRUPTED", Message: "producer action returned zero bytes"}
	warnConsumerEmpty        = &Warning{Code: "CONSUMER_Q_EMPTY", Message: "consumer queue empty, re-entering buffering"}
	warnBufferingNotComplete = &Warning{Code: "BUFFERING_NOT_COMPLETE", Message: "consumer has not reached its buffering threshold"}
	warnNoSamples            = &Warning{Code: "NO_SAMPLES_TO_PROCESS", Message: "producer live queue empty"}
	warnProcessingQueueEmpty = &Warning{Code: "PROCESSING_Q_EMPTY", Message: "processing free queue exhausted"}
)
