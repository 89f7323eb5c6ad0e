// Package simharness wires a complete TX/RX audiocore demo together the
// way a real board bring-up would: a producer endpoint standing in for
// a codec microphone, a consumer standing in for a codec speaker, and an
// in-process simendpoint.Loopback standing in for the wireless
// transport between them. It exists to give cmd/audiocore-sim a single
// entry point that builds every processing stage named in the spec and
// drives the three cadences (foreground process loop, producer cadence,
// consumer cadence) as goroutines instead of interrupts, per spec §5's
// note that the Go re-expression trades ISR context for a goroutine the
// pipeline's critical section still protects against.
package simharness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/sparkmicro/audiocore/internal/audiocore"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/adpcm"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/cdcpll"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/cdcresample"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/mute"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/mutepacket"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/packing"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/resample"
	"github.com/sparkmicro/audiocore/internal/audiocore/stages/volume"
	"github.com/sparkmicro/audiocore/internal/config"
	"github.com/sparkmicro/audiocore/internal/fallback"
	"github.com/sparkmicro/audiocore/internal/fallbackgate"
	"github.com/sparkmicro/audiocore/internal/logging"
	"github.com/sparkmicro/audiocore/internal/metrics"
	"github.com/sparkmicro/audiocore/internal/simendpoint"
	"github.com/sparkmicro/audiocore/internal/simlink"
)

// poolBytes is generously sized for the demo's queue depths; a real
// board would size this from the exact node counts at link time, but
// the simulator just needs headroom.
const poolBytes = 4 << 20

// Options configures BuildDemo beyond what config.Settings carries:
// knobs specific to driving the simulation rather than the core itself.
type Options struct {
	WAVOutPath      string // if non-empty, RX consumer writes decoded audio here
	LinkPeriodTicks int    // simlink.Channel RSSI sweep period
	LinkRejectEvery int    // simlink.Channel frame-loss cadence, 0 disables
	TickInterval    time.Duration
}

// Harness owns the TX and RX pipelines plus everything needed to drive
// them in isolation from a real codec or radio.
type Harness struct {
	settings *config.Settings
	opts     Options

	pool *audiocore.Pool

	tx       *audiocore.Pipeline
	rx       *audiocore.Pipeline
	txFB     *fallback.Controller
	rxFB     *fallback.Controller
	volumeTX *volume.Stage

	txConsumer *audiocore.Endpoint
	rxConsumer *audiocore.Endpoint

	linkProducer *simendpoint.LoopbackProducer
	linkConsumer *simendpoint.LoopbackConsumer
	channel      *simlink.Channel
	pll          *softPLL

	rxSink interface {
		Start() error
		Stop() error
	}

	metrics *metrics.Collector
	log     *slog.Logger
}

// softPLL is a trivial in-memory stand-in for the platform audio PLL's
// fractional-N register that cdcpll.HAL drives, grounded on
// original_source/core/audio/processing/sac_cdc_pll.c's hal_fracn_get/
// hal_fracn_set shape.
type softPLL struct {
	fracn int32
}

func (p *softPLL) GetFracn() int32  { return p.fracn }
func (p *softPLL) SetFracn(v int32) { p.fracn = v }

// BuildDemo constructs a TX pipeline (sine producer -> processing chain
// -> loopback consumer) and an RX pipeline (loopback producer ->
// processing chain -> dummy or WAV consumer), connected by an in-process
// simendpoint.Loopback standing in for the wireless link.
func BuildDemo(settings *config.Settings, opts Options, reg prometheus.Registerer) (*Harness, error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 10 * time.Millisecond
	}
	log := logging.ForService("audiocore-sim")

	var mcol *metrics.Collector
	if reg != nil {
		mcol = metrics.New(reg)
		metrics.InitGlobal(mcol)
	}

	h := &Harness{settings: settings, opts: opts, metrics: mcol, log: log}
	h.pool = audiocore.NewPool(make([]byte, poolBytes))

	bytesPerSample := bytesPerSampleFor(settings.TX.Pipeline.BitDepth)
	txPayload := settings.TX.Pipeline.PayloadSamples * settings.TX.Pipeline.ChannelCount * bytesPerSample
	rxPayload := settings.RX.Pipeline.PayloadSamples * settings.RX.Pipeline.ChannelCount * bytesPerSample

	linkDepth := settings.TX.Pipeline.QueueSize
	h.linkProducer, h.linkConsumer = simendpoint.NewLoopbackLink(linkDepth)

	h.channel = simlink.NewChannel(opts.LinkPeriodTicks, opts.LinkRejectEvery)

	if err := h.buildTX(txPayload); err != nil {
		return nil, err
	}
	if err := h.buildRX(rxPayload); err != nil {
		return nil, err
	}

	if mcol != nil {
		h.tx.SetMetrics(mcol)
		h.rx.SetMetrics(mcol)
	}

	return h, nil
}

func bytesPerSampleFor(bitDepth int) int {
	if bitDepth <= 16 {
		return 2
	}
	return 4
}

func (h *Harness) buildTX(payloadSize int) error {
	cfg := h.settings.TX.Pipeline
	producer := audiocore.NewEndpoint("tx-mic", audiocore.RoleProducer, audiocore.EndpointConfig{
		ChannelCount:     cfg.ChannelCount,
		BitDepth:         cfg.BitDepth,
		AudioPayloadSize: payloadSize,
		QueueSize:        cfg.QueueSize,
	}, simendpoint.NewSinus(simendpoint.SineFreq1K).Produce, nil, nil)

	consumer := audiocore.NewEndpoint("tx-link", audiocore.RoleConsumer, audiocore.EndpointConfig{
		UseEncapsulation: cfg.UseEncapsulation,
		ChannelCount:     cfg.ChannelCount,
		BitDepth:         cfg.BitDepth,
		AudioPayloadSize: payloadSize,
		QueueSize:        cfg.QueueSize,
	}, h.linkConsumer.Consume, nil, nil)
	h.txConsumer = consumer

	h.txFB = h.settings.TX.Fallback.toController()
	h.txFB.GetInfo = func() fallback.Info { return h.channel.CCAInfo() }

	h.volumeTX = volume.New()

	stages := []audiocore.Stage{h.volumeTX, packing.New()}
	if h.settings.TX.Fallback.Enabled {
		stages = append([]audiocore.Stage{h.txFB}, stages...)
	}
	if h.settings.TX.ADPCM.Enabled {
		stages = append(stages, adpcm.NewEncoder().WithGate(fallbackgate.IsFallbackOn(h.txFB)))
	}
	if h.settings.TX.Resample.Enabled {
		stages = append(stages, resample.New(h.settings.TX.Resample.MultiplyRatio, h.settings.TX.Resample.DivideRatio))
	}
	stages = append(stages, mutepacket.NewTX())

	pipe, err := audiocore.NewPipeline(h.pool, &audiocore.MutexCriticalSection{}, cfg.Name, producer, consumer, stages, audiocore.Config{
		DoInitialBuffering: cfg.DoInitialBuffering,
	}, h.log)
	if err != nil {
		return fmt.Errorf("audiocore-sim: building tx pipeline: %w", err)
	}
	h.tx = pipe
	return nil
}

func (h *Harness) buildRX(payloadSize int) error {
	cfg := h.settings.RX.Pipeline
	producer := audiocore.NewEndpoint("rx-link", audiocore.RoleProducer, audiocore.EndpointConfig{
		UseEncapsulation: cfg.UseEncapsulation,
		ChannelCount:     cfg.ChannelCount,
		BitDepth:         cfg.BitDepth,
		AudioPayloadSize: payloadSize,
		QueueSize:        cfg.QueueSize,
	}, h.linkProducer.Produce, nil, nil)

	var consumerAction audiocore.Action
	if h.opts.WAVOutPath != "" {
		sink, err := simendpoint.CreateWAVSink(h.opts.WAVOutPath, 16000, cfg.ChannelCount)
		if err != nil {
			return fmt.Errorf("audiocore-sim: opening wav sink: %w", err)
		}
		h.rxSink = sink
		consumerAction = sink.Consume
	} else {
		sink := simendpoint.NewDummy()
		h.rxSink = sink
		consumerAction = sink.Consume
	}
	consumer := audiocore.NewEndpoint("rx-speaker", audiocore.RoleConsumer, audiocore.EndpointConfig{
		ChannelCount:     cfg.ChannelCount,
		BitDepth:         cfg.BitDepth,
		AudioPayloadSize: payloadSize,
		QueueSize:        cfg.QueueSize,
	}, consumerAction, nil, nil)
	h.rxConsumer = consumer

	h.rxFB = h.settings.RX.Fallback.toController()

	stages := []audiocore.Stage{mutepacket.NewRX()}
	if h.settings.RX.Fallback.Enabled {
		stages = append(stages, h.rxFB)
	}
	stages = append(stages, packing.New())
	if h.settings.RX.ADPCM.Enabled {
		stages = append(stages, adpcm.NewDecoder().WithGate(fallbackgate.IsFallbackOn(h.rxFB)))
	}
	switch {
	case h.settings.TX.CDC.Enabled && h.settings.TX.CDC.Variant == "pll":
		h.pll = &softPLL{}
		stages = append(stages, cdcpll.New(h.pll))
	case h.settings.TX.CDC.Enabled:
		stages = append(stages, cdcresample.New(h.settings.TX.CDC.QueueAvgSize, h.settings.TX.CDC.WindowFrames))
	}
	if h.settings.RX.Mute.Enabled {
		stages = append(stages, mute.NewWithSampleRate(cfg.SampleRateHz))
	}

	pipe, err := audiocore.NewPipeline(h.pool, &audiocore.MutexCriticalSection{}, cfg.Name, producer, consumer, stages, audiocore.Config{
		DoInitialBuffering: cfg.DoInitialBuffering,
	}, h.log)
	if err != nil {
		return fmt.Errorf("audiocore-sim: building rx pipeline: %w", err)
	}
	h.rx = pipe
	return nil
}

// toController adapts the config shape to a *fallback.Controller,
// starting from fallback.DefaultConfig and overriding the tuned fields.
func (cfg fallbackCfg) toController() *fallback.Controller {
	c := fallback.DefaultConfig()
	c.IsTxDevice = cfg.IsTXDevice
	if cfg.LinkMarginThreshold != 0 {
		c.LinkMarginThreshold = cfg.LinkMarginThreshold
	}
	if cfg.LinkMarginThresholdHysteresis != 0 {
		c.LinkMarginThresholdHysteresis = cfg.LinkMarginThresholdHysteresis
	}
	if cfg.LinkMarginGoodTimeSec != 0 {
		c.LinkMarginGoodTimeSec = cfg.LinkMarginGoodTimeSec
	}
	c.CCAMaxTryCount = cfg.CCAMaxTryCount
	if cfg.CCATryCountThresholdPerc != 0 {
		c.CCATryCountThresholdPerc = cfg.CCATryCountThresholdPerc
	}
	if cfg.CCAGoodTimeSec != 0 {
		c.CCAGoodTimeSec = cfg.CCAGoodTimeSec
	}
	if cfg.CCABadTimeSec != 0 {
		c.CCABadTimeSec = cfg.CCABadTimeSec
	}
	if cfg.ConsumerBufferLoadThresholdTenths != 0 {
		c.ConsumerBufferLoadThresholdTenths = cfg.ConsumerBufferLoadThresholdTenths
	}
	return c
}

// fallbackCfg is a type alias so toController can hang off
// config.FallbackConfig without an import cycle (config does not, and
// should not, import fallback).
type fallbackCfg = config.FallbackConfig

// Run drives the TX and RX pipelines for duration, ticking produce and
// process on both sides and feeding the simulated link's RSSI sweep into
// the TX fallback controller once per RX-side produce, mirroring a
// receive ISR calling sac_fallback_set_rx_link_margin per packet (spec
// §4.12). It returns when duration elapses or ctx is cancelled.
func (h *Harness) Run(ctx context.Context, duration time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return h.driveTX(gctx) })
	g.Go(func() error { return h.driveRX(gctx) })
	// The RX producer's loopback read blocks on the link channel, so a
	// plain ctx.Done() check in driveRX cannot unstick it; closing the
	// link here is what wakes a blocked Produce with ErrClosed.
	g.Go(func() error {
		<-gctx.Done()
		h.linkConsumer.Stop()
		h.linkProducer.Stop()
		return nil
	})

	err := g.Wait()
	if h.rxSink != nil {
		_ = h.rxSink.Stop()
	}
	return err
}

func (h *Harness) driveTX(ctx context.Context) error {
	ticker := time.NewTicker(h.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := h.tx.Produce(); err != nil {
				return err
			}
			if _, err := h.tx.Process(); err != nil {
				return err
			}
			if _, err := h.tx.Consume(h.txConsumer); err != nil && !isLinkClosed(err) {
				return err
			}
		}
	}
}

func (h *Harness) driveRX(ctx context.Context) error {
	ticker := time.NewTicker(h.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := h.rx.Produce(); err != nil {
				if isLinkClosed(err) {
					return nil
				}
				return err
			}
			h.channel.SampleAndFeed(h.txFB)
			if _, err := h.rx.Process(); err != nil {
				return err
			}
			if _, err := h.rx.Consume(h.rxConsumer); err != nil {
				return err
			}
		}
	}
}

// Stats snapshots both pipelines' statistics plus the fallback
// controllers' state for the run command's periodic log line.
type Stats struct {
	TX   audiocore.Stats
	RX   audiocore.Stats
	TXFB fallback.Stats
	RXFB fallback.Stats
}

func (h *Harness) Stats() Stats {
	return Stats{
		TX:   h.tx.Stats(),
		RX:   h.rx.Stats(),
		TXFB: h.txFB.Stats(),
		RXFB: h.rxFB.Stats(),
	}
}

// isLinkClosed reports whether err is the loopback link's shutdown
// sentinel, which Run's watcher goroutine triggers intentionally and
// which therefore should not surface as a drive-loop failure.
func isLinkClosed(err error) bool {
	return errors.Is(err, simendpoint.ErrClosed)
}
