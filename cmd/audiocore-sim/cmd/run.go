package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sparkmicro/audiocore/internal/config"
	"github.com/sparkmicro/audiocore/internal/logging"
	"github.com/sparkmicro/audiocore/internal/simharness"
)

var (
	flagConfigPath    string
	flagDuration      time.Duration
	flagTickInterval  time.Duration
	flagWAVOut        string
	flagLinkPeriod    int
	flagLinkRejectN   int
	flagStatsInterval time.Duration
)

// runCommand builds the "run" subcommand, which loads configuration,
// assembles the TX/RX demo harness and drives it until duration elapses
// or the process receives SIGINT/SIGTERM.
func runCommand(settings *config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the TX/RX pipeline simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(settings)
		},
	}

	cmd.Flags().StringVar(&flagConfigPath, "config", ".", "directory to search for audiocore-sim.yaml")
	cmd.Flags().DurationVar(&flagDuration, "duration", 30*time.Second, "how long to run the simulation")
	cmd.Flags().DurationVar(&flagTickInterval, "tick", 10*time.Millisecond, "produce/process/consume cadence")
	cmd.Flags().StringVar(&flagWAVOut, "wav-out", "", "if set, write decoded RX audio to this WAV file")
	cmd.Flags().IntVar(&flagLinkPeriod, "link-period", 200, "simulated RSSI sweep period in ticks")
	cmd.Flags().IntVar(&flagLinkRejectN, "link-reject-every", 0, "drop one simulated link frame every N ticks (0 disables)")
	cmd.Flags().DurationVar(&flagStatsInterval, "stats-interval", 2*time.Second, "how often to log pipeline stats")

	return cmd
}

func runSimulation(settings *config.Settings) error {
	debug := settings.Debug
	loaded, err := config.Load(flagConfigPath)
	if err != nil {
		return fmt.Errorf("audiocore-sim: loading config: %w", err)
	}
	*settings = *loaded
	settings.Debug = settings.Debug || debug

	logging.Init()
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	log := logging.ForService("audiocore-sim")

	reg := prometheus.NewRegistry()
	harness, err := simharness.BuildDemo(settings, simharness.Options{
		WAVOutPath:      flagWAVOut,
		LinkPeriodTicks: flagLinkPeriod,
		LinkRejectEvery: flagLinkRejectN,
		TickInterval:    flagTickInterval,
	}, reg)
	if err != nil {
		return fmt.Errorf("audiocore-sim: building demo harness: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statsDone := make(chan struct{})
	go reportStats(ctx, harness, log, statsDone)

	log.Info("starting simulation", "duration", flagDuration, "tick", flagTickInterval)
	runErr := harness.Run(ctx, flagDuration)
	<-statsDone

	final := harness.Stats()
	log.Info("simulation complete",
		"tx_underflows", final.TX.ConsumerUnderflowCount,
		"rx_underflows", final.RX.ConsumerUnderflowCount,
		"tx_fallback_active", final.TXFB.Active,
		"rx_fallback_active", final.RXFB.Active,
	)
	return runErr
}

// reportStats logs a periodic snapshot of both pipelines until ctx is
// done, then closes done so the caller can print a final summary.
func reportStats(ctx context.Context, h *simharness.Harness, log *slog.Logger, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(flagStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := h.Stats()
			log.Info("stats",
				"tx_queue", s.TX.ConsumerBufferLoad,
				"tx_underflows", s.TX.ConsumerUnderflowCount,
				"rx_queue", s.RX.ConsumerBufferLoad,
				"rx_underflows", s.RX.ConsumerUnderflowCount,
				"tx_fallback_active", s.TXFB.Active,
				"rx_fallback_active", s.RXFB.Active,
			)
		}
	}
}
