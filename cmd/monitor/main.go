// Command monitor runs one Divergence Monitor process: it ingests
// tee'd Samples forwarded by Worker Core processes, computes per-family
// divergence on a timer, and serves status/metrics HTTP endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aszhur/loadgen/pkg/config"
	"github.com/aszhur/loadgen/pkg/logging"
	"github.com/aszhur/loadgen/pkg/monitor"
	"github.com/aszhur/loadgen/pkg/recipe"
	"github.com/aszhur/loadgen/pkg/telemetry"
)

const shutdownGrace = 30 * time.Second

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "monitor",
		Short: "Run a loadgen Divergence Monitor process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), configFile)
		},
	}
	root.Flags().Int("port", 9200, "monitor HTTP port")
	root.Flags().String("reference_path", "", "path to the reference catalog JSON file")
	root.Flags().Float64("js_threshold", 0.05, "Jensen-Shannon red/amber threshold")
	root.Flags().Float64("wasserstein_threshold", 0.1, "Wasserstein red/amber threshold")
	root.Flags().Float64("ks_threshold", 0.05, "Kolmogorov-Smirnov red/amber threshold")
	root.Flags().Int("red_minutes", 15, "consecutive red minutes before a critical alert")
	root.Flags().StringVar(&configFile, "config", "", "optional YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet, configFile string) error {
	cfg, err := config.LoadMonitorConfig(flags, configFile)
	if err != nil {
		// reference_path is required; there's no sane default to fall back to.
		return fmt.Errorf("fatal config error: %w", err)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("fatal config error: %w", err)
	}
	defer log.Sync()

	catalog, err := monitor.LoadCatalog(cfg.ReferencePath)
	if err != nil {
		return fmt.Errorf("fatal config error: loading reference catalog: %w", err)
	}

	reg := telemetry.New()
	metrics := telemetry.NewMonitorMetrics(reg)

	m := monitor.New(monitor.Options{
		Catalog: catalog,
		Thresholds: monitor.Thresholds{
			JS:          cfg.JSThreshold,
			Wasserstein: cfg.WassersteinThreshold,
			KS:          cfg.KSThreshold,
			RedMinutes:  cfg.RedMinutes,
		},
		Metrics: metrics,
		Logger:  log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// POST /ingest calls Monitor.Ingest directly (safe for concurrent
	// callers); this never-written channel only drives Run's per-minute
	// compute ticker and TriggerCompute coalescing.
	noSamples := make(chan recipe.Sample)
	go m.Run(ctx, noSamples)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: m.Router(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("monitor HTTP server exited", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infow("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
