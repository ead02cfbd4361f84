// Command worker runs one Worker Core process: it polls the control
// plane for an assignment, synthesizes and emits metric traffic, and
// serves health/ready/status/metrics HTTP endpoints.
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

	"github.com/aszhur/loadgen/pkg/batch"
	"github.com/aszhur/loadgen/pkg/config"
	"github.com/aszhur/loadgen/pkg/connpool"
	"github.com/aszhur/loadgen/pkg/controlplane"
	"github.com/aszhur/loadgen/pkg/forwarder"
	"github.com/aszhur/loadgen/pkg/logging"
	"github.com/aszhur/loadgen/pkg/telemetry"
	"github.com/aszhur/loadgen/pkg/worker"
)

const shutdownGrace = 30 * time.Second

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "worker",
		Short: "Run a loadgen Worker Core process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Flags(), configFile)
		},
	}
	root.Flags().String("worker_id", "", "identity reported to the control plane")
	root.Flags().String("control_plane_url", "", "control plane base URL")
	root.Flags().Int("port", 9100, "worker HTTP port")
	root.Flags().Int("metrics_port", 9101, "worker metrics port")
	root.Flags().String("monitor_url", "", "divergence monitor base URL for tee'd sample forwarding (empty disables)")
	root.Flags().StringVar(&configFile, "config", "", "optional YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *pflag.FlagSet, configFile string) error {
	cfg, err := config.LoadWorkerConfig(flags, configFile)
	if err != nil {
		// a required flag is missing at startup; there's no sane default to fall back to.
		return fmt.Errorf("fatal config error: %w", err)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("fatal config error: %w", err)
	}
	defer log.Sync()

	reg := telemetry.New()
	metrics := telemetry.NewWorkerMetrics(reg)

	pools := map[string]*connpool.Pool{} // populated lazily per-endpoint as assignments name them

	dialer := connpool.TCPDialer(
		time.Duration(cfg.ConnectTimeoutMS)*time.Millisecond,
		time.Duration(cfg.WriteDeadlineMS)*time.Millisecond,
	)

	w := worker.New(worker.Options{
		WorkerID:              cfg.WorkerID,
		ControlPlane:          controlplane.New(cfg.ControlPlaneURL),
		Pools:                 pools,
		Dialer:                dialer,
		ConnectionBufferBytes: cfg.ConnectionBufferBytes,
		ReconnectInitial:      time.Duration(cfg.ReconnectInitialMS) * time.Millisecond,
		ReconnectMax:          time.Duration(cfg.ReconnectMaxMS) * time.Millisecond,
		Buffer:                batch.New(cfg.BatchSize, cfg.BatchBytes),
		Metrics:               metrics,
		Logger:                log,
		PollInterval:          cfg.PollInterval,
		FlushInterval:         cfg.FlushInterval,
		BaseRate:              cfg.BaseRate,
		GovernorAccelPerSec:   cfg.GovernorAccelPerSec,
		GovernorRefresh:       time.Duration(cfg.GovernorRefreshMS) * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fwd := forwarder.New(forwarder.Options{MonitorURL: cfg.MonitorURL, Logger: log})
	go fwd.Run(ctx, w.Samples())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: w.Router(reg)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("worker HTTP server exited", "err", err)
		}
	}()

	metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: worker.MetricsRouter(reg)}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("worker metrics server exited", "err", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go w.Run(ctx)

	<-sigCh
	log.Infow("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
