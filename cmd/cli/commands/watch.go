package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mtecstake/autostake/internal/logging"
	"github.com/mtecstake/autostake/internal/metrics"
	"github.com/mtecstake/autostake/internal/util"
	"github.com/mtecstake/autostake/pkg/types"
	"github.com/spf13/cobra"
)

func NewWatchCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the stake list fresh and optionally export metrics",
		Long: `Reload the stake list whenever the contract reports a purchase or
claim for this account, or every client.poll_interval when no websocket
endpoint is configured.

With --metrics-addr (or metrics.enabled in the config) Prometheus metrics
are served on /metrics and a JSON summary on /metrics.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if metricsAddr == "" && cfg.Metrics.Enabled {
				metricsAddr = cfg.Metrics.Addr
			}

			var prom *metrics.PrometheusCollector
			if metricsAddr != "" {
				prom = metrics.NewPrometheusCollector(metrics.NewCollector(), cfg.Contracts.MTECDecimals)
				stop := serveMetrics(metricsAddr, prom)
				defer stop()
			}

			a, cleanup, err := connected(ctx, appOptions{metrics: prom})
			if err != nil {
				return err
			}
			defer cleanup()

			if !jsonOutput() {
				Info("Watching stakes. Press Ctrl+C to stop.")
			}
			err = a.Watch(ctx, func(p *types.Portfolio) {
				if jsonOutput() {
					_ = printJSON(p)
					return
				}
				fmt.Println(SectionHeader("Stakes at " + p.LoadedAt.Local().Format("15:04:05")))
				printPortfolio(a, p)
			})
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case errors.Is(err, types.ErrNoSession):
				Warning("Wallet session ended.")
				return ErrReported
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// serveMetrics runs the metrics endpoint in the background. The returned
// stop shuts it down and waits.
func serveMetrics(addr string, prom *metrics.PrometheusCollector) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           prom.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	util.SafeGoWithName("metrics-server", func() {
		defer close(done)
		logging.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", logging.Err(err))
		}
	})
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	}
}
