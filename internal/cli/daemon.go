package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"proxyscout/internal/updater"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the update job on a cron schedule",
	Long: `Run the update job immediately and then on the configured cron schedule
(schedule.cron, hourly by default). Runs never overlap.

When schedule.metrics_addr is set, Prometheus metrics are served on /metrics
and the latest run on /status.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg := appInstance.Config
		logger := appInstance.Logger
		if cmd.Flags().Changed("cron") {
			v, _ := cmd.Flags().GetString("cron")
			if err := cfg.Set("schedule.cron", v); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("metrics-addr") {
			v, _ := cmd.Flags().GetString("metrics-addr")
			if err := cfg.Set("schedule.metrics_addr", v); err != nil {
				return err
			}
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.ValidateSchedule(); err != nil {
			return err
		}
		if err := cfg.ValidateChannel(); err != nil {
			return err
		}

		u, err := updater.New(updater.Deps{
			Config:  cfg,
			Storage: appInstance.Storage,
			Metrics: appInstance.Metrics,
			Logger:  logger,
		})
		if err != nil {
			return err
		}
		scheduler, err := updater.NewScheduler(u, cfg.Schedule.Cron, logger)
		if err != nil {
			return err
		}

		var srv *http.Server
		if addr := cfg.Schedule.MetricsAddr; addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", appInstance.Metrics.Handler())
			mux.HandleFunc("/status", statusHandler(scheduler))
			srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			logger.Info("metrics server listening", zap.String("addr", addr))
		}

		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "proxyscout daemon started (cron %q), press Ctrl+C to stop\n", cfg.Schedule.Cron)

		<-ctx.Done()
		logger.Info("shutting down")

		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop failed", zap.Error(err))
		}
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}
		return nil
	},
}

type runStatus struct {
	Runs      int       `json:"runs"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Skipped   bool      `json:"skipped"`
	Selected  string    `json:"selected,omitempty"`
	Composite float64   `json:"composite_score,omitempty"`
	Degraded  bool      `json:"degraded"`
	Pushed    bool      `json:"pushed"`
	Error     string    `json:"error,omitempty"`
}

func statusHandler(s *updater.Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, res, err := s.Last()
		st := runStatus{Runs: runs}
		if res != nil {
			st.StartedAt = res.StartedAt
			st.Skipped = res.Skipped
			st.Degraded = res.Degraded
			st.Pushed = res.Pushed
			if res.Selected != nil {
				st.Selected = res.Selected.Candidate.Address
				st.Composite = res.Selected.CompositeScore
			}
		}
		if err != nil {
			st.Error = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}
}

func init() {
	daemonCmd.Flags().String("cron", "", "cron expression (overrides schedule.cron)")
	daemonCmd.Flags().String("metrics-addr", "", "metrics listen address, e.g. :9090 (overrides schedule.metrics_addr)")

	rootCmd.AddCommand(daemonCmd)
}
