package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/actionstatus/internal/bridge"
	"github.com/adamancini/actionstatus/internal/feed"
	"github.com/adamancini/actionstatus/internal/interactive"
	"github.com/adamancini/actionstatus/internal/metrics"
	"github.com/adamancini/actionstatus/internal/output"
	"github.com/adamancini/actionstatus/internal/update"
)

func newWatchCmd() *cobra.Command {
	var (
		metricsAddr    string
		noUpdates      bool
		updateInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the status menu current",
		Long: `Watch prints the status menu whenever the monitored items change.

A status file is reloaded as soon as it is written; repositories are polled with gh
every refresh_interval. Unless --no-updates is given, the updater asks once whether
to check for updates automatically and then checks in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), metricsAddr, noUpdates, updateInterval)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&noUpdates, "no-updates", false, "Do not check for updates")
	cmd.Flags().DurationVar(&updateInterval, "update-interval", 24*time.Hour, "Time between background update checks")

	return cmd
}

func runWatch(ctx context.Context, metricsAddr string, noUpdates bool, updateInterval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		shutdown := serveMetrics(metricsAddr, reg)
		defer shutdown()
	}

	src, err := openSource(ctx)
	if err != nil {
		return err
	}

	w := newWriter()
	b := bridge.New(src.provider).WithMetrics(rec)
	render := func() {
		snap, err := b.Snapshot()
		if err != nil {
			log.Warnf("failed to read monitored items: %v", err)
			return
		}
		if err := w.Write(snap.Menu(cfg.AppName)); err != nil {
			log.Warnf("failed to write status menu: %v", err)
		}
	}
	render()

	if !noUpdates {
		startUpdater(ctx, w, rec, updateInterval)
	}

	if src.file != nil {
		err = src.file.Watch(ctx, render)
	} else {
		err = poll(ctx, src, render)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// poll refreshes the items every refresh interval until ctx is done.
func poll(ctx context.Context, src *source, render func()) error {
	ticker := time.NewTicker(cfg.Refresh())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := src.refresh(ctx); err != nil {
				log.Warnf("failed to refresh monitored items: %v", err)
				continue
			}
			render()
		}
	}
}

// startUpdater asks for permission and runs background checks. A failure to
// start is reported once and watching continues without updates.
func startUpdater(ctx context.Context, w *output.Writer, rec metrics.Recorder, interval time.Duration) {
	presenter := interactive.NewPresenter(interactive.NewPrompter(), interactive.Options{
		Interactive: interactive.IsTerminal() && w.Format() == output.FormatText,
		Permission:  permissionDefaults(),
	})
	session, err := newSession(presenter, rec)
	if err != nil {
		w.Notice("Update checks are unavailable: %v", err)
		log.Warnf("updater failed to start: %v", err)
		return
	}

	go func() {
		resp, err := session.RequestPermission(ctx, update.PermissionRequest{
			{"title": "Check for updates automatically?"},
			{"text": "Should " + cfg.AppName + " check for newer releases in the background? You can always check with \"actionstatus check\"."},
		})
		if err != nil || !resp.AutomaticUpdateChecks {
			log.Info("automatic update checks are off")
			return
		}
		backgroundChecks(ctx, w, session, interval)
	}()
}

func backgroundChecks(ctx context.Context, w *output.Writer, session *feed.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := session.CheckInBackground(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warnf("background update check: %v", err)
		}
		if report != nil && report.InstallRequested() {
			item := report.Result.Item
			url := item.DownloadURL
			if url == "" {
				url = item.InfoURL
			}
			w.Notice("Download %s from %s", item.Label(), url)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Infof("serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("failed to stop metrics server: %v", err)
		}
	}
}
