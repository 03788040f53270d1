package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/config"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
	"github.com/Veraticus/ecofinance-notify/internal/tui"
	"github.com/Veraticus/ecofinance-notify/internal/tui/themes"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the notification center and keep checking the rules",
		Long: `Open the interactive notification center. Rules are re-evaluated on an
interval, new notifications appear as toasts and the inbox can be browsed
and managed from the keyboard.

While watch runs, logs go to ecofin.log next to the database and
Prometheus metrics are served when --metrics-addr is set.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (default from metrics.addr)")
	cmd.Flags().Duration("check-interval", time.Minute, "how often the rules are evaluated")
	cmd.Flags().String("theme", "default", "color theme (default, catppuccin-mocha)")
	cmd.Flags().String("filter", string(notify.FilterActive), "initial view: all, unread, active or urgent")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = settings.Metrics.Addr
	}
	interval, _ := cmd.Flags().GetDuration("check-interval")
	themeName, _ := cmd.Flags().GetString("theme")
	filterStr, _ := cmd.Flags().GetString("filter")
	filter, err := notify.ParseFilter(filterStr)
	if err != nil {
		return common.NewUserError(err.Error(), err)
	}

	if err := config.EnsureParentDir(settings.Storage.Path); err != nil {
		return err
	}
	closeLog, err := logToFile(filepath.Join(filepath.Dir(settings.Storage.Path), "ecofin.log"))
	if err != nil {
		return err
	}
	defer closeLog()

	bridge := tui.NewBridge()
	var mgr *toast.Manager
	newToaster := func(m *metrics.Metrics) notify.Toaster {
		mgr = toast.NewManager(toastConfig(settings.Toast),
			toast.WithListener(bridge.Listen),
			toast.WithMetrics(m))
		return mgr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, settings, newToaster)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()
	defer mgr.Reset()

	if metricsAddr != "" {
		stop := serveMetrics(metricsAddr, a.metrics)
		defer stop()
	}
	if settings.Sync.Enabled && settings.Sync.Endpoint != "" {
		s := newSyncer(settings.Sync, a)
		go func() {
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Sync loop stopped", "error", err)
			}
		}()
	}

	check := func(ctx context.Context) (int, error) {
		fired, err := a.check(ctx)
		return len(fired), err
	}
	err = tui.Run(ctx, mgr, a.inbox,
		tui.WithTheme(themes.GetTheme(themeName)),
		tui.WithFilter(filter),
		tui.WithBridge(bridge),
		tui.WithTickInterval(settings.Toast.TickInterval),
		tui.WithChecker(interval, check))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(fmt.Sprintf("%d unread notifications", a.inbox.UnreadCount())))
	return nil
}

// logToFile sends slog output to path so it does not tear the TUI.
func logToFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // Path derived from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	level := common.ParseLevel(settings.Logging.Level)
	if err := common.SetupLoggerTo(f, level, settings.Logging.Format); err != nil {
		_ = f.Close()
		return nil, err
	}
	return func() {
		_ = common.SetupLogger(level, settings.Logging.Format)
		_ = f.Close()
	}, nil
}

// serveMetrics exposes /metrics until the returned stop func is called.
func serveMetrics(addr string, m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("Failed to stop metrics server", "error", err)
		}
	}
}
