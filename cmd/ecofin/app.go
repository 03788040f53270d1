package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/ecofinance-notify/internal/cli"
	"github.com/Veraticus/ecofinance-notify/internal/config"
	"github.com/Veraticus/ecofinance-notify/internal/engine"
	"github.com/Veraticus/ecofinance-notify/internal/ledger"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/rules"
	"github.com/Veraticus/ecofinance-notify/internal/service"
	"github.com/Veraticus/ecofinance-notify/internal/storage"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

// app is the wired notification pipeline for one command invocation.
type app struct {
	settings *config.Settings
	db       *storage.SQLiteStorage
	state    service.StateStore
	metrics  *metrics.Metrics
	ledger   *ledger.Service
	rules    *rules.Store
	engine   *engine.Engine
	inbox    *notify.Store
}

// toasterFactory builds the toast surface once metrics exist. A nil factory
// leaves the inbox without toasts.
type toasterFactory func(m *metrics.Metrics) notify.Toaster

// openApp opens storage and wires the pipeline from the loaded settings.
func openApp(ctx context.Context, s *config.Settings, newToaster toasterFactory) (*app, error) {
	if err := config.EnsureParentDir(s.Storage.Path); err != nil {
		return nil, err
	}
	db, err := storage.NewSQLiteStorage(s.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a := &app{settings: s, db: db, state: db}
	if s.Storage.Redis.Enabled {
		rs, err := storage.NewRedisStorage(ctx, storage.RedisConfig{
			Addr:     s.Storage.Redis.Addr,
			Password: s.Storage.Redis.Password,
			Prefix:   s.Storage.Redis.Prefix,
			DB:       s.Storage.Redis.DB,
		})
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		a.state = rs
		slog.Debug("Using Redis for notification state", "addr", s.Storage.Redis.Addr)
	}

	a.metrics = metrics.New(s.Metrics.Namespace)
	a.ledger = ledger.New(db, ledger.WithProfile(model.UserProfile{ID: s.Profile.ID, Name: s.Profile.Name}))

	a.rules = rules.NewStore(rules.WithRepository(db))
	if err := a.rules.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine.New(a.rules, a.state,
		engine.WithMetrics(a.metrics),
		engine.WithConfig(engineConfig(s.Policy)))

	var toaster notify.Toaster
	if newToaster != nil {
		toaster = newToaster(a.metrics)
	}
	a.inbox, err = notify.Open(ctx, a.state, toaster,
		notify.WithMetrics(a.metrics),
		notify.WithProfile(s.Profile.ID),
		notify.WithPolicy(policyFrom(s.Policy)))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases storage.
func (a *app) Close() {
	if a.state != service.StateStore(a.db) {
		if err := a.state.Close(); err != nil {
			slog.Error("failed to close state store", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

// check delivers what quiet hours held back once they are over, then
// snapshots the ledger and runs every rule against it.
func (a *app) check(ctx context.Context) ([]model.Notification, error) {
	if n := a.inbox.FlushQueue(ctx); n > 0 {
		slog.Info("Delivered held back notifications", "count", n)
	}
	rc, err := a.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.Check(ctx, a.inbox, rc)
}

func policyFrom(p config.PolicySettings) notify.Policy {
	policy := notify.Policy{
		MaxStored:    p.MaxStored,
		MaxPersisted: p.MaxPersisted,
		MaxQueued:    p.MaxQueued,
	}
	if p.DailyCaps != nil {
		policy.DailyCaps = config.CategoryLimits(p.DailyCaps)
	}
	return policy
}

func engineConfig(p config.PolicySettings) engine.Config {
	cfg := engine.DefaultConfig()
	if p.MinCooldownMinutes != nil {
		cfg.MinCooldownMinutes = config.CategoryLimits(p.MinCooldownMinutes)
	}
	return cfg
}

func toastConfig(t config.ToastSettings) toast.Config {
	cfg := toast.DefaultConfig()
	cfg.MaxVisible = t.MaxVisible
	cfg.MaxVisibleNarrow = t.MaxVisibleNarrow
	cfg.NarrowWidth = t.NarrowWidth
	cfg.DebounceWindow = t.DebounceWindow
	cfg.DedupWindow = t.DedupWindow
	cfg.PromotionInterval = t.PromotionInterval
	cfg.ExitDuration = t.ExitDuration
	cfg.TickInterval = t.TickInterval
	cfg.SimilarityThreshold = t.SimilarityThreshold
	return cfg
}

// lineToaster prints toasts as single lines for one-shot commands.
type lineToaster struct {
	w io.Writer
}

func printToasts(w io.Writer) toasterFactory {
	return func(*metrics.Metrics) notify.Toaster { return lineToaster{w: w} }
}

// Show implements notify.Toaster.
func (t lineToaster) Show(req toast.Request) (string, toast.Decision) {
	line := cli.ToastIcon(req.Type) + " " + req.Title
	if req.Message != "" {
		line += ": " + req.Message
	}
	style := cli.InfoStyle
	switch req.Type {
	case toast.TypeError, toast.TypeDelete:
		style = cli.ErrorStyle
	case toast.TypeWarning:
		style = cli.WarningStyle
	case toast.TypeSuccess:
		style = cli.SuccessStyle
	}
	if _, err := fmt.Fprintln(t.w, style.Render(line)); err != nil {
		slog.Warn("Failed to print toast", "error", err)
	}
	return "", toast.DecisionShown
}
