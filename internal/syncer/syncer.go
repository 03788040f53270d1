package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// Remote is the server side of a sync.
type Remote interface {
	Fetch(ctx context.Context, profileID string, since time.Time) ([]model.Notification, error)
	Push(ctx context.Context, profileID string, notifications []model.Notification) error
}

// Result summarises one sync.
type Result struct {
	At      time.Time
	Fetched int
	Merged  int
	Pushed  int
}

// Syncer periodically merges server notifications into the inbox.
type Syncer struct {
	remote   Remote
	state    service.SyncStateStore
	inbox    *notify.Store
	clock    clock.Clock
	metrics  *metrics.Metrics
	interval time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock overrides the clock.
func WithClock(c clock.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithMetrics records sync attempts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// New creates a syncer. remote may be nil when no endpoint is configured,
// in which case every sync reports common.ErrSyncUnavailable.
func New(remote Remote, state service.SyncStateStore, inbox *notify.Store, interval time.Duration, opts ...Option) *Syncer {
	s := &Syncer{
		remote:   remote,
		state:    state,
		inbox:    inbox,
		interval: interval,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New("ecofin")
	}
	return s
}

// SyncOnce pulls server notifications changed since the last sync, merges
// them by id and pushes the local inbox back. Connectivity is reported to
// the inbox so queued notifications flush when the server is reachable.
func (s *Syncer) SyncOnce(ctx context.Context) (Result, error) {
	if s.remote == nil {
		return Result{}, fmt.Errorf("%w: no endpoint configured", common.ErrSyncUnavailable)
	}
	profileID := s.inbox.ProfileID()

	since, err := s.state.LastSync(ctx, profileID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read last sync: %w", err)
	}

	server, err := s.remote.Fetch(ctx, profileID, since)
	if err != nil {
		s.metrics.SyncAttempts.WithLabelValues("failed").Inc()
		s.inbox.SetOnline(ctx, false)
		return Result{}, err
	}
	s.inbox.SetOnline(ctx, true)

	res := Result{At: s.clock.Now(), Fetched: len(server)}
	res.Merged = s.inbox.MergeServerNotifications(ctx, server)

	local := s.inbox.Notifications(notify.FilterAll, "")
	if err := s.remote.Push(ctx, profileID, local); err != nil {
		s.metrics.SyncAttempts.WithLabelValues("partial").Inc()
		slog.Warn("Failed to push notifications", "profile", profileID, "error", err)
	} else {
		res.Pushed = len(local)
	}

	if err := s.state.SetLastSync(ctx, profileID, res.At); err != nil {
		slog.Error("Failed to record sync time", "profile", profileID, "error", err)
	}
	s.metrics.SyncAttempts.WithLabelValues("ok").Inc()
	slog.Info("Synced notifications",
		"profile", profileID,
		"fetched", res.Fetched,
		"merged", res.Merged,
		"pushed", res.Pushed)
	return res, nil
}

// Run syncs every interval until ctx is cancelled. Failures are logged and
// retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("%w: sync interval must be positive", common.ErrInvalidConfig)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Sync failed, will retry", "error", err, "next", s.interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
