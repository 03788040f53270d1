// Package notify is the in-app inbox: it applies delivery preferences to
// incoming notifications, keeps the bounded notification list and forwards
// in-app notifications to the toast layer.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

// Outcome is what AddNotification did with a draft.
type Outcome string

// AddNotification outcomes.
const (
	Delivered               Outcome = "delivered"
	Queued                  Outcome = "queued"
	DroppedDisabled         Outcome = "dropped_disabled"
	DroppedCategoryDisabled Outcome = "dropped_category_disabled"
	DroppedDailyCap         Outcome = "dropped_daily_cap"
)

// Toaster is the part of the toast layer the store drives.
type Toaster interface {
	Show(req toast.Request) (string, toast.Decision)
}

// Store is the notification inbox for one profile. Every mutation runs to
// completion under a single lock.
type Store struct {
	repo          service.NotificationRepository
	toaster       Toaster
	clock         clock.Clock
	metrics       *metrics.Metrics
	newID         func() string
	notifications []model.Notification
	queue         []model.QueuedNotification
	profileID     string
	policy        Policy
	prefs         model.NotificationPreferences
	unread        int
	online        bool
	centerOpen    bool
	mu            sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithMetrics records store metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithPolicy overrides the default limits.
func WithPolicy(p Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithProfile selects the profile whose inbox is opened.
func WithProfile(id string) Option {
	return func(s *Store) { s.profileID = id }
}

// WithIDGenerator overrides notification id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Open loads the persisted inbox, preferences and queue for the profile.
// repo and toaster may be nil for a memory-only, silent store.
func Open(ctx context.Context, repo service.NotificationRepository, toaster Toaster, opts ...Option) (*Store, error) {
	s := &Store{
		repo:      repo,
		toaster:   toaster,
		clock:     clock.Real{},
		newID:     uuid.NewString,
		profileID: model.DefaultProfileID,
		policy:    DefaultPolicy(),
		online:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy = s.policy.withDefaults()
	if s.metrics == nil {
		s.metrics = metrics.New("ecofin")
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	s.updateGauges()

	slog.Debug("Opened notification store",
		"profile", s.profileID,
		"notifications", len(s.notifications),
		"unread", s.unread,
		"queued", len(s.queue))
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	now := s.clock.Now()
	if s.repo == nil {
		s.prefs = model.DefaultPreferences(s.profileID, now)
		return nil
	}

	notifications, err := s.repo.LoadNotifications(ctx, s.profileID)
	if err != nil {
		return fmt.Errorf("failed to load notifications: %w", err)
	}
	s.notifications = trimTail(notifications, s.policy.MaxStored)
	for _, n := range s.notifications {
		if n.Status.IsUnread() {
			s.unread++
		}
	}

	prefs, err := s.repo.LoadPreferences(ctx, s.profileID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		s.prefs = model.DefaultPreferences(s.profileID, now)
		s.persistPreferences(ctx)
	case err != nil:
		return fmt.Errorf("failed to load preferences: %w", err)
	default:
		if err := prefs.Validate(); err != nil {
			return fmt.Errorf("%w: stored preferences: %w", common.ErrInvalidConfig, err)
		}
		s.prefs = *prefs
	}

	queue, err := s.repo.LoadQueue(ctx, s.profileID)
	if err != nil {
		return fmt.Errorf("failed to load notification queue: %w", err)
	}
	s.queue = trimHead(queue, s.policy.MaxQueued)
	return nil
}

// AddNotification applies the delivery policy to draft: the global switch,
// the category switch, quiet hours or offline mode, then the daily cap. A
// delivered notification always gets a fresh id and timestamp, is marked
// sent and is prepended to the inbox.
func (s *Store) AddNotification(ctx context.Context, draft model.Notification) (model.Notification, Outcome) {
	s.mu.Lock()
	n, outcome, req := s.addLocked(ctx, draft, true)
	s.updateGauges()
	s.mu.Unlock()

	s.metrics.NotificationsAdded.WithLabelValues(string(n.Category), string(outcome)).Inc()
	slog.Debug("Notification added", "title", n.Title, "category", n.Category, "outcome", outcome)
	if req != nil {
		s.toaster.Show(*req)
	}
	return n, outcome
}

// addLocked runs the delivery pipeline. It returns the toast to show once
// the lock is released.
func (s *Store) addLocked(ctx context.Context, draft model.Notification, allowQueue bool) (model.Notification, Outcome, *toast.Request) {
	now := s.clock.Now()
	if draft.Category == "" {
		draft.Category = model.CategorySystem
	}
	if draft.ProfileID == "" {
		draft.ProfileID = s.profileID
	}

	if !s.prefs.GlobalEnabled {
		return draft, DroppedDisabled, nil
	}
	catCfg, ok := s.prefs.Categories[draft.Category]
	if !ok || !catCfg.Enabled {
		return draft, DroppedCategoryDisabled, nil
	}

	quiet := catCfg.QuietHoursRespected && InQuietHours(s.prefs.QuietHours, now)
	if allowQueue && (quiet || !s.online) {
		s.enqueue(draft, now)
		s.persistQueue(ctx)
		return draft, Queued, nil
	}

	if limit := s.policy.DailyCaps[draft.Category]; limit > 0 && s.countToday(draft.Category, now) >= limit {
		return draft, DroppedDailyCap, nil
	}

	n := draft
	n.ID = s.newID()
	n.Timestamp = now
	n.Status = model.StatusSent
	n.ReadAt, n.DismissedAt = nil, nil

	s.notifications = append([]model.Notification{n}, s.notifications...)
	s.unread++
	s.evictOverflow()
	s.persistNotifications(ctx)

	var req *toast.Request
	if s.toaster != nil && catCfg.HasChannel(model.ChannelInApp) {
		r := s.toastFor(n)
		req = &r
	}
	return n, Delivered, req
}

func (s *Store) enqueue(n model.Notification, now time.Time) {
	s.queue = append(s.queue, model.QueuedNotification{Notification: n, QueuedAt: now})
	s.queue = trimHead(s.queue, s.policy.MaxQueued)
}

func (s *Store) countToday(category model.Category, now time.Time) int {
	loc := location(s.prefs.QuietHours.Timezone)
	count := 0
	for _, n := range s.notifications {
		if n.Category == category && sameDay(n.Timestamp, now, loc) {
			count++
		}
	}
	return count
}

func (s *Store) evictOverflow() {
	if len(s.notifications) <= s.policy.MaxStored {
		return
	}
	for _, n := range s.notifications[s.policy.MaxStored:] {
		if n.Status.IsUnread() {
			s.unread--
		}
	}
	s.notifications = trimTail(s.notifications, s.policy.MaxStored)
}

// toastFor maps a notification onto a toast: urgent notifications show as
// errors, high priority as warnings, the rest as info for the configured
// auto-dismiss delay.
func (s *Store) toastFor(n model.Notification) toast.Request {
	req := toast.Request{
		Title:   n.Title,
		Message: n.Message,
		Source:  "notifications",
	}

	var d time.Duration
	switch n.Priority {
	case model.PriorityUrgent:
		req.Type, d = toast.TypeError, 10*time.Second
	case model.PriorityHigh:
		req.Type, d = toast.TypeWarning, 7*time.Second
	default:
		req.Type, d = toast.TypeInfo, time.Duration(s.prefs.AutoDismissDelay)*time.Second
	}
	if !s.prefs.AutoDismissing {
		d = 0
	}
	req.Duration = toast.DurationOf(d)

	for _, a := range n.Actions {
		if !a.Primary {
			continue
		}
		id := n.ID
		req.Action = &toast.Action{
			Label: a.Label,
			Run: func() {
				if err := s.MarkAsRead(context.Background(), id); err != nil {
					slog.Debug("Toast action on missing notification", "id", id, "error", err)
				}
			},
		}
		break
	}
	return req
}

// MarkAsRead marks one notification read. Marking twice is a no-op.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	if !s.notifications[i].Status.IsUnread() {
		return nil
	}
	s.markRead(i, s.clock.Now())
	s.persistNotifications(ctx)
	s.updateGauges()
	return nil
}

// MarkAllAsRead marks every unread notification read and returns how many
// changed.
func (s *Store) MarkAllAsRead(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	changed := 0
	for i := range s.notifications {
		if s.notifications[i].Status.IsUnread() {
			s.markRead(i, now)
			changed++
		}
	}
	s.unread = 0
	if changed > 0 {
		s.persistNotifications(ctx)
	}
	s.updateGauges()
	return changed
}

func (s *Store) markRead(i int, now time.Time) {
	s.notifications[i].Status = model.StatusRead
	s.notifications[i].ReadAt = &now
	s.unread = max(s.unread-1, 0)
}

// DismissNotification hides a notification from active views. The record
// stays in the inbox.
func (s *Store) DismissNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	n := &s.notifications[i]
	if n.Status == model.StatusDismissed {
		return nil
	}
	if n.Status.IsUnread() {
		s.unread = max(s.unread-1, 0)
	}
	now := s.clock.Now()
	n.Status = model.StatusDismissed
	n.DismissedAt = &now
	s.persistNotifications(ctx)
	s.updateGauges()
	return nil
}

// DeleteNotification removes a notification for good.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("notification %s: %w", id, common.ErrNotFound)
	}
	if s.notifications[i].Status.IsUnread() {
		s.unread = max(s.unread-1, 0)
	}
	s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
	s.persistNotifications(ctx)
	s.updateGauges()
	return nil
}

// ClearAll empties the inbox.
func (s *Store) ClearAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = nil
	s.unread = 0
	s.persistNotifications(ctx)
	s.updateGauges()
}

// Get returns one notification.
func (s *Store) Get(id string) (model.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.notifications[i], true
	}
	return model.Notification{}, false
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// QueuedCount returns the number of notifications held back.
func (s *Store) QueuedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// ProfileID returns the profile this store serves.
func (s *Store) ProfileID() string {
	return s.profileID
}

// SetOnline records connectivity. Going online flushes the queue.
func (s *Store) SetOnline(ctx context.Context, online bool) int {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()

	slog.Info("Connectivity changed", "online", online)
	if !online {
		return 0
	}
	return s.FlushQueue(ctx)
}

// Online reports the connectivity state.
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// FlushQueue re-submits queued notifications once the store is online and
// outside quiet hours. It returns how many were delivered; the rest were
// dropped by the current policy.
func (s *Store) FlushQueue(ctx context.Context) int {
	s.mu.Lock()
	if !s.online || InQuietHours(s.prefs.QuietHours, s.clock.Now()) || len(s.queue) == 0 {
		s.mu.Unlock()
		return 0
	}

	pending := s.queue
	s.queue = nil
	var (
		delivered int
		toasts    []toast.Request
	)
	for _, q := range pending {
		_, outcome, req := s.addLocked(ctx, q.Notification, false)
		s.metrics.NotificationsAdded.WithLabelValues(string(q.Notification.Category), string(outcome)).Inc()
		if outcome == Delivered {
			delivered++
		}
		if req != nil {
			toasts = append(toasts, *req)
		}
	}
	s.persistQueue(ctx)
	s.updateGauges()
	s.mu.Unlock()

	slog.Info("Flushed notification queue", "queued", len(pending), "delivered", delivered)
	for _, req := range toasts {
		s.toaster.Show(req)
	}
	return delivered
}

// MergeServerNotifications prepends notifications whose ids are unknown
// locally. Local records are never overwritten. It returns how many were
// added.
func (s *Store) MergeServerNotifications(ctx context.Context, server []model.Notification) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]struct{}, len(s.notifications))
	for _, n := range s.notifications {
		known[n.ID] = struct{}{}
	}

	var fresh []model.Notification
	for _, n := range server {
		if n.ID == "" {
			continue
		}
		if _, ok := known[n.ID]; ok {
			continue
		}
		known[n.ID] = struct{}{}
		if n.ProfileID == "" {
			n.ProfileID = s.profileID
		}
		fresh = append(fresh, n)
		if n.Status.IsUnread() {
			s.unread++
		}
	}
	if len(fresh) == 0 {
		return 0
	}

	s.notifications = append(fresh, s.notifications...)
	s.evictOverflow()
	s.persistNotifications(ctx)
	s.updateGauges()
	return len(fresh)
}

// OpenCenter marks the notification center as open. Center state is never
// persisted.
func (s *Store) OpenCenter() {
	s.mu.Lock()
	s.centerOpen = true
	s.mu.Unlock()
}

// CloseCenter marks the notification center as closed.
func (s *Store) CloseCenter() {
	s.mu.Lock()
	s.centerOpen = false
	s.mu.Unlock()
}

// CenterOpen reports whether the notification center is open.
func (s *Store) CenterOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.centerOpen
}

func (s *Store) indexOf(id string) int {
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			return i
		}
	}
	return -1
}

// Persistence failures are logged and counted; memory stays authoritative.

func (s *Store) persistNotifications(ctx context.Context) {
	if s.repo == nil {
		return
	}
	keep := s.notifications[:min(len(s.notifications), s.policy.MaxPersisted)]
	if err := s.repo.SaveNotifications(ctx, s.profileID, keep); err != nil {
		s.persistFailed("notifications", err)
	}
}

func (s *Store) persistQueue(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveQueue(ctx, s.profileID, s.queue); err != nil {
		s.persistFailed("queue", err)
	}
}

func (s *Store) persistPreferences(ctx context.Context) {
	if s.repo == nil {
		return
	}
	prefs := s.prefs.Clone()
	if err := s.repo.SavePreferences(ctx, &prefs); err != nil {
		s.persistFailed("preferences", err)
	}
}

func (s *Store) persistFailed(what string, err error) {
	s.metrics.PersistErrors.WithLabelValues(what).Inc()
	common.LogError(err, "Failed to persist notification state", common.Fields{"what": what, "profile": s.profileID})
}

func (s *Store) updateGauges() {
	s.metrics.UnreadCount.Set(float64(s.unread))
	s.metrics.QueuedCount.Set(float64(len(s.queue)))
}

// trimTail keeps the first n items.
func trimTail[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return list[:n:n]
}

// trimHead keeps the last n items.
func trimHead[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return append([]T(nil), list[len(list)-n:]...)
}
