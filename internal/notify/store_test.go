package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
	"github.com/Veraticus/ecofinance-notify/internal/testutil"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

// Tuesday noon.
var noon = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeToaster struct {
	requests []toast.Request
	mu       sync.Mutex
}

func (f *fakeToaster) Show(req toast.Request) (string, toast.Decision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return fmt.Sprintf("t%d", len(f.requests)), toast.DecisionShown
}

// failingRepo loads nothing and fails every write.
type failingRepo struct{}

func (failingRepo) LoadNotifications(context.Context, string) ([]model.Notification, error) {
	return nil, nil
}

func (failingRepo) SaveNotifications(context.Context, string, []model.Notification) error {
	return errors.New("quota exceeded")
}

func (failingRepo) LoadPreferences(context.Context, string) (*model.NotificationPreferences, error) {
	return nil, common.ErrNotFound
}

func (failingRepo) SavePreferences(context.Context, *model.NotificationPreferences) error {
	return errors.New("quota exceeded")
}

func (failingRepo) LoadQueue(context.Context, string) ([]model.QueuedNotification, error) {
	return nil, nil
}

func (failingRepo) SaveQueue(context.Context, string, []model.QueuedNotification) error {
	return errors.New("quota exceeded")
}

var _ service.NotificationRepository = failingRepo{}

func openTestStore(t *testing.T, repo service.NotificationRepository, opts ...Option) (*Store, *clock.Manual, *fakeToaster) {
	t.Helper()
	c := clock.NewManual(noon)
	toaster := &fakeToaster{}
	opts = append([]Option{WithClock(c), WithMetrics(metrics.New("test"))}, opts...)
	s, err := Open(context.Background(), repo, toaster, opts...)
	require.NoError(t, err)
	require.NoError(t, s.UpdatePreferences(context.Background(), func(p *model.NotificationPreferences) {
		p.QuietHours.Timezone = "UTC"
		p.QuietHours.ExcludeWeekends = false
	}))
	return s, c, toaster
}

func draft(category model.Category, title string) model.Notification {
	return model.Notification{
		Title:    title,
		Message:  "mensagem " + title,
		Category: category,
		Priority: model.PriorityNormal,
		Channels: []model.Channel{model.ChannelInApp},
	}
}

func TestStore_AddNotificationAssignsFields(t *testing.T) {
	s, _, toaster := openTestStore(t, nil)

	n, outcome := s.AddNotification(context.Background(), draft(model.CategoryBudget, "a"))
	require.Equal(t, Delivered, outcome)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, noon, n.Timestamp)
	assert.Equal(t, model.StatusSent, n.Status)
	assert.Equal(t, model.DefaultProfileID, n.ProfileID)
	assert.Equal(t, 1, s.UnreadCount())
	require.Len(t, toaster.requests, 1)

	list := s.Notifications(FilterAll, "")
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)
}

func TestStore_AddNotificationIgnoresCallerIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s, c, _ := openTestStore(t, db.Storage)
	ctx := context.Background()

	d := draft(model.CategoryGoal, "repetida")
	d.ID = "fixed-id"
	d.Timestamp = noon.Add(-time.Hour)

	first, outcome := s.AddNotification(ctx, d)
	require.Equal(t, Delivered, outcome)
	c.Advance(time.Minute)
	second, outcome := s.AddNotification(ctx, d)
	require.Equal(t, Delivered, outcome)

	assert.NotEqual(t, "fixed-id", first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, noon, first.Timestamp)
	assert.Equal(t, noon.Add(time.Minute), second.Timestamp)

	require.NoError(t, s.MarkAsRead(ctx, second.ID))
	got, ok := s.Get(first.ID)
	require.True(t, ok)
	assert.True(t, got.Status.IsUnread(), "each record is addressed on its own")

	s.AddNotification(ctx, draft(model.CategoryGoal, "outra"))
	persisted, err := db.Storage.LoadNotifications(ctx, model.DefaultProfileID)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestStore_GlobalDisabledDrops(t *testing.T) {
	s, _, toaster := openTestStore(t, nil)
	require.NoError(t, s.SetGlobalEnabled(context.Background(), false))

	for _, c := range model.AllCategories() {
		_, outcome := s.AddNotification(context.Background(), draft(c, string(c)))
		assert.Equal(t, DroppedDisabled, outcome)
	}
	assert.Empty(t, s.Notifications(FilterAll, ""))
	assert.Zero(t, s.QueuedCount())
	assert.Empty(t, toaster.requests)
}

func TestStore_CategoryDisabledDrops(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	require.NoError(t, s.ToggleCategory(context.Background(), model.CategoryInsight, ""))

	_, outcome := s.AddNotification(context.Background(), draft(model.CategoryInsight, "x"))
	assert.Equal(t, DroppedCategoryDisabled, outcome)
}

func TestStore_QuietHoursQueueAndFlush(t *testing.T) {
	s, c, toaster := openTestStore(t, nil)
	ctx := context.Background()
	require.NoError(t, s.SetQuietHours(ctx, true, "22:00", "08:00"))

	c.Set(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	_, outcome := s.AddNotification(ctx, draft(model.CategoryBudget, "noite"))
	assert.Equal(t, Queued, outcome)
	assert.Zero(t, s.UnreadCount())
	assert.Empty(t, s.Notifications(FilterAll, ""))
	assert.Equal(t, 1, s.QueuedCount())

	_, outcome = s.AddNotification(ctx, draft(model.CategorySystem, "sistema"))
	assert.Equal(t, Delivered, outcome, "system ignores quiet hours")

	assert.Zero(t, s.FlushQueue(ctx), "still quiet")

	morning := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)
	c.Set(morning)
	assert.Equal(t, 1, s.FlushQueue(ctx))
	assert.Zero(t, s.QueuedCount())
	flushed := s.Notifications(FilterAll, model.CategoryBudget)
	require.Len(t, flushed, 1)
	assert.Equal(t, morning, flushed[0].Timestamp)
	assert.Equal(t, 2, s.UnreadCount())
	assert.Len(t, toaster.requests, 2)
}

func TestStore_QueueIsBounded(t *testing.T) {
	s, c, _ := openTestStore(t, nil, WithPolicy(Policy{MaxQueued: 3, DailyCaps: map[model.Category]int{}}))
	ctx := context.Background()
	require.NoError(t, s.SetQuietHours(ctx, true, "22:00", "08:00"))
	c.Set(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		s.AddNotification(ctx, draft(model.CategoryBudget, fmt.Sprint(i)))
	}
	queue := s.Queue()
	require.Len(t, queue, 3)
	assert.Equal(t, "2", queue[0].Notification.Title, "oldest entries are dropped")
}

func TestInQuietHours(t *testing.T) {
	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	overnight := model.QuietHours{Enabled: true, StartTime: "22:00", EndTime: "08:00", Timezone: "UTC"}
	daytime := model.QuietHours{Enabled: true, StartTime: "13:00", EndTime: "14:30", Timezone: "UTC"}
	weekdaysOnly := overnight
	weekdaysOnly.ExcludeWeekends = true
	disabled := overnight
	disabled.Enabled = false
	empty := model.QuietHours{Enabled: true, StartTime: "10:00", EndTime: "10:00", Timezone: "UTC"}
	local := overnight
	local.Timezone = "America/Sao_Paulo"

	at := func(h, m int) time.Time { return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC) }
	tests := []struct {
		now  time.Time
		name string
		qh   model.QuietHours
		want bool
	}{
		{name: "23:00 inside overnight window", qh: overnight, now: at(23, 0), want: true},
		{name: "start is inclusive", qh: overnight, now: at(22, 0), want: true},
		{name: "early morning inside", qh: overnight, now: at(7, 59), want: true},
		{name: "end is exclusive", qh: overnight, now: at(8, 0)},
		{name: "afternoon outside", qh: overnight, now: at(15, 0)},
		{name: "daytime inside", qh: daytime, now: at(14, 0), want: true},
		{name: "daytime outside", qh: daytime, now: at(14, 30)},
		{name: "disabled", qh: disabled, now: at(23, 0)},
		{name: "empty window", qh: empty, now: at(10, 0)},
		{name: "saturday excluded", qh: weekdaysOnly, now: time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)},
		{name: "weekday not excluded", qh: weekdaysOnly, now: at(23, 0), want: true},
		{name: "timezone applied", qh: local, now: time.Date(2026, 3, 10, 23, 0, 0, 0, saoPaulo), want: true},
		{name: "timezone applied outside", qh: local, now: at(23, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InQuietHours(tt.qh, tt.now))
		})
	}
}

func TestStore_DailyCap(t *testing.T) {
	s, c, _ := openTestStore(t, nil)
	ctx := context.Background()

	_, outcome := s.AddNotification(ctx, draft(model.CategoryReport, "r1"))
	require.Equal(t, Delivered, outcome)
	_, outcome = s.AddNotification(ctx, draft(model.CategoryReport, "r2"))
	assert.Equal(t, DroppedDailyCap, outcome)

	c.Advance(24 * time.Hour)
	_, outcome = s.AddNotification(ctx, draft(model.CategoryReport, "r3"))
	assert.Equal(t, Delivered, outcome)
}

func TestStore_ListIsBounded(t *testing.T) {
	s, _, _ := openTestStore(t, nil, WithPolicy(Policy{MaxStored: 3, DailyCaps: map[model.Category]int{}}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.AddNotification(ctx, draft(model.CategoryTransaction, fmt.Sprint(i)))
	}
	list := s.Notifications(FilterAll, "")
	require.Len(t, list, 3)
	assert.Equal(t, "4", list[0].Title)
	assert.Equal(t, "2", list[2].Title)
	assert.Equal(t, 3, s.UnreadCount())
}

func TestStore_MarkAsReadIsIdempotent(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()
	n, _ := s.AddNotification(ctx, draft(model.CategoryGoal, "meta"))
	s.AddNotification(ctx, draft(model.CategoryBudget, "orcamento"))
	require.Equal(t, 2, s.UnreadCount())

	require.NoError(t, s.MarkAsRead(ctx, n.ID))
	require.NoError(t, s.MarkAsRead(ctx, n.ID))
	assert.Equal(t, 1, s.UnreadCount())

	got, ok := s.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusRead, got.Status)
	require.NotNil(t, got.ReadAt)

	assert.Equal(t, 1, s.MarkAllAsRead(ctx))
	assert.Equal(t, 0, s.MarkAllAsRead(ctx))
	assert.Zero(t, s.UnreadCount())

	assert.ErrorIs(t, s.MarkAsRead(ctx, "missing"), common.ErrNotFound)
}

func TestStore_DismissAndDelete(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()

	urgent := draft(model.CategoryBudget, "estourou")
	urgent.Priority = model.PriorityUrgent
	u, _ := s.AddNotification(ctx, urgent)
	read, _ := s.AddNotification(ctx, draft(model.CategoryGoal, "lida"))
	other, _ := s.AddNotification(ctx, draft(model.CategoryGoal, "outra"))
	require.NoError(t, s.MarkAsRead(ctx, read.ID))
	require.Equal(t, 2, s.UnreadCount())

	assert.Len(t, s.Notifications(FilterUrgent, ""), 1)
	require.NoError(t, s.DismissNotification(ctx, u.ID))
	require.NoError(t, s.DismissNotification(ctx, u.ID))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Empty(t, s.Notifications(FilterUrgent, ""))
	assert.Len(t, s.Notifications(FilterActive, ""), 2)
	assert.Len(t, s.Notifications(FilterAll, ""), 3, "dismissed stays in all")

	require.NoError(t, s.DeleteNotification(ctx, read.ID))
	assert.Equal(t, 1, s.UnreadCount(), "deleting a read item keeps unread")
	require.NoError(t, s.DeleteNotification(ctx, other.ID))
	assert.Zero(t, s.UnreadCount())
	assert.ErrorIs(t, s.DeleteNotification(ctx, other.ID), common.ErrNotFound)

	s.ClearAll(ctx)
	assert.Empty(t, s.Notifications(FilterAll, ""))
}

func TestStore_Filters(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()
	s.AddNotification(ctx, draft(model.CategoryBudget, "b1"))
	s.AddNotification(ctx, draft(model.CategoryBudget, "b2"))
	g, _ := s.AddNotification(ctx, draft(model.CategoryGoal, "g1"))
	require.NoError(t, s.MarkAsRead(ctx, g.ID))

	assert.Len(t, s.Notifications(FilterAll, model.CategoryBudget), 2)
	assert.Len(t, s.Notifications(FilterUnread, ""), 2)
	assert.Empty(t, s.Notifications(FilterUnread, model.CategoryGoal))
	assert.Equal(t, map[model.Category]int{model.CategoryBudget: 2}, s.CountByCategory())

	f, err := ParseFilter("urgent")
	require.NoError(t, err)
	assert.Equal(t, FilterUrgent, f)
	_, err = ParseFilter("loud")
	assert.Error(t, err)
}

func TestStore_ToastMapping(t *testing.T) {
	s, _, toaster := openTestStore(t, nil)
	ctx := context.Background()

	tests := []struct {
		priority model.Priority
		wantType toast.Type
		wantDur  time.Duration
	}{
		{priority: model.PriorityUrgent, wantType: toast.TypeError, wantDur: 10 * time.Second},
		{priority: model.PriorityHigh, wantType: toast.TypeWarning, wantDur: 7 * time.Second},
		{priority: model.PriorityNormal, wantType: toast.TypeInfo, wantDur: 5 * time.Second},
		{priority: model.PriorityLow, wantType: toast.TypeInfo, wantDur: 5 * time.Second},
	}
	for i, tt := range tests {
		d := draft(model.CategoryTransaction, fmt.Sprint(i))
		d.Priority = tt.priority
		s.AddNotification(ctx, d)

		req := toaster.requests[len(toaster.requests)-1]
		assert.Equal(t, tt.wantType, req.Type, tt.priority)
		require.NotNil(t, req.Duration)
		assert.Equal(t, tt.wantDur, *req.Duration, tt.priority)
	}

	require.NoError(t, s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) { p.AutoDismissing = false }))
	s.AddNotification(ctx, draft(model.CategoryTransaction, "fixo"))
	assert.Equal(t, time.Duration(0), *toaster.requests[len(toaster.requests)-1].Duration)

	require.NoError(t, s.ToggleCategory(ctx, model.CategoryGoal, model.ChannelInApp))
	before := len(toaster.requests)
	_, outcome := s.AddNotification(ctx, draft(model.CategoryGoal, "sem toast"))
	assert.Equal(t, Delivered, outcome)
	assert.Len(t, toaster.requests, before, "category without in_app gets no toast")
}

func TestStore_ToastActionMarksRead(t *testing.T) {
	s, _, toaster := openTestStore(t, nil)
	d := draft(model.CategoryBudget, "estouro")
	d.Actions = []model.NotificationAction{{ID: "view_budget", Label: "Ver Detalhes", URL: "/budgets", Primary: true}}
	n, _ := s.AddNotification(context.Background(), d)

	req := toaster.requests[0]
	require.NotNil(t, req.Action)
	assert.Equal(t, "Ver Detalhes", req.Action.Label)
	req.Action.Run()

	got, _ := s.Get(n.ID)
	assert.Equal(t, model.StatusRead, got.Status)
}

func TestStore_Preferences(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()
	start := s.Preferences().Version

	require.NoError(t, s.ToggleCategory(ctx, model.CategoryBudget, model.ChannelPush))
	p := s.Preferences()
	assert.Equal(t, start+1, p.Version)
	assert.Equal(t, []model.Channel{model.ChannelInApp}, p.Categories[model.CategoryBudget].Channels)
	assert.True(t, p.Categories[model.CategoryBudget].Enabled)

	require.NoError(t, s.ToggleCategory(ctx, model.CategoryBudget, model.ChannelInApp))
	p = s.Preferences()
	assert.Empty(t, p.Categories[model.CategoryBudget].Channels)
	assert.False(t, p.Categories[model.CategoryBudget].Enabled, "last channel off disables the category")

	require.NoError(t, s.ToggleCategory(ctx, model.CategoryBudget, model.ChannelEmail))
	assert.True(t, s.Preferences().Categories[model.CategoryBudget].Enabled)

	err := s.SetQuietHours(ctx, true, "25:00", "08:00")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.Equal(t, start+3, s.Preferences().Version, "rejected update does not bump version")

	err = s.UpdatePreferences(ctx, func(p *model.NotificationPreferences) { delete(p.Categories, model.CategoryReport) })
	assert.ErrorIs(t, err, model.ErrMissingCategoryConfig)

	assert.ErrorIs(t, s.ToggleCategory(ctx, "crypto", ""), common.ErrInvalidConfig)

	require.NoError(t, s.SetFrequency(ctx, model.CategoryInsight, model.FrequencyWeekly))
	p = s.Preferences()
	assert.Equal(t, model.FrequencyWeekly, p.Categories[model.CategoryInsight].Frequency)
	assert.True(t, p.Categories[model.CategoryInsight].Enabled)
	assert.Equal(t, start+4, p.Version)
	assert.ErrorIs(t, s.SetFrequency(ctx, "crypto", model.FrequencyDaily), common.ErrInvalidConfig)

	require.NoError(t, s.ResetPreferences(ctx))
	p = s.Preferences()
	assert.Equal(t, start+5, p.Version)
	assert.Equal(t, model.DefaultPreferences("", noon).Categories, p.Categories)

	// Returned preferences are copies.
	p.Categories[model.CategoryGoal] = model.CategoryConfig{}
	assert.True(t, s.Preferences().Categories[model.CategoryGoal].Enabled)
}

func TestStore_OfflineQueue(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()

	assert.Zero(t, s.SetOnline(ctx, false))
	_, outcome := s.AddNotification(ctx, draft(model.CategorySystem, "offline"))
	assert.Equal(t, Queued, outcome)
	assert.False(t, s.Online())

	assert.Equal(t, 1, s.SetOnline(ctx, true))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStore_MergeServerNotifications(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	ctx := context.Background()
	local, _ := s.AddNotification(ctx, draft(model.CategoryGoal, "local"))
	require.NoError(t, s.MarkAsRead(ctx, local.ID))

	server := []model.Notification{
		{ID: "srv-1", Title: "servidor 1", Category: model.CategorySystem, Status: model.StatusDelivered},
		{ID: local.ID, Title: "sobrescrita", Status: model.StatusSent},
		{ID: "srv-2", Title: "servidor 2", Category: model.CategorySystem, Status: model.StatusRead},
	}
	assert.Equal(t, 2, s.MergeServerNotifications(ctx, server))
	assert.Zero(t, s.MergeServerNotifications(ctx, server))

	list := s.Notifications(FilterAll, "")
	require.Len(t, list, 3)
	assert.Equal(t, "srv-1", list[0].ID)
	assert.Equal(t, "srv-2", list[1].ID)
	assert.Equal(t, "local", list[2].Title, "local state wins")
	assert.Equal(t, model.StatusRead, list[2].Status)
	assert.Equal(t, 1, s.UnreadCount())
}

func TestStore_CenterState(t *testing.T) {
	s, _, _ := openTestStore(t, nil)
	assert.False(t, s.CenterOpen())
	s.OpenCenter()
	assert.True(t, s.CenterOpen())
	s.CloseCenter()
	assert.False(t, s.CenterOpen())
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	policy := Policy{DailyCaps: map[model.Category]int{}}

	s, c, _ := openTestStore(t, db.Storage, WithPolicy(policy))
	for i := 0; i < 60; i++ {
		c.Advance(time.Second)
		s.AddNotification(ctx, draft(model.CategoryTransaction, fmt.Sprint(i)))
	}
	require.NoError(t, s.SetQuietHours(ctx, true, "22:00", "08:00"))
	s.OpenCenter()
	version := s.Preferences().Version

	reopened, err := Open(ctx, db.Storage, nil, WithClock(c), WithPolicy(policy), WithMetrics(metrics.New("test")))
	require.NoError(t, err)

	list := reopened.Notifications(FilterAll, "")
	require.Len(t, list, 50)
	assert.Equal(t, "59", list[0].Title)
	assert.Equal(t, 50, reopened.UnreadCount())
	assert.Equal(t, version, reopened.Preferences().Version)
	assert.True(t, reopened.Preferences().QuietHours.Enabled)
	assert.False(t, reopened.CenterOpen(), "center state is not persisted")
}

func TestOpen_InvalidStoredPreferences(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	prefs := model.DefaultPreferences(model.DefaultProfileID, noon)
	delete(prefs.Categories, model.CategoryAchievement)
	require.NoError(t, db.Storage.SavePreferences(ctx, &prefs))

	_, err := Open(ctx, db.Storage, nil, WithMetrics(metrics.New("test")))
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
	assert.ErrorIs(t, err, model.ErrMissingCategoryConfig)
}

func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	s, _, _ := openTestStore(t, failingRepo{})
	ctx := context.Background()

	n, outcome := s.AddNotification(ctx, draft(model.CategoryBudget, "ainda aqui"))
	assert.Equal(t, Delivered, outcome)
	require.NoError(t, s.MarkAsRead(ctx, n.ID))
	require.NoError(t, s.SetGlobalEnabled(ctx, true))

	got, ok := s.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusRead, got.Status)
}
