package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/config"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/rules"
	"github.com/Veraticus/ecofinance-notify/internal/toast"
)

func testSettings(t *testing.T) *config.Settings {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("storage.path", filepath.Join(t.TempDir(), "data", "ecofin.db"))
	s, err := config.Load(v)
	require.NoError(t, err)
	return s
}

func TestPolicyFrom(t *testing.T) {
	s := testSettings(t)
	p := policyFrom(s.Policy)

	assert.Equal(t, 100, p.MaxStored)
	assert.Equal(t, 50, p.MaxPersisted)
	assert.Equal(t, 5, p.DailyCaps[model.CategoryBudget])
	assert.Equal(t, 1, p.DailyCaps[model.CategoryReport])
}

func TestEngineConfig(t *testing.T) {
	s := testSettings(t)
	cfg := engineConfig(s.Policy)
	assert.Equal(t, 10080, cfg.MinCooldownMinutes[model.CategoryReport])
	assert.Equal(t, 0, cfg.MinCooldownMinutes[model.CategoryAchievement])
}

func TestToastConfig(t *testing.T) {
	s := testSettings(t)
	s.Toast.MaxVisible = 4
	cfg := toastConfig(s.Toast)

	assert.Equal(t, 4, cfg.MaxVisible)
	assert.Equal(t, 3, cfg.MaxVisibleNarrow)
	assert.Equal(t, 80, cfg.NarrowWidth)
	assert.Equal(t, 300*time.Millisecond, cfg.PromotionInterval)
}

func TestLineToaster(t *testing.T) {
	var buf bytes.Buffer
	id, decision := lineToaster{w: &buf}.Show(toast.Request{
		Type:    toast.TypeWarning,
		Title:   "Alerta",
		Message: "80% do orçamento",
	})

	assert.Empty(t, id)
	assert.Equal(t, toast.DecisionShown, decision)
	assert.Contains(t, buf.String(), "Alerta: 80% do orçamento")
}

func TestOpenApp_BudgetAlert(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	a, err := openApp(ctx, testSettings(t), printToasts(&out))
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.rules.List(), len(rules.DefaultRules(time.Now())), "empty database is seeded")

	require.NoError(t, a.ledger.SetBudget(ctx, "Transporte", 100))
	_, added, err := a.ledger.AddTransaction(ctx, model.Transaction{
		Description: "Uber",
		Category:    "Transporte",
		Amount:      85,
	})
	require.NoError(t, err)
	require.True(t, added)

	fired, err := a.check(ctx)
	require.NoError(t, err)

	var titles []string
	for _, n := range fired {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Alerta de Orçamento")
	assert.NotContains(t, titles, "Orçamento Estourado!")
	assert.Contains(t, out.String(), "Alerta de Orçamento")

	budget := a.inbox.Notifications(notify.FilterAll, model.CategoryBudget)
	require.Len(t, budget, 1)
	assert.Contains(t, budget[0].Message, "Transporte")

	again, err := a.check(ctx)
	require.NoError(t, err)
	for _, n := range again {
		assert.NotEqual(t, "Alerta de Orçamento", n.Title, "cooldown suppresses the repeat")
	}
}

func TestOpenApp_StatePersists(t *testing.T) {
	ctx := context.Background()
	s := testSettings(t)

	a, err := openApp(ctx, s, nil)
	require.NoError(t, err)
	n, outcome := a.inbox.AddNotification(ctx, model.Notification{
		Title:    "Lembrete",
		Category: model.CategoryReminder,
		Channels: []model.Channel{model.ChannelInApp},
	})
	require.Equal(t, notify.Delivered, outcome)
	require.NoError(t, a.inbox.SetGlobalEnabled(ctx, false))
	a.Close()

	b, err := openApp(ctx, s, nil)
	require.NoError(t, err)
	defer b.Close()

	got, ok := b.inbox.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "Lembrete", got.Title)
	assert.False(t, b.inbox.Preferences().GlobalEnabled)

	version, err := b.db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "42", want: 42},
		{in: "42,90", want: 42.90},
		{in: " 10.5 ", want: 10.5},
		{in: "0", wantErr: true},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.ofx", "b.ofx", "c.qfx"} {
		require.NoError(t, writeFile(filepath.Join(dir, name)))
	}

	files, err := expandFiles([]string{filepath.Join(dir, "*.ofx")})
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = expandFiles([]string{filepath.Join(dir, "*.csv")})
	assert.Error(t, err)
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte("OFXHEADER:100"), 0o600)
}

func TestCheck_FlushesQueueAfterQuietHours(t *testing.T) {
	ctx := context.Background()
	a, err := openApp(ctx, testSettings(t), nil)
	require.NoError(t, err)
	defer a.Close()

	c := clock.NewManual(time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC))
	a.inbox, err = notify.Open(ctx, a.state, nil, notify.WithClock(c))
	require.NoError(t, err)
	require.NoError(t, a.inbox.UpdatePreferences(ctx, func(p *model.NotificationPreferences) {
		p.QuietHours = model.QuietHours{Enabled: true, StartTime: "22:00", EndTime: "08:00", Timezone: "UTC"}
	}))

	_, outcome := a.inbox.AddNotification(ctx, model.Notification{
		Title:    "Noturna",
		Category: model.CategoryBudget,
		Channels: []model.Channel{model.ChannelInApp},
	})
	require.Equal(t, notify.Queued, outcome)

	_, err = a.check(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, a.inbox.QueuedCount(), "still quiet")

	c.Set(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC))
	_, err = a.check(ctx)
	require.NoError(t, err)

	assert.Zero(t, a.inbox.QueuedCount())
	budget := a.inbox.Notifications(notify.FilterAll, model.CategoryBudget)
	require.Len(t, budget, 1)
	assert.Equal(t, "Noturna", budget[0].Title)
}
