package engine

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
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
	"github.com/Veraticus/ecofinance-notify/internal/rules"
	"github.com/Veraticus/ecofinance-notify/internal/testutil"
)

// Tuesday, so the weekly summary stays quiet.
var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type memCooldowns struct {
	states   map[string]model.CooldownState
	panicFor string
	failFor  string
	mu       sync.Mutex
}

func newMemCooldowns() *memCooldowns {
	return &memCooldowns{states: make(map[string]model.CooldownState)}
}

func (m *memCooldowns) GetCooldown(_ context.Context, ruleID string) (model.CooldownState, bool, error) {
	if ruleID == m.panicFor {
		panic("cooldown table exploded")
	}
	if ruleID == m.failFor {
		return model.CooldownState{}, false, errors.New("read failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[ruleID]
	return s, ok, nil
}

func (m *memCooldowns) RecordFiring(_ context.Context, ruleID string, at time.Time) (model.CooldownState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.states[ruleID]
	s.RuleID, s.LastFired = ruleID, at
	s.Count++
	m.states[ruleID] = s
	return s, nil
}

func (m *memCooldowns) ResetCooldown(_ context.Context, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, ruleID)
	return nil
}

// alwaysRule builds a rule whose single condition always holds.
func alwaysRule(id string, category model.Category, cooldown int) model.NotificationRule {
	return model.NotificationRule{
		ID:       id,
		Name:     id,
		Category: category,
		Enabled:  true,
		Conditions: []model.Condition{
			model.ThresholdCondition{Field: "unset", Operator: model.OpEqual, Value: 0},
		},
		Actions: []model.RuleAction{{
			Type:         model.ActionCreateNotification,
			Notification: model.NotificationTemplate{Title: id, Message: "fired " + id},
		}},
		CooldownMinutes: cooldown,
	}
}

func newTestEngine(t *testing.T, cooldowns *memCooldowns, c clock.Clock, ruleSet ...model.NotificationRule) (*Engine, *rules.Store) {
	t.Helper()
	store := rules.NewStore(rules.WithClock(c))
	for _, r := range ruleSet {
		require.NoError(t, store.Add(context.Background(), r))
	}
	cfg := Config{MinCooldownMinutes: map[model.Category]int{model.CategoryGoal: 60}}
	return New(store, cooldowns, WithClock(c), WithConfig(cfg), WithMetrics(metrics.New("test"))), store
}

func titles(payloads []model.Notification) []string {
	out := make([]string, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, p.Title)
	}
	return out
}

func TestEngine_DisabledRulesNeverFire(t *testing.T) {
	contexts := []model.RuleContext{
		{},
		{Budgets: []model.BudgetStatus{{Category: "Food", Spent: 500, Limit: 100}}},
		{Goals: []model.Goal{{ID: "g", Name: "Casa", Current: 10, Target: 10}}, Date: testNow},
	}

	store := rules.NewDefaultStore(rules.WithClock(clock.Fixed{T: testNow}))
	for _, r := range store.List() {
		require.NoError(t, store.SetEnabled(context.Background(), r.ID, false))
	}
	e := New(store, newMemCooldowns(), WithClock(clock.Fixed{T: testNow}), WithMetrics(metrics.New("test")))

	for i, rc := range contexts {
		t.Run(fmt.Sprintf("context %d", i), func(t *testing.T) {
			got, err := e.ProcessRules(context.Background(), rc)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestEngine_RegistrationOrder(t *testing.T) {
	c := clock.Fixed{T: testNow}
	e, _ := newTestEngine(t, newMemCooldowns(), c,
		alwaysRule("third", model.CategoryAchievement, 0),
		alwaysRule("first", model.CategoryAchievement, 0),
		alwaysRule("second", model.CategoryAchievement, 0),
	)

	got, err := e.ProcessRules(context.Background(), model.RuleContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "first", "second"}, titles(got))
}

func TestEngine_Cooldown(t *testing.T) {
	c := clock.NewManual(testNow)
	cooldowns := newMemCooldowns()
	e, _ := newTestEngine(t, cooldowns, c, alwaysRule("ping", model.CategoryAchievement, 10))
	ctx := context.Background()

	got, err := e.ProcessRules(ctx, model.RuleContext{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c.Advance(9 * time.Minute)
	got, err = e.ProcessRules(ctx, model.RuleContext{})
	require.NoError(t, err)
	assert.Empty(t, got, "second firing inside cooldown is suppressed")

	c.Advance(time.Minute)
	got, err = e.ProcessRules(ctx, model.RuleContext{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.Equal(t, 2, cooldowns.states["ping"].Count)
	assert.Equal(t, testNow.Add(10*time.Minute), cooldowns.states["ping"].LastFired)
}

func TestEngine_CategoryCooldownFloor(t *testing.T) {
	c := clock.NewManual(testNow)
	e, _ := newTestEngine(t, newMemCooldowns(), c, alwaysRule("goal", model.CategoryGoal, 0))

	assert.Equal(t, time.Hour, e.EffectiveCooldown(alwaysRule("goal", model.CategoryGoal, 0)))
	assert.Equal(t, 2*time.Hour, e.EffectiveCooldown(alwaysRule("goal", model.CategoryGoal, 120)))

	got, err := e.ProcessRules(context.Background(), model.RuleContext{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c.Advance(30 * time.Minute)
	got, err = e.ProcessRules(context.Background(), model.RuleContext{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_FailingRuleDoesNotAbortBatch(t *testing.T) {
	cooldowns := newMemCooldowns()
	cooldowns.panicFor = "boom"
	cooldowns.failFor = "broken"
	m := metrics.New("test")

	store := rules.NewStore()
	for _, r := range []model.NotificationRule{
		alwaysRule("before", model.CategoryAchievement, 0),
		alwaysRule("boom", model.CategorySystem, 5),
		alwaysRule("broken", model.CategorySystem, 5),
		{
			ID:      "bad-regex",
			Enabled: true,
			Conditions: []model.Condition{
				model.PatternCondition{Field: "transactions", Pattern: "(["},
			},
		},
		alwaysRule("after", model.CategoryAchievement, 0),
	} {
		require.NoError(t, store.Add(context.Background(), r))
	}
	e := New(store, cooldowns, WithClock(clock.Fixed{T: testNow}), WithMetrics(m))

	got, err := e.ProcessRules(context.Background(), model.RuleContext{
		Transactions: []model.Transaction{{ID: "t", Description: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, titles(got))
	assert.Len(t, cooldowns.states, 2)
}

func TestEngine_MaxOccurrences(t *testing.T) {
	c := clock.NewManual(testNow)
	rule := alwaysRule("once", model.CategoryAchievement, 0)
	rule.MaxOccurrences = 1
	e, store := newTestEngine(t, newMemCooldowns(), c, rule)

	got, err := e.ProcessRules(context.Background(), model.RuleContext{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	stored, ok := store.Get("once")
	require.True(t, ok)
	assert.Equal(t, 1, stored.OccurrenceCount)

	c.Advance(24 * time.Hour)
	got, err = e.ProcessRules(context.Background(), model.RuleContext{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEngine_PayloadDefaults(t *testing.T) {
	rule := model.NotificationRule{
		ID:      "bare",
		Enabled: true,
		Actions: []model.RuleAction{
			{Type: model.ActionCreateNotification, Notification: model.NotificationTemplate{Title: "a"}},
			{Type: model.ActionWebhook},
			{
				Type:     model.ActionCreateNotification,
				Priority: model.PriorityHigh,
				Notification: model.NotificationTemplate{
					Title:    "b",
					Category: model.CategoryInsight,
					Priority: model.PriorityLow,
					Channels: []model.Channel{model.ChannelEmail},
					Data:     map[string]any{"source": "test"},
				},
			},
		},
	}
	ids := 0
	store := rules.NewStore()
	require.NoError(t, store.Add(context.Background(), rule))
	e := New(store, nil,
		WithClock(clock.Fixed{T: testNow}),
		WithMetrics(metrics.New("test")),
		WithIDGenerator(func() string { ids++; return fmt.Sprintf("n%d", ids) }))

	got, err := e.ProcessRules(context.Background(), model.RuleContext{UserProfile: &model.UserProfile{ID: "u1"}})
	require.NoError(t, err)
	require.Len(t, got, 2)

	a, b := got[0], got[1]
	assert.Equal(t, "n1", a.ID)
	assert.Equal(t, "u1", a.ProfileID)
	assert.Equal(t, model.CategorySystem, a.Category)
	assert.Equal(t, model.PriorityNormal, a.Priority)
	assert.Equal(t, []model.Channel{model.ChannelInApp}, a.Channels)
	assert.Equal(t, model.StatusPending, a.Status)
	assert.Equal(t, testNow, a.Timestamp)
	assert.Equal(t, "bare", a.Data["ruleId"])

	assert.Equal(t, "n2", b.ID)
	assert.Equal(t, model.CategoryInsight, b.Category)
	assert.Equal(t, model.PriorityHigh, b.Priority)
	assert.Equal(t, []model.Channel{model.ChannelEmail}, b.Channels)
	assert.Equal(t, "test", b.Data["source"])
}

func TestEngine_ContextCancelled(t *testing.T) {
	e, _ := newTestEngine(t, newMemCooldowns(), clock.Fixed{T: testNow}, alwaysRule("x", model.CategoryAchievement, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := e.ProcessRules(ctx, model.RuleContext{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
}

func TestInterpolate(t *testing.T) {
	scope := map[string]any{
		"category": "Transporte",
		"percent":  105.0,
		"spent":    210.456,
		"count":    3,
		"userProfile": map[string]any{
			"name": "Ana",
		},
		"budgets": []any{map[string]any{"category": "Food"}},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "plain text", template: "nada aqui", want: "nada aqui"},
		{name: "simple", template: "{{category}} em {{percent}}%", want: "Transporte em 105%"},
		{name: "rounds floats", template: "{{spent}}", want: "210.46"},
		{name: "int", template: "{{count}}x", want: "3x"},
		{name: "nested", template: "Olá {{userProfile.name}}", want: "Olá Ana"},
		{name: "index", template: "{{budgets.0.category}}", want: "Food"},
		{name: "whitespace in token", template: "{{ category }}", want: "Transporte"},
		{name: "unresolved stays literal", template: "{{missing.path}} e {{category}}", want: "{{missing.path}} e Transporte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, scope))
		})
	}
}

type recordingSink struct {
	got      []model.Notification
	outcomes []notify.Outcome
}

func (r *recordingSink) AddNotification(_ context.Context, draft model.Notification) (model.Notification, notify.Outcome) {
	r.got = append(r.got, draft)
	outcome := r.outcomes[len(r.got)-1]
	return draft, outcome
}

func TestDispatch(t *testing.T) {
	sink := &recordingSink{outcomes: []notify.Outcome{notify.Delivered, notify.DroppedDailyCap, notify.Delivered}}
	payloads := []model.Notification{{Title: "1"}, {Title: "2"}, {Title: "3"}}

	tally := Dispatch(context.Background(), sink, payloads)

	assert.Equal(t, []string{"1", "2", "3"}, titles(sink.got))
	assert.Equal(t, map[notify.Outcome]int{notify.Delivered: 2, notify.DroppedDailyCap: 1}, tally)
}

func TestEngine_BudgetOverrunFiresOnce(t *testing.T) {
	db := testutil.SetupTestDB(t).WithBudget("Transporte", 200)
	ctx := context.Background()
	c := clock.NewManual(testNow)

	store := rules.NewStore(rules.WithRepository(db.Storage), rules.WithClock(c))
	require.NoError(t, store.Load(ctx))
	e := New(store, db.Storage, WithClock(c), WithMetrics(metrics.New("test")))

	budgets := func(spent float64) model.RuleContext {
		return model.RuleContext{Budgets: []model.BudgetStatus{{Category: "Transporte", Spent: spent, Limit: 200}}}
	}

	got, err := e.ProcessRules(ctx, budgets(150))
	require.NoError(t, err)
	assert.Empty(t, got, "75% crosses nothing")

	c.Advance(time.Minute)
	got, err = e.ProcessRules(ctx, budgets(210))
	require.NoError(t, err)

	var overrun []model.Notification
	for _, p := range got {
		if p.Data["ruleId"] == rules.RuleBudget100 {
			overrun = append(overrun, p)
		}
	}
	require.Len(t, overrun, 1)
	n := overrun[0]
	assert.Equal(t, model.PriorityUrgent, n.Priority)
	assert.Equal(t, "Você ultrapassou o limite de Transporte. Gasto: 210, Limite: 200", n.Message)
	require.Len(t, n.Actions, 1)
	assert.Equal(t, "view_budget", n.Actions[0].ID)
	assert.Equal(t, "/budgets", n.Actions[0].URL)

	for i := 0; i < 3; i++ {
		c.Advance(10 * time.Minute)
		got, err = e.ProcessRules(ctx, budgets(210))
		require.NoError(t, err)
		assert.Empty(t, got, "still over budget but cooling down")
	}

	state, found, err := db.Storage.GetCooldown(ctx, rules.RuleBudget100)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, state.Count)

	persisted, err := db.Storage.ListRules(ctx)
	require.NoError(t, err)
	for _, r := range persisted {
		if r.ID == rules.RuleBudget100 {
			assert.Equal(t, 1, r.OccurrenceCount)
		}
	}
}
