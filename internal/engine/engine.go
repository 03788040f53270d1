// Package engine evaluates notification rules against a context snapshot and
// turns the ones that fire into notification payloads.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/condition"
	"github.com/Veraticus/ecofinance-notify/internal/metrics"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/rules"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// Suppression reasons reported in metrics and logs.
const (
	reasonCooldown       = "cooldown"
	reasonMaxOccurrences = "max_occurrences"
)

// Config holds configuration options for the rule engine.
type Config struct {
	// MinCooldownMinutes is a per-category floor applied on top of each
	// rule's own cooldown.
	MinCooldownMinutes map[model.Category]int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MinCooldownMinutes: map[model.Category]int{
			model.CategoryBudget:      30,
			model.CategoryGoal:        60,
			model.CategoryTransaction: 5,
			model.CategoryReminder:    15,
			model.CategoryReport:      10080,
			model.CategorySystem:      10,
			model.CategoryInsight:     60,
			model.CategoryAchievement: 0,
		},
	}
}

// Engine orchestrates rule evaluation. Construct one per application and
// share it.
type Engine struct {
	rules     *rules.Store
	cooldowns service.CooldownStore
	evaluator *condition.Evaluator
	clock     clock.Clock
	metrics   *metrics.Metrics
	newID     func() string
	config    Config
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithClock sets the clock used when a context carries no evaluation instant.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics records engine metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator overrides notification id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// New creates a rule engine over the given rule store and cooldown table.
func New(store *rules.Store, cooldowns service.CooldownStore, opts ...Option) *Engine {
	e := &Engine{
		rules:     store,
		cooldowns: cooldowns,
		evaluator: condition.NewEvaluator(cooldowns),
		clock:     clock.Real{},
		newID:     uuid.NewString,
		config:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New("ecofin")
	}
	return e
}

// ProcessRules evaluates every enabled rule in registration order and returns
// the payloads of the rules that fired. A rule that fails is logged and
// skipped; it never stops the remaining rules. The only error returned is
// context cancellation, together with the payloads built so far.
func (e *Engine) ProcessRules(ctx context.Context, rc model.RuleContext) ([]model.Notification, error) {
	if rc.Date.IsZero() {
		rc.Date = e.clock.Now()
	}
	start := time.Now()
	defer func() { e.metrics.EvaluationDuration.Observe(time.Since(start).Seconds()) }()

	var out []model.Notification
	for _, rule := range e.rules.List() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !rule.Enabled {
			continue
		}

		payloads, err := e.processRule(ctx, rule, &rc)
		if err != nil {
			e.metrics.RuleErrors.WithLabelValues(rule.ID).Inc()
			slog.Error("Rule evaluation failed",
				"rule_id", rule.ID,
				"rule", rule.Name,
				"error", err)
			continue
		}
		out = append(out, payloads...)
	}
	return out, nil
}

// processRule evaluates one rule. Panics are converted into errors so a
// broken rule cannot take the batch down.
func (e *Engine) processRule(ctx context.Context, rule model.NotificationRule, rc *model.RuleContext) (payloads []model.Notification, err error) {
	defer func() {
		if r := recover(); r != nil {
			payloads = nil
			err = fmt.Errorf("%w: panic: %v", common.ErrRuleEvaluation, r)
		}
	}()

	e.metrics.RuleEvaluations.WithLabelValues(rule.ID).Inc()

	if rule.Exhausted() {
		e.metrics.RuleSuppressions.WithLabelValues(rule.ID, reasonMaxOccurrences).Inc()
		return nil, nil
	}

	bindings := make(map[string]any)
	for _, cond := range rule.Conditions {
		res, evalErr := e.evaluator.Evaluate(ctx, rule.ID, cond, rc)
		if evalErr != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrRuleEvaluation, evalErr)
		}
		if !res.Matched {
			return nil, nil
		}
		for k, v := range res.Bindings {
			if _, taken := bindings[k]; !taken {
				bindings[k] = v
			}
		}
	}

	cooling, err := e.inCooldown(ctx, rule, rc.Date)
	if err != nil {
		return nil, err
	}
	if cooling {
		e.metrics.RuleSuppressions.WithLabelValues(rule.ID, reasonCooldown).Inc()
		slog.Debug("Rule in cooldown", "rule_id", rule.ID)
		return nil, nil
	}

	scope := buildScope(rc, bindings)
	for _, action := range rule.Actions {
		if action.Type != model.ActionCreateNotification {
			slog.Debug("Skipping unsupported rule action", "rule_id", rule.ID, "action", action.Type)
			continue
		}
		payloads = append(payloads, e.buildPayload(rule, action, rc, scope, bindings))
	}

	e.recordFiring(ctx, rule.ID, rc.Date)
	e.metrics.RuleFirings.WithLabelValues(rule.ID).Inc()
	slog.Info("Rule fired", "rule_id", rule.ID, "payloads", len(payloads))
	return payloads, nil
}

// EffectiveCooldown is the longer of the rule's cooldown and the category floor.
func (e *Engine) EffectiveCooldown(rule model.NotificationRule) time.Duration {
	minutes := rule.CooldownMinutes
	if floor := e.config.MinCooldownMinutes[rule.Category]; floor > minutes {
		minutes = floor
	}
	return time.Duration(minutes) * time.Minute
}

func (e *Engine) inCooldown(ctx context.Context, rule model.NotificationRule, now time.Time) (bool, error) {
	cooldown := e.EffectiveCooldown(rule)
	if cooldown <= 0 || e.cooldowns == nil {
		return false, nil
	}
	state, found, err := e.cooldowns.GetCooldown(ctx, rule.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown: %w", err)
	}
	if !found {
		return false, nil
	}
	return now.Sub(state.LastFired) < cooldown, nil
}

// recordFiring updates the cooldown table and the rule's occurrence count.
// Failures are logged; the payloads already built are still delivered.
func (e *Engine) recordFiring(ctx context.Context, ruleID string, at time.Time) {
	if e.cooldowns != nil {
		if _, err := e.cooldowns.RecordFiring(ctx, ruleID, at); err != nil {
			slog.Error("Failed to persist rule cooldown", "rule_id", ruleID, "error", err)
		}
	}
	if _, err := e.rules.RecordOccurrence(ctx, ruleID); err != nil {
		slog.Warn("Failed to update rule occurrence count", "rule_id", ruleID, "error", err)
	}
}

func (e *Engine) buildPayload(rule model.NotificationRule, action model.RuleAction, rc *model.RuleContext, scope, bindings map[string]any) model.Notification {
	tpl := action.Notification

	category := tpl.Category
	if category == "" {
		category = rule.Category
	}
	if category == "" {
		category = model.CategorySystem
	}

	priority := action.Priority
	if priority == "" {
		priority = tpl.Priority
	}
	if priority == "" {
		priority = model.PriorityNormal
	}

	channels := append([]model.Channel(nil), tpl.Channels...)
	if len(channels) == 0 {
		channels = []model.Channel{model.ChannelInApp}
	}

	data := make(map[string]any, len(tpl.Data)+len(bindings)+1)
	for k, v := range tpl.Data {
		data[k] = v
	}
	for k, v := range bindings {
		data[k] = v
	}
	data["ruleId"] = rule.ID

	var actions []model.NotificationAction
	for _, a := range tpl.Actions {
		a.URL = Interpolate(a.URL, scope)
		actions = append(actions, a)
	}

	return model.Notification{
		ID:        e.newID(),
		ProfileID: rc.ProfileID(),
		Title:     Interpolate(tpl.Title, scope),
		Message:   Interpolate(tpl.Message, scope),
		URL:       Interpolate(tpl.URL, scope),
		Category:  category,
		Priority:  priority,
		Channels:  channels,
		Status:    model.StatusPending,
		Timestamp: rc.Date,
		Actions:   actions,
		Data:      data,
		Tags:      []string{"rule:" + rule.ID},
	}
}
