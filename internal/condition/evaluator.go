// Package condition decides whether a rule's conditions hold for a context
// snapshot.
//
// Every condition kind is a pure function of the condition and the context
// except recurring, which reads the rule's persisted cooldown record.
package condition

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// Result is the outcome of evaluating one condition.
type Result struct {
	// Bindings carries values from the matching entry, such as the budget
	// category that crossed a percentage, for message interpolation.
	Bindings map[string]any
	Matched  bool
}

// Evaluator evaluates rule conditions.
type Evaluator struct {
	cooldowns service.CooldownStore
}

// NewEvaluator creates an evaluator. cooldowns may be nil, in which case
// recurring conditions behave as if the rule never ran.
func NewEvaluator(cooldowns service.CooldownStore) *Evaluator {
	return &Evaluator{cooldowns: cooldowns}
}

// Evaluate decides a single condition for the rule identified by ruleID.
func (e *Evaluator) Evaluate(ctx context.Context, ruleID string, cond model.Condition, rc *model.RuleContext) (Result, error) {
	switch c := cond.(type) {
	case model.ThresholdCondition:
		return e.threshold(c, rc), nil
	case model.PercentageCondition:
		return e.percentage(c, rc), nil
	case model.DateCondition:
		return e.date(c, rc), nil
	case model.RecurringCondition:
		return e.recurring(ctx, ruleID, c, rc)
	case model.PatternCondition:
		return e.pattern(c, rc)
	case model.UnknownCondition:
		return Result{}, nil
	}
	return Result{}, nil
}

func (e *Evaluator) threshold(c model.ThresholdCondition, rc *model.RuleContext) Result {
	v, _ := rc.Lookup(c.Field)
	return Result{Matched: c.Operator.Compare(model.ToFloat(v), c.Value)}
}

func (e *Evaluator) percentage(c model.PercentageCondition, rc *model.RuleContext) Result {
	switch c.Field {
	case "budgets":
		for _, b := range rc.Budgets {
			pct, ok := b.Percent()
			if !ok || !c.Operator.Compare(pct, c.Value) {
				continue
			}
			return Result{Matched: true, Bindings: map[string]any{
				"category": b.Category,
				"spent":    b.Spent,
				"limit":    b.Limit,
				"percent":  math.Round(pct),
			}}
		}
	case "goals":
		for _, g := range rc.Goals {
			pct, ok := g.Percent()
			if !ok || !c.Operator.Compare(pct, c.Value) {
				continue
			}
			return Result{Matched: true, Bindings: map[string]any{
				"id":      g.ID,
				"name":    g.Name,
				"current": g.Current,
				"target":  g.Target,
				"percent": math.Round(pct),
			}}
		}
	}
	return Result{}
}

func (e *Evaluator) date(c model.DateCondition, rc *model.RuleContext) Result {
	if c.Field != "" && c.Field != "date" {
		return Result{}
	}
	want, ok := parseWeekday(c.Weekday)
	if !ok || rc.Date.IsZero() {
		return Result{}
	}
	return Result{Matched: rc.Date.Weekday() == want}
}

func (e *Evaluator) recurring(ctx context.Context, ruleID string, c model.RecurringCondition, rc *model.RuleContext) (Result, error) {
	if e.cooldowns == nil {
		return Result{Matched: true}, nil
	}
	state, found, err := e.cooldowns.GetCooldown(ctx, ruleID)
	if err != nil {
		return Result{}, fmt.Errorf("recurring condition for %s: %w", ruleID, err)
	}
	if !found {
		return Result{Matched: true}, nil
	}
	interval := c.Interval
	if interval <= 0 {
		interval = model.DefaultRecurringInterval
	}
	return Result{Matched: rc.Date.Sub(state.LastFired) >= interval}, nil
}

func (e *Evaluator) pattern(c model.PatternCondition, rc *model.RuleContext) (Result, error) {
	re, err := common.CompileRegex(c.Pattern)
	if err != nil {
		return Result{}, fmt.Errorf("pattern condition %q: %w", c.Pattern, err)
	}

	v, ok := rc.Lookup(c.Field)
	if !ok {
		return Result{}, nil
	}

	switch val := v.(type) {
	case string:
		if re.MatchString(val) {
			return Result{Matched: true, Bindings: map[string]any{"match": val}}, nil
		}
	case []any:
		for _, item := range val {
			text := describe(item)
			if text != "" && re.MatchString(text) {
				bindings := map[string]any{"match": text}
				if m, isMap := item.(map[string]any); isMap {
					for k, v := range m {
						bindings[k] = v
					}
				}
				return Result{Matched: true, Bindings: bindings}, nil
			}
		}
	}
	return Result{}, nil
}

// describe picks the text a pattern is matched against for a list element.
func describe(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["description"].(string); ok {
			return s
		}
		if s, ok := v["name"].(string); ok {
			return s
		}
	}
	return ""
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday,
	"monday": time.Monday, "segunda": time.Monday,
	"tuesday": time.Tuesday, "terca": time.Tuesday, "terça": time.Tuesday,
	"wednesday": time.Wednesday, "quarta": time.Wednesday,
	"thursday": time.Thursday, "quinta": time.Thursday,
	"friday": time.Friday, "sexta": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sábado": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}
