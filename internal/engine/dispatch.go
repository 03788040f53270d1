package engine

import (
	"context"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/notify"
)

// Sink receives the payloads produced by a rule run.
type Sink interface {
	AddNotification(ctx context.Context, draft model.Notification) (model.Notification, notify.Outcome)
}

// Dispatch hands every payload to sink in order and tallies the outcomes.
func Dispatch(ctx context.Context, sink Sink, payloads []model.Notification) map[notify.Outcome]int {
	tally := make(map[notify.Outcome]int)
	for _, p := range payloads {
		if ctx.Err() != nil {
			break
		}
		_, outcome := sink.AddNotification(ctx, p)
		tally[outcome]++
		common.LogDebug("Dispatched notification", common.Fields{
			"title":    p.Title,
			"category": p.Category,
			"outcome":  outcome,
		})
	}
	return tally
}

// Check evaluates the rules against rc and dispatches what fired.
func (e *Engine) Check(ctx context.Context, sink Sink, rc model.RuleContext) ([]model.Notification, error) {
	payloads, err := e.ProcessRules(ctx, rc)
	if len(payloads) > 0 {
		Dispatch(ctx, sink, payloads)
	}
	return payloads, err
}
