package rules

import (
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Ids of the built-in rules.
const (
	RuleBudget80      = "budget-80-percent"
	RuleBudget100     = "budget-100-percent"
	RuleGoalCompleted = "goal-completed"
	RuleWeeklySummary = "weekly-summary"
)

// DefaultRules returns the rule set a new installation starts with.
func DefaultRules(now time.Time) []model.NotificationRule {
	inAppPush := []model.Channel{model.ChannelInApp, model.ChannelPush}

	return []model.NotificationRule{
		{
			ID:          RuleBudget80,
			Name:        "Orçamento em 80%",
			Description: "Notificar quando orçamento atingir 80% do limite",
			Category:    model.CategoryBudget,
			Enabled:     true,
			Conditions: []model.Condition{
				model.PercentageCondition{Field: "budgets", Operator: model.OpGreaterThan, Value: 80},
			},
			Actions: []model.RuleAction{{
				Type: model.ActionCreateNotification,
				Notification: model.NotificationTemplate{
					Title:    "Alerta de Orçamento",
					Message:  "Você atingiu {{percent}}% do seu orçamento de {{category}}",
					Category: model.CategoryBudget,
					Priority: model.PriorityHigh,
					Channels: inAppPush,
				},
			}},
			CooldownMinutes: 360,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:          RuleBudget100,
			Name:        "Orçamento Estourado",
			Description: "Notificar quando orçamento atingir 100% do limite",
			Category:    model.CategoryBudget,
			Enabled:     true,
			Conditions: []model.Condition{
				model.PercentageCondition{Field: "budgets", Operator: model.OpGreaterThan, Value: 100},
			},
			Actions: []model.RuleAction{{
				Type: model.ActionCreateNotification,
				Notification: model.NotificationTemplate{
					Title:    "Orçamento Estourado!",
					Message:  "Você ultrapassou o limite de {{category}}. Gasto: {{spent}}, Limite: {{limit}}",
					Category: model.CategoryBudget,
					Priority: model.PriorityUrgent,
					Channels: inAppPush,
					Actions: []model.NotificationAction{{
						ID:      "view_budget",
						Label:   "Ver Detalhes",
						URL:     "/budgets",
						Primary: true,
					}},
				},
			}},
			CooldownMinutes: 720,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:          RuleGoalCompleted,
			Name:        "Meta Atingida",
			Description: "Notificar quando uma meta for alcançada",
			Category:    model.CategoryGoal,
			Enabled:     true,
			Conditions: []model.Condition{
				model.PercentageCondition{Field: "goals", Operator: model.OpGreaterOrEqual, Value: 100},
			},
			Actions: []model.RuleAction{{
				Type: model.ActionCreateNotification,
				Notification: model.NotificationTemplate{
					Title:    "Meta Atingida! 🎉",
					Message:  "Parabéns! Você completou a meta \"{{name}}\"",
					Category: model.CategoryGoal,
					Priority: model.PriorityHigh,
					Channels: inAppPush,
				},
			}},
			CooldownMinutes: 0,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		{
			ID:          RuleWeeklySummary,
			Name:        "Resumo Semanal",
			Description: "Enviar resumo financeiro semanal",
			Category:    model.CategoryReport,
			Enabled:     true,
			Conditions: []model.Condition{
				model.DateCondition{Field: "date", Weekday: "monday"},
			},
			Actions: []model.RuleAction{{
				Type: model.ActionCreateNotification,
				Notification: model.NotificationTemplate{
					Title:    "Seu Resumo Semanal",
					Message:  "Você gastou {{totalSpent}} esta semana. Clique para ver os detalhes.",
					Category: model.CategoryReport,
					Priority: model.PriorityNormal,
					Channels: []model.Channel{model.ChannelInApp},
				},
			}},
			CooldownMinutes: 10080,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
}
