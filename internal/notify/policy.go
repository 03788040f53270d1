package notify

import "github.com/Veraticus/ecofinance-notify/internal/model"

// Policy bounds what the store keeps and how much each category may emit.
type Policy struct {
	// DailyCaps limits notifications per category per calendar day. A
	// missing or non-positive cap means unlimited.
	DailyCaps    map[model.Category]int
	MaxStored    int
	MaxPersisted int
	MaxQueued    int
}

// DefaultPolicy returns the default limits.
func DefaultPolicy() Policy {
	return Policy{
		DailyCaps: map[model.Category]int{
			model.CategoryBudget:      5,
			model.CategoryGoal:        3,
			model.CategoryTransaction: 10,
			model.CategoryReminder:    5,
			model.CategoryReport:      1,
			model.CategorySystem:      3,
			model.CategoryInsight:     5,
			model.CategoryAchievement: 2,
		},
		MaxStored:    100,
		MaxPersisted: 50,
		MaxQueued:    50,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.DailyCaps == nil {
		p.DailyCaps = def.DailyCaps
	}
	if p.MaxStored <= 0 {
		p.MaxStored = def.MaxStored
	}
	if p.MaxPersisted <= 0 || p.MaxPersisted > p.MaxStored {
		p.MaxPersisted = min(def.MaxPersisted, p.MaxStored)
	}
	if p.MaxQueued <= 0 {
		p.MaxQueued = def.MaxQueued
	}
	return p
}
