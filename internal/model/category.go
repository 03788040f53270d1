// Package model defines the core domain models used throughout the application.
package model

import "fmt"

// Category groups notifications for preferences, caps and display.
type Category string

// Notification categories.
const (
	CategoryBudget      Category = "budget"
	CategoryGoal        Category = "goal"
	CategoryTransaction Category = "transaction"
	CategoryReminder    Category = "reminder"
	CategoryReport      Category = "report"
	CategorySystem      Category = "system"
	CategoryInsight     Category = "insight"
	CategoryAchievement Category = "achievement"
)

// AllCategories returns every category in display order.
func AllCategories() []Category {
	return []Category{
		CategoryBudget,
		CategoryGoal,
		CategoryTransaction,
		CategoryReminder,
		CategoryReport,
		CategorySystem,
		CategoryInsight,
		CategoryAchievement,
	}
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the user-facing label for a category.
func (c Category) Label() string {
	switch c {
	case CategoryBudget:
		return "Orçamentos"
	case CategoryGoal:
		return "Metas"
	case CategoryTransaction:
		return "Transações"
	case CategoryReminder:
		return "Lembretes"
	case CategoryReport:
		return "Relatórios"
	case CategorySystem:
		return "Sistema"
	case CategoryInsight:
		return "Insights"
	case CategoryAchievement:
		return "Conquistas"
	}
	return string(c)
}

// DefaultPriority is the priority used when a template does not set one.
func (c Category) DefaultPriority() Priority {
	switch c {
	case CategoryBudget, CategoryGoal, CategoryAchievement:
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

// ParseCategory converts a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown notification category %q", s)
	}
	return c, nil
}
