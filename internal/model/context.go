package model

import (
	"strconv"
	"strings"
	"time"
)

// DefaultProfileID is used when a context carries no user profile.
const DefaultProfileID = "default"

// UserProfile identifies who the notifications are for.
type UserProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RuleContext is the snapshot of financial state rules are evaluated against.
type RuleContext struct {
	Date         time.Time      `json:"date"`
	UserProfile  *UserProfile   `json:"userProfile,omitempty"`
	Vars         map[string]any `json:"vars,omitempty"`
	Budgets      []BudgetStatus `json:"budgets"`
	Goals        []Goal         `json:"goals"`
	Transactions []Transaction  `json:"transactions,omitempty"`
}

// ProfileID returns the profile the context belongs to.
func (c *RuleContext) ProfileID() string {
	if c.UserProfile != nil && c.UserProfile.ID != "" {
		return c.UserProfile.ID
	}
	return DefaultProfileID
}

// Scope flattens the context into nested maps for dotted-path lookup.
// Vars are merged at the top level and never shadow the structural keys.
func (c *RuleContext) Scope() map[string]any {
	scope := make(map[string]any, len(c.Vars)+5)
	for k, v := range c.Vars {
		scope[k] = v
	}

	budgets := make([]any, 0, len(c.Budgets))
	for _, b := range c.Budgets {
		budgets = append(budgets, map[string]any{
			"category": b.Category,
			"spent":    b.Spent,
			"limit":    b.Limit,
		})
	}
	goals := make([]any, 0, len(c.Goals))
	for _, g := range c.Goals {
		goals = append(goals, map[string]any{
			"id":      g.ID,
			"name":    g.Name,
			"current": g.Current,
			"target":  g.Target,
		})
	}
	txns := make([]any, 0, len(c.Transactions))
	for _, t := range c.Transactions {
		txns = append(txns, map[string]any{
			"id":          t.ID,
			"description": t.Description,
			"amount":      t.Amount,
			"type":        string(t.Type),
			"category":    t.Category,
			"date":        t.Date.Format("2006-01-02"),
		})
	}

	scope["budgets"] = budgets
	scope["goals"] = goals
	scope["transactions"] = txns
	scope["date"] = c.Date
	if c.UserProfile != nil {
		scope["userProfile"] = map[string]any{"id": c.UserProfile.ID, "name": c.UserProfile.Name}
	}
	return scope
}

// Lookup resolves a dotted path such as "userProfile.name" or "budgets.0.spent".
func (c *RuleContext) Lookup(path string) (any, bool) {
	return LookupPath(c.Scope(), path)
}

// LookupPath walks nested maps and slices along a dotted path.
func LookupPath(scope map[string]any, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	var cur any = scope
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			cur = node[idx]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// ToFloat coerces numbers and numeric strings to float64. Anything else is 0.
func ToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
