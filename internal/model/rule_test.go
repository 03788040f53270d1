package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperator_Compare(t *testing.T) {
	tests := []struct {
		op   Operator
		a, b float64
		want bool
	}{
		{OpGreaterThan, 85, 80, true},
		{OpGreaterThan, 80, 80, false},
		{OpGreaterOrEqual, 80, 80, true},
		{OpLessThan, 75, 80, true},
		{OpLessOrEqual, 81, 80, false},
		{OpEqual, 100, 100, true},
		{Operator("between"), 1, 1, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.Compare(tt.a, tt.b))
		})
	}
}

func TestConditionSpec_Condition(t *testing.T) {
	tests := []struct {
		want Condition
		name string
		spec ConditionSpec
	}{
		{
			name: "percentage with integer value",
			spec: ConditionSpec{Type: "percentage", Field: "budgets", Operator: OpGreaterThan, Value: 80},
			want: PercentageCondition{Field: "budgets", Operator: OpGreaterThan, Value: 80},
		},
		{
			name: "threshold with string value",
			spec: ConditionSpec{Type: "threshold", Field: "totalSpent", Operator: OpGreaterOrEqual, Value: "1500.5"},
			want: ThresholdCondition{Field: "totalSpent", Operator: OpGreaterOrEqual, Value: 1500.5},
		},
		{
			name: "date normalizes weekday",
			spec: ConditionSpec{Type: "date", Field: "date", Operator: OpEqual, Value: " Monday "},
			want: DateCondition{Field: "date", Weekday: "monday"},
		},
		{
			name: "recurring defaults to a week",
			spec: ConditionSpec{Type: "recurring"},
			want: RecurringCondition{Interval: DefaultRecurringInterval},
		},
		{
			name: "recurring in minutes",
			spec: ConditionSpec{Type: "recurring", Value: 90},
			want: RecurringCondition{Interval: 90 * time.Minute},
		},
		{
			name: "unknown type fails closed",
			spec: ConditionSpec{Type: "sentiment", Field: "x"},
			want: UnknownCondition{Type: "sentiment"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Condition())
		})
	}
}

func TestSpecFor_RoundTrip(t *testing.T) {
	conds := []Condition{
		ThresholdCondition{Field: "a.b", Operator: OpLessThan, Value: 3},
		PercentageCondition{Field: "goals", Operator: OpGreaterOrEqual, Value: 100},
		DateCondition{Field: "date", Weekday: "friday"},
		RecurringCondition{Interval: 48 * time.Hour},
		PatternCondition{Field: "transactions", Pattern: "(?i)uber"},
		UnknownCondition{Type: "mystery"},
	}
	for _, c := range conds {
		t.Run(string(c.Kind()), func(t *testing.T) {
			assert.Equal(t, c, SpecFor(c).Condition())
		})
	}
}

func TestNotificationRule_Exhausted(t *testing.T) {
	r := NotificationRule{MaxOccurrences: 2, OccurrenceCount: 1}
	assert.False(t, r.Exhausted())
	r.OccurrenceCount = 2
	assert.True(t, r.Exhausted())

	unlimited := NotificationRule{OccurrenceCount: 99}
	assert.False(t, unlimited.Exhausted())
}

func TestRuleContext_Lookup(t *testing.T) {
	rc := RuleContext{
		Date:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		UserProfile: &UserProfile{ID: "u1", Name: "Ana"},
		Budgets:     []BudgetStatus{{Category: "Food", Spent: 85, Limit: 100}},
		Vars:        map[string]any{"totalSpent": 420.5, "budgets": "shadowed"},
	}

	v, ok := rc.Lookup("userProfile.name")
	require.True(t, ok)
	assert.Equal(t, "Ana", v)

	v, ok = rc.Lookup("budgets.0.spent")
	require.True(t, ok)
	assert.InDelta(t, 85.0, v, 0.0001)

	v, ok = rc.Lookup("totalSpent")
	require.True(t, ok)
	assert.InDelta(t, 420.5, v, 0.0001)

	_, ok = rc.Lookup("budgets.3.spent")
	assert.False(t, ok)
	_, ok = rc.Lookup("missing.path")
	assert.False(t, ok)

	assert.Equal(t, "u1", rc.ProfileID())
	assert.Equal(t, DefaultProfileID, (&RuleContext{}).ProfileID())
}

func TestToFloat(t *testing.T) {
	assert.InDelta(t, 12.5, ToFloat("12.5"), 0.0001)
	assert.InDelta(t, 3.0, ToFloat(int64(3)), 0.0001)
	assert.Zero(t, ToFloat("abc"))
	assert.Zero(t, ToFloat(nil))
	assert.Zero(t, ToFloat([]int{1}))
}

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		Date:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Description: "Uber trip",
		Category:    "Transporte",
		Type:        TransactionExpense,
		Amount:      60,
	}
	same := base
	same.Description = "  UBER TRIP "
	other := base
	other.Amount = 61

	assert.Equal(t, base.GenerateHash(), same.GenerateHash())
	assert.NotEqual(t, base.GenerateHash(), other.GenerateHash())
}
