package model

import (
	"strings"
	"time"
)

// Operator compares a context value against a condition value.
type Operator string

// Comparison operators.
const (
	OpGreaterThan    Operator = "gt"
	OpLessThan       Operator = "lt"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
)

// Compare applies the operator to a and b. Unknown operators never match.
func (o Operator) Compare(a, b float64) bool {
	switch o {
	case OpGreaterThan:
		return a > b
	case OpLessThan:
		return a < b
	case OpGreaterOrEqual:
		return a >= b
	case OpLessOrEqual:
		return a <= b
	case OpEqual:
		return a == b
	}
	return false
}

// ConditionType names the kind of a rule condition.
type ConditionType string

// Condition types.
const (
	ConditionThreshold  ConditionType = "threshold"
	ConditionPercentage ConditionType = "percentage"
	ConditionDate       ConditionType = "date"
	ConditionRecurring  ConditionType = "recurring"
	ConditionPattern    ConditionType = "pattern"
)

// Condition is one clause of a rule. The set of implementations is closed;
// evaluators switch over the concrete types.
type Condition interface {
	Kind() ConditionType
	condition()
}

// ThresholdCondition compares a numeric context field against Value.
type ThresholdCondition struct {
	Field    string
	Operator Operator
	Value    float64
}

// PercentageCondition compares spent/limit (or current/target) ratios of a
// collection against Value. Any matching entry satisfies it.
type PercentageCondition struct {
	Field    string
	Operator Operator
	Value    float64
}

// DateCondition matches when the evaluation instant falls on Weekday.
type DateCondition struct {
	Field   string
	Weekday string
}

// RecurringCondition matches when the rule has never fired or Interval has
// elapsed since it last did.
type RecurringCondition struct {
	Interval time.Duration
}

// PatternCondition matches a regular expression against a string field.
type PatternCondition struct {
	Field   string
	Pattern string
}

// UnknownCondition stands in for condition types this build does not know.
// It never matches.
type UnknownCondition struct {
	Type string
}

func (ThresholdCondition) Kind() ConditionType  { return ConditionThreshold }
func (PercentageCondition) Kind() ConditionType { return ConditionPercentage }
func (DateCondition) Kind() ConditionType       { return ConditionDate }
func (RecurringCondition) Kind() ConditionType  { return ConditionRecurring }
func (PatternCondition) Kind() ConditionType    { return ConditionPattern }
func (u UnknownCondition) Kind() ConditionType  { return ConditionType(u.Type) }

func (ThresholdCondition) condition()  {}
func (PercentageCondition) condition() {}
func (DateCondition) condition()       {}
func (RecurringCondition) condition()  {}
func (PatternCondition) condition()    {}
func (UnknownCondition) condition()    {}

// DefaultRecurringInterval applies when a recurring condition has no interval.
const DefaultRecurringInterval = 7 * 24 * time.Hour

// ConditionSpec is the flat form of a condition used in configuration files
// and persisted rules.
type ConditionSpec struct {
	Value    any      `json:"value" mapstructure:"value"`
	Type     string   `json:"type" mapstructure:"type" validate:"required"`
	Field    string   `json:"field" mapstructure:"field"`
	Operator Operator `json:"operator,omitempty" mapstructure:"operator"`
}

// Condition converts the flat form into a typed condition.
func (s ConditionSpec) Condition() Condition {
	switch ConditionType(s.Type) {
	case ConditionThreshold:
		return ThresholdCondition{Field: s.Field, Operator: s.Operator, Value: ToFloat(s.Value)}
	case ConditionPercentage:
		return PercentageCondition{Field: s.Field, Operator: s.Operator, Value: ToFloat(s.Value)}
	case ConditionDate:
		day, _ := s.Value.(string)
		return DateCondition{Field: s.Field, Weekday: strings.ToLower(strings.TrimSpace(day))}
	case ConditionRecurring:
		return RecurringCondition{Interval: parseInterval(s.Value)}
	case ConditionPattern:
		pat, _ := s.Value.(string)
		return PatternCondition{Field: s.Field, Pattern: pat}
	}
	return UnknownCondition{Type: s.Type}
}

// SpecFor converts a typed condition back into its flat form.
func SpecFor(c Condition) ConditionSpec {
	switch v := c.(type) {
	case ThresholdCondition:
		return ConditionSpec{Type: string(ConditionThreshold), Field: v.Field, Operator: v.Operator, Value: v.Value}
	case PercentageCondition:
		return ConditionSpec{Type: string(ConditionPercentage), Field: v.Field, Operator: v.Operator, Value: v.Value}
	case DateCondition:
		return ConditionSpec{Type: string(ConditionDate), Field: v.Field, Operator: OpEqual, Value: v.Weekday}
	case RecurringCondition:
		return ConditionSpec{Type: string(ConditionRecurring), Value: v.Interval.String()}
	case PatternCondition:
		return ConditionSpec{Type: string(ConditionPattern), Field: v.Field, Value: v.Pattern}
	case UnknownCondition:
		return ConditionSpec{Type: v.Type}
	}
	return ConditionSpec{}
}

// parseInterval accepts a Go duration string or a number of minutes.
func parseInterval(v any) time.Duration {
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	case nil:
	default:
		if m := ToFloat(val); m > 0 {
			return time.Duration(m * float64(time.Minute))
		}
	}
	return DefaultRecurringInterval
}

// ActionType names what a rule does when it fires.
type ActionType string

// Action types. Only ActionCreateNotification produces output.
const (
	ActionCreateNotification ActionType = "create_notification"
	ActionSendEmail          ActionType = "send_email"
	ActionWebhook            ActionType = "webhook"
)

// NotificationTemplate is the draft a rule action turns into a notification.
type NotificationTemplate struct {
	Data     map[string]any       `json:"data,omitempty" mapstructure:"data"`
	Title    string               `json:"title" mapstructure:"title"`
	Message  string               `json:"message" mapstructure:"message"`
	URL      string               `json:"url,omitempty" mapstructure:"url"`
	Category Category             `json:"category,omitempty" mapstructure:"category"`
	Priority Priority             `json:"priority,omitempty" mapstructure:"priority"`
	Channels []Channel            `json:"channels,omitempty" mapstructure:"channels"`
	Actions  []NotificationAction `json:"actions,omitempty" mapstructure:"actions"`
}

// RuleAction is one directive executed when a rule fires.
type RuleAction struct {
	Type         ActionType           `json:"type" mapstructure:"type" validate:"required"`
	Priority     Priority             `json:"priority,omitempty" mapstructure:"priority"`
	Notification NotificationTemplate `json:"notification" mapstructure:"notification"`
}

// NotificationRule drives automatic notification creation.
type NotificationRule struct {
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description,omitempty"`
	Category        Category     `json:"category"`
	Conditions      []Condition  `json:"-"`
	Actions         []RuleAction `json:"actions"`
	CooldownMinutes int          `json:"cooldownMinutes"`
	MaxOccurrences  int          `json:"maxOccurrences,omitempty"`
	OccurrenceCount int          `json:"occurrenceCount"`
	Enabled         bool         `json:"enabled"`
}

// ConditionSpecs returns the flat form of the rule's conditions.
func (r *NotificationRule) ConditionSpecs() []ConditionSpec {
	specs := make([]ConditionSpec, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		specs = append(specs, SpecFor(c))
	}
	return specs
}

// Exhausted reports whether the rule reached its occurrence limit.
func (r *NotificationRule) Exhausted() bool {
	return r.MaxOccurrences > 0 && r.OccurrenceCount >= r.MaxOccurrences
}

// CooldownState is the persisted firing record of one rule.
type CooldownState struct {
	LastFired time.Time `json:"lastFired"`
	RuleID    string    `json:"ruleId"`
	Count     int       `json:"count"`
}
