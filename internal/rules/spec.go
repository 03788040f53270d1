package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Spec is the configuration-file form of a rule.
type Spec struct {
	Enabled         *bool                 `mapstructure:"enabled"`
	ID              string                `mapstructure:"id" validate:"required"`
	Name            string                `mapstructure:"name" validate:"required"`
	Description     string                `mapstructure:"description"`
	Category        string                `mapstructure:"category" validate:"required"`
	Conditions      []model.ConditionSpec `mapstructure:"conditions" validate:"min=1,dive"`
	Actions         []model.RuleAction    `mapstructure:"actions" validate:"min=1,dive"`
	CooldownMinutes int                   `mapstructure:"cooldown_minutes" validate:"gte=0"`
	MaxOccurrences  int                   `mapstructure:"max_occurrences" validate:"gte=0"`
}

var specValidator = validator.New()

// Rule validates s and converts it into a rule stamped with now.
func (s Spec) Rule(now time.Time) (model.NotificationRule, error) {
	if err := specValidator.Struct(s); err != nil {
		return model.NotificationRule{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidRule, s.ID, err)
	}
	category, err := model.ParseCategory(s.Category)
	if err != nil {
		return model.NotificationRule{}, fmt.Errorf("%w: %s: %w", common.ErrInvalidRule, s.ID, err)
	}

	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}

	rule := model.NotificationRule{
		ID:              strings.TrimSpace(s.ID),
		Name:            s.Name,
		Description:     s.Description,
		Category:        category,
		Enabled:         enabled,
		Actions:         s.Actions,
		CooldownMinutes: s.CooldownMinutes,
		MaxOccurrences:  s.MaxOccurrences,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, c := range s.Conditions {
		rule.Conditions = append(rule.Conditions, c.Condition())
	}
	return rule, nil
}

// LoadSpecs reads rule specs from a YAML or JSON file under the "rules" key.
func LoadSpecs(path string) ([]Spec, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rule file %s: %w", path, err)
	}

	var specs []Spec
	if err := v.UnmarshalKey("rules", &specs); err != nil {
		return nil, fmt.Errorf("%w: rule file %s: %w", common.ErrInvalidRule, path, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: rule file %s has no rules", common.ErrInvalidRule, path)
	}
	return specs, nil
}
