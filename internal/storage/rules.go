package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// ListRules returns all rules in registration order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.NotificationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, enabled, conditions, actions,
			cooldown_minutes, max_occurrences, occurrence_count, created_at, updated_at
		FROM notification_rules
		ORDER BY position, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.NotificationRule
	for rows.Next() {
		var (
			r              model.NotificationRule
			category       string
			conditionsJSON string
			actionsJSON    string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &category, &r.Enabled,
			&conditionsJSON, &actionsJSON, &r.CooldownMinutes, &r.MaxOccurrences,
			&r.OccurrenceCount, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		r.Category = model.Category(category)

		var specs []model.ConditionSpec
		if err := json.Unmarshal([]byte(conditionsJSON), &specs); err != nil {
			return nil, fmt.Errorf("rule %s: failed to decode conditions: %w", r.ID, err)
		}
		for _, spec := range specs {
			r.Conditions = append(r.Conditions, spec.Condition())
		}
		if err := json.Unmarshal([]byte(actionsJSON), &r.Actions); err != nil {
			return nil, fmt.Errorf("rule %s: failed to decode actions: %w", r.ID, err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SaveRule inserts or updates a rule. New rules are appended after existing
// ones; updates keep their position.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.NotificationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	conditionsJSON, err := json.Marshal(rule.ConditionSpecs())
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_rules (
			id, position, name, description, category, enabled, conditions, actions,
			cooldown_minutes, max_occurrences, occurrence_count, created_at, updated_at
		) VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM notification_rules), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			category = excluded.category,
			enabled = excluded.enabled,
			conditions = excluded.conditions,
			actions = excluded.actions,
			cooldown_minutes = excluded.cooldown_minutes,
			max_occurrences = excluded.max_occurrences,
			occurrence_count = excluded.occurrence_count,
			updated_at = excluded.updated_at
	`, rule.ID, rule.Name, rule.Description, string(rule.Category), rule.Enabled,
		string(conditionsJSON), string(actionsJSON), rule.CooldownMinutes,
		rule.MaxOccurrences, rule.OccurrenceCount, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule removes a rule and its cooldown record.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM notification_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %q: %w", id, common.ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_cooldowns WHERE rule_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete rule cooldown: %w", err)
	}
	return tx.Commit()
}

// GetCooldown returns the firing record for a rule.
func (s *SQLiteStorage) GetCooldown(ctx context.Context, ruleID string) (model.CooldownState, bool, error) {
	if err := validateContext(ctx); err != nil {
		return model.CooldownState{}, false, err
	}
	if err := validateString(ruleID, "ruleID"); err != nil {
		return model.CooldownState{}, false, err
	}

	state := model.CooldownState{RuleID: ruleID}
	err := s.db.QueryRowContext(ctx,
		`SELECT last_fired, fire_count FROM rule_cooldowns WHERE rule_id = ?`, ruleID).
		Scan(&state.LastFired, &state.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return state, false, nil
	}
	if err != nil {
		return state, false, fmt.Errorf("failed to get cooldown: %w", err)
	}
	return state, true, nil
}

// RecordFiring upserts the cooldown row for a rule.
func (s *SQLiteStorage) RecordFiring(ctx context.Context, ruleID string, at time.Time) (model.CooldownState, error) {
	if err := validateContext(ctx); err != nil {
		return model.CooldownState{}, err
	}
	if err := validateString(ruleID, "ruleID"); err != nil {
		return model.CooldownState{}, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_cooldowns (rule_id, last_fired, fire_count) VALUES (?, ?, 1)
		ON CONFLICT(rule_id) DO UPDATE SET
			last_fired = excluded.last_fired,
			fire_count = rule_cooldowns.fire_count + 1
	`, ruleID, at)
	if err != nil {
		return model.CooldownState{}, fmt.Errorf("failed to record firing: %w", err)
	}

	state, _, err := s.GetCooldown(ctx, ruleID)
	return state, err
}

// ResetCooldown forgets that a rule ever fired.
func (s *SQLiteStorage) ResetCooldown(ctx context.Context, ruleID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(ruleID, "ruleID"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rule_cooldowns WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("failed to reset cooldown: %w", err)
	}
	return nil
}
