// Package rules holds the ordered registry of notification rules.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// Store is the in-memory rule registry. Rules keep registration order.
// When a repository is configured every mutation is written through to it.
type Store struct {
	repo  service.RuleRepository
	clock clock.Clock
	rules []model.NotificationRule
	mu    sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithRepository persists rules through repo.
func WithRepository(repo service.RuleRepository) Option {
	return func(s *Store) { s.repo = repo }
}

// WithClock overrides the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// NewStore creates an empty rule store.
func NewStore(opts ...Option) *Store {
	s := &Store{clock: clock.Real{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDefaultStore creates a store holding the built-in rules, without
// persistence.
func NewDefaultStore(opts ...Option) *Store {
	s := NewStore(opts...)
	s.rules = DefaultRules(s.clock.Now())
	return s
}

// Load replaces the in-memory rules with the persisted ones. An empty
// repository is seeded with the default rules.
func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return fmt.Errorf("%w: rule repository", common.ErrMissingConfig)
	}

	persisted, err := s.repo.ListRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	if len(persisted) == 0 {
		persisted = DefaultRules(s.clock.Now())
		for i := range persisted {
			if err := s.repo.SaveRule(ctx, &persisted[i]); err != nil {
				return fmt.Errorf("failed to seed default rule %s: %w", persisted[i].ID, err)
			}
		}
		slog.Info("Seeded default notification rules", "count", len(persisted))
	}

	s.mu.Lock()
	s.rules = persisted
	s.mu.Unlock()
	return nil
}

// List returns a copy of every rule in registration order.
func (s *Store) List() []model.NotificationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.NotificationRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Get returns the rule with the given id.
func (s *Store) Get(id string) (model.NotificationRule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.rules[i], true
	}
	return model.NotificationRule{}, false
}

// Add appends a rule. Ids must be unique.
func (s *Store) Add(ctx context.Context, rule model.NotificationRule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: missing id", common.ErrInvalidRule)
	}
	if rule.CooldownMinutes < 0 {
		return fmt.Errorf("%w: %s: negative cooldown", common.ErrInvalidRule, rule.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(rule.ID) >= 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, common.ErrDuplicateEntry)
	}
	now := s.clock.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	if err := s.persist(ctx, &rule); err != nil {
		return err
	}
	s.rules = append(s.rules, rule)
	return nil
}

// Remove deletes a rule.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	if s.repo != nil {
		if err := s.repo.DeleteRule(ctx, id); err != nil && !errors.Is(err, common.ErrNotFound) {
			return fmt.Errorf("failed to delete rule %s: %w", id, err)
		}
	}
	s.rules = append(s.rules[:i], s.rules[i+1:]...)
	return nil
}

// SetEnabled toggles a rule. Only Enabled and UpdatedAt change.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	return s.update(ctx, id, func(r *model.NotificationRule, now time.Time) {
		r.Enabled = enabled
		r.UpdatedAt = now
	})
}

// RecordOccurrence increments the occurrence counter of a rule after it fired.
func (s *Store) RecordOccurrence(ctx context.Context, id string) (model.NotificationRule, error) {
	var updated model.NotificationRule
	err := s.update(ctx, id, func(r *model.NotificationRule, _ time.Time) {
		r.OccurrenceCount++
		updated = *r
	})
	return updated, err
}

func (s *Store) update(ctx context.Context, id string, mutate func(*model.NotificationRule, time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("rule %s: %w", id, common.ErrNotFound)
	}
	rule := s.rules[i]
	mutate(&rule, s.clock.Now())
	s.rules[i] = rule

	// The in-memory registry stays authoritative if the write fails.
	if err := s.persist(ctx, &rule); err != nil {
		return err
	}
	return nil
}

func (s *Store) persist(ctx context.Context, rule *model.NotificationRule) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to persist rule %s: %w", rule.ID, err)
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return i
		}
	}
	return -1
}
