// Package service defines the interfaces shared by the notification pipeline
// and its persistence backends.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// TransactionFilter defines filtering options for transaction queries.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Category  string
	Limit     int
}

// CooldownStore persists per-rule firing records keyed by rule id.
type CooldownStore interface {
	// GetCooldown returns the firing record for a rule. found is false when
	// the rule has never fired.
	GetCooldown(ctx context.Context, ruleID string) (state model.CooldownState, found bool, err error)
	// RecordFiring stamps LastFired and increments Count.
	RecordFiring(ctx context.Context, ruleID string, at time.Time) (model.CooldownState, error)
	ResetCooldown(ctx context.Context, ruleID string) error
}

// RuleRepository persists notification rules in registration order.
type RuleRepository interface {
	ListRules(ctx context.Context) ([]model.NotificationRule, error)
	SaveRule(ctx context.Context, rule *model.NotificationRule) error
	DeleteRule(ctx context.Context, id string) error
}

// NotificationRepository persists the inbox, preferences and offline queue of
// a profile. Implementations replace the stored list on every save.
type NotificationRepository interface {
	LoadNotifications(ctx context.Context, profileID string) ([]model.Notification, error)
	SaveNotifications(ctx context.Context, profileID string, notifications []model.Notification) error
	// LoadPreferences returns common.ErrNotFound when the profile has none.
	LoadPreferences(ctx context.Context, profileID string) (*model.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error
	LoadQueue(ctx context.Context, profileID string) ([]model.QueuedNotification, error)
	SaveQueue(ctx context.Context, profileID string, queue []model.QueuedNotification) error
}

// SyncStateStore remembers when a profile last reconciled with the server.
type SyncStateStore interface {
	LastSync(ctx context.Context, profileID string) (time.Time, error)
	SetLastSync(ctx context.Context, profileID string, at time.Time) error
}

// StateStore is the key-value surface both persistence backends provide.
type StateStore interface {
	CooldownStore
	NotificationRepository
	SyncStateStore
	Close() error
}

// LedgerStore holds the budgets, goals and transactions rules are evaluated
// against.
type LedgerStore interface {
	SetBudget(ctx context.Context, budget model.Budget) error
	DeleteBudget(ctx context.Context, category string) error
	ListBudgets(ctx context.Context) ([]model.Budget, error)

	SaveGoal(ctx context.Context, goal model.Goal) error
	GetGoal(ctx context.Context, id string) (*model.Goal, error)
	ListGoals(ctx context.Context) ([]model.Goal, error)

	// SaveTransactions stores transactions, skipping duplicates by hash, and
	// returns how many were new.
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	SpentByCategory(ctx context.Context, start, end time.Time) (map[string]float64, error)
}

// Storage is the full SQLite-backed persistence layer.
type Storage interface {
	StateStore
	RuleRepository
	LedgerStore
	Migrate(ctx context.Context) error
}
