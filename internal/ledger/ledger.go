// Package ledger reads and writes budgets, goals and transactions and builds
// the context snapshot the rule engine evaluates.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/ecofinance-notify/internal/clock"
	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// SummaryWindow is how far back the weekly totals reach.
const SummaryWindow = 7 * 24 * time.Hour

// Service wraps a LedgerStore with the operations the CLI needs.
type Service struct {
	store   service.LedgerStore
	clock   clock.Clock
	profile *model.UserProfile
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithProfile attaches the user profile to every snapshot.
func WithProfile(p model.UserProfile) Option {
	return func(s *Service) { s.profile = &p }
}

// New creates a ledger service.
func New(store service.LedgerStore, opts ...Option) *Service {
	s := &Service{store: store, clock: clock.Real{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot builds the rule context as of now: budgets with this month's
// spending, goals, and the last week of transactions with its totals.
func (s *Service) Snapshot(ctx context.Context) (model.RuleContext, error) {
	now := s.clock.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	until := now.Add(time.Nanosecond)

	spent, err := s.store.SpentByCategory(ctx, monthStart, until)
	if err != nil {
		return model.RuleContext{}, fmt.Errorf("failed to sum spending: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx)
	if err != nil {
		return model.RuleContext{}, fmt.Errorf("failed to list budgets: %w", err)
	}
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return model.RuleContext{}, fmt.Errorf("failed to list goals: %w", err)
	}

	weekStart := now.Add(-SummaryWindow)
	recent, err := s.store.GetTransactions(ctx, service.TransactionFilter{StartDate: &weekStart, EndDate: &until})
	if err != nil {
		return model.RuleContext{}, fmt.Errorf("failed to load recent transactions: %w", err)
	}

	statuses := make([]model.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, model.BudgetStatus{Category: b.Category, Spent: spent[b.Category], Limit: b.Limit})
	}

	var totalSpent, totalIncome float64
	for _, t := range recent {
		switch t.Type {
		case model.TransactionExpense:
			totalSpent += t.Amount
		case model.TransactionIncome:
			totalIncome += t.Amount
		}
	}
	var monthSpent float64
	for _, v := range spent {
		monthSpent += v
	}

	return model.RuleContext{
		Date:         now,
		UserProfile:  s.profile,
		Budgets:      statuses,
		Goals:        goals,
		Transactions: recent,
		Vars: map[string]any{
			"totalSpent":       totalSpent,
			"totalIncome":      totalIncome,
			"monthSpent":       monthSpent,
			"transactionCount": len(recent),
		},
	}, nil
}

// AddTransaction records a transaction. It reports false when an identical
// transaction was already stored.
func (s *Service) AddTransaction(ctx context.Context, t model.Transaction) (model.Transaction, bool, error) {
	if t.Amount <= 0 {
		return t, false, common.NewUserError("amount must be positive", nil)
	}
	if t.Type == "" {
		t.Type = model.TransactionExpense
	}
	if t.Date.IsZero() {
		t.Date = s.clock.Now()
	}
	t.Description = strings.TrimSpace(t.Description)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Hash = t.GenerateHash()

	added, err := s.store.SaveTransactions(ctx, []model.Transaction{t})
	if err != nil {
		return t, false, fmt.Errorf("failed to save transaction: %w", err)
	}
	slog.Info("Recorded transaction",
		"category", t.Category,
		"amount", t.Amount,
		"type", t.Type,
		"new", added == 1)
	return t, added == 1, nil
}

// ImportTransactions stores a batch and returns how many were new.
func (s *Service) ImportTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	for i := range txns {
		if txns[i].ID == "" {
			txns[i].ID = uuid.NewString()
		}
		if txns[i].Hash == "" {
			txns[i].Hash = txns[i].GenerateHash()
		}
	}
	added, err := s.store.SaveTransactions(ctx, txns)
	if err != nil {
		return 0, fmt.Errorf("failed to import transactions: %w", err)
	}
	return added, nil
}

// SetBudget creates or replaces the monthly limit of a category.
func (s *Service) SetBudget(ctx context.Context, category string, limit float64) error {
	category = strings.TrimSpace(category)
	if category == "" || limit <= 0 {
		return common.NewUserError("budget needs a category and a positive limit", nil)
	}
	return s.store.SetBudget(ctx, model.Budget{Category: category, Limit: limit})
}

// Budgets returns every budget with this month's spending.
func (s *Service) Budgets(ctx context.Context) ([]model.BudgetStatus, error) {
	rc, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return rc.Budgets, nil
}

// SetGoal creates or updates a goal.
func (s *Service) SetGoal(ctx context.Context, goal model.Goal) (model.Goal, error) {
	if goal.Name == "" || goal.Target <= 0 {
		return goal, common.NewUserError("goal needs a name and a positive target", nil)
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	if err := s.store.SaveGoal(ctx, goal); err != nil {
		return goal, fmt.Errorf("failed to save goal: %w", err)
	}
	return goal, nil
}

// Contribute adds amount to a goal's progress.
func (s *Service) Contribute(ctx context.Context, goalID string, amount float64) (model.Goal, error) {
	goal, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return model.Goal{}, fmt.Errorf("failed to load goal %s: %w", goalID, err)
	}
	goal.Current += amount
	if err := s.store.SaveGoal(ctx, *goal); err != nil {
		return model.Goal{}, fmt.Errorf("failed to save goal: %w", err)
	}
	return *goal, nil
}

// Goals returns every goal.
func (s *Service) Goals(ctx context.Context) ([]model.Goal, error) {
	return s.store.ListGoals(ctx)
}
