// Package storage provides the persistence backends for the notification pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidBudget      = errors.New("invalid budget")
	ErrInvalidGoal        = errors.New("invalid goal")
	ErrInvalidRule        = errors.New("invalid rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransactions validates a slice of transactions.
func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	switch txn.Type {
	case model.TransactionIncome, model.TransactionExpense:
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidTransaction, txn.Type)
	}
	if txn.Amount < 0 {
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalidTransaction)
	}
	return nil
}

func validateBudget(b model.Budget) error {
	if strings.TrimSpace(b.Category) == "" {
		return fmt.Errorf("%w: missing category", ErrInvalidBudget)
	}
	if b.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidBudget)
	}
	return nil
}

func validateGoal(g model.Goal) error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidGoal)
	}
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidGoal)
	}
	if g.Target <= 0 {
		return fmt.Errorf("%w: target must be positive", ErrInvalidGoal)
	}
	return nil
}

func validateRule(r *model.NotificationRule) error {
	if r == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRule)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("%w: cooldown cannot be negative", ErrInvalidRule)
	}
	return nil
}
