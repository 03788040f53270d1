package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/service"
)

// SaveTransactions saves multiple transactions, ignoring duplicates by hash.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(transactions); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions (id, hash, date, description, amount, type, category)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, txn := range transactions {
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		res, execErr := stmt.ExecContext(ctx,
			txn.ID,
			txn.Hash,
			txn.Date.UTC(),
			txn.Description,
			txn.Amount,
			string(txn.Type),
			txn.Category,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to save transaction %s: %w", txn.ID, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// GetTransactions retrieves transactions matching the filter, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "date < ?")
		args = append(args, filter.EndDate.UTC())
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}

	query := `SELECT id, hash, date, description, amount, type, category FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var (
			txn     model.Transaction
			txnType string
		)
		if err := rows.Scan(&txn.ID, &txn.Hash, &txn.Date, &txn.Description, &txn.Amount, &txnType, &txn.Category); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = model.TransactionType(txnType)
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// SpentByCategory sums expenses per category in [start, end).
func (s *SQLiteStorage) SpentByCategory(ctx context.Context, start, end time.Time) (map[string]float64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, SUM(amount) FROM transactions
		WHERE type = 'expense' AND date >= ? AND date < ?
		GROUP BY category
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to sum expenses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	spent := make(map[string]float64)
	for rows.Next() {
		var (
			category string
			total    float64
		)
		if err := rows.Scan(&category, &total); err != nil {
			return nil, fmt.Errorf("failed to scan expense total: %w", err)
		}
		spent[category] = total
	}
	return spent, rows.Err()
}

// SetBudget creates or replaces the budget for a category.
func (s *SQLiteStorage) SetBudget(ctx context.Context, budget model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudget(budget); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (category, amount_limit, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(category) DO UPDATE SET amount_limit = excluded.amount_limit, updated_at = CURRENT_TIMESTAMP
	`, budget.Category, budget.Limit)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// DeleteBudget removes the budget for a category.
func (s *SQLiteStorage) DeleteBudget(ctx context.Context, category string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(category, "category"); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM budgets WHERE category = ?`, category)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %q: %w", category, common.ErrNotFound)
	}
	return nil
}

// ListBudgets returns every budget ordered by category.
func (s *SQLiteStorage) ListBudgets(ctx context.Context) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT category, amount_limit FROM budgets ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		var b model.Budget
		if err := rows.Scan(&b.Category, &b.Limit); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// SaveGoal creates or replaces a goal.
func (s *SQLiteStorage) SaveGoal(ctx context.Context, goal model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, name, target, current, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			target = excluded.target,
			current = excluded.current,
			updated_at = CURRENT_TIMESTAMP
	`, goal.ID, goal.Name, goal.Target, goal.Current)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by id.
func (s *SQLiteStorage) GetGoal(ctx context.Context, id string) (*model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	var g model.Goal
	err := s.db.QueryRowContext(ctx, `SELECT id, name, target, current FROM goals WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.Target, &g.Current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %q: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &g, nil
}

// ListGoals returns every goal ordered by name.
func (s *SQLiteStorage) ListGoals(ctx context.Context) ([]model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, target, current FROM goals ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.Target, &g.Current); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}
