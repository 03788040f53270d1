// Package testutil provides shared helpers for tests that need a database or
// a populated ledger.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/ecofinance-notify/internal/model"
	"github.com/Veraticus/ecofinance-notify/internal/storage"
)

// TestDB wraps an in-memory SQLite storage with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database that is closed when the
// test finishes.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &TestDB{Storage: store, t: t}
}

// WithBudget seeds a budget.
func (db *TestDB) WithBudget(category string, limit float64) *TestDB {
	db.t.Helper()
	if err := db.Storage.SetBudget(context.Background(), model.Budget{Category: category, Limit: limit}); err != nil {
		db.t.Fatalf("failed to seed budget %q: %v", category, err)
	}
	return db
}

// WithGoal seeds a goal.
func (db *TestDB) WithGoal(goal model.Goal) *TestDB {
	db.t.Helper()
	if err := db.Storage.SaveGoal(context.Background(), goal); err != nil {
		db.t.Fatalf("failed to seed goal %q: %v", goal.ID, err)
	}
	return db
}

// WithTransactions seeds ledger transactions.
func (db *TestDB) WithTransactions(txns ...model.Transaction) *TestDB {
	db.t.Helper()
	if _, err := db.Storage.SaveTransactions(context.Background(), txns); err != nil {
		db.t.Fatalf("failed to seed transactions: %v", err)
	}
	return db
}
