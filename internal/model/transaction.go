package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// TransactionType distinguishes money flowing in from money flowing out.
type TransactionType string

// Transaction types.
const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction represents a single entry of the household ledger.
type Transaction struct {
	Date        time.Time       `json:"date"`
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Hash        string          `json:"hash"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount,
		strings.ToLower(strings.TrimSpace(t.Description)),
		t.Category,
		t.Type)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// Budget is a spending limit for one category.
type Budget struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
}

// BudgetStatus is a budget paired with the amount already spent against it.
type BudgetStatus struct {
	Category string  `json:"category"`
	Spent    float64 `json:"spent"`
	Limit    float64 `json:"limit"`
}

// Percent returns spent as a percentage of the limit. A non-positive limit
// yields 0 and ok=false.
func (b BudgetStatus) Percent() (float64, bool) {
	if b.Limit <= 0 {
		return 0, false
	}
	return b.Spent / b.Limit * 100, true
}

// Goal is a savings target.
type Goal struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
}

// Percent returns progress toward the target as a percentage.
func (g Goal) Percent() (float64, bool) {
	if g.Target <= 0 {
		return 0, false
	}
	return g.Current / g.Target * 100, true
}
