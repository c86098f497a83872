// Package domain provides core domain models and types.
package domain

import "time"

// TransactionType classifies a ledger transaction
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// Transaction represents an immutable historical ledger fact.
// Owned by the persistence layer; the engine only reads these.
type Transaction struct {
	Date              time.Time       `json:"date"`
	ID                string          `json:"id"`
	Type              TransactionType `json:"type"`
	Category          string          `json:"category"`
	BudgetPodID       string          `json:"budget_pod_id,omitempty"`
	ExternalAccountID string          `json:"external_account_id,omitempty"`
	Description       string          `json:"description,omitempty"`
	Amount            float64         `json:"amount"`
}

// BudgetPod is a named spending category with a target monthly allocation
// and a current balance. Mutated by the user or by approved automation
// adjustments; the engine itself only reads pods.
type BudgetPod struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MonthlyAmount float64 `json:"monthly_amount"`
	CurrentAmount float64 `json:"current_amount"`
}

// IncomeSource represents a configured income stream
type IncomeSource struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	NetAmount float64 `json:"net_amount"`
	IsActive  bool    `json:"is_active"`
}

// SpendingTrend is the direction of month-over-month spending
type SpendingTrend string

const (
	TrendIncreasing SpendingTrend = "increasing"
	TrendDecreasing SpendingTrend = "decreasing"
	TrendStable     SpendingTrend = "stable"
)

// SpendingPattern holds per-pod monthly spending statistics over a window
type SpendingPattern struct {
	PodID            string          `json:"pod_id"`
	MonthlyAverage   float64         `json:"monthly_average"`
	Variance         float64         `json:"variance"`
	Trend            SpendingTrend   `json:"trend"`
	Consistency      float64         `json:"consistency"`
	Outliers         []float64       `json:"outliers"`
	Seasonality      []MonthlyFactor `json:"seasonality"`
	TransactionCount int             `json:"transaction_count"`
	MonthlyTotals    []float64       `json:"monthly_totals"`
}

// MonthlyFactor is the average spend for one calendar month (1=January)
type MonthlyFactor struct {
	Month   time.Month `json:"month"`
	Average float64    `json:"average"`
}

// IncomePattern holds per-source income stability statistics over a window
type IncomePattern struct {
	SourceID    string  `json:"source_id"`
	Stability   float64 `json:"stability"`
	GrowthRate  float64 `json:"growth_rate"`
	Reliability float64 `json:"reliability"`
	Observed    bool    `json:"observed"`
}
