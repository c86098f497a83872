// Package ledger provides read access to the immutable transaction history.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// Repository handles transaction database operations.
// Database: ledger.db (transactions table). The ledger is append-only;
// the engine never updates or deletes historical facts.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Init creates the transactions table if missing
func (r *Repository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id                  TEXT PRIMARY KEY,
			date                TIMESTAMP NOT NULL,
			amount              REAL NOT NULL,
			type                TEXT NOT NULL,
			category            TEXT NOT NULL DEFAULT '',
			budget_pod_id       TEXT NOT NULL DEFAULT '',
			external_account_id TEXT NOT NULL DEFAULT '',
			description         TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);
		CREATE INDEX IF NOT EXISTS idx_transactions_pod ON transactions(budget_pod_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transactions table: %w", err)
	}
	return nil
}

// Insert appends one transaction to the ledger
func (r *Repository) Insert(tx domain.Transaction) error {
	_, err := r.db.Exec(`
		INSERT INTO transactions (id, date, amount, type, category, budget_pod_id, external_account_id, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.Date.UTC(), tx.Amount, string(tx.Type), tx.Category, tx.BudgetPodID, tx.ExternalAccountID, tx.Description)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetSince returns all transactions dated at or after cutoff, ordered by date
func (r *Repository) GetSince(cutoff time.Time) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, date, amount, type, category, budget_pod_id, external_account_id, description
		FROM transactions
		WHERE date >= ?
		ORDER BY date
	`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// GetForPod returns all transactions explicitly linked to a pod, ordered by date
func (r *Repository) GetForPod(podID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, date, amount, type, category, budget_pod_id, external_account_id, description
		FROM transactions
		WHERE budget_pod_id = ?
		ORDER BY date
	`, podID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pod transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// GetAll returns the full ledger, ordered by date
func (r *Repository) GetAll() ([]domain.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, date, amount, type, category, budget_pod_id, external_account_id, description
		FROM transactions
		ORDER BY date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	result := []domain.Transaction{}
	for rows.Next() {
		var tx domain.Transaction
		var txType string
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.Amount, &txType, &tx.Category,
			&tx.BudgetPodID, &tx.ExternalAccountID, &tx.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Type = domain.TransactionType(txType)
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return result, nil
}
