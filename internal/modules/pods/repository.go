// Package pods stores budget pods and applies funding writebacks.
package pods

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// Repository handles budget pod database operations.
// Database: pods.db (budget_pods table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new pod repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "pods").Logger(),
	}
}

// Init creates the budget_pods table if missing
func (r *Repository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS budget_pods (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			monthly_amount REAL NOT NULL DEFAULT 0,
			current_amount REAL NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create budget_pods table: %w", err)
	}
	return nil
}

// Create inserts a new pod, generating an id when none is supplied
func (r *Repository) Create(pod domain.BudgetPod) (domain.BudgetPod, error) {
	if pod.ID == "" {
		pod.ID = uuid.New().String()
	}
	_, err := r.db.Exec(`
		INSERT INTO budget_pods (id, name, monthly_amount, current_amount)
		VALUES (?, ?, ?, ?)
	`, pod.ID, pod.Name, pod.MonthlyAmount, pod.CurrentAmount)
	if err != nil {
		return domain.BudgetPod{}, fmt.Errorf("failed to insert budget pod: %w", err)
	}
	return pod, nil
}

// GetAll returns all pods ordered by name
func (r *Repository) GetAll() ([]domain.BudgetPod, error) {
	rows, err := r.db.Query("SELECT id, name, monthly_amount, current_amount FROM budget_pods ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query budget pods: %w", err)
	}
	defer rows.Close()

	result := []domain.BudgetPod{}
	for rows.Next() {
		var pod domain.BudgetPod
		if err := rows.Scan(&pod.ID, &pod.Name, &pod.MonthlyAmount, &pod.CurrentAmount); err != nil {
			return nil, fmt.Errorf("failed to scan budget pod: %w", err)
		}
		result = append(result, pod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget pods: %w", err)
	}
	return result, nil
}

// Get returns one pod by id
func (r *Repository) Get(id string) (domain.BudgetPod, error) {
	var pod domain.BudgetPod
	err := r.db.QueryRow("SELECT id, name, monthly_amount, current_amount FROM budget_pods WHERE id = ?", id).
		Scan(&pod.ID, &pod.Name, &pod.MonthlyAmount, &pod.CurrentAmount)
	if err != nil {
		return domain.BudgetPod{}, fmt.Errorf("failed to get budget pod %s: %w", id, err)
	}
	return pod, nil
}

// UpdateMonthlyAmount writes an approved funding adjustment back to the
// pod. This is how an applied suggestion or rule adjustment becomes the
// next analysis cycle's input.
func (r *Repository) UpdateMonthlyAmount(id string, monthlyAmount float64) error {
	result, err := r.db.Exec("UPDATE budget_pods SET monthly_amount = ? WHERE id = ?", monthlyAmount, id)
	if err != nil {
		return fmt.Errorf("failed to update budget pod %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check budget pod update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("budget pod %s not found", id)
	}
	r.log.Info().Str("pod_id", id).Float64("monthly_amount", monthlyAmount).Msg("Pod funding updated")
	return nil
}

// UpdateCurrentAmount sets the pod's running balance
func (r *Repository) UpdateCurrentAmount(id string, currentAmount float64) error {
	if _, err := r.db.Exec("UPDATE budget_pods SET current_amount = ? WHERE id = ?", currentAmount, id); err != nil {
		return fmt.Errorf("failed to update budget pod balance %s: %w", id, err)
	}
	return nil
}
