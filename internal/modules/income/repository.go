package income

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// Repository handles income source database operations.
// Database: pods.db (income_sources table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new income source repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "income").Logger(),
	}
}

// Init creates the income_sources table if missing
func (r *Repository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS income_sources (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			net_amount REAL NOT NULL DEFAULT 0,
			is_active  INTEGER NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create income_sources table: %w", err)
	}
	return nil
}

// Create inserts a new income source, generating an id when none is supplied
func (r *Repository) Create(source domain.IncomeSource) (domain.IncomeSource, error) {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	_, err := r.db.Exec(`
		INSERT INTO income_sources (id, name, net_amount, is_active)
		VALUES (?, ?, ?, ?)
	`, source.ID, source.Name, source.NetAmount, source.IsActive)
	if err != nil {
		return domain.IncomeSource{}, fmt.Errorf("failed to insert income source: %w", err)
	}
	return source, nil
}

// GetAll returns all income sources ordered by name
func (r *Repository) GetAll() ([]domain.IncomeSource, error) {
	rows, err := r.db.Query("SELECT id, name, net_amount, is_active FROM income_sources ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query income sources: %w", err)
	}
	defer rows.Close()

	result := []domain.IncomeSource{}
	for rows.Next() {
		var source domain.IncomeSource
		if err := rows.Scan(&source.ID, &source.Name, &source.NetAmount, &source.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan income source: %w", err)
		}
		result = append(result, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating income sources: %w", err)
	}
	return result, nil
}

// SetActive toggles whether a source is still expected to pay out
func (r *Repository) SetActive(id string, active bool) error {
	if _, err := r.db.Exec("UPDATE income_sources SET is_active = ? WHERE id = ?", active, id); err != nil {
		return fmt.Errorf("failed to update income source %s: %w", id, err)
	}
	return nil
}
