package suggestions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// Repository stores generated suggestions and their host-owned status
// lifecycle (pending -> approved/rejected/applied).
// Database: pods.db (funding_suggestions table).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new suggestion repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "suggestions").Logger(),
	}
}

// Init creates the funding_suggestions table if missing
func (r *Repository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS funding_suggestions (
			id         TEXT PRIMARY KEY,
			pod_id     TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL,
			payload    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_suggestions_status ON funding_suggestions(status);
	`)
	if err != nil {
		return fmt.Errorf("failed to create funding_suggestions table: %w", err)
	}
	return nil
}

// Save upserts a batch of suggestions
func (r *Repository) Save(list []domain.FundingSuggestion) error {
	for _, suggestion := range list {
		payload, err := json.Marshal(suggestion)
		if err != nil {
			return fmt.Errorf("failed to encode suggestion: %w", err)
		}
		_, err = r.db.Exec(`
			INSERT INTO funding_suggestions (id, pod_id, status, created_at, payload)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET status = excluded.status, payload = excluded.payload
		`, suggestion.ID, suggestion.PodID, string(suggestion.Status), suggestion.CreatedAt.UTC(), string(payload))
		if err != nil {
			return fmt.Errorf("failed to save suggestion %s: %w", suggestion.ID, err)
		}
	}
	return nil
}

// GetPending returns all pending suggestions, newest first
func (r *Repository) GetPending() ([]domain.FundingSuggestion, error) {
	return r.query("SELECT payload FROM funding_suggestions WHERE status = 'pending' ORDER BY created_at DESC")
}

// GetAll returns every stored suggestion, newest first
func (r *Repository) GetAll() ([]domain.FundingSuggestion, error) {
	return r.query("SELECT payload FROM funding_suggestions ORDER BY created_at DESC")
}

// UpdateStatus transitions one suggestion's lifecycle state
func (r *Repository) UpdateStatus(id string, status domain.SuggestionStatus) error {
	var payload string
	err := r.db.QueryRow("SELECT payload FROM funding_suggestions WHERE id = ?", id).Scan(&payload)
	if err != nil {
		return fmt.Errorf("failed to load suggestion %s: %w", id, err)
	}
	var suggestion domain.FundingSuggestion
	if err := json.Unmarshal([]byte(payload), &suggestion); err != nil {
		return fmt.Errorf("failed to decode suggestion %s: %w", id, err)
	}
	suggestion.Status = status
	updated, err := json.Marshal(suggestion)
	if err != nil {
		return fmt.Errorf("failed to encode suggestion %s: %w", id, err)
	}
	if _, err := r.db.Exec("UPDATE funding_suggestions SET status = ?, payload = ? WHERE id = ?",
		string(status), string(updated), id); err != nil {
		return fmt.Errorf("failed to update suggestion %s: %w", id, err)
	}
	r.log.Info().Str("suggestion_id", id).Str("status", string(status)).Msg("Suggestion status updated")
	return nil
}

// DeleteOlderThan garbage-collects resolved suggestions
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(
		"DELETE FROM funding_suggestions WHERE status != 'pending' AND created_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old suggestions: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted suggestions: %w", err)
	}
	return deleted, nil
}

func (r *Repository) query(q string) ([]domain.FundingSuggestion, error) {
	rows, err := r.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	result := []domain.FundingSuggestion{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		var suggestion domain.FundingSuggestion
		if err := json.Unmarshal([]byte(payload), &suggestion); err != nil {
			return nil, fmt.Errorf("failed to decode suggestion: %w", err)
		}
		result = append(result, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return result, nil
}
