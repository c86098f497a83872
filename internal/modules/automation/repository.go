package automation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// Repository handles automation rule database operations.
// Database: pods.db (automation_rules table). Triggers, scope and
// actions are stored as JSON documents; last_triggered_at backs the
// evaluator's cooldown check.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new automation rule repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "automation").Logger(),
	}
}

// Init creates the automation_rules table if missing
func (r *Repository) Init() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS automation_rules (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			is_active         INTEGER NOT NULL DEFAULT 1,
			cooldown_hours    INTEGER NOT NULL DEFAULT 0,
			triggers          TEXT NOT NULL,
			scope             TEXT NOT NULL,
			actions           TEXT NOT NULL,
			last_triggered_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create automation_rules table: %w", err)
	}
	return nil
}

// Create inserts a new rule, generating an id when none is supplied
func (r *Repository) Create(rule domain.FundingAutomationRule) (domain.FundingAutomationRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	triggers, scope, actions, err := encodeRule(rule)
	if err != nil {
		return domain.FundingAutomationRule{}, err
	}
	_, err = r.db.Exec(`
		INSERT INTO automation_rules (id, name, is_active, cooldown_hours, triggers, scope, actions, last_triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.Name, rule.IsActive, rule.CooldownHours, triggers, scope, actions, rule.LastTriggeredAt)
	if err != nil {
		return domain.FundingAutomationRule{}, fmt.Errorf("failed to insert automation rule: %w", err)
	}
	return rule, nil
}

// GetAll returns all rules ordered by name
func (r *Repository) GetAll() ([]domain.FundingAutomationRule, error) {
	rows, err := r.db.Query(`
		SELECT id, name, is_active, cooldown_hours, triggers, scope, actions, last_triggered_at
		FROM automation_rules
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query automation rules: %w", err)
	}
	defer rows.Close()

	result := []domain.FundingAutomationRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating automation rules: %w", err)
	}
	return result, nil
}

// MarkTriggered records when a rule last fired, so the evaluator's
// cooldown window can suppress re-fires across recomputation sweeps.
func (r *Repository) MarkTriggered(id string, at time.Time) error {
	if _, err := r.db.Exec("UPDATE automation_rules SET last_triggered_at = ? WHERE id = ?", at.UTC(), id); err != nil {
		return fmt.Errorf("failed to mark rule %s triggered: %w", id, err)
	}
	return nil
}

// SetActive toggles a rule on or off
func (r *Repository) SetActive(id string, active bool) error {
	if _, err := r.db.Exec("UPDATE automation_rules SET is_active = ? WHERE id = ?", active, id); err != nil {
		return fmt.Errorf("failed to update automation rule %s: %w", id, err)
	}
	return nil
}

func encodeRule(rule domain.FundingAutomationRule) (string, string, string, error) {
	triggers, err := json.Marshal(rule.Triggers)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule triggers: %w", err)
	}
	scope, err := json.Marshal(rule.Scope)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule scope: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode rule actions: %w", err)
	}
	return string(triggers), string(scope), string(actions), nil
}

func scanRule(rows *sql.Rows) (domain.FundingAutomationRule, error) {
	var rule domain.FundingAutomationRule
	var triggers, scope, actions string
	var lastTriggered sql.NullTime
	if err := rows.Scan(&rule.ID, &rule.Name, &rule.IsActive, &rule.CooldownHours,
		&triggers, &scope, &actions, &lastTriggered); err != nil {
		return domain.FundingAutomationRule{}, fmt.Errorf("failed to scan automation rule: %w", err)
	}
	if err := json.Unmarshal([]byte(triggers), &rule.Triggers); err != nil {
		return domain.FundingAutomationRule{}, fmt.Errorf("failed to decode rule triggers: %w", err)
	}
	if err := json.Unmarshal([]byte(scope), &rule.Scope); err != nil {
		return domain.FundingAutomationRule{}, fmt.Errorf("failed to decode rule scope: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
		return domain.FundingAutomationRule{}, fmt.Errorf("failed to decode rule actions: %w", err)
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		rule.LastTriggeredAt = &t
	}
	return rule, nil
}
