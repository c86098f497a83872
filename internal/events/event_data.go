// Package events defines typed engine events and an in-process bus.
package events

import "time"

// EventType identifies a class of engine event
type EventType string

const (
	TransactionsChanged EventType = "transactions_changed"
	IncomeChanged       EventType = "income_changed"
	PodChanged          EventType = "pod_changed"
	AnalysisRefreshed   EventType = "analysis_refreshed"
	SuggestionCreated   EventType = "suggestion_created"
	RuleTriggered       EventType = "rule_triggered"
)

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one published occurrence with its payload
type Event struct {
	OccurredAt time.Time `json:"occurred_at"`
	Type       EventType `json:"type"`
	Data       EventData `json:"data"`
}

// TransactionsChangedData contains data for TransactionsChanged events
type TransactionsChangedData struct {
	PodIDs []string `json:"pod_ids"`
	Count  int      `json:"count"`
}

// EventType returns the event type for TransactionsChangedData
func (d *TransactionsChangedData) EventType() EventType {
	return TransactionsChanged
}

// IncomeChangedData contains data for IncomeChanged events
type IncomeChangedData struct {
	SourceID         string  `json:"source_id"`
	ChangePercentage float64 `json:"change_percentage"`
}

// EventType returns the event type for IncomeChangedData
func (d *IncomeChangedData) EventType() EventType {
	return IncomeChanged
}

// PodChangedData contains data for PodChanged events
type PodChangedData struct {
	PodIDs []string `json:"pod_ids"`
}

// EventType returns the event type for PodChangedData
func (d *PodChangedData) EventType() EventType {
	return PodChanged
}

// AnalysisRefreshedData contains data for AnalysisRefreshed events
type AnalysisRefreshedData struct {
	PodsAnalyzed     int `json:"pods_analyzed"`
	SuggestionsFound int `json:"suggestions_found"`
	RulesTriggered   int `json:"rules_triggered"`
}

// EventType returns the event type for AnalysisRefreshedData
func (d *AnalysisRefreshedData) EventType() EventType {
	return AnalysisRefreshed
}

// SuggestionCreatedData contains data for SuggestionCreated events
type SuggestionCreatedData struct {
	SuggestionID string  `json:"suggestion_id"`
	PodID        string  `json:"pod_id"`
	Type         string  `json:"suggestion_type"`
	Priority     string  `json:"priority"`
	Impact       float64 `json:"monthly_impact"`
}

// EventType returns the event type for SuggestionCreatedData
func (d *SuggestionCreatedData) EventType() EventType {
	return SuggestionCreated
}

// RuleTriggeredData contains data for RuleTriggered events
type RuleTriggeredData struct {
	RuleID         string `json:"rule_id"`
	Adjustments    int    `json:"adjustments"`
	RequiresReview bool   `json:"requires_review"`
}

// EventType returns the event type for RuleTriggeredData
func (d *RuleTriggeredData) EventType() EventType {
	return RuleTriggered
}
