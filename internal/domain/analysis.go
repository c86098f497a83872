package domain

import "time"

// RiskLevel classifies how exposed a pod is to over-spending
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PodFundingAnalysis is the derived statistical summary and funding
// recommendation for one pod. Ephemeral: recomputed on demand, never
// mutated in place. Callers decide whether to cache.
type PodFundingAnalysis struct {
	LastAnalyzed        time.Time     `json:"last_analyzed"`
	PodID               string        `json:"pod_id"`
	SpendingTrend       SpendingTrend `json:"spending_trend"`
	RiskLevel           RiskLevel     `json:"risk_level"`
	Reasoning           []string      `json:"reasoning"`
	CurrentUtilization  float64       `json:"current_utilization"`
	AverageMonthlySpend float64       `json:"average_monthly_spend"`
	RecommendedFunding  float64       `json:"recommended_funding"`
	Confidence          int           `json:"confidence"`
	Consistency         float64       `json:"consistency"`
	Variance            float64       `json:"variance"`
}

// SuggestionType is the direction of a funding suggestion
type SuggestionType string

const (
	SuggestionIncrease SuggestionType = "increase"
	SuggestionDecrease SuggestionType = "decrease"
	SuggestionMaintain SuggestionType = "maintain"
)

// SuggestionPriority ranks suggestions for presentation
type SuggestionPriority string

const (
	PriorityCritical SuggestionPriority = "critical"
	PriorityHigh     SuggestionPriority = "high"
	PriorityMedium   SuggestionPriority = "medium"
	PriorityLow      SuggestionPriority = "low"
)

// PriorityRank returns a sortable weight for a priority (higher = more urgent)
func PriorityRank(p SuggestionPriority) int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// SuggestionStatus tracks the host-owned lifecycle of a suggestion
type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
	StatusApplied  SuggestionStatus = "applied"
)

// ReasonCode identifies why a suggestion was generated or adjusted
type ReasonCode string

const (
	ReasonSpendingPattern ReasonCode = "spending_pattern"
	ReasonIncomeChange    ReasonCode = "income_change"
	ReasonAutomationRule  ReasonCode = "automation_rule"
)

// ImpactAnalysis quantifies the expected effect of applying a suggestion
type ImpactAnalysis struct {
	MonthlySavings          float64 `json:"monthly_savings"`
	RiskReduction           float64 `json:"risk_reduction"`
	UtilizationOptimization float64 `json:"utilization_optimization"`
}

// ImplementationPolicy controls how a suggestion may be acted upon
type ImplementationPolicy struct {
	RollbackAfter  *time.Duration `json:"rollback_after,omitempty"`
	AutoApply      bool           `json:"auto_apply"`
	RequiresReview bool           `json:"requires_review"`
}

// FundingSuggestion is an actionable, ranked recommendation to change a
// pod's funding level. Status transitions are owned by the host app.
type FundingSuggestion struct {
	CreatedAt       time.Time            `json:"created_at"`
	ID              string               `json:"id"`
	PodID           string               `json:"pod_id"`
	Type            SuggestionType       `json:"suggestion_type"`
	Priority        SuggestionPriority   `json:"priority"`
	Status          SuggestionStatus     `json:"status"`
	ReasonCode      ReasonCode           `json:"reason_code"`
	Reasoning       []string             `json:"reasoning"`
	Impact          ImpactAnalysis       `json:"impact_analysis"`
	Implementation  ImplementationPolicy `json:"implementation"`
	CurrentAmount   float64              `json:"current_amount"`
	SuggestedAmount float64              `json:"suggested_amount"`
	MonthlyImpact   float64              `json:"monthly_impact"`
}

// AdjustmentType selects the algorithm a rule uses to compute new amounts
type AdjustmentType string

const (
	AdjustPercentage  AdjustmentType = "percentage"
	AdjustFixedAmount AdjustmentType = "fixed_amount"
	AdjustSmart       AdjustmentType = "smart_algorithm"
)

// RuleTriggers holds the conditions under which a rule fires.
// A zero threshold means the trigger is not configured.
type RuleTriggers struct {
	UtilizationThreshold float64 `json:"utilization_threshold"`
	IncomeChange         float64 `json:"income_change"`
	SpendingVariance     float64 `json:"spending_variance"`
}

// RuleScope restricts which pods a rule may touch and caps the total
// adjustment per invocation.
type RuleScope struct {
	IncludePods        []string `json:"include_pods"`
	ExcludePods        []string `json:"exclude_pods"`
	MaxTotalAdjustment float64  `json:"max_total_adjustment"`
}

// RuleActions configures how a fired rule computes adjustments
type RuleActions struct {
	AdjustmentType     AdjustmentType `json:"adjustment_type"`
	MaxAdjustment      float64        `json:"max_adjustment"`
	AutoApprovalLimit  float64        `json:"auto_approval_limit"`
	MinReviewThreshold float64        `json:"min_review_threshold"`
}

// FundingAutomationRule is a configured policy that can autonomously
// trigger and apply funding adjustments within caps. LastTriggeredAt is
// persisted so a rule cannot re-fire inside its cooldown window.
type FundingAutomationRule struct {
	LastTriggeredAt *time.Time   `json:"last_triggered_at,omitempty"`
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Triggers        RuleTriggers `json:"triggers"`
	Scope           RuleScope    `json:"scope"`
	Actions         RuleActions  `json:"actions"`
	CooldownHours   int          `json:"cooldown_hours"`
	IsActive        bool         `json:"is_active"`
}

// PodAdjustment is one concrete allocation change computed by a rule
type PodAdjustment struct {
	PodID         string  `json:"pod_id"`
	Reasoning     string  `json:"reasoning"`
	CurrentAmount float64 `json:"current_amount"`
	NewAmount     float64 `json:"new_amount"`
}

// RuleApplication is the result of applying one triggered rule
type RuleApplication struct {
	RuleID          string          `json:"rule_id"`
	Adjustments     []PodAdjustment `json:"adjustments"`
	TotalAdjustment float64         `json:"total_adjustment"`
	RequiresReview  bool            `json:"requires_review"`
}

// UtilizationTrend summarizes portfolio-wide utilization direction
type UtilizationTrend string

const (
	UtilizationDeclining UtilizationTrend = "declining"
	UtilizationImproving UtilizationTrend = "improving"
	UtilizationStable    UtilizationTrend = "stable"
)

// PodFundingDashboardMetrics is a derived portfolio-level snapshot,
// recomputed per call.
type PodFundingDashboardMetrics struct {
	UtilizationTrend    UtilizationTrend `json:"utilization_trend"`
	TotalBudget         float64          `json:"total_budget"`
	TotalUtilized       float64          `json:"total_utilized"`
	AverageUtilization  float64          `json:"average_utilization"`
	PendingSuggestions  int              `json:"pending_suggestions"`
	PotentialSavings    float64          `json:"potential_savings"`
	RiskReduction       float64          `json:"risk_reduction"`
	ActiveRules         int              `json:"active_rules"`
	SpendingEfficiency  float64          `json:"spending_efficiency"`
	BudgetOptimization  float64          `json:"budget_optimization"`
	PodCount            int              `json:"pod_count"`
	HighUtilizationPods int              `json:"high_utilization_pods"`
}
