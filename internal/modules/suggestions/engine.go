// Package suggestions turns funding analyses into ranked, policy-gated
// funding suggestions.
package suggestions

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

const (
	// DeadBandPercent is the relative difference below which no
	// suggestion is emitted
	DeadBandPercent = 5.0

	// autoApplyLimit is the maximum absolute difference eligible for
	// automatic application
	autoApplyLimit = 50.0
	// reviewLimit is the absolute difference above which a human review
	// is always required
	reviewLimit = 200.0

	criticalUtilization = 85.0
	lowUtilization      = 30.0
	targetUtilization   = 75.0

	highRiskReduction = 25.0

	rollbackWindow = 30 * 24 * time.Hour
)

// Engine compares current against recommended funding and emits ranked
// suggestions. Stateless; safe for concurrent use.
type Engine struct {
	similarity Similarity
	log        zerolog.Logger
}

// NewEngine creates a suggestion engine. A nil similarity function
// disables duplicate suppression.
func NewEngine(similarity Similarity, log zerolog.Logger) *Engine {
	return &Engine{
		similarity: similarity,
		log:        log.With().Str("module", "suggestions").Logger(),
	}
}

// Generate emits at most one suggestion per pod whose recommended
// funding differs from the current allocation by at least the dead-band.
// The result is sorted by priority, then by descending monthly impact.
func (e *Engine) Generate(pods []domain.BudgetPod, analyses []domain.PodFundingAnalysis, now time.Time) []domain.FundingSuggestion {
	byPod := make(map[string]domain.BudgetPod, len(pods))
	for _, pod := range pods {
		byPod[pod.ID] = pod
	}

	result := []domain.FundingSuggestion{}
	for _, analysis := range analyses {
		pod, ok := byPod[analysis.PodID]
		if !ok {
			continue
		}
		if suggestion, ok := e.ForPod(pod, analysis, now); ok {
			result = append(result, suggestion)
		}
	}

	Sort(result)
	return result
}

// ForPod builds the suggestion for a single pod, or reports false when
// the difference sits inside the dead-band.
func (e *Engine) ForPod(pod domain.BudgetPod, analysis domain.PodFundingAnalysis, now time.Time) (domain.FundingSuggestion, bool) {
	difference := analysis.RecommendedFunding - pod.MonthlyAmount
	if !OutsideDeadBand(difference, pod.MonthlyAmount, analysis.RecommendedFunding) {
		return domain.FundingSuggestion{}, false
	}

	suggestionType := domain.SuggestionIncrease
	if difference < 0 {
		suggestionType = domain.SuggestionDecrease
	}
	priority := classifyPriority(suggestionType, analysis)
	absDiff := math.Abs(difference)

	suggested := analysis.RecommendedFunding
	if suggested < 0 {
		suggested = 0
	}

	suggestion := domain.FundingSuggestion{
		CreatedAt:       now,
		ID:              uuid.New().String(),
		PodID:           pod.ID,
		Type:            suggestionType,
		Priority:        priority,
		Status:          domain.StatusPending,
		ReasonCode:      domain.ReasonSpendingPattern,
		Reasoning:       suggestionReasoning(pod, analysis, difference),
		Impact:          impact(suggestionType, analysis, absDiff),
		Implementation:  implementation(priority, absDiff),
		CurrentAmount:   pod.MonthlyAmount,
		SuggestedAmount: suggested,
		MonthlyImpact:   difference,
	}

	e.log.Debug().
		Str("pod_id", pod.ID).
		Str("type", string(suggestionType)).
		Str("priority", string(priority)).
		Float64("difference", difference).
		Msg("Funding suggestion generated")

	return suggestion, true
}

// OutsideDeadBand reports whether a funding difference is large enough,
// in relative terms, to warrant a suggestion.
func OutsideDeadBand(difference, current, recommended float64) bool {
	base := current
	if base == 0 {
		base = recommended
	}
	if base == 0 {
		return false
	}
	return math.Abs(difference)/math.Abs(base)*100 >= DeadBandPercent
}

// Sort orders suggestions by priority (critical first), then by
// descending absolute monthly impact.
func Sort(suggestions []domain.FundingSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		ri, rj := domain.PriorityRank(suggestions[i].Priority), domain.PriorityRank(suggestions[j].Priority)
		if ri != rj {
			return ri > rj
		}
		return math.Abs(suggestions[i].MonthlyImpact) > math.Abs(suggestions[j].MonthlyImpact)
	})
}

// FilterDuplicates drops candidates whose reasoning reads nearly the
// same as an existing pending suggestion for the same pod.
func (e *Engine) FilterDuplicates(candidates, pending []domain.FundingSuggestion) []domain.FundingSuggestion {
	if e.similarity == nil || len(pending) == 0 {
		return candidates
	}
	kept := make([]domain.FundingSuggestion, 0, len(candidates))
	for _, candidate := range candidates {
		if e.isDuplicate(candidate, pending) {
			e.log.Debug().Str("pod_id", candidate.PodID).Msg("Suppressed near-duplicate suggestion")
			continue
		}
		kept = append(kept, candidate)
	}
	return kept
}

func (e *Engine) isDuplicate(candidate domain.FundingSuggestion, pending []domain.FundingSuggestion) bool {
	for _, existing := range pending {
		if existing.PodID != candidate.PodID || existing.Status != domain.StatusPending {
			continue
		}
		if existing.Type == candidate.Type &&
			e.similarity(joinReasoning(existing), joinReasoning(candidate)) >= duplicateThreshold {
			return true
		}
	}
	return false
}

func classifyPriority(suggestionType domain.SuggestionType, analysis domain.PodFundingAnalysis) domain.SuggestionPriority {
	increasing := analysis.SpendingTrend == domain.TrendIncreasing
	switch suggestionType {
	case domain.SuggestionIncrease:
		if analysis.CurrentUtilization > criticalUtilization && increasing {
			return domain.PriorityCritical
		}
		if increasing {
			return domain.PriorityHigh
		}
		return domain.PriorityMedium
	default:
		if analysis.CurrentUtilization < lowUtilization {
			return domain.PriorityMedium
		}
		return domain.PriorityLow
	}
}

func impact(suggestionType domain.SuggestionType, analysis domain.PodFundingAnalysis, absDiff float64) domain.ImpactAnalysis {
	result := domain.ImpactAnalysis{
		UtilizationOptimization: math.Abs(targetUtilization - analysis.CurrentUtilization),
	}
	if suggestionType == domain.SuggestionDecrease {
		result.MonthlySavings = absDiff
	}
	if analysis.RiskLevel == domain.RiskHigh {
		result.RiskReduction = highRiskReduction
	}
	return result
}

func implementation(priority domain.SuggestionPriority, absDiff float64) domain.ImplementationPolicy {
	policy := domain.ImplementationPolicy{
		AutoApply:      absDiff < autoApplyLimit && priority == domain.PriorityLow,
		RequiresReview: priority == domain.PriorityCritical || absDiff > reviewLimit,
	}
	if priority == domain.PriorityLow {
		rollback := rollbackWindow
		policy.RollbackAfter = &rollback
	}
	return policy
}

func suggestionReasoning(pod domain.BudgetPod, analysis domain.PodFundingAnalysis, difference float64) []string {
	direction := "increase"
	if difference < 0 {
		direction = "decrease"
	}
	reasons := []string{
		fmt.Sprintf("Recommended funding %.2f vs current allocation %.2f (%s of %.2f)",
			analysis.RecommendedFunding, pod.MonthlyAmount, direction, math.Abs(difference)),
	}
	return append(reasons, analysis.Reasoning...)
}

func joinReasoning(s domain.FundingSuggestion) string {
	text := ""
	for i, r := range s.Reasoning {
		if i > 0 {
			text += " "
		}
		text += r
	}
	return text
}
