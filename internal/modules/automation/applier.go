package automation

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

const (
	// defaultUtilizationThreshold applies when a rule configures no
	// utilization trigger of its own
	defaultUtilizationThreshold = 80.0
	// maxPercentageStep caps percentage adjustments per invocation
	maxPercentageStep = 15.0
	// maxFixedStep caps fixed-amount adjustments per invocation
	maxFixedStep = 100.0
)

// Applier computes concrete, capped allocation adjustments for a
// triggered rule. Stateless; safe for concurrent use.
type Applier struct {
	log zerolog.Logger
}

// NewApplier creates an automation rule applier
func NewApplier(log zerolog.Logger) *Applier {
	return &Applier{log: log.With().Str("module", "automation").Logger()}
}

// Apply iterates the rule's in-scope pods and computes adjustments. The
// running sum of absolute adjustments never exceeds the rule's
// MaxTotalAdjustment: an adjustment that would overshoot is scaled down
// to the remaining budget and its reasoning annotated. The returned
// RequiresReview flag escalates the whole batch when any single
// adjustment crosses the rule's review thresholds.
func (a *Applier) Apply(
	rule domain.FundingAutomationRule,
	pods []domain.BudgetPod,
	analyses []domain.PodFundingAnalysis,
) domain.RuleApplication {
	application := domain.RuleApplication{
		RuleID:      rule.ID,
		Adjustments: []domain.PodAdjustment{},
	}

	byPod := make(map[string]domain.BudgetPod, len(pods))
	for _, pod := range pods {
		byPod[pod.ID] = pod
	}

	budget := rule.Scope.MaxTotalAdjustment
	unlimited := budget <= 0

	for _, analysis := range ScopedAnalyses(rule, analyses) {
		pod, ok := byPod[analysis.PodID]
		if !ok {
			continue
		}

		newAmount, reason, ok := a.candidate(rule, pod, analysis)
		if !ok {
			continue
		}

		adjustment := math.Abs(newAmount - pod.MonthlyAmount)
		if adjustment == 0 {
			continue
		}

		if !unlimited {
			remaining := budget - application.TotalAdjustment
			if remaining <= 0 {
				break
			}
			if adjustment > remaining {
				// Scale the change down to fit the remaining cap
				direction := 1.0
				if newAmount < pod.MonthlyAmount {
					direction = -1.0
				}
				newAmount = pod.MonthlyAmount + direction*remaining
				adjustment = remaining
				reason = fmt.Sprintf("%s (scaled down to respect the rule's total adjustment cap of %.2f)", reason, budget)
			}
		}

		if escalates(rule.Actions, adjustment) {
			application.RequiresReview = true
		}

		if newAmount < 0 {
			newAmount = 0
		}

		application.Adjustments = append(application.Adjustments, domain.PodAdjustment{
			PodID:         pod.ID,
			Reasoning:     reason,
			CurrentAmount: pod.MonthlyAmount,
			NewAmount:     newAmount,
		})
		application.TotalAdjustment += adjustment
	}

	a.log.Info().
		Str("rule_id", rule.ID).
		Int("adjustments", len(application.Adjustments)).
		Float64("total", application.TotalAdjustment).
		Bool("requires_review", application.RequiresReview).
		Msg("Automation rule applied")

	return application
}

// candidate computes the rule's proposed new amount for one pod.
// Returns false when the pod does not meet the rule's condition.
func (a *Applier) candidate(rule domain.FundingAutomationRule, pod domain.BudgetPod, analysis domain.PodFundingAnalysis) (float64, string, bool) {
	threshold := rule.Triggers.UtilizationThreshold
	if threshold <= 0 {
		threshold = defaultUtilizationThreshold
	}

	switch rule.Actions.AdjustmentType {
	case domain.AdjustPercentage:
		if analysis.CurrentUtilization <= threshold {
			return 0, "", false
		}
		step := math.Min(rule.Actions.MaxAdjustment, maxPercentageStep)
		if step <= 0 {
			step = maxPercentageStep
		}
		newAmount := pod.MonthlyAmount * (1 + step/100)
		return newAmount, fmt.Sprintf("Utilization %.0f%% above %.0f%% threshold: increase allocation by %.0f%%",
			analysis.CurrentUtilization, threshold, step), true

	case domain.AdjustFixedAmount:
		if analysis.CurrentUtilization <= threshold {
			return 0, "", false
		}
		step := math.Min(rule.Actions.MaxAdjustment, maxFixedStep)
		if step <= 0 {
			step = maxFixedStep
		}
		return pod.MonthlyAmount + step, fmt.Sprintf("Utilization %.0f%% above %.0f%% threshold: increase allocation by %.2f",
			analysis.CurrentUtilization, threshold, step), true

	case domain.AdjustSmart:
		if analysis.RecommendedFunding <= 0 {
			return 0, "", false
		}
		return analysis.RecommendedFunding, fmt.Sprintf("Set allocation to recommended funding %.2f",
			analysis.RecommendedFunding), true
	}

	// Unknown adjustment type: rule configuration is malformed, skip
	return 0, "", false
}

// escalates reports whether a single adjustment forces a human review
func escalates(actions domain.RuleActions, adjustment float64) bool {
	if actions.MinReviewThreshold > 0 && adjustment >= actions.MinReviewThreshold {
		return true
	}
	if actions.AutoApprovalLimit > 0 && adjustment > actions.AutoApprovalLimit {
		return true
	}
	return false
}
