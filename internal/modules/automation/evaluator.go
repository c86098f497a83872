// Package automation evaluates and applies funding automation rules
// within configured safety caps.
package automation

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

// DefaultCooldown is the minimum interval between firings of the same
// rule when the rule does not configure its own.
const DefaultCooldown = 24 * time.Hour

// EvaluationContext carries portfolio-wide change signals supplied by
// the caller alongside per-pod analyses.
type EvaluationContext struct {
	Now                        time.Time
	IncomeChangePercentage     float64
	SpendingVariancePercentage float64
}

// Evaluator determines which configured rules should fire.
// It never applies them. Stateless; safe for concurrent use.
type Evaluator struct {
	log zerolog.Logger
}

// NewEvaluator creates an automation rule evaluator
func NewEvaluator(log zerolog.Logger) *Evaluator {
	return &Evaluator{log: log.With().Str("module", "automation").Logger()}
}

// Evaluate returns the subset of rules that should fire given the
// current analyses and context. Inactive rules, rules inside their
// cooldown window, and rules with no configured triggers never fire.
// Malformed configuration is treated as "never triggers", not an error.
func (e *Evaluator) Evaluate(
	rules []domain.FundingAutomationRule,
	analyses []domain.PodFundingAnalysis,
	ctx EvaluationContext,
) []domain.FundingAutomationRule {
	triggered := []domain.FundingAutomationRule{}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		if inCooldown(rule, ctx.Now) {
			e.log.Debug().Str("rule_id", rule.ID).Msg("Rule skipped: inside cooldown window")
			continue
		}
		if e.shouldTrigger(rule, analyses, ctx) {
			triggered = append(triggered, rule)
		}
	}
	return triggered
}

// ScopedAnalyses restricts analyses to the pods a rule may touch:
// includePods (empty = all) minus excludePods.
func ScopedAnalyses(rule domain.FundingAutomationRule, analyses []domain.PodFundingAnalysis) []domain.PodFundingAnalysis {
	excluded := make(map[string]bool, len(rule.Scope.ExcludePods))
	for _, id := range rule.Scope.ExcludePods {
		excluded[id] = true
	}
	included := map[string]bool{}
	for _, id := range rule.Scope.IncludePods {
		included[id] = true
	}

	scoped := []domain.PodFundingAnalysis{}
	for _, analysis := range analyses {
		if excluded[analysis.PodID] {
			continue
		}
		if len(included) > 0 && !included[analysis.PodID] {
			continue
		}
		scoped = append(scoped, analysis)
	}
	return scoped
}

func (e *Evaluator) shouldTrigger(rule domain.FundingAutomationRule, analyses []domain.PodFundingAnalysis, ctx EvaluationContext) bool {
	scoped := ScopedAnalyses(rule, analyses)

	if rule.Triggers.UtilizationThreshold > 0 {
		for _, analysis := range scoped {
			if analysis.CurrentUtilization >= rule.Triggers.UtilizationThreshold {
				e.log.Debug().
					Str("rule_id", rule.ID).
					Str("pod_id", analysis.PodID).
					Float64("utilization", analysis.CurrentUtilization).
					Msg("Rule triggered by utilization threshold")
				return true
			}
		}
	}

	if rule.Triggers.IncomeChange != 0 && abs(ctx.IncomeChangePercentage) > abs(rule.Triggers.IncomeChange) {
		e.log.Debug().Str("rule_id", rule.ID).Float64("income_change", ctx.IncomeChangePercentage).Msg("Rule triggered by income change")
		return true
	}

	if rule.Triggers.SpendingVariance != 0 && abs(ctx.SpendingVariancePercentage) > abs(rule.Triggers.SpendingVariance) {
		e.log.Debug().Str("rule_id", rule.ID).Float64("spending_variance", ctx.SpendingVariancePercentage).Msg("Rule triggered by spending variance")
		return true
	}

	return false
}

// inCooldown reports whether the rule fired too recently to fire again
func inCooldown(rule domain.FundingAutomationRule, now time.Time) bool {
	if rule.LastTriggeredAt == nil {
		return false
	}
	cooldown := DefaultCooldown
	if rule.CooldownHours > 0 {
		cooldown = time.Duration(rule.CooldownHours) * time.Hour
	}
	return now.Sub(*rule.LastTriggeredAt) < cooldown
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
