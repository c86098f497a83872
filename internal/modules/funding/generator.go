// Package funding derives funding recommendations and risk
// classifications from spending and income patterns.
package funding

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

const (
	trendFactorIncreasing = 1.15
	trendFactorDecreasing = 0.95
	trendFactorStable     = 1.10

	// varianceMultiplierCap limits how much volatile spend can inflate
	// the recommendation
	varianceMultiplierCap = 1.5

	highUtilizationThreshold   = 85.0
	mediumUtilizationThreshold = 75.0
	lowConsistencyThreshold    = 60.0

	// dataQualityFullMonths is the transaction count at which data
	// quality saturates at 100
	dataQualityFullMonths = 12

	dataQualityWeight = 0.4
	consistencyWeight = 0.6
)

// Generator combines spending and income patterns into per-pod funding
// analyses. Stateless; safe for concurrent use.
type Generator struct {
	log zerolog.Logger
}

// NewGenerator creates a funding analysis generator
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log.With().Str("module", "funding").Logger()}
}

// Generate produces the funding analysis for one pod from its spending
// pattern. All divisions are zero-guarded; empty history yields a
// zeroed, low-confidence analysis rather than an error.
func (g *Generator) Generate(pod domain.BudgetPod, pattern domain.SpendingPattern, now time.Time) domain.PodFundingAnalysis {
	utilization := CurrentUtilization(pod)
	recommended := recommendedFunding(pattern)
	risk := riskLevel(utilization, pattern)

	analysis := domain.PodFundingAnalysis{
		LastAnalyzed:        now,
		PodID:               pod.ID,
		SpendingTrend:       pattern.Trend,
		RiskLevel:           risk,
		Reasoning:           reasoning(pattern, utilization, recommended),
		CurrentUtilization:  utilization,
		AverageMonthlySpend: pattern.MonthlyAverage,
		RecommendedFunding:  recommended,
		Confidence:          confidence(pattern),
		Consistency:         pattern.Consistency,
		Variance:            pattern.Variance,
	}

	g.log.Debug().
		Str("pod_id", pod.ID).
		Float64("utilization", utilization).
		Float64("recommended", recommended).
		Str("risk", string(risk)).
		Int("confidence", analysis.Confidence).
		Msg("Funding analysis generated")

	return analysis
}

// CurrentUtilization returns the pod balance as a percentage of its
// target allocation. Pods with no target report 0, never a division
// fault.
func CurrentUtilization(pod domain.BudgetPod) float64 {
	if pod.MonthlyAmount == 0 {
		return 0
	}
	utilization := pod.CurrentAmount / pod.MonthlyAmount * 100
	if utilization < 0 {
		return 0
	}
	return utilization
}

// recommendedFunding scales average spend by the trend direction and a
// volatility buffer.
func recommendedFunding(pattern domain.SpendingPattern) float64 {
	if pattern.MonthlyAverage <= 0 {
		return 0
	}
	factor := trendFactorStable
	switch pattern.Trend {
	case domain.TrendIncreasing:
		factor = trendFactorIncreasing
	case domain.TrendDecreasing:
		factor = trendFactorDecreasing
	}
	multiplier := math.Min(1+math.Sqrt(pattern.Variance)/pattern.MonthlyAverage*0.5, varianceMultiplierCap)
	return pattern.MonthlyAverage * factor * multiplier
}

func riskLevel(utilization float64, pattern domain.SpendingPattern) domain.RiskLevel {
	if utilization > highUtilizationThreshold && pattern.Trend == domain.TrendIncreasing {
		return domain.RiskHigh
	}
	if utilization > mediumUtilizationThreshold || pattern.Consistency < lowConsistencyThreshold {
		return domain.RiskMedium
	}
	return domain.RiskLow
}

// confidence blends data quality (how much history exists) with
// spending consistency.
func confidence(pattern domain.SpendingPattern) int {
	quality := math.Min(100, float64(pattern.TransactionCount)/dataQualityFullMonths*100)
	return int(math.Round(quality*dataQualityWeight + pattern.Consistency*consistencyWeight))
}

// reasoning builds the ordered, deterministic list of human-readable
// triggers behind the recommendation.
func reasoning(pattern domain.SpendingPattern, utilization, recommended float64) []string {
	reasons := []string{}
	if utilization > highUtilizationThreshold {
		reasons = append(reasons, fmt.Sprintf("Utilization at %.0f%% of the monthly allocation", utilization))
	}
	switch pattern.Trend {
	case domain.TrendIncreasing:
		reasons = append(reasons, "Spending is trending upward month over month")
	case domain.TrendDecreasing:
		reasons = append(reasons, "Spending is trending downward month over month")
	}
	if pattern.MonthlyAverage > 0 && pattern.Consistency < lowConsistencyThreshold {
		reasons = append(reasons, fmt.Sprintf("Spending is inconsistent (consistency score %.0f)", pattern.Consistency))
	}
	if len(pattern.Outliers) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d outlier month(s) detected in the window", len(pattern.Outliers)))
	}
	if pattern.MonthlyAverage == 0 {
		reasons = append(reasons, "No spending history in the analysis window")
	} else {
		reasons = append(reasons, fmt.Sprintf("Average monthly spend %.2f suggests funding of %.2f", pattern.MonthlyAverage, recommended))
	}
	return reasons
}
