// Package dashboard rolls analyses, suggestions and rules up into
// portfolio-level metrics.
package dashboard

import (
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
)

const (
	// highUtilization marks a pod as running hot
	highUtilization = 80.0
	// decliningShare is the fraction of hot pods beyond which the
	// portfolio trend is declining
	decliningShare = 0.30

	improvingLowerBound = 60.0
	improvingUpperBound = 80.0

	// defaultOptimization is reported when no analyses exist yet
	defaultOptimization = 75.0
)

// Aggregator computes dashboard metrics. Stateless; safe for concurrent use.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a dashboard metrics aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("module", "dashboard").Logger()}
}

// Aggregate produces a fresh portfolio snapshot. Pure over its inputs;
// recomputed on every call.
func (a *Aggregator) Aggregate(
	pods []domain.BudgetPod,
	analyses []domain.PodFundingAnalysis,
	suggestions []domain.FundingSuggestion,
	rules []domain.FundingAutomationRule,
) domain.PodFundingDashboardMetrics {
	metrics := domain.PodFundingDashboardMetrics{
		UtilizationTrend:   domain.UtilizationStable,
		BudgetOptimization: defaultOptimization,
		PodCount:           len(pods),
	}

	utilizationByPod := make(map[string]float64, len(analyses))
	increasing := 0
	confidenceSum := 0.0
	for _, analysis := range analyses {
		utilizationByPod[analysis.PodID] = analysis.CurrentUtilization
		if analysis.SpendingTrend == domain.TrendIncreasing {
			increasing++
		}
		confidenceSum += float64(analysis.Confidence)
	}

	utilizationSum := 0.0
	for _, pod := range pods {
		metrics.TotalBudget += pod.MonthlyAmount
		metrics.TotalUtilized += pod.CurrentAmount
		utilization := utilizationByPod[pod.ID]
		utilizationSum += utilization
		if utilization > highUtilization {
			metrics.HighUtilizationPods++
		}
	}
	if len(pods) > 0 {
		metrics.AverageUtilization = utilizationSum / float64(len(pods))
	}

	for _, suggestion := range suggestions {
		if suggestion.Status != domain.StatusPending {
			continue
		}
		metrics.PendingSuggestions++
		if suggestion.Type == domain.SuggestionDecrease {
			metrics.PotentialSavings += suggestion.Impact.MonthlySavings
		}
		metrics.RiskReduction += suggestion.Impact.RiskReduction
	}

	for _, rule := range rules {
		if rule.IsActive {
			metrics.ActiveRules++
		}
	}

	metrics.UtilizationTrend = utilizationTrend(len(pods), metrics.HighUtilizationPods, metrics.AverageUtilization)
	metrics.SpendingEfficiency = spendingEfficiency(len(analyses), increasing)
	if len(analyses) > 0 {
		metrics.BudgetOptimization = confidenceSum / float64(len(analyses))
	}

	a.log.Debug().
		Int("pods", len(pods)).
		Float64("avg_utilization", metrics.AverageUtilization).
		Str("trend", string(metrics.UtilizationTrend)).
		Msg("Dashboard metrics aggregated")

	return metrics
}

func utilizationTrend(podCount, hotPods int, averageUtilization float64) domain.UtilizationTrend {
	if podCount > 0 && float64(hotPods)/float64(podCount) > decliningShare {
		return domain.UtilizationDeclining
	}
	if averageUtilization >= improvingLowerBound && averageUtilization <= improvingUpperBound {
		return domain.UtilizationImproving
	}
	return domain.UtilizationStable
}

// spendingEfficiency penalizes the share of pods with rising spend,
// clamped to [0,100].
func spendingEfficiency(analysisCount, increasing int) float64 {
	if analysisCount == 0 {
		return 100
	}
	efficiency := 100 - float64(increasing)/float64(analysisCount)*50
	if efficiency < 0 {
		return 0
	}
	if efficiency > 100 {
		return 100
	}
	return efficiency
}
