package dashboard

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/podfund/internal/domain"
)

func testAggregator() *Aggregator {
	return NewAggregator(zerolog.Nop())
}

// portfolio builds n pods with matching analyses at the given utilizations
func portfolio(utilizations []float64) ([]domain.BudgetPod, []domain.PodFundingAnalysis) {
	pods := make([]domain.BudgetPod, len(utilizations))
	analyses := make([]domain.PodFundingAnalysis, len(utilizations))
	for i, utilization := range utilizations {
		id := fmt.Sprintf("pod-%d", i)
		pods[i] = domain.BudgetPod{ID: id, MonthlyAmount: 100, CurrentAmount: utilization}
		analyses[i] = domain.PodFundingAnalysis{
			PodID:              id,
			CurrentUtilization: utilization,
			SpendingTrend:      domain.TrendStable,
			Confidence:         80,
		}
	}
	return pods, analyses
}

func TestAggregate_EmptyPortfolio(t *testing.T) {
	metrics := testAggregator().Aggregate(nil, nil, nil, nil)

	assert.Equal(t, domain.UtilizationStable, metrics.UtilizationTrend)
	assert.Equal(t, 75.0, metrics.BudgetOptimization)
	assert.Equal(t, 100.0, metrics.SpendingEfficiency)
	assert.Equal(t, 0, metrics.PodCount)
	assert.Equal(t, 0.0, metrics.AverageUtilization)
}

func TestAggregate_DecliningWhenTooManyHotPods(t *testing.T) {
	// Twelve pods, five above 80% utilization: 41% > 30% threshold
	utilizations := []float64{85, 90, 95, 85, 88, 20, 20, 20, 20, 20, 20, 20}
	pods, analyses := portfolio(utilizations)

	metrics := testAggregator().Aggregate(pods, analyses, nil, nil)

	assert.Equal(t, 5, metrics.HighUtilizationPods)
	assert.Equal(t, domain.UtilizationDeclining, metrics.UtilizationTrend)
}

func TestAggregate_ImprovingInTargetBand(t *testing.T) {
	pods, analyses := portfolio([]float64{65, 70, 75})

	metrics := testAggregator().Aggregate(pods, analyses, nil, nil)

	assert.InDelta(t, 70.0, metrics.AverageUtilization, 1e-9)
	assert.Equal(t, domain.UtilizationImproving, metrics.UtilizationTrend)
}

func TestAggregate_Totals(t *testing.T) {
	pods := []domain.BudgetPod{
		{ID: "a", MonthlyAmount: 100, CurrentAmount: 60},
		{ID: "b", MonthlyAmount: 300, CurrentAmount: 90},
	}

	metrics := testAggregator().Aggregate(pods, nil, nil, nil)

	assert.Equal(t, 400.0, metrics.TotalBudget)
	assert.Equal(t, 150.0, metrics.TotalUtilized)
}

func TestAggregate_PendingSuggestions(t *testing.T) {
	suggestions := []domain.FundingSuggestion{
		{
			ID: "s1", Status: domain.StatusPending, Type: domain.SuggestionDecrease,
			Impact: domain.ImpactAnalysis{MonthlySavings: 40, RiskReduction: 25},
		},
		{
			ID: "s2", Status: domain.StatusPending, Type: domain.SuggestionIncrease,
			Impact: domain.ImpactAnalysis{RiskReduction: 25},
		},
		{
			ID: "s3", Status: domain.StatusApplied, Type: domain.SuggestionDecrease,
			Impact: domain.ImpactAnalysis{MonthlySavings: 99},
		},
	}

	metrics := testAggregator().Aggregate(nil, nil, suggestions, nil)

	assert.Equal(t, 2, metrics.PendingSuggestions)
	assert.Equal(t, 40.0, metrics.PotentialSavings)
	assert.Equal(t, 50.0, metrics.RiskReduction)
}

func TestAggregate_ActiveRules(t *testing.T) {
	rules := []domain.FundingAutomationRule{
		{ID: "r1", IsActive: true},
		{ID: "r2", IsActive: false},
		{ID: "r3", IsActive: true},
	}

	metrics := testAggregator().Aggregate(nil, nil, nil, rules)

	assert.Equal(t, 2, metrics.ActiveRules)
}

func TestAggregate_SpendingEfficiency(t *testing.T) {
	pods, analyses := portfolio([]float64{50, 50, 50, 50})
	// Half the pods trending up: 100 - 0.5*50 = 75
	analyses[0].SpendingTrend = domain.TrendIncreasing
	analyses[1].SpendingTrend = domain.TrendIncreasing

	metrics := testAggregator().Aggregate(pods, analyses, nil, nil)

	assert.InDelta(t, 75.0, metrics.SpendingEfficiency, 1e-9)
}

func TestAggregate_BudgetOptimizationIsMeanConfidence(t *testing.T) {
	pods, analyses := portfolio([]float64{50, 50})
	analyses[0].Confidence = 90
	analyses[1].Confidence = 70

	metrics := testAggregator().Aggregate(pods, analyses, nil, nil)

	assert.InDelta(t, 80.0, metrics.BudgetOptimization, 1e-9)
}
