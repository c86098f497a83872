package suggestions

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/podfund/internal/domain"
)

var testTime = time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine {
	return NewEngine(LevenshteinSimilarity, zerolog.Nop())
}

func analysisFor(podID string, recommended, utilization float64, trend domain.SpendingTrend, risk domain.RiskLevel) domain.PodFundingAnalysis {
	return domain.PodFundingAnalysis{
		LastAnalyzed:       testTime,
		PodID:              podID,
		SpendingTrend:      trend,
		RiskLevel:          risk,
		CurrentUtilization: utilization,
		RecommendedFunding: recommended,
		Reasoning:          []string{"test analysis"},
	}
}

func TestForPod_DeadBandSuppression(t *testing.T) {
	engine := testEngine()
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 100}

	// 4% difference: inside the dead-band, nothing emitted
	_, emitted := engine.ForPod(pod, analysisFor("pod-1", 104, 50, domain.TrendStable, domain.RiskLow), testTime)
	assert.False(t, emitted)

	// 5% difference: exactly at the boundary, emitted
	suggestion, emitted := engine.ForPod(pod, analysisFor("pod-1", 105, 50, domain.TrendStable, domain.RiskLow), testTime)
	require.True(t, emitted)
	assert.Equal(t, domain.SuggestionIncrease, suggestion.Type)
}

func TestForPod_SteadyFullPodGetsIncrease(t *testing.T) {
	// Pod funded at 100, fully utilized, recommendation 110
	engine := testEngine()
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 100, CurrentAmount: 100}

	suggestion, emitted := engine.ForPod(pod, analysisFor("pod-1", 110, 100, domain.TrendStable, domain.RiskMedium), testTime)

	require.True(t, emitted)
	assert.Equal(t, domain.SuggestionIncrease, suggestion.Type)
	assert.Equal(t, domain.StatusPending, suggestion.Status)
	assert.InDelta(t, 110.0, suggestion.SuggestedAmount, 1e-9)
	assert.InDelta(t, 10.0, suggestion.MonthlyImpact, 1e-9)
}

func TestForPod_PriorityMatrix(t *testing.T) {
	engine := testEngine()

	tests := []struct {
		name        string
		current     float64
		recommended float64
		utilization float64
		trend       domain.SpendingTrend
		expected    domain.SuggestionPriority
	}{
		{"critical: hot rising increase", 100, 150, 90, domain.TrendIncreasing, domain.PriorityCritical},
		{"high: rising increase", 100, 150, 50, domain.TrendIncreasing, domain.PriorityHigh},
		{"medium: calm increase", 100, 150, 50, domain.TrendStable, domain.PriorityMedium},
		{"medium: idle decrease", 100, 60, 20, domain.TrendStable, domain.PriorityMedium},
		{"low: falling decrease", 100, 60, 50, domain.TrendDecreasing, domain.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: tt.current}
			suggestion, emitted := engine.ForPod(pod, analysisFor("pod-1", tt.recommended, tt.utilization, tt.trend, domain.RiskLow), testTime)
			require.True(t, emitted)
			assert.Equal(t, tt.expected, suggestion.Priority)
		})
	}
}

func TestForPod_ImpactAnalysis(t *testing.T) {
	engine := testEngine()
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 200}

	suggestion, emitted := engine.ForPod(pod, analysisFor("pod-1", 150, 40, domain.TrendDecreasing, domain.RiskHigh), testTime)

	require.True(t, emitted)
	assert.Equal(t, domain.SuggestionDecrease, suggestion.Type)
	assert.InDelta(t, 50.0, suggestion.Impact.MonthlySavings, 1e-9)
	assert.Equal(t, 25.0, suggestion.Impact.RiskReduction)
	assert.InDelta(t, 35.0, suggestion.Impact.UtilizationOptimization, 1e-9)
}

func TestForPod_ImplementationPolicy(t *testing.T) {
	engine := testEngine()

	// Small low-priority decrease: auto-apply with rollback window
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 500}
	small, emitted := engine.ForPod(pod, analysisFor("pod-1", 470, 50, domain.TrendDecreasing, domain.RiskLow), testTime)
	require.True(t, emitted)
	assert.True(t, small.Implementation.AutoApply)
	assert.False(t, small.Implementation.RequiresReview)
	require.NotNil(t, small.Implementation.RollbackAfter)
	assert.Equal(t, 30*24*time.Hour, *small.Implementation.RollbackAfter)

	// Critical increase: review required, never auto-applied
	hot := domain.BudgetPod{ID: "pod-2", MonthlyAmount: 100}
	critical, emitted := engine.ForPod(hot, analysisFor("pod-2", 150, 90, domain.TrendIncreasing, domain.RiskHigh), testTime)
	require.True(t, emitted)
	assert.True(t, critical.Implementation.RequiresReview)
	assert.False(t, critical.Implementation.AutoApply)
	assert.Nil(t, critical.Implementation.RollbackAfter)

	// Large difference forces review regardless of priority
	big := domain.BudgetPod{ID: "pod-3", MonthlyAmount: 1000}
	large, emitted := engine.ForPod(big, analysisFor("pod-3", 700, 50, domain.TrendDecreasing, domain.RiskLow), testTime)
	require.True(t, emitted)
	assert.True(t, large.Implementation.RequiresReview)
}

func TestGenerate_SortsByPriorityThenImpact(t *testing.T) {
	engine := testEngine()
	pods := []domain.BudgetPod{
		{ID: "low", MonthlyAmount: 100},
		{ID: "critical", MonthlyAmount: 100},
		{ID: "medium-big", MonthlyAmount: 100},
		{ID: "medium-small", MonthlyAmount: 100},
	}
	analyses := []domain.PodFundingAnalysis{
		analysisFor("low", 80, 50, domain.TrendDecreasing, domain.RiskLow),
		analysisFor("critical", 150, 90, domain.TrendIncreasing, domain.RiskHigh),
		analysisFor("medium-big", 180, 50, domain.TrendStable, domain.RiskLow),
		analysisFor("medium-small", 110, 50, domain.TrendStable, domain.RiskLow),
	}

	result := engine.Generate(pods, analyses, testTime)

	require.Len(t, result, 4)
	assert.Equal(t, "critical", result[0].PodID)
	assert.Equal(t, "medium-big", result[1].PodID)
	assert.Equal(t, "medium-small", result[2].PodID)
	assert.Equal(t, "low", result[3].PodID)
}

func TestGenerate_IdempotentAfterApplyingRecommendation(t *testing.T) {
	engine := testEngine()

	// First pass: recommendation 110 against allocation 100
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 100, CurrentAmount: 100}
	analysis := analysisFor("pod-1", 110, 100, domain.TrendStable, domain.RiskLow)
	_, emitted := engine.ForPod(pod, analysis, testTime)
	require.True(t, emitted)

	// Host applies the recommendation; spending unchanged, so the
	// recommendation stays 110 and the difference collapses to zero
	pod.MonthlyAmount = 110
	_, emitted = engine.ForPod(pod, analysis, testTime)
	assert.False(t, emitted)
}

func TestGenerate_DeterministicForIdenticalHistories(t *testing.T) {
	engine := testEngine()
	podA := domain.BudgetPod{ID: "a", MonthlyAmount: 100}
	podB := domain.BudgetPod{ID: "b", MonthlyAmount: 100}

	suggestionA, okA := engine.ForPod(podA, analysisFor("a", 130, 88, domain.TrendIncreasing, domain.RiskHigh), testTime)
	suggestionB, okB := engine.ForPod(podB, analysisFor("b", 130, 88, domain.TrendIncreasing, domain.RiskHigh), testTime)

	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, suggestionA.Type, suggestionB.Type)
	assert.Equal(t, suggestionA.Priority, suggestionB.Priority)
}

func TestGenerate_SkipsAnalysesWithoutPod(t *testing.T) {
	engine := testEngine()
	result := engine.Generate(nil, []domain.PodFundingAnalysis{
		analysisFor("ghost", 200, 50, domain.TrendStable, domain.RiskLow),
	}, testTime)
	assert.Empty(t, result)
}

func TestSuggestedAmountNeverNegative(t *testing.T) {
	engine := testEngine()
	pod := domain.BudgetPod{ID: "pod-1", MonthlyAmount: 100}

	suggestion, emitted := engine.ForPod(pod, analysisFor("pod-1", 0, 0, domain.TrendStable, domain.RiskLow), testTime)

	require.True(t, emitted)
	assert.GreaterOrEqual(t, suggestion.SuggestedAmount, 0.0)
}

func TestFilterDuplicates(t *testing.T) {
	engine := testEngine()

	pending := domain.FundingSuggestion{
		ID:        "existing",
		PodID:     "pod-1",
		Type:      domain.SuggestionIncrease,
		Status:    domain.StatusPending,
		Reasoning: []string{"Recommended funding 110.00 vs current allocation 100.00 (increase of 10.00)"},
	}
	duplicate := pending
	duplicate.ID = "new"

	distinct := domain.FundingSuggestion{
		ID:        "other",
		PodID:     "pod-1",
		Type:      domain.SuggestionIncrease,
		Status:    domain.StatusPending,
		Reasoning: []string{"Spending is trending upward month over month, utilization critical"},
	}

	kept := engine.FilterDuplicates(
		[]domain.FundingSuggestion{duplicate, distinct},
		[]domain.FundingSuggestion{pending},
	)

	require.Len(t, kept, 1)
	assert.Equal(t, "other", kept[0].ID)
}
