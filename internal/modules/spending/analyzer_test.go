package spending

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/podfund/internal/domain"
)

var testTime = time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)

// monthlySpend builds one expense per month, newest month first offset 0
func monthlySpend(podID string, amounts []float64) []domain.Transaction {
	txs := make([]domain.Transaction, 0, len(amounts))
	for i, amount := range amounts {
		monthsAgo := len(amounts) - 1 - i
		txs = append(txs, domain.Transaction{
			ID:          fmt.Sprintf("tx-%d", i),
			Date:        testTime.AddDate(0, -monthsAgo, 0),
			Amount:      amount,
			Type:        domain.TransactionExpense,
			BudgetPodID: podID,
		})
	}
	return txs
}

func testAnalyzer(window int) *Analyzer {
	return NewAnalyzer(window, zerolog.Nop())
}

func TestAnalyze_NoTransactions(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), nil, testTime)

	assert.Equal(t, 0.0, pattern.MonthlyAverage)
	assert.Equal(t, 0.0, pattern.Variance)
	assert.Equal(t, domain.TrendStable, pattern.Trend)
	assert.Equal(t, 0.0, pattern.Consistency)
	assert.Empty(t, pattern.Outliers)
	assert.Empty(t, pattern.Seasonality)
	assert.Equal(t, 0, pattern.TransactionCount)
}

func TestAnalyze_ConstantSpend(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	txs := monthlySpend("pod-1", []float64{100, 100, 100, 100, 100, 100})

	pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), txs, testTime)

	assert.InDelta(t, 100.0, pattern.MonthlyAverage, 1e-9)
	assert.Equal(t, 0.0, pattern.Variance)
	assert.Equal(t, domain.TrendStable, pattern.Trend)
	assert.Equal(t, 100.0, pattern.Consistency)
	assert.Empty(t, pattern.Outliers)
	assert.Equal(t, 6, pattern.TransactionCount)
}

func TestAnalyze_TrendClassification(t *testing.T) {
	tests := []struct {
		name     string
		amounts  []float64
		expected domain.SpendingTrend
	}{
		{"steadily increasing", []float64{100, 120, 140, 160, 180, 200}, domain.TrendIncreasing},
		{"steadily decreasing", []float64{200, 180, 160, 140, 120, 100}, domain.TrendDecreasing},
		{"flat", []float64{150, 150, 150, 150, 150, 150}, domain.TrendStable},
		{"single month", []float64{150}, domain.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
			txs := monthlySpend("pod-1", tt.amounts)
			pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), txs, testTime)
			assert.Equal(t, tt.expected, pattern.Trend)
		})
	}
}

func TestAnalyze_NegativeAmountsUseAbsoluteValue(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	txs := monthlySpend("pod-1", []float64{-100, -100, -100})

	pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), txs, testTime)

	assert.InDelta(t, 100.0, pattern.MonthlyAverage, 1e-9)
}

func TestAnalyze_IgnoresIncomeAndTransfers(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	txs := []domain.Transaction{
		{ID: "t1", Date: testTime, Amount: 100, Type: domain.TransactionIncome, BudgetPodID: "pod-1"},
		{ID: "t2", Date: testTime, Amount: 100, Type: domain.TransactionTransfer, BudgetPodID: "pod-1"},
	}

	pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), txs, testTime)

	assert.Equal(t, 0, pattern.TransactionCount)
	assert.Equal(t, 0.0, pattern.MonthlyAverage)
}

func TestAnalyze_WindowExcludesOldTransactions(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	txs := []domain.Transaction{
		{ID: "old", Date: testTime.AddDate(0, -12, 0), Amount: 500, Type: domain.TransactionExpense, BudgetPodID: "pod-1"},
		{ID: "new", Date: testTime.AddDate(0, -1, 0), Amount: 100, Type: domain.TransactionExpense, BudgetPodID: "pod-1"},
	}

	pattern := testAnalyzer(6).Analyze(NewPodMatcher(pod), txs, testTime)

	assert.Equal(t, 1, pattern.TransactionCount)
	assert.InDelta(t, 100.0, pattern.MonthlyAverage, 1e-9)
}

func TestAnalyze_Outliers(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	// Eleven steady months and one spike
	amounts := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 1000}
	txs := monthlySpend("pod-1", amounts)

	pattern := testAnalyzer(12).Analyze(NewPodMatcher(pod), txs, testTime)

	assert.Contains(t, pattern.Outliers, 1000.0)
}

func TestAnalyze_SeasonalityRequiresTwelveMonths(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}

	short := testAnalyzer(12).Analyze(NewPodMatcher(pod), monthlySpend("pod-1", []float64{100, 100, 100}), testTime)
	assert.Empty(t, short.Seasonality)

	amounts := make([]float64, 12)
	for i := range amounts {
		amounts[i] = 100
	}
	full := testAnalyzer(12).Analyze(NewPodMatcher(pod), monthlySpend("pod-1", amounts), testTime)
	assert.Len(t, full.Seasonality, 12)
}

func TestPodMatcher_ExplicitLinkWins(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	matcher := NewPodMatcher(pod)

	// Linked to another pod: the category mentioning groceries must not match
	other := domain.Transaction{BudgetPodID: "pod-2", Category: "groceries weekly"}
	assert.False(t, matcher.Matches(other))

	linked := domain.Transaction{BudgetPodID: "pod-1", Category: "something else"}
	assert.True(t, matcher.Matches(linked))
}

func TestPodMatcher_CategoryFallback(t *testing.T) {
	pod := domain.BudgetPod{ID: "pod-1", Name: "Groceries"}
	matcher := NewPodMatcher(pod, "supermarket")

	assert.True(t, matcher.Matches(domain.Transaction{Category: "Groceries / weekly shop"}))
	assert.True(t, matcher.Matches(domain.Transaction{Category: "SUPERMARKET run"}))
	assert.False(t, matcher.Matches(domain.Transaction{Category: "fuel"}))
	assert.False(t, matcher.Matches(domain.Transaction{}))
}
