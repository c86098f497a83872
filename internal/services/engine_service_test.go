package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/podfund/internal/domain"
	"github.com/aristath/podfund/internal/events"
	"github.com/aristath/podfund/internal/modules/automation"
	"github.com/aristath/podfund/internal/modules/dashboard"
	"github.com/aristath/podfund/internal/modules/funding"
	"github.com/aristath/podfund/internal/modules/income"
	"github.com/aristath/podfund/internal/modules/ledger"
	"github.com/aristath/podfund/internal/modules/pods"
	"github.com/aristath/podfund/internal/modules/spending"
	"github.com/aristath/podfund/internal/modules/suggestions"
	enginesync "github.com/aristath/podfund/internal/modules/sync"
)

var testTime = time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)

type serviceHarness struct {
	service        *EngineService
	podRepo        *pods.Repository
	ruleRepo       *automation.Repository
	suggestionRepo *suggestions.Repository
	ledgerRepo     *ledger.Repository
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// One connection keeps the in-memory database shared across queries
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newHarness(t *testing.T) *serviceHarness {
	t.Helper()
	log := zerolog.Nop()
	podsDB := openDB(t)
	ledgerDB := openDB(t)

	ledgerRepo := ledger.NewRepository(ledgerDB, log)
	podRepo := pods.NewRepository(podsDB, log)
	incomeRepo := income.NewRepository(podsDB, log)
	ruleRepo := automation.NewRepository(podsDB, log)
	suggestionRepo := suggestions.NewRepository(podsDB, log)
	for _, init := range []func() error{
		ledgerRepo.Init, podRepo.Init, incomeRepo.Init, ruleRepo.Init, suggestionRepo.Init,
	} {
		require.NoError(t, init())
	}

	orchestrator := enginesync.NewOrchestrator(
		spending.NewAnalyzer(6, log),
		income.NewAnalyzer(12, log),
		funding.NewGenerator(log),
		suggestions.NewEngine(suggestions.LevenshteinSimilarity, log),
		dashboard.NewAggregator(log),
		automation.NewEvaluator(log),
		enginesync.NewAnalysisCache(nil, log),
		0,
		log,
	)

	service := NewEngineService(
		ledgerRepo, podRepo, incomeRepo, ruleRepo, suggestionRepo,
		orchestrator, automation.NewApplier(log), events.NewBus(log), 6, log,
	)
	return &serviceHarness{
		service:        service,
		podRepo:        podRepo,
		ruleRepo:       ruleRepo,
		suggestionRepo: suggestionRepo,
		ledgerRepo:     ledgerRepo,
	}
}

func smartRule(minReview float64) domain.FundingAutomationRule {
	return domain.FundingAutomationRule{
		Name:     "track recommendation",
		IsActive: true,
		Triggers: domain.RuleTriggers{UtilizationThreshold: 80},
		Actions: domain.RuleActions{
			AdjustmentType:     domain.AdjustSmart,
			MinReviewThreshold: minReview,
		},
	}
}

func TestApplyRule_HeldBatchBecomesPendingSuggestions(t *testing.T) {
	h := newHarness(t)
	_, err := h.podRepo.Create(domain.BudgetPod{ID: "pod-1", Name: "Groceries", MonthlyAmount: 400})
	require.NoError(t, err)
	rule, err := h.ruleRepo.Create(smartRule(100))
	require.NoError(t, err)

	result := enginesync.Result{Analyses: []domain.PodFundingAnalysis{
		{PodID: "pod-1", RecommendedFunding: 600, CurrentUtilization: 90, SpendingTrend: domain.TrendIncreasing},
	}}

	application, err := h.service.ApplyRule(rule, result, testTime)
	require.NoError(t, err)
	assert.True(t, application.RequiresReview)

	// No writeback while the batch awaits review
	pod, err := h.podRepo.Get("pod-1")
	require.NoError(t, err)
	assert.InDelta(t, 400.0, pod.MonthlyAmount, 0.001)

	// The held adjustments surface in the review inbox
	pending, err := h.suggestionRepo.GetPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	held := pending[0]
	assert.Equal(t, "pod-1", held.PodID)
	assert.Equal(t, domain.ReasonAutomationRule, held.ReasonCode)
	assert.Equal(t, domain.SuggestionIncrease, held.Type)
	assert.InDelta(t, 600.0, held.SuggestedAmount, 0.001)
	assert.InDelta(t, 200.0, held.MonthlyImpact, 0.001)

	// The rule's cooldown clock still advances
	rules, err := h.ruleRepo.GetAll()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.NotNil(t, rules[0].LastTriggeredAt)
	assert.True(t, rules[0].LastTriggeredAt.Equal(testTime))
}

func TestApplyRule_AutoApprovedWritesBack(t *testing.T) {
	h := newHarness(t)
	_, err := h.podRepo.Create(domain.BudgetPod{ID: "pod-1", Name: "Groceries", MonthlyAmount: 400})
	require.NoError(t, err)
	rule, err := h.ruleRepo.Create(smartRule(0))
	require.NoError(t, err)

	result := enginesync.Result{Analyses: []domain.PodFundingAnalysis{
		{PodID: "pod-1", RecommendedFunding: 600, CurrentUtilization: 90, SpendingTrend: domain.TrendIncreasing},
	}}

	application, err := h.service.ApplyRule(rule, result, testTime)
	require.NoError(t, err)
	assert.False(t, application.RequiresReview)

	pod, err := h.podRepo.Get("pod-1")
	require.NoError(t, err)
	assert.InDelta(t, 600.0, pod.MonthlyAmount, 0.001)

	pending, err := h.suggestionRepo.GetPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApplyRuleByID_NotTriggered(t *testing.T) {
	h := newHarness(t)
	_, err := h.podRepo.Create(domain.BudgetPod{ID: "pod-1", Name: "Groceries", MonthlyAmount: 400})
	require.NoError(t, err)
	rule, err := h.ruleRepo.Create(smartRule(0))
	require.NoError(t, err)

	// No transactions: utilization never crosses the rule's threshold
	_, err = h.service.ApplyRuleByID(rule.ID, testTime)
	assert.ErrorContains(t, err, "not triggered")
}
