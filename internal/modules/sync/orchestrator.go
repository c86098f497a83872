// Package sync decides which pods need re-analysis when transactions,
// income or pods change, and re-runs the engine incrementally.
package sync

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
	"github.com/aristath/podfund/internal/modules/automation"
	"github.com/aristath/podfund/internal/modules/dashboard"
	"github.com/aristath/podfund/internal/modules/funding"
	"github.com/aristath/podfund/internal/modules/income"
	"github.com/aristath/podfund/internal/modules/spending"
	"github.com/aristath/podfund/internal/modules/suggestions"
)

const (
	// DefaultMaxAnalysisAge is the staleness horizon for cached analyses
	DefaultMaxAnalysisAge = 24 * time.Hour

	// incomeRescaleTrigger is the income change (percent) beyond which
	// suggested amounts are rescaled
	incomeRescaleTrigger = 10.0
	// incomeRescaleCapUp / incomeRescaleCapDown cap the rescale factor
	incomeRescaleCapUp   = 20.0
	incomeRescaleCapDown = 15.0
)

// Inputs is the read-only snapshot of host-owned collections the
// orchestrator computes over.
type Inputs struct {
	Pods               []domain.BudgetPod
	Transactions       []domain.Transaction
	IncomeSources      []domain.IncomeSource
	Rules              []domain.FundingAutomationRule
	PendingSuggestions []domain.FundingSuggestion
	// PodTags optionally injects classification tags per pod id for the
	// category-match fallback
	PodTags map[string][]string
}

// Result is one full engine pass over the affected pods
type Result struct {
	Analyses       []domain.PodFundingAnalysis
	IncomePatterns []domain.IncomePattern
	Suggestions    []domain.FundingSuggestion
	Metrics        domain.PodFundingDashboardMetrics
	TriggeredRules []domain.FundingAutomationRule
}

// Orchestrator wires the analyzers, generator, suggestion engine,
// aggregator and rule evaluator behind change-event entry points.
// It owns no state beyond the caller-provided analysis cache.
type Orchestrator struct {
	spendingAnalyzer *spending.Analyzer
	incomeAnalyzer   *income.Analyzer
	generator        *funding.Generator
	engine           *suggestions.Engine
	aggregator       *dashboard.Aggregator
	evaluator        *automation.Evaluator
	cache            *AnalysisCache
	maxAnalysisAge   time.Duration
	log              zerolog.Logger
}

// NewOrchestrator creates a sync orchestrator. The cache may be nil, in
// which case every entry point recomputes from scratch. maxAnalysisAge
// <= 0 falls back to the default staleness horizon.
func NewOrchestrator(
	spendingAnalyzer *spending.Analyzer,
	incomeAnalyzer *income.Analyzer,
	generator *funding.Generator,
	engine *suggestions.Engine,
	aggregator *dashboard.Aggregator,
	evaluator *automation.Evaluator,
	cache *AnalysisCache,
	maxAnalysisAge time.Duration,
	log zerolog.Logger,
) *Orchestrator {
	if maxAnalysisAge <= 0 {
		maxAnalysisAge = DefaultMaxAnalysisAge
	}
	return &Orchestrator{
		spendingAnalyzer: spendingAnalyzer,
		incomeAnalyzer:   incomeAnalyzer,
		generator:        generator,
		engine:           engine,
		aggregator:       aggregator,
		evaluator:        evaluator,
		cache:            cache,
		maxAnalysisAge:   maxAnalysisAge,
		log:              log.With().Str("module", "sync").Logger(),
	}
}

// OnTransactionChange re-analyzes only the pods touched by the changed
// transactions. Pods with no fresh data keep their cached analyses.
func (o *Orchestrator) OnTransactionChange(inputs Inputs, affectedPodIDs []string, now time.Time) Result {
	o.log.Debug().Int("affected_pods", len(affectedPodIDs)).Msg("Transaction change sync")
	return o.run(inputs, podSet(affectedPodIDs), automation.EvaluationContext{Now: now}, now)
}

// OnPodChange re-analyzes the edited pods only
func (o *Orchestrator) OnPodChange(inputs Inputs, changedPodIDs []string, now time.Time) Result {
	o.log.Debug().Int("changed_pods", len(changedPodIDs)).Msg("Pod change sync")
	return o.run(inputs, podSet(changedPodIDs), automation.EvaluationContext{Now: now}, now)
}

// OnIncomeChange re-analyzes every pod, since funding capacity is
// portfolio-wide, and rescales suggested amounts when the observed
// income change exceeds the trigger band.
func (o *Orchestrator) OnIncomeChange(inputs Inputs, incomeChangePercentage float64, now time.Time) Result {
	o.log.Debug().Float64("income_change_pct", incomeChangePercentage).Msg("Income change sync")
	ctx := automation.EvaluationContext{Now: now, IncomeChangePercentage: incomeChangePercentage}
	result := o.run(inputs, nil, ctx, now)
	result.Suggestions = rescaleForIncomeChange(result.Suggestions, incomeChangePercentage)
	return result
}

// RefreshStale re-analyzes only the pods whose cached analysis is
// missing, older than the staleness horizon, or predated by a pod
// transaction. Fresh cached analyses are served as-is.
func (o *Orchestrator) RefreshStale(inputs Inputs, now time.Time) Result {
	stale := make(map[string]bool, len(inputs.Pods))
	for _, pod := range inputs.Pods {
		if o.cache == nil {
			stale[pod.ID] = true
			continue
		}
		entry, ok := o.cache.Get(pod.ID)
		if !ok || ShouldUpdatePodAnalysis(entry.Analysis, inputs.Transactions, o.maxAnalysisAge, now) {
			stale[pod.ID] = true
		}
	}
	o.log.Debug().Int("stale_pods", len(stale)).Int("total_pods", len(inputs.Pods)).Msg("Staleness sweep")
	return o.run(inputs, stale, automation.EvaluationContext{Now: now}, now)
}

// run executes the full pipeline. affected == nil means all pods.
// Cached analyses for unaffected pods are only served while they pass
// the staleness check; a stale entry is recomputed in place.
func (o *Orchestrator) run(inputs Inputs, affected map[string]bool, ctx automation.EvaluationContext, now time.Time) Result {
	analyses := make([]domain.PodFundingAnalysis, 0, len(inputs.Pods))
	for _, pod := range inputs.Pods {
		if affected != nil && !affected[pod.ID] && o.cache != nil {
			if entry, ok := o.cache.Get(pod.ID); ok &&
				!ShouldUpdatePodAnalysis(entry.Analysis, inputs.Transactions, o.maxAnalysisAge, now) {
				analyses = append(analyses, entry.Analysis)
				continue
			}
		}
		analysis := o.analyzePod(pod, inputs, now)
		analyses = append(analyses, analysis)
		o.storeAnalysis(pod.ID, analysis, inputs)
	}

	incomePatterns := make([]domain.IncomePattern, 0, len(inputs.IncomeSources))
	for _, source := range inputs.IncomeSources {
		incomePatterns = append(incomePatterns, o.incomeAnalyzer.Analyze(source, inputs.Transactions, now))
	}

	candidates := o.engine.Generate(inputs.Pods, analyses, now)
	candidates = o.engine.FilterDuplicates(candidates, inputs.PendingSuggestions)

	return Result{
		Analyses:       analyses,
		IncomePatterns: incomePatterns,
		Suggestions:    candidates,
		Metrics:        o.aggregator.Aggregate(inputs.Pods, analyses, candidates, inputs.Rules),
		TriggeredRules: o.evaluator.Evaluate(inputs.Rules, analyses, ctx),
	}
}

// storeAnalysis writes a recomputed analysis back through the cache's
// compare-and-swap, so a concurrent recompute that already advanced the
// entry is not clobbered.
func (o *Orchestrator) storeAnalysis(podID string, analysis domain.PodFundingAnalysis, inputs Inputs) {
	if o.cache == nil {
		return
	}
	expect := time.Time{}
	if prior, ok := o.cache.Get(podID); ok {
		expect = prior.LastTransactionAt
	}
	if !o.cache.Swap(podID, expect, analysis, latestTransactionAt(podID, inputs.Transactions)) {
		o.log.Debug().Str("pod_id", podID).Msg("Cache entry advanced concurrently, keeping the newer analysis")
	}
}

func (o *Orchestrator) analyzePod(pod domain.BudgetPod, inputs Inputs, now time.Time) domain.PodFundingAnalysis {
	matcher := spending.NewPodMatcher(pod, inputs.PodTags[pod.ID]...)
	pattern := o.spendingAnalyzer.Analyze(matcher, inputs.Transactions, now)
	return o.generator.Generate(pod, pattern, now)
}

// ShouldUpdatePodAnalysis is the staleness contract: true when the
// analysis is older than maxAge or any pod transaction postdates it.
// Actual caching is the caller's responsibility.
func ShouldUpdatePodAnalysis(analysis domain.PodFundingAnalysis, transactions []domain.Transaction, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAnalysisAge
	}
	if now.Sub(analysis.LastAnalyzed) > maxAge {
		return true
	}
	for _, tx := range transactions {
		if tx.BudgetPodID == analysis.PodID && tx.Date.After(analysis.LastAnalyzed) {
			return true
		}
	}
	return false
}

// rescaleForIncomeChange proportionally adjusts suggested amounts after
// a significant income shift: capped at +20% for rising income, -15%
// for falling income. Touched suggestions are tagged income_change.
func rescaleForIncomeChange(list []domain.FundingSuggestion, changePercentage float64) []domain.FundingSuggestion {
	if math.Abs(changePercentage) <= incomeRescaleTrigger {
		return list
	}
	factor := 1.0
	if changePercentage > 0 {
		factor = 1 + math.Min(changePercentage, incomeRescaleCapUp)/100
	} else {
		factor = 1 - math.Min(-changePercentage, incomeRescaleCapDown)/100
	}

	rescaled := make([]domain.FundingSuggestion, len(list))
	for i, suggestion := range list {
		suggestion.SuggestedAmount *= factor
		if suggestion.SuggestedAmount < 0 {
			suggestion.SuggestedAmount = 0
		}
		suggestion.MonthlyImpact = suggestion.SuggestedAmount - suggestion.CurrentAmount
		suggestion.ReasonCode = domain.ReasonIncomeChange
		rescaled[i] = suggestion
	}
	return rescaled
}

// latestTransactionAt finds the newest transaction timestamp linked to a pod
func latestTransactionAt(podID string, transactions []domain.Transaction) time.Time {
	var latest time.Time
	for _, tx := range transactions {
		if tx.BudgetPodID == podID && tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	return latest
}

func podSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
