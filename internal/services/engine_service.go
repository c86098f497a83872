// Package services wires repositories, the funding intelligence engine
// and the event bus into host-facing operations.
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
	"github.com/aristath/podfund/internal/events"
	"github.com/aristath/podfund/internal/modules/automation"
	"github.com/aristath/podfund/internal/modules/income"
	"github.com/aristath/podfund/internal/modules/ledger"
	"github.com/aristath/podfund/internal/modules/pods"
	"github.com/aristath/podfund/internal/modules/suggestions"
	enginesync "github.com/aristath/podfund/internal/modules/sync"
)

// EngineService runs the funding intelligence pipeline over persisted
// data and stores the derived suggestions. The engine modules stay
// pure; all I/O lives here.
type EngineService struct {
	ledgerRepo     *ledger.Repository
	podRepo        *pods.Repository
	incomeRepo     *income.Repository
	ruleRepo       *automation.Repository
	suggestionRepo *suggestions.Repository
	orchestrator   *enginesync.Orchestrator
	applier        *automation.Applier
	bus            *events.Bus
	windowMonths   int
	log            zerolog.Logger
}

// NewEngineService creates the engine service
func NewEngineService(
	ledgerRepo *ledger.Repository,
	podRepo *pods.Repository,
	incomeRepo *income.Repository,
	ruleRepo *automation.Repository,
	suggestionRepo *suggestions.Repository,
	orchestrator *enginesync.Orchestrator,
	applier *automation.Applier,
	bus *events.Bus,
	windowMonths int,
	log zerolog.Logger,
) *EngineService {
	return &EngineService{
		ledgerRepo:     ledgerRepo,
		podRepo:        podRepo,
		incomeRepo:     incomeRepo,
		ruleRepo:       ruleRepo,
		suggestionRepo: suggestionRepo,
		orchestrator:   orchestrator,
		applier:        applier,
		bus:            bus,
		windowMonths:   windowMonths,
		log:            log.With().Str("service", "engine").Logger(),
	}
}

// RefreshAll recomputes every pod and persists the outcome
func (s *EngineService) RefreshAll(now time.Time) (enginesync.Result, error) {
	inputs, err := s.loadInputs(now)
	if err != nil {
		return enginesync.Result{}, err
	}
	result := s.orchestrator.OnPodChange(inputs, allPodIDs(inputs.Pods), now)
	return result, s.persist(result, now)
}

// RefreshStale recomputes only the pods whose cached analysis fails the
// staleness check, then persists the outcome. This is the periodic
// sweep's entry point; fresh pods are served from the cache.
func (s *EngineService) RefreshStale(now time.Time) (enginesync.Result, error) {
	inputs, err := s.loadInputs(now)
	if err != nil {
		return enginesync.Result{}, err
	}
	result := s.orchestrator.RefreshStale(inputs, now)
	return result, s.persist(result, now)
}

// OnTransactionChange recomputes the pods touched by new transactions
func (s *EngineService) OnTransactionChange(affectedPodIDs []string, now time.Time) (enginesync.Result, error) {
	inputs, err := s.loadInputs(now)
	if err != nil {
		return enginesync.Result{}, err
	}
	result := s.orchestrator.OnTransactionChange(inputs, affectedPodIDs, now)
	if err := s.persist(result, now); err != nil {
		return result, err
	}
	s.bus.Publish(&events.TransactionsChangedData{PodIDs: affectedPodIDs, Count: len(inputs.Transactions)})
	return result, nil
}

// OnIncomeChange recomputes all pods after an income shift
func (s *EngineService) OnIncomeChange(sourceID string, changePercentage float64, now time.Time) (enginesync.Result, error) {
	inputs, err := s.loadInputs(now)
	if err != nil {
		return enginesync.Result{}, err
	}
	result := s.orchestrator.OnIncomeChange(inputs, changePercentage, now)
	if err := s.persist(result, now); err != nil {
		return result, err
	}
	s.bus.Publish(&events.IncomeChangedData{SourceID: sourceID, ChangePercentage: changePercentage})
	return result, nil
}

// OnPodChange recomputes the edited pods
func (s *EngineService) OnPodChange(changedPodIDs []string, now time.Time) (enginesync.Result, error) {
	inputs, err := s.loadInputs(now)
	if err != nil {
		return enginesync.Result{}, err
	}
	result := s.orchestrator.OnPodChange(inputs, changedPodIDs, now)
	if err := s.persist(result, now); err != nil {
		return result, err
	}
	s.bus.Publish(&events.PodChangedData{PodIDs: changedPodIDs})
	return result, nil
}

// ApplyRule computes capped adjustments for one triggered rule and
// writes approved amounts back to the pods. Batches requiring review
// get no writeback; their adjustments are stored as pending suggestions
// so they surface in the review inbox.
func (s *EngineService) ApplyRule(rule domain.FundingAutomationRule, result enginesync.Result, now time.Time) (domain.RuleApplication, error) {
	pods, err := s.podRepo.GetAll()
	if err != nil {
		return domain.RuleApplication{}, fmt.Errorf("failed to load pods for rule application: %w", err)
	}

	application := s.applier.Apply(rule, pods, result.Analyses)

	if err := s.ruleRepo.MarkTriggered(rule.ID, now); err != nil {
		return application, err
	}
	s.bus.Publish(&events.RuleTriggeredData{
		RuleID:         rule.ID,
		Adjustments:    len(application.Adjustments),
		RequiresReview: application.RequiresReview,
	})

	if application.RequiresReview {
		s.log.Info().Str("rule_id", rule.ID).Msg("Rule application held for review")
		if err := s.suggestionRepo.Save(reviewSuggestions(application, now)); err != nil {
			return application, err
		}
		return application, nil
	}

	for _, adjustment := range application.Adjustments {
		if err := s.podRepo.UpdateMonthlyAmount(adjustment.PodID, adjustment.NewAmount); err != nil {
			return application, err
		}
	}
	return application, nil
}

// ApplyRuleByID refreshes the portfolio and applies one rule, provided
// the current analyses actually trigger it.
func (s *EngineService) ApplyRuleByID(id string, now time.Time) (domain.RuleApplication, error) {
	result, err := s.RefreshAll(now)
	if err != nil {
		return domain.RuleApplication{}, err
	}
	for _, rule := range result.TriggeredRules {
		if rule.ID == id {
			return s.ApplyRule(rule, result, now)
		}
	}
	return domain.RuleApplication{}, fmt.Errorf("rule %s is not triggered by the current analyses", id)
}

// ResolveSuggestion transitions a suggestion's status. Applying a
// suggestion writes its suggested amount back to the pod, which becomes
// the next analysis cycle's input.
func (s *EngineService) ResolveSuggestion(id string, status domain.SuggestionStatus) error {
	if status == domain.StatusApplied {
		all, err := s.suggestionRepo.GetAll()
		if err != nil {
			return err
		}
		for _, suggestion := range all {
			if suggestion.ID != id {
				continue
			}
			if err := s.podRepo.UpdateMonthlyAmount(suggestion.PodID, suggestion.SuggestedAmount); err != nil {
				return err
			}
			break
		}
	}
	return s.suggestionRepo.UpdateStatus(id, status)
}

// Rules returns the configured automation rules
func (s *EngineService) Rules() ([]domain.FundingAutomationRule, error) {
	return s.ruleRepo.GetAll()
}

// Suggestions returns the stored suggestion inbox
func (s *EngineService) Suggestions(pendingOnly bool) ([]domain.FundingSuggestion, error) {
	if pendingOnly {
		return s.suggestionRepo.GetPending()
	}
	return s.suggestionRepo.GetAll()
}

func (s *EngineService) loadInputs(now time.Time) (enginesync.Inputs, error) {
	// Transactions are loaded a little past the window so monthly
	// grouping at the boundary stays correct
	cutoff := now.AddDate(0, -(s.windowMonths + 1), 0)
	transactions, err := s.ledgerRepo.GetSince(cutoff)
	if err != nil {
		return enginesync.Inputs{}, err
	}
	podList, err := s.podRepo.GetAll()
	if err != nil {
		return enginesync.Inputs{}, err
	}
	sources, err := s.incomeRepo.GetAll()
	if err != nil {
		return enginesync.Inputs{}, err
	}
	rules, err := s.ruleRepo.GetAll()
	if err != nil {
		return enginesync.Inputs{}, err
	}
	pending, err := s.suggestionRepo.GetPending()
	if err != nil {
		return enginesync.Inputs{}, err
	}
	return enginesync.Inputs{
		Pods:               podList,
		Transactions:       transactions,
		IncomeSources:      sources,
		Rules:              rules,
		PendingSuggestions: pending,
	}, nil
}

func (s *EngineService) persist(result enginesync.Result, now time.Time) error {
	if err := s.suggestionRepo.Save(result.Suggestions); err != nil {
		return err
	}
	for _, suggestion := range result.Suggestions {
		s.bus.Publish(&events.SuggestionCreatedData{
			SuggestionID: suggestion.ID,
			PodID:        suggestion.PodID,
			Type:         string(suggestion.Type),
			Priority:     string(suggestion.Priority),
			Impact:       suggestion.MonthlyImpact,
		})
	}
	s.bus.Publish(&events.AnalysisRefreshedData{
		PodsAnalyzed:     len(result.Analyses),
		SuggestionsFound: len(result.Suggestions),
		RulesTriggered:   len(result.TriggeredRules),
	})
	s.log.Info().
		Int("analyses", len(result.Analyses)).
		Int("suggestions", len(result.Suggestions)).
		Int("rules_triggered", len(result.TriggeredRules)).
		Time("at", now).
		Msg("Engine pass persisted")
	return nil
}

// reviewSuggestions converts a held rule application into pending
// suggestions for the review inbox, tagged with the automation_rule
// reason code.
func reviewSuggestions(application domain.RuleApplication, now time.Time) []domain.FundingSuggestion {
	list := make([]domain.FundingSuggestion, 0, len(application.Adjustments))
	for _, adjustment := range application.Adjustments {
		suggestionType := domain.SuggestionIncrease
		if adjustment.NewAmount < adjustment.CurrentAmount {
			suggestionType = domain.SuggestionDecrease
		}
		list = append(list, domain.FundingSuggestion{
			ID:              uuid.New().String(),
			PodID:           adjustment.PodID,
			Type:            suggestionType,
			Priority:        domain.PriorityHigh,
			Status:          domain.StatusPending,
			ReasonCode:      domain.ReasonAutomationRule,
			Reasoning:       []string{adjustment.Reasoning},
			CurrentAmount:   adjustment.CurrentAmount,
			SuggestedAmount: adjustment.NewAmount,
			MonthlyImpact:   adjustment.NewAmount - adjustment.CurrentAmount,
			CreatedAt:       now,
		})
	}
	return list
}

func allPodIDs(pods []domain.BudgetPod) []string {
	ids := make([]string, len(pods))
	for i, pod := range pods {
		ids[i] = pod.ID
	}
	return ids
}
