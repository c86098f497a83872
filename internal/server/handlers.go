package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/podfund/internal/domain"
	"github.com/aristath/podfund/internal/services"
)

// APIHandlers exposes the funding intelligence engine over JSON
type APIHandlers struct {
	engine *services.EngineService
	log    zerolog.Logger
}

// NewAPIHandlers creates the API handlers
func NewAPIHandlers(engine *services.EngineService, log zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		engine: engine,
		log:    log.With().Str("component", "api_handlers").Logger(),
	}
}

// RegisterRoutes registers all engine routes
func (h *APIHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/pods", func(r chi.Router) {
		r.Get("/analyses", h.HandleGetAnalyses)
		r.Get("/{id}/analysis", h.HandleGetPodAnalysis)
	})

	r.Route("/suggestions", func(r chi.Router) {
		r.Get("/", h.HandleGetSuggestions)
		r.Post("/{id}/approve", h.resolveSuggestion(domain.StatusApproved))
		r.Post("/{id}/reject", h.resolveSuggestion(domain.StatusRejected))
		r.Post("/{id}/apply", h.resolveSuggestion(domain.StatusApplied))
	})

	r.Get("/dashboard", h.HandleGetDashboard)

	r.Route("/rules", func(r chi.Router) {
		r.Get("/", h.HandleGetRules)
		r.Post("/{id}/evaluate", h.HandleEvaluateRule)
		r.Post("/{id}/apply", h.HandleApplyRule)
	})

	r.Route("/sync", func(r chi.Router) {
		r.Post("/transactions", h.HandleSyncTransactions)
		r.Post("/income", h.HandleSyncIncome)
		r.Post("/pods", h.HandleSyncPods)
	})
}

// HandleGetAnalyses recomputes and returns all pod analyses
func (h *APIHandlers) HandleGetAnalyses(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RefreshAll(time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to refresh analyses")
		http.Error(w, "Failed to refresh analyses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"analyses":        result.Analyses,
		"income_patterns": result.IncomePatterns,
		"triggered_rules": result.TriggeredRules,
	})
}

// HandleGetPodAnalysis recomputes and returns one pod's analysis
func (h *APIHandlers) HandleGetPodAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.engine.OnPodChange([]string{id}, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("pod_id", id).Msg("Failed to analyze pod")
		http.Error(w, "Failed to analyze pod", http.StatusInternalServerError)
		return
	}
	for _, analysis := range result.Analyses {
		if analysis.PodID == id {
			writeJSON(w, analysis)
			return
		}
	}
	http.Error(w, "Pod not found", http.StatusNotFound)
}

// HandleGetSuggestions returns the suggestion inbox.
// ?pending=true restricts to pending suggestions.
func (h *APIHandlers) HandleGetSuggestions(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	list, err := h.engine.Suggestions(pendingOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load suggestions")
		http.Error(w, "Failed to load suggestions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"suggestions": list})
}

// HandleGetDashboard recomputes and returns the portfolio snapshot
func (h *APIHandlers) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.RefreshAll(time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute dashboard metrics")
		http.Error(w, "Failed to compute dashboard metrics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result.Metrics)
}

// HandleGetRules returns the configured automation rules
func (h *APIHandlers) HandleGetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.engine.Rules()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load rules")
		http.Error(w, "Failed to load rules", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"rules": rules})
}

// HandleEvaluateRule reports whether a rule would fire against the
// current analyses, without applying it
func (h *APIHandlers) HandleEvaluateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.engine.RefreshAll(time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("rule_id", id).Msg("Failed to evaluate rule")
		http.Error(w, "Failed to evaluate rule", http.StatusInternalServerError)
		return
	}
	triggered := false
	for _, rule := range result.TriggeredRules {
		if rule.ID == id {
			triggered = true
			break
		}
	}
	writeJSON(w, map[string]interface{}{"rule_id": id, "triggered": triggered})
}

// HandleApplyRule applies one triggered automation rule
func (h *APIHandlers) HandleApplyRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	application, err := h.engine.ApplyRuleByID(id, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("rule_id", id).Msg("Failed to apply rule")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, application)
}

type syncTransactionsRequest struct {
	PodIDs []string `json:"pod_ids"`
}

// HandleSyncTransactions re-analyzes the pods touched by new transactions
func (h *APIHandlers) HandleSyncTransactions(w http.ResponseWriter, r *http.Request) {
	var req syncTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.engine.OnTransactionChange(req.PodIDs, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Transaction sync failed")
		http.Error(w, "Transaction sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

type syncIncomeRequest struct {
	SourceID         string  `json:"source_id"`
	ChangePercentage float64 `json:"change_percentage"`
}

// HandleSyncIncome re-analyzes all pods after an income change
func (h *APIHandlers) HandleSyncIncome(w http.ResponseWriter, r *http.Request) {
	var req syncIncomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.engine.OnIncomeChange(req.SourceID, req.ChangePercentage, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Income sync failed")
		http.Error(w, "Income sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

type syncPodsRequest struct {
	PodIDs []string `json:"pod_ids"`
}

// HandleSyncPods re-analyzes edited pods
func (h *APIHandlers) HandleSyncPods(w http.ResponseWriter, r *http.Request) {
	var req syncPodsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	result, err := h.engine.OnPodChange(req.PodIDs, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Msg("Pod sync failed")
		http.Error(w, "Pod sync failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (h *APIHandlers) resolveSuggestion(status domain.SuggestionStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := h.engine.ResolveSuggestion(id, status); err != nil {
			h.log.Error().Err(err).Str("suggestion_id", id).Msg("Failed to resolve suggestion")
			http.Error(w, "Failed to resolve suggestion", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"id": id, "status": string(status)})
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
