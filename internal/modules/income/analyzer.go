// Package income analyzes income stream stability and provides the
// income source repository.
package income

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/podfund/internal/domain"
)

const (
	// DefaultWindowMonths is the default income analysis window
	DefaultWindowMonths = 12

	// Defaults for configured-but-unobserved sources: an income source
	// with no matching transactions is assumed moderately stable, and
	// its reliability reflects whether it is still marked active.
	unobservedStability          = 50
	unobservedReliabilityActive  = 75
	unobservedReliabilityDormant = 25

	stabilityWeight  = 0.7
	reliabilityBonus = 30
)

// Analyzer computes per-source income stability statistics.
// Stateless; safe for concurrent use.
type Analyzer struct {
	windowMonths int
	log          zerolog.Logger
}

// NewAnalyzer creates an income pattern analyzer. windowMonths <= 0
// falls back to the default window.
func NewAnalyzer(windowMonths int, log zerolog.Logger) *Analyzer {
	if windowMonths <= 0 {
		windowMonths = DefaultWindowMonths
	}
	return &Analyzer{
		windowMonths: windowMonths,
		log:          log.With().Str("module", "income").Logger(),
	}
}

// Analyze computes the income pattern for one source over the window
// ending at now. Sources with no observed transactions receive
// configured-but-unobserved defaults rather than zeroes.
func (a *Analyzer) Analyze(source domain.IncomeSource, transactions []domain.Transaction, now time.Time) domain.IncomePattern {
	cutoff := now.AddDate(0, -a.windowMonths, 0)
	series := monthlyIncomeTotals(source, transactions, cutoff, now)

	if len(series) == 0 {
		reliability := float64(unobservedReliabilityDormant)
		if source.IsActive {
			reliability = unobservedReliabilityActive
		}
		return domain.IncomePattern{
			SourceID:    source.ID,
			Stability:   unobservedStability,
			Reliability: reliability,
		}
	}

	mean := stat.Mean(series, nil)
	stability := stabilityScore(series, mean)

	pattern := domain.IncomePattern{
		SourceID:    source.ID,
		Stability:   stability,
		GrowthRate:  growthRate(series),
		Reliability: reliabilityScore(stability, mean, source.NetAmount),
		Observed:    true,
	}

	a.log.Debug().
		Str("source_id", source.ID).
		Int("months", len(series)).
		Float64("stability", pattern.Stability).
		Float64("reliability", pattern.Reliability).
		Msg("Income pattern analyzed")

	return pattern
}

// matches reports whether a transaction belongs to the income source,
// by external account id first, name substring second.
func matches(source domain.IncomeSource, tx domain.Transaction) bool {
	if tx.ExternalAccountID != "" && tx.ExternalAccountID == source.ID {
		return true
	}
	name := strings.ToLower(strings.TrimSpace(source.Name))
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(tx.Description), name) ||
		strings.Contains(strings.ToLower(tx.Category), name)
}

// monthlyIncomeTotals groups income amounts by calendar month, ordered
// chronologically.
func monthlyIncomeTotals(source domain.IncomeSource, transactions []domain.Transaction, cutoff, now time.Time) []float64 {
	byMonth := make(map[int]float64)
	for _, tx := range transactions {
		if tx.Type != domain.TransactionIncome {
			continue
		}
		if tx.Date.Before(cutoff) || tx.Date.After(now) {
			continue
		}
		if !matches(source, tx) {
			continue
		}
		amount := tx.Amount
		if amount < 0 {
			amount = -amount
		}
		byMonth[tx.Date.Year()*100+int(tx.Date.Month())] += amount
	}

	keys := make([]int, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	series := make([]float64, 0, len(keys))
	for _, k := range keys {
		series = append(series, byMonth[k])
	}
	return series
}

// stabilityScore inverts the coefficient of variation: 100 = perfectly
// steady income, 0 = highly erratic.
func stabilityScore(series []float64, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	if len(series) < 2 {
		return 100
	}
	cv := math.Sqrt(stat.Variance(series, nil)) / mean
	score := 100 - cv*100
	if score < 0 {
		return 0
	}
	return score
}

// growthRate is the percentage change between the first-half average and
// the second-half average of the monthly series.
func growthRate(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	mid := len(series) / 2
	firstAvg := stat.Mean(series[:mid], nil)
	secondAvg := stat.Mean(series[mid:], nil)
	if firstAvg == 0 {
		return 0
	}
	return (secondAvg - firstAvg) / firstAvg * 100
}

// reliabilityScore blends stability with how closely observed income
// matches the configured expectation.
func reliabilityScore(stability, actual, expected float64) float64 {
	fulfilment := 1.0
	if expected > 0 {
		fulfilment = math.Min(actual/expected, 1)
	}
	return stability*stabilityWeight + fulfilment*reliabilityBonus
}
