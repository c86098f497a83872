// Package spending analyzes historical per-pod spending patterns.
package spending

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
	// DefaultWindowMonths is the default analysis window
	DefaultWindowMonths = 6
	// trendSlopeThreshold is the minimum |slope| to classify a trend as
	// increasing or decreasing rather than stable
	trendSlopeThreshold = 0.1
	// outlierSigma is the deviation (in standard deviations) beyond which
	// a monthly total is reported as an outlier
	outlierSigma = 2.0
	// seasonalityMinPoints is the minimum number of monthly data points
	// required before per-calendar-month seasonality is computed
	seasonalityMinPoints = 12
)

// PodMatcher associates transactions with a pod. Explicit BudgetPodID
// linkage always wins; the classification-tag substring match is a
// fallback for transactions that carry no pod link.
type PodMatcher struct {
	PodID string
	// ClassificationTags are matched as substrings against the
	// transaction category (case-insensitive). Injected by the caller so
	// keyword lists never live inside the engine.
	ClassificationTags []string
}

// NewPodMatcher builds a matcher for a pod, seeding the tag set with the
// pod's normalized name.
func NewPodMatcher(pod domain.BudgetPod, extraTags ...string) PodMatcher {
	tags := make([]string, 0, len(extraTags)+1)
	if name := strings.ToLower(strings.TrimSpace(pod.Name)); name != "" {
		tags = append(tags, name)
	}
	for _, t := range extraTags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return PodMatcher{PodID: pod.ID, ClassificationTags: tags}
}

// Matches reports whether a transaction belongs to the matcher's pod
func (m PodMatcher) Matches(tx domain.Transaction) bool {
	if tx.BudgetPodID != "" {
		return tx.BudgetPodID == m.PodID
	}
	category := strings.ToLower(tx.Category)
	if category == "" {
		return false
	}
	for _, tag := range m.ClassificationTags {
		if strings.Contains(category, tag) {
			return true
		}
	}
	return false
}

// Analyzer computes per-pod monthly spending statistics from a
// transaction window. Stateless; safe for concurrent use.
type Analyzer struct {
	windowMonths int
	log          zerolog.Logger
}

// NewAnalyzer creates a spending pattern analyzer. windowMonths <= 0
// falls back to the default window.
func NewAnalyzer(windowMonths int, log zerolog.Logger) *Analyzer {
	if windowMonths <= 0 {
		windowMonths = DefaultWindowMonths
	}
	return &Analyzer{
		windowMonths: windowMonths,
		log:          log.With().Str("module", "spending").Logger(),
	}
}

// Analyze computes the spending pattern for one pod over the analyzer's
// window, ending at now. Missing data degrades to zeroed defaults; no
// error paths exist.
func (a *Analyzer) Analyze(matcher PodMatcher, transactions []domain.Transaction, now time.Time) domain.SpendingPattern {
	cutoff := now.AddDate(0, -a.windowMonths, 0)

	totals, count := monthlyExpenseTotals(matcher, transactions, cutoff, now)

	pattern := domain.SpendingPattern{
		PodID:            matcher.PodID,
		Trend:            domain.TrendStable,
		Outliers:         []float64{},
		Seasonality:      []domain.MonthlyFactor{},
		TransactionCount: count,
	}
	if len(totals) == 0 {
		return pattern
	}

	series := make([]float64, len(totals))
	for i, mt := range totals {
		series[i] = mt.total
	}
	pattern.MonthlyTotals = series

	pattern.MonthlyAverage = stat.Mean(series, nil)
	if len(series) >= 2 {
		// gonum's Variance is Bessel-corrected (divisor n-1)
		pattern.Variance = stat.Variance(series, nil)
	}
	pattern.Trend = classifyTrend(series)
	pattern.Consistency = consistency(pattern.MonthlyAverage, pattern.Variance)
	pattern.Outliers = outliers(series, pattern.MonthlyAverage, pattern.Variance)
	if len(series) >= seasonalityMinPoints {
		pattern.Seasonality = seasonality(totals)
	}

	a.log.Debug().
		Str("pod_id", matcher.PodID).
		Int("months", len(series)).
		Float64("monthly_average", pattern.MonthlyAverage).
		Str("trend", string(pattern.Trend)).
		Msg("Spending pattern analyzed")

	return pattern
}

// WindowMonths returns the analyzer's configured window length
func (a *Analyzer) WindowMonths() int {
	return a.windowMonths
}

type monthTotal struct {
	year  int
	month time.Month
	total float64
}

// monthlyExpenseTotals groups absolute expense amounts by calendar month,
// ordered chronologically. Returns the totals plus the matched
// transaction count.
func monthlyExpenseTotals(matcher PodMatcher, transactions []domain.Transaction, cutoff, now time.Time) ([]monthTotal, int) {
	byMonth := make(map[int]float64)
	count := 0
	for _, tx := range transactions {
		if tx.Type != domain.TransactionExpense {
			continue
		}
		if tx.Date.Before(cutoff) || tx.Date.After(now) {
			continue
		}
		if !matcher.Matches(tx) {
			continue
		}
		amount := tx.Amount
		if amount < 0 {
			amount = -amount
		}
		key := tx.Date.Year()*100 + int(tx.Date.Month())
		byMonth[key] += amount
		count++
	}

	keys := make([]int, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	totals := make([]monthTotal, 0, len(keys))
	for _, k := range keys {
		totals = append(totals, monthTotal{
			year:  k / 100,
			month: time.Month(k % 100),
			total: byMonth[k],
		})
	}
	return totals, count
}

// classifyTrend fits a least-squares line to the monthly totals indexed
// 1..n and classifies the slope direction.
func classifyTrend(series []float64) domain.SpendingTrend {
	if len(series) < 2 {
		return domain.TrendStable
	}
	xs := make([]float64, len(series))
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	_, slope := stat.LinearRegression(xs, series, nil, false)
	switch {
	case slope >= trendSlopeThreshold:
		return domain.TrendIncreasing
	case slope <= -trendSlopeThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// consistency scores how steady monthly spend is: 100 = perfectly
// steady, 0 = highly volatile or no spend at all.
func consistency(mean, variance float64) float64 {
	if mean <= 0 {
		return 0
	}
	score := 100 - (stdDev(variance)/mean)*100
	if score < 0 {
		return 0
	}
	return score
}

// outliers returns monthly totals deviating more than outlierSigma
// standard deviations from the mean.
func outliers(series []float64, mean, variance float64) []float64 {
	result := []float64{}
	sd := stdDev(variance)
	if sd == 0 {
		return result
	}
	for _, v := range series {
		diff := v - mean
		if diff < 0 {
			diff = -diff
		}
		if diff > outlierSigma*sd {
			result = append(result, v)
		}
	}
	return result
}

// seasonality averages totals per calendar month, ordered January..December
func seasonality(totals []monthTotal) []domain.MonthlyFactor {
	sums := make(map[time.Month]float64)
	counts := make(map[time.Month]int)
	for _, mt := range totals {
		sums[mt.month] += mt.total
		counts[mt.month]++
	}
	factors := make([]domain.MonthlyFactor, 0, len(sums))
	for m := time.January; m <= time.December; m++ {
		if counts[m] == 0 {
			continue
		}
		factors = append(factors, domain.MonthlyFactor{
			Month:   m,
			Average: sums[m] / float64(counts[m]),
		})
	}
	return factors
}

func stdDev(variance float64) float64 {
	if variance <= 0 {
		return 0
	}
	return math.Sqrt(variance)
}
