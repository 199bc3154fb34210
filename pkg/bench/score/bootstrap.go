package score

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// stratumKey identifies a (forecast_due_date, source) cell —
// the bootstrap resamples questions within each stratum independently,
// matching the upstream pipeline's groupby before its per-group
// question-level resample.
type stratumKey struct {
	forecastDueDate string
	source          string
}

// Replicate is one bootstrap draw's per-model scores for all three
// question types together, since a single resample produces all three
// scores from the same drawn rows.
type Replicate struct {
	Dataset map[string]float64
	Market  map[string]float64
	Overall map[string]float64
}

// ScoreFunc computes a leaderboard-shaped set of per-model overall
// scores from a set of scored rows, used both for the real leaderboard
// and for every bootstrap replicate. Implementations close over the
// reference data (e.g. the Naive Forecaster's Brier-by-question map)
// they need.
type ScoreFunc func(rows []ScoredRow) (dataset, market, overall map[string]float64, err error)

// Bootstrap runs n independent question-level resamples of rows,
// scoring each with scoreFn, bounded by ncpus concurrent workers.
// Replicates are commutative: the returned slice's order does not
// affect any downstream CI computation, only reproducibility of this
// particular run (seed controls which rows each replicate draws).
func Bootstrap(ctx context.Context, rows []ScoredRow, scoreFn ScoreFunc, n, ncpus int, seed int64) ([]Replicate, error) {
	byStratum := make(map[stratumKey][]string)
	rowsByQuestion := make(map[string][]ScoredRow)
	for _, r := range rows {
		rowsByQuestion[r.QuestionPK] = append(rowsByQuestion[r.QuestionPK], r)
	}
	// Build the stratum -> distinct question list after grouping rows,
	// since rowsByQuestion already de-duplicates per question_pk.
	questionsSeen := make(map[string]bool)
	for _, r := range rows {
		if questionsSeen[r.QuestionPK] {
			continue
		}
		questionsSeen[r.QuestionPK] = true
		k := stratumKey{forecastDueDate: r.ForecastDueDate, source: r.Source}
		byStratum[k] = append(byStratum[k], r.QuestionPK)
	}

	replicates := make([]Replicate, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ncpus)

	for idx := 0; idx < n; idx++ {
		idx := idx
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			rng := rand.New(rand.NewSource(seed + int64(idx)))
			drawn := drawReplicate(byStratum, rowsByQuestion, rng)

			dataset, market, overall, err := scoreFn(drawn)
			if err != nil {
				return fmt.Errorf("score: bootstrap replicate %d: %w", idx, err)
			}
			replicates[idx] = Replicate{Dataset: dataset, Market: market, Overall: overall}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return replicates, nil
}

// drawReplicate resamples, with replacement, one question per draw
// within every (forecast_due_date, source) stratum, and rewrites each
// drawn question's question_pk with a per-draw suffix so a question
// sampled more than once is treated as a distinct question by
// downstream fixed-effects estimation — otherwise repeated draws of
// the same question would collapse back into a single observation.
func drawReplicate(byStratum map[stratumKey][]string, rowsByQuestion map[string][]ScoredRow, rng *rand.Rand) []ScoredRow {
	var out []ScoredRow
	keys := make([]stratumKey, 0, len(byStratum))
	for k := range byStratum {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].forecastDueDate != keys[j].forecastDueDate {
			return keys[i].forecastDueDate < keys[j].forecastDueDate
		}
		return keys[i].source < keys[j].source
	})
	for _, k := range keys {
		questions := byStratum[k]
		n := len(questions)
		if n == 0 {
			continue
		}
		for draw := 0; draw < n; draw++ {
			q := questions[rng.Intn(n)]
			for _, r := range rowsByQuestion[q] {
				sim := r
				sim.QuestionPK = fmt.Sprintf("%s_sim_id_%d", q, draw)
				out = append(out, sim)
			}
		}
	}
	return out
}

// CIMethod selects the bootstrap confidence-interval estimator.
type CIMethod string

const (
	CIPercentile CIMethod = "percentile"
	CIBCa        CIMethod = "bca"
)

// ConfidenceInterval is the (lower, upper) bound of a 95% bootstrap CI
// for one model's score.
type ConfidenceInterval struct {
	Lower, Upper float64
}

// ConfidenceIntervals computes a 95% CI per model from its bootstrap
// replicate column, using either the simple percentile method or the
// bias-corrected-and-accelerated (BCa) method.
func ConfidenceIntervals(pointEstimate map[string]float64, replicateColumns map[string][]float64, method CIMethod) (map[string]ConfidenceInterval, error) {
	const alpha = 0.05
	lowerAlpha, upperAlpha := alpha/2, 1-alpha/2

	out := make(map[string]ConfidenceInterval, len(pointEstimate))
	for pk, theta := range pointEstimate {
		col, ok := replicateColumns[pk]
		if !ok || len(col) == 0 {
			continue
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)

		switch method {
		case CIBCa:
			lo, hi := bcaInterval(theta, sorted, lowerAlpha, upperAlpha)
			out[pk] = ConfidenceInterval{Lower: lo, Upper: hi}
		case CIPercentile, "":
			out[pk] = ConfidenceInterval{
				Lower: stat.Quantile(lowerAlpha, stat.Empirical, sorted, nil),
				Upper: stat.Quantile(upperAlpha, stat.Empirical, sorted, nil),
			}
		default:
			return nil, fmt.Errorf("score: unknown CI method %q", method)
		}
	}
	return out, nil
}

// bcaInterval implements the BCa interval of Efron & Tibshirani
// (notation per "Computer Age Statistical Inference" ch.11): the bias
// correction z0 is estimated from the fraction of bootstrap draws
// below the point estimate, without an acceleration term (the
// upstream pipeline's own implementation omits jackknife-based
// acceleration too, taking a0 = 0).
func bcaInterval(theta float64, sortedBoot []float64, lowerAlpha, upperAlpha float64) (float64, float64) {
	n := len(sortedBoot)
	below := 0
	for _, v := range sortedBoot {
		if v < theta {
			below++
		}
	}
	p0 := float64(below) / float64(n)
	p0 = clampProb(p0)

	norm := distuv.Normal{Mu: 0, Sigma: 1}
	z0 := norm.Quantile(p0)
	zLower := norm.Quantile(lowerAlpha)
	zUpper := norm.Quantile(upperAlpha)

	aLower := norm.CDF(2*z0 + zLower)
	aUpper := norm.CDF(2*z0 + zUpper)

	lo := stat.Quantile(clampProb(aLower), stat.Empirical, sortedBoot, nil)
	hi := stat.Quantile(clampProb(aUpper), stat.Empirical, sortedBoot, nil)
	return lo, hi
}

func clampProb(p float64) float64 {
	const eps = 1e-9
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

// ComparisonPValue computes a one-sided p-value for every model
// against a designated human-comparison model (e.g. the
// superforecaster or public median), per replicate column: the
// fraction of replicates in which the model's score was at least as
// good (lower Brier-type score) as the comparison model's.
// FlipForPublicComparison inverts the result, matching the upstream convention that the public
// comparison direction is reported as "has the model surpassed the
// public" rather than "is the model still behind".
func ComparisonPValue(comparisonPK string, replicateColumns map[string][]float64) (map[string]float64, error) {
	comparisonCol, ok := replicateColumns[comparisonPK]
	if !ok {
		return nil, fmt.Errorf("score: comparison model %q has no replicate column", comparisonPK)
	}

	out := make(map[string]float64, len(replicateColumns))
	for pk, col := range replicateColumns {
		if pk == comparisonPK {
			out[pk] = -1
			continue
		}
		if len(col) != len(comparisonCol) {
			return nil, fmt.Errorf("score: replicate column length mismatch for %q", pk)
		}
		count := 0
		for i := range col {
			if col[i] <= comparisonCol[i] {
				count++
			}
		}
		out[pk] = float64(count) / float64(len(col))
	}
	return out, nil
}

// FlipForPublicComparison inverts every non-sentinel p-value in place,
// for the "Public" comparison group whose one-sided test direction the
// benchmark reports inverted once LLMs have overtaken the general
// public baseline.
func FlipForPublicComparison(pvals map[string]float64) {
	for pk, v := range pvals {
		if v < 0 {
			continue
		}
		pvals[pk] = 1 - v
	}
}

// BenjaminiHochberg applies the BH false-discovery-rate adjustment to
// a set of p-values, returning adjusted values in the same key space.
func BenjaminiHochberg(pvals map[string]float64) map[string]float64 {
	type kv struct {
		key string
		p   float64
	}
	items := make([]kv, 0, len(pvals))
	for k, p := range pvals {
		items = append(items, kv{k, p})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].p < items[j].p })

	m := len(items)
	adjusted := make([]float64, m)
	minSoFar := 1.0
	for i := m - 1; i >= 0; i-- {
		rank := i + 1
		val := items[i].p * float64(m) / float64(rank)
		if val < minSoFar {
			minSoFar = val
		}
		adjusted[i] = minSoFar
	}

	out := make(map[string]float64, m)
	for i, it := range items {
		out[it.key] = adjusted[i]
	}
	return out
}

// PerformanceMetrics computes, per model, the percentage of bootstrap
// replicates in which it was the single best (lowest-score) performer
// and the percentage in which it landed in the top 5th percentile of
// that replicate's score distribution.
func PerformanceMetrics(replicates []Replicate, questionType QuestionType) (bestPct, top5Pct map[string]float64) {
	bestCount := make(map[string]int)
	top5Count := make(map[string]int)
	n := len(replicates)

	for _, rep := range replicates {
		col := selectColumn(rep, questionType)
		if len(col) == 0 {
			continue
		}
		bestPK, bestVal := "", 0.0
		first := true
		vals := make([]float64, 0, len(col))
		for pk, v := range col {
			vals = append(vals, v)
			if first || v < bestVal {
				bestVal, bestPK, first = v, pk, false
			}
		}
		bestCount[bestPK]++

		sort.Float64s(vals)
		threshold := stat.Quantile(0.05, stat.Empirical, vals, nil)
		for pk, v := range col {
			if v <= threshold {
				top5Count[pk]++
			}
		}
	}

	bestPct = make(map[string]float64, len(bestCount))
	for pk, c := range bestCount {
		bestPct[pk] = 100 * float64(c) / float64(n)
	}
	top5Pct = make(map[string]float64, len(top5Count))
	for pk, c := range top5Count {
		top5Pct[pk] = 100 * float64(c) / float64(n)
	}
	return bestPct, top5Pct
}

func selectColumn(r Replicate, qt QuestionType) map[string]float64 {
	switch qt {
	case QuestionTypeDataset:
		return r.Dataset
	case QuestionTypeMarket:
		return r.Market
	default:
		return r.Overall
	}
}

// ReplicateColumns pivots a replicate slice into a per-model slice of
// values across replicates, the shape ConfidenceIntervals and
// ComparisonPValue consume.
func ReplicateColumns(replicates []Replicate, questionType QuestionType) map[string][]float64 {
	out := make(map[string][]float64)
	for _, rep := range replicates {
		for pk, v := range selectColumn(rep, questionType) {
			out[pk] = append(out[pk], v)
		}
	}
	return out
}
