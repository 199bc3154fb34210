// Package score implements the Scoring & Leaderboard stage: Brier
// computation, difficulty adjustment via two-way fixed effects, peer
// and skill scores, x%-oracle calibration anchors, bootstrap
// confidence intervals, human-comparison significance tests, and
// final leaderboard assembly.
package score

import (
	"math"
	"sort"
)

// QuestionType partitions a scored row by the kind of question it
// forecasts, mirroring the benchmark's dataset/market split.
type QuestionType string

const (
	QuestionTypeDataset QuestionType = "dataset"
	QuestionTypeMarket  QuestionType = "market"
	QuestionTypeOverall QuestionType = "overall"
)

// ModelKey identifies a scored submitter: (organization, model,
// model_organization), flattened to a single comparable string
// (model_pk in the upstream schema) so it can key maps directly.
type ModelKey struct {
	Organization      string
	Model             string
	ModelOrganization string
}

// PK renders the flattened model primary key.
func (k ModelKey) PK() string { return k.Organization + "::" + k.Model + "::" + k.ModelOrganization }

// Row is one scored forecast: a resolved (model, question) pair ready
// for Brier scoring and downstream difficulty adjustment.
type Row struct {
	Model              ModelKey
	QuestionPK         string
	ForecastDueDate    string
	Source             string
	QuestionType       QuestionType
	Forecast           float64
	ResolvedTo         float64
	DaysSinceRelease   int // only meaningful for model_organization == benchmark-internal rows
	IsBenchmarkOrg     bool
}

// BrierScore computes (forecast - resolved_to)^2 for one row.
func BrierScore(r Row) float64 {
	d := r.Forecast - r.ResolvedTo
	return d * d
}

// WithBrier returns rows annotated with their Brier score, leaving the
// input slice untouched.
func WithBrier(rows []Row) []ScoredRow {
	out := make([]ScoredRow, len(rows))
	for i, r := range rows {
		out[i] = ScoredRow{Row: r, Brier: BrierScore(r)}
	}
	return out
}

// ScoredRow is a Row with its raw Brier score attached; every
// downstream adjustment (difficulty, peer, skill) reads Brier and
// writes a new column alongside it, matching the upstream pipeline's
// column-accreting DataFrame style translated to an explicit struct.
type ScoredRow struct {
	Row
	Brier                float64
	QuestionFixedEffect  float64
	TwoWayFixedEffects   float64
	QuestionAvgBrier     float64
	PeerScore            float64
	RefBrier             float64
	BrierSkillScore      float64
}

// PeerScore annotates every row with question_avg_brier and the
// peer score (question_avg_brier - brier): positive means
// better-than-average on that question.
func PeerScore(rows []ScoredRow) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		sums[r.QuestionPK] += r.Brier
		counts[r.QuestionPK]++
	}
	avg := make(map[string]float64, len(sums))
	for q, s := range sums {
		avg[q] = s / float64(counts[q])
	}
	for i := range rows {
		a := avg[rows[i].QuestionPK]
		rows[i].QuestionAvgBrier = a
		rows[i].PeerScore = a - rows[i].Brier
	}
}

// BrierSkillScore annotates every row with the Brier skill score
// relative to refBrier, the Naive Forecaster's per-question score:
// ref_brier - brier, so positive means better than the naive
// baseline.
func BrierSkillScore(rows []ScoredRow, refBrierByQuestion map[string]float64) {
	for i := range rows {
		ref, ok := refBrierByQuestion[rows[i].QuestionPK]
		if !ok {
			continue
		}
		rows[i].RefBrier = ref
		rows[i].BrierSkillScore = ref - rows[i].Brier
	}
}

// RefBrierByQuestion builds the Naive Forecaster's per-question Brier
// lookup, the reference the skill score is measured against.
func RefBrierByQuestion(rows []ScoredRow, refOrg, refModel string) map[string]float64 {
	out := make(map[string]float64)
	for _, r := range rows {
		if r.Organization() == refOrg && r.Model.Model == refModel {
			out[r.QuestionPK] = r.Brier
		}
	}
	return out
}

// Organization exposes the model's organization field for readability
// at call sites that only care about that one dimension.
func (r Row) Organization() string { return r.Model.Organization }

// MeanByModel averages a scored field across a model's questions
// within questionType, the final per-cell value a leaderboard row
// reports.
func MeanByModel(rows []ScoredRow, questionType QuestionType, field func(ScoredRow) float64) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		if questionType != QuestionTypeOverall && r.QuestionType != questionType {
			continue
		}
		pk := r.Model.PK()
		sums[pk] += field(r)
		counts[pk]++
	}
	out := make(map[string]float64, len(sums))
	for pk, s := range sums {
		out[pk] = s / float64(counts[pk])
	}
	return out
}

// sortedKeys returns m's keys in ascending order, for deterministic
// iteration wherever output order matters (file emission, replicate
// column ordering).
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clampUnit clamps v into [0, 1], guarding against forecast rows that
// arrive exactly at the boundary plus float slop during imputation.
func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return v
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
