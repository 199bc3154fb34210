package score

import (
	"context"
	"fmt"
	"sort"
)

// Config is scoring's enumerated option struct, replacing the
// scattered module-level constants the upstream pipeline reads at
// import time.
type Config struct {
	NReplicates           int
	CIMethod              CIMethod
	ImputedCutoffPct      float64
	InclusionCutoffDays   int
	ModelReleaseWindowDays int
	NCPUs                 int
	Seed                   int64
}

// DefaultConfig mirrors the production constants.
func DefaultConfig() Config {
	return Config{
		NReplicates:            1999,
		CIMethod:               CIPercentile,
		ImputedCutoffPct:       5,
		InclusionCutoffDays:    50,
		ModelReleaseWindowDays: 365,
		NCPUs:                  4,
	}
}

// Entry is one model's published leaderboard row.
type Entry struct {
	Model ModelKey

	DatasetScore, MarketScore, OverallScore float64
	DatasetCI, MarketCI, OverallCI          ConfidenceInterval

	PeerScore       float64
	BrierSkillScore float64

	PctTimesBestPerformer   float64
	PctTimesTop5Percentile  float64
	XPctOracleEquivalent    float64

	PValueSuperforecaster float64
	PValuePublic          float64
	PValueSuperBHAdjusted float64
	PValuePublicBHAdjusted float64
}

// Leaderboard is the fully assembled, rescaled, CI-annotated table for
// one forecasting round (or the cumulative combination of several).
type Leaderboard struct {
	Entries []Entry
}

// primaryScore computes, for a set of rows already carrying Brier and
// (for dataset rows) fixed-effects residuals, the three per-model
// means the benchmark reports: Dataset, Market, Overall. dataset and
// market use two_way_fixed_effects; overall is their arithmetic mean
// per model (only over models present in both).
func primaryScore(rows []ScoredRow) (dataset, market, overall map[string]float64, err error) {
	var datasetRows, marketRows []ScoredRow
	for _, r := range rows {
		switch r.QuestionType {
		case QuestionTypeDataset:
			datasetRows = append(datasetRows, r)
		case QuestionTypeMarket:
			marketRows = append(marketRows, r)
		default:
			return nil, nil, nil, fmt.Errorf("score: row %s has unknown question type %q", r.QuestionPK, r.QuestionType)
		}
	}

	datasetFx, err := DatasetFixedEffects(datasetRows)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ApplyFixedEffects(datasetRows, datasetFx); err != nil {
		return nil, nil, nil, err
	}

	marketFx, err := MarketFixedEffects(marketRows, benchmarkOrgName, "Imputed Forecaster")
	if err != nil {
		return nil, nil, nil, err
	}
	if err := ApplyFixedEffects(marketRows, marketFx); err != nil {
		return nil, nil, nil, err
	}

	dataset = MeanByModel(datasetRows, QuestionTypeOverall, func(r ScoredRow) float64 { return r.TwoWayFixedEffects })
	market = MeanByModel(marketRows, QuestionTypeOverall, func(r ScoredRow) float64 { return r.TwoWayFixedEffects })

	overall = make(map[string]float64)
	for pk, d := range dataset {
		m, ok := market[pk]
		if !ok {
			continue
		}
		overall[pk] = (d + m) / 2
	}
	return dataset, market, overall, nil
}

// BuildLeaderboard runs the full scoring pipeline: difficulty
// adjustment, rescaling, bootstrap confidence intervals, human
// comparison p-values, and performance metrics, returning the
// assembled leaderboard. rows must already exclude x%-oracle rows;
// oracleRows carries them separately so they can be fixed-effect
// adjusted (to place them on the same scale) without ever appearing in
// the user-facing table themselves.
func BuildLeaderboard(ctx context.Context, cfg Config, rows []Row, superforecasterPK, publicPK string) (*Leaderboard, error) {
	oracleTemplate := buildOracleTemplate(rows)
	oracleRows, err := BuildOracleRows(oracleTemplate)
	if err != nil {
		return nil, err
	}

	allRows := append(append([]Row(nil), rows...), oracleRows...)
	scored := WithBrier(allRows)

	dataset, market, overall, err := primaryScore(scored)
	if err != nil {
		return nil, err
	}

	always05PK := ModelKey{Organization: benchmarkOrgName, Model: "Always 0.5", ModelOrganization: benchmarkOrgName}.PK()
	dataset, err = RescaleToAlways05(dataset, always05PK)
	if err != nil {
		return nil, err
	}
	market, err = RescaleToAlways05(market, always05PK)
	if err != nil {
		return nil, err
	}
	overall, err = RescaleToAlways05(overall, always05PK)
	if err != nil {
		return nil, err
	}

	oraclePK := func(pct float64) string {
		return ModelKey{Organization: benchmarkOrgName, Model: OracleModelName(pct), ModelOrganization: benchmarkOrgName}.PK()
	}
	xPctEquiv, err := OracleEquivalent(overall, oraclePK, overall)
	if err != nil {
		return nil, err
	}

	// Bootstrap over non-oracle rows only: the oracle models exist to
	// calibrate the scale, not to be resampled themselves.
	userScored := WithBrier(rows)
	replicates, err := Bootstrap(ctx, userScored, primaryScore, cfg.NReplicates, cfg.NCPUs, cfg.Seed)
	if err != nil {
		return nil, err
	}

	PeerScore(userScored)
	refBrier := RefBrierByQuestion(userScored, benchmarkOrgName, "Naive Forecaster")
	BrierSkillScore(userScored, refBrier)
	peerByModel := MeanByModel(userScored, QuestionTypeOverall, func(r ScoredRow) float64 { return r.PeerScore })
	bssByModel := MeanByModel(userScored, QuestionTypeOverall, func(r ScoredRow) float64 { return r.BrierSkillScore })

	datasetCols := ReplicateColumns(replicates, QuestionTypeDataset)
	marketCols := ReplicateColumns(replicates, QuestionTypeMarket)
	overallCols := ReplicateColumns(replicates, QuestionTypeOverall)

	datasetCI, err := ConfidenceIntervals(dataset, datasetCols, cfg.CIMethod)
	if err != nil {
		return nil, err
	}
	marketCI, err := ConfidenceIntervals(market, marketCols, cfg.CIMethod)
	if err != nil {
		return nil, err
	}
	overallCI, err := ConfidenceIntervals(overall, overallCols, cfg.CIMethod)
	if err != nil {
		return nil, err
	}

	superPVal, err := ComparisonPValue(superforecasterPK, overallCols)
	if err != nil {
		return nil, err
	}
	publicPVal, err := ComparisonPValue(publicPK, overallCols)
	if err != nil {
		return nil, err
	}
	FlipForPublicComparison(publicPVal)

	superBH := BenjaminiHochberg(withoutSentinel(superPVal, superforecasterPK))
	publicBH := BenjaminiHochberg(withoutSentinel(publicPVal, publicPK))

	bestPct, top5Pct := PerformanceMetrics(replicates, QuestionTypeOverall)

	modelByPK := make(map[string]ModelKey)
	for _, r := range rows {
		modelByPK[r.Model.PK()] = r.Model
	}

	var entries []Entry
	for pk, m := range modelByPK {
		d, dok := dataset[pk]
		mk, mok := market[pk]
		o, ook := overall[pk]
		if !dok || !mok || !ook {
			continue
		}
		e := Entry{
			Model:        m,
			DatasetScore: d, MarketScore: mk, OverallScore: o,
			DatasetCI: datasetCI[pk], MarketCI: marketCI[pk], OverallCI: overallCI[pk],
			XPctOracleEquivalent:   xPctEquiv[pk],
			PctTimesBestPerformer:  bestPct[pk],
			PctTimesTop5Percentile: top5Pct[pk],
			PValueSuperforecaster:  superPVal[pk],
			PValuePublic:           publicPVal[pk],
			PeerScore:              peerByModel[pk],
			BrierSkillScore:        bssByModel[pk],
		}
		if v, ok := superBH[pk]; ok {
			e.PValueSuperBHAdjusted = v
		} else {
			e.PValueSuperBHAdjusted = -1
		}
		if v, ok := publicBH[pk]; ok {
			e.PValuePublicBHAdjusted = v
		} else {
			e.PValuePublicBHAdjusted = -1
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OverallScore < entries[j].OverallScore })

	return &Leaderboard{Entries: entries}, nil
}

func withoutSentinel(m map[string]float64, sentinelPK string) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if k == sentinelPK {
			continue
		}
		out[k] = v
	}
	return out
}

// buildOracleTemplate picks one representative row per question (the
// Naive Forecaster's, the row guaranteed to have forecast on every
// question) to seed the x%-oracle rows from.
func buildOracleTemplate(rows []Row) []Row {
	seen := make(map[string]bool)
	var out []Row
	for _, r := range rows {
		if r.Organization() != benchmarkOrgName || r.Model.Model != "Naive Forecaster" {
			continue
		}
		if seen[r.QuestionPK] {
			continue
		}
		seen[r.QuestionPK] = true
		out = append(out, r)
	}
	return out
}
