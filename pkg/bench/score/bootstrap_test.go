package score

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleScoreFn(rows []ScoredRow) (dataset, market, overall map[string]float64, err error) {
	overall = MeanByModel(rows, QuestionTypeOverall, func(r ScoredRow) float64 { return r.Brier })
	return map[string]float64{}, map[string]float64{}, overall, nil
}

func sampleRows() []ScoredRow {
	return WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", ForecastDueDate: "2024-01-01", Source: "fred", Forecast: 0.1, ResolvedTo: 0},
		{Model: ModelKey{Model: "a"}, QuestionPK: "q2", ForecastDueDate: "2024-01-01", Source: "fred", Forecast: 0.9, ResolvedTo: 1},
		{Model: ModelKey{Model: "b"}, QuestionPK: "q1", ForecastDueDate: "2024-01-01", Source: "fred", Forecast: 0.3, ResolvedTo: 0},
		{Model: ModelKey{Model: "b"}, QuestionPK: "q2", ForecastDueDate: "2024-01-01", Source: "fred", Forecast: 0.7, ResolvedTo: 1},
	})
}

func TestBootstrapDeterministicGivenSeed(t *testing.T) {
	rows := sampleRows()
	r1, err := Bootstrap(context.Background(), rows, sampleScoreFn, 10, 2, 42)
	require.NoError(t, err)
	r2, err := Bootstrap(context.Background(), rows, sampleScoreFn, 10, 2, 42)
	require.NoError(t, err)
	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		for pk, v := range r1[i].Overall {
			assert.InDelta(t, v, r2[i].Overall[pk], 1e-12)
		}
	}
}

func TestBootstrapProducesRequestedReplicateCount(t *testing.T) {
	rows := sampleRows()
	reps, err := Bootstrap(context.Background(), rows, sampleScoreFn, 25, 4, 7)
	require.NoError(t, err)
	assert.Len(t, reps, 25)
}

func TestConfidenceIntervalsPercentileBracketsPointEstimate(t *testing.T) {
	point := map[string]float64{"a": 0.5}
	cols := map[string][]float64{"a": {0.1, 0.2, 0.4, 0.5, 0.6, 0.8, 0.9}}
	ci, err := ConfidenceIntervals(point, cols, CIPercentile)
	require.NoError(t, err)
	assert.LessOrEqual(t, ci["a"].Lower, ci["a"].Upper)
	assert.LessOrEqual(t, ci["a"].Lower, point["a"])
	assert.GreaterOrEqual(t, ci["a"].Upper, point["a"])
}

func TestConfidenceIntervalsBCaRuns(t *testing.T) {
	point := map[string]float64{"a": 0.5}
	cols := map[string][]float64{"a": {0.1, 0.2, 0.4, 0.5, 0.6, 0.8, 0.9}}
	ci, err := ConfidenceIntervals(point, cols, CIBCa)
	require.NoError(t, err)
	assert.LessOrEqual(t, ci["a"].Lower, ci["a"].Upper)
}

func TestComparisonPValueSentinelForSelf(t *testing.T) {
	cols := map[string][]float64{
		"comparison": {0.1, 0.1, 0.1},
		"other":      {0.05, 0.2, 0.05},
	}
	pvals, err := ComparisonPValue("comparison", cols)
	require.NoError(t, err)
	assert.Equal(t, -1.0, pvals["comparison"])
	assert.InDelta(t, 2.0/3.0, pvals["other"], 1e-9)
}

func TestFlipForPublicComparisonPreservesSentinel(t *testing.T) {
	pvals := map[string]float64{"public": -1, "other": 0.3}
	FlipForPublicComparison(pvals)
	assert.Equal(t, -1.0, pvals["public"])
	assert.InDelta(t, 0.7, pvals["other"], 1e-9)
}

func TestBenjaminiHochbergMonotoneAndOrderPreserving(t *testing.T) {
	pvals := map[string]float64{"a": 0.01, "b": 0.04, "c": 0.03, "d": 0.5}
	adj := BenjaminiHochberg(pvals)
	assert.LessOrEqual(t, adj["a"], adj["c"])
	assert.LessOrEqual(t, adj["c"], adj["b"])
	assert.LessOrEqual(t, adj["b"], adj["d"])
	for _, v := range adj {
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestPerformanceMetricsBestPerformerSumsToHundred(t *testing.T) {
	replicates := []Replicate{
		{Overall: map[string]float64{"a": 0.1, "b": 0.2}},
		{Overall: map[string]float64{"a": 0.3, "b": 0.1}},
	}
	best, _ := PerformanceMetrics(replicates, QuestionTypeOverall)
	assert.InDelta(t, 100.0, best["a"]+best["b"], 1e-9)
}
