package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatasetFixedEffectsZeroSum(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", Forecast: 0.1, ResolvedTo: 0},
		{Model: ModelKey{Model: "a"}, QuestionPK: "q2", Forecast: 0.9, ResolvedTo: 1},
		{Model: ModelKey{Model: "b"}, QuestionPK: "q1", Forecast: 0.3, ResolvedTo: 0},
		{Model: ModelKey{Model: "b"}, QuestionPK: "q2", Forecast: 0.7, ResolvedTo: 1},
	})
	fx, err := DatasetFixedEffects(rows)
	require.NoError(t, err)
	require.Len(t, fx, 2)

	sum := 0.0
	for _, v := range fx {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-8)
}

func TestMarketFixedEffectsUsesImputedForecasterBrier(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Organization: "ForecastBench", Model: "Imputed Forecaster"}, QuestionPK: "m1", Forecast: 0.4, ResolvedTo: 1},
		{Model: ModelKey{Model: "someone"}, QuestionPK: "m1", Forecast: 0.9, ResolvedTo: 1},
	})
	fx, err := MarketFixedEffects(rows, "ForecastBench", "Imputed Forecaster")
	require.NoError(t, err)
	assert.InDelta(t, 0.36, fx["m1"], 1e-9)
}

func TestApplyFixedEffectsErrorsOnMissingQuestion(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", Forecast: 0.1, ResolvedTo: 0},
		{Model: ModelKey{Model: "a"}, QuestionPK: "q2", Forecast: 0.1, ResolvedTo: 0},
	})
	err := ApplyFixedEffects(rows, map[string]float64{"q1": 0.01})
	assert.Error(t, err)
}

func TestApplyFixedEffectsAnnotatesResidual(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", Forecast: 0.2, ResolvedTo: 0},
	})
	err := ApplyFixedEffects(rows, map[string]float64{"q1": 0.01})
	require.NoError(t, err)
	assert.InDelta(t, 0.01, rows[0].QuestionFixedEffect, 1e-9)
	assert.InDelta(t, rows[0].Brier-0.01, rows[0].TwoWayFixedEffects, 1e-9)
}
