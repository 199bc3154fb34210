package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOracleIncrementsHas201StepsInclusive(t *testing.T) {
	inc := OracleIncrements()
	require.Len(t, inc, 201)
	assert.Equal(t, 0.0, inc[0])
	assert.Equal(t, 1.0, inc[200])
	assert.InDelta(t, 0.5, inc[100], 1e-9)
}

func TestBuildOracleRowsForecastMatchesResolvedOutcome(t *testing.T) {
	template := []Row{
		{QuestionPK: "q1", ResolvedTo: 1},
		{QuestionPK: "q2", ResolvedTo: 0},
	}
	rows, err := BuildOracleRows(template)
	require.NoError(t, err)
	assert.Len(t, rows, 201*2)

	for _, r := range rows {
		if r.Model.Model != OracleModelName(0.75) {
			continue
		}
		if r.QuestionPK == "q1" {
			assert.InDelta(t, 0.75, r.Forecast, 1e-9)
		}
		if r.QuestionPK == "q2" {
			assert.InDelta(t, 0.25, r.Forecast, 1e-9)
		}
	}
}

func TestBuildOracleRowsRejectsNonBinaryResolvedTo(t *testing.T) {
	_, err := BuildOracleRows([]Row{{QuestionPK: "q1", ResolvedTo: 0.5}})
	assert.Error(t, err)
}

func TestIsOracleModelAndRemoveOracleRows(t *testing.T) {
	assert.True(t, IsOracleModel(benchmarkOrgName, OracleModelName(0.5)))
	assert.False(t, IsOracleModel("someone else", OracleModelName(0.5)))

	rows := []Row{
		{Model: ModelKey{Organization: benchmarkOrgName, Model: OracleModelName(0.5)}},
		{Model: ModelKey{Organization: "acme", Model: "gpt"}},
	}
	out := RemoveOracleRows(rows)
	require.Len(t, out, 1)
	assert.Equal(t, "gpt", out[0].Model.Model)
}

func TestRescaleToAlways05(t *testing.T) {
	pk := ModelKey{Model: "Always 0.5"}.PK()
	scores := map[string]float64{pk: 0.3, "other": 0.2}
	out, err := RescaleToAlways05(scores, pk)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, out[pk], 1e-9)
	assert.InDelta(t, 0.15, out["other"], 1e-9)
}

func TestOracleEquivalentPicksLargestPctModelMatches(t *testing.T) {
	oracleOverall := map[string]float64{}
	oraclePK := func(pct float64) string { return OracleModelName(pct) }
	for _, pct := range OracleIncrements() {
		// Lower pct -> worse (higher) score in this synthetic mapping.
		oracleOverall[oraclePK(pct)] = 1 - pct
	}
	modelOverall := map[string]float64{"m": 0.5}
	out, err := OracleEquivalent(modelOverall, oraclePK, oracleOverall)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out["m"], 1e-9)
}
