package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBrierScore(t *testing.T) {
	assert.Equal(t, 0.0, BrierScore(Row{Forecast: 1, ResolvedTo: 1}))
	assert.Equal(t, 1.0, BrierScore(Row{Forecast: 1, ResolvedTo: 0}))
	assert.InDelta(t, 0.25, BrierScore(Row{Forecast: 0.5, ResolvedTo: 0}), 1e-9)
}

func TestPeerScoreAveragesPerQuestion(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", Forecast: 0.0, ResolvedTo: 0},
		{Model: ModelKey{Model: "b"}, QuestionPK: "q1", Forecast: 1.0, ResolvedTo: 0},
	})
	PeerScore(rows)
	assert.InDelta(t, 0.5, rows[0].QuestionAvgBrier, 1e-9)
	assert.InDelta(t, 0.5, rows[0].PeerScore, 1e-9)
	assert.InDelta(t, -0.5, rows[1].PeerScore, 1e-9)
}

func TestBrierSkillScoreRelativeToReference(t *testing.T) {
	rows := WithBrier([]Row{
		{Model: ModelKey{Model: "a"}, QuestionPK: "q1", Forecast: 0.2, ResolvedTo: 0},
	})
	ref := map[string]float64{"q1": 0.5}
	BrierSkillScore(rows, ref)
	assert.InDelta(t, 0.5, rows[0].RefBrier, 1e-9)
	assert.InDelta(t, 0.5-0.04, rows[0].BrierSkillScore, 1e-9)
}

func TestMeanByModelFiltersByQuestionType(t *testing.T) {
	rows := []ScoredRow{
		{Row: Row{Model: ModelKey{Model: "a"}, QuestionType: QuestionTypeDataset}, Brier: 0.2},
		{Row: Row{Model: ModelKey{Model: "a"}, QuestionType: QuestionTypeMarket}, Brier: 0.4},
	}
	dataset := MeanByModel(rows, QuestionTypeDataset, func(r ScoredRow) float64 { return r.Brier })
	overall := MeanByModel(rows, QuestionTypeOverall, func(r ScoredRow) float64 { return r.Brier })
	pk := ModelKey{Model: "a"}.PK()
	assert.InDelta(t, 0.2, dataset[pk], 1e-9)
	assert.InDelta(t, 0.3, overall[pk], 1e-9)
}
