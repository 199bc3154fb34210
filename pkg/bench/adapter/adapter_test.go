package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

func TestMarketAdapterNormalizeAssignsCategoryAndFreezeValue(t *testing.T) {
	a := NewMarketAdapter(question.SourcePolymarket)
	classifier := NewKeywordClassifier()
	freeze := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	q, err := a.Normalize(RawRecord{
		ID:                  "m1",
		QuestionText:        "Will the election be contested?",
		ObservedValue:       "0.42",
		FreezeDatetime:      freeze,
		MarketOpenDatetime:  freeze.AddDate(0, -1, 0),
		MarketCloseDatetime: freeze.AddDate(0, 1, 0),
	}, classifier)
	require.NoError(t, err)

	mq, ok := q.(*question.MarketQuestion)
	require.True(t, ok)
	assert.Equal(t, "m1", mq.ID)
	assert.Equal(t, question.SourcePolymarket, mq.Source)
	assert.Equal(t, question.Category("Politics & Governance"), mq.Category)
	assert.Equal(t, "0.42", mq.FreezeDatetimeValue)
	assert.True(t, mq.ValidQuestion)
	assert.Equal(t, freeze, mq.FreezeDatetime)
	assert.Equal(t, freeze.AddDate(0, 1, 0), mq.MarketInfoCloseDatetime)
}

func TestMarketAdapterNormalizeRequiresID(t *testing.T) {
	a := NewMarketAdapter(question.SourceManifold)
	_, err := a.Normalize(RawRecord{QuestionText: "no id"}, NewKeywordClassifier())
	assert.Error(t, err)
}

func TestNumericAdapterNormalizeCarriesForecastHorizons(t *testing.T) {
	a := NewNumericAdapter(question.SourceFRED)
	q, err := a.Normalize(RawRecord{
		ID: "n1", QuestionText: "Will inflation rise?",
		RawCategory: "economy", ObservedValue: "3.1",
		ForecastHorizons: []int{7, 30},
	}, NewKeywordClassifier())
	require.NoError(t, err)

	nq, ok := q.(*question.NumericQuestion)
	require.True(t, ok)
	assert.Equal(t, []int{7, 30}, nq.ForecastHorizons)
	assert.Equal(t, question.Category("Economics & Business"), nq.Category)
}

func TestEventCountAdapterNormalizeCarriesFreezeRate(t *testing.T) {
	a := NewEventCountAdapter(question.SourceACLED)
	q, err := a.Normalize(RawRecord{
		ID: "e1", QuestionText: "Will conflict events spike?",
		RawCategory: "war", ObservedValue: "12",
		ForecastHorizons: []int{30},
		FreezeRate:       12.5,
	}, NewKeywordClassifier())
	require.NoError(t, err)

	eq, ok := q.(*question.EventCountQuestion)
	require.True(t, ok)
	assert.Equal(t, 12.5, eq.FreezeRate)
	assert.Equal(t, question.Category("Security & Defense"), eq.Category)
}

func TestEncyclopedicAdapterNormalizeCarriesComparison(t *testing.T) {
	a := NewEncyclopedicAdapter(question.SourceWikipedia)
	q, err := a.Normalize(RawRecord{
		ID: "w1", QuestionText: "Will the population figure grow?",
		ObservedValue: "100", Comparison: question.ComparisonMore,
	}, NewKeywordClassifier())
	require.NoError(t, err)

	wq, ok := q.(*question.EncyclopedicQuestion)
	require.True(t, ok)
	assert.Equal(t, question.ComparisonMore, wq.Comparison)
}

func TestKeywordClassifierFallsBackToOther(t *testing.T) {
	c := NewKeywordClassifier()
	cat := c.Classify(RawRecord{QuestionText: "a question about nothing specific"})
	assert.Equal(t, question.CategoryOther, cat)
}

func TestKeywordClassifierMatchesRawCategoryHint(t *testing.T) {
	c := NewKeywordClassifier()
	cat := c.Classify(RawRecord{QuestionText: "will it happen", RawCategory: "sport"})
	assert.Equal(t, question.Category("Sports"), cat)
}
