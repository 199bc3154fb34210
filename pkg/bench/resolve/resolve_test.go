package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/store"
)

func mustDay(t *testing.T, s string) question.Day {
	t.Helper()
	d, err := question.ParseDay(s)
	require.NoError(t, err)
	return d
}

func ptr(v float64) *float64 { return &v }

func newTestEngine(t *testing.T, set *question.Set) (*Engine, *bank.Bank) {
	t.Helper()
	objStore, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	b := bank.New(objStore)
	registry := adapter.NewDefaultRegistry()
	e := NewEngine(b, registry, idhash.NewRemapTable(), idhash.NewNullifyTable(), NewImputationPolicy(nil), 2, set)
	return e, b
}

func numericEntry(id string, due, res question.Day) question.SetEntry {
	return question.SetEntry{
		ID: id, Source: question.SourceFRED,
		Question:        &question.NumericQuestion{Header: question.Header{ID: id, Source: question.SourceFRED}},
		ResolutionDates: []question.Day{res},
	}
}

// writeNumericSeries persists a dense, day-contiguous series from due
// to res (inclusive), holding dueVal through every day before res and
// stepping to resVal on res itself — series storage requires
// contiguous daily points, so sparse test fixtures would fail
// checkContiguous on load.
func writeNumericSeries(t *testing.T, b *bank.Bank, id string, due, res question.Day, dueVal, resVal float64) {
	t.Helper()
	var points []question.ResolutionPoint
	for d := due; !d.After(res); d = d.AddDays(1) {
		v := dueVal
		if !d.Before(res) {
			v = resVal
		}
		points = append(points, question.ResolutionPoint{Date: d, Value: v})
	}
	require.NoError(t, b.WriteSeries(context.Background(), &question.ResolutionSeries{
		ID: id, Source: question.SourceFRED, Points: points,
	}))
}

func TestValidateDropsUnknownIDAndOutOfRangeForecast(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	res := mustDay(t, "2024-02-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1", Questions: []question.SetEntry{numericEntry("q1", due, res)}}
	e, _ := newTestEngine(t, set)

	fs := &question.ForecastSet{
		Organization: "acme", Model: "gpt", QuestionSet: "s1", ForecastDueDate: due,
		Forecasts: []question.ForecastRow{
			{ID: "unknown", Source: question.SourceFRED, Forecast: ptr(0.5), ResolutionDate: &res},
			{ID: "q1", Source: question.SourceFRED, Forecast: ptr(1.5), ResolutionDate: &res},
			{ID: "q1", Source: question.SourceFRED, Forecast: ptr(0.4), ResolutionDate: &res},
		},
	}

	cleaned, dropped, err := e.Validate(fs)
	require.NoError(t, err)
	assert.Len(t, dropped, 2)
	require.Len(t, cleaned.Forecasts, 1)
	assert.Equal(t, 0.4, *cleaned.Forecasts[0].Forecast)
}

func TestValidateRejectsDuplicateKey(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	res := mustDay(t, "2024-02-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1", Questions: []question.SetEntry{numericEntry("q1", due, res)}}
	e, _ := newTestEngine(t, set)

	fs := &question.ForecastSet{
		QuestionSet: "s1", ForecastDueDate: due,
		Forecasts: []question.ForecastRow{
			{ID: "q1", Source: question.SourceFRED, Forecast: ptr(0.4), ResolutionDate: &res},
			{ID: "q1", Source: question.SourceFRED, Forecast: ptr(0.6), ResolutionDate: &res},
		},
	}
	_, _, err := e.Validate(fs)
	assert.Error(t, err)
}

func TestResolveAllNumericQuestionIncreased(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	res := mustDay(t, "2024-02-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1", Questions: []question.SetEntry{numericEntry("q1", due, res)}}
	e, b := newTestEngine(t, set)
	writeNumericSeries(t, b, "q1", due, res, 100, 150)

	fs := &question.ForecastSet{
		Organization: "acme", Model: "gpt", QuestionSet: "s1", ForecastDueDate: due,
		Forecasts: []question.ForecastRow{{ID: "q1", Source: question.SourceFRED, Forecast: ptr(0.7), ResolutionDate: &res}},
	}

	pfs, err := e.ResolveAll(context.Background(), fs)
	require.NoError(t, err)
	require.Len(t, pfs.Forecasts, 1)
	assert.Equal(t, 1.0, pfs.Forecasts[0].ResolvedTo)
	assert.True(t, pfs.Forecasts[0].Resolved)
}

func TestJoinDropsFutureResolutionDate(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	future := mustDay(t, "2030-01-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1"}
	e, _ := newTestEngine(t, set)

	pfs := &question.ProcessedForecastSet{
		Forecasts: []question.ProcessedForecastRow{
			{ForecastRow: question.ForecastRow{ID: "q1", ResolutionDate: &future}},
			{ForecastRow: question.ForecastRow{ID: "q2", ResolutionDate: &due}},
		},
	}
	out := e.Join(pfs, mustDay(t, "2024-06-01"))
	require.Len(t, out.Forecasts, 1)
	assert.Equal(t, "q2", out.Forecasts[0].ID)
}

func TestImputeUsesMarketValuesForDistinguishedModels(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1"}
	e, _ := newTestEngine(t, set)

	pfs := &question.ProcessedForecastSet{
		Organization: "ForecastBench", Model: "Imputed Forecaster",
		Forecasts: []question.ProcessedForecastRow{
			{ForecastRow: question.ForecastRow{ID: "m1"}, MarketValueOnDueDate: 0.73, MarketValueOnDueDateMinusOne: 0.70},
		},
	}
	out := e.Impute(pfs)
	require.True(t, out.Forecasts[0].Imputed)
	assert.InDelta(t, 0.73, *out.Forecasts[0].Forecast, 1e-9)
}

func TestImputeDefaultsToHalfWhenMarketValueIsNaN(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1"}
	e, _ := newTestEngine(t, set)

	pfs := &question.ProcessedForecastSet{
		Organization: "ForecastBench", Model: "Naive Forecaster",
		Forecasts: []question.ProcessedForecastRow{
			{ForecastRow: question.ForecastRow{ID: "d1"}, MarketValueOnDueDateMinusOne: adapter.NaN()},
		},
	}
	out := e.Impute(pfs)
	assert.InDelta(t, 0.5, *out.Forecasts[0].Forecast, 1e-9)
}

func TestImputeLeavesSubmittedForecastsUntouched(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1"}
	e, _ := newTestEngine(t, set)

	pfs := &question.ProcessedForecastSet{
		Organization: "acme", Model: "gpt",
		Forecasts: []question.ProcessedForecastRow{
			{ForecastRow: question.ForecastRow{ID: "d1", Forecast: ptr(0.9)}},
		},
	}
	out := e.Impute(pfs)
	assert.False(t, out.Forecasts[0].Imputed)
	assert.InDelta(t, 0.9, *out.Forecasts[0].Forecast, 1e-9)
}

func TestEmitDeduplicatesAndSortsByID(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	res := mustDay(t, "2024-02-01")
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1"}
	e, _ := newTestEngine(t, set)

	pfs := &question.ProcessedForecastSet{
		ForecastDueDate: due, QuestionSet: "s1",
		Forecasts: []question.ProcessedForecastRow{
			{ForecastRow: question.ForecastRow{ID: "q2", Source: question.SourceFRED, ResolutionDate: &res}, ResolvedTo: 1},
			{ForecastRow: question.ForecastRow{ID: "q1", Source: question.SourceFRED, ResolutionDate: &res}, ResolvedTo: 0},
			{ForecastRow: question.ForecastRow{ID: "q1", Source: question.SourceFRED, ResolutionDate: &res}, ResolvedTo: 0},
		},
	}
	rs := e.Emit(pfs)
	require.Len(t, rs.Resolutions, 2)
	assert.Equal(t, "q1", rs.Resolutions[0].ID)
	assert.Equal(t, "q2", rs.Resolutions[1].ID)
}

func TestResolveComboCombinesLegOutcomes(t *testing.T) {
	due := mustDay(t, "2024-01-01")
	res := mustDay(t, "2024-02-01")
	leg1 := numericEntry("leg1", due, res)
	leg2 := numericEntry("leg2", due, res)
	combo := question.SetEntry{
		ID: "leg1|leg2", Source: question.SourceFRED,
		CombinationOf: &question.Combo{Legs: [2]string{"leg1", "leg2"}, Directions: [2]int{1, -1}},
	}
	set := &question.Set{ForecastDueDate: due, QuestionSet: "s1", Questions: []question.SetEntry{leg1, leg2, combo}}
	e, b := newTestEngine(t, set)
	writeNumericSeries(t, b, "leg1", due, res, 100, 150)
	writeNumericSeries(t, b, "leg2", due, res, 100, 50)

	fs := &question.ForecastSet{
		QuestionSet: "s1", ForecastDueDate: due,
		Forecasts: []question.ForecastRow{{ID: "leg1|leg2", Source: question.SourceFRED, Forecast: ptr(0.5), ResolutionDate: &res, Direction: question.Direction{1, -1}}},
	}
	pfs, err := e.ResolveAll(context.Background(), fs)
	require.NoError(t, err)
	require.Len(t, pfs.Forecasts, 1)
	// leg1 increased (r1=1), leg2 decreased (r2=0); direction [1,-1] => 1 * (1-0) = 1.
	assert.Equal(t, 1.0, pfs.Forecasts[0].ResolvedTo)
}
