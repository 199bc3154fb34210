package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/curator"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/resolve"
	"github.com/forecastbench/forecastbench/pkg/bench/score"
	"github.com/forecastbench/forecastbench/pkg/bench/store"
)

// fakeFetcher returns one raw numeric record (the real NumericAdapter
// normalizes it through the pipeline's registry) and a dense,
// strictly-increasing daily series for it.
type fakeFetcher struct {
	id   string
	due  question.Day
	last question.Day
}

func (f fakeFetcher) Fetch(ctx context.Context, source question.Source) ([]adapter.RawRecord, map[string][]adapter.RawObservation, error) {
	rec := adapter.RawRecord{
		ID:               f.id,
		QuestionText:     "will it increase",
		RawCategory:      "economy",
		ObservedValue:    "100",
		ForecastHorizons: []int{7},
	}

	var obs []adapter.RawObservation
	v := 100.0
	for d := f.due; !d.After(f.last); d = d.AddDays(1) {
		obs = append(obs, adapter.RawObservation{Date: d, Value: v})
		v += 1
	}
	return []adapter.RawRecord{rec}, map[string][]adapter.RawObservation{f.id: obs}, nil
}

func newTestPipeline(t *testing.T, due question.Day) (p *Pipeline, last, asOf question.Day) {
	t.Helper()
	last = due.AddDays(7)
	asOf = last.AddDays(1)
	localStore, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	b := bank.New(localStore)
	registry := adapter.NewDefaultRegistry()
	policy := resolve.NewImputationPolicy(nil)

	cfg := Config{
		Sources: []question.Source{question.SourceFRED},
		Curator: curator.Config{
			LLMN: 2, HumanN: 0, FreezeWindowDays: 0,
			DatasetSources: []question.Source{question.SourceFRED},
		},
		Score: score.DefaultConfig(),
	}

	p = New(b, registry, idhash.NewRemapTable(), idhash.NewNullifyTable(), policy, fakeFetcher{id: "q1", due: due, last: last}, cfg)
	return p, last, asOf
}

// TestBankUpdateThenResolveRoundTripsSeriesByID is a regression test
// for the bug where every adapter's BuildSeries hardcoded its result's
// ID to "", so WriteSeries stored every source's series under one
// colliding empty-id key and every subsequent LoadSeries for a real id
// silently returned an empty series. Running bank update then
// resolution end to end would have resolved every row to NaN had the
// bug still been present, since LoadSeries("q1") would find nothing.
func TestBankUpdateThenResolveRoundTripsSeriesByID(t *testing.T) {
	due := mustParseDay(t, "2024-01-01")
	p, last, asOf := newTestPipeline(t, due)
	resDate := due.AddDays(7)
	require.Equal(t, last, resDate)

	var stages []Stage
	p.OnStageComplete(func(r *StageResult) {
		if r.Stage == StageBankUpdate || r.Stage == StageCurate || r.Stage == StageResolve {
			stages = append(stages, r.Stage)
		}
		if r.Stage != StageScore {
			assert.True(t, r.Success, "stage %s failed: %s", r.Stage, r.Error)
		}
	})

	bySourceQuestions, err := p.runBankUpdate(context.Background(), "test-run")
	require.NoError(t, err)
	require.Len(t, bySourceQuestions[question.SourceFRED], 1)

	set, telemetry, err := p.runCurate(context.Background(), "test-run", due, bySourceQuestions)
	require.NoError(t, err)
	require.Len(t, set.Questions, 1)
	require.NotEmpty(t, telemetry)

	entry := set.Questions[0]
	require.Len(t, entry.ResolutionDates, 1)
	assert.Equal(t, resDate, entry.ResolutionDates[0])

	fVal := 0.9
	fs := &question.ForecastSet{
		Organization: "acme", Model: "forecaster-1", ModelOrganization: "acme",
		QuestionSet: set.QuestionSet, ForecastDueDate: due,
		Forecasts: []question.ForecastRow{
			{ID: "q1", Source: question.SourceFRED, Forecast: &fVal, ResolutionDate: &resDate},
		},
	}

	processed, resolutionSets, err := p.runResolve(context.Background(), "test-run", set, asOf, []*question.ForecastSet{fs})
	require.NoError(t, err)
	require.Len(t, processed, 1)
	require.Len(t, resolutionSets, 1)

	require.Len(t, resolutionSets[0].Resolutions, 1)
	row := resolutionSets[0].Resolutions[0]
	assert.Equal(t, "q1", row.ID)
	assert.True(t, row.Resolved, "series must have been found under its real id, not the empty-id bug's key")
	assert.Equal(t, 1.0, row.ResolvedTo, "value strictly increased over the 7-day horizon")

	assert.Equal(t, []Stage{StageBankUpdate, StageCurate, StageResolve}, stages)
}

func TestRowsFromProcessedClassifiesDatasetVsMarketAndSkipsUnresolved(t *testing.T) {
	due := mustParseDay(t, "2024-01-01")
	resDate := due.AddDays(7)
	fVal := 0.7

	processed := []*question.ProcessedForecastSet{
		{
			Organization: "acme", Model: "forecaster-1", ModelOrganization: "acme",
			Forecasts: []question.ProcessedForecastRow{
				{
					ForecastRow:     question.ForecastRow{ID: "dataset-q", Source: question.SourceFRED, Forecast: &fVal, ResolutionDate: &resDate},
					ResolvedTo:      1,
					Resolved:        true,
					ForecastDueDate: due,
					QuestionPK:      "set#dataset-q",
				},
				{
					ForecastRow:     question.ForecastRow{ID: "market-q", Source: question.SourcePolymarket, Forecast: &fVal},
					ResolvedTo:      0,
					Resolved:        true,
					ForecastDueDate: due,
					QuestionPK:      "set#market-q",
				},
				{
					// Forecast left nil: a row the resolver never
					// imputed is not scoreable and must be skipped.
					ForecastRow:     question.ForecastRow{ID: "unresolved-q", Source: question.SourceFRED},
					ForecastDueDate: due,
					QuestionPK:      "set#unresolved-q",
				},
			},
		},
	}

	rows := rowsFromProcessed(processed)
	require.Len(t, rows, 2)

	byPK := make(map[string]score.Row, len(rows))
	for _, r := range rows {
		byPK[r.QuestionPK] = r
	}

	dataset := byPK["set#dataset-q"]
	assert.Equal(t, score.QuestionTypeDataset, dataset.QuestionType)
	assert.Equal(t, 1.0, dataset.ResolvedTo)

	market := byPK["set#market-q"]
	assert.Equal(t, score.QuestionTypeMarket, market.QuestionType)
	assert.Equal(t, string(question.SourcePolymarket), market.Source)
}

func mustParseDay(t *testing.T, s string) question.Day {
	t.Helper()
	d, err := question.ParseDay(s)
	require.NoError(t, err)
	return d
}
