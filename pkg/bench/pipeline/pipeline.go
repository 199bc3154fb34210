// Package pipeline sequences the four benchmark stages — bank update,
// curation, resolution, and scoring — behind one run, the way a single
// trading cycle used to sequence discovery through execution. Each
// stage reports a StageResult through the same callback a caller
// attaches for logging, metrics, and the operator feed; the pipeline
// itself holds no transport logic, only the order stages run in and
// the state one stage hands to the next.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/curator"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
	"github.com/forecastbench/forecastbench/pkg/bench/resolve"
	"github.com/forecastbench/forecastbench/pkg/bench/score"
)

// Stage names one of the four sequential pipeline steps.
type Stage string

const (
	StageBankUpdate Stage = "bank_update"
	StageCurate     Stage = "curate"
	StageResolve    Stage = "resolve"
	StageScore      Stage = "score"
)

// StageResult holds one stage's outcome, reported through
// OnStageComplete regardless of success or failure.
type StageResult struct {
	RunID     string        `json:"run_id"`
	Stage     Stage         `json:"stage"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Fetcher is the external collaborator a bank-update run calls per
// source: it returns the source's full current raw record list,
// unnormalized, and any newly observed raw samples, keyed by question
// id. The one implementation in this module is FixtureFetcher
// (fixture.go), which reads committed fixture files; a fetcher performs
// byte-level fetch only, and the pipeline calls each record through its
// adapter's Normalize before anything is written to the bank.
type Fetcher interface {
	Fetch(ctx context.Context, source question.Source) ([]adapter.RawRecord, map[string][]adapter.RawObservation, error)
}

// Config bundles the per-run options each stage needs.
type Config struct {
	Sources           []question.Source
	Curator           curator.Config
	Score             score.Config
	Classifier        adapter.Classifier
	SuperforecasterPK string
	PublicPK          string
}

// Pipeline wires a Bank, adapter Registry, curator, resolution engine
// inputs, and scoring together into one sequenced run.
type Pipeline struct {
	Bank     *bank.Bank
	Registry *adapter.Registry
	Remap    *idhash.RemapTable
	Nullify  *idhash.NullifyTable
	Policy   *resolve.ImputationPolicy
	Fetcher  Fetcher
	Config   Config

	onStageComplete func(*StageResult)
	onError         func(runID string, err error)
}

// New builds a Pipeline ready to run. A nil cfg.Classifier defaults to
// a KeywordClassifier, since normalize requires one.
func New(b *bank.Bank, registry *adapter.Registry, remap *idhash.RemapTable, nullify *idhash.NullifyTable, policy *resolve.ImputationPolicy, fetcher Fetcher, cfg Config) *Pipeline {
	if cfg.Classifier == nil {
		cfg.Classifier = adapter.NewKeywordClassifier()
	}
	return &Pipeline{Bank: b, Registry: registry, Remap: remap, Nullify: nullify, Policy: policy, Fetcher: fetcher, Config: cfg}
}

// OnStageComplete sets the callback invoked after every stage, success
// or failure.
func (p *Pipeline) OnStageComplete(fn func(*StageResult)) { p.onStageComplete = fn }

// OnError sets the callback invoked when a stage returns a fatal error
// that halts the run.
func (p *Pipeline) OnError(fn func(runID string, err error)) { p.onError = fn }

// Result is everything one pipeline run produced, for a caller to
// persist or hand to a downstream reporting step.
type Result struct {
	RunID           string
	QuestionSet     *question.Set
	BinTelemetry    []curator.BinTelemetry
	ResolutionSets  []*question.ResolutionSet
	Leaderboard     *score.Leaderboard
}

// RunOnce executes bank update, curation, resolution, and scoring in
// sequence for one forecast_due_date, stopping at the first stage that
// returns a fatal error. forecastSets carries the submitted forecast
// files to resolve and score against the freshly curated set. asOf is
// the current processing date — it is typically well past
// forecastDueDate, since resolution runs once a question's horizon has
// elapsed, not on the day forecasts were due.
func (p *Pipeline) RunOnce(ctx context.Context, forecastDueDate, asOf question.Day, forecastSets []*question.ForecastSet) (*Result, error) {
	runID := uuid.New().String()
	result := &Result{RunID: runID}

	bySourceQuestions, err := p.runBankUpdate(ctx, runID)
	if err != nil {
		p.handleError(runID, err)
		return nil, err
	}

	set, binTelemetry, err := p.runCurate(ctx, runID, forecastDueDate, bySourceQuestions)
	if err != nil {
		p.handleError(runID, err)
		return nil, err
	}
	result.QuestionSet = set
	result.BinTelemetry = binTelemetry

	processed, resolutionSets, err := p.runResolve(ctx, runID, set, asOf, forecastSets)
	if err != nil {
		p.handleError(runID, err)
		return nil, err
	}
	result.ResolutionSets = resolutionSets

	lb, err := p.runScore(ctx, runID, processed)
	if err != nil {
		p.handleError(runID, err)
		return nil, err
	}
	result.Leaderboard = lb

	return result, nil
}

// RunBankUpdate runs only the bank-update stage, for the standalone
// cmd/bankupdate job. It generates its own run id, since a
// one-job-per-stage deployment has no enclosing RunOnce call to
// generate one.
func (p *Pipeline) RunBankUpdate(ctx context.Context) (map[question.Source][]question.Question, error) {
	runID := uuid.New().String()
	out, err := p.runBankUpdate(ctx, runID)
	if err != nil {
		p.handleError(runID, err)
	}
	return out, err
}

// RunCurate runs only the curation stage against the bank's current
// question tables for the configured sources, for the standalone
// cmd/curator job.
func (p *Pipeline) RunCurate(ctx context.Context, forecastDueDate question.Day) (*question.Set, []curator.BinTelemetry, error) {
	runID := uuid.New().String()
	bySourceQuestions := make(map[question.Source][]question.Question, len(p.Config.Sources))
	for _, source := range p.Config.Sources {
		qt, err := p.Bank.LoadQuestionTable(ctx, source)
		if err != nil {
			p.handleError(runID, err)
			return nil, nil, err
		}
		bySourceQuestions[source] = qt.Questions
	}
	set, telemetry, err := p.runCurate(ctx, runID, forecastDueDate, bySourceQuestions)
	if err != nil {
		p.handleError(runID, err)
	}
	return set, telemetry, err
}

// RunResolve runs only the resolution stage against an already-curated
// set, for the standalone cmd/resolver job.
func (p *Pipeline) RunResolve(ctx context.Context, set *question.Set, asOf question.Day, forecastSets []*question.ForecastSet) ([]*question.ProcessedForecastSet, []*question.ResolutionSet, error) {
	runID := uuid.New().String()
	processed, resolutionSets, err := p.runResolve(ctx, runID, set, asOf, forecastSets)
	if err != nil {
		p.handleError(runID, err)
	}
	return processed, resolutionSets, err
}

// RunScore runs only the scoring stage against already-resolved
// forecast sets, for the standalone cmd/scorer job.
func (p *Pipeline) RunScore(ctx context.Context, processed []*question.ProcessedForecastSet) (*score.Leaderboard, error) {
	runID := uuid.New().String()
	lb, err := p.runScore(ctx, runID, processed)
	if err != nil {
		p.handleError(runID, err)
	}
	return lb, err
}

func (p *Pipeline) handleError(runID string, err error) {
	if p.onError != nil {
		p.onError(runID, err)
	}
}

func (p *Pipeline) reportStage(runID string, stage Stage, start time.Time, data interface{}, err error) {
	if p.onStageComplete == nil {
		return
	}
	res := &StageResult{
		RunID: runID, Stage: stage, Success: err == nil,
		Data: data, Duration: time.Since(start), Timestamp: time.Now(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	p.onStageComplete(res)
}

// runBankUpdate fetches each configured source's current question list
// and any new raw observations, folds them into that source's bank
// series, and returns the up-to-date question lists curation samples
// from.
func (p *Pipeline) runBankUpdate(ctx context.Context, runID string) (map[question.Source][]question.Question, error) {
	start := time.Now()
	out := make(map[question.Source][]question.Question)
	written := 0

	for _, source := range p.Config.Sources {
		rawRecords, rawBySeries, err := p.Fetcher.Fetch(ctx, source)
		if err != nil {
			p.reportStage(runID, StageBankUpdate, start, map[string]int{"sources_done": written}, err)
			return nil, fmt.Errorf("pipeline: bank update for source %s: %w", source, err)
		}

		a, err := p.Registry.For(source)
		if err != nil {
			p.reportStage(runID, StageBankUpdate, start, nil, err)
			return nil, err
		}

		questions := make([]question.Question, 0, len(rawRecords))
		for _, raw := range rawRecords {
			q, err := a.Normalize(raw, p.Config.Classifier)
			if err != nil {
				p.reportStage(runID, StageBankUpdate, start, nil, err)
				return nil, fmt.Errorf("pipeline: normalizing %s record: %w", source, err)
			}
			questions = append(questions, q)
		}
		out[source] = questions

		qt := &bank.QuestionTable{Source: source, Questions: questions}
		if err := p.Bank.WriteQuestionTable(ctx, qt); err != nil {
			p.reportStage(runID, StageBankUpdate, start, nil, err)
			return nil, err
		}

		for id, raw := range rawBySeries {
			existing, err := p.Bank.LoadSeries(ctx, source, id)
			if err != nil {
				p.reportStage(runID, StageBankUpdate, start, nil, err)
				return nil, err
			}
			epoch := raw[0].Date
			if len(existing.Points) > 0 {
				epoch = existing.Points[0].Date
			}
			lastDay := raw[len(raw)-1].Date
			merged := append(append([]adapter.RawObservation(nil), observationsFromSeries(existing)...), raw...)
			series := a.BuildSeries(id, merged, epoch, lastDay)
			if err := p.Bank.WriteSeries(ctx, series); err != nil {
				p.reportStage(runID, StageBankUpdate, start, nil, err)
				return nil, err
			}
		}
		written++
	}

	p.reportStage(runID, StageBankUpdate, start, map[string]int{"sources_done": written}, nil)
	return out, nil
}

func observationsFromSeries(series *question.ResolutionSeries) []adapter.RawObservation {
	out := make([]adapter.RawObservation, len(series.Points))
	for i, pt := range series.Points {
		out[i] = adapter.RawObservation{Date: pt.Date, Value: pt.Value}
	}
	return out
}

func (p *Pipeline) runCurate(ctx context.Context, runID string, forecastDueDate question.Day, bySourceQuestions map[question.Source][]question.Question) (*question.Set, []curator.BinTelemetry, error) {
	start := time.Now()
	set, telemetry, err := curator.BuildQuestionSet(p.Config.Curator, forecastDueDate, bySourceQuestions)
	if err != nil {
		p.reportStage(runID, StageCurate, start, nil, err)
		return nil, nil, err
	}
	if err := p.Bank.Hydrate(ctx, set); err != nil {
		p.reportStage(runID, StageCurate, start, nil, err)
		return nil, nil, err
	}
	p.reportStage(runID, StageCurate, start, map[string]int{"questions": len(set.Questions), "bins": len(telemetry)}, nil)
	return set, telemetry, nil
}

func (p *Pipeline) runResolve(ctx context.Context, runID string, set *question.Set, asOf question.Day, forecastSets []*question.ForecastSet) ([]*question.ProcessedForecastSet, []*question.ResolutionSet, error) {
	start := time.Now()
	engine := resolve.NewEngine(p.Bank, p.Registry, p.Remap, p.Nullify, p.Policy, 4, set)

	var processed []*question.ProcessedForecastSet
	var resolutionSets []*question.ResolutionSet
	for _, fs := range forecastSets {
		cleaned, _, err := engine.Validate(fs)
		if err != nil {
			p.reportStage(runID, StageResolve, start, nil, err)
			return nil, nil, err
		}
		resolved, err := engine.ResolveAll(ctx, cleaned)
		if err != nil {
			p.reportStage(runID, StageResolve, start, nil, err)
			return nil, nil, err
		}
		joined := engine.Join(resolved, asOf)
		imputed := engine.Impute(joined)
		processed = append(processed, imputed)
		resolutionSets = append(resolutionSets, engine.Emit(imputed))
	}

	p.reportStage(runID, StageResolve, start, map[string]int{"forecast_sets": len(processed)}, nil)
	return processed, resolutionSets, nil
}

func (p *Pipeline) runScore(ctx context.Context, runID string, processed []*question.ProcessedForecastSet) (*score.Leaderboard, error) {
	start := time.Now()
	rows := rowsFromProcessed(processed)
	lb, err := score.BuildLeaderboard(ctx, p.Config.Score, rows, p.Config.SuperforecasterPK, p.Config.PublicPK)
	if err != nil {
		p.reportStage(runID, StageScore, start, nil, err)
		return nil, err
	}
	p.reportStage(runID, StageScore, start, map[string]int{"entries": len(lb.Entries)}, nil)
	return lb, nil
}

// rowsFromProcessed flattens every submitter's processed forecast rows
// into the flat score.Row slice scoring consumes, classifying each row
// dataset-vs-market by whether it carries a resolution_date.
func rowsFromProcessed(processed []*question.ProcessedForecastSet) []score.Row {
	var out []score.Row
	for _, pfs := range processed {
		model := score.ModelKey{Organization: pfs.Organization, Model: pfs.Model, ModelOrganization: pfs.ModelOrganization}
		for _, row := range pfs.Forecasts {
			if row.Forecast == nil {
				continue
			}
			qt := score.QuestionTypeMarket
			if row.ResolutionDate != nil {
				qt = score.QuestionTypeDataset
			}
			out = append(out, score.Row{
				Model:           model,
				QuestionPK:      row.QuestionPK,
				ForecastDueDate: row.ForecastDueDate.String(),
				Source:          string(row.Source),
				QuestionType:    qt,
				Forecast:        *row.Forecast,
				ResolvedTo:      row.ResolvedTo,
			})
		}
	}
	return out
}
