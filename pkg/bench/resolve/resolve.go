// Package resolve implements the Resolution Engine: validate a
// submitted forecast set, resolve every (id, direction, resolution_date)
// against the question bank once per question set, join the resolved
// values onto forecast rows, impute the missing ones, and emit the
// processed forecast set plus the set's resolution set.
package resolve

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/forecastbench/forecastbench/pkg/bench/adapter"
	"github.com/forecastbench/forecastbench/pkg/bench/bank"
	"github.com/forecastbench/forecastbench/pkg/bench/berrors"
	"github.com/forecastbench/forecastbench/pkg/bench/idhash"
	"github.com/forecastbench/forecastbench/pkg/bench/question"
)

// Engine resolves forecast sets against a question bank. One Engine
// is built per question set and reused for every submitter's forecast
// file against that set, so the resolved_values memo amortizes across
// files — resolve once per question set, not once per forecast file.
type Engine struct {
	Bank     *bank.Bank
	Registry *adapter.Registry
	Remap    *idhash.RemapTable
	Nullify  *idhash.NullifyTable
	Policy   *ImputationPolicy
	NCPUs    int

	set     *question.Set
	byID    map[string]*question.SetEntry
	memo    map[resolveKey]float64
}

// NewEngine builds an Engine bound to set, ready to resolve any number
// of forecast files submitted against it.
func NewEngine(b *bank.Bank, registry *adapter.Registry, remap *idhash.RemapTable, nullify *idhash.NullifyTable, policy *ImputationPolicy, ncpus int, set *question.Set) *Engine {
	byID := make(map[string]*question.SetEntry, len(set.Questions))
	for i := range set.Questions {
		byID[set.Questions[i].ID] = &set.Questions[i]
	}
	if ncpus <= 0 {
		ncpus = 1
	}
	return &Engine{
		Bank: b, Registry: registry, Remap: remap, Nullify: nullify, Policy: policy, NCPUs: ncpus,
		set: set, byID: byID, memo: make(map[resolveKey]float64),
	}
}

type resolveKey struct {
	id             string
	resolutionDate string
	dirKey         string
}

func directionKey(d question.Direction) string {
	s := ""
	for _, v := range d {
		if v >= 0 {
			s += "+"
		}
		s += fmt.Sprint(v)
	}
	return s
}

// Validate drops malformed rows and returns the cleaned
// set alongside the rows it dropped (non-fatal, logged for
// operational visibility). A duplicate (id, source, resolution_date,
// direction) key is a data-integrity error for the whole file.
func (e *Engine) Validate(fs *question.ForecastSet) (*question.ForecastSet, []question.ForecastRow, error) {
	seen := make(map[string]bool)
	cleaned := *fs
	cleaned.Forecasts = nil
	var dropped []question.ForecastRow

	for _, row := range fs.Forecasts {
		entry, ok := e.byID[row.ID]
		if !ok {
			dropped = append(dropped, row)
			continue
		}
		if !row.Source.Valid() {
			dropped = append(dropped, row)
			continue
		}
		if row.Forecast != nil && (*row.Forecast < 0 || *row.Forecast > 1) {
			dropped = append(dropped, row)
			continue
		}
		if !entry.IsCombo() && len(entry.ResolutionDates) > 0 {
			if row.ResolutionDate == nil || !containsDay(entry.ResolutionDates, *row.ResolutionDate) {
				dropped = append(dropped, row)
				continue
			}
		}

		resDate := ""
		if row.ResolutionDate != nil {
			resDate = row.ResolutionDate.String()
		}
		key := row.ID + "|" + string(row.Source) + "|" + resDate + "|" + directionKey(row.Direction)
		if seen[key] {
			return nil, nil, berrors.DataIntegrityf("resolve.Validate", "duplicate forecast row for key %q in set %s", key, fs.QuestionSet)
		}
		seen[key] = true

		cleaned.Forecasts = append(cleaned.Forecasts, row)
	}
	return &cleaned, dropped, nil
}

func containsDay(days []question.Day, d question.Day) bool {
	for _, x := range days {
		if x.Equal(d) {
			return true
		}
	}
	return false
}

// resolveOne resolves a single (entry, resolutionDate, direction) to a
// ground-truth value, applying the combo-combination identity for
// paired questions. It is memoized by (id, resolutionDate, direction)
// so repeated lookups across forecast files in the same set are O(1)
// after the first.
func (e *Engine) resolveOne(ctx context.Context, entry *question.SetEntry, resolutionDate question.Day, direction question.Direction) (float64, error) {
	key := resolveKey{id: entry.ID, resolutionDate: resolutionDate.String(), dirKey: directionKey(direction)}
	if v, ok := e.memo[key]; ok {
		return v, nil
	}

	var v float64
	var err error
	if entry.IsCombo() {
		v, err = e.resolveCombo(ctx, entry, resolutionDate)
	} else {
		v, err = e.resolveSingle(ctx, entry.ID, entry.Source, resolutionDate)
	}
	if err != nil {
		return 0, err
	}
	e.memo[key] = v
	return v, nil
}

func (e *Engine) resolveSingle(ctx context.Context, id string, source question.Source, resolutionDate question.Day) (float64, error) {
	canonical, nullified, err := adapter.ApplyRemapAndNullify(e.Remap, e.Nullify, id, e.set.ForecastDueDate)
	if err != nil {
		return 0, berrors.NewDataIntegrity("resolve.resolveSingle", err)
	}
	if nullified {
		return adapter.NaN(), nil
	}

	entry, ok := e.byID[canonical]
	if !ok {
		return 0, berrors.DataIntegrityf("resolve.resolveSingle", "question %s/%s not present in question set", source, canonical)
	}
	a, err := e.Registry.For(source)
	if err != nil {
		return 0, err
	}

	series, err := e.Bank.LoadSeries(ctx, source, canonical)
	if err != nil {
		return 0, err
	}

	forecastDueDate := e.set.ForecastDueDate
	return a.Resolve(entry.Question, forecastDueDate, resolutionDate, series), nil
}

// resolveCombo resolves each leg independently and combines them per
// the direction rule: r_i contributes r_i if d_i = +1, else (1 - r_i).
func (e *Engine) resolveCombo(ctx context.Context, entry *question.SetEntry, resolutionDate question.Day) (float64, error) {
	combo := entry.CombinationOf
	leg1 := e.byID[combo.Legs[0]]
	leg2 := e.byID[combo.Legs[1]]
	if leg1 == nil || leg2 == nil {
		return 0, berrors.DataIntegrityf("resolve.resolveCombo", "combo %s references missing leg", entry.ID)
	}

	r1, err := e.resolveSingle(ctx, leg1.ID, leg1.Source, resolutionDate)
	if err != nil {
		return 0, err
	}
	r2, err := e.resolveSingle(ctx, leg2.ID, leg2.Source, resolutionDate)
	if err != nil {
		return 0, err
	}
	if adapter.IsNaN(r1) || adapter.IsNaN(r2) {
		return adapter.NaN(), nil
	}
	return combo.ResolveOutcome(r1, r2), nil
}

// ResolveAll resolves every row of fs concurrently, bounded by
// e.NCPUs, and returns the processed forecast set. It does not impute
// — call Impute afterward.
func (e *Engine) ResolveAll(ctx context.Context, fs *question.ForecastSet) (*question.ProcessedForecastSet, error) {
	out := &question.ProcessedForecastSet{
		Organization: fs.Organization, Model: fs.Model, ModelOrganization: fs.ModelOrganization,
		QuestionSet: fs.QuestionSet, ForecastDueDate: fs.ForecastDueDate,
		Forecasts: make([]question.ProcessedForecastRow, len(fs.Forecasts)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.NCPUs)

	for i, row := range fs.Forecasts {
		i, row := i, row
		entry, ok := e.byID[row.ID]
		if !ok {
			return nil, berrors.DataIntegrityf("resolve.ResolveAll", "row %d references unknown id %s", i, row.ID)
		}

		resolutionDate := fs.ForecastDueDate
		if row.ResolutionDate != nil {
			resolutionDate = *row.ResolutionDate
		}

		g.Go(func() error {
			resolvedTo, err := e.resolveOne(gctx, entry, resolutionDate, row.Direction)
			if err != nil {
				return err
			}

			marketOnDue, marketOnDueMinus1 := e.marketValues(gctx, entry, fs.ForecastDueDate)

			out.Forecasts[i] = question.ProcessedForecastRow{
				ForecastRow:                  row,
				ResolvedTo:                   resolvedTo,
				Resolved:                     !math.IsNaN(resolvedTo),
				MarketValueOnDueDate:         marketOnDue,
				MarketValueOnDueDateMinusOne: marketOnDueMinus1,
				ForecastDueDate:              fs.ForecastDueDate,
				QuestionPK:                   questionPK(fs.QuestionSet, row.ID),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func questionPK(questionSet, id string) string { return questionSet + "#" + id }

// marketValues returns the market's freeze-time value at the forecast
// due date and the day before, used for imputation of the two
// distinguished system models. Non-market questions return NaN for
// both; callers must not impute a market-only formula onto them.
func (e *Engine) marketValues(ctx context.Context, entry *question.SetEntry, forecastDueDate question.Day) (onDue, onDueMinus1 float64) {
	mq, ok := entry.Question.(*question.MarketQuestion)
	if !ok {
		return adapter.NaN(), adapter.NaN()
	}
	series, err := e.Bank.LoadSeries(ctx, mq.Source, mq.ID)
	if err != nil {
		return adapter.NaN(), adapter.NaN()
	}
	v0, ok0 := series.ValueAt(forecastDueDate)
	v1, ok1 := series.ValueAt(forecastDueDate.AddDays(-1))
	if !ok0 {
		v0 = adapter.NaN()
	}
	if !ok1 {
		v1 = adapter.NaN()
	}
	return v0, v1
}

// Join drops dataset rows whose horizon has not yet elapsed — a
// resolution_date still in the future relative to asOf has no
// ground-truth value to attach — from the processed output. Market
// rows (no resolution_date) are never dropped here.
func (e *Engine) Join(pfs *question.ProcessedForecastSet, asOf question.Day) *question.ProcessedForecastSet {
	out := *pfs
	out.Forecasts = nil
	for _, row := range pfs.Forecasts {
		if row.ResolutionDate != nil && row.ResolutionDate.After(asOf) {
			continue
		}
		out.Forecasts = append(out.Forecasts, row)
	}
	return &out
}

// Impute replaces any missing forecast with 0.5, flagging it imputed,
// except for the two distinguished system models which use the
// market-derived substitutes instead. It also
// records every row with the imputation policy for operational
// tracking of per-submitter imputed share.
func (e *Engine) Impute(pfs *question.ProcessedForecastSet) *question.ProcessedForecastSet {
	for i := range pfs.Forecasts {
		row := &pfs.Forecasts[i]
		if row.Forecast != nil {
			e.Policy.RecordRow(pfs.Organization, pfs.Model, false)
			continue
		}

		row.Imputed = true
		var v float64
		switch question.DistinguishedModel(pfs.Model) {
		case question.ModelImputedForecaster:
			v = row.MarketValueOnDueDate
		case question.ModelNaiveForecaster:
			v = row.MarketValueOnDueDateMinusOne
		default:
			v = 0.5
		}
		if math.IsNaN(v) {
			v = 0.5
		}
		row.Forecast = &v
		e.Policy.RecordRow(pfs.Organization, pfs.Model, true)
	}
	return pfs
}

// Emit builds the set's resolution set (ground truth only, no
// forecaster numbers) from pfs's resolved rows, deduplicating by
// (id, source, resolution_date, direction) since multiple submitters
// resolve the same question to the same value.
func (e *Engine) Emit(pfs *question.ProcessedForecastSet) *question.ResolutionSet {
	seen := make(map[string]bool)
	out := &question.ResolutionSet{ForecastDueDate: pfs.ForecastDueDate, QuestionSet: pfs.QuestionSet}

	for _, row := range pfs.Forecasts {
		resDate := question.Day{}
		if row.ResolutionDate != nil {
			resDate = *row.ResolutionDate
		}
		key := row.ID + "|" + string(row.Source) + "|" + resDate.String() + "|" + directionKey(row.Direction)
		if seen[key] {
			continue
		}
		seen[key] = true

		out.Resolutions = append(out.Resolutions, question.ResolutionRow{
			ID: row.ID, Source: row.Source, Direction: row.Direction, ResolutionDate: resDate,
			ResolvedTo: row.ResolvedTo, Resolved: row.Resolved,
			MarketValueOnDueDate: row.MarketValueOnDueDate, MarketValueOnDueDateMinusOne: row.MarketValueOnDueDateMinusOne,
		})
	}
	sort.Slice(out.Resolutions, func(i, j int) bool { return out.Resolutions[i].ID < out.Resolutions[j].ID })
	return out
}
